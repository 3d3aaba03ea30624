package main

import "github.com/mpratt27/winsight/cmd"

func main() {
	cmd.Execute()
}
