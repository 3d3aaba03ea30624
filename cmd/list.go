package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/mpratt27/winsight/internal/model"
	"github.com/mpratt27/winsight/internal/output"
	"github.com/mpratt27/winsight/internal/platform"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked windows and applications",
	Long:  "Run one full scan and list the discovered windows, or the running applications with --apps.",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().Bool("apps", false, "List running applications instead of windows")
	listCmd.Flags().Int("pid", 0, "Filter windows by PID")
	listCmd.Flags().String("bundle-id", "", "Filter windows by bundle identifier")
}

func runList(cmd *cobra.Command, args []string) error {
	provider, err := platform.NewProvider()
	if err != nil {
		return err
	}

	apps, _ := cmd.Flags().GetBool("apps")
	pid, _ := cmd.Flags().GetInt("pid")
	bundleID, _ := cmd.Flags().GetString("bundle-id")

	tracker := newTracker(provider)
	defer tracker.StopTracking()

	result := output.ListResult{TS: time.Now().Unix()}

	if apps {
		result.Apps = tracker.TrackedApplications()
		if result.Apps == nil {
			result.Apps = []model.App{}
		}
		return output.Print(result)
	}

	tracker.FullScan()

	var windows []model.WindowRecord
	switch {
	case pid != 0:
		windows = tracker.Cache(pid)
	case bundleID != "":
		windows = tracker.CacheByBundleID(bundleID)
	default:
		for _, records := range tracker.AllWindows() {
			windows = append(windows, records...)
		}
	}
	if windows == nil {
		windows = []model.WindowRecord{}
	}
	result.Windows = windows
	return output.Print(result)
}
