package cmd

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mpratt27/winsight/internal/platform"
	"github.com/mpratt27/winsight/internal/track"
)

var observeCmd = &cobra.Command{
	Use:   "observe",
	Short: "Watch for window changes and stream diffs as JSONL",
	Long: `Start tracking and emit window changes (appeared, disappeared, changed, preview-captured) as JSONL to stdout.

Each line is a JSON object representing one change event. No output is emitted while the desktop is stable.

Use Ctrl+C or --duration to stop observing.`,
	RunE: runObserve,
}

func init() {
	rootCmd.AddCommand(observeCmd)
	observeCmd.Flags().Int("duration", 0, "Max seconds to observe (0 = until Ctrl+C)")
	observeCmd.Flags().Bool("process-events", false, "Include process lifecycle events")
}

// observedChange is the JSONL wire form of one event.
type observedChange struct {
	Type     string `json:"type"`
	TS       int64  `json:"ts"`
	WindowID uint32 `json:"id,omitempty"`
	PID      int    `json:"pid,omitempty"`
	Title    string `json:"title,omitempty"`
}

func runObserve(cmd *cobra.Command, args []string) error {
	provider, err := platform.NewProvider()
	if err != nil {
		return err
	}

	durationSec, _ := cmd.Flags().GetInt("duration")
	withProcess, _ := cmd.Flags().GetBool("process-events")

	tracker := newTracker(provider)
	tracker.StartTracking()
	defer tracker.StopTracking()

	subID, events := tracker.Events()
	defer tracker.Unsubscribe(subID)

	procID, procEvents := tracker.ProcessEvents()
	defer tracker.UnsubscribeProcessEvents(procID)

	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	var deadline <-chan time.Time
	if durationSec > 0 {
		deadline = time.After(time.Duration(durationSec) * time.Second)
	}

	for {
		select {
		case <-sig:
			return nil
		case <-deadline:
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			change := observedChange{
				Type:     ev.Kind.String(),
				TS:       time.Now().Unix(),
				WindowID: ev.WindowID,
			}
			if ev.Kind == track.WindowAppeared || ev.Kind == track.WindowChanged {
				change.PID = ev.Record.OwnerPID
				change.Title = ev.Record.Title
			}
			enc.Encode(change)
		case ev, ok := <-procEvents:
			if !ok {
				return nil
			}
			if !withProcess {
				continue
			}
			enc.Encode(observedChange{
				Type: ev.Kind.String(),
				TS:   time.Now().Unix(),
				PID:  ev.PID,
			})
		}
	}
}
