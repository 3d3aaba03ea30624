package cmd

import (
	"github.com/mpratt27/winsight/internal/discovery"
	"github.com/mpratt27/winsight/internal/platform"
	"github.com/mpratt27/winsight/internal/track"
)

// newTracker assembles a tracker from the loaded configuration.
func newTracker(provider *platform.Provider) *track.Tracker {
	return track.New(provider, track.Options{
		Headless:             cfg.Headless,
		PreviewCacheDuration: cfg.PreviewCacheDuration,
		DebounceDelay:        cfg.DebounceDelay,
		IgnoredPIDs:          cfg.IgnoredPIDs,
		Discovery: discovery.Options{
			BruteForceTokens: cfg.BruteForceTokens,
		},
	})
}
