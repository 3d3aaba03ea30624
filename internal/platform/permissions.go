package platform

import (
	"sync"
	"time"
)

const permissionPollInterval = 2 * time.Second

// PermissionState is a snapshot of the current permission grants.
type PermissionState struct {
	ScreenCapture bool
	Accessibility bool
}

var (
	permOnce  sync.Once
	permMu    sync.RWMutex
	permState PermissionState
)

// StartPermissionPoll begins the process-wide permission poll on first use.
// The poll reads perms every two seconds and publishes the result through
// CurrentPermissions. There is no teardown: the goroutine lives for the
// process, like the bridge singletons it reads from. Later calls are no-ops.
func StartPermissionPoll(perms Permissions) {
	permOnce.Do(func() {
		publishPermissions(perms)
		go func() {
			ticker := time.NewTicker(permissionPollInterval)
			defer ticker.Stop()
			for range ticker.C {
				publishPermissions(perms)
			}
		}()
	})
}

// CurrentPermissions returns the last polled permission state.
func CurrentPermissions() PermissionState {
	permMu.RLock()
	defer permMu.RUnlock()
	return permState
}

func publishPermissions(perms Permissions) {
	state := PermissionState{
		ScreenCapture: perms.ScreenCapture(),
		Accessibility: perms.Accessibility(),
	}
	permMu.Lock()
	permState = state
	permMu.Unlock()
}
