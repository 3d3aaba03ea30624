package platform

import (
	"fmt"
	"runtime"
)

// Provider bundles every OS capability the engine consumes.
type Provider struct {
	Accessibility Accessibility
	Compositor    Compositor
	Capturer      Capturer
	Workspace     Workspace
	Observers     ObserverFactory
	Permissions   Permissions
}

// ErrUnsupportedPlatform is returned when no bridge registered itself.
var ErrUnsupportedPlatform = fmt.Errorf("winsight is not supported on %s/%s; supported: darwin/amd64, darwin/arm64", runtime.GOOS, runtime.GOARCH)

// NewProviderFunc is set by the platform bridge via init().
var NewProviderFunc func() (*Provider, error)

// RequestPermissionsFunc is set by the platform bridge via init(). It
// triggers the OS permission prompts (accessibility, screen recording) at
// startup.
var RequestPermissionsFunc func()

// NewProvider returns a Provider for the current OS.
func NewProvider() (*Provider, error) {
	if NewProviderFunc == nil {
		return nil, ErrUnsupportedPlatform
	}
	return NewProviderFunc()
}
