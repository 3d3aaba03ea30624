package platformtest

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/mpratt27/winsight/internal/ax"
	"github.com/mpratt27/winsight/internal/model"
	"github.com/mpratt27/winsight/internal/platform"
)

// Bridge is a scripted in-memory implementation of every platform interface.
// Tests assemble system state with the Add/Set helpers and drive the engine
// by emitting notes.
type Bridge struct {
	mu sync.Mutex

	apps         map[int]*appState
	levels       map[uint32]int32
	spaces       map[uint32][]int32
	activeSpaces map[int32]struct{}

	shareable      []model.Descriptor
	shareableBlock bool
	shareableErr   error

	captures   map[uint32]image.Image
	captureErr map[uint32]error

	running   []model.App
	frontmost model.App
	workspace chan platform.WorkspaceNote

	observers    map[int]*Observer
	observerErrs map[int]error

	screenCapturePerm bool
	accessibilityPerm bool
}

type appState struct {
	app     model.App
	appEl   *Element
	windows []ax.Element
	brute   []ax.Element
	descs   []model.Descriptor
}

// NewBridge returns an empty bridge with both permissions granted.
func NewBridge() *Bridge {
	return &Bridge{
		apps:              make(map[int]*appState),
		levels:            make(map[uint32]int32),
		spaces:            make(map[uint32][]int32),
		activeSpaces:      map[int32]struct{}{1: {}},
		captures:          make(map[uint32]image.Image),
		captureErr:        make(map[uint32]error),
		workspace:         make(chan platform.WorkspaceNote, 64),
		observers:         make(map[int]*Observer),
		observerErrs:      make(map[int]error),
		screenCapturePerm: true,
		accessibilityPerm: true,
	}
}

// Provider wraps the bridge in a platform.Provider.
func (b *Bridge) Provider() *platform.Provider {
	return &platform.Provider{
		Accessibility: b,
		Compositor:    b,
		Capturer:      b,
		Workspace:     b,
		Observers:     b,
		Permissions:   b,
	}
}

// AddApp registers a running application and returns its app element.
func (b *Bridge) AddApp(app model.App) *Element {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.apps[app.PID]
	if !ok {
		state = &appState{app: app, appEl: NewAppElement(app.PID)}
		b.apps[app.PID] = state
	}
	state.app = app
	b.running = append(b.running, app)
	return state.appEl
}

// AddWindow registers a window element for pid and, unless desc is nil, the
// matching compositor descriptor.
func (b *Bridge) AddWindow(pid int, el ax.Element, desc *model.Descriptor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state := b.appState(pid)
	state.windows = append(state.windows, el)
	if desc != nil {
		state.descs = append(state.descs, *desc)
		b.levels[desc.ID] = desc.Layer
		if _, ok := b.spaces[desc.ID]; !ok {
			b.spaces[desc.ID] = []int32{1}
		}
	}
}

// RemoveWindow drops the window with the given compositor id from both views.
func (b *Bridge) RemoveWindow(pid int, id uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state := b.appState(pid)
	var windows []ax.Element
	for _, w := range state.windows {
		if w.WindowID() != id {
			windows = append(windows, w)
		}
	}
	state.windows = windows
	var descs []model.Descriptor
	for _, d := range state.descs {
		if d.ID != id {
			descs = append(descs, d)
		}
	}
	state.descs = descs
}

// SetBruteForceWindows scripts the brute-force enumeration result for pid.
func (b *Bridge) SetBruteForceWindows(pid int, els ...ax.Element) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.appState(pid).brute = els
}

// SetShareable scripts the screen-capture enumeration.
func (b *Bridge) SetShareable(descs ...model.Descriptor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shareable = descs
}

// BlockShareable makes ShareableWindows hang until its context expires,
// simulating an unresponsive capture service.
func (b *Bridge) BlockShareable() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shareableBlock = true
}

// SetWindowSpaces scripts the spaces a window belongs to.
func (b *Bridge) SetWindowSpaces(id uint32, spaces ...int32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.spaces[id] = spaces
}

// SetActiveSpaces scripts the active space set.
func (b *Bridge) SetActiveSpaces(ids ...int32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.activeSpaces = make(map[int32]struct{}, len(ids))
	for _, id := range ids {
		b.activeSpaces[id] = struct{}{}
	}
}

// SetCapture scripts the capture result for a window id.
func (b *Bridge) SetCapture(id uint32, img image.Image, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.captures[id] = img
	if err != nil {
		b.captureErr[id] = err
	} else {
		delete(b.captureErr, id)
	}
}

// SetPermissions scripts the permission grants.
func (b *Bridge) SetPermissions(screenCapture, accessibility bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.screenCapturePerm = screenCapture
	b.accessibilityPerm = accessibility
}

// FailObserver makes NewObserver fail for pid, as for a hardened process.
func (b *Bridge) FailObserver(pid int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observerErrs[pid] = err
}

// SetFrontmost scripts the frontmost application.
func (b *Bridge) SetFrontmost(app model.App) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frontmost = app
}

func (b *Bridge) appState(pid int) *appState {
	state, ok := b.apps[pid]
	if !ok {
		state = &appState{
			app:   model.App{PID: pid, Regular: true},
			appEl: NewAppElement(pid),
		}
		b.apps[pid] = state
	}
	return state
}

// --- platform.Accessibility ---

func (b *Bridge) AppElement(pid int) (ax.Element, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.apps[pid]
	if !ok {
		return nil, fmt.Errorf("no application with pid %d", pid)
	}
	return state.appEl, nil
}

func (b *Bridge) SystemWide() ax.Element {
	return NewAppElement(0)
}

func (b *Bridge) AppWindows(app ax.Element) ([]ax.Element, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.apps[app.Pid()]
	if !ok {
		return nil, fmt.Errorf("no application with pid %d", app.Pid())
	}
	out := make([]ax.Element, len(state.windows))
	copy(out, state.windows)
	return out, nil
}

func (b *Bridge) BruteForceWindows(pid int, maxToken int) []ax.Element {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.apps[pid]
	if !ok {
		return nil
	}
	var out []ax.Element
	for _, el := range state.brute {
		sub, err := el.Subrole()
		if err != nil {
			continue
		}
		if sub == ax.SubroleStandardWindow || sub == ax.SubroleDialog {
			out = append(out, el)
		}
	}
	return out
}

// --- platform.Compositor ---

func (b *Bridge) WindowDescriptors(pid int) ([]model.Descriptor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.apps[pid]
	if !ok {
		return nil, nil
	}
	out := make([]model.Descriptor, len(state.descs))
	copy(out, state.descs)
	return out, nil
}

func (b *Bridge) WindowSpaces(id uint32) []int32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spaces[id]
}

func (b *Bridge) WindowLevel(id uint32) int32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.levels[id]
}

func (b *Bridge) ActiveSpaceIDs() map[int32]struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[int32]struct{}, len(b.activeSpaces))
	for id := range b.activeSpaces {
		out[id] = struct{}{}
	}
	return out
}

func (b *Bridge) ShareableWindows(ctx context.Context) ([]model.Descriptor, error) {
	b.mu.Lock()
	block := b.shareableBlock
	err := b.shareableErr
	out := make([]model.Descriptor, len(b.shareable))
	copy(out, b.shareable)
	b.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, platform.ErrTimeout
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// --- platform.Capturer ---

func (b *Bridge) CaptureWindow(ctx context.Context, id uint32) (image.Image, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err, ok := b.captureErr[id]; ok {
		return nil, err
	}
	if img, ok := b.captures[id]; ok {
		return img, nil
	}
	return nil, platform.ErrInvalidWindow
}

// --- platform.Workspace ---

func (b *Bridge) Notifications() <-chan platform.WorkspaceNote { return b.workspace }

// EmitWorkspace delivers a raw workspace notification.
func (b *Bridge) EmitWorkspace(note platform.WorkspaceNote) {
	b.workspace <- note
}

func (b *Bridge) RunningApplications() []model.App {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.App, len(b.running))
	copy(out, b.running)
	return out
}

func (b *Bridge) FrontmostApplication() (model.App, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frontmost, b.frontmost.PID != 0
}

func (b *Bridge) Close() error {
	close(b.workspace)
	return nil
}

// --- platform.ObserverFactory ---

// Observer is a scripted accessibility subscription.
type Observer struct {
	pid     int
	events  chan platform.AXNote
	skipped []string
	once    sync.Once
}

func (o *Observer) Events() <-chan platform.AXNote { return o.events }
func (o *Observer) Skipped() []string              { return o.skipped }

func (o *Observer) Close() error {
	o.once.Do(func() { close(o.events) })
	return nil
}

func (b *Bridge) NewObserver(pid int, notifications []string) (platform.AXObserver, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err, ok := b.observerErrs[pid]; ok {
		return nil, err
	}
	obs := &Observer{pid: pid, events: make(chan platform.AXNote, 64)}
	b.observers[pid] = obs
	return obs, nil
}

// EmitAX delivers an accessibility notification to pid's observer, if one is
// registered.
func (b *Bridge) EmitAX(pid int, note platform.AXNote) {
	b.mu.Lock()
	obs := b.observers[pid]
	b.mu.Unlock()
	if obs != nil {
		obs.events <- note
	}
}

// ObserverFor returns pid's live observer, or nil.
func (b *Bridge) ObserverFor(pid int) *Observer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.observers[pid]
}

// --- platform.Permissions ---

func (b *Bridge) ScreenCapture() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.screenCapturePerm
}

func (b *Bridge) Accessibility() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accessibilityPerm
}
