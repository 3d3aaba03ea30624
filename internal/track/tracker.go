// Package track owns the window-intelligence loop: it fuses process
// lifecycle signals, per-application accessibility notifications, and space
// changes into debounced refresh operations against the repository, and
// broadcasts the resulting diffs.
package track

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mpratt27/winsight/internal/ax"
	"github.com/mpratt27/winsight/internal/discovery"
	"github.com/mpratt27/winsight/internal/enumerate"
	"github.com/mpratt27/winsight/internal/logging"
	"github.com/mpratt27/winsight/internal/model"
	"github.com/mpratt27/winsight/internal/platform"
	"github.com/mpratt27/winsight/internal/repository"
	"github.com/mpratt27/winsight/internal/watch"
)

// Options configure a Tracker.
type Options struct {
	// Headless disables the screen-capture pass and all preview capture.
	Headless bool
	// PreviewCacheDuration bounds preview freshness. Zero means the default
	// of 30 seconds.
	PreviewCacheDuration time.Duration
	// DebounceDelay replaces the 300 ms default; tests shorten it.
	DebounceDelay time.Duration
	// IgnoredPIDs are excluded from tracking entirely.
	IgnoredPIDs []int
	// Debug enables debug-level logging.
	Debug bool
	// LogHandler, when set, receives every log line.
	LogHandler logging.Handler
	// Discovery tunes the reconciliation pipeline. Headless is forced to
	// match the tracker's flag.
	Discovery discovery.Options
}

// Tracker maintains the live window cache for every regular application.
// Multiple trackers are independent: each owns its repository, watchers, and
// debounce table.
type Tracker struct {
	bridge    *platform.Provider
	repo      *repository.Repository
	disc      *discovery.Discoverer
	processes *watch.ProcessWatcher
	manager   *watch.Manager
	debouncer *Debouncer
	events    *Bus[Event]
	procBus   *Bus[watch.ProcessEvent]
	log       zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	headless       bool
	captureTimeout time.Duration

	mu      sync.Mutex
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// New assembles a tracker over bridge.
func New(bridge *platform.Provider, opts Options) *Tracker {
	if opts.LogHandler != nil {
		logging.SetHandler(opts.LogHandler)
	}
	if opts.Debug {
		logging.SetDebug(true)
	}

	repo := repository.New(repository.WithPreviewTTL(opts.PreviewCacheDuration))
	for _, pid := range opts.IgnoredPIDs {
		repo.IgnorePID(pid)
	}

	opts.Discovery.Headless = opts.Headless
	disc := discovery.New(bridge, repo, opts.Discovery)

	ctx, cancel := context.WithCancel(context.Background())
	captureTimeout := opts.Discovery.CaptureTimeout
	if captureTimeout <= 0 {
		captureTimeout = discovery.DefaultCaptureTimeout
	}

	return &Tracker{
		bridge:         bridge,
		repo:           repo,
		disc:           disc,
		processes:      watch.NewProcessWatcher(bridge.Workspace),
		manager:        watch.NewManager(bridge.Observers),
		debouncer:      NewDebouncer(opts.DebounceDelay),
		events:         NewBus[Event](),
		procBus:        NewBus[watch.ProcessEvent](),
		log:            logging.WithComponent("tracker"),
		ctx:            ctx,
		cancel:         cancel,
		headless:       opts.Headless,
		captureTimeout: captureTimeout,
	}
}

// StartTracking subscribes to the event sources, begins watching every
// running regular application, and schedules an initial full scan.
// Idempotent.
func (t *Tracker) StartTracking() {
	t.mu.Lock()
	if t.started || t.stopped {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.mu.Unlock()

	platform.StartPermissionPoll(t.bridge.Permissions)
	t.processes.Start()

	t.wg.Add(2)
	go t.processLoop()
	go t.windowLoop()

	for _, app := range t.bridge.Workspace.RunningApplications() {
		if app.Regular && !t.repo.Ignored(app.PID) {
			t.manager.Watch(app.PID)
		}
	}

	t.debouncer.Debounce("space-change", t.FullScan)
	t.log.Info().Msg("tracking started")
}

// StopTracking drops subscriptions, unwatches every pid, and cancels every
// pending debounced operation. Idempotent.
func (t *Tracker) StopTracking() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	started := t.started
	t.stopped = true
	t.mu.Unlock()

	t.debouncer.Close()
	t.cancel()
	if started {
		t.processes.Stop()
	}
	t.manager.Close()
	if started {
		t.wg.Wait()
	}
	t.events.Close()
	t.procBus.Close()
	t.log.Info().Msg("tracking stopped")
}

// Events subscribes to the cache-change stream.
func (t *Tracker) Events() (string, <-chan Event) { return t.events.Subscribe() }

// Unsubscribe drops a cache-change subscription.
func (t *Tracker) Unsubscribe(id string) { t.events.Unsubscribe(id) }

// ProcessEvents subscribes to the rebroadcast process-watcher stream.
func (t *Tracker) ProcessEvents() (string, <-chan watch.ProcessEvent) {
	return t.procBus.Subscribe()
}

// UnsubscribeProcessEvents drops a process-event subscription.
func (t *Tracker) UnsubscribeProcessEvents(id string) { t.procBus.Unsubscribe(id) }

func (t *Tracker) processLoop() {
	defer t.wg.Done()
	for ev := range t.processes.Events() {
		t.procBus.Publish(ev)
		t.handleProcessEvent(ev)
	}
}

func (t *Tracker) windowLoop() {
	defer t.wg.Done()
	for ev := range t.manager.Events() {
		t.handleWindowEvent(ev)
	}
}

func (t *Tracker) handleProcessEvent(ev watch.ProcessEvent) {
	switch ev.Kind {
	case watch.ProcessLaunched:
		if t.repo.Ignored(ev.PID) {
			return
		}
		t.manager.Watch(ev.PID)
		t.debounceRefresh(ev.App)

	case watch.ProcessTerminated:
		t.manager.Unwatch(ev.PID)
		for _, rec := range t.repo.Clear(ev.PID) {
			t.events.Publish(Event{Kind: WindowDisappeared, WindowID: rec.ID})
		}

	case watch.ProcessActivated:
		if t.repo.Ignored(ev.PID) {
			return
		}
		t.debounceRefresh(ev.App)

	case watch.SpaceChanged:
		t.debouncer.Debounce("space-change", t.FullScan)

	case watch.ProcessWillLaunch:
		// Forwarded on the process bus; no cache change yet.
	}
}

func (t *Tracker) handleWindowEvent(pe watch.PidEvent) {
	pid := pe.PID
	if t.repo.Ignored(pid) {
		return
	}
	el := pe.Event.Element

	switch pe.Event.Kind {
	case watch.WindowCreated:
		t.debounceRefreshPID(pid)

	case watch.WindowDestroyed:
		t.debouncer.Debounce(key("purify", pid), func() { t.handleDestroyed(pid) })

	case watch.WindowMinimized:
		t.debouncer.Debounce(key("minimize", pid), func() { t.setMinimized(pid, el, true) })

	case watch.WindowRestored:
		t.debouncer.Debounce(key("minimize", pid), func() { t.setMinimized(pid, el, false) })

	case watch.AppHidden:
		t.debouncer.Debounce(key("hidden", pid), func() { t.setOwnerHidden(pid, true) })

	case watch.AppRevealed:
		t.debouncer.Debounce(key("hidden", pid), func() { t.setOwnerHidden(pid, false) })

	case watch.WindowFocused, watch.MainWindowChanged:
		t.debouncer.Debounce(key("touch", pid), func() { t.touch(pid, el) })

	case watch.TitleChanged:
		t.debouncer.Debounce(key("title", pid), func() { t.updateTitle(pid, el) })

	case watch.WindowResized, watch.WindowMoved:
		// The compositor descriptor is the source of truth for bounds;
		// refresh the whole application.
		t.debounceRefreshPID(pid)
	}
}

func key(intent string, pid int) string {
	return fmt.Sprintf("%s-%d", intent, pid)
}

func (t *Tracker) debounceRefresh(app model.App) {
	t.debouncer.Debounce(key("refresh", app.PID), func() { t.refresh(app) })
}

func (t *Tracker) debounceRefreshPID(pid int) {
	t.debounceRefresh(t.appForPID(pid))
}

func (t *Tracker) appForPID(pid int) model.App {
	for _, app := range t.bridge.Workspace.RunningApplications() {
		if app.PID == pid {
			return app
		}
	}
	return model.App{PID: pid, Regular: true}
}

// refresh discovers and stores one application's windows, then purges dead
// handles.
func (t *Tracker) refresh(app model.App) {
	records, err := t.disc.Discover(t.ctx, app)
	if err != nil {
		t.log.Debug().Int("pid", app.PID).Err(err).Msg("refresh failed")
		return
	}
	t.emitReport(t.repo.Store(app.PID, records))
	t.purifyAndEmit(app.PID)
}

// FullScan refreshes every running regular application and purges every
// touched pid.
func (t *Tracker) FullScan() {
	start := time.Now()
	scanned := 0
	for _, app := range t.bridge.Workspace.RunningApplications() {
		if !app.Regular || t.repo.Ignored(app.PID) {
			continue
		}
		records, err := t.disc.Discover(t.ctx, app)
		if err != nil {
			t.log.Debug().Int("pid", app.PID).Err(err).Msg("scan failed")
			continue
		}
		t.emitReport(t.repo.Store(app.PID, records))
		scanned++
	}
	for _, pid := range t.repo.TrackedPIDs() {
		t.purifyAndEmit(pid)
	}
	t.log.Info().Int("apps", scanned).Dur("duration", time.Since(start)).Msg("full scan complete")
}

// RefreshApplication schedules a debounced refresh of app.
func (t *Tracker) RefreshApplication(app model.App) {
	if t.repo.Ignored(app.PID) {
		return
	}
	t.debounceRefresh(app)
}

// TrackApplication watches app, refreshes it synchronously, and returns its
// cached records.
func (t *Tracker) TrackApplication(app model.App) []model.WindowRecord {
	if t.repo.Ignored(app.PID) {
		return nil
	}
	t.manager.Watch(app.PID)
	t.refresh(app)
	return t.repo.Windows(app.PID)
}

// handleDestroyed reacts to a window-destroyed notification: when the owner
// is already gone the whole entry set is purged, otherwise only the records
// whose handles no longer validate.
func (t *Tracker) handleDestroyed(pid int) {
	alive := false
	for _, app := range t.bridge.Workspace.RunningApplications() {
		if app.PID == pid {
			alive = true
			break
		}
	}
	if !alive {
		for _, rec := range t.repo.Clear(pid) {
			t.events.Publish(Event{Kind: WindowDisappeared, WindowID: rec.ID})
		}
		return
	}
	t.purifyAndEmit(pid)
}

// purifyAndEmit validates pid's handles and emits a disappearance for every
// record the purge removed.
func (t *Tracker) purifyAndEmit(pid int) {
	before := t.repo.Windows(pid)
	if len(before) == 0 {
		return
	}
	retained := t.repo.Purify(pid, t.recordValidator(pid))
	kept := make(map[uint32]struct{}, len(retained))
	for _, rec := range retained {
		kept[rec.ID] = struct{}{}
	}
	for _, rec := range before {
		if _, ok := kept[rec.ID]; !ok {
			t.events.Publish(Event{Kind: WindowDisappeared, WindowID: rec.ID})
		}
	}
}

// recordValidator resolves pid's current window list once and returns the
// per-record validation predicate.
func (t *Tracker) recordValidator(pid int) func(model.WindowRecord) bool {
	var windows []ax.Element
	var listErr error
	appEl, err := t.bridge.Accessibility.AppElement(pid)
	if err != nil {
		listErr = err
	} else {
		windows, listErr = t.bridge.Accessibility.AppWindows(appEl)
	}

	return func(rec model.WindowRecord) bool {
		if rec.AXHandle == nil {
			return false
		}
		if listErr != nil {
			// Without a window list only the fast path can judge; a
			// transiently unresponsive app must not trigger a purge.
			return enumerate.RespondsToAttributes(rec.AXHandle)
		}
		return enumerate.IsValidElement(rec.AXHandle, windows)
	}
}

func (t *Tracker) setMinimized(pid int, el ax.Element, minimized bool) {
	t.purifyAndEmit(pid)
	t.emitReport(t.repo.Modify(pid, func(records map[uint32]*model.WindowRecord) {
		if rec := findRecord(records, el); rec != nil {
			rec.IsMinimized = minimized
		}
	}))
}

func (t *Tracker) setOwnerHidden(pid int, hidden bool) {
	t.purifyAndEmit(pid)
	t.emitReport(t.repo.Modify(pid, func(records map[uint32]*model.WindowRecord) {
		for _, rec := range records {
			rec.IsOwnerHidden = hidden
		}
	}))
}

func (t *Tracker) touch(pid int, el ax.Element) {
	t.repo.Modify(pid, func(records map[uint32]*model.WindowRecord) {
		if rec := findRecord(records, el); rec != nil {
			rec.LastInteractionTime = time.Now()
		}
	})
}

func (t *Tracker) updateTitle(pid int, el ax.Element) {
	if el == nil {
		return
	}
	role, err := el.Role()
	if err != nil || role != ax.RoleWindow {
		return
	}
	title, err := el.Title()
	if err != nil {
		return
	}
	t.emitReport(t.repo.Modify(pid, func(records map[uint32]*model.WindowRecord) {
		if rec := findRecord(records, el); rec != nil {
			rec.Title = title
		}
	}))
}

// findRecord locates the record for an element: by the element's reported
// window id first, then by OS handle equality.
func findRecord(records map[uint32]*model.WindowRecord, el ax.Element) *model.WindowRecord {
	if el == nil {
		return nil
	}
	if id := el.WindowID(); id != 0 {
		if rec, ok := records[id]; ok {
			return rec
		}
	}
	for _, rec := range records {
		if rec.AXHandle != nil && rec.AXHandle.Equal(el) {
			return rec
		}
	}
	return nil
}

func (t *Tracker) emitReport(report model.ChangeReport) {
	for _, rec := range report.Added {
		t.events.Publish(Event{Kind: WindowAppeared, Record: rec, WindowID: rec.ID})
	}
	for _, id := range report.Removed {
		t.events.Publish(Event{Kind: WindowDisappeared, WindowID: id})
	}
	for _, rec := range report.Modified {
		t.events.Publish(Event{Kind: WindowChanged, Record: rec, WindowID: rec.ID})
	}
}

// CapturePreview captures, downscales, caches, and announces a preview for
// the window with the given id.
func (t *Tracker) CapturePreview(id uint32) (image.Image, error) {
	if t.headless || !t.bridge.Permissions.ScreenCapture() {
		return nil, platform.ErrPermissionDenied
	}
	ctx, cancel := context.WithTimeout(t.ctx, t.captureTimeout)
	defer cancel()
	img, err := t.bridge.Capturer.CaptureWindow(ctx, id)
	if err != nil {
		return nil, err
	}
	img = scalePreview(img)
	t.repo.StorePreview(id, img)
	t.events.Publish(Event{Kind: PreviewCaptured, WindowID: id, Image: img})
	return img, nil
}

// RefreshPreviews recaptures every cached window of pid whose preview is no
// longer fresh.
func (t *Tracker) RefreshPreviews(pid int) {
	fresh := make(map[uint32]struct{})
	for _, id := range t.repo.WindowIDsWithFreshPreviews(pid) {
		fresh[id] = struct{}{}
	}
	for _, rec := range t.repo.Windows(pid) {
		if _, ok := fresh[rec.ID]; ok {
			continue
		}
		if _, err := t.CapturePreview(rec.ID); err != nil {
			t.log.Debug().Uint32("window", rec.ID).Err(err).Msg("preview refresh failed")
		}
	}
}

// Cache returns pid's cached records.
func (t *Tracker) Cache(pid int) []model.WindowRecord { return t.repo.Windows(pid) }

// CacheByBundleID returns the cached records owned by bundleID.
func (t *Tracker) CacheByBundleID(bundleID string) []model.WindowRecord {
	return t.repo.WindowsByBundleID(bundleID)
}

// CacheByWindowID returns the cached record with the given compositor id.
func (t *Tracker) CacheByWindowID(id uint32) (model.WindowRecord, bool) {
	return t.repo.Window(id)
}

// AllWindows returns the whole cache grouped by pid.
func (t *Tracker) AllWindows() map[int][]model.WindowRecord { return t.repo.All() }

// FreshPreviewIDs returns the ids of pid's windows with fresh previews.
func (t *Tracker) FreshPreviewIDs(pid int) []uint32 {
	return t.repo.WindowIDsWithFreshPreviews(pid)
}

// TrackedApplications returns the running regular applications that are not
// ignored.
func (t *Tracker) TrackedApplications() []model.App {
	var out []model.App
	for _, app := range t.bridge.Workspace.RunningApplications() {
		if app.Regular && !t.repo.Ignored(app.PID) {
			out = append(out, app)
		}
	}
	return out
}

// FrontmostApplication returns the most recently activated application.
func (t *Tracker) FrontmostApplication() model.App {
	return t.processes.FrontmostApplication()
}

// IgnorePID excludes pid from tracking and drops its cache.
func (t *Tracker) IgnorePID(pid int) {
	t.manager.Unwatch(pid)
	t.repo.IgnorePID(pid)
}

// Repository exposes the cache for read-only use by the facade.
func (t *Tracker) Repository() *repository.Repository { return t.repo }
