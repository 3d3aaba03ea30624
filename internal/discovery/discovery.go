// Package discovery reconciles the screen-capture enumeration and the
// accessibility tree into a fresh set of window records for one application.
package discovery

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/mpratt27/winsight/internal/ax"
	"github.com/mpratt27/winsight/internal/enumerate"
	"github.com/mpratt27/winsight/internal/logging"
	"github.com/mpratt27/winsight/internal/model"
	"github.com/mpratt27/winsight/internal/platform"
	"github.com/mpratt27/winsight/internal/repository"
)

// Defaults for the tunables.
const (
	DefaultShareableTimeout = 10 * time.Second
	DefaultCaptureTimeout   = 3 * time.Second
	DefaultFanOut           = 4
	// DefaultBruteForceTokens bounds the synthetic-token sweep. The real
	// upper bound of element ids is undocumented; 1000 covers every
	// observed distribution so far.
	DefaultBruteForceTokens = 1000
	// captureMatchTolerance is the looser geometry tolerance used when
	// pairing a shareable descriptor with its accessibility element.
	captureMatchTolerance = 10.0
)

// Options tune a Discoverer.
type Options struct {
	// Headless disables the screen-capture pass and preview capture.
	Headless bool
	// ShareableTimeout bounds the shareable-window enumeration.
	ShareableTimeout time.Duration
	// CaptureTimeout bounds each per-window preview capture.
	CaptureTimeout time.Duration
	// FanOut bounds concurrent per-window record construction.
	FanOut int
	// BruteForceTokens bounds the synthetic-token window sweep.
	BruteForceTokens int
}

func (o *Options) fill() {
	if o.ShareableTimeout <= 0 {
		o.ShareableTimeout = DefaultShareableTimeout
	}
	if o.CaptureTimeout <= 0 {
		o.CaptureTimeout = DefaultCaptureTimeout
	}
	if o.FanOut <= 0 {
		o.FanOut = DefaultFanOut
	}
	if o.BruteForceTokens <= 0 {
		o.BruteForceTokens = DefaultBruteForceTokens
	}
}

// Discoverer runs the reconciliation pipeline. Safe for concurrent use.
type Discoverer struct {
	bridge *platform.Provider
	repo   *repository.Repository
	opts   Options
	log    zerolog.Logger
}

// New returns a Discoverer over bridge that consults repo for creation times
// and preview freshness.
func New(bridge *platform.Provider, repo *repository.Repository, opts Options) *Discoverer {
	opts.fill()
	return &Discoverer{
		bridge: bridge,
		repo:   repo,
		opts:   opts,
		log:    logging.WithComponent("discovery"),
	}
}

// Discover returns the current set of window records for app. The screen
// capture pass runs first when available; its ids are excluded from the
// accessibility pass so each window appears at most once.
func (d *Discoverer) Discover(ctx context.Context, app model.App) ([]model.WindowRecord, error) {
	appEl, err := d.bridge.Accessibility.AppElement(app.PID)
	if err != nil {
		return nil, err
	}

	descriptors, err := d.bridge.Compositor.WindowDescriptors(app.PID)
	if err != nil {
		d.log.Debug().Int("pid", app.PID).Err(err).Msg("compositor descriptors unavailable")
		descriptors = nil
	}

	axWindows := d.enumerateElements(appEl, app.PID)

	records, usedIDs := d.capturePass(ctx, app, appEl, axWindows)
	records = append(records, d.accessibilityPass(ctx, app, appEl, axWindows, descriptors, usedIDs)...)

	return records, nil
}

// enumerateElements merges the standard window query with the brute-force
// token sweep, deduplicating by OS equality.
func (d *Discoverer) enumerateElements(appEl ax.Element, pid int) []ax.Element {
	windows, err := d.bridge.Accessibility.AppWindows(appEl)
	if err != nil {
		d.log.Debug().Int("pid", pid).Err(err).Msg("standard window query failed")
		windows = nil
	}

	for _, candidate := range d.bridge.Accessibility.BruteForceWindows(pid, d.opts.BruteForceTokens) {
		known := false
		for _, w := range windows {
			if candidate.Equal(w) {
				known = true
				break
			}
		}
		if !known {
			windows = append(windows, candidate)
		}
	}
	return windows
}

// capturePass discovers windows through the shareable-window enumeration.
// Returns the built records and the set of ids they consumed.
func (d *Discoverer) capturePass(ctx context.Context, app model.App, appEl ax.Element, axWindows []ax.Element) ([]model.WindowRecord, map[uint32]struct{}) {
	usedIDs := make(map[uint32]struct{})
	if d.opts.Headless || !d.bridge.Permissions.ScreenCapture() {
		return nil, usedIDs
	}

	enumCtx, cancel := context.WithTimeout(ctx, d.opts.ShareableTimeout)
	defer cancel()
	shareable, err := d.bridge.Compositor.ShareableWindows(enumCtx)
	if err != nil {
		// Timeouts and permission refusals degrade to the accessibility
		// pass alone.
		d.log.Debug().Int("pid", app.PID).Err(err).Msg("shareable enumeration unavailable")
		return nil, usedIDs
	}

	type candidate struct {
		desc model.Descriptor
		el   ax.Element
	}
	var candidates []candidate
	for _, desc := range shareable {
		if desc.OwnerPID != app.PID || desc.Layer != 0 {
			continue
		}
		if desc.Bounds.Width < enumerate.MinWindowSize || desc.Bounds.Height < enumerate.MinWindowSize {
			continue
		}
		el := matchElement(desc, axWindows)
		if el == nil {
			continue
		}
		if el.CloseButton() == nil && el.MinimizeButton() == nil {
			continue
		}
		candidates = append(candidates, candidate{desc: desc, el: el})
		usedIDs[desc.ID] = struct{}{}
	}

	p := pool.NewWithResults[*model.WindowRecord]().WithContext(ctx).WithMaxGoroutines(d.opts.FanOut)
	for _, c := range candidates {
		c := c
		p.Go(func(taskCtx context.Context) (*model.WindowRecord, error) {
			rec := d.buildRecord(taskCtx, app, c.el, appEl, model.DescriptorSource{Descriptor: c.desc})
			return &rec, nil
		})
	}
	built, err := p.Wait()
	if err != nil {
		d.log.Debug().Int("pid", app.PID).Err(err).Msg("capture pass cancelled")
	}

	records := make([]model.WindowRecord, 0, len(built))
	for _, rec := range built {
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records, usedIDs
}

// matchElement pairs a shareable descriptor with its accessibility element:
// window-id equality, then fuzzy title, then geometry within ±10.
func matchElement(desc model.Descriptor, axWindows []ax.Element) ax.Element {
	for _, el := range axWindows {
		if id := el.WindowID(); id != 0 && id == desc.ID {
			return el
		}
	}
	if desc.Title != "" {
		for _, el := range axWindows {
			if t, err := el.Title(); err == nil && t != "" && enumerate.FuzzyTitleMatch(t, desc.Title) {
				return el
			}
		}
	}
	for _, el := range axWindows {
		x, y, perr := el.Position()
		w, h, serr := el.Size()
		if perr != nil || serr != nil {
			continue
		}
		if desc.Bounds.ApproxEqual(model.Rect{X: x, Y: y, Width: w, Height: h}, captureMatchTolerance) {
			return el
		}
	}
	return nil
}

// accessibilityPass discovers windows through the accessibility tree,
// resolving each element's id against the compositor descriptors. usedIDs
// carries the capture pass's ids in and accumulates this pass's resolutions,
// so no id is consumed twice within one scan.
func (d *Discoverer) accessibilityPass(ctx context.Context, app model.App, appEl ax.Element, axWindows []ax.Element, descriptors []model.Descriptor, usedIDs map[uint32]struct{}) []model.WindowRecord {
	ownerHidden := false
	if hidden, err := appEl.Hidden(); err == nil {
		ownerHidden = hidden
	}
	activeSpaces := d.bridge.Compositor.ActiveSpaceIDs()

	type accepted struct {
		el  ax.Element
		src model.WindowSource
	}
	var toBuild []accepted

	for _, el := range axWindows {
		if !enumerate.DiscoverableElement(el) {
			continue
		}
		id, ok := enumerate.ResolveWindowID(el, descriptors, usedIDs)
		if !ok {
			continue
		}
		if _, taken := usedIDs[id]; taken {
			continue
		}

		desc, haveDesc := descriptorByID(descriptors, id)
		if haveDesc && !enumerate.DescriptorQualifies(desc) {
			continue
		}

		onScreen := haveDesc && desc.OnScreen
		minimized := false
		if v, err := el.Minimized(); err == nil {
			minimized = v
		}
		fullscreen := false
		if v, err := el.Fullscreen(); err == nil {
			fullscreen = v
		}
		isMain := false
		if v, err := el.Main(); err == nil {
			isMain = v
		}
		onActiveSpace := onAnyActiveSpace(d.bridge.Compositor.WindowSpaces(id), activeSpaces)

		if !enumerate.AcceptWindow(onScreen, fullscreen, minimized, ownerHidden, onActiveSpace, isMain) {
			continue
		}

		usedIDs[id] = struct{}{}
		var src model.WindowSource
		if haveDesc {
			src = model.DescriptorSource{Descriptor: desc}
		} else {
			src = model.NewElementSource(el, id, onScreen, d.bridge.Compositor.WindowLevel(id))
		}
		toBuild = append(toBuild, accepted{el: el, src: src})
	}

	p := pool.NewWithResults[*model.WindowRecord]().WithContext(ctx).WithMaxGoroutines(d.opts.FanOut)
	for _, a := range toBuild {
		a := a
		p.Go(func(taskCtx context.Context) (*model.WindowRecord, error) {
			rec := d.buildRecord(taskCtx, app, a.el, appEl, a.src)
			return &rec, nil
		})
	}
	built, err := p.Wait()
	if err != nil {
		d.log.Debug().Int("pid", app.PID).Err(err).Msg("accessibility pass cancelled")
	}

	records := make([]model.WindowRecord, 0, len(built))
	for _, rec := range built {
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records
}

func descriptorByID(descriptors []model.Descriptor, id uint32) (model.Descriptor, bool) {
	for _, d := range descriptors {
		if d.ID == id {
			return d, true
		}
	}
	return model.Descriptor{}, false
}

func onAnyActiveSpace(spaces []int32, active map[int32]struct{}) bool {
	for _, s := range spaces {
		if _, ok := active[s]; ok {
			return true
		}
	}
	return false
}

// buildRecord assembles one window record from an element and its source
// view, preserving the creation time of any already-cached record and
// capturing a preview when none is fresh.
func (d *Discoverer) buildRecord(ctx context.Context, app model.App, el ax.Element, appEl ax.Element, src model.WindowSource) model.WindowRecord {
	now := time.Now()
	id := src.SourceID()

	rec := model.WindowRecord{
		ID:                  id,
		OwnerBundleID:       app.BundleID,
		OwnerPID:            app.PID,
		Bounds:              src.SourceBounds(),
		IsVisible:           src.SourceOnScreen(),
		LastInteractionTime: now,
		CreationTime:        now,
		AXHandle:            el,
		AppAXHandle:         appEl,
		CloseButtonHandle:   el.CloseButton(),
	}

	if t, err := el.Title(); err == nil && t != "" {
		rec.Title = t
	} else if t, ok := src.SourceTitle(); ok {
		rec.Title = t
	}
	if v, err := el.Minimized(); err == nil {
		rec.IsMinimized = v
	}
	if v, err := appEl.Hidden(); err == nil {
		rec.IsOwnerHidden = v
	}
	if spaces := d.bridge.Compositor.WindowSpaces(id); len(spaces) > 0 {
		space := spaces[0]
		rec.DesktopSpace = &space
	}
	if prev, ok := d.repo.Record(app.PID, id); ok {
		rec.CreationTime = prev.CreationTime
	}

	if !d.opts.Headless && d.bridge.Permissions.ScreenCapture() && !d.repo.HasFreshPreview(id) {
		captureCtx, cancel := context.WithTimeout(ctx, d.opts.CaptureTimeout)
		img, err := d.bridge.Capturer.CaptureWindow(captureCtx, id)
		cancel()
		if err == nil && img != nil {
			rec.CachedPreview = img
			rec.PreviewTimestamp = time.Now()
		} else if err != nil {
			d.log.Debug().Uint32("window", id).Err(err).Msg("preview capture failed")
		}
	}

	return rec
}
