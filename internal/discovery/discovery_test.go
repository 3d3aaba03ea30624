package discovery

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/mpratt27/winsight/internal/model"
	"github.com/mpratt27/winsight/internal/platform/platformtest"
	"github.com/mpratt27/winsight/internal/repository"
)

func testApp(pid int) model.App {
	return model.App{PID: pid, BundleID: "com.example.app", Name: "Example", Regular: true}
}

func newDesc(id uint32, pid int, title string) model.Descriptor {
	return model.Descriptor{
		ID:       id,
		Title:    title,
		Bounds:   model.Rect{X: 0, Y: float64(id) * 100, Width: 800, Height: 600},
		OwnerPID: pid,
		Layer:    0,
		Alpha:    1,
		OnScreen: true,
	}
}

func addWindow(bridge *platformtest.Bridge, pid, token int, id uint32, title string) *platformtest.Element {
	el := platformtest.NewWindowElement(pid, token, id).
		SetTitle(title).
		SetBounds(0, float64(id)*100, 800, 600).
		WithButtons()
	desc := newDesc(id, pid, title)
	bridge.AddWindow(pid, el, &desc)
	return el
}

func newDiscoverer(bridge *platformtest.Bridge, repo *repository.Repository, opts Options) *Discoverer {
	return New(bridge.Provider(), repo, opts)
}

func recordIDs(records []model.WindowRecord) map[uint32]bool {
	out := make(map[uint32]bool, len(records))
	for _, r := range records {
		out[r.ID] = true
	}
	return out
}

func TestDiscover_AccessibilityPass(t *testing.T) {
	bridge := platformtest.NewBridge()
	app := testApp(42)
	bridge.AddApp(app)
	addWindow(bridge, 42, 1, 10, "One")
	addWindow(bridge, 42, 2, 11, "Two")
	bridge.SetPermissions(false, true) // no capture permission: AX pass only

	disc := newDiscoverer(bridge, repository.New(), Options{})
	records, err := disc.Discover(context.Background(), app)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	got := recordIDs(records)
	if len(records) != 2 || !got[10] || !got[11] {
		t.Fatalf("expected records for 10 and 11, got %v", got)
	}
	for _, r := range records {
		if r.OwnerPID != 42 || r.OwnerBundleID != "com.example.app" {
			t.Errorf("record owner fields wrong: %+v", r)
		}
		if r.AXHandle == nil || r.AppAXHandle == nil {
			t.Errorf("record %d missing handles", r.ID)
		}
	}
}

func TestDiscover_FusionAvoidsDuplicates(t *testing.T) {
	bridge := platformtest.NewBridge()
	app := testApp(42)
	bridge.AddApp(app)
	addWindow(bridge, 42, 1, 10, "One")
	// The shareable enumeration reports the same window.
	bridge.SetShareable(newDesc(10, 42, "One"))

	disc := newDiscoverer(bridge, repository.New(), Options{})
	records, err := disc.Discover(context.Background(), app)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(records) != 1 || records[0].ID != 10 {
		t.Fatalf("expected exactly one record for id 10, got %d records", len(records))
	}
}

func TestDiscover_ShareableTimeoutFallsBack(t *testing.T) {
	bridge := platformtest.NewBridge()
	app := testApp(42)
	bridge.AddApp(app)
	addWindow(bridge, 42, 1, 10, "One")
	bridge.BlockShareable()

	disc := newDiscoverer(bridge, repository.New(), Options{ShareableTimeout: 30 * time.Millisecond})
	start := time.Now()
	records, err := disc.Discover(context.Background(), app)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("timed-out enumeration should not stall the scan")
	}
	if len(records) != 1 || records[0].ID != 10 {
		t.Fatalf("accessibility pass should still find the window, got %d records", len(records))
	}
}

func TestDiscover_HeadlessSkipsCaptureAndPreviews(t *testing.T) {
	bridge := platformtest.NewBridge()
	app := testApp(42)
	bridge.AddApp(app)
	addWindow(bridge, 42, 1, 10, "One")
	bridge.SetShareable(newDesc(10, 42, "One"))
	bridge.SetCapture(10, image.NewRGBA(image.Rect(0, 0, 8, 8)), nil)

	disc := newDiscoverer(bridge, repository.New(), Options{Headless: true})
	records, err := disc.Discover(context.Background(), app)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	if records[0].CachedPreview != nil {
		t.Error("headless discovery must not capture previews")
	}
}

func TestDiscover_CapturesPreviewWhenNoneFresh(t *testing.T) {
	bridge := platformtest.NewBridge()
	app := testApp(42)
	bridge.AddApp(app)
	addWindow(bridge, 42, 1, 10, "One")
	bridge.SetCapture(10, image.NewRGBA(image.Rect(0, 0, 8, 8)), nil)

	repo := repository.New()
	disc := newDiscoverer(bridge, repo, Options{})
	records, err := disc.Discover(context.Background(), app)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(records) != 1 || records[0].CachedPreview == nil {
		t.Fatal("expected a captured preview on the record")
	}

	// With a fresh preview cached, the next scan skips capture.
	repo.Store(42, records)
	bridge.SetCapture(10, nil, nil)
	records, err = disc.Discover(context.Background(), app)
	if err != nil {
		t.Fatalf("second discover: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
}

func TestDiscover_GhostWindowSuppressed(t *testing.T) {
	bridge := platformtest.NewBridge()
	app := testApp(42)
	bridge.AddApp(app)

	el := platformtest.NewWindowElement(42, 1, 10).
		SetTitle("Ghost").
		SetBounds(0, 0, 800, 600).
		WithButtons()
	desc := newDesc(10, 42, "Ghost")
	desc.OnScreen = false
	bridge.AddWindow(42, el, &desc)
	bridge.SetWindowSpaces(10, 1)
	bridge.SetActiveSpaces(1)
	bridge.SetPermissions(false, true)

	disc := newDiscoverer(bridge, repository.New(), Options{})
	records, err := disc.Discover(context.Background(), app)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("ghost window should be suppressed, got %v", recordIDs(records))
	}

	// The same window minimized is no longer a ghost.
	el.SetMinimized(true)
	records, err = disc.Discover(context.Background(), app)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(records) != 1 || !records[0].IsMinimized {
		t.Errorf("minimized off-screen window should be accepted, got %d records", len(records))
	}
}

func TestDiscover_WindowOnOtherSpaceAccepted(t *testing.T) {
	bridge := platformtest.NewBridge()
	app := testApp(42)
	bridge.AddApp(app)

	el := platformtest.NewWindowElement(42, 1, 10).
		SetTitle("Elsewhere").
		SetBounds(0, 0, 800, 600).
		WithButtons()
	desc := newDesc(10, 42, "Elsewhere")
	desc.OnScreen = false
	bridge.AddWindow(42, el, &desc)
	bridge.SetWindowSpaces(10, 2)
	bridge.SetActiveSpaces(1)
	bridge.SetPermissions(false, true)

	disc := newDiscoverer(bridge, repository.New(), Options{})
	records, err := disc.Discover(context.Background(), app)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("window on an inactive space should be accepted, got %d records", len(records))
	}
	if records[0].DesktopSpace == nil || *records[0].DesktopSpace != 2 {
		t.Errorf("expected desktop space 2, got %v", records[0].DesktopSpace)
	}
}

func TestDiscover_PreservesCreationTime(t *testing.T) {
	bridge := platformtest.NewBridge()
	app := testApp(42)
	bridge.AddApp(app)
	addWindow(bridge, 42, 1, 10, "One")
	bridge.SetPermissions(false, true)

	repo := repository.New()
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.Store(42, []model.WindowRecord{{ID: 10, OwnerPID: 42, CreationTime: created}})

	disc := newDiscoverer(bridge, repo, Options{})
	records, err := disc.Discover(context.Background(), app)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(records) != 1 || !records[0].CreationTime.Equal(created) {
		t.Errorf("creation time should be preserved, got %v", records[0].CreationTime)
	}
}

func TestDiscover_BruteForceFallback(t *testing.T) {
	bridge := platformtest.NewBridge()
	app := testApp(42)
	bridge.AddApp(app)

	// The standard query returns only a sheet, which is not a window; only
	// the brute-force sweep sees the window.
	hidden := platformtest.NewWindowElement(42, 5, 20).
		SetTitle("Hardened").
		SetBounds(0, 0, 800, 600).
		WithButtons()
	desc := newDesc(20, 42, "Hardened")
	bridge.SetBruteForceWindows(42, hidden)
	bridge.AddWindow(42, platformtest.NewWindowElement(42, 99, 0).SetRole("AXSheet"), &desc)
	bridge.SetPermissions(false, true)

	disc := newDiscoverer(bridge, repository.New(), Options{})
	records, err := disc.Discover(context.Background(), app)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(records) != 1 || records[0].ID != 20 {
		t.Fatalf("brute-force window should be discovered, got %v", recordIDs(records))
	}
}

func TestDiscover_UndersizedDescriptorSkippedInCapturePass(t *testing.T) {
	bridge := platformtest.NewBridge()
	app := testApp(42)
	bridge.AddApp(app)

	small := newDesc(10, 42, "Tiny")
	small.Bounds.Width = 50
	small.Bounds.Height = 50
	bridge.SetShareable(small)

	el := platformtest.NewWindowElement(42, 1, 10).SetTitle("Tiny").SetBounds(0, 0, 50, 50).WithButtons()
	desc := small
	bridge.AddWindow(42, el, &desc)

	disc := newDiscoverer(bridge, repository.New(), Options{})
	records, err := disc.Discover(context.Background(), app)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("undersized window should be skipped everywhere, got %v", recordIDs(records))
	}
}

func TestDiscover_UnknownAppErrors(t *testing.T) {
	bridge := platformtest.NewBridge()
	disc := newDiscoverer(bridge, repository.New(), Options{})
	if _, err := disc.Discover(context.Background(), testApp(999)); err == nil {
		t.Error("discovery of an unknown pid should fail")
	}
}
