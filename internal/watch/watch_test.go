package watch

import (
	"errors"
	"testing"
	"time"

	"github.com/mpratt27/winsight/internal/model"
	"github.com/mpratt27/winsight/internal/platform"
	"github.com/mpratt27/winsight/internal/platform/platformtest"
)

func regularApp(pid int) model.App {
	return model.App{PID: pid, BundleID: "com.example.app", Name: "Example", Regular: true}
}

func recvProcessEvent(t *testing.T, ch <-chan ProcessEvent) ProcessEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for process event")
		return ProcessEvent{}
	}
}

func recvPidEvent(t *testing.T, ch <-chan PidEvent) PidEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for window event")
		return PidEvent{}
	}
}

func TestProcessWatcher_TranslatesAndFilters(t *testing.T) {
	bridge := platformtest.NewBridge()
	watcher := NewProcessWatcher(bridge)
	watcher.Start()
	defer watcher.Stop()

	app := regularApp(42)
	daemon := model.App{PID: 43, Name: "agentd", Regular: false}

	bridge.EmitWorkspace(platform.WorkspaceNote{Kind: platform.NoteAppDidLaunch, App: daemon, PID: 43})
	bridge.EmitWorkspace(platform.WorkspaceNote{Kind: platform.NoteAppDidLaunch, App: app, PID: 42})

	ev := recvProcessEvent(t, watcher.Events())
	if ev.Kind != ProcessLaunched || ev.PID != 42 {
		t.Fatalf("expected launch of 42 (daemon filtered), got %+v", ev)
	}

	bridge.EmitWorkspace(platform.WorkspaceNote{Kind: platform.NoteAppDidTerminate, PID: 43})
	ev = recvProcessEvent(t, watcher.Events())
	if ev.Kind != ProcessTerminated || ev.PID != 43 {
		t.Fatalf("terminations pass regardless of policy, got %+v", ev)
	}

	bridge.EmitWorkspace(platform.WorkspaceNote{Kind: platform.NoteActiveSpaceChanged})
	ev = recvProcessEvent(t, watcher.Events())
	if ev.Kind != SpaceChanged {
		t.Fatalf("expected space change, got %+v", ev)
	}
}

func TestProcessWatcher_TracksFrontmost(t *testing.T) {
	bridge := platformtest.NewBridge()
	watcher := NewProcessWatcher(bridge)
	watcher.Start()
	defer watcher.Stop()

	app := regularApp(42)
	bridge.EmitWorkspace(platform.WorkspaceNote{Kind: platform.NoteAppDidActivate, App: app, PID: 42})
	ev := recvProcessEvent(t, watcher.Events())
	if ev.Kind != ProcessActivated {
		t.Fatalf("expected activation, got %+v", ev)
	}
	if got := watcher.FrontmostApplication(); got.PID != 42 {
		t.Errorf("frontmost should follow activation, got %+v", got)
	}
}

func TestProcessWatcher_StopClosesStream(t *testing.T) {
	bridge := platformtest.NewBridge()
	watcher := NewProcessWatcher(bridge)
	watcher.Start()
	watcher.Stop()

	select {
	case _, ok := <-watcher.Events():
		if ok {
			t.Error("expected closed event stream")
		}
	case <-time.After(2 * time.Second):
		t.Error("event stream not closed after stop")
	}
}

func TestManager_WatchIsIdempotent(t *testing.T) {
	bridge := platformtest.NewBridge()
	manager := NewManager(bridge)
	defer manager.Close()

	if !manager.Watch(42) {
		t.Fatal("first watch should succeed")
	}
	if !manager.Watch(42) {
		t.Fatal("second watch of the same pid should succeed")
	}
	if got := len(manager.WatchedPIDs()); got != 1 {
		t.Errorf("expected one watcher, got %d", got)
	}
}

func TestManager_ConstructionFailureReturnsFalse(t *testing.T) {
	bridge := platformtest.NewBridge()
	bridge.FailObserver(42, errors.New("observer refused"))
	manager := NewManager(bridge)
	defer manager.Close()

	if manager.Watch(42) {
		t.Error("watch of a hardened process should report false")
	}
	if manager.Watched(42) {
		t.Error("failed watch must not register a watcher")
	}
}

func TestManager_MultiplexesEvents(t *testing.T) {
	bridge := platformtest.NewBridge()
	manager := NewManager(bridge)
	defer manager.Close()

	manager.Watch(42)
	manager.Watch(43)

	el := platformtest.NewWindowElement(42, 1, 10)
	bridge.EmitAX(42, platform.AXNote{Notification: platform.NoteTitleChanged, Element: el})
	ev := recvPidEvent(t, manager.Events())
	if ev.PID != 42 || ev.Event.Kind != TitleChanged {
		t.Fatalf("expected title change from 42, got %+v", ev)
	}

	other := platformtest.NewWindowElement(43, 1, 20)
	bridge.EmitAX(43, platform.AXNote{Notification: platform.NoteWindowCreated, Element: other})
	ev = recvPidEvent(t, manager.Events())
	if ev.PID != 43 || ev.Event.Kind != WindowCreated {
		t.Fatalf("expected creation from 43, got %+v", ev)
	}
}

func TestManager_UnwatchStopsEvents(t *testing.T) {
	bridge := platformtest.NewBridge()
	manager := NewManager(bridge)
	defer manager.Close()

	manager.Watch(42)
	manager.Unwatch(42)
	if manager.Watched(42) {
		t.Fatal("unwatch should remove the watcher")
	}

	// A second unwatch is harmless.
	manager.Unwatch(42)
}

func TestWindowWatcher_TranslatesAllNotifications(t *testing.T) {
	bridge := platformtest.NewBridge()
	watcher, err := NewWindowWatcher(bridge, 42)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer watcher.Close()

	el := platformtest.NewWindowElement(42, 1, 10)
	cases := []struct {
		note string
		want WindowEventKind
	}{
		{platform.NoteWindowCreated, WindowCreated},
		{platform.NoteElementDestroyed, WindowDestroyed},
		{platform.NoteWindowMiniaturized, WindowMinimized},
		{platform.NoteWindowDeminiaturized, WindowRestored},
		{platform.NoteAppHidden, AppHidden},
		{platform.NoteAppShown, AppRevealed},
		{platform.NoteFocusedWindowChanged, WindowFocused},
		{platform.NoteWindowResized, WindowResized},
		{platform.NoteWindowMoved, WindowMoved},
		{platform.NoteTitleChanged, TitleChanged},
		{platform.NoteMainWindowChanged, MainWindowChanged},
	}
	for _, tc := range cases {
		bridge.EmitAX(42, platform.AXNote{Notification: tc.note, Element: el})
		select {
		case ev := <-watcher.Events():
			if ev.Kind != tc.want {
				t.Errorf("%s translated to %v, want %v", tc.note, ev.Kind, tc.want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", tc.note)
		}
	}

	// Unknown notifications are dropped silently.
	bridge.EmitAX(42, platform.AXNote{Notification: "AXSomethingElse", Element: el})
	select {
	case ev := <-watcher.Events():
		t.Errorf("unexpected event for unknown notification: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}
