// Package platformtest provides an in-memory platform bridge for tests.
package platformtest

import (
	"sync"

	"github.com/mpratt27/winsight/internal/ax"
)

// Element is a scripted accessibility element. Identity is (pid, token):
// two Elements with the same pid and token are Equal even when they are
// distinct Go values, matching the OS-defined equality of real handles.
type Element struct {
	pid   int
	token int

	mu        sync.Mutex
	winID     uint32
	role      string
	subrole   string
	title     string
	x, y      float64
	w, h      float64
	minimized bool
	fullscreen bool
	main      bool
	hidden    bool
	dead      bool
	closeBtn  ax.Element
	minBtn    ax.Element
}

// NewWindowElement returns a live standard-window element.
func NewWindowElement(pid, token int, winID uint32) *Element {
	return &Element{
		pid:     pid,
		token:   token,
		winID:   winID,
		role:    ax.RoleWindow,
		subrole: ax.SubroleStandardWindow,
	}
}

// NewAppElement returns an application-level element.
func NewAppElement(pid int) *Element {
	return &Element{pid: pid, token: -1, role: "AXApplication"}
}

func (e *Element) Equal(other ax.Element) bool {
	o, ok := other.(*Element)
	if !ok || o == nil {
		return false
	}
	return e.pid == o.pid && e.token == o.token
}

func (e *Element) Pid() int { return e.pid }

func (e *Element) WindowID() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead {
		return 0
	}
	return e.winID
}

func (e *Element) attr() error {
	if e.dead {
		return ax.ErrCannotComplete
	}
	return nil
}

func (e *Element) Role() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.role, e.attr()
}

func (e *Element) Subrole() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.subrole, e.attr()
}

func (e *Element) Title() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.title, e.attr()
}

func (e *Element) Position() (float64, float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.x, e.y, e.attr()
}

func (e *Element) Size() (float64, float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.w, e.h, e.attr()
}

func (e *Element) Minimized() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.minimized, e.attr()
}

func (e *Element) Fullscreen() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fullscreen, e.attr()
}

func (e *Element) Main() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.main, e.attr()
}

func (e *Element) Hidden() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hidden, e.attr()
}

func (e *Element) CloseButton() ax.Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closeBtn
}

func (e *Element) MinimizeButton() ax.Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.minBtn
}

// Scripting setters. Each is safe to call while the engine reads the element
// from another goroutine.

func (e *Element) SetWindowID(id uint32) *Element { e.mu.Lock(); e.winID = id; e.mu.Unlock(); return e }
func (e *Element) SetRole(r string) *Element      { e.mu.Lock(); e.role = r; e.mu.Unlock(); return e }
func (e *Element) SetSubrole(s string) *Element   { e.mu.Lock(); e.subrole = s; e.mu.Unlock(); return e }
func (e *Element) SetTitle(t string) *Element     { e.mu.Lock(); e.title = t; e.mu.Unlock(); return e }
func (e *Element) SetMinimized(v bool) *Element   { e.mu.Lock(); e.minimized = v; e.mu.Unlock(); return e }
func (e *Element) SetFullscreen(v bool) *Element  { e.mu.Lock(); e.fullscreen = v; e.mu.Unlock(); return e }
func (e *Element) SetMain(v bool) *Element        { e.mu.Lock(); e.main = v; e.mu.Unlock(); return e }
func (e *Element) SetHidden(v bool) *Element      { e.mu.Lock(); e.hidden = v; e.mu.Unlock(); return e }

func (e *Element) SetBounds(x, y, w, h float64) *Element {
	e.mu.Lock()
	e.x, e.y, e.w, e.h = x, y, w, h
	e.mu.Unlock()
	return e
}

// WithButtons attaches close and minimize buttons.
func (e *Element) WithButtons() *Element {
	e.mu.Lock()
	e.closeBtn = &Element{pid: e.pid, token: e.token*1000 + 1, role: "AXButton"}
	e.minBtn = &Element{pid: e.pid, token: e.token*1000 + 2, role: "AXButton"}
	e.mu.Unlock()
	return e
}

// Kill marks the element dead: every subsequent attribute read answers
// "cannot complete", as the OS does for destroyed windows.
func (e *Element) Kill() *Element {
	e.mu.Lock()
	e.dead = true
	e.mu.Unlock()
	return e
}
