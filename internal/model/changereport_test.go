package model

import "testing"

func rec(id uint32, pid int, title string) WindowRecord {
	return WindowRecord{ID: id, OwnerPID: pid, Title: title}
}

func asMap(records ...WindowRecord) map[uint32]WindowRecord {
	m := make(map[uint32]WindowRecord, len(records))
	for _, r := range records {
		m[r.ID] = r
	}
	return m
}

func TestDiff_NoChanges(t *testing.T) {
	snap := asMap(rec(1, 42, "One"), rec(2, 42, "Two"))
	report := Diff(snap, snap)
	if !report.Empty() {
		t.Errorf("expected empty report, got %+v", report)
	}
}

func TestDiff_Added(t *testing.T) {
	old := asMap(rec(1, 42, "One"))
	curr := asMap(rec(1, 42, "One"), rec(2, 42, "Two"))
	report := Diff(old, curr)
	if len(report.Added) != 1 || report.Added[0].ID != 2 {
		t.Fatalf("expected added=[2], got %+v", report.Added)
	}
	if len(report.Removed) != 0 || len(report.Modified) != 0 {
		t.Errorf("unexpected removed/modified: %+v", report)
	}
}

func TestDiff_Removed(t *testing.T) {
	old := asMap(rec(1, 42, "One"), rec(2, 42, "Two"))
	curr := asMap(rec(1, 42, "One"))
	report := Diff(old, curr)
	if len(report.Removed) != 1 || report.Removed[0] != 2 {
		t.Fatalf("expected removed=[2], got %+v", report.Removed)
	}
}

func TestDiff_ModifiedFields(t *testing.T) {
	base := WindowRecord{ID: 1, OwnerPID: 42, Title: "One", Bounds: Rect{X: 0, Y: 0, Width: 800, Height: 600}}

	tests := []struct {
		name   string
		mutate func(*WindowRecord)
		want   bool
	}{
		{"title", func(r *WindowRecord) { r.Title = "Other" }, true},
		{"minimized", func(r *WindowRecord) { r.IsMinimized = true }, true},
		{"owner hidden", func(r *WindowRecord) { r.IsOwnerHidden = true }, true},
		{"bounds", func(r *WindowRecord) { r.Bounds.Width = 900 }, true},
		{"visible flag alone", func(r *WindowRecord) { r.IsVisible = true }, false},
		{"interaction time alone", func(r *WindowRecord) { r.LastInteractionTime = r.LastInteractionTime.Add(1) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			curr := base
			tt.mutate(&curr)
			report := Diff(asMap(base), asMap(curr))
			if got := len(report.Modified) == 1; got != tt.want {
				t.Errorf("modified=%v, want %v (report %+v)", got, tt.want, report)
			}
		})
	}
}

func TestDiff_ModifiedDisjointFromAddedAndRemoved(t *testing.T) {
	old := asMap(rec(1, 42, "One"), rec(2, 42, "Two"))
	curr := asMap(rec(2, 42, "Two renamed"), rec(3, 42, "Three"))
	report := Diff(old, curr)

	seen := make(map[uint32]string)
	for _, r := range report.Added {
		seen[r.ID] = "added"
	}
	for _, id := range report.Removed {
		if prev, ok := seen[id]; ok {
			t.Errorf("id %d in both %s and removed", id, prev)
		}
		seen[id] = "removed"
	}
	for _, r := range report.Modified {
		if prev, ok := seen[r.ID]; ok {
			t.Errorf("id %d in both %s and modified", r.ID, prev)
		}
	}
}

func TestDiff_Empty(t *testing.T) {
	if !Diff(nil, nil).Empty() {
		t.Error("diff of nil snapshots should be empty")
	}
}
