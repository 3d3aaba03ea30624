package model

import "sort"

// ChangeReport is the diff produced by any repository mutation.
type ChangeReport struct {
	// Added holds records whose ids are new in this write.
	Added []WindowRecord `json:"added,omitempty"`
	// Removed holds ids present before the write and absent after it.
	Removed []uint32 `json:"removed,omitempty"`
	// Modified holds records whose id persisted but whose title, minimized
	// flag, owner-hidden flag, or bounds changed.
	Modified []WindowRecord `json:"modified,omitempty"`
}

// Empty reports whether the write changed nothing observable.
func (c ChangeReport) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Modified) == 0
}

// Diff compares two snapshots of one process's windows, keyed by window id.
func Diff(old, curr map[uint32]WindowRecord) ChangeReport {
	var report ChangeReport

	for id, rec := range curr {
		prev, existed := old[id]
		if !existed {
			report.Added = append(report.Added, rec)
			continue
		}
		if recordChanged(prev, rec) {
			report.Modified = append(report.Modified, rec)
		}
	}

	for id := range old {
		if _, exists := curr[id]; !exists {
			report.Removed = append(report.Removed, id)
		}
	}

	sortReport(&report)
	return report
}

// recordChanged applies the modification predicate: only the user-visible
// fields participate, so handle churn alone never produces a Changed event.
func recordChanged(prev, curr WindowRecord) bool {
	return prev.Title != curr.Title ||
		prev.IsMinimized != curr.IsMinimized ||
		prev.IsOwnerHidden != curr.IsOwnerHidden ||
		prev.Bounds != curr.Bounds
}

func sortReport(report *ChangeReport) {
	sort.Slice(report.Added, func(i, j int) bool { return report.Added[i].ID < report.Added[j].ID })
	sort.Slice(report.Modified, func(i, j int) bool { return report.Modified[i].ID < report.Modified[j].ID })
	sort.Slice(report.Removed, func(i, j int) bool { return report.Removed[i] < report.Removed[j] })
}
