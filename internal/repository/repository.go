// Package repository holds the authoritative in-memory window cache: a
// thread-safe mapping from process id to that process's window records, with
// merge-on-write semantics and time-bounded preview validity.
package repository

import (
	"image"
	"sort"
	"sync"
	"time"

	"github.com/mpratt27/winsight/internal/model"
)

// DefaultPreviewTTL bounds how long a cached preview counts as fresh.
const DefaultPreviewTTL = 30 * time.Second

// Repository is the cache. One lock guards all state; operations touch only
// in-memory maps, so the lock is never held across I/O.
type Repository struct {
	mu         sync.Mutex
	entries    map[int]map[uint32]model.WindowRecord
	ignored    map[int]struct{}
	previewTTL time.Duration
	now        func() time.Time
}

// Option configures a Repository.
type Option func(*Repository)

// WithPreviewTTL overrides the preview freshness window.
func WithPreviewTTL(ttl time.Duration) Option {
	return func(r *Repository) {
		if ttl > 0 {
			r.previewTTL = ttl
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// New returns an empty repository.
func New(opts ...Option) *Repository {
	r := &Repository{
		entries:    make(map[int]map[uint32]model.WindowRecord),
		ignored:    make(map[int]struct{}),
		previewTTL: DefaultPreviewTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PreviewTTL returns the configured preview freshness window.
func (r *Repository) PreviewTTL() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.previewTTL
}

// Store merges windows into pid's entry set and returns the resulting diff.
//
// Merge, never replace: a record already cached stays cached even when
// windows omits it. The compositor sometimes reports an empty spaces list
// for windows on other virtual desktops mid-switch, making discovery omit
// them; replacing on write would evict and immediately re-admit such windows
// and flood subscribers with spurious disappeared/appeared pairs. A record
// leaves the cache only through Purify, Modify, Clear, or IgnorePID.
//
// A stored record that arrives without a preview inherits the cached
// record's preview and timestamp for the same id.
func (r *Repository) Store(pid int, windows []model.WindowRecord) model.ChangeReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, skip := r.ignored[pid]; skip {
		return model.ChangeReport{}
	}

	old := r.entries[pid]
	merged := make(map[uint32]model.WindowRecord, len(old)+len(windows))
	for id, rec := range old {
		merged[id] = rec
	}

	for _, w := range windows {
		w.OwnerPID = pid
		if w.CachedPreview == nil {
			if prev, ok := merged[w.ID]; ok && prev.CachedPreview != nil {
				w.CachedPreview = prev.CachedPreview
				w.PreviewTimestamp = prev.PreviewTimestamp
			}
		}
		merged[w.ID] = w
	}

	r.writeLocked(pid, merged)
	return model.Diff(old, merged)
}

// Modify snapshots pid's records, lets mutate edit them in place (including
// deleting entries), writes the result back, and returns the diff.
func (r *Repository) Modify(pid int, mutate func(records map[uint32]*model.WindowRecord)) model.ChangeReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.entries[pid]
	working := make(map[uint32]*model.WindowRecord, len(old))
	for id, rec := range old {
		clone := rec
		working[id] = &clone
	}

	mutate(working)

	curr := make(map[uint32]model.WindowRecord, len(working))
	for id, rec := range working {
		curr[id] = *rec
	}

	r.writeLocked(pid, curr)
	return model.Diff(old, curr)
}

// Purify drops every record of pid whose handle fails valid and returns the
// retained records. The lock is held across validation so a concurrent Clear
// cannot interleave; validators only touch handle attributes and stay brief.
func (r *Repository) Purify(pid int, valid func(model.WindowRecord) bool) []model.WindowRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.entries[pid]
	retained := make(map[uint32]model.WindowRecord, len(old))
	for id, rec := range old {
		if valid(rec) {
			retained[id] = rec
		}
	}
	r.writeLocked(pid, retained)
	return sortedLocked(retained)
}

// Clear atomically reads and removes every record of pid. Used on process
// termination.
func (r *Repository) Clear(pid int) []model.WindowRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.entries[pid]
	delete(r.entries, pid)
	out := make([]model.WindowRecord, 0, len(old))
	for _, rec := range old {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// writeLocked installs pid's record set, holding the pid-key invariant:
// a key exists iff its set is non-empty.
func (r *Repository) writeLocked(pid int, records map[uint32]model.WindowRecord) {
	if len(records) == 0 {
		delete(r.entries, pid)
		return
	}
	r.entries[pid] = records
}

// Windows returns pid's cached records, sorted by id.
func (r *Repository) Windows(pid int) []model.WindowRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedLocked(r.entries[pid])
}

// WindowsByBundleID returns every cached record whose owner carries the
// given bundle identifier.
func (r *Repository) WindowsByBundleID(bundleID string) []model.WindowRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.WindowRecord
	for _, records := range r.entries {
		for _, rec := range records {
			if rec.OwnerBundleID == bundleID {
				out = append(out, rec)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Window returns the cached record with the given compositor id.
func (r *Repository) Window(id uint32) (model.WindowRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, records := range r.entries {
		if rec, ok := records[id]; ok {
			return rec, true
		}
	}
	return model.WindowRecord{}, false
}

// Record returns pid's cached record for id, if present.
func (r *Repository) Record(pid int, id uint32) (model.WindowRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.entries[pid][id]
	return rec, ok
}

// All returns every cached record grouped by pid.
func (r *Repository) All() map[int][]model.WindowRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int][]model.WindowRecord, len(r.entries))
	for pid, records := range r.entries {
		out[pid] = sortedLocked(records)
	}
	return out
}

// TrackedPIDs returns the pids with at least one cached record, sorted.
func (r *Repository) TrackedPIDs() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, 0, len(r.entries))
	for pid := range r.entries {
		out = append(out, pid)
	}
	sort.Ints(out)
	return out
}

func sortedLocked(records map[uint32]model.WindowRecord) []model.WindowRecord {
	out := make([]model.WindowRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IgnorePID excludes pid from tracking and drops anything cached for it.
func (r *Repository) IgnorePID(pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ignored[pid] = struct{}{}
	delete(r.entries, pid)
}

// UnignorePID re-admits pid.
func (r *Repository) UnignorePID(pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ignored, pid)
}

// Ignored reports whether pid is excluded from tracking.
func (r *Repository) Ignored(pid int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ignored[pid]
	return ok
}

// StorePreview attaches a captured image to the record with the given id and
// stamps it with the current time. Returns false when no record holds id.
func (r *Repository) StorePreview(id uint32, img image.Image) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for pid, records := range r.entries {
		if rec, ok := records[id]; ok {
			rec.CachedPreview = img
			rec.PreviewTimestamp = r.now()
			records[id] = rec
			r.entries[pid] = records
			return true
		}
	}
	return false
}

// Preview returns the cached preview for id, if present and regardless of
// freshness.
func (r *Repository) Preview(id uint32) (image.Image, time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, records := range r.entries {
		if rec, ok := records[id]; ok && rec.CachedPreview != nil {
			return rec.CachedPreview, rec.PreviewTimestamp, true
		}
	}
	return nil, time.Time{}, false
}

// HasFreshPreview reports whether id's preview is within the freshness
// window.
func (r *Repository) HasFreshPreview(id uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, records := range r.entries {
		if rec, ok := records[id]; ok {
			return r.freshLocked(rec)
		}
	}
	return false
}

// WindowIDsWithFreshPreviews returns the ids of pid's records whose preview
// is within the freshness window, sorted.
func (r *Repository) WindowIDsWithFreshPreviews(pid int) []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uint32
	for id, rec := range r.entries[pid] {
		if r.freshLocked(rec) {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PurgeExpiredPreviews drops every preview older than the freshness window.
// Records themselves stay cached.
func (r *Repository) PurgeExpiredPreviews() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for pid, records := range r.entries {
		for id, rec := range records {
			if rec.CachedPreview != nil && !r.freshLocked(rec) {
				rec.CachedPreview = nil
				rec.PreviewTimestamp = time.Time{}
				records[id] = rec
			}
		}
		r.entries[pid] = records
	}
}

func (r *Repository) freshLocked(rec model.WindowRecord) bool {
	if rec.CachedPreview == nil {
		return false
	}
	return r.now().Sub(rec.PreviewTimestamp) <= r.previewTTL
}
