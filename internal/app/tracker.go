package service

import (
	"container/list"
	"context"
	"sync"

	"github.com/okian/chunisync/internal/domain/model"
)

// JobTracker remembers the latest status of recent sync jobs. The oldest job
// is forgotten first once maxSize is reached.
type JobTracker struct {
	mu      sync.RWMutex
	byID    map[string]*list.Element
	order   *list.List
	maxSize int
}

// NewJobTracker creates a tracker. maxSize <= 0 means unbounded.
func NewJobTracker(maxSize int) *JobTracker {
	return &JobTracker{
		byID:    make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
	}
}

// SetStatus records st as the job's latest status.
func (t *JobTracker) SetStatus(_ context.Context, st model.JobStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.byID[st.ID]; ok {
		e.Value = st
		return
	}
	if t.maxSize > 0 && t.order.Len() >= t.maxSize {
		oldest := t.order.Front()
		t.order.Remove(oldest)
		delete(t.byID, oldest.Value.(model.JobStatus).ID)
	}
	t.byID[st.ID] = t.order.PushBack(st)
}

// Status returns the latest status of a job.
func (t *JobTracker) Status(_ context.Context, id string) (model.JobStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if e, ok := t.byID[id]; ok {
		return e.Value.(model.JobStatus), true
	}
	return model.JobStatus{}, false
}

// Forget drops a job.
func (t *JobTracker) Forget(_ context.Context, id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.byID[id]; ok {
		t.order.Remove(e)
		delete(t.byID, id)
	}
}

// Counts returns the number of tracked jobs per state.
func (t *JobTracker) Counts() map[model.JobState]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[model.JobState]int)
	for e := t.order.Front(); e != nil; e = e.Next() {
		out[e.Value.(model.JobStatus).State]++
	}
	return out
}
