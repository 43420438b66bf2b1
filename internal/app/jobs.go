package service

import (
	"sync"
	"time"

	"github.com/okian/follicle/internal/domain/model"
)

const minFinishedJobs = 1024

// jobTable tracks job states. Pending and running jobs are always kept;
// finished ones are dropped oldest first once maxFinished is exceeded.
type jobTable struct {
	mu          sync.RWMutex
	states      map[string]model.JobState
	keys        map[string]string // pending job ID -> scoped idempotency key
	finished    []string
	maxFinished int
}

func newJobTable(capacity int) *jobTable {
	return &jobTable{
		states:      make(map[string]model.JobState),
		keys:        make(map[string]string),
		maxFinished: max(capacity, minFinishedJobs),
	}
}

// add registers a pending job together with its reserved key.
func (t *jobTable) add(st model.JobState, key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[st.ID] = st
	if key != "" {
		t.keys[st.ID] = key
	}
}

// begin moves a pending job to running. It returns false when the job is
// no longer pending.
func (t *jobTable) begin(id string, at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.states[id]
	if !ok || st.Status != model.JobPending {
		return false
	}
	st.Status, st.UpdatedAt = model.JobRunning, at
	t.states[id] = st
	delete(t.keys, id)
	return true
}

// finish records the outcome of a job.
func (t *jobTable) finish(id string, status model.JobStatus, reportID, errText string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.states[id]
	st.ID, st.Status, st.ReportID, st.Error, st.UpdatedAt = id, status, reportID, errText, at
	t.finishLocked(st)
}

func (t *jobTable) finishLocked(st model.JobState) {
	t.states[st.ID] = st
	delete(t.keys, st.ID)
	t.finished = append(t.finished, st.ID)
	for len(t.finished) > t.maxFinished {
		delete(t.states, t.finished[0])
		t.finished = t.finished[1:]
	}
}

// abandon fails every job still pending. It returns how many were failed
// and their reserved keys.
func (t *jobTable) abandon(reason string, at time.Time) (int, []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	var keys []string
	for id, st := range t.states {
		if st.Status != model.JobPending {
			continue
		}
		if k, ok := t.keys[id]; ok {
			keys = append(keys, k)
		}
		st.Status, st.Error, st.UpdatedAt = model.JobFailed, reason, at
		t.finishLocked(st)
		n++
	}
	return n, keys
}

func (t *jobTable) remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, id)
	delete(t.keys, id)
}

func (t *jobTable) get(id string) (model.JobState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.states[id]
	return st, ok
}

func (t *jobTable) counts() map[model.JobStatus]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := map[model.JobStatus]int{
		model.JobPending: 0,
		model.JobRunning: 0,
		model.JobDone:    0,
		model.JobFailed:  0,
	}
	for _, st := range t.states {
		out[st.Status]++
	}
	return out
}
