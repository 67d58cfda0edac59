package worker

import (
	"context"
	"sort"
	"sync"
	"time"

	"reply-assistant/internal/domain"
	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*memStore)(nil)

// memStore is an in-memory JobRepository with the same claim semantics as
// the postgres store.
type memStore struct {
	mu   sync.Mutex
	jobs map[string]*model.Job
	seq  int
	ord  map[string]int
}

func newMemStore() *memStore {
	return &memStore{jobs: map[string]*model.Job{}, ord: map[string]int{}}
}

func (s *memStore) Enqueue(_ context.Context, _ repository.Tx, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	s.seq++
	s.ord[job.ID] = s.seq
	return nil
}

func (s *memStore) Claim(_ context.Context, queue model.QueueName) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ready []*model.Job
	now := time.Now()
	for _, j := range s.jobs {
		if j.Queue == queue && j.Status == model.JobStatusPending && !j.RunAt.After(now) {
			ready = append(ready, j)
		}
	}
	if len(ready) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.Slice(ready, func(a, b int) bool { return s.ord[ready[a].ID] < s.ord[ready[b].ID] })
	j := ready[0]
	j.Status = model.JobStatusProcessing
	j.Attempts++
	j.UpdatedAt = now
	cp := *j
	return &cp, nil
}

func (s *memStore) update(id string, fn func(j *model.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(j)
	j.UpdatedAt = time.Now()
	return nil
}

func (s *memStore) Complete(_ context.Context, id string, result []byte) error {
	return s.update(id, func(j *model.Job) { j.Status = model.JobStatusCompleted; j.Result = result })
}

func (s *memStore) Retry(_ context.Context, id string, runAt time.Time, lastErr string) error {
	return s.update(id, func(j *model.Job) {
		j.Status = model.JobStatusPending
		j.RunAt = runAt
		j.LastError = lastErr
	})
}

func (s *memStore) Release(_ context.Context, id string) error {
	return s.update(id, func(j *model.Job) {
		j.Status = model.JobStatusPending
		if j.Attempts > 0 {
			j.Attempts--
		}
	})
}

func (s *memStore) Fail(_ context.Context, id string, lastErr string) error {
	return s.update(id, func(j *model.Job) { j.Status = model.JobStatusFailed; j.LastError = lastErr })
}

func (s *memStore) RequeueStale(_ context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, j := range s.jobs {
		if j.Status == model.JobStatusProcessing && time.Since(j.UpdatedAt) > olderThan {
			j.Status = model.JobStatusPending
			n++
		}
	}
	return n, nil
}

func (s *memStore) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *memStore) count(status model.JobStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, j := range s.jobs {
		if j.Status == status {
			n++
		}
	}
	return n
}
