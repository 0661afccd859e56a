package pipeline

import (
	"sync"
	"time"
)

// SourceKind selects which path a job's input takes through the pipeline.
type SourceKind string

const (
	SourceFragments SourceKind = "fragments"
	SourceHTML      SourceKind = "html"
)

// JobStatus represents the state of a structuring job.
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusStructuring JobStatus = "structuring"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
)

// Job tracks the state of a single document transformation.
type Job struct {
	mu sync.Mutex

	ID       string     `json:"job_id"`
	Kind     SourceKind `json:"kind"`
	Filename string     `json:"filename"`

	Status JobStatus `json:"status"`
	Error  string    `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized. Output is only committed on success.
	input  []byte
	result []byte
}

// NewJob creates a queued job holding the raw input.
func NewJob(id string, kind SourceKind, filename string, input []byte) *Job {
	now := time.Now()
	return &Job{
		ID:        id,
		Kind:      kind,
		Filename:  filename,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
		input:     input,
	}
}

// SetStatus transitions the job. A failure reason is recorded verbatim.
func (j *Job) SetStatus(status JobStatus, reason string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	if status == StatusFailed {
		j.Error = reason
	}
	j.UpdatedAt = time.Now()
}

func (j *Job) setResult(out []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = out
	j.Status = StatusCompleted
	j.UpdatedAt = time.Now()
}

// Result returns the canonical document, or nil while the job is unfinished.
func (j *Job) Result() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// Snapshot returns the serializable state under the lock.
func (j *Job) Snapshot() (JobStatus, string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Status, j.Error
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup evicts finished jobs older than the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-s.ttl)
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := (job.Status == StatusCompleted || job.Status == StatusFailed) &&
			job.UpdatedAt.Before(cutoff)
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}
