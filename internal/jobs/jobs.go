package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"zone-mapper/internal/calculator"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

var ErrNotFound = errors.New("jobs: job not found")

// Result is what a finished job exposes for download and display.
type Result struct {
	Files    map[string]string  `json:"-"`
	Kinds    []string           `json:"files"`
	Families int                `json:"families"`
	Geocoded int                `json:"geocoded"`
	Summary  calculator.Summary `json:"summary"`
	Warnings []string           `json:"warnings,omitempty"`
}

type Job struct {
	ID        string
	CreatedAt time.Time
	// InputPath is the uploaded file the job reads, removed with the job.
	InputPath string

	mu       sync.RWMutex
	status   Status
	logs     []string
	progress int // 0-100
	result   *Result
	err      string
	cancel   context.CancelFunc
}

// Snapshot is a consistent copy of a job's state.
type Snapshot struct {
	ID       string   `json:"id"`
	Status   Status   `json:"status"`
	Logs     []string `json:"logs"`
	Progress int      `json:"progress"`
	Result   *Result  `json:"result,omitempty"`
	Error    string   `json:"error,omitempty"`
}

func NewJob() *Job {
	return &Job{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		status:    StatusRunning,
		logs:      []string{},
	}
}

func stamp(msg string) string {
	return fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), msg)
}

func (j *Job) Log(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.logs = append(j.logs, stamp(msg))
}

func (j *Job) SetProgress(current, total int, msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if total > 0 {
		j.progress = int(float64(current) / float64(total) * 100)
	}
	if msg != "" {
		j.logs = append(j.logs, stamp(msg))
	}
}

// Bind attaches the cancel function of the job's context.
func (j *Job) Bind(cancel context.CancelFunc) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancel = cancel
}

// Cancel asks a running job to stop. It reports whether the job was running.
func (j *Job) Cancel() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != StatusRunning {
		return false
	}
	j.logs = append(j.logs, stamp("Cancellation requested by the user..."))
	if j.cancel != nil {
		j.cancel()
	}
	return true
}

func (j *Job) Fail(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusError
	j.err = msg
	j.logs = append(j.logs, "[ERROR] "+msg)
}

func (j *Job) Cancelled() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusCancelled
	j.logs = append(j.logs, stamp("Job cancelled."))
}

func (j *Job) Finish(res *Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusDone
	j.result = res
	j.progress = 100
	j.logs = append(j.logs, stamp("Processing completed successfully."))
}

func (j *Job) Status() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// File returns the path of a produced file of the given kind.
func (j *Job) File(kind string) (string, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.result == nil {
		return "", false
	}
	path, ok := j.result.Files[kind]
	return path, ok
}

func (j *Job) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	logs := make([]string, len(j.logs))
	copy(logs, j.logs)
	return Snapshot{
		ID:       j.ID,
		Status:   j.status,
		Logs:     logs,
		Progress: j.progress,
		Result:   j.result,
		Error:    j.err,
	}
}

// Store keeps jobs in memory for the lifetime of the process.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job)}
}

func (s *Store) Add(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *Store) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return job, nil
}

// Prune drops finished jobs created before the cutoff and returns them.
func (s *Store) Prune(cutoff time.Time) []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []*Job
	for id, job := range s.jobs {
		if job.CreatedAt.Before(cutoff) && job.Status() != StatusRunning {
			delete(s.jobs, id)
			removed = append(removed, job)
		}
	}
	return removed
}
