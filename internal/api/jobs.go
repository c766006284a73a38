package api

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"study-buddy/internal/models"
)

const (
	JobStatusPending = "pending"
	JobStatusDone    = "done"

	// finished jobs are dropped once they are older than this.
	jobRetention = time.Hour
)

// StudyJob tracks one button click from the pending placeholder to the final
// markdown that the frontend polls for.
type StudyJob struct {
	ID         string        `json:"jobId"`
	Action     models.Action `json:"action"`
	Input      string        `json:"input"`
	Status     string        `json:"status"`
	Message    string        `json:"message"`
	Reason     string        `json:"reason,omitempty"`
	OK         bool          `json:"ok"`
	CardsSaved int           `json:"cardsSaved,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

type JobManager struct {
	mu   sync.RWMutex
	jobs map[string]*StudyJob
	now  func() time.Time
}

func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*StudyJob),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// CreateJob registers a job that is already pending with the given placeholder.
func (m *JobManager) CreateJob(action models.Action, input, placeholder string) (string, *StudyJob) {
	now := m.now()
	job := &StudyJob{
		ID:        uuid.NewString(),
		Action:    action,
		Input:     input,
		Status:    JobStatusPending,
		Message:   placeholder,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	m.pruneLocked(now)
	m.jobs[job.ID] = job
	m.mu.Unlock()

	return job.ID, job.clone()
}

func (m *JobManager) GetJob(id string) (*StudyJob, bool) {
	m.mu.RLock()
	job, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return job.clone(), true
}

func (m *JobManager) MarkPending(id, message string) {
	m.withJob(id, func(job *StudyJob) {
		if job.Status == JobStatusDone {
			return
		}
		job.Status = JobStatusPending
		job.Message = message
	})
}

func (m *JobManager) MarkDone(id, message, reason string, ok bool, cardsSaved int) {
	m.withJob(id, func(job *StudyJob) {
		job.Status = JobStatusDone
		job.Message = message
		job.Reason = reason
		job.OK = ok
		job.CardsSaved = cardsSaved
	})
}

func (m *JobManager) withJob(id string, fn func(job *StudyJob)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return
	}
	fn(job)
	job.UpdatedAt = m.now()
}

func (m *JobManager) pruneLocked(now time.Time) {
	for id, job := range m.jobs {
		if job.Status == JobStatusDone && now.Sub(job.UpdatedAt) > jobRetention {
			delete(m.jobs, id)
		}
	}
}

func (job *StudyJob) clone() *StudyJob {
	if job == nil {
		return nil
	}
	copyJob := *job
	return &copyJob
}
