package keyoku

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/url"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/keyoku-dev/keyoku-go/pkg/config"
	"github.com/keyoku-dev/keyoku-go/pkg/errors"
)

// JobStatus is the lifecycle state of a server-side job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition can happen
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid reports whether s is one of the four known states
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// Job is a snapshot of an asynchronous server-side operation
type Job struct {
	ID          string         `json:"id"`
	Status      JobStatus      `json:"status"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

// DecodeResult decodes the free-form result into out, a pointer to a struct
// or map. Field names follow json tags, and numbers are converted loosely
// since the result arrives as generic JSON.
func (j *Job) DecodeResult(out any) error {
	if j.Result == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return errors.Wrap(err, errors.KindValidation, "invalid result target")
	}
	if err := dec.Decode(j.Result); err != nil {
		return errors.Wrapf(err, errors.KindMalformedResponse, "job %s result does not match target", j.ID)
	}
	return nil
}

// RememberResult is the typed result of a completed remember job
type RememberResult struct {
	MemoryIDs []string `json:"memory_ids"`
}

// JobHandle references a job accepted by the service. It holds no network
// state; Get and Wait re-read the job every time.
type JobHandle struct {
	JobID string
	// Status as reported when the job was accepted
	Status JobStatus

	client *Client
}

// Get fetches the current job record
func (h *JobHandle) Get(ctx context.Context) (*Job, error) {
	return h.client.Jobs.Get(ctx, h.JobID)
}

// Wait polls until the job finishes. See JobsResource.Wait.
func (h *JobHandle) Wait(ctx context.Context, opts ...WaitOption) (*Job, error) {
	return h.client.Jobs.Wait(ctx, h.JobID, opts...)
}

// jobAccepted is the {job_id, status} reply to an asynchronous submission.
// Batch creation replies with jobId instead.
type jobAccepted struct {
	JobID      string    `json:"job_id"`
	BatchJobID string    `json:"jobId"`
	Status     JobStatus `json:"status"`
}

func (c *Client) handleFor(accepted *jobAccepted) (*JobHandle, error) {
	if accepted == nil {
		return nil, errors.New(errors.KindMalformedResponse, "response did not include a job id")
	}
	id := accepted.JobID
	if id == "" {
		id = accepted.BatchJobID
	}
	if id == "" {
		return nil, errors.New(errors.KindMalformedResponse, "response did not include a job id")
	}
	status := accepted.Status
	if status == "" {
		status = JobStatusPending
	}
	return &JobHandle{JobID: id, Status: status, client: c}, nil
}

// WaitOption tunes a single Wait call
type WaitOption func(*waitOptions)

type waitOptions struct {
	interval time.Duration
	timeout  time.Duration
	progress func(*Job)
}

// WithPollInterval sets the delay between fetches. Default 500ms.
func WithPollInterval(d time.Duration) WaitOption {
	return func(o *waitOptions) { o.interval = d }
}

// WithWaitTimeout bounds the whole wait. Without it Wait only stops when the
// job finishes or ctx ends.
func WithWaitTimeout(d time.Duration) WaitOption {
	return func(o *waitOptions) { o.timeout = d }
}

// WithProgress calls fn with every non-terminal snapshot
func WithProgress(fn func(*Job)) WaitOption {
	return func(o *waitOptions) { o.progress = fn }
}

// JobsResource reads job status
type JobsResource struct {
	client *Client
}

// Get fetches a job by id
func (r *JobsResource) Get(ctx context.Context, jobID string) (*Job, error) {
	var job *Job
	err := r.client.do(ctx, request{
		method: http.MethodGet,
		path:   "/v1/jobs/" + url.PathEscape(jobID),
		route:  "/v1/jobs/{id}",
	}, &job)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, errors.Newf(errors.KindMalformedResponse, "empty response for job %s", jobID)
	}
	return job, nil
}

// Wait polls the job until it completes, fails, the wait timeout elapses or
// ctx ends. Each fetch is bounded by the client's request timeout on its
// own. A failed job returns a KindJobFailed error carrying the server's
// message; a breached wait timeout returns KindJobWaitTimeout.
func (r *JobsResource) Wait(ctx context.Context, jobID string, opts ...WaitOption) (*Job, error) {
	o := r.client.poll
	for _, opt := range opts {
		opt(&o)
	}
	if o.interval <= 0 {
		o.interval = config.DefaultPollInterval
	}

	start := time.Now()
	for {
		job, err := r.Get(ctx, jobID)
		if err != nil {
			if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, errors.Wrapf(err, errors.KindJobWaitTimeout, "job %s did not complete before the context deadline", jobID).
					WithJobID(jobID)
			}
			return nil, err
		}

		switch job.Status {
		case JobStatusCompleted:
			return job, nil
		case JobStatusFailed:
			return nil, errors.JobFailed(jobID, job.Error).WithCode("job_failed")
		}

		if o.timeout > 0 && time.Since(start) > o.timeout {
			return nil, errors.Newf(errors.KindJobWaitTimeout, "job %s did not complete in %s", jobID, o.timeout).
				WithJobID(jobID)
		}

		if o.progress != nil {
			o.progress(job)
		}

		if err := sleep(ctx, o.interval); err != nil {
			if stderrors.Is(err, context.DeadlineExceeded) {
				return nil, errors.Wrapf(err, errors.KindJobWaitTimeout, "job %s did not complete before the context deadline", jobID).
					WithJobID(jobID)
			}
			return nil, errors.Wrap(err, errors.KindCanceled, "job wait canceled").WithJobID(jobID)
		}
	}
}

// sleep waits for d or until ctx ends, whichever comes first
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
