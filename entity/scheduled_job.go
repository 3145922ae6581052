package entity

import "encoding/json"

type JobStatus uint32

const (
	JobStatusUnknown JobStatus = iota
	JobStatusPending
	JobStatusRunning
	JobStatusDone
	JobStatusCancelled
	JobStatusFailed
)

type ScheduledJob struct {
	Handle     *string         `json:"handle,omitempty"`
	Name       *string         `json:"name,omitempty"`
	Args       json.RawMessage `json:"args,omitempty"`
	RunAt      *uint64         `json:"run_at,omitempty"`
	Status     JobStatus       `json:"status,omitempty"`
	Attempts   *uint32         `json:"attempts,omitempty"`
	LastError  *string         `json:"last_error,omitempty"`
	CreateTime *uint64         `json:"create_time,omitempty"`
	UpdateTime *uint64         `json:"update_time,omitempty"`
}

func (e *ScheduledJob) GetHandle() string {
	if e != nil && e.Handle != nil {
		return *e.Handle
	}
	return ""
}

func (e *ScheduledJob) GetName() string {
	if e != nil && e.Name != nil {
		return *e.Name
	}
	return ""
}

func (e *ScheduledJob) GetRunAt() uint64 {
	if e != nil && e.RunAt != nil {
		return *e.RunAt
	}
	return 0
}

func (e *ScheduledJob) GetStatus() JobStatus {
	if e != nil {
		return e.Status
	}
	return JobStatusUnknown
}
