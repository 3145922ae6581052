package repo

import (
	"context"
	"errors"
	"phishsim/entity"
	"phishsim/pkg/errutil"
	"phishsim/pkg/goutil"

	"gorm.io/gorm"
)

var (
	ErrScheduledJobNotFound = errutil.NotFoundError(errors.New("scheduled job not found"))
)

type ScheduledJob struct {
	Handle     *string `gorm:"primaryKey;size:64"`
	Name       *string `gorm:"size:100"`
	Args       *string `gorm:"type:text"`
	RunAt      *uint64 `gorm:"index:idx_status_run_at"`
	Status     *uint32 `gorm:"index:idx_status_run_at"`
	Attempts   *uint32
	LastError  *string `gorm:"size:1000"`
	CreateTime *uint64
	UpdateTime *uint64
}

func (m *ScheduledJob) TableName() string {
	return "scheduled_job_tab"
}

func (m *ScheduledJob) GetStatus() uint32 {
	if m != nil && m.Status != nil {
		return *m.Status
	}
	return 0
}

type ScheduledJobRepo interface {
	Create(ctx context.Context, job *entity.ScheduledJob) error
	GetByHandle(ctx context.Context, handle string) (*entity.ScheduledJob, error)
	// UpdateStatusFrom moves a job from one status to another and reports whether this caller won the transition.
	UpdateStatusFrom(ctx context.Context, handle string, from, to entity.JobStatus, lastError string) (bool, error)
	GetDue(ctx context.Context, now uint64, limit uint32) ([]*entity.ScheduledJob, error)
}

type scheduledJobRepo struct {
	baseRepo BaseRepo
}

func NewScheduledJobRepo(_ context.Context, baseRepo BaseRepo) ScheduledJobRepo {
	return &scheduledJobRepo{
		baseRepo: baseRepo,
	}
}

func (r *scheduledJobRepo) Create(ctx context.Context, job *entity.ScheduledJob) error {
	return r.baseRepo.Create(ctx, ToScheduledJobModel(job))
}

func (r *scheduledJobRepo) GetByHandle(ctx context.Context, handle string) (*entity.ScheduledJob, error) {
	job := new(ScheduledJob)

	if err := r.baseRepo.Get(ctx, job, &Filter{
		Conditions: []*Condition{
			{
				Field: "handle",
				Value: handle,
				Op:    OpEq,
			},
		},
	}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduledJobNotFound
		}
		return nil, err
	}

	return ToScheduledJob(job), nil
}

func (r *scheduledJobRepo) UpdateStatusFrom(ctx context.Context, handle string, from, to entity.JobStatus, lastError string) (bool, error) {
	values := map[string]interface{}{
		"status":      uint32(to),
		"update_time": goutil.Now(),
	}
	if to == entity.JobStatusRunning {
		values["attempts"] = gorm.Expr("COALESCE(attempts, 0) + 1")
	}
	if lastError != "" {
		values["last_error"] = lastError
	}

	affected, err := r.baseRepo.UpdateWhere(ctx, new(ScheduledJob), &Filter{
		Conditions: []*Condition{
			{
				Field: "handle",
				Value: handle,
				Op:    OpEq,
			},
			{
				Field: "status",
				Value: uint32(from),
				Op:    OpEq,
			},
		},
	}, values)
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (r *scheduledJobRepo) GetDue(ctx context.Context, now uint64, limit uint32) ([]*entity.ScheduledJob, error) {
	res, _, err := r.baseRepo.GetMany(ctx, new(ScheduledJob), &Filter{
		Conditions: []*Condition{
			{
				Field: "status",
				Value: uint32(entity.JobStatusPending),
				Op:    OpEq,
			},
			{
				Field: "run_at",
				Value: now,
				Op:    OpLte,
			},
		},
		Pagination: &Pagination{
			Limit: goutil.Uint32(limit),
		},
		Order: "run_at ASC",
	})
	if err != nil {
		return nil, err
	}

	jobs := make([]*entity.ScheduledJob, len(res))
	for i, m := range res {
		jobs[i] = ToScheduledJob(m.(*ScheduledJob))
	}

	return jobs, nil
}

func ToScheduledJob(job *ScheduledJob) *entity.ScheduledJob {
	var args []byte
	if job.Args != nil {
		args = []byte(*job.Args)
	}
	return &entity.ScheduledJob{
		Handle:     job.Handle,
		Name:       job.Name,
		Args:       args,
		RunAt:      job.RunAt,
		Status:     entity.JobStatus(job.GetStatus()),
		Attempts:   job.Attempts,
		LastError:  job.LastError,
		CreateTime: job.CreateTime,
		UpdateTime: job.UpdateTime,
	}
}

func ToScheduledJobModel(job *entity.ScheduledJob) *ScheduledJob {
	var args *string
	if len(job.Args) > 0 {
		args = goutil.String(string(job.Args))
	}
	return &ScheduledJob{
		Handle:     job.Handle,
		Name:       job.Name,
		Args:       args,
		RunAt:      job.RunAt,
		Status:     goutil.Uint32(uint32(job.GetStatus())),
		Attempts:   job.Attempts,
		LastError:  job.LastError,
		CreateTime: job.CreateTime,
		UpdateTime: job.UpdateTime,
	}
}
