package dep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"phishsim/entity"
	"phishsim/pkg/goutil"
	"phishsim/repo"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const InvocationExecuteCampaign = "execute_campaign"

var ErrUnknownInvocation = errors.New("unknown invocation")

// Invocation is a named call with JSON arguments, replayed verbatim when its job fires.
type Invocation struct {
	Name string
	Args json.RawMessage
}

type ExecuteCampaignArgs struct {
	CampaignID uint64 `json:"campaign_id"`
	BaseURL    string `json:"base_url"`
}

func NewExecuteCampaignInvocation(campaignID uint64, baseURL string) (*Invocation, error) {
	args, err := json.Marshal(&ExecuteCampaignArgs{
		CampaignID: campaignID,
		BaseURL:    baseURL,
	})
	if err != nil {
		return nil, err
	}
	return &Invocation{
		Name: InvocationExecuteCampaign,
		Args: args,
	}, nil
}

type InvocationFunc func(ctx context.Context, args json.RawMessage) error

type Scheduler interface {
	Schedule(ctx context.Context, inv *Invocation, at time.Time) (string, error)
	// Cancel stops a pending job. Jobs that already ran or were cancelled are left alone.
	Cancel(ctx context.Context, handle string) error
	Register(name string, fn InvocationFunc)
	// RunOnce fires the jobs due at now and returns how many it ran.
	RunOnce(ctx context.Context, now time.Time) (int, error)
	Run(ctx context.Context) error
}

type scheduler struct {
	jobRepo      repo.ScheduledJobRepo
	pollInterval time.Duration
	batchSize    uint32

	mu    sync.RWMutex
	funcs map[string]InvocationFunc
}

func NewScheduler(_ context.Context, jobRepo repo.ScheduledJobRepo, pollInterval time.Duration, batchSize uint32) Scheduler {
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}
	if batchSize == 0 {
		batchSize = 20
	}
	return &scheduler{
		jobRepo:      jobRepo,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		funcs:        make(map[string]InvocationFunc),
	}
}

func (s *scheduler) Register(name string, fn InvocationFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fn == nil {
		panic("invocation func is nil")
	}

	if _, ok := s.funcs[name]; ok {
		panic(fmt.Sprintf("invocation %s already registered", name))
	}

	s.funcs[name] = fn
}

func (s *scheduler) Schedule(ctx context.Context, inv *Invocation, at time.Time) (string, error) {
	handle := uuid.NewString()
	now := goutil.Now()

	if err := s.jobRepo.Create(ctx, &entity.ScheduledJob{
		Handle:     goutil.String(handle),
		Name:       goutil.String(inv.Name),
		Args:       inv.Args,
		RunAt:      goutil.Uint64(uint64(at.Unix())),
		Status:     entity.JobStatusPending,
		Attempts:   goutil.Uint32(0),
		CreateTime: goutil.Uint64(now),
		UpdateTime: goutil.Uint64(now),
	}); err != nil {
		log.Ctx(ctx).Error().Msgf("create scheduled job failed: %v, name: %s", err, inv.Name)
		return "", err
	}

	log.Ctx(ctx).Info().Msgf("job scheduled, handle: %s, name: %s, run_at: %v", handle, inv.Name, at.UTC())

	return handle, nil
}

func (s *scheduler) Cancel(ctx context.Context, handle string) error {
	job, err := s.jobRepo.GetByHandle(ctx, handle)
	if err != nil {
		return err
	}

	if job.GetStatus() != entity.JobStatusPending {
		return nil
	}

	if _, err := s.jobRepo.UpdateStatusFrom(ctx, handle, entity.JobStatusPending, entity.JobStatusCancelled, ""); err != nil {
		log.Ctx(ctx).Error().Msgf("cancel scheduled job failed: %v, handle: %s", err, handle)
		return err
	}

	return nil
}

func (s *scheduler) RunOnce(ctx context.Context, now time.Time) (int, error) {
	jobs, err := s.jobRepo.GetDue(ctx, uint64(now.Unix()), s.batchSize)
	if err != nil {
		return 0, err
	}

	var ran int
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}

		won, err := s.jobRepo.UpdateStatusFrom(ctx, job.GetHandle(), entity.JobStatusPending, entity.JobStatusRunning, "")
		if err != nil {
			log.Ctx(ctx).Error().Msgf("claim job failed: %v, handle: %s", err, job.GetHandle())
			continue
		}
		if !won {
			continue
		}

		ran++

		status, lastError := entity.JobStatusDone, ""
		if err := s.invoke(ctx, job); err != nil {
			log.Ctx(ctx).Error().Msgf("job failed: %v, handle: %s, name: %s", err, job.GetHandle(), job.GetName())
			status, lastError = entity.JobStatusFailed, err.Error()
		}

		if _, err := s.jobRepo.UpdateStatusFrom(ctx, job.GetHandle(), entity.JobStatusRunning, status, lastError); err != nil {
			log.Ctx(ctx).Error().Msgf("finish job failed: %v, handle: %s", err, job.GetHandle())
		}
	}

	return ran, nil
}

func (s *scheduler) invoke(ctx context.Context, job *entity.ScheduledJob) (err error) {
	s.mu.RLock()
	fn, ok := s.funcs[job.GetName()]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInvocation, job.GetName())
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	return fn(ctx, job.Args)
}

func (s *scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		if n, err := s.RunOnce(ctx, time.Now()); err != nil {
			log.Ctx(ctx).Error().Msgf("scheduler pass failed: %v", err)
		} else if n > 0 {
			log.Ctx(ctx).Info().Msgf("scheduler pass ran %d jobs", n)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
