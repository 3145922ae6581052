package dep

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"phishsim/entity"
	"phishsim/repo"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
)

func newTestScheduler(t *testing.T) (Scheduler, repo.ScheduledJobRepo) {
	t.Helper()

	ctx := context.Background()
	baseRepo, err := repo.NewBaseRepoWithDialector(ctx, sqlite.Open(filepath.Join(t.TempDir(), "jobs.db")))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = baseRepo.Close(ctx)
	})
	if err := baseRepo.AutoMigrate(ctx, repo.Models()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	jobRepo := repo.NewScheduledJobRepo(ctx, baseRepo)
	return NewScheduler(ctx, jobRepo, time.Second, 10), jobRepo
}

func TestSchedulerRunsDueJobsOnce(t *testing.T) {
	s, jobRepo := newTestScheduler(t)
	ctx := context.Background()

	var got []ExecuteCampaignArgs
	s.Register(InvocationExecuteCampaign, func(_ context.Context, args json.RawMessage) error {
		var a ExecuteCampaignArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return err
		}
		got = append(got, a)
		return nil
	})

	at := time.Unix(1_000, 0)
	inv, err := NewExecuteCampaignInvocation(42, "https://track.example")
	if err != nil {
		t.Fatalf("NewExecuteCampaignInvocation() err = %v", err)
	}
	handle, err := s.Schedule(ctx, inv, at)
	if err != nil || handle == "" {
		t.Fatalf("Schedule() = %q, %v", handle, err)
	}

	if n, err := s.RunOnce(ctx, at.Add(-time.Second)); err != nil || n != 0 {
		t.Fatalf("RunOnce() before due = %d, %v", n, err)
	}
	if n, err := s.RunOnce(ctx, at); err != nil || n != 1 {
		t.Fatalf("RunOnce() at due = %d, %v", n, err)
	}
	if n, err := s.RunOnce(ctx, at.Add(time.Hour)); err != nil || n != 0 {
		t.Fatalf("RunOnce() after done = %d, %v", n, err)
	}

	if len(got) != 1 || got[0].CampaignID != 42 || got[0].BaseURL != "https://track.example" {
		t.Errorf("invocations = %+v", got)
	}

	job, err := jobRepo.GetByHandle(ctx, handle)
	if err != nil || job.GetStatus() != entity.JobStatusDone {
		t.Errorf("job = %+v, %v, want done", job, err)
	}
}

func TestSchedulerCancel(t *testing.T) {
	s, jobRepo := newTestScheduler(t)
	ctx := context.Background()

	calls := 0
	s.Register("noop", func(context.Context, json.RawMessage) error {
		calls++
		return nil
	})

	handle, err := s.Schedule(ctx, &Invocation{Name: "noop"}, time.Unix(10, 0))
	if err != nil {
		t.Fatalf("Schedule() err = %v", err)
	}
	if err := s.Cancel(ctx, handle); err != nil {
		t.Fatalf("Cancel() err = %v", err)
	}
	if err := s.Cancel(ctx, handle); err != nil {
		t.Fatalf("second Cancel() err = %v", err)
	}
	if _, err := s.RunOnce(ctx, time.Unix(100, 0)); err != nil {
		t.Fatalf("RunOnce() err = %v", err)
	}
	if calls != 0 {
		t.Errorf("cancelled job ran %d times", calls)
	}

	job, _ := jobRepo.GetByHandle(ctx, handle)
	if job.GetStatus() != entity.JobStatusCancelled {
		t.Errorf("status = %v, want cancelled", job.GetStatus())
	}

	if err := s.Cancel(ctx, "unknown"); !errors.Is(err, repo.ErrScheduledJobNotFound) {
		t.Errorf("Cancel() unknown err = %v, want not found", err)
	}
}

func TestSchedulerMarksFailures(t *testing.T) {
	s, jobRepo := newTestScheduler(t)
	ctx := context.Background()

	s.Register("boom", func(context.Context, json.RawMessage) error {
		return errors.New("smtp down")
	})

	failing, _ := s.Schedule(ctx, &Invocation{Name: "boom"}, time.Unix(10, 0))
	unknown, _ := s.Schedule(ctx, &Invocation{Name: "missing"}, time.Unix(10, 0))

	if n, err := s.RunOnce(ctx, time.Unix(10, 0)); err != nil || n != 2 {
		t.Fatalf("RunOnce() = %d, %v", n, err)
	}

	for _, handle := range []string{failing, unknown} {
		job, err := jobRepo.GetByHandle(ctx, handle)
		if err != nil {
			t.Fatalf("GetByHandle() err = %v", err)
		}
		if job.GetStatus() != entity.JobStatusFailed || job.LastError == nil {
			t.Errorf("job %s = %+v, want failed with error", handle, job)
		}
	}
}
