package handler

import (
	"context"
	"errors"
	"net/http"
	"phishsim/config"
	"phishsim/dep"
	"phishsim/entity"
	"phishsim/pkg/errutil"
	"phishsim/pkg/goutil"
	"sync"
	"testing"
	"time"
)

type fakeEngine struct {
	calls   []uint64
	baseURL string
	result  *entity.ExecutionResult
	// onExecute sees the context the run was given
	onExecute func(ctx context.Context)
}

func (e *fakeEngine) Execute(ctx context.Context, campaignID uint64, baseURL string) *entity.ExecutionResult {
	e.calls = append(e.calls, campaignID)
	e.baseURL = baseURL
	if e.onExecute != nil {
		e.onExecute(ctx)
	}
	return e.result
}

// failingScheduler refuses new jobs but cancels through the real scheduler.
type failingScheduler struct {
	dep.Scheduler
}

func (s failingScheduler) Schedule(context.Context, *dep.Invocation, time.Time) (string, error) {
	return "", errors.New("scheduler unavailable")
}

type campaignFixture struct {
	store     *testStore
	engine    *fakeEngine
	scheduler dep.Scheduler
	handler   CampaignHandler
}

func newCampaignFixture(t *testing.T) *campaignFixture {
	t.Helper()

	store := newTestStore(t)
	f := &campaignFixture{
		store:     store,
		engine:    &fakeEngine{result: &entity.ExecutionResult{Success: true, SentCount: 1}},
		scheduler: dep.NewScheduler(context.Background(), store.jobRepo, time.Minute, 10),
	}
	f.handler = NewCampaignHandler(context.Background(), config.Tracking{BaseURL: "https://track.example"}, store.campaignRepo, f.engine, f.scheduler)

	return f
}

func (f *campaignFixture) jobStatus(t *testing.T, handle string) entity.JobStatus {
	t.Helper()
	job, err := f.store.jobRepo.GetByHandle(context.Background(), handle)
	if err != nil {
		t.Fatalf("GetByHandle(%s) err = %v", handle, err)
	}
	return job.Status
}

func errCode(err error) int {
	code, _ := errutil.ParseHttpError(err)
	return code
}

func TestUpdateCampaignSchedule(t *testing.T) {
	f := newCampaignFixture(t)
	ctx := context.Background()

	campaignID := f.store.createCampaign(t, &entity.Campaign{Status: entity.CampaignStatusDraft})
	runAt := goutil.Now() + 3600

	// Draft -> Scheduled with auto send stores one job
	res := new(UpdateCampaignScheduleResponse)
	if err := f.handler.UpdateCampaignSchedule(ctx, &UpdateCampaignScheduleRequest{
		CampaignID:        goutil.Uint64(campaignID),
		Status:            goutil.Uint32(uint32(entity.CampaignStatusScheduled)),
		IsAutoSend:        goutil.Bool(true),
		ScheduledSendTime: goutil.Uint64(runAt),
	}, res); err != nil {
		t.Fatalf("UpdateCampaignSchedule() err = %v", err)
	}

	first := f.store.getCampaign(t, campaignID)
	if first.GetStatus() != entity.CampaignStatusScheduled || first.GetJobID() == "" {
		t.Fatalf("campaign = %v job %q", first.GetStatus(), first.GetJobID())
	}
	if f.jobStatus(t, first.GetJobID()) != entity.JobStatusPending {
		t.Errorf("first job is not pending")
	}

	// same schedule again keeps the job
	if err := f.handler.UpdateCampaignSchedule(ctx, &UpdateCampaignScheduleRequest{
		CampaignID:        goutil.Uint64(campaignID),
		Status:            goutil.Uint32(uint32(entity.CampaignStatusScheduled)),
		ScheduledSendTime: goutil.Uint64(runAt),
	}, new(UpdateCampaignScheduleResponse)); err != nil {
		t.Fatalf("UpdateCampaignSchedule() err = %v", err)
	}
	if got := f.store.getCampaign(t, campaignID).GetJobID(); got != first.GetJobID() {
		t.Errorf("unchanged schedule replaced job %q with %q", first.GetJobID(), got)
	}

	// moving the time replaces the job
	if err := f.handler.UpdateCampaignSchedule(ctx, &UpdateCampaignScheduleRequest{
		CampaignID:        goutil.Uint64(campaignID),
		Status:            goutil.Uint32(uint32(entity.CampaignStatusScheduled)),
		ScheduledSendTime: goutil.Uint64(runAt + 600),
	}, new(UpdateCampaignScheduleResponse)); err != nil {
		t.Fatalf("UpdateCampaignSchedule() err = %v", err)
	}
	second := f.store.getCampaign(t, campaignID)
	if second.GetJobID() == "" || second.GetJobID() == first.GetJobID() {
		t.Fatalf("rescheduled job = %q", second.GetJobID())
	}
	if f.jobStatus(t, first.GetJobID()) != entity.JobStatusCancelled {
		t.Errorf("old job was not cancelled")
	}

	// back to Draft clears the job
	if err := f.handler.UpdateCampaignSchedule(ctx, &UpdateCampaignScheduleRequest{
		CampaignID: goutil.Uint64(campaignID),
		Status:     goutil.Uint32(uint32(entity.CampaignStatusDraft)),
	}, new(UpdateCampaignScheduleResponse)); err != nil {
		t.Fatalf("UpdateCampaignSchedule() err = %v", err)
	}
	draft := f.store.getCampaign(t, campaignID)
	if draft.GetStatus() != entity.CampaignStatusDraft || draft.GetJobID() != "" || draft.GetScheduledSendTime() != 0 {
		t.Errorf("campaign after unschedule = %v job %q time %d", draft.GetStatus(), draft.GetJobID(), draft.GetScheduledSendTime())
	}
	if f.jobStatus(t, second.GetJobID()) != entity.JobStatusCancelled {
		t.Errorf("second job was not cancelled")
	}
}

func TestUpdateCampaignScheduleValidation(t *testing.T) {
	f := newCampaignFixture(t)
	ctx := context.Background()

	draft := f.store.createCampaign(t, &entity.Campaign{Status: entity.CampaignStatusDraft})
	running := f.store.createCampaign(t, &entity.Campaign{Status: entity.CampaignStatusRunning})

	tests := []struct {
		name     string
		req      *UpdateCampaignScheduleRequest
		wantCode int
	}{
		{"missing campaign id", &UpdateCampaignScheduleRequest{Status: goutil.Uint32(uint32(entity.CampaignStatusDraft))}, http.StatusUnprocessableEntity},
		{"missing status", &UpdateCampaignScheduleRequest{CampaignID: goutil.Uint64(draft)}, http.StatusUnprocessableEntity},
		{"status not schedulable", &UpdateCampaignScheduleRequest{CampaignID: goutil.Uint64(draft), Status: goutil.Uint32(uint32(entity.CampaignStatusRunning))}, http.StatusUnprocessableEntity},
		{"scheduled without time", &UpdateCampaignScheduleRequest{CampaignID: goutil.Uint64(draft), Status: goutil.Uint32(uint32(entity.CampaignStatusScheduled))}, http.StatusUnprocessableEntity},
		{"running campaign", &UpdateCampaignScheduleRequest{CampaignID: goutil.Uint64(running), Status: goutil.Uint32(uint32(entity.CampaignStatusDraft))}, http.StatusUnprocessableEntity},
		{"unknown campaign", &UpdateCampaignScheduleRequest{CampaignID: goutil.Uint64(999), Status: goutil.Uint32(uint32(entity.CampaignStatusDraft))}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.handler.UpdateCampaignSchedule(ctx, tt.req, new(UpdateCampaignScheduleResponse))
			if code := errCode(err); code != tt.wantCode {
				t.Errorf("UpdateCampaignSchedule() code = %d, want %d (err %v)", code, tt.wantCode, err)
			}
		})
	}
}

func TestUpdateCampaignScheduleRevertsToDraft(t *testing.T) {
	f := newCampaignFixture(t)
	h := NewCampaignHandler(context.Background(), config.Tracking{}, f.store.campaignRepo, f.engine, failingScheduler{f.scheduler})

	campaignID := f.store.createCampaign(t, &entity.Campaign{Status: entity.CampaignStatusDraft})

	res := new(UpdateCampaignScheduleResponse)
	if err := h.UpdateCampaignSchedule(context.Background(), &UpdateCampaignScheduleRequest{
		CampaignID:        goutil.Uint64(campaignID),
		Status:            goutil.Uint32(uint32(entity.CampaignStatusScheduled)),
		IsAutoSend:        goutil.Bool(true),
		ScheduledSendTime: goutil.Uint64(goutil.Now() + 3600),
	}, res); err != nil {
		t.Fatalf("UpdateCampaignSchedule() err = %v", err)
	}

	c := f.store.getCampaign(t, campaignID)
	if c.GetStatus() != entity.CampaignStatusDraft || c.GetJobID() != "" {
		t.Errorf("campaign = %v job %q, want Draft without job", c.GetStatus(), c.GetJobID())
	}
}

func TestEndAndCancelCampaign(t *testing.T) {
	f := newCampaignFixture(t)
	ctx := context.Background()

	handle, err := f.scheduler.Schedule(ctx, mustInvocation(t, 1), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Schedule() err = %v", err)
	}

	scheduled := f.store.createCampaign(t, &entity.Campaign{Status: entity.CampaignStatusScheduled, JobID: goutil.String(handle)})
	running := f.store.createCampaign(t, &entity.Campaign{Status: entity.CampaignStatusRunning})
	draft := f.store.createCampaign(t, &entity.Campaign{Status: entity.CampaignStatusDraft})

	endRes := new(EndCampaignResponse)
	if err := f.handler.EndCampaign(ctx, &EndCampaignRequest{CampaignID: goutil.Uint64(running)}, endRes); err != nil {
		t.Fatalf("EndCampaign() err = %v", err)
	}
	if c := f.store.getCampaign(t, running); c.GetStatus() != entity.CampaignStatusCompleted || c.GetEndTime() == 0 {
		t.Errorf("ended campaign = %v end %d", c.GetStatus(), c.GetEndTime())
	}

	if err := f.handler.EndCampaign(ctx, &EndCampaignRequest{CampaignID: goutil.Uint64(draft)}, new(EndCampaignResponse)); errCode(err) != http.StatusUnprocessableEntity {
		t.Errorf("EndCampaign() on draft err = %v", err)
	}

	if err := f.handler.CancelCampaign(ctx, &CancelCampaignRequest{CampaignID: goutil.Uint64(scheduled)}, new(CancelCampaignResponse)); err != nil {
		t.Fatalf("CancelCampaign() err = %v", err)
	}
	if c := f.store.getCampaign(t, scheduled); c.GetStatus() != entity.CampaignStatusCancelled || c.GetJobID() != "" {
		t.Errorf("cancelled campaign = %v job %q", c.GetStatus(), c.GetJobID())
	}
	if f.jobStatus(t, handle) != entity.JobStatusCancelled {
		t.Errorf("job of cancelled campaign still pending")
	}

	if err := f.handler.CancelCampaign(ctx, &CancelCampaignRequest{CampaignID: goutil.Uint64(running)}, new(CancelCampaignResponse)); errCode(err) != http.StatusUnprocessableEntity {
		t.Errorf("CancelCampaign() on completed err = %v", err)
	}
}

func TestSendCampaign(t *testing.T) {
	f := newCampaignFixture(t)
	ctx := context.Background()

	handle, err := f.scheduler.Schedule(ctx, mustInvocation(t, 1), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Schedule() err = %v", err)
	}
	campaignID := f.store.createCampaign(t, &entity.Campaign{Status: entity.CampaignStatusScheduled, JobID: goutil.String(handle)})

	res := new(SendCampaignResponse)
	if err := f.handler.SendCampaign(ctx, &SendCampaignRequest{CampaignID: goutil.Uint64(campaignID)}, res); err != nil {
		t.Fatalf("SendCampaign() err = %v", err)
	}
	if !res.Result.Success || len(f.engine.calls) != 1 || f.engine.baseURL != "https://track.example" {
		t.Errorf("SendCampaign() = %+v, engine %+v", res.Result, f.engine)
	}
	if f.store.getCampaign(t, campaignID).GetJobID() != "" || f.jobStatus(t, handle) != entity.JobStatusCancelled {
		t.Errorf("pending job survived a manual send")
	}

	f.engine.result = entity.NewFailedResult("campaign 5 has no recipients")
	res = new(SendCampaignResponse)
	if err := f.handler.SendCampaign(ctx, &SendCampaignRequest{CampaignID: goutil.Uint64(campaignID)}, res); err != nil {
		t.Fatalf("SendCampaign() err = %v", err)
	}
	if res.Result.Success || res.Result.Message != "campaign 5 has no recipients" {
		t.Errorf("SendCampaign() = %+v", res.Result)
	}

	if err := f.handler.SendCampaign(ctx, &SendCampaignRequest{}, new(SendCampaignResponse)); errCode(err) != http.StatusUnprocessableEntity {
		t.Errorf("SendCampaign() without id err = %v", err)
	}
}

type requestKey struct{}

func TestSendCampaignOutlivesRequest(t *testing.T) {
	f := newCampaignFixture(t)
	campaignID := f.store.createCampaign(t, &entity.Campaign{Status: entity.CampaignStatusDraft})

	reqCtx, cancelReq := context.WithCancel(context.WithValue(context.Background(), requestKey{}, "req-1"))
	defer cancelReq()

	var runErr error
	var runValue any
	f.engine.onExecute = func(ctx context.Context) {
		// the client goes away after the first send
		cancelReq()
		runErr = ctx.Err()
		runValue = ctx.Value(requestKey{})
	}

	res := new(SendCampaignResponse)
	if err := f.handler.SendCampaign(reqCtx, &SendCampaignRequest{CampaignID: goutil.Uint64(campaignID)}, res); err != nil {
		t.Fatalf("SendCampaign() err = %v", err)
	}
	if runErr != nil {
		t.Errorf("run context err = %v after request cancel, want nil", runErr)
	}
	if runValue != "req-1" {
		t.Errorf("run context value = %v, want req-1", runValue)
	}
	if !res.Result.Success {
		t.Errorf("SendCampaign() = %+v", res.Result)
	}
}

func TestSendCampaignStopsWithLifecycle(t *testing.T) {
	store := newTestStore(t)
	eng := &fakeEngine{result: &entity.ExecutionResult{Success: true}}
	lifecycle, stop := context.WithCancel(context.Background())
	defer stop()

	h := NewCampaignHandler(lifecycle, config.Tracking{}, store.campaignRepo, eng,
		dep.NewScheduler(context.Background(), store.jobRepo, time.Minute, 10))
	campaignID := store.createCampaign(t, &entity.Campaign{Status: entity.CampaignStatusDraft})

	var runErr error
	eng.onExecute = func(ctx context.Context) {
		stop()
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
		case <-time.After(time.Second):
		}
	}

	if err := h.SendCampaign(context.Background(), &SendCampaignRequest{CampaignID: goutil.Uint64(campaignID)}, new(SendCampaignResponse)); err != nil {
		t.Fatalf("SendCampaign() err = %v", err)
	}
	if !errors.Is(runErr, context.Canceled) {
		t.Errorf("run context err = %v after shutdown, want %v", runErr, context.Canceled)
	}
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()

	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock(7)
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
	if len(k.locks) != 0 {
		t.Errorf("locks left = %d, want 0", len(k.locks))
	}
}

func mustInvocation(t *testing.T, campaignID uint64) *dep.Invocation {
	t.Helper()
	inv, err := dep.NewExecuteCampaignInvocation(campaignID, "https://track.example")
	if err != nil {
		t.Fatalf("NewExecuteCampaignInvocation() err = %v", err)
	}
	return inv
}
