package handler

import (
	"context"
	"path/filepath"
	"phishsim/entity"
	"phishsim/pkg/goutil"
	"phishsim/repo"
	"testing"

	"github.com/glebarez/sqlite"
)

type testStore struct {
	baseRepo     repo.BaseRepo
	campaignRepo repo.CampaignRepo
	targetRepo   repo.CampaignTargetRepo
	userRepo     repo.TargetUserRepo
	templateRepo repo.TemplateRepo
	eventRepo    repo.TrackingEventRepo
	jobRepo      repo.ScheduledJobRepo
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()

	ctx := context.Background()
	baseRepo, err := repo.NewBaseRepoWithDialector(ctx, sqlite.Open(filepath.Join(t.TempDir(), "handler.db")))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = baseRepo.Close(ctx)
	})
	if err := baseRepo.AutoMigrate(ctx, repo.Models()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	return &testStore{
		baseRepo:     baseRepo,
		campaignRepo: repo.NewCampaignRepo(ctx, baseRepo),
		targetRepo:   repo.NewCampaignTargetRepo(ctx, baseRepo),
		userRepo:     repo.NewTargetUserRepo(ctx, baseRepo),
		templateRepo: repo.NewTemplateRepo(ctx, baseRepo),
		eventRepo:    repo.NewTrackingEventRepo(ctx, baseRepo),
		jobRepo:      repo.NewScheduledJobRepo(ctx, baseRepo),
	}
}

func (s *testStore) createUser(t *testing.T, email, name string) uint64 {
	t.Helper()
	id, err := s.userRepo.Create(context.Background(), &entity.TargetUser{
		Email:    goutil.String(email),
		Name:     goutil.String(name),
		IsActive: goutil.Bool(true),
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return id
}

func (s *testStore) createCampaign(t *testing.T, c *entity.Campaign) uint64 {
	t.Helper()
	if c.Name == nil {
		c.Name = goutil.String("test campaign")
	}
	id, err := s.campaignRepo.Create(context.Background(), c)
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	return id
}

func (s *testStore) getCampaign(t *testing.T, id uint64) *entity.Campaign {
	t.Helper()
	c, err := s.campaignRepo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get campaign: %v", err)
	}
	return c
}

func (s *testStore) events(t *testing.T, campaignID uint64) []*entity.TrackingEvent {
	t.Helper()
	events, err := s.eventRepo.GetByCampaignID(context.Background(), campaignID)
	if err != nil {
		t.Fatalf("get events: %v", err)
	}
	return events
}
