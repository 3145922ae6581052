package service

import "context"

// Job is a one-shot batch task started by name from job/main.go. CleanUp runs only after a successful Run.
type Job interface {
	// Init acquires what Run needs, e.g. a consumer group session.
	Init(ctx context.Context) error
	Run(ctx context.Context) error
	CleanUp(ctx context.Context) error
}
