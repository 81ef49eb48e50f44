package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"meridian/internal/config"
)

func noop(context.Context) error { return nil }

func TestAddAndNext(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	s := New(loc, time.Minute, nil)

	jobs := DailyJobs(config.Scheduler{Ingest: "0 5 * * *", Generate: "30 5 * * *"}, noop, noop, noop)
	for _, job := range jobs {
		if err := s.Add(job); err != nil {
			t.Fatalf("Add(%s) failed: %v", job.Name, err)
		}
	}

	s.Start()
	defer s.Stop(context.Background())

	next, ok := s.Next("generate")
	if !ok {
		t.Fatal("generate job not registered")
	}
	local := next.In(loc)
	if local.Hour() != 5 || local.Minute() != 30 {
		t.Errorf("next generate run = %v", local)
	}
	if _, ok := s.Next("send"); ok {
		t.Error("empty spec should leave the job unscheduled")
	}
}

func TestAddInvalidSpec(t *testing.T) {
	s := New(nil, 0, nil)
	if err := s.Add(Job{Name: "bad", Spec: "every day", Run: noop}); err == nil {
		t.Fatal("expected error for invalid spec")
	}
}

func TestRunBoundsContext(t *testing.T) {
	s := New(nil, 50*time.Millisecond, nil)

	var deadline bool
	s.run(Job{Name: "slow", Run: func(ctx context.Context) error {
		_, deadline = ctx.Deadline()
		<-ctx.Done()
		return ctx.Err()
	}})
	if !deadline {
		t.Error("job context has no deadline")
	}

	called := false
	s.run(Job{Name: "failing", Run: func(context.Context) error {
		called = true
		return errors.New("boom")
	}})
	if !called {
		t.Error("job not run")
	}
}
