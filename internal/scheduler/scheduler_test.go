package scheduler

import (
	"testing"

	"github.com/findhomeng/yard/internal/store"
)

func TestSchedulerAddJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	// Should add a valid cron job without error
	if err := s.AddJob("* * * * *", func() {}); err != nil {
		t.Errorf("Expected no error adding job, got %v", err)
	}
	if err := s.AddJob("not a cron expr", func() {}); err == nil {
		t.Error("Expected error for invalid cron expression")
	}
}

func TestScheduleCleanup(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	st := store.NewInMemoryStore()
	if err := s.ScheduleCleanup("", st); err != nil {
		t.Errorf("Expected no error with default schedule, got %v", err)
	}
	if err := s.ScheduleCleanup("*/5 * * * *", st); err != nil {
		t.Errorf("Expected no error with custom schedule, got %v", err)
	}
}
