package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"dutyline/internal/engine"
)

const reminderPrefix = "Task reminder:"

// Scheduler is the daily reminder trigger. It arms at start, fires once per
// day at the configured wall-clock time in the configured timezone, re-arms
// immediately after each fire, and stops only when the context is cancelled.
type Scheduler struct {
	Engine   engine.Engine
	Notifier engine.Notifier
	Loc      *time.Location
	Hour     int
	Minute   int
	Now      func() time.Time
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// NextFire returns the next wall-clock trigger instant strictly after now.
func (s *Scheduler) NextFire(now time.Time) time.Time {
	loc := s.Loc
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.Hour, s.Minute, 0, 0, loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run blocks until ctx is cancelled, firing at each scheduled instant.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		next := s.NextFire(s.now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			s.Fire(ctx)
		}
	}
}

// Fire sends one reminder per open assigned task to its assignee. The
// trigger is unconditional per task, not per due date; an assignee holding N
// tasks gets N messages. A failed send is logged and never blocks the rest
// of the fire.
func (s *Scheduler) Fire(ctx context.Context) {
	tasks, err := s.Engine.Repo.ListOpenAssigned(ctx)
	if err != nil {
		log.Printf("reminder fire: list tasks: %v", err)
		return
	}
	sent := 0
	for _, t := range tasks {
		if t.AssigneeID == nil {
			continue
		}
		msg := fmt.Sprintf("%s %s", reminderPrefix, t.Description)
		if err := s.Notifier.Send(ctx, *t.AssigneeID, msg); err != nil {
			log.Printf("reminder for task %d to %d failed: %v", t.ID, *t.AssigneeID, err)
			continue
		}
		sent++
	}
	log.Printf("reminder fire: %d/%d reminders sent", sent, len(tasks))
}
