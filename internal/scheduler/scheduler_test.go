package scheduler_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"dutyline/internal/config"
	"dutyline/internal/db"
	"dutyline/internal/engine"
	"dutyline/internal/migrate"
	"dutyline/internal/scheduler"
)

const testConfigYAML = `auth:
  admin_code: admin-code
  personnel_code: staff-code
timezone: UTC
reminder:
  hour: 8
  minute: 0
`

type sentMessage struct {
	ChatID int64
	Text   string
}

type fakeNotifier struct {
	mu      sync.Mutex
	Sends   []sentMessage
	FailFor int64
}

func (f *fakeNotifier) Send(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailFor != 0 && chatID == f.FailFor {
		return errors.New("unreachable identity")
	}
	f.Sends = append(f.Sends, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func newEngine(t *testing.T) engine.Engine {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg, err := config.FromYAML([]byte(testConfigYAML))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return engine.New(conn, cfg)
}

func TestFireSendsOneMessagePerTask(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	t1, err := e.CreateTask(ctx, 1, "Restock shelf A", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	t2, err := e.CreateTask(ctx, 1, "Count inventory", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.AssignTask(ctx, 1, t1.ID, 555); err != nil {
		t.Fatal(err)
	}
	if _, err := e.AssignTask(ctx, 1, t2.ID, 555); err != nil {
		t.Fatal(err)
	}
	// pending task must not trigger a reminder
	if _, err := e.CreateTask(ctx, 1, "Unassigned chore", time.Time{}); err != nil {
		t.Fatal(err)
	}

	notifier := &fakeNotifier{}
	s := &scheduler.Scheduler{Engine: e, Notifier: notifier, Loc: time.UTC, Hour: 8}
	s.Fire(ctx)

	if len(notifier.Sends) != 2 {
		t.Fatalf("expected exactly 2 reminders, got %d: %+v", len(notifier.Sends), notifier.Sends)
	}
	for _, msg := range notifier.Sends {
		if msg.ChatID != 555 {
			t.Fatalf("reminder sent to wrong identity: %+v", msg)
		}
	}
	texts := notifier.Sends[0].Text + "\n" + notifier.Sends[1].Text
	if !strings.Contains(texts, "Restock shelf A") || !strings.Contains(texts, "Count inventory") {
		t.Fatalf("each reminder must carry one task description: %q", texts)
	}
}

func TestFireFailureIsolatedPerRecipient(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	t1, _ := e.CreateTask(ctx, 1, "Task for 555", time.Time{})
	t2, _ := e.CreateTask(ctx, 1, "Task for 777", time.Time{})
	if _, err := e.AssignTask(ctx, 1, t1.ID, 555); err != nil {
		t.Fatal(err)
	}
	if _, err := e.AssignTask(ctx, 1, t2.ID, 777); err != nil {
		t.Fatal(err)
	}

	notifier := &fakeNotifier{FailFor: 555}
	s := &scheduler.Scheduler{Engine: e, Notifier: notifier, Loc: time.UTC, Hour: 8}
	s.Fire(ctx)

	if len(notifier.Sends) != 1 || notifier.Sends[0].ChatID != 777 {
		t.Fatalf("delivery to 777 must survive 555 failing: %+v", notifier.Sends)
	}
}

func TestNextFire(t *testing.T) {
	s := &scheduler.Scheduler{Loc: time.UTC, Hour: 8, Minute: 0}

	before := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)
	if got := s.NextFire(before); !got.Equal(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("before trigger time: got %v", got)
	}
	exactly := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	if got := s.NextFire(exactly); !got.Equal(time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("at trigger instant must arm for next day: got %v", got)
	}
	after := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	if got := s.NextFire(after); !got.Equal(time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("after trigger time: got %v", got)
	}
}

func TestNextFireHonorsTimezone(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tehran")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	s := &scheduler.Scheduler{Loc: loc, Hour: 8, Minute: 0}
	// 03:00 UTC is 06:30 in Tehran, so the fire is still ahead that day.
	now := time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC)
	got := s.NextFire(now)
	if got.Hour() != 8 || got.Location() != loc {
		t.Fatalf("expected 08:00 local fire, got %v", got)
	}
	if !got.After(now) {
		t.Fatalf("next fire must be in the future: %v", got)
	}
}
