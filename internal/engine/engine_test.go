package engine_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"dutyline/internal/config"
	"dutyline/internal/db"
	"dutyline/internal/domain"
	"dutyline/internal/engine"
	"dutyline/internal/migrate"
	"dutyline/internal/repo"
)

const testConfigYAML = `telegram:
  token: ""
auth:
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
	mu    sync.Mutex
	Sends []sentMessage
}

func (f *fakeNotifier) Send(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sends = append(f.Sends, sentMessage{ChatID: chatID, Text: text})
	return nil
}

type testEnv struct {
	Engine   engine.Engine
	Notifier *fakeNotifier
	Ctx      context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
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
	notifier := &fakeNotifier{}
	eng := engine.New(conn, cfg)
	eng.Notifier = notifier
	eng.Now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Notifier: notifier, Ctx: context.Background()}
}

func TestRoleLifecycle(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.GetRole(env.Ctx, 42); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown identity, got %v", err)
	}
	if err := env.Engine.SetRole(env.Ctx, 42, domain.RolePersonnel); err != nil {
		t.Fatalf("set role: %v", err)
	}
	role, err := env.Engine.GetRole(env.Ctx, 42)
	if err != nil || role != domain.RolePersonnel {
		t.Fatalf("expected personnel, got %q err=%v", role, err)
	}
	// idempotent under repeated identical calls
	if err := env.Engine.SetRole(env.Ctx, 42, domain.RolePersonnel); err != nil {
		t.Fatalf("repeat set role: %v", err)
	}
	role, _ = env.Engine.GetRole(env.Ctx, 42)
	if role != domain.RolePersonnel {
		t.Fatalf("expected personnel after repeat, got %q", role)
	}
	// re-authentication overwrites
	if err := env.Engine.SetRole(env.Ctx, 42, domain.RoleAdmin); err != nil {
		t.Fatalf("overwrite role: %v", err)
	}
	role, _ = env.Engine.GetRole(env.Ctx, 42)
	if role != domain.RoleAdmin {
		t.Fatalf("expected admin after overwrite, got %q", role)
	}
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	role, err := env.Engine.Authenticate(env.Ctx, 1, "admin-code")
	if err != nil || role != domain.RoleAdmin {
		t.Fatalf("admin auth: role=%q err=%v", role, err)
	}
	role, err = env.Engine.Authenticate(env.Ctx, 2, " staff-code ")
	if err != nil || role != domain.RolePersonnel {
		t.Fatalf("personnel auth with padding: role=%q err=%v", role, err)
	}
	if _, err := env.Engine.Authenticate(env.Ctx, 3, "nope"); !errors.Is(err, engine.ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	if _, err := env.Engine.GetRole(env.Ctx, 3); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("failed auth must not set a role")
	}
}

func TestCreateTaskDefaults(t *testing.T) {
	env := newTestEnv(t)
	t1, err := env.Engine.CreateTask(env.Ctx, 1, "Restock shelf A", time.Time{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	t2, err := env.Engine.CreateTask(env.Ctx, 1, "Count inventory", time.Time{})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if t2.ID <= t1.ID {
		t.Fatalf("ids not monotonic: %d then %d", t1.ID, t2.ID)
	}
	if t1.Status != domain.TaskPending || t1.AssigneeID != nil {
		t.Fatalf("new task must be pending and unassigned: %+v", t1)
	}
	wantDue := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC).Format(time.RFC3339)
	if t1.DueDate != wantDue {
		t.Fatalf("due default: got %s want %s", t1.DueDate, wantDue)
	}
	if _, err := env.Engine.CreateTask(env.Ctx, 1, "   ", time.Time{}); err == nil {
		t.Fatalf("expected error for blank description")
	}
}

func TestAssignTaskNotFound(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.AssignTask(env.Ctx, 1, 999, 555); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	tasks, err := env.Engine.ListTasks(env.Ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("ledger must be unchanged, got %d tasks", len(tasks))
	}
	if len(env.Notifier.Sends) != 0 {
		t.Fatalf("no notification expected, got %d", len(env.Notifier.Sends))
	}
}

func TestAssignAndReassign(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, 1, "Restock shelf A", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.AssignTask(env.Ctx, 1, task.ID, 555); err != nil {
		t.Fatalf("assign: %v", err)
	}
	mine, err := env.Engine.ListTasksByAssignee(env.Ctx, 555)
	if err != nil || len(mine) != 1 || mine[0].ID != task.ID {
		t.Fatalf("expected task %d for 555, got %+v err=%v", task.ID, mine, err)
	}
	if len(env.Notifier.Sends) != 1 || env.Notifier.Sends[0].ChatID != 555 {
		t.Fatalf("expected one notification to 555, got %+v", env.Notifier.Sends)
	}
	// reassignment moves the task over
	if _, err := env.Engine.AssignTask(env.Ctx, 1, task.ID, 777); err != nil {
		t.Fatalf("reassign: %v", err)
	}
	mine, _ = env.Engine.ListTasksByAssignee(env.Ctx, 555)
	if len(mine) != 0 {
		t.Fatalf("expected 555's list empty after reassignment, got %+v", mine)
	}
	theirs, _ := env.Engine.ListTasksByAssignee(env.Ctx, 777)
	if len(theirs) != 1 || theirs[0].ID != task.ID {
		t.Fatalf("expected task %d for 777, got %+v", task.ID, theirs)
	}
}

func TestCompleteTask(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, 1, "Clean the back room", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.AssignTask(env.Ctx, 1, task.ID, 555); err != nil {
		t.Fatal(err)
	}
	var na engine.NotAssigneeError
	if _, err := env.Engine.CompleteTask(env.Ctx, 777, task.ID); !errors.As(err, &na) {
		t.Fatalf("expected NotAssigneeError for non-assignee, got %v", err)
	}
	done, err := env.Engine.CompleteTask(env.Ctx, 555, task.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != domain.TaskCompleted || done.CompletedAt == nil {
		t.Fatalf("expected completed task, got %+v", done)
	}
	open, err := env.Engine.Repo.ListOpenAssigned(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 0 {
		t.Fatalf("completed task must drop out of open list, got %+v", open)
	}
}

func TestReportRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	rep, err := env.Engine.SubmitReport(env.Ctx, 555, "shelves restocked", "photos/abc.jpg")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	all, err := env.Engine.Repo.ListReports(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("expected exactly one report, got %d", len(all))
	}
	got := all[0]
	if got.ID != rep.ID || got.SubmittedBy != 555 || got.Text != "shelves restocked" {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
	if got.PhotoPath == nil || *got.PhotoPath != "photos/abc.jpg" {
		t.Fatalf("photo path mismatch: %+v", got.PhotoPath)
	}
	if got.TS != rep.TS {
		t.Fatalf("ts mismatch: %s vs %s", got.TS, rep.TS)
	}
}

func TestReportPlaceholderText(t *testing.T) {
	env := newTestEnv(t)
	rep, err := env.Engine.SubmitReport(env.Ctx, 555, "  ", "")
	if err != nil {
		t.Fatal(err)
	}
	if rep.Text == "" || strings.TrimSpace(rep.Text) == "" {
		t.Fatalf("expected placeholder text, got %q", rep.Text)
	}
	if rep.PhotoPath != nil {
		t.Fatalf("expected no photo path, got %v", *rep.PhotoPath)
	}
}

func TestFeedbackPersisted(t *testing.T) {
	env := newTestEnv(t)
	fb, err := env.Engine.AddFeedback(env.Ctx, 555, "more shifts please")
	if err != nil {
		t.Fatalf("feedback: %v", err)
	}
	all, err := env.Engine.Repo.ListFeedback(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].ID != fb.ID || all[0].Text != "more shifts please" {
		t.Fatalf("feedback round-trip mismatch: %+v", all)
	}
	if _, err := env.Engine.AddFeedback(env.Ctx, 555, "  "); err == nil {
		t.Fatalf("expected error for blank feedback")
	}
}
