package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"dutyline/internal/config"
	"dutyline/internal/domain"
	"dutyline/internal/events"
	"dutyline/internal/repo"
)

// Notifier delivers outbound messages to a chat identity. Sends are
// fire-and-forget from the caller's point of view; the engine logs failures
// and never propagates them to the triggering command.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// ErrInvalidCode means the submitted authentication code matched neither
// configured secret.
var ErrInvalidCode = errors.New("invalid code")

// NotAssigneeError indicates a completion attempt by someone other than the
// task's current assignee.
type NotAssigneeError struct {
	TaskID int64
}

func (e NotAssigneeError) Error() string {
	return fmt.Sprintf("task %d is not assigned to you", e.TaskID)
}

const reportPlaceholder = "no description"

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Config   *config.Config
	Notifier Notifier
	Now      func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) location() *time.Location {
	if e.Config != nil {
		return e.Config.Location()
	}
	return time.UTC
}

func (e Engine) localNow() string {
	return e.now().In(e.location()).Format(time.RFC3339)
}

// Authenticate matches a submitted code against the configured secrets and
// records the resulting role. Re-authentication overwrites an existing role.
func (e Engine) Authenticate(ctx context.Context, userID int64, code string) (domain.Role, error) {
	if e.Config == nil {
		return "", errors.New("config not loaded")
	}
	var role domain.Role
	switch strings.TrimSpace(code) {
	case e.Config.Auth.AdminCode:
		role = domain.RoleAdmin
	case e.Config.Auth.PersonnelCode:
		role = domain.RolePersonnel
	default:
		return "", ErrInvalidCode
	}
	if err := e.SetRole(ctx, userID, role); err != nil {
		return "", err
	}
	return role, nil
}

// SetRole upserts the role for an identity. Idempotent.
func (e Engine) SetRole(ctx context.Context, userID int64, role domain.Role) error {
	prior, err := e.Repo.GetRole(ctx, userID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertRole(ctx, tx, userID, role, e.localNow()); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "role.set", "role", fmt.Sprintf("%d", userID), userID, events.EventPayload{
		"prior": string(prior),
		"role":  string(role),
	}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	log.Printf("role for user %d set to %s (was %q)", userID, role, prior)
	return nil
}

// GetRole returns repo.ErrNotFound for identities that never authenticated.
func (e Engine) GetRole(ctx context.Context, userID int64) (domain.Role, error) {
	return e.Repo.GetRole(ctx, userID)
}

// CreateTask mints a new unassigned task. A zero due time defaults to
// now+24h in the configured timezone.
func (e Engine) CreateTask(ctx context.Context, actorID int64, description string, due time.Time) (domain.Task, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return domain.Task{}, errors.New("description is required")
	}
	loc := e.location()
	if due.IsZero() {
		due = e.now().In(loc).Add(24 * time.Hour)
	}
	t := domain.Task{
		Description: description,
		Status:      domain.TaskPending,
		DueDate:     due.In(loc).Format(time.RFC3339),
		CreatedAt:   e.localNow(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	id, err := e.Repo.InsertTask(ctx, tx, t)
	if err != nil {
		return domain.Task{}, err
	}
	t.ID = id
	if err := e.Events.Append(ctx, tx, "task.created", "task", fmt.Sprintf("%d", id), actorID, events.EventPayload{
		"description": t.Description,
		"due_date":    t.DueDate,
	}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// AssignTask sets the assignee unconditionally (reassignment allowed) and
// notifies the new assignee. A failed notification is logged, never returned.
func (e Engine) AssignTask(ctx context.Context, actorID, taskID, assigneeID int64) (domain.Task, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.SetTaskAssignee(ctx, tx, taskID, assigneeID); err != nil {
		return domain.Task{}, err
	}
	t, err := e.Repo.GetTaskTx(ctx, tx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if err := e.Events.Append(ctx, tx, "task.assigned", "task", fmt.Sprintf("%d", taskID), actorID, events.EventPayload{
		"assignee_id": assigneeID,
	}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	if e.Notifier != nil {
		msg := fmt.Sprintf("A new task has been assigned to you: %d. %s (due %s)", t.ID, t.Description, t.DueDate)
		if err := e.Notifier.Send(ctx, assigneeID, msg); err != nil {
			log.Printf("notify assignee %d for task %d: %v", assigneeID, taskID, err)
		}
	}
	return t, nil
}

// CompleteTask marks a task completed. Only the current assignee may do so.
func (e Engine) CompleteTask(ctx context.Context, actorID, taskID int64) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if t.AssigneeID == nil || *t.AssigneeID != actorID {
		return domain.Task{}, NotAssigneeError{TaskID: taskID}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	completedAt := e.localNow()
	if err := e.Repo.CompleteTask(ctx, tx, taskID, completedAt); err != nil {
		return domain.Task{}, err
	}
	if err := e.Events.Append(ctx, tx, "task.completed", "task", fmt.Sprintf("%d", taskID), actorID, nil); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	t.Status = domain.TaskCompleted
	t.CompletedAt = &completedAt
	return t, nil
}

// ListTasks returns every task in id order.
func (e Engine) ListTasks(ctx context.Context) ([]domain.Task, error) {
	return e.Repo.ListTasks(ctx)
}

// ListTasksByAssignee returns the identity's tasks in id order.
func (e Engine) ListTasksByAssignee(ctx context.Context, assigneeID int64) ([]domain.Task, error) {
	return e.Repo.ListTasksByAssignee(ctx, assigneeID)
}

// SubmitReport appends a write-once report. Empty text gets a fixed
// placeholder; photoPath is an optional stored-attachment handle.
func (e Engine) SubmitReport(ctx context.Context, submitter int64, text, photoPath string) (domain.Report, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		text = reportPlaceholder
	}
	rep := domain.Report{
		SubmittedBy: submitter,
		Text:        text,
		TS:          e.localNow(),
	}
	if photoPath != "" {
		rep.PhotoPath = &photoPath
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Report{}, err
	}
	defer tx.Rollback()
	id, err := e.Repo.InsertReport(ctx, tx, rep)
	if err != nil {
		return domain.Report{}, err
	}
	rep.ID = id
	if err := e.Events.Append(ctx, tx, "report.submitted", "report", fmt.Sprintf("%d", id), submitter, events.EventPayload{
		"has_photo": rep.PhotoPath != nil,
	}); err != nil {
		return domain.Report{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Report{}, err
	}
	return rep, nil
}

// AddFeedback persists free-text feedback from personnel.
func (e Engine) AddFeedback(ctx context.Context, submitter int64, text string) (domain.Feedback, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Feedback{}, errors.New("feedback text is required")
	}
	fb := domain.Feedback{
		SubmittedBy: submitter,
		Text:        text,
		TS:          e.localNow(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Feedback{}, err
	}
	defer tx.Rollback()
	id, err := e.Repo.InsertFeedback(ctx, tx, fb)
	if err != nil {
		return domain.Feedback{}, err
	}
	fb.ID = id
	if err := e.Events.Append(ctx, tx, "feedback.submitted", "feedback", fmt.Sprintf("%d", id), submitter, nil); err != nil {
		return domain.Feedback{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Feedback{}, err
	}
	return fb, nil
}
