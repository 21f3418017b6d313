package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"dutyline/internal/attach"
	"dutyline/internal/domain"
	"dutyline/internal/engine"
	"dutyline/internal/repo"
	"dutyline/internal/telegram"
)

// Sender delivers replies to the chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// FileFetcher downloads a photo blob by its transport file id.
type FileFetcher interface {
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// Dispatcher routes inbound messages: resolve the caller's role first, gate
// the command on it, then call into the engine. Authorization failures reply
// with the fixed message and mutate nothing.
type Dispatcher struct {
	Engine engine.Engine
	Sender Sender
	Files  FileFetcher
	Attach *attach.Store
}

func (d *Dispatcher) Handle(ctx context.Context, msg telegram.Message) {
	if msg.PhotoFileID != "" {
		d.handlePhotoReport(ctx, msg)
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	if !strings.HasPrefix(text, "/") {
		d.handleFreeText(ctx, msg.ChatID, text)
		return
	}
	fields := strings.Fields(text)
	command := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(command, '@'); i >= 0 {
		command = command[:i]
	}
	args := fields[1:]

	switch command {
	case "start":
		d.handleStart(ctx, msg.ChatID)
	case "create_task":
		d.handleCreateTask(ctx, msg.ChatID, args)
	case "assign_task":
		d.handleAssignTask(ctx, msg.ChatID, args)
	case "view_all_tasks":
		d.handleViewAllTasks(ctx, msg.ChatID)
	case "view_tasks":
		d.handleViewTasks(ctx, msg.ChatID)
	case "done":
		d.handleDone(ctx, msg.ChatID, args)
	case "report":
		d.handleTextReport(ctx, msg.ChatID, strings.Join(args, " "))
	case "feedback":
		d.handleFeedback(ctx, msg.ChatID, strings.Join(args, " "))
	default:
		log.Printf("user %d sent unknown command /%s", msg.ChatID, command)
	}
}

func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string) {
	if err := d.Sender.Send(ctx, chatID, text); err != nil {
		log.Printf("reply to %d failed: %v", chatID, err)
	}
}

// requireRole resolves the caller's role and replies with the fixed
// not-authorized message on mismatch. This runs before any mutation.
func (d *Dispatcher) requireRole(ctx context.Context, chatID int64, want domain.Role) bool {
	role, err := d.Engine.GetRole(ctx, chatID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		log.Printf("resolve role for %d: %v", chatID, err)
		d.reply(ctx, chatID, msgGenericFailure)
		return false
	}
	if role != want {
		log.Printf("unauthorized attempt by user %d (role %q, need %q)", chatID, role, want)
		d.reply(ctx, chatID, msgNotAuthorized)
		return false
	}
	return true
}

func (d *Dispatcher) handleStart(ctx context.Context, chatID int64) {
	role, err := d.Engine.GetRole(ctx, chatID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		d.reply(ctx, chatID, msgGenericFailure)
		return
	}
	d.reply(ctx, chatID, msgStart)
	if role == "" {
		d.reply(ctx, chatID, msgAuthPrompt)
		return
	}
	d.reply(ctx, chatID, msgAlreadyAuthed)
}

// handleFreeText treats the message as an auth code while the sender has no
// role; authenticated users' stray text is ignored.
func (d *Dispatcher) handleFreeText(ctx context.Context, chatID int64, text string) {
	role, err := d.Engine.GetRole(ctx, chatID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		d.reply(ctx, chatID, msgGenericFailure)
		return
	}
	if role != "" {
		return
	}
	if _, err := d.Engine.Authenticate(ctx, chatID, text); err != nil {
		if errors.Is(err, engine.ErrInvalidCode) {
			d.reply(ctx, chatID, msgInvalidCode)
			return
		}
		log.Printf("authenticate user %d: %v", chatID, err)
		d.reply(ctx, chatID, msgGenericFailure)
		return
	}
	d.reply(ctx, chatID, msgAuthSuccess)
}

func (d *Dispatcher) handleCreateTask(ctx context.Context, chatID int64, args []string) {
	if !d.requireRole(ctx, chatID, domain.RoleAdmin) {
		return
	}
	description := strings.Join(args, " ")
	if strings.TrimSpace(description) == "" {
		d.reply(ctx, chatID, usageCreateTask)
		return
	}
	if _, err := d.Engine.CreateTask(ctx, chatID, description, time.Time{}); err != nil {
		log.Printf("create task by %d: %v", chatID, err)
		d.reply(ctx, chatID, msgGenericFailure)
		return
	}
	d.reply(ctx, chatID, msgTaskCreated)
}

func (d *Dispatcher) handleAssignTask(ctx context.Context, chatID int64, args []string) {
	if !d.requireRole(ctx, chatID, domain.RoleAdmin) {
		return
	}
	if len(args) < 2 {
		d.reply(ctx, chatID, usageAssignTask)
		return
	}
	taskID, err1 := strconv.ParseInt(args[0], 10, 64)
	userID, err2 := strconv.ParseInt(args[1], 10, 64)
	if err1 != nil || err2 != nil {
		d.reply(ctx, chatID, usageAssignTask)
		return
	}
	if _, err := d.Engine.AssignTask(ctx, chatID, taskID, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			d.reply(ctx, chatID, fmt.Sprintf("Task %d not found.", taskID))
			return
		}
		log.Printf("assign task %d by %d: %v", taskID, chatID, err)
		d.reply(ctx, chatID, msgGenericFailure)
		return
	}
	d.reply(ctx, chatID, msgTaskAssigned)
}

func (d *Dispatcher) handleViewAllTasks(ctx context.Context, chatID int64) {
	if !d.requireRole(ctx, chatID, domain.RoleAdmin) {
		return
	}
	tasks, err := d.Engine.ListTasks(ctx)
	if err != nil {
		log.Printf("list tasks for %d: %v", chatID, err)
		d.reply(ctx, chatID, msgGenericFailure)
		return
	}
	if len(tasks) == 0 {
		d.reply(ctx, chatID, msgNoTasks)
		return
	}
	var b strings.Builder
	b.WriteString(msgAllTasksHeader)
	for _, t := range tasks {
		b.WriteString(fmt.Sprintf("\n%d: %s - %s", t.ID, t.Description, taskStatusLine(t)))
	}
	d.reply(ctx, chatID, b.String())
}

func taskStatusLine(t domain.Task) string {
	switch {
	case t.Status == domain.TaskCompleted:
		return "completed"
	case t.AssigneeID != nil:
		return fmt.Sprintf("assigned to %d", *t.AssigneeID)
	default:
		return "pending"
	}
}

func (d *Dispatcher) handleViewTasks(ctx context.Context, chatID int64) {
	if !d.requireRole(ctx, chatID, domain.RolePersonnel) {
		return
	}
	tasks, err := d.Engine.ListTasksByAssignee(ctx, chatID)
	if err != nil {
		log.Printf("list tasks of %d: %v", chatID, err)
		d.reply(ctx, chatID, msgGenericFailure)
		return
	}
	var b strings.Builder
	b.WriteString(msgTaskViewHeader)
	n := 0
	for _, t := range tasks {
		if t.Status == domain.TaskCompleted {
			continue
		}
		b.WriteString(fmt.Sprintf("\n%d: %s - due %s", t.ID, t.Description, t.DueDate))
		n++
	}
	if n == 0 {
		d.reply(ctx, chatID, msgNoTasks)
		return
	}
	d.reply(ctx, chatID, b.String())
}

func (d *Dispatcher) handleDone(ctx context.Context, chatID int64, args []string) {
	if !d.requireRole(ctx, chatID, domain.RolePersonnel) {
		return
	}
	if len(args) < 1 {
		d.reply(ctx, chatID, usageDone)
		return
	}
	taskID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		d.reply(ctx, chatID, usageDone)
		return
	}
	if _, err := d.Engine.CompleteTask(ctx, chatID, taskID); err != nil {
		var na engine.NotAssigneeError
		switch {
		case errors.Is(err, repo.ErrNotFound):
			d.reply(ctx, chatID, fmt.Sprintf("Task %d not found.", taskID))
		case errors.As(err, &na):
			d.reply(ctx, chatID, msgNotAuthorized)
		default:
			log.Printf("complete task %d by %d: %v", taskID, chatID, err)
			d.reply(ctx, chatID, msgGenericFailure)
		}
		return
	}
	d.reply(ctx, chatID, msgTaskComplete)
}

func (d *Dispatcher) handleTextReport(ctx context.Context, chatID int64, text string) {
	if !d.requireRole(ctx, chatID, domain.RolePersonnel) {
		return
	}
	if _, err := d.Engine.SubmitReport(ctx, chatID, text, ""); err != nil {
		log.Printf("report by %d: %v", chatID, err)
		d.reply(ctx, chatID, msgGenericFailure)
		return
	}
	d.reply(ctx, chatID, msgReportReceived)
}

// handlePhotoReport stores the photo first, then appends the report carrying
// the resulting path. Caption becomes the report text.
func (d *Dispatcher) handlePhotoReport(ctx context.Context, msg telegram.Message) {
	chatID := msg.ChatID
	if !d.requireRole(ctx, chatID, domain.RolePersonnel) {
		return
	}
	var photoPath string
	if d.Files != nil && d.Attach != nil {
		data, err := d.Files.DownloadFile(ctx, msg.PhotoFileID)
		if err != nil {
			log.Printf("download photo %s from %d: %v", msg.PhotoFileID, chatID, err)
			d.reply(ctx, chatID, msgGenericFailure)
			return
		}
		photoPath, err = d.Attach.Save(data)
		if err != nil {
			log.Printf("store photo from %d: %v", chatID, err)
			d.reply(ctx, chatID, msgGenericFailure)
			return
		}
	}
	if _, err := d.Engine.SubmitReport(ctx, chatID, msg.Caption, photoPath); err != nil {
		log.Printf("photo report by %d: %v", chatID, err)
		d.reply(ctx, chatID, msgGenericFailure)
		return
	}
	d.reply(ctx, chatID, msgReportReceived)
}

func (d *Dispatcher) handleFeedback(ctx context.Context, chatID int64, text string) {
	if !d.requireRole(ctx, chatID, domain.RolePersonnel) {
		return
	}
	if strings.TrimSpace(text) == "" {
		d.reply(ctx, chatID, usageFeedback)
		return
	}
	if _, err := d.Engine.AddFeedback(ctx, chatID, text); err != nil {
		log.Printf("feedback by %d: %v", chatID, err)
		d.reply(ctx, chatID, msgGenericFailure)
		return
	}
	d.reply(ctx, chatID, msgFeedbackReceived)
}
