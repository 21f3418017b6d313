package domain

// Role is the authorization level of a chat identity. An identity that never
// authenticated has no row and therefore no role.
type Role string

const (
	RoleAdmin     Role = "admin"
	RolePersonnel Role = "personnel"
)

// Task statuses. A task with no assignee is pending, assigning it makes it
// assigned, and only the current assignee can mark it completed.
const (
	TaskPending   = "pending"
	TaskAssigned  = "assigned"
	TaskCompleted = "completed"
)

type Task struct {
	ID          int64   `json:"id"`
	Description string  `json:"description"`
	AssigneeID  *int64  `json:"assignee_id,omitempty"`
	Status      string  `json:"status" enum:"pending,assigned,completed"`
	DueDate     string  `json:"due_date" format:"date-time"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	CompletedAt *string `json:"completed_at,omitempty" format:"date-time"`
}

type Report struct {
	ID          int64   `json:"id"`
	SubmittedBy int64   `json:"submitted_by"`
	Text        string  `json:"text"`
	TS          string  `json:"ts" format:"date-time"`
	PhotoPath   *string `json:"photo_path,omitempty"`
}

type Feedback struct {
	ID          int64  `json:"id"`
	SubmittedBy int64  `json:"submitted_by"`
	Text        string `json:"text"`
	TS          string `json:"ts" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    int64  `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
