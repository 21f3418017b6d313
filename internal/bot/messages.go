package bot

// The single fixed message set shown to chat users.
const (
	msgStart            = "Welcome to the personnel and task management bot!"
	msgAuthPrompt       = "Please enter your access code:"
	msgAuthSuccess      = "You have been authenticated successfully."
	msgAlreadyAuthed    = "You are already authenticated."
	msgInvalidCode      = "Invalid code."
	msgNotAuthorized    = "You are not authorized to perform this action."
	msgTaskCreated      = "New task created successfully."
	msgTaskAssigned     = "Task assigned to user."
	msgTaskComplete     = "Task completed."
	msgTaskViewHeader   = "These are your tasks:"
	msgAllTasksHeader   = "All tasks:"
	msgNoTasks          = "No tasks."
	msgReportReceived   = "Report submitted successfully."
	msgFeedbackReceived = "Your feedback has been submitted successfully."
	msgGenericFailure   = "Something went wrong, please try again."

	usageAssignTask = "Usage: /assign_task <task_id> <user_id>"
	usageCreateTask = "Usage: /create_task <description>"
	usageDone       = "Usage: /done <task_id>"
	usageFeedback   = "Usage: /feedback <text>"
)
