package server

import "dutyline/internal/domain"

type HealthBody struct {
	Status string `json:"status" example:"ok"`
}

type HealthResponse struct {
	Body HealthBody
}

type TaskListBody struct {
	Tasks []domain.Task `json:"tasks"`
}

type TaskListResponse struct {
	Body TaskListBody
}

type TaskResponse struct {
	Body domain.Task
}

type ReportListBody struct {
	Reports []domain.Report `json:"reports"`
}

type ReportListResponse struct {
	Body ReportListBody
}

type FeedbackListBody struct {
	Feedback []domain.Feedback `json:"feedback"`
}

type FeedbackListResponse struct {
	Body FeedbackListBody
}

type EventListBody struct {
	Events []domain.Event `json:"events"`
}

type EventListResponse struct {
	Body EventListBody
}
