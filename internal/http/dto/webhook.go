package dto

import (
	"tapdbridge.app/bridge/internal/service"
	"tapdbridge.app/bridge/internal/ticket"
)

// WebhookResponse is the body returned to the bitable automation. The
// automation matches on status/code, so both success and failure return
// HTTP 200 with the outcome in the body.
type WebhookResponse struct {
	Status  string      `json:"status"`
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    *TicketData `json:"data"`
}

type TicketData struct {
	TicketID   string `json:"ticket_id"`
	TicketURL  string `json:"ticket_url"`
	TicketType string `json:"ticket_type"`
	// Story/Bug mirror TAPD's entity wrapper so automation steps that
	// expect it keep working.
	Story *EntityRef `json:"Story,omitempty"`
	Bug   *EntityRef `json:"Bug,omitempty"`
}

type EntityRef struct {
	ID string `json:"id"`
}

func FromCreateResult(result service.CreateTicketResult) WebhookResponse {
	if !result.Success {
		return WebhookResponse{
			Status:  "error",
			Code:    -1,
			Message: result.ErrorMessage,
		}
	}

	data := &TicketData{
		TicketID:   result.TicketID,
		TicketURL:  result.TicketURL,
		TicketType: string(result.TicketType),
	}
	switch result.TicketType {
	case ticket.TypeStory:
		data.Story = &EntityRef{ID: result.TicketID}
	case ticket.TypeBug:
		data.Bug = &EntityRef{ID: result.TicketID}
	}

	return WebhookResponse{
		Status:  "success",
		Code:    0,
		Message: "ticket created",
		Data:    data,
	}
}

// ErrorResponse is the transport-level failure shape (bad payloads,
// rejected signatures, unexpected faults).
type ErrorResponse struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewErrorResponse(message string) ErrorResponse {
	return ErrorResponse{Status: "error", Code: -1, Message: message}
}
