package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"tapdbridge.app/bridge/core/config"
	"tapdbridge.app/bridge/internal/http/dto"
	"tapdbridge.app/bridge/internal/service"
	"tapdbridge.app/bridge/internal/ticket"
)

// TicketHandler serves the direct-creation API: the same mapping pipeline
// as the webhook, minus classification — the ticket type is fixed by the
// route.
type TicketHandler struct {
	tickets service.TicketService
	cfg     config.Config
}

func NewTicketHandler(tickets service.TicketService, cfg config.Config) *TicketHandler {
	return &TicketHandler{tickets: tickets, cfg: cfg}
}

func (h *TicketHandler) CreateStory(c *gin.Context) {
	h.create(c, ticket.TypeStory)
}

func (h *TicketHandler) CreateBug(c *gin.Context) {
	h.create(c, ticket.TypeBug)
}

func (h *TicketHandler) create(c *gin.Context, t ticket.Type) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("failed to read request body"))
		return
	}

	var rec ticket.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("invalid payload"))
		return
	}

	result := h.tickets.CreateTicket(c.Request.Context(), t, &rec)
	if !result.Success {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(result.ErrorMessage))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"id":  result.TicketID,
			"url": result.TicketURL,
		},
	})
}

// CheckConfig reports which required settings are present, without echoing
// any secret values.
func (h *TicketHandler) CheckConfig(c *gin.Context) {
	problems := h.cfg.Validate()
	c.JSON(http.StatusOK, gin.H{
		"valid":  len(problems) == 0,
		"errors": problems,
		"tapd": gin.H{
			"workspace_id":     h.cfg.TAPD.WorkspaceID,
			"api_user_set":     h.cfg.TAPD.APIUser != "",
			"api_password_set": h.cfg.TAPD.APIPassword != "",
		},
		"feishu": gin.H{
			"app_id_set":           h.cfg.Feishu.AppID != "",
			"verification_enabled": h.cfg.Feishu.SignatureEnabled(),
		},
	})
}

// WorkitemTypes exposes the configured category-label table so automation
// authors can see which labels resolve to a workitem type.
func (h *TicketHandler) WorkitemTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"types": h.cfg.Mapping.WorkitemTypes})
}
