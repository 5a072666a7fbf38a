package webhook

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"tapdbridge.app/bridge/common/logger"
	"tapdbridge.app/bridge/internal/feishu"
	"tapdbridge.app/bridge/internal/http/dto"
	"tapdbridge.app/bridge/internal/mapper"
	"tapdbridge.app/bridge/internal/service"
	"tapdbridge.app/bridge/internal/ticket"
)

type FeishuWebhookHandler struct {
	tickets           service.TicketService
	verificationToken string
}

func NewFeishuWebhookHandler(tickets service.TicketService, verificationToken string) *FeishuWebhookHandler {
	return &FeishuWebhookHandler{
		tickets:           tickets,
		verificationToken: verificationToken,
	}
}

// HandleEvent receives one bitable automation request and answers with the
// uniform creation result. Challenge handshakes short-circuit before any
// mapping.
func (h *FeishuWebhookHandler) HandleEvent(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("failed to read request body"))
		return
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("empty request body"))
		return
	}

	// Signature headers are optional: Feishu only signs when a
	// verification token is configured on its side.
	if signature := c.GetHeader("X-Lark-Signature"); signature != "" {
		ok := feishu.VerifySignature(
			h.verificationToken,
			c.GetHeader("X-Lark-Request-Timestamp"),
			c.GetHeader("X-Lark-Request-Nonce"),
			body,
			signature,
		)
		if !ok {
			slog.WarnContext(ctx, "webhook signature rejected")
			c.JSON(http.StatusUnauthorized, dto.NewErrorResponse("signature verification failed"))
			return
		}
	}

	var payload ticket.Record
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.WarnContext(ctx, "invalid webhook payload", "error", err, "body", logger.Truncate(string(body), 500))
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("invalid payload"))
		return
	}

	// URL-verification handshake sent by the platform when the webhook is
	// first configured.
	if challenge, ok := payload.Get("challenge"); ok {
		c.JSON(http.StatusOK, gin.H{"challenge": challenge})
		return
	}

	ticketType, rec := mapper.Classify(&payload)
	slog.InfoContext(ctx, "webhook received",
		"ticket_type", ticketType,
		"field_count", rec.Len(),
	)

	result := h.tickets.CreateTicket(ctx, ticketType, rec)
	c.JSON(http.StatusOK, dto.FromCreateResult(result))
}
