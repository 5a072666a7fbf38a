package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tapdbridge.app/bridge/core/config"
	"tapdbridge.app/bridge/internal/http/handler"
	"tapdbridge.app/bridge/internal/http/handler/webhook"
	"tapdbridge.app/bridge/internal/service"
)

func SetupRoutes(router *gin.Engine, tickets service.TicketService, cfg config.Config) {
	router.GET("/health", func(c *gin.Context) {
		problems := cfg.Validate()
		status := "healthy"
		if len(problems) > 0 {
			status = "degraded"
		}
		c.JSON(http.StatusOK, gin.H{
			"status":        status,
			"config_valid":  len(problems) == 0,
			"config_errors": problems,
		})
	})

	feishuHandler := webhook.NewFeishuWebhookHandler(tickets, cfg.Feishu.VerificationToken)
	WebhookRouter(router.Group("/webhook"), feishuHandler)

	ticketHandler := handler.NewTicketHandler(tickets, cfg)
	TicketRouter(router.Group("/api"), ticketHandler)
}
