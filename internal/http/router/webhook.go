package router

import (
	"github.com/gin-gonic/gin"

	"tapdbridge.app/bridge/internal/http/handler/webhook"
)

func WebhookRouter(router *gin.RouterGroup, handler *webhook.FeishuWebhookHandler) {
	router.POST("/feishu", handler.HandleEvent)
}
