package router

import (
	"github.com/gin-gonic/gin"

	"tapdbridge.app/bridge/internal/http/handler"
)

func TicketRouter(router *gin.RouterGroup, handler *handler.TicketHandler) {
	router.POST("/create/story", handler.CreateStory)
	router.POST("/create/bug", handler.CreateBug)
	router.GET("/config/check", handler.CheckConfig)
	router.GET("/workitem-types", handler.WorkitemTypes)
}
