package api

import (
	"github.com/gin-gonic/gin"

	"github.com/taskflow/taskflow/internal/board/service"
	"github.com/taskflow/taskflow/internal/common/logger"
)

// SetupRoutes configures the board API routes. router must already require
// an authenticated user.
func SetupRoutes(router *gin.RouterGroup, svc *service.Service, log *logger.Logger) {
	handler := NewHandler(svc, log)

	boards := router.Group("/boards")
	{
		boards.GET("", handler.ListBoards)
		boards.POST("", handler.CreateBoard)
		boards.GET("/:boardId", handler.GetBoard)
		boards.PATCH("/:boardId", handler.UpdateBoard)
		boards.DELETE("/:boardId", handler.DeleteBoard)
		boards.GET("/:boardId/snapshot", handler.GetSnapshot)
		boards.POST("/:boardId/open", handler.OpenBoard)
		boards.POST("/:boardId/favorite", handler.ToggleFavorite)

		boards.POST("/:boardId/columns", handler.CreateColumn)
		boards.POST("/:boardId/columns/defaults", handler.CreateDefaultColumns)
		boards.PUT("/:boardId/columns/move", handler.MoveColumn)

		boards.GET("/:boardId/members", handler.ListMembers)
		boards.POST("/:boardId/members", handler.InviteMember)
		boards.PUT("/:boardId/members/:userId", handler.UpdateMemberRole)
		boards.DELETE("/:boardId/members/:userId", handler.RemoveMember)
	}

	columns := router.Group("/columns")
	{
		columns.PATCH("/:columnId", handler.RenameColumn)
		columns.DELETE("/:columnId", handler.DeleteColumn)
		columns.POST("/:columnId/cards", handler.CreateCard)
	}

	cards := router.Group("/cards")
	{
		cards.PATCH("/:cardId", handler.UpdateCard)
		cards.DELETE("/:cardId", handler.DeleteCard)
		cards.PUT("/:cardId/move", handler.MoveCard)
	}
}
