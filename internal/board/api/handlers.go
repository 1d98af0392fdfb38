package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taskflow/taskflow/internal/board/models"
	"github.com/taskflow/taskflow/internal/board/service"
	"github.com/taskflow/taskflow/internal/common/errors"
	"github.com/taskflow/taskflow/internal/common/httpmw"
	"github.com/taskflow/taskflow/internal/common/logger"
	v1 "github.com/taskflow/taskflow/pkg/api/v1"
)

// Handler contains HTTP handlers for the board API
type Handler struct {
	service *service.Service
	logger  *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(svc *service.Service, log *logger.Logger) *Handler {
	return &Handler{
		service: svc,
		logger:  log.WithFields(zap.String("component", "board-api")),
	}
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		_ = c.Error(errors.BadRequest(err.Error()))
		return false
	}
	return true
}

// viewer loads the caller's profile for favorite flags. A failure is logged
// and the response goes out without them.
func (h *Handler) viewer(c *gin.Context) *models.User {
	user, err := h.service.GetUser(c.Request.Context(), httpmw.UserID(c))
	if err != nil {
		h.logger.Warn("failed to load viewer profile", zap.String("user_id", httpmw.UserID(c)), zap.Error(err))
		return nil
	}
	return user
}

// Board endpoints

// ListBoards lists the caller's owned and shared boards
// GET /api/v1/boards?filter=all|favorites|recent&q=
func (h *Handler) ListBoards(c *gin.Context) {
	filter, err := service.ParseBoardFilter(c.Query("filter"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	userID := httpmw.UserID(c)
	boards, err := h.service.ListBoards(c.Request.Context(), userID, filter, c.Query("q"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	user := h.viewer(c)
	resp := v1.BoardsListResponse{
		Boards: make([]*v1.Board, 0, len(boards)),
		Total:  len(boards),
	}
	for _, b := range boards {
		resp.Boards = append(resp.Boards, BoardToResponse(b, userID, user))
	}
	c.JSON(http.StatusOK, resp)
}

// CreateBoard creates a new board
// POST /api/v1/boards
func (h *Handler) CreateBoard(c *gin.Context) {
	var req CreateBoardRequest
	if !bindJSON(c, &req) {
		return
	}

	userID := httpmw.UserID(c)
	board, err := h.service.CreateBoard(c.Request.Context(), userID, &service.CreateBoardRequest{
		Title:      req.Title,
		Background: req.Background,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, BoardToResponse(board, userID, nil))
}

// GetBoard retrieves a board by ID
// GET /api/v1/boards/:boardId
func (h *Handler) GetBoard(c *gin.Context) {
	userID := httpmw.UserID(c)
	board, err := h.service.GetBoard(c.Request.Context(), userID, c.Param("boardId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, BoardToResponse(board, userID, h.viewer(c)))
}

// UpdateBoard updates a board's title or background
// PATCH /api/v1/boards/:boardId
func (h *Handler) UpdateBoard(c *gin.Context) {
	var req UpdateBoardRequest
	if !bindJSON(c, &req) {
		return
	}

	userID := httpmw.UserID(c)
	board, err := h.service.UpdateBoard(c.Request.Context(), userID, c.Param("boardId"), &service.UpdateBoardRequest{
		Title:      req.Title,
		Background: req.Background,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, BoardToResponse(board, userID, nil))
}

// DeleteBoard deletes a board with its columns and cards
// DELETE /api/v1/boards/:boardId
func (h *Handler) DeleteBoard(c *gin.Context) {
	if err := h.service.DeleteBoard(c.Request.Context(), httpmw.UserID(c), c.Param("boardId")); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetSnapshot returns the board with its columns and cards
// GET /api/v1/boards/:boardId/snapshot
func (h *Handler) GetSnapshot(c *gin.Context) {
	userID := httpmw.UserID(c)
	snap, err := h.service.GetSnapshot(c.Request.Context(), userID, c.Param("boardId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, SnapshotToResponse(snap, userID))
}

// OpenBoard records a visit and returns the snapshot, creating default columns
// on an empty board
// POST /api/v1/boards/:boardId/open
func (h *Handler) OpenBoard(c *gin.Context) {
	userID := httpmw.UserID(c)
	snap, err := h.service.OpenBoard(c.Request.Context(), userID, c.Param("boardId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, SnapshotToResponse(snap, userID))
}

// ToggleFavorite flips the board's favorite state for the caller
// POST /api/v1/boards/:boardId/favorite
func (h *Handler) ToggleFavorite(c *gin.Context) {
	boardID := c.Param("boardId")
	favorite, err := h.service.ToggleFavorite(c.Request.Context(), httpmw.UserID(c), boardID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, v1.FavoriteResponse{BoardID: boardID, Favorite: favorite})
}

// Column endpoints

// CreateColumn appends a column to a board
// POST /api/v1/boards/:boardId/columns
func (h *Handler) CreateColumn(c *gin.Context) {
	var req CreateColumnRequest
	if !bindJSON(c, &req) {
		return
	}

	column, err := h.service.CreateColumn(c.Request.Context(), httpmw.UserID(c), c.Param("boardId"), req.Title)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, columnToResponse(column))
}

// CreateDefaultColumns seeds an empty board with the default columns
// POST /api/v1/boards/:boardId/columns/defaults
func (h *Handler) CreateDefaultColumns(c *gin.Context) {
	columns, err := h.service.CreateDefaultColumns(c.Request.Context(), httpmw.UserID(c), c.Param("boardId"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	resp := v1.ColumnsListResponse{
		Columns: make([]*v1.Column, 0, len(columns)),
		Total:   len(columns),
	}
	for _, col := range columns {
		resp.Columns = append(resp.Columns, columnToResponse(col))
	}
	c.JSON(http.StatusOK, resp)
}

// MoveColumn applies a finished column drag
// PUT /api/v1/boards/:boardId/columns/move
func (h *Handler) MoveColumn(c *gin.Context) {
	var req MoveColumnRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.service.MoveColumn(c.Request.Context(), httpmw.UserID(c), c.Param("boardId"),
		req.ColumnID, req.SourceIndex, req.DestinationIndex)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RenameColumn changes a column's title
// PATCH /api/v1/columns/:columnId
func (h *Handler) RenameColumn(c *gin.Context) {
	var req RenameColumnRequest
	if !bindJSON(c, &req) {
		return
	}

	column, err := h.service.RenameColumn(c.Request.Context(), httpmw.UserID(c), c.Param("columnId"), req.Title)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, columnToResponse(column))
}

// DeleteColumn deletes a column and its cards
// DELETE /api/v1/columns/:columnId
func (h *Handler) DeleteColumn(c *gin.Context) {
	if err := h.service.DeleteColumn(c.Request.Context(), httpmw.UserID(c), c.Param("columnId")); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Card endpoints

// CreateCard appends a card to a column
// POST /api/v1/columns/:columnId/cards
func (h *Handler) CreateCard(c *gin.Context) {
	var req CreateCardRequest
	if !bindJSON(c, &req) {
		return
	}

	card, err := h.service.CreateCard(c.Request.Context(), httpmw.UserID(c), c.Param("columnId"), &service.CreateCardRequest{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, cardToResponse(card))
}

// UpdateCard edits a card's title or description
// PATCH /api/v1/cards/:cardId
func (h *Handler) UpdateCard(c *gin.Context) {
	var req UpdateCardRequest
	if !bindJSON(c, &req) {
		return
	}

	card, err := h.service.UpdateCard(c.Request.Context(), httpmw.UserID(c), c.Param("cardId"), &service.UpdateCardRequest{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, cardToResponse(card))
}

// DeleteCard deletes a card
// DELETE /api/v1/cards/:cardId
func (h *Handler) DeleteCard(c *gin.Context) {
	if err := h.service.DeleteCard(c.Request.Context(), httpmw.UserID(c), c.Param("cardId")); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MoveCard applies a finished card drag
// PUT /api/v1/cards/:cardId/move
func (h *Handler) MoveCard(c *gin.Context) {
	var req MoveCardRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.service.MoveCard(c.Request.Context(), httpmw.UserID(c), c.Param("cardId"), req.Source, req.Destination)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Member endpoints

// ListMembers lists the owner and members of a board
// GET /api/v1/boards/:boardId/members
func (h *Handler) ListMembers(c *gin.Context) {
	members, err := h.service.ListMembers(c.Request.Context(), httpmw.UserID(c), c.Param("boardId"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	resp := v1.MembersListResponse{
		Members: make([]*v1.Member, 0, len(members)),
		Total:   len(members),
	}
	for _, m := range members {
		resp.Members = append(resp.Members, memberToResponse(m))
	}
	c.JSON(http.StatusOK, resp)
}

// InviteMember adds a member by user id or email
// POST /api/v1/boards/:boardId/members
func (h *Handler) InviteMember(c *gin.Context) {
	var req InviteMemberRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	actorID := httpmw.UserID(c)
	boardID := c.Param("boardId")

	var (
		member *models.BoardMember
		err    error
	)
	switch {
	case strings.TrimSpace(req.UserID) != "":
		member, err = h.service.InviteMember(ctx, actorID, boardID, strings.TrimSpace(req.UserID), req.Role)
	case strings.TrimSpace(req.Email) != "":
		member, err = h.service.InviteMemberByEmail(ctx, actorID, boardID, req.Email, req.Role)
	default:
		err = errors.ValidationError("user_id", "user_id or email is required")
	}
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, v1.Member{
		UserID:  member.UserID,
		Role:    string(member.Role),
		AddedAt: member.AddedAt,
	})
}

// UpdateMemberRole changes a member's role
// PUT /api/v1/boards/:boardId/members/:userId
func (h *Handler) UpdateMemberRole(c *gin.Context) {
	var req UpdateMemberRoleRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.service.UpdateMemberRole(c.Request.Context(), httpmw.UserID(c), c.Param("boardId"), c.Param("userId"), req.Role)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveMember removes a member from a board
// DELETE /api/v1/boards/:boardId/members/:userId
func (h *Handler) RemoveMember(c *gin.Context) {
	if err := h.service.RemoveMember(c.Request.Context(), httpmw.UserID(c), c.Param("boardId"), c.Param("userId")); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
