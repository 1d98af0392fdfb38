// Package api provides HTTP handlers for the board service API.
package api

import "github.com/taskflow/taskflow/internal/board/ordering"

// CreateBoardRequest for creating a board
type CreateBoardRequest struct {
	Title      string `json:"title" binding:"required"`
	Background string `json:"background"`
}

// UpdateBoardRequest for updating a board
type UpdateBoardRequest struct {
	Title      *string `json:"title,omitempty"`
	Background *string `json:"background,omitempty"`
}

// CreateColumnRequest for creating a column
type CreateColumnRequest struct {
	Title string `json:"title" binding:"required"`
}

// RenameColumnRequest for renaming a column
type RenameColumnRequest struct {
	Title string `json:"title" binding:"required"`
}

// MoveColumnRequest reports a finished column drag.
type MoveColumnRequest struct {
	ColumnID         string `json:"column_id" binding:"required"`
	SourceIndex      int    `json:"source_index"`
	DestinationIndex int    `json:"destination_index"`
}

// CreateCardRequest for creating a card
type CreateCardRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

// UpdateCardRequest for updating a card
type UpdateCardRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// MoveCardRequest reports a finished card drag. A missing destination means
// the card was dropped outside any column.
type MoveCardRequest struct {
	Source      ordering.Location  `json:"source"`
	Destination *ordering.Location `json:"destination"`
}

// InviteMemberRequest adds a member by user id or by email.
type InviteMemberRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role" binding:"required"`
}

// UpdateMemberRoleRequest for changing a member's role
type UpdateMemberRoleRequest struct {
	Role string `json:"role" binding:"required"`
}
