// Package repository is the entity store for users, boards, columns and cards.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/taskflow/taskflow/internal/board/models"
)

var (
	// ErrNotFound is wrapped by every lookup of a missing entity.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is wrapped when a unique key (email, board member) already exists.
	ErrDuplicate = errors.New("already exists")
)

// Repository defines the interface for board storage operations.
// Returned entities are copies; callers may modify them freely.
type Repository interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SetFavorite(ctx context.Context, userID, boardID string, favorite bool, at time.Time) error
	RecordView(ctx context.Context, userID, boardID string, at time.Time, limit int) error

	// Credential operations. CreateAccount stores a new user and its
	// credentials together: either both are written or neither is.
	CreateAccount(ctx context.Context, user *models.User, creds *models.Credentials) error
	GetCredentialsByEmail(ctx context.Context, email string) (*models.Credentials, error)

	// Board operations. UpdateBoard writes title, background and updatedAt only;
	// membership changes go through the member operations.
	CreateBoard(ctx context.Context, board *models.Board) error
	GetBoard(ctx context.Context, id string) (*models.Board, error)
	UpdateBoard(ctx context.Context, board *models.Board) error
	TouchBoard(ctx context.Context, id string, at time.Time) error
	DeleteBoard(ctx context.Context, id string) error
	ListBoardsByOwner(ctx context.Context, ownerID string) ([]*models.Board, error)
	ListBoardsByMember(ctx context.Context, userID string) ([]*models.Board, error)

	// Member operations
	AddMember(ctx context.Context, boardID string, member models.BoardMember) error
	UpdateMemberRole(ctx context.Context, boardID, userID string, role models.MemberRole) error
	RemoveMember(ctx context.Context, boardID, userID string) error

	// Column operations
	CreateColumn(ctx context.Context, column *models.Column) error
	GetColumn(ctx context.Context, id string) (*models.Column, error)
	UpdateColumn(ctx context.Context, column *models.Column) error
	UpdateColumnPosition(ctx context.Context, id string, order int, at time.Time) error
	DeleteColumn(ctx context.Context, id string) error
	ListColumns(ctx context.Context, boardID string) ([]*models.Column, error)

	// Card operations
	CreateCard(ctx context.Context, card *models.Card) error
	GetCard(ctx context.Context, id string) (*models.Card, error)
	UpdateCard(ctx context.Context, card *models.Card) error
	UpdateCardPosition(ctx context.Context, id, columnID string, order int, at time.Time) error
	DeleteCard(ctx context.Context, id string) error
	ListCards(ctx context.Context, boardID string) ([]*models.Card, error)
	ListCardsByColumn(ctx context.Context, columnID string) ([]*models.Card, error)

	// Close closes the repository (for database connections)
	Close() error
}
