// Package models defines the board aggregate: users, boards, members, columns and cards.
package models

import (
	"time"
)

// MemberRole is the role a non-owner holds on a board.
type MemberRole string

const (
	RoleEditor MemberRole = "editor"
	RoleViewer MemberRole = "viewer"
)

// Valid reports whether r is a grantable member role.
func (r MemberRole) Valid() bool {
	return r == RoleEditor || r == RoleViewer
}

// DefaultBackground is used when a board is created without one.
const DefaultBackground = "gradient-board-1"

// Backgrounds lists the style tokens a board may use.
var Backgrounds = []string{
	"gradient-board-1",
	"gradient-board-2",
	"gradient-board-3",
	"gradient-board-4",
	"gradient-board-5",
}

// ValidBackground reports whether token is a known board background.
func ValidBackground(token string) bool {
	for _, b := range Backgrounds {
		if b == token {
			return true
		}
	}
	return false
}

// DefaultColumnTitles are created, in order, on a board that has no columns.
var DefaultColumnTitles = []string{"To Do", "In Progress", "Done"}

// User is a registered account and its per-user board lists.
type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	RecentlyViewed []string  `json:"recently_viewed"` // most recent first
	Favorites      []string  `json:"favorites"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsFavorite reports whether boardID is in the user's favorites.
func (u *User) IsFavorite(boardID string) bool {
	for _, id := range u.Favorites {
		if id == boardID {
			return true
		}
	}
	return false
}

// Credentials hold the password hash for a user's email sign-in.
type Credentials struct {
	UserID       string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// BoardMember grants a non-owner access to a board.
type BoardMember struct {
	UserID  string     `json:"user_id"`
	Role    MemberRole `json:"role"`
	AddedAt time.Time  `json:"added_at"`
}

// Board is the aggregate root. The owner never appears in Members.
type Board struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Background string        `json:"background"`
	OwnerID    string        `json:"owner_id"`
	Members    []BoardMember `json:"members"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// MemberIDs is the membership index derived from Members.
func (b *Board) MemberIDs() []string {
	ids := make([]string, 0, len(b.Members))
	for _, m := range b.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

// Member returns the membership entry for userID.
func (b *Board) Member(userID string) (BoardMember, bool) {
	for _, m := range b.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return BoardMember{}, false
}

// Clone returns a copy that shares no slices with b.
func (b *Board) Clone() *Board {
	c := *b
	c.Members = append([]BoardMember(nil), b.Members...)
	return &c
}

// Column is a vertical list on a board, ranked left to right by Order.
type Column struct {
	ID        string    `json:"id" db:"id"`
	BoardID   string    `json:"board_id" db:"board_id"`
	Title     string    `json:"title" db:"title"`
	Order     int       `json:"order" db:"position"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Card is a task item ranked top to bottom within its column by Order.
type Card struct {
	ID          string    `json:"id" db:"id"`
	BoardID     string    `json:"board_id" db:"board_id"`
	ColumnID    string    `json:"column_id" db:"column_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Order       int       `json:"order" db:"position"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`

	// PositionedAt is set on creation and on every column or rank change,
	// never by content edits. It breaks ties between equal Orders.
	PositionedAt time.Time `json:"positioned_at" db:"positioned_at"`
}
