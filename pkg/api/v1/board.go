// Package v1 holds the JSON shapes of the TaskFlow HTTP and websocket APIs.
package v1

import "time"

// User is a public user profile.
type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Favorites      []string  `json:"favorites"`
	RecentlyViewed []string  `json:"recently_viewed"`
	CreatedAt      time.Time `json:"created_at"`
}

// Session is returned by sign-in and sign-up.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

// Member is a board participant. Role is owner, editor or viewer.
type Member struct {
	UserID  string    `json:"user_id"`
	Name    string    `json:"name"`
	Email   string    `json:"email"`
	Role    string    `json:"role"`
	AddedAt time.Time `json:"added_at"`
}

// Board is a board as seen by one user.
type Board struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Background string    `json:"background"`
	OwnerID    string    `json:"owner_id"`
	MemberIDs  []string  `json:"member_ids"`
	Role       string    `json:"role,omitempty"`
	Favorite   bool      `json:"favorite"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Column is one list on a board.
type Column struct {
	ID        string    `json:"id"`
	BoardID   string    `json:"board_id"`
	Title     string    `json:"title"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Card is one task item.
type Card struct {
	ID          string    `json:"id"`
	BoardID     string    `json:"board_id"`
	ColumnID    string    `json:"column_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Order       int       `json:"order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ColumnWithCards is a column and its cards in display order.
type ColumnWithCards struct {
	Column
	Cards []*Card `json:"cards"`
}

// BoardSnapshot is the complete renderable state of a board.
type BoardSnapshot struct {
	Board   *Board             `json:"board"`
	Columns []*ColumnWithCards `json:"columns"`
}

// BoardsListResponse for listing boards
type BoardsListResponse struct {
	Boards []*Board `json:"boards"`
	Total  int      `json:"total"`
}

// MembersListResponse for listing board members
type MembersListResponse struct {
	Members []*Member `json:"members"`
	Total   int       `json:"total"`
}

// ColumnsListResponse for listing columns
type ColumnsListResponse struct {
	Columns []*Column `json:"columns"`
	Total   int       `json:"total"`
}

// FavoriteResponse reports a board's favorite state after a toggle.
type FavoriteResponse struct {
	BoardID  string `json:"board_id"`
	Favorite bool   `json:"favorite"`
}
