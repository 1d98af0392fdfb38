package api

import (
	"github.com/taskflow/taskflow/internal/board/access"
	"github.com/taskflow/taskflow/internal/board/models"
	"github.com/taskflow/taskflow/internal/board/service"
	v1 "github.com/taskflow/taskflow/pkg/api/v1"
)

// UserToResponse converts a user to its public shape.
func UserToResponse(u *models.User) *v1.User {
	resp := &v1.User{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Favorites:      u.Favorites,
		RecentlyViewed: u.RecentlyViewed,
		CreatedAt:      u.CreatedAt,
	}
	if resp.Favorites == nil {
		resp.Favorites = []string{}
	}
	if resp.RecentlyViewed == nil {
		resp.RecentlyViewed = []string{}
	}
	return resp
}

// BoardToResponse renders board for viewer. user may be nil, in which case
// Favorite is left false.
func BoardToResponse(b *models.Board, viewerID string, user *models.User) *v1.Board {
	resp := &v1.Board{
		ID:         b.ID,
		Title:      b.Title,
		Background: b.Background,
		OwnerID:    b.OwnerID,
		MemberIDs:  b.MemberIDs(),
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
	if role := access.Resolve(b, viewerID); role != (access.None{}) {
		resp.Role = role.String()
	}
	if user != nil {
		resp.Favorite = user.IsFavorite(b.ID)
	}
	return resp
}

func columnToResponse(c *models.Column) *v1.Column {
	return &v1.Column{
		ID:        c.ID,
		BoardID:   c.BoardID,
		Title:     c.Title,
		Order:     c.Order,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func cardToResponse(c *models.Card) *v1.Card {
	return &v1.Card{
		ID:          c.ID,
		BoardID:     c.BoardID,
		ColumnID:    c.ColumnID,
		Title:       c.Title,
		Description: c.Description,
		Order:       c.Order,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func memberToResponse(m *service.MemberView) *v1.Member {
	return &v1.Member{
		UserID:  m.UserID,
		Name:    m.Name,
		Email:   m.Email,
		Role:    m.Role,
		AddedAt: m.AddedAt,
	}
}

// SnapshotToResponse flattens a snapshot into columns that carry their cards.
// Every slice in the result is non-nil.
func SnapshotToResponse(snap *service.Snapshot, viewerID string) *v1.BoardSnapshot {
	resp := &v1.BoardSnapshot{
		Board:   BoardToResponse(snap.Board, viewerID, nil),
		Columns: make([]*v1.ColumnWithCards, 0, len(snap.Columns)),
	}
	for _, col := range snap.Columns {
		cards := snap.Cards[col.ID]
		entry := &v1.ColumnWithCards{
			Column: *columnToResponse(col),
			Cards:  make([]*v1.Card, 0, len(cards)),
		}
		for _, card := range cards {
			entry.Cards = append(entry.Cards, cardToResponse(card))
		}
		resp.Columns = append(resp.Columns, entry)
	}
	return resp
}
