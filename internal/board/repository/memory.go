package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskflow/taskflow/internal/board/models"
)

// MemoryRepository keeps every entity in maps guarded by one lock, so a board's
// member list and the per-user membership index always change together.
type MemoryRepository struct {
	users       map[string]*models.User
	credentials map[string]*models.Credentials // by email
	boards      map[string]*models.Board
	memberOf    map[string]map[string]struct{} // userID -> boardIDs
	columns     map[string]*models.Column
	cards       map[string]*models.Card
	mu          sync.RWMutex
}

// Ensure MemoryRepository implements Repository interface
var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates a new in-memory board repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:       make(map[string]*models.User),
		credentials: make(map[string]*models.Credentials),
		boards:      make(map[string]*models.Board),
		memberOf:    make(map[string]map[string]struct{}),
		columns:     make(map[string]*models.Column),
		cards:       make(map[string]*models.Card),
	}
}

// Close is a no-op for in-memory repository
func (r *MemoryRepository) Close() error {
	return nil
}

func copyUser(u *models.User) *models.User {
	c := *u
	c.Favorites = append([]string{}, u.Favorites...)
	c.RecentlyViewed = append([]string{}, u.RecentlyViewed...)
	return &c
}

func copyColumn(c *models.Column) *models.Column {
	cc := *c
	return &cc
}

func copyCard(c *models.Card) *models.Card {
	cc := *c
	return &cc
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// User operations

// CreateUser stores a new user; the email must be unused.
func (r *MemoryRepository) CreateUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return fmt.Errorf("user email %s: %w", user.Email, ErrDuplicate)
		}
	}
	r.users[user.ID] = copyUser(user)
	return nil
}

// GetUser retrieves a user by ID
func (r *MemoryRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	return copyUser(user), nil
}

// GetUserByEmail retrieves a user by exact email.
func (r *MemoryRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.Email == email {
			return copyUser(user), nil
		}
	}
	return nil, notFound("user", email)
}

// SetFavorite adds boardID to or removes it from the user's favorites.
func (r *MemoryRepository) SetFavorite(ctx context.Context, userID, boardID string, favorite bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return notFound("user", userID)
	}
	user.Favorites = removeID(user.Favorites, boardID)
	if favorite {
		user.Favorites = append(user.Favorites, boardID)
	}
	user.UpdatedAt = at
	return nil
}

// RecordView moves boardID to the front of the user's recently viewed list and
// trims it to limit entries.
func (r *MemoryRepository) RecordView(ctx context.Context, userID, boardID string, at time.Time, limit int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return notFound("user", userID)
	}
	recent := append([]string{boardID}, removeID(user.RecentlyViewed, boardID)...)
	if limit > 0 && len(recent) > limit {
		recent = recent[:limit]
	}
	user.RecentlyViewed = recent
	user.UpdatedAt = at
	return nil
}

func removeID(ids []string, id string) []string {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// Credential operations

// CreateAccount stores the user and its credentials under one lock.
func (r *MemoryRepository) CreateAccount(ctx context.Context, user *models.User, creds *models.Credentials) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.credentials[creds.Email]; exists {
		return fmt.Errorf("account %s: %w", creds.Email, ErrDuplicate)
	}
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return fmt.Errorf("account %s: %w", user.Email, ErrDuplicate)
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	creds.UserID = user.ID
	r.users[user.ID] = copyUser(user)
	c := *creds
	r.credentials[creds.Email] = &c
	return nil
}

// GetCredentialsByEmail retrieves the credentials registered for email.
func (r *MemoryRepository) GetCredentialsByEmail(ctx context.Context, email string) (*models.Credentials, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	creds, ok := r.credentials[email]
	if !ok {
		return nil, notFound("credentials", email)
	}
	c := *creds
	return &c, nil
}

// Board operations

// CreateBoard stores a board together with its initial members.
func (r *MemoryRepository) CreateBoard(ctx context.Context, board *models.Board) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if board.ID == "" {
		board.ID = uuid.New().String()
	}
	r.boards[board.ID] = board.Clone()
	for _, m := range board.Members {
		r.index(m.UserID, board.ID)
	}
	return nil
}

func (r *MemoryRepository) index(userID, boardID string) {
	set, ok := r.memberOf[userID]
	if !ok {
		set = make(map[string]struct{})
		r.memberOf[userID] = set
	}
	set[boardID] = struct{}{}
}

func (r *MemoryRepository) unindex(userID, boardID string) {
	if set, ok := r.memberOf[userID]; ok {
		delete(set, boardID)
		if len(set) == 0 {
			delete(r.memberOf, userID)
		}
	}
}

// GetBoard retrieves a board by ID
func (r *MemoryRepository) GetBoard(ctx context.Context, id string) (*models.Board, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	board, ok := r.boards[id]
	if !ok {
		return nil, notFound("board", id)
	}
	return board.Clone(), nil
}

// UpdateBoard writes the board's title, background and updatedAt.
func (r *MemoryRepository) UpdateBoard(ctx context.Context, board *models.Board) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.boards[board.ID]
	if !ok {
		return notFound("board", board.ID)
	}
	stored.Title = board.Title
	stored.Background = board.Background
	stored.UpdatedAt = board.UpdatedAt
	return nil
}

// TouchBoard sets the board's updatedAt.
func (r *MemoryRepository) TouchBoard(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.boards[id]
	if !ok {
		return notFound("board", id)
	}
	stored.UpdatedAt = at
	return nil
}

// DeleteBoard deletes a board with its columns, cards, memberships and every
// user's favorite and recently viewed entries for it.
func (r *MemoryRepository) DeleteBoard(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	board, ok := r.boards[id]
	if !ok {
		return notFound("board", id)
	}
	for _, m := range board.Members {
		r.unindex(m.UserID, id)
	}
	for cardID, card := range r.cards {
		if card.BoardID == id {
			delete(r.cards, cardID)
		}
	}
	for columnID, column := range r.columns {
		if column.BoardID == id {
			delete(r.columns, columnID)
		}
	}
	for _, user := range r.users {
		user.Favorites = removeID(user.Favorites, id)
		user.RecentlyViewed = removeID(user.RecentlyViewed, id)
	}
	delete(r.boards, id)
	return nil
}

// ListBoardsByOwner returns the boards ownerID created.
func (r *MemoryRepository) ListBoardsByOwner(ctx context.Context, ownerID string) ([]*models.Board, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.Board
	for _, board := range r.boards {
		if board.OwnerID == ownerID {
			result = append(result, board.Clone())
		}
	}
	return result, nil
}

// ListBoardsByMember returns the boards userID is a member of.
func (r *MemoryRepository) ListBoardsByMember(ctx context.Context, userID string) ([]*models.Board, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.Board
	for boardID := range r.memberOf[userID] {
		if board, ok := r.boards[boardID]; ok {
			result = append(result, board.Clone())
		}
	}
	return result, nil
}

// Member operations

// AddMember appends member to the board's member list.
func (r *MemoryRepository) AddMember(ctx context.Context, boardID string, member models.BoardMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	board, ok := r.boards[boardID]
	if !ok {
		return notFound("board", boardID)
	}
	if _, exists := board.Member(member.UserID); exists {
		return fmt.Errorf("member %s on board %s: %w", member.UserID, boardID, ErrDuplicate)
	}
	board.Members = append(board.Members, member)
	r.index(member.UserID, boardID)
	return nil
}

// UpdateMemberRole changes an existing member's role.
func (r *MemoryRepository) UpdateMemberRole(ctx context.Context, boardID, userID string, role models.MemberRole) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	board, ok := r.boards[boardID]
	if !ok {
		return notFound("board", boardID)
	}
	for i := range board.Members {
		if board.Members[i].UserID == userID {
			board.Members[i].Role = role
			return nil
		}
	}
	return notFound("member", userID)
}

// RemoveMember removes userID from the board's member list.
func (r *MemoryRepository) RemoveMember(ctx context.Context, boardID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	board, ok := r.boards[boardID]
	if !ok {
		return notFound("board", boardID)
	}
	for i, m := range board.Members {
		if m.UserID == userID {
			board.Members = append(board.Members[:i:i], board.Members[i+1:]...)
			r.unindex(userID, boardID)
			return nil
		}
	}
	return notFound("member", userID)
}

// Column operations

// CreateColumn creates a new column
func (r *MemoryRepository) CreateColumn(ctx context.Context, column *models.Column) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.boards[column.BoardID]; !ok {
		return notFound("board", column.BoardID)
	}
	if column.ID == "" {
		column.ID = uuid.New().String()
	}
	r.columns[column.ID] = copyColumn(column)
	return nil
}

// GetColumn retrieves a column by ID
func (r *MemoryRepository) GetColumn(ctx context.Context, id string) (*models.Column, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	column, ok := r.columns[id]
	if !ok {
		return nil, notFound("column", id)
	}
	return copyColumn(column), nil
}

// UpdateColumn writes the column's title and updatedAt.
func (r *MemoryRepository) UpdateColumn(ctx context.Context, column *models.Column) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.columns[column.ID]
	if !ok {
		return notFound("column", column.ID)
	}
	stored.Title = column.Title
	stored.UpdatedAt = column.UpdatedAt
	return nil
}

// UpdateColumnPosition sets a single column's rank.
func (r *MemoryRepository) UpdateColumnPosition(ctx context.Context, id string, order int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.columns[id]
	if !ok {
		return notFound("column", id)
	}
	stored.Order = order
	stored.UpdatedAt = at
	return nil
}

// DeleteColumn deletes a column and its cards.
func (r *MemoryRepository) DeleteColumn(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.columns[id]; !ok {
		return notFound("column", id)
	}
	for cardID, card := range r.cards {
		if card.ColumnID == id {
			delete(r.cards, cardID)
		}
	}
	delete(r.columns, id)
	return nil
}

// ListColumns returns a board's columns in display order.
func (r *MemoryRepository) ListColumns(ctx context.Context, boardID string) ([]*models.Column, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.Column
	for _, column := range r.columns {
		if column.BoardID == boardID {
			result = append(result, copyColumn(column))
		}
	}
	models.SortColumns(result)
	return result, nil
}

// Card operations

// CreateCard creates a new card
func (r *MemoryRepository) CreateCard(ctx context.Context, card *models.Card) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.columns[card.ColumnID]; !ok {
		return notFound("column", card.ColumnID)
	}
	if card.ID == "" {
		card.ID = uuid.New().String()
	}
	r.cards[card.ID] = copyCard(card)
	return nil
}

// GetCard retrieves a card by ID
func (r *MemoryRepository) GetCard(ctx context.Context, id string) (*models.Card, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	card, ok := r.cards[id]
	if !ok {
		return nil, notFound("card", id)
	}
	return copyCard(card), nil
}

// UpdateCard writes the card's title, description and updatedAt.
func (r *MemoryRepository) UpdateCard(ctx context.Context, card *models.Card) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.cards[card.ID]
	if !ok {
		return notFound("card", card.ID)
	}
	stored.Title = card.Title
	stored.Description = card.Description
	stored.UpdatedAt = card.UpdatedAt
	return nil
}

// UpdateCardPosition sets a single card's column and rank in one write.
func (r *MemoryRepository) UpdateCardPosition(ctx context.Context, id, columnID string, order int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.cards[id]
	if !ok {
		return notFound("card", id)
	}
	if _, ok := r.columns[columnID]; !ok {
		return notFound("column", columnID)
	}
	stored.ColumnID = columnID
	stored.Order = order
	stored.UpdatedAt = at
	stored.PositionedAt = at
	return nil
}

// DeleteCard deletes a card by ID
func (r *MemoryRepository) DeleteCard(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.cards[id]; !ok {
		return notFound("card", id)
	}
	delete(r.cards, id)
	return nil
}

// ListCards returns all cards on a board.
func (r *MemoryRepository) ListCards(ctx context.Context, boardID string) ([]*models.Card, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.Card
	for _, card := range r.cards {
		if card.BoardID == boardID {
			result = append(result, copyCard(card))
		}
	}
	models.SortCards(result)
	return result, nil
}

// ListCardsByColumn returns a column's cards in display order.
func (r *MemoryRepository) ListCardsByColumn(ctx context.Context, columnID string) ([]*models.Card, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.Card
	for _, card := range r.cards {
		if card.ColumnID == columnID {
			result = append(result, copyCard(card))
		}
	}
	models.SortCards(result)
	return result, nil
}
