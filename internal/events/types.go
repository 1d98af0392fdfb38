// Package events provides event types and subjects for the TaskFlow event system.
package events

// Event types for boards
const (
	BoardCreated = "board.created"
	BoardUpdated = "board.updated"
	BoardDeleted = "board.deleted"
)

// Event types for columns
const (
	ColumnCreated    = "column.created"
	ColumnUpdated    = "column.updated"
	ColumnDeleted    = "column.deleted"
	ColumnsReordered = "column.reordered"
)

// Event types for cards
const (
	CardCreated = "card.created"
	CardUpdated = "card.updated"
	CardDeleted = "card.deleted"
	CardMoved   = "card.moved"
)

// Event types for board membership
const (
	MemberAdded       = "member.added"
	MemberRemoved     = "member.removed"
	MemberRoleChanged = "member.role_changed"
)

// Event types for per-user state
const (
	FavoriteToggled = "user.favorite_toggled"
	BoardViewed     = "user.board_viewed"
)

// Event types for identity sessions
const (
	SessionSignedIn  = "session.signed_in"
	SessionSignedOut = "session.signed_out"
)

// SessionSubject carries sign-in and sign-out notifications.
const SessionSubject = "identity.session.changed"

// AllBoardsSubject matches every board change subject.
const AllBoardsSubject = "board.*.changed"

// BoardSubject is the subject every mutation of a board's aggregate is published on.
func BoardSubject(boardID string) string {
	return "board." + boardID + ".changed"
}

// UserSubject is the subject per-user state changes are published on.
func UserSubject(userID string) string {
	return "user." + userID + ".changed"
}
