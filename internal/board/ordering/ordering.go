// Package ordering computes rank writes for drag-and-drop on sibling lists.
//
// Siblings are columns of a board or cards of a column, passed in display
// order. The package never touches storage; it returns the writes the caller
// should apply.
package ordering

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexOutOfRange is returned when a source or destination index does not
	// address the sibling list.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrStaleDrop is returned when the dragged item is not at the source index,
	// meaning the client's view of the container is out of date.
	ErrStaleDrop = errors.New("dragged item is not at the source index")
)

// Item is a ranked entity inside a container.
type Item struct {
	ID          string
	ContainerID string
	Order       int
}

// Location addresses a position inside a container.
type Location struct {
	ContainerID string `json:"container_id"`
	Index       int    `json:"index"`
}

// Drop describes a finished drag. A nil Destination means the item was
// released outside any valid target.
type Drop struct {
	ItemID      string
	Source      Location
	Destination *Location
}

// Write sets an entity's rank. ContainerID is only set when the entity changes container.
type Write struct {
	ID          string
	Order       int
	ContainerID string
}

// Reorder moves the item at from to to and ranks every sibling by its new position.
// Lists with fewer than two items need no writes.
func Reorder(siblings []Item, from, to int) ([]Write, error) {
	if len(siblings) <= 1 {
		return nil, nil
	}
	if err := checkIndex("source", from, len(siblings)); err != nil {
		return nil, err
	}
	if err := checkIndex("destination", to, len(siblings)); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(siblings))
	for _, s := range siblings {
		ids = append(ids, s.ID)
	}
	moved := ids[from]
	ids = append(ids[:from], ids[from+1:]...)
	ids = append(ids[:to], append([]string{moved}, ids[to:]...)...)

	writes := make([]Write, len(ids))
	for i, id := range ids {
		writes[i] = Write{ID: id, Order: i}
	}
	return writes, nil
}

// Move places item into another container at index, where destinationLen is the
// number of items already there. Only the moved item is written; the source
// keeps a gap and destination siblings keep their ranks until their next Reorder.
func Move(item Item, destinationID string, index, destinationLen int) ([]Write, error) {
	if index < 0 || index > destinationLen {
		return nil, fmt.Errorf("destination index %d not in [0, %d]: %w", index, destinationLen, ErrIndexOutOfRange)
	}
	return []Write{{ID: item.ID, Order: index, ContainerID: destinationID}}, nil
}

// Insert places item into another container at index and ranks every
// destination sibling by its new position.
func Insert(item Item, destinationID string, destination []Item, index int) ([]Write, error) {
	if index < 0 || index > len(destination) {
		return nil, fmt.Errorf("destination index %d not in [0, %d]: %w", index, len(destination), ErrIndexOutOfRange)
	}
	writes := make([]Write, 0, len(destination)+1)
	for i, s := range destination[:index] {
		writes = append(writes, Write{ID: s.ID, Order: i})
	}
	writes = append(writes, Write{ID: item.ID, Order: index, ContainerID: destinationID})
	for i, s := range destination[index:] {
		writes = append(writes, Write{ID: s.ID, Order: index + 1 + i})
	}
	return writes, nil
}

// Dense reports whether every item's rank equals its index.
func Dense(items []Item) bool {
	for i, it := range items {
		if it.Order != i {
			return false
		}
	}
	return true
}

// Plan computes the writes for a drop. source and destination are the sibling
// lists of the source and destination containers; destination is ignored when
// the drop stays inside the source container. A cross-container drop writes only
// the moved item unless the destination has gaps or ties, in which case the
// destination is renumbered around it.
func Plan(drop Drop, source, destination []Item) ([]Write, error) {
	if drop.Destination == nil {
		return nil, nil
	}
	if err := checkIndex("source", drop.Source.Index, len(source)); err != nil {
		return nil, err
	}
	dragged := source[drop.Source.Index]
	if drop.ItemID != "" && dragged.ID != drop.ItemID {
		return nil, fmt.Errorf("expected %s at index %d, found %s: %w",
			drop.ItemID, drop.Source.Index, dragged.ID, ErrStaleDrop)
	}

	if drop.Destination.ContainerID == drop.Source.ContainerID {
		return Reorder(source, drop.Source.Index, drop.Destination.Index)
	}
	if !Dense(destination) {
		return Insert(dragged, drop.Destination.ContainerID, destination, drop.Destination.Index)
	}
	return Move(dragged, drop.Destination.ContainerID, drop.Destination.Index, len(destination))
}

// Minimize drops writes that would leave the stored rank and container unchanged.
func Minimize(current []Item, writes []Write) []Write {
	byID := make(map[string]Item, len(current))
	for _, it := range current {
		byID[it.ID] = it
	}

	out := make([]Write, 0, len(writes))
	for _, w := range writes {
		it, ok := byID[w.ID]
		if !ok || it.Order != w.Order || (w.ContainerID != "" && w.ContainerID != it.ContainerID) {
			out = append(out, w)
		}
	}
	return out
}

func checkIndex(which string, idx, n int) error {
	if idx < 0 || idx >= n {
		return fmt.Errorf("%s index %d not in [0, %d): %w", which, idx, n, ErrIndexOutOfRange)
	}
	return nil
}
