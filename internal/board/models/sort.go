package models

import "sort"

// SortColumns orders columns left to right by (Order, CreatedAt, ID).
func SortColumns(columns []*Column) {
	sort.SliceStable(columns, func(i, j int) bool {
		a, b := columns[i], columns[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// SortCards orders cards top to bottom by Order. A card moved in from another
// column takes the destination index as its Order without renumbering the
// others, so among equal ranks the most recently positioned card goes first.
func SortCards(cards []*Card) {
	sort.SliceStable(cards, func(i, j int) bool {
		a, b := cards[i], cards[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if !a.PositionedAt.Equal(b.PositionedAt) {
			return a.PositionedAt.After(b.PositionedAt)
		}
		return a.ID < b.ID
	})
}
