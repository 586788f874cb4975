package domain

import "github.com/google/uuid"

// Dish is a menu entry that can be ordered directly or offered as a modifier
// inside a modifier group.
type Dish struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Price float64   `json:"price"`
}

// GroupRef identifies the menu-side definition a ModifierGroup was built from.
type GroupRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// CartItem is one ordered unit: a dish (or a modifier, which is dish-like)
// together with the modifier groups selected underneath it. Modifiers are
// themselves CartItems, so the structure recurses to arbitrary depth.
type CartItem struct {
	ID         uuid.UUID `json:"id"`
	Dish       Dish      `json:"dish"`
	Quantity   int       `json:"quantity"`
	UnitPrice  float64   `json:"unit_price"`
	Level      int       `json:"level"`
	IsModifier bool      `json:"is_modifier"`
	// Seat is nil when the item has not been assigned to a seat.
	Seat           *int            `json:"seat,omitempty"`
	Comments       string          `json:"comments,omitempty"`
	SelectedGroups []ModifierGroup `json:"selected_groups,omitempty"`
}

// ModifierGroup is a named choice group attached to a CartItem.
//
// Invariant: when HasRequired is true, 0 <= len(Selected) <= RequiredCount
// at all times, and the group is satisfied only when equality holds.
type ModifierGroup struct {
	Group         GroupRef   `json:"group"`
	RequiredCount int        `json:"required_count"`
	HasRequired   bool       `json:"has_required"`
	Available     []Dish     `json:"available,omitempty"`
	Selected      []CartItem `json:"selected,omitempty"`
}

// Satisfied reports whether the group blocks nothing: optional groups are
// always satisfied, required groups only at the exact required count.
func (g *ModifierGroup) Satisfied() bool {
	if !g.HasRequired {
		return true
	}
	return len(g.Selected) == g.RequiredCount
}
