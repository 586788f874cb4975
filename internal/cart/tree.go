// Package cart holds a guest's in-progress selection: a list of top-level
// cart items, each carrying its own tree of selected modifiers.
package cart

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tabletide/pos/internal/domain"
)

var (
	// ErrItemNotFound is returned when an item id is not present in the tree.
	ErrItemNotFound = errors.New("cart item not found")

	// ErrQuantityBelowOne is returned by SetQuantity when the requested
	// quantity drops below one. Decrementing past one must go through
	// RemoveItem instead of silently clamping.
	ErrQuantityBelowOne = errors.New("quantity must be at least 1")
)

// Tree is the mutable cart a guest is composing. All mutation goes through
// its methods; the zero value is an empty cart ready for use.
type Tree struct {
	items []*domain.CartItem
}

// New returns an empty cart tree.
func New() *Tree {
	return &Tree{}
}

// AddItem appends a new top-level item for the given dish and returns it.
func (t *Tree) AddItem(dish domain.Dish, quantity int) (*domain.CartItem, error) {
	if quantity < 1 {
		return nil, ErrQuantityBelowOne
	}

	item := &domain.CartItem{
		ID:        uuid.New(),
		Dish:      dish,
		Quantity:  quantity,
		UnitPrice: dish.Price,
		Level:     0,
	}
	t.items = append(t.items, item)
	return item, nil
}

// SetQuantity updates an item's quantity. Quantities below one are rejected.
func (t *Tree) SetQuantity(itemID uuid.UUID, quantity int) error {
	if quantity < 1 {
		return ErrQuantityBelowOne
	}

	item := t.find(itemID)
	if item == nil {
		return fmt.Errorf("set quantity for %s: %w", itemID, ErrItemNotFound)
	}

	item.Quantity = quantity
	return nil
}

// RemoveItem deletes a top-level item. Modifiers live inside the item's own
// subtree, so their removal cascades with it.
func (t *Tree) RemoveItem(itemID uuid.UUID) error {
	for i, item := range t.items {
		if item.ID == itemID {
			t.items = append(t.items[:i], t.items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("remove %s: %w", itemID, ErrItemNotFound)
}

// AttachModifierSelection replaces the item's selected groups wholesale.
// The modifier editor always returns a complete replacement set, never a
// delta.
func (t *Tree) AttachModifierSelection(itemID uuid.UUID, groups []domain.ModifierGroup) error {
	item := t.find(itemID)
	if item == nil {
		return fmt.Errorf("attach modifiers to %s: %w", itemID, ErrItemNotFound)
	}

	item.SelectedGroups = groups
	return nil
}

// Items returns the top-level items in insertion order.
func (t *Tree) Items() []*domain.CartItem {
	return t.items
}

// Len returns the number of top-level items.
func (t *Tree) Len() int {
	return len(t.items)
}

func (t *Tree) find(itemID uuid.UUID) *domain.CartItem {
	for _, item := range t.items {
		if item.ID == itemID {
			return item
		}
	}
	return nil
}

// ItemTotal computes an item's contribution to the order total: its own
// unit price times quantity plus, recursively, the total of every selected
// modifier in every group. The recursion has no depth bound.
func ItemTotal(item *domain.CartItem) float64 {
	total := item.UnitPrice * float64(item.Quantity)
	for gi := range item.SelectedGroups {
		group := &item.SelectedGroups[gi]
		for si := range group.Selected {
			total += ItemTotal(&group.Selected[si])
		}
	}
	return total
}

// Total sums the rollup of every top-level item accepted by countable.
// Which items count is a collaborator concern (voided items are excluded by
// the caller's predicate); a nil predicate counts everything.
func (t *Tree) Total(countable func(*domain.CartItem) bool) float64 {
	var total float64
	for _, item := range t.items {
		if countable != nil && !countable(item) {
			continue
		}
		total += ItemTotal(item)
	}
	return total
}

// OrderItemTotal is ItemTotal for an item already frozen into an order.
func OrderItemTotal(item *domain.OrderItem) float64 {
	return ItemTotal(&item.CartItem)
}

// OrderTotal sums the rollup of the given committed items accepted by
// countable. A nil predicate counts everything.
func OrderTotal(items []domain.OrderItem, countable func(*domain.OrderItem) bool) float64 {
	var total float64
	for i := range items {
		if countable != nil && !countable(&items[i]) {
			continue
		}
		total += OrderItemTotal(&items[i])
	}
	return total
}
