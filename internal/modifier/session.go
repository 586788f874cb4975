// Package modifier drives the guided selection of modifiers for one cart
// item, one modifier group at a time. A modifier chosen here is itself a
// cart item and may be edited by its own nested session one level deeper;
// sessions share no state beyond the tree node they govern.
package modifier

import (
	"errors"

	"github.com/google/uuid"

	"github.com/tabletide/pos/internal/domain"
)

var (
	// ErrNoActiveGroup is returned by Select when the session has no groups.
	ErrNoActiveGroup = errors.New("no active modifier group")

	// ErrGroupSatisfied is returned when a required group already holds its
	// required count and refuses further selections.
	ErrGroupSatisfied = errors.New("modifier group already satisfied")

	// ErrDishNotAvailable is returned when the chosen dish is not offered by
	// the active group.
	ErrDishNotAvailable = errors.New("dish not available in active group")

	// ErrModifierNotFound is returned by Deselect and SetNestedGroups for an
	// unknown selection.
	ErrModifierNotFound = errors.New("selected modifier not found")

	// ErrNoSuchGroup is returned by Activate for an index outside the
	// session's groups.
	ErrNoSuchGroup = errors.New("modifier group does not exist")
)

// Session is the per-item selection state machine. The active group index is
// explicit session state, not incidental UI state.
type Session struct {
	groups   []domain.ModifierGroup
	active   int
	level    int
	editMode bool
}

// Option configures a Session.
type Option func(*Session)

// WithEditMode marks the session as a re-edit of an existing selection.
// Edit mode disables auto-fill and auto-close.
func WithEditMode() Option {
	return func(s *Session) { s.editMode = true }
}

// WithLevel sets the nesting level of the item being edited; selections are
// created one level deeper.
func WithLevel(level int) Option {
	return func(s *Session) { s.level = level }
}

// NewSession opens a selection over the given groups. Groups whose available
// modifiers exactly match the required count ("choose all of the following")
// are filled in without user interaction unless the session is in edit mode,
// and the first required unsatisfied group becomes active.
func NewSession(groups []domain.ModifierGroup, opts ...Option) *Session {
	s := &Session{
		groups: make([]domain.ModifierGroup, len(groups)),
		active: -1,
	}
	copy(s.groups, groups)

	for _, opt := range opts {
		opt(s)
	}

	if !s.editMode {
		s.autoFill()
	}

	if len(s.groups) > 0 {
		s.active = 0
		s.advance()
	}

	return s
}

// autoFill selects every available modifier in groups shaped as "choose all
// of the following N items".
func (s *Session) autoFill() {
	for i := range s.groups {
		group := &s.groups[i]
		if !group.HasRequired || group.RequiredCount == 0 || len(group.Selected) > 0 {
			continue
		}
		if len(group.Available) != group.RequiredCount {
			continue
		}

		for _, d := range group.Available {
			group.Selected = append(group.Selected, s.newSelection(d))
		}
	}
}

// Activate makes the group at the given index the selection target. This is
// how optional groups become reachable once required groups are filled;
// while a required group is still unsatisfied the next Select snaps the
// focus back to it.
func (s *Session) Activate(index int) error {
	if index < 0 || index >= len(s.groups) {
		return ErrNoSuchGroup
	}
	s.active = index
	return nil
}

// Select appends the chosen dish to the active group. Required groups stop
// accepting selections once satisfied; optional groups accept unboundedly.
// The returned item is a copy of the new selection; nested edits are written
// back through SetNestedGroups.
func (s *Session) Select(dishID uuid.UUID) (*domain.CartItem, error) {
	if s.active < 0 {
		return nil, ErrNoActiveGroup
	}

	group := &s.groups[s.active]
	if group.HasRequired && len(group.Selected) >= group.RequiredCount {
		return nil, ErrGroupSatisfied
	}

	var chosen *domain.Dish
	for i := range group.Available {
		if group.Available[i].ID == dishID {
			chosen = &group.Available[i]
			break
		}
	}
	if chosen == nil {
		return nil, ErrDishNotAvailable
	}

	group.Selected = append(group.Selected, s.newSelection(*chosen))
	item := group.Selected[len(group.Selected)-1]

	s.advance()
	return &item, nil
}

// SetNestedGroups replaces the nested selection of a previously selected
// modifier, identified by its ID.
func (s *Session) SetNestedGroups(modifierID uuid.UUID, groups []domain.ModifierGroup) error {
	for gi := range s.groups {
		group := &s.groups[gi]
		for si := range group.Selected {
			if group.Selected[si].ID == modifierID {
				group.Selected[si].SelectedGroups = groups
				return nil
			}
		}
	}
	return ErrModifierNotFound
}

// Deselect removes a previously selected modifier from whichever group holds
// it. A group that was satisfied may become unsatisfied again and is
// re-activatable.
func (s *Session) Deselect(modifierID uuid.UUID) error {
	for gi := range s.groups {
		group := &s.groups[gi]
		for si := range group.Selected {
			if group.Selected[si].ID != modifierID {
				continue
			}
			group.Selected = append(group.Selected[:si], group.Selected[si+1:]...)
			s.advance()
			return nil
		}
	}
	return ErrModifierNotFound
}

// advance moves the active group to the first required unsatisfied group in
// list order. When none remains the active group stays as last activated.
func (s *Session) advance() {
	for i := range s.groups {
		if s.groups[i].HasRequired && !s.groups[i].Satisfied() {
			s.active = i
			return
		}
	}
}

// Done reports whether the selection closes automatically: every required
// count is met in full, there are no purely optional groups, and the session
// is not a re-edit.
func (s *Session) Done() bool {
	if s.editMode || len(s.groups) == 0 {
		return false
	}

	var selected, required int
	for i := range s.groups {
		if !s.groups[i].HasRequired {
			return false
		}
		selected += len(s.groups[i].Selected)
		required += s.groups[i].RequiredCount
	}
	return selected == required
}

// CanDismiss reports whether the user may close the session: trivially when
// there are no groups, before anything was selected in a fresh session, or
// once every required group is satisfied.
func (s *Session) CanDismiss() bool {
	if len(s.groups) == 0 {
		return true
	}

	if !s.editMode && s.selectionCount() == 0 {
		return true
	}

	for i := range s.groups {
		if !s.groups[i].Satisfied() {
			return false
		}
	}
	return true
}

// Groups returns the accumulated selection as a complete replacement set for
// the item's selected groups.
func (s *Session) Groups() []domain.ModifierGroup {
	return s.groups
}

// ActiveIndex returns the index of the active group, or -1 when the session
// has no groups.
func (s *Session) ActiveIndex() int {
	return s.active
}

// ActiveGroup returns the active group, or nil when the session has none.
func (s *Session) ActiveGroup() *domain.ModifierGroup {
	if s.active < 0 {
		return nil
	}
	return &s.groups[s.active]
}

func (s *Session) selectionCount() int {
	var n int
	for i := range s.groups {
		n += len(s.groups[i].Selected)
	}
	return n
}

func (s *Session) newSelection(d domain.Dish) domain.CartItem {
	return domain.CartItem{
		ID:         uuid.New(),
		Dish:       d,
		Quantity:   1,
		UnitPrice:  d.Price,
		Level:      s.level + 1,
		IsModifier: true,
	}
}
