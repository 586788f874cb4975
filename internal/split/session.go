// Package split partitions one in-progress order's items into two or more
// new orders. A session is a purely in-memory arrangement of bucket
// contents; nothing touches the store until the session is committed.
package split

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/tabletide/pos/internal/cart"
	"github.com/tabletide/pos/internal/domain"
)

const noSeatLabel = "No Seat"

var (
	// ErrSourceNotInProgress is returned when the source order cannot be split.
	ErrSourceNotInProgress = errors.New("source order is not in progress")

	// ErrBucketNotFound is returned by Move for an unknown bucket id.
	ErrBucketNotFound = errors.New("split bucket not found")

	// ErrItemNotInBucket is returned by Move when the item is not held by the
	// source bucket.
	ErrItemNotInBucket = errors.New("item not found in source bucket")
)

// Session holds the working buckets of one split workflow. Buckets must
// cover a partition of the source item set before the session can be saved.
type Session struct {
	source  *domain.Order
	buckets []*domain.Split
}

// NewBySeat seeds buckets by grouping the source items by their seat
// attribute. Unseated items form a "No Seat" bucket. Bucket order is
// deterministic: numeric seat labels ascending, then other labels
// lexicographically, "No Seat" always last.
func NewBySeat(source *domain.Order) (*Session, error) {
	if err := validateSource(source); err != nil {
		return nil, err
	}

	grouped := make(map[string][]domain.OrderItem)
	for _, item := range source.Items {
		label := noSeatLabel
		if item.Seat != nil {
			label = fmt.Sprintf("Seat %d", *item.Seat)
		}
		grouped[label] = append(grouped[label], item)
	}

	labels := make([]string, 0, len(grouped))
	for label := range grouped {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return labelLess(labels[i], labels[j]) })

	s := &Session{source: source}
	for i, label := range labels {
		s.buckets = append(s.buckets, &domain.Split{
			ID:     uuid.New(),
			Name:   label,
			Number: i + 1,
			Items:  grouped[label],
		})
	}
	return s, nil
}

// NewByItem seeds bucketCount empty buckets with every item in the first,
// ready for manual reassignment. Fewer than two buckets are promoted to two.
func NewByItem(source *domain.Order, bucketCount int) (*Session, error) {
	if err := validateSource(source); err != nil {
		return nil, err
	}
	if bucketCount < 2 {
		bucketCount = 2
	}

	s := &Session{source: source}
	for i := 0; i < bucketCount; i++ {
		s.buckets = append(s.buckets, &domain.Split{
			ID:     uuid.New(),
			Name:   fmt.Sprintf("Split %d", i+1),
			Number: i + 1,
		})
	}
	s.buckets[0].Items = append(s.buckets[0].Items, source.Items...)
	return s, nil
}

// NewByAmount seeds one bucket per monetary threshold, filling each in item
// order until its rollup value reaches the threshold, with every remaining
// item landing in a final bucket. Manual reassignment rules are identical to
// the other strategies.
func NewByAmount(source *domain.Order, thresholds []float64) (*Session, error) {
	if err := validateSource(source); err != nil {
		return nil, err
	}
	if len(thresholds) == 0 {
		return NewByItem(source, 2)
	}

	s := &Session{source: source}
	for i := range thresholds {
		s.buckets = append(s.buckets, &domain.Split{
			ID:     uuid.New(),
			Name:   fmt.Sprintf("Split %d", i+1),
			Number: i + 1,
		})
	}
	remainder := &domain.Split{
		ID:     uuid.New(),
		Name:   fmt.Sprintf("Split %d", len(thresholds)+1),
		Number: len(thresholds) + 1,
	}
	s.buckets = append(s.buckets, remainder)

	current := 0
	var filled float64
	for _, item := range source.Items {
		for current < len(thresholds) && filled >= thresholds[current] {
			current++
			filled = 0
		}
		if current >= len(thresholds) {
			remainder.Items = append(remainder.Items, item)
			continue
		}
		s.buckets[current].Items = append(s.buckets[current].Items, item)
		filled += cart.OrderItemTotal(&item)
	}
	return s, nil
}

func validateSource(source *domain.Order) error {
	if source.Status != domain.OrderStatusInProgress {
		return fmt.Errorf("order %s has status %q: %w", source.ID, source.Status, ErrSourceNotInProgress)
	}
	return nil
}

// Move drags an item from one bucket to another: removed from the source,
// appended to the target. Moving an item onto the bucket that already holds
// it is a no-op.
func (s *Session) Move(itemID, fromBucket, toBucket uuid.UUID) error {
	from := s.bucket(fromBucket)
	to := s.bucket(toBucket)
	if from == nil || to == nil {
		return ErrBucketNotFound
	}

	for _, item := range to.Items {
		if item.ID == itemID {
			return nil
		}
	}

	for i, item := range from.Items {
		if item.ID == itemID {
			from.Items = append(from.Items[:i], from.Items[i+1:]...)
			to.Items = append(to.Items, item)
			return nil
		}
	}
	return fmt.Errorf("move %s: %w", itemID, ErrItemNotInBucket)
}

func (s *Session) bucket(id uuid.UUID) *domain.Split {
	for _, b := range s.buckets {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// Buckets returns the working buckets in order.
func (s *Session) Buckets() []*domain.Split {
	return s.buckets
}

// Source returns the order being split.
func (s *Session) Source() *domain.Order {
	return s.source
}

// CanSave reports whether the session may commit: at least two non-empty
// buckets whose contents partition the source item set, every item in
// exactly one bucket with no duplication and no omission.
func (s *Session) CanSave() bool {
	if s.nonEmptyCount() < 2 {
		return false
	}
	return s.isPartition()
}

func (s *Session) nonEmptyCount() int {
	var n int
	for _, b := range s.buckets {
		if len(b.Items) > 0 {
			n++
		}
	}
	return n
}

func (s *Session) isPartition() bool {
	seen := make(map[uuid.UUID]int, len(s.source.Items))
	for _, b := range s.buckets {
		for _, item := range b.Items {
			seen[item.ID]++
		}
	}

	if len(seen) != len(s.source.Items) {
		return false
	}
	for _, item := range s.source.Items {
		if seen[item.ID] != 1 {
			return false
		}
	}
	return true
}

// labelLess orders bucket labels: numeric seat labels ascending first, other
// labels lexicographically after them, "No Seat" always last.
func labelLess(a, b string) bool {
	if a == noSeatLabel {
		return false
	}
	if b == noSeatLabel {
		return true
	}

	an, aNum := seatNumber(a)
	bn, bNum := seatNumber(b)
	switch {
	case aNum && bNum:
		return an < bn
	case aNum:
		return true
	case bNum:
		return false
	default:
		return a < b
	}
}

func seatNumber(label string) (int, bool) {
	var n int
	if _, err := fmt.Sscanf(label, "Seat %d", &n); err == nil {
		return n, true
	}
	if v, err := strconv.Atoi(label); err == nil {
		return v, true
	}
	return 0, false
}
