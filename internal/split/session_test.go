package split

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletide/pos/internal/domain"
)

func seatedItem(seat *int, price float64) domain.OrderItem {
	return domain.OrderItem{
		CartItem: domain.CartItem{
			ID:        uuid.New(),
			Dish:      domain.Dish{ID: uuid.New(), Name: "Dish", Price: price},
			Quantity:  1,
			UnitPrice: price,
			Seat:      seat,
		},
	}
}

func seat(n int) *int { return &n }

func sourceOrder(items ...domain.OrderItem) *domain.Order {
	order := &domain.Order{
		ID:            uuid.New(),
		Status:        domain.OrderStatusInProgress,
		Covers:        4,
		InvoiceNumber: 1042,
		Items:         items,
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}
	return order
}

func TestNewBySeat(t *testing.T) {
	source := sourceOrder(
		seatedItem(seat(1), 10),
		seatedItem(seat(1), 12),
		seatedItem(seat(2), 8),
		seatedItem(nil, 5),
	)

	session, err := NewBySeat(source)
	require.NoError(t, err)

	buckets := session.Buckets()
	require.Len(t, buckets, 3)

	assert.Equal(t, "Seat 1", buckets[0].Name)
	assert.Len(t, buckets[0].Items, 2)
	assert.Equal(t, "Seat 2", buckets[1].Name)
	assert.Len(t, buckets[1].Items, 1)
	assert.Equal(t, "No Seat", buckets[2].Name)
	assert.Len(t, buckets[2].Items, 1)

	for i, b := range buckets {
		assert.Equal(t, i+1, b.Number)
	}
	assert.True(t, session.CanSave())
}

func TestNewBySeat_OrdersNumericSeatsBeforeNoSeat(t *testing.T) {
	source := sourceOrder(
		seatedItem(nil, 1),
		seatedItem(seat(10), 1),
		seatedItem(seat(2), 1),
	)

	session, err := NewBySeat(source)
	require.NoError(t, err)

	var names []string
	for _, b := range session.Buckets() {
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{"Seat 2", "Seat 10", "No Seat"}, names)
}

func TestNewBySeat_RejectsRetiredSource(t *testing.T) {
	source := sourceOrder(seatedItem(seat(1), 10))
	source.Status = domain.OrderStatusPaid

	_, err := NewBySeat(source)
	assert.ErrorIs(t, err, ErrSourceNotInProgress)
}

func TestNewByItem(t *testing.T) {
	source := sourceOrder(
		seatedItem(seat(1), 10),
		seatedItem(seat(2), 8),
	)

	session, err := NewByItem(source, 3)
	require.NoError(t, err)

	buckets := session.Buckets()
	require.Len(t, buckets, 3)
	assert.Len(t, buckets[0].Items, 2)
	assert.Empty(t, buckets[1].Items)
	assert.Empty(t, buckets[2].Items)

	// All items still in one bucket: not savable yet.
	assert.False(t, session.CanSave())
}

func TestNewByItem_PromotesSingleBucketToTwo(t *testing.T) {
	session, err := NewByItem(sourceOrder(seatedItem(nil, 1)), 1)
	require.NoError(t, err)
	assert.Len(t, session.Buckets(), 2)
}

func TestNewByAmount(t *testing.T) {
	source := sourceOrder(
		seatedItem(nil, 10),
		seatedItem(nil, 10),
		seatedItem(nil, 10),
		seatedItem(nil, 10),
	)

	session, err := NewByAmount(source, []float64{20})
	require.NoError(t, err)

	buckets := session.Buckets()
	require.Len(t, buckets, 2)
	assert.Len(t, buckets[0].Items, 2)
	assert.Len(t, buckets[1].Items, 2)
	assert.True(t, session.CanSave())
}

func TestNewByAmount_NoThresholdsFallsBackToManual(t *testing.T) {
	session, err := NewByAmount(sourceOrder(seatedItem(nil, 10)), nil)
	require.NoError(t, err)
	assert.Len(t, session.Buckets(), 2)
}

func TestSession_Move(t *testing.T) {
	itemA := seatedItem(seat(1), 10)
	itemB := seatedItem(seat(2), 8)
	source := sourceOrder(itemA, itemB)

	session, err := NewBySeat(source)
	require.NoError(t, err)
	buckets := session.Buckets()

	t.Run("should move item between buckets", func(t *testing.T) {
		require.NoError(t, session.Move(itemA.ID, buckets[0].ID, buckets[1].ID))
		assert.Empty(t, buckets[0].Items)
		assert.Len(t, buckets[1].Items, 2)
	})

	t.Run("should no-op when item already in target", func(t *testing.T) {
		require.NoError(t, session.Move(itemA.ID, buckets[0].ID, buckets[1].ID))
		assert.Len(t, buckets[1].Items, 2)
	})

	t.Run("should error for unknown bucket", func(t *testing.T) {
		assert.ErrorIs(t, session.Move(itemA.ID, uuid.New(), buckets[0].ID), ErrBucketNotFound)
	})

	t.Run("should error when item is not in source bucket", func(t *testing.T) {
		assert.ErrorIs(t, session.Move(uuid.New(), buckets[1].ID, buckets[0].ID), ErrItemNotInBucket)
	})
}

func TestSession_CanSave(t *testing.T) {
	itemA := seatedItem(seat(1), 10)
	itemB := seatedItem(seat(2), 8)

	t.Run("should require two non-empty buckets", func(t *testing.T) {
		source := sourceOrder(itemA, itemB)
		session, err := NewByItem(source, 2)
		require.NoError(t, err)
		require.False(t, session.CanSave())

		buckets := session.Buckets()
		require.NoError(t, session.Move(itemB.ID, buckets[0].ID, buckets[1].ID))
		assert.True(t, session.CanSave())
	})

	t.Run("should detect omission", func(t *testing.T) {
		source := sourceOrder(itemA, itemB)
		session, err := NewBySeat(source)
		require.NoError(t, err)

		// Drop an item behind the session's back.
		buckets := session.Buckets()
		buckets[0].Items = nil
		assert.False(t, session.CanSave())
	})

	t.Run("should detect duplication", func(t *testing.T) {
		source := sourceOrder(itemA, itemB)
		session, err := NewBySeat(source)
		require.NoError(t, err)

		buckets := session.Buckets()
		buckets[1].Items = append(buckets[1].Items, buckets[0].Items[0])
		assert.False(t, session.CanSave())
	})
}
