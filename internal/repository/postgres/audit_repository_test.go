package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRepository_Record(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	repo := NewAuditRepository(pool)
	defer cleanupTestData(t, pool)

	now := time.Now().UTC().Truncate(time.Microsecond)

	testCases := map[string]struct {
		record         func(target uuid.UUID, related []uuid.UUID) error
		expectedAction string
	}{
		"should record split lineage": {
			record: func(target uuid.UUID, related []uuid.UUID) error {
				return repo.RecordSplit(context.Background(), target, related, "server-7", now)
			},
			expectedAction: "split",
		},
		"should record merge lineage": {
			record: func(target uuid.UUID, related []uuid.UUID) error {
				return repo.RecordMerge(context.Background(), target, related, "server-7", now)
			},
			expectedAction: "merge",
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			target := uuid.New()
			related := []uuid.UUID{uuid.New(), uuid.New()}

			require.NoError(t, tc.record(target, related))

			var (
				action     string
				actor      string
				relatedRaw []byte
				recordedAt time.Time
			)
			err := pool.QueryRow(context.Background(),
				"SELECT action, actor, related_order_ids, recorded_at FROM order_audit WHERE target_order_id = $1",
				target,
			).Scan(&action, &actor, &relatedRaw, &recordedAt)
			require.NoError(t, err)

			assert.Equal(t, tc.expectedAction, action)
			assert.Equal(t, "server-7", actor)
			assert.Equal(t, now, recordedAt.UTC())

			var gotRelated []uuid.UUID
			require.NoError(t, json.Unmarshal(relatedRaw, &gotRelated))
			assert.Equal(t, related, gotRelated)
		})
	}
}
