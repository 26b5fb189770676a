package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "bins", "SDB-0001", map[string]interface{}{"name": "Depot A"}, false))

	data, ok, err := s.Get(ctx, "bins", "SDB-0001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Depot A", data["name"])

	// Mutating the returned map must not leak into the store.
	data["name"] = "mutated"
	again, _, err := s.Get(ctx, "bins", "SDB-0001")
	require.NoError(t, err)
	assert.Equal(t, "Depot A", again["name"])

	require.NoError(t, s.Delete(ctx, "bins", "SDB-0001"))
	_, ok, err = s.Get(ctx, "bins", "SDB-0001")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deletes are idempotent.
	require.NoError(t, s.Delete(ctx, "bins", "SDB-0001"))
}

func TestMemoryStoreMergeSet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "serials", "SDB-0001", map[string]interface{}{
		"binId":    "SDB-0001",
		"archived": false,
	}, false))
	require.NoError(t, s.Set(ctx, "serials", "SDB-0001", map[string]interface{}{
		"archived": true,
	}, true))

	data, ok, err := s.Get(ctx, "serials", "SDB-0001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "SDB-0001", data["binId"], "merge must not drop untouched fields")
	assert.Equal(t, true, data["archived"])
}

func TestTransactionRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "bins", "SDB-0001", map[string]interface{}{"name": "Depot A"}, false))

	// Inject a conflicting write between the read and the commit of the
	// first attempt only. The retry should then succeed.
	injected := false
	s.beforeCommit = func() {
		if injected {
			return
		}
		injected = true
		s.applySet("bins", "SDB-0001", map[string]interface{}{"name": "Depot B"}, false)
	}

	attempts := 0
	err := s.RunTransaction(ctx, func(tx Tx) error {
		attempts++
		data, ok, err := tx.Get("bins", "SDB-0001")
		require.NoError(t, err)
		require.True(t, ok)
		data["name"] = data["name"].(string) + " (updated)"
		tx.Set("bins", "SDB-0001", data, false)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	data, _, err := s.Get(ctx, "bins", "SDB-0001")
	require.NoError(t, err)
	assert.Equal(t, "Depot B (updated)", data["name"], "retry must observe the conflicting write")
}

func TestTransactionConflictBudgetExhausted(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "bins", "SDB-0001", map[string]interface{}{"n": 0}, false))

	// Every attempt loses the race.
	s.beforeCommit = func() {
		s.applySet("bins", "SDB-0001", map[string]interface{}{"n": 1}, false)
	}

	attempts := 0
	err := s.RunTransaction(ctx, func(tx Tx) error {
		attempts++
		_, _, err := tx.Get("bins", "SDB-0001")
		if err != nil {
			return err
		}
		tx.Set("bins", "SDB-0001", map[string]interface{}{"n": 2}, false)
		return nil
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, defaultTxRetries, attempts)
}

func TestTransactionDetectsCreationOfAbsentDoc(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	// The transaction reads an absent doc; a concurrent writer creates it
	// before commit. The read set must be invalidated.
	created := false
	s.beforeCommit = func() {
		if created {
			return
		}
		created = true
		s.applySet("serials", "SDB-0001", map[string]interface{}{"binId": "SDB-0001"}, false)
	}

	var sawIt bool
	err := s.RunTransaction(ctx, func(tx Tx) error {
		_, ok, err := tx.Get("serials", "SDB-0001")
		if err != nil {
			return err
		}
		sawIt = ok
		if !ok {
			tx.Set("serials", "SDB-0001", map[string]interface{}{"binId": "SDB-0001"}, false)
		}
		return nil
	})
	require.NoError(t, err)
	assert.True(t, sawIt, "retry must observe the concurrently created doc")
}

func TestTransactionRejectsReadAfterWrite(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	err := s.RunTransaction(ctx, func(tx Tx) error {
		tx.Set("bins", "SDB-0001", map[string]interface{}{"name": "x"}, false)
		_, _, err := tx.Get("bins", "SDB-0002")
		return err
	})
	assert.ErrorIs(t, err, ErrReadAfterWrite)
}

func TestWhereOperators(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Set(ctx, "deleted", "SDB-0001", map[string]interface{}{"autoDeleteAfter": now.Add(-time.Hour)}, false))
	require.NoError(t, s.Set(ctx, "deleted", "SDB-0002", map[string]interface{}{"autoDeleteAfter": now.Add(time.Hour)}, false))
	require.NoError(t, s.Set(ctx, "archive", "SDB-0003", map[string]interface{}{"status": "restored"}, false))
	require.NoError(t, s.Set(ctx, "archive", "SDB-0004", map[string]interface{}{"status": "archived"}, false))

	expired, err := s.Where(ctx, "deleted", "autoDeleteAfter", "<=", now)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "SDB-0001", expired[0].ID)

	restored, err := s.Where(ctx, "archive", "status", "==", "restored")
	require.NoError(t, err)
	require.Len(t, restored, 1)
	assert.Equal(t, "SDB-0003", restored[0].ID)

	_, err = s.Where(ctx, "archive", "status", "~", "restored")
	assert.Error(t, err)
}

func TestAllReturnsEveryDoc(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "bins", "SDB-0001", map[string]interface{}{"name": "a"}, false))
	require.NoError(t, s.Set(ctx, "bins", "SDB-0002", map[string]interface{}{"name": "b"}, false))

	docs, err := s.All(ctx, "bins")
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	empty, err := s.All(ctx, "archive")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
