// Package storetest exercises a compliance suite against a store.Store
// implementation. Drivers call Run from their own tests with a clean,
// isolated store.
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CaputoDavide93/new-starters-meetup/internal/model"
	"github.com/CaputoDavide93/new-starters-meetup/internal/store"
)

// Run verifies the durable-store contract: get/put semantics, idempotent
// ensure, single-operation atomic increment, scan and roster replacement.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	ctx := context.Background()
	const part = "coffee"

	t.Run("get missing returns ErrNotFound", func(t *testing.T) {
		s := makeStore(t)
		_, err := s.Participants().Get(ctx, part, "ghost@example.com")
		require.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("ensure present is idempotent", func(t *testing.T) {
		s := makeStore(t)
		require.NoError(t, s.Participants().EnsurePresent(ctx, part, "a@example.com"))
		require.NoError(t, s.Participants().EnsurePresent(ctx, part, "a@example.com"))

		rec, err := s.Participants().Get(ctx, part, "a@example.com")
		require.NoError(t, err)
		assert.Equal(t, int64(0), rec.Weight)
	})

	t.Run("ensure present keeps existing weight", func(t *testing.T) {
		s := makeStore(t)
		require.NoError(t, s.Participants().IncrementWeight(ctx, part, "a@example.com"))
		require.NoError(t, s.Participants().EnsurePresent(ctx, part, "a@example.com"))

		rec, err := s.Participants().Get(ctx, part, "a@example.com")
		require.NoError(t, err)
		assert.Equal(t, int64(1), rec.Weight)
	})

	t.Run("set display name preserves weight", func(t *testing.T) {
		s := makeStore(t)
		require.NoError(t, s.Participants().IncrementWeight(ctx, part, "a@example.com"))
		require.NoError(t, s.Participants().SetDisplayName(ctx, part, "a@example.com", "Ada Lovelace"))

		rec, err := s.Participants().Get(ctx, part, "a@example.com")
		require.NoError(t, err)
		assert.Equal(t, "Ada Lovelace", rec.DisplayName)
		assert.Equal(t, int64(1), rec.Weight)
	})

	t.Run("increment initializes absent record", func(t *testing.T) {
		s := makeStore(t)
		require.NoError(t, s.Participants().IncrementWeight(ctx, part, "new@example.com"))

		rec, err := s.Participants().Get(ctx, part, "new@example.com")
		require.NoError(t, err)
		assert.Equal(t, int64(1), rec.Weight)
	})

	t.Run("concurrent increments lose no updates", func(t *testing.T) {
		s := makeStore(t)
		require.NoError(t, s.Participants().EnsurePresent(ctx, part, "busy@example.com"))

		const n = 25
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- s.Participants().IncrementWeight(ctx, part, "busy@example.com")
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		rec, err := s.Participants().Get(ctx, part, "busy@example.com")
		require.NoError(t, err)
		assert.Equal(t, int64(n), rec.Weight)
	})

	t.Run("batch weights skip missing records", func(t *testing.T) {
		s := makeStore(t)
		require.NoError(t, s.Participants().IncrementWeight(ctx, part, "a@example.com"))
		require.NoError(t, s.Participants().EnsurePresent(ctx, part, "b@example.com"))

		weights, err := s.Participants().Weights(ctx, part, []string{"a@example.com", "b@example.com", "ghost@example.com"})
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"a@example.com": 1, "b@example.com": 0}, weights)
	})

	t.Run("list and delete", func(t *testing.T) {
		s := makeStore(t)
		require.NoError(t, s.Participants().EnsurePresent(ctx, part, "a@example.com"))
		require.NoError(t, s.Participants().EnsurePresent(ctx, part, "b@example.com"))

		all, err := s.Participants().List(ctx, part)
		require.NoError(t, err)
		require.Len(t, all, 2)

		require.NoError(t, s.Participants().Delete(ctx, part, "a@example.com"))
		all, err = s.Participants().List(ctx, part)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "b@example.com", all[0].Email)
	})

	t.Run("partitions are independent", func(t *testing.T) {
		s := makeStore(t)
		require.NoError(t, s.Participants().IncrementWeight(ctx, "coffee", "a@example.com"))

		_, err := s.Participants().Get(ctx, "buddy", "a@example.com")
		require.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("roster replace and read back", func(t *testing.T) {
		s := makeStore(t)
		_, err := s.Rosters().Get(ctx, part)
		require.ErrorIs(t, err, model.ErrNotFound)

		first := []string{"a@example.com", "b@example.com"}
		require.NoError(t, s.Rosters().Put(ctx, part, first))
		got, err := s.Rosters().Get(ctx, part)
		require.NoError(t, err)
		assert.Equal(t, first, got)

		second := []string{"c@example.com"}
		require.NoError(t, s.Rosters().Put(ctx, part, second))
		got, err = s.Rosters().Get(ctx, part)
		require.NoError(t, err)
		assert.Equal(t, second, got)
	})

	t.Run("ping", func(t *testing.T) {
		s := makeStore(t)
		require.NoError(t, s.Ping(ctx))
	})
}
