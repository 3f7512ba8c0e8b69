package queue_test

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/queuebot/queue"
)

func TestParseCount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, queue.ParseCount(""))
	assert.Equal(t, 1, queue.ParseCount("many"))
	assert.Equal(t, 1, queue.ParseCount("2x"))
	assert.Equal(t, 3, queue.ParseCount("3"))
	assert.Equal(t, 0, queue.ParseCount("0"))
	assert.Equal(t, -2, queue.ParseCount("-2"))
	assert.Equal(t, math.MaxInt, queue.ParseCount("99999999999999999999"))
	assert.Equal(t, math.MaxInt, queue.ParseCount("+99999999999999999999"))
	assert.Equal(t, math.MinInt, queue.ParseCount("-99999999999999999999"))
}

func TestSelectSequential(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, store := setup(t, true, queue.RankViewer, 0, "A", "B", "C", "D")
	picked, err := svc.Select(ctx, chanID, mod, 2, queue.Sequential)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, names(picked))
	assert.Equal(t, []string{"C", "D"}, memberNames(t, store))

	picked, err = svc.Select(ctx, chanID, mod, 2, queue.Sequential)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "D"}, names(picked))
	assert.Empty(t, memberNames(t, store))
}

func TestSelectPreconditions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("requires moderator", func(t *testing.T) {
		svc, _ := setup(t, true, queue.RankViewer, 0, "A")
		_, err := svc.Select(ctx, chanID, viewer("A"), 1, queue.Sequential)
		assert.ErrorIs(t, err, queue.ErrPermissionDenied)
	})

	t.Run("empty queue", func(t *testing.T) {
		svc, _ := setup(t, true, queue.RankViewer, 0)
		_, err := svc.Select(ctx, chanID, mod, 1, queue.Random)
		assert.ErrorIs(t, err, queue.ErrEmptyQueue)
	})

	t.Run("count above size", func(t *testing.T) {
		svc, store := setup(t, true, queue.RankViewer, 0, "A", "B")
		_, err := svc.Select(ctx, chanID, mod, 3, queue.Sequential)
		assert.ErrorIs(t, err, queue.ErrInsufficientMembers)
		assert.Equal(t, []string{"A", "B"}, memberNames(t, store))
	})

	t.Run("oversized count removes nobody", func(t *testing.T) {
		svc, store := setup(t, true, queue.RankViewer, 0, "A", "B")
		_, err := svc.Select(ctx, chanID, mod, queue.ParseCount("99999999999999999999"), queue.Sequential)
		assert.ErrorIs(t, err, queue.ErrInsufficientMembers)
		assert.Equal(t, []string{"A", "B"}, memberNames(t, store))
	})

	t.Run("count below one picks nobody", func(t *testing.T) {
		svc, store := setup(t, true, queue.RankViewer, 0, "A", "B")
		picked, err := svc.Select(ctx, chanID, mod, 0, queue.Sequential)
		require.NoError(t, err)
		assert.Empty(t, picked)
		picked, err = svc.Select(ctx, chanID, mod, -4, queue.Random)
		require.NoError(t, err)
		assert.Empty(t, picked)
		assert.Equal(t, []string{"A", "B"}, memberNames(t, store))
	})

	t.Run("works on closed queue", func(t *testing.T) {
		svc, _ := setup(t, false, queue.RankViewer, 0, "A")
		picked, err := svc.Select(ctx, chanID, mod, 1, queue.Random)
		require.NoError(t, err)
		assert.Equal(t, []string{"A"}, names(picked))
	})
}

func TestSelectRandomRemovesExactSet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	all := []string{"A", "B", "C", "D", "E", "F", "G"}
	svc, store := setup(t, true, queue.RankViewer, 0, all...)

	first, err := svc.Select(ctx, chanID, mod, 3, queue.Random)
	require.NoError(t, err)
	require.Len(t, first, 3)
	remaining := memberNames(t, store)
	require.Len(t, remaining, 4)

	second, err := svc.Select(ctx, chanID, mod, 2, queue.Random)
	require.NoError(t, err)
	require.Len(t, second, 2)

	seen := map[string]int{}
	for _, n := range append(names(first), names(second)...) {
		seen[n]++
	}
	for _, n := range names(second) {
		assert.Contains(t, remaining, n, "second pick must come from what remained")
	}
	for n, c := range seen {
		assert.Equal(t, 1, c, "%s picked more than once", n)
	}
	for _, n := range memberNames(t, store) {
		assert.Zero(t, seen[n], "%s is both picked and still queued", n)
	}
	assert.Len(t, memberNames(t, store), len(all)-5)
}

// TestSelectRandomIsUniform checks that every member is equally likely to be
// drawn first. A comparator-based shuffle fails this by a wide margin.
func TestSelectRandomIsUniform(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	const (
		size   = 5
		trials = 20000
	)
	rng := rand.New(rand.NewPCG(42, 7))
	counts := make(map[string]int, size)

	for range trials {
		store := queue.NewMemoryStore()
		open := true
		require.NoError(t, store.Create(ctx, chanID, "Host"))
		require.NoError(t, store.UpdateConfig(ctx, chanID, queue.ConfigUpdate{Open: &open}))
		for i := range size {
			require.NoError(t, store.AddMember(ctx, chanID, queue.Member{Name: fmt.Sprintf("m%d", i)}))
		}
		svc := queue.NewService(store, queue.WithRand(rng))
		picked, err := svc.Select(ctx, chanID, mod, 1, queue.Random)
		require.NoError(t, err)
		counts[picked[0].Name]++
	}

	expected := float64(trials) / size
	for i := range size {
		got := float64(counts[fmt.Sprintf("m%d", i)])
		assert.InDelta(t, expected, got, expected*0.06, "member m%d drawn %v times", i, got)
	}
}
