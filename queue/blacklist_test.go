package queue_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/queuebot/queue"
)

func TestBan(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, store := setup(t, true, queue.RankViewer, 0, "Troll")

	_, err := svc.Ban(ctx, chanID, viewer("x"), "Troll")
	assert.ErrorIs(t, err, queue.ErrPermissionDenied)

	_, err = svc.Ban(ctx, chanID, mod, "  ")
	assert.ErrorIs(t, err, queue.ErrValidation)

	name, err := svc.Ban(ctx, chanID, mod, "@Troll")
	require.NoError(t, err)
	assert.Equal(t, "Troll", name)

	_, err = svc.Ban(ctx, chanID, mod, "Troll")
	assert.ErrorIs(t, err, queue.ErrAlreadyBanned)

	// Duplicate detection is exact-name, so a different casing is a new entry.
	_, err = svc.Ban(ctx, chanID, mod, "troll")
	require.NoError(t, err)

	bl, err := store.ListBlacklist(ctx, chanID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Troll", "troll"}, bl)

	assert.Equal(t, []string{"Troll"}, memberNames(t, store), "ban does not evict")
}

func TestUnban(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, store := setup(t, true, queue.RankViewer, 0)
	require.NoError(t, store.AddBlacklistEntry(ctx, chanID, "Troll"))

	_, err := svc.Unban(ctx, chanID, mod, "troll")
	assert.ErrorIs(t, err, queue.ErrNotBanned)

	_, err = svc.Join(ctx, chanID, viewer("troll"))
	assert.ErrorIs(t, err, queue.ErrBanned)

	_, err = svc.Unban(ctx, chanID, mod, "Troll")
	require.NoError(t, err)

	_, err = svc.Join(ctx, chanID, viewer("troll"))
	assert.NoError(t, err)

	_, err = svc.Unban(ctx, chanID, mod, "Troll")
	assert.ErrorIs(t, err, queue.ErrNotBanned)
}
