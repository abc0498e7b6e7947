package seeds

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terratrac/eudr-backend/internal/store"
	"github.com/terratrac/eudr-backend/internal/store/storetest"
	"github.com/terratrac/eudr-backend/internal/users"
	"go.uber.org/zap"
)

func TestSeedAll_Idempotent(t *testing.T) {
	d := storetest.Open(t)
	ctx := context.Background()

	require.NoError(t, SeedAll(ctx, d, "changeme", zap.NewNop()))
	require.NoError(t, SeedAll(ctx, d, "", zap.NewNop()))

	list, err := users.NewStore(d).List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "admin", list[0].Role)

	n, err := store.New(d).ChunkSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 500, n)
}

func TestSeedAdmin_RequiresPassword(t *testing.T) {
	d := storetest.Open(t)
	require.NoError(t, users.Migrate(d))

	err := SeedAdmin(context.Background(), users.NewStore(d), "", zap.NewNop())
	assert.Error(t, err)
}
