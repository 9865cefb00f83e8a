package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/pet"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/reward"
)

func TestPetAchievementsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := New()

	p, err := store.CreatePet(ctx, pet.Pet{OwnerWallet: "NWallet1", Name: "order"})
	require.NoError(t, err)

	first, err := store.UpsertAchievement(ctx, reward.Achievement{Code: "early", Name: "Early"})
	require.NoError(t, err)
	second, err := store.UpsertAchievement(ctx, reward.Achievement{Code: "late", Name: "Late"})
	require.NoError(t, err)

	unlocked, err := store.UnlockAchievement(ctx, p.ID, first.ID)
	require.NoError(t, err)
	require.True(t, unlocked)

	time.Sleep(5 * time.Millisecond)

	unlocked, err = store.UnlockAchievement(ctx, p.ID, second.ID)
	require.NoError(t, err)
	require.True(t, unlocked)

	unlocks, err := store.ListPetAchievements(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, unlocks, 2)
	assert.Equal(t, "late", unlocks[0].Achievement.Code)
	assert.Equal(t, "early", unlocks[1].Achievement.Code)
}
