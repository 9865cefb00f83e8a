package profiles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/instance"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/pet"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/storage/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return New(store, store, store, nil), store
}

func TestGetOrCreate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.GetOrCreate(ctx, "NWallet1")
	require.NoError(t, err)
	assert.Equal(t, "NWallet1", created.WalletAddress)

	again, err := svc.GetOrCreate(ctx, "NWallet1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	_, err = svc.GetOrCreate(ctx, "")
	require.Error(t, err)
}

func TestGetUnknownWallet(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Get(context.Background(), "NNobody")
	require.Error(t, err)
}

func TestUpdateUsername(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetOrCreate(ctx, "NWallet1")
	require.NoError(t, err)

	updated, err := svc.UpdateUsername(ctx, "NWallet1", "ember_fan")
	require.NoError(t, err)
	assert.Equal(t, "ember_fan", updated.Username)

	_, err = svc.UpdateUsername(ctx, "NWallet1", "   ")
	require.Error(t, err)
	_, err = svc.UpdateUsername(ctx, "NNobody", "name")
	require.Error(t, err)
}

func TestStatistics(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	prof, err := svc.GetOrCreate(ctx, "NWallet1")
	require.NoError(t, err)
	_, err = store.AddPoints(ctx, prof.WalletAddress, 30)
	require.NoError(t, err)

	p1, err := store.CreatePet(ctx, pet.Pet{OwnerWallet: "NWallet1", Name: "ember"})
	require.NoError(t, err)
	p2, err := store.CreatePet(ctx, pet.Pet{OwnerWallet: "NWallet1", Name: "sprout"})
	require.NoError(t, err)

	for _, petID := range []string{p1.ID, p1.ID, p2.ID} {
		_, err := store.CreateInstance(ctx, instance.DataInstance{
			PetID:       petID,
			Content:     "fed",
			ContentType: "text",
			ContentHash: instance.HashContent("fed"),
			Category:    instance.CategoryGeneral,
		})
		require.NoError(t, err)
	}

	stats, err := svc.Statistics(ctx, "NWallet1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.PetCount)
	assert.Equal(t, 3, stats.InstanceCount)
	assert.Equal(t, 30, stats.Points)
	assert.Len(t, stats.Pets, 2)
}

func TestStatisticsUnknownWallet(t *testing.T) {
	svc, _ := newTestService(t)
	stats, err := svc.Statistics(context.Background(), "NNobody")
	require.NoError(t, err)
	assert.Zero(t, stats.PetCount)
	assert.Zero(t, stats.InstanceCount)
	assert.Empty(t, stats.Pets)
}
