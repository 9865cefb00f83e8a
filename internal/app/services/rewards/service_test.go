package rewards

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/pet"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/profile"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/storage/memory"
	"github.com/Arthur-Jacobina/datagotchi/internal/config"
)

func newTestService(t *testing.T) (*Service, *memory.Store, pet.Pet) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	_, err := store.CreateProfile(ctx, profile.Profile{WalletAddress: "NWallet1"})
	require.NoError(t, err)
	p, err := store.CreatePet(ctx, pet.Pet{OwnerWallet: "NWallet1", Name: "ember"})
	require.NoError(t, err)

	svc := New(store, store, store, nil, nil)
	require.NoError(t, svc.SyncRules(ctx))
	return svc, store, p
}

func TestRecordWinAwardsSkillAndPoints(t *testing.T) {
	svc, store, p := newTestService(t)
	ctx := context.Background()

	out, err := svc.RecordGameResult(ctx, "NWallet1", p.ID, "trivia-rush", GameResult{Won: true})
	require.NoError(t, err)

	assert.Equal(t, 2, out.Pet.Trivia)
	assert.Equal(t, 10, out.PointsAwarded)
	assert.True(t, out.StreakExtended)
	assert.Equal(t, 1, out.Pet.Streak)
	assert.Equal(t, pet.SkillTrivia, out.Event.Skill)
	assert.Equal(t, 2, out.Event.Delta)

	prof, err := store.GetProfile(ctx, "NWallet1")
	require.NoError(t, err)
	assert.Equal(t, 10, prof.Points)

	events, err := svc.PetEvents(ctx, p.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestRecordLossAwardsNothing(t *testing.T) {
	svc, store, p := newTestService(t)
	ctx := context.Background()

	out, err := svc.RecordGameResult(ctx, "NWallet1", p.ID, "trivia-rush", GameResult{Won: false})
	require.NoError(t, err)

	assert.Zero(t, out.PointsAwarded)
	assert.Zero(t, out.Pet.Trivia)
	assert.False(t, out.StreakExtended)
	assert.Zero(t, out.Event.Delta)

	prof, err := store.GetProfile(ctx, "NWallet1")
	require.NoError(t, err)
	assert.Zero(t, prof.Points)
}

func TestUnknownGameRejected(t *testing.T) {
	svc, _, p := newTestService(t)
	_, err := svc.RecordGameResult(context.Background(), "NWallet1", p.ID, "quidditch", GameResult{Won: true})
	require.Error(t, err)
}

func TestOwnershipEnforced(t *testing.T) {
	svc, _, p := newTestService(t)
	_, err := svc.RecordGameResult(context.Background(), "NIntruder", p.ID, "trivia-rush", GameResult{Won: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "another wallet")
}

func TestDailyCapEnforced(t *testing.T) {
	svc, _, p := newTestService(t)
	ctx := context.Background()

	// code-golf allows 10 wins per day.
	for i := 0; i < 10; i++ {
		_, err := svc.RecordGameResult(ctx, "NWallet1", p.ID, "code-golf", GameResult{Won: true})
		require.NoError(t, err)
	}
	_, err := svc.RecordGameResult(ctx, "NWallet1", p.ID, "code-golf", GameResult{Won: true})
	require.Error(t, err)
}

func TestStreakOncePerDayAndReset(t *testing.T) {
	svc, _, p := newTestService(t)
	ctx := context.Background()

	day1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return day1 }

	out, err := svc.RecordGameResult(ctx, "NWallet1", p.ID, "word-party", GameResult{Won: true})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Pet.Streak)

	// Second win same day: streak unchanged.
	out, err = svc.RecordGameResult(ctx, "NWallet1", p.ID, "word-party", GameResult{Won: true})
	require.NoError(t, err)
	assert.False(t, out.StreakExtended)
	assert.Equal(t, 1, out.Pet.Streak)

	// Next day: streak grows.
	svc.now = func() time.Time { return day1.AddDate(0, 0, 1) }
	out, err = svc.RecordGameResult(ctx, "NWallet1", p.ID, "word-party", GameResult{Won: true})
	require.NoError(t, err)
	assert.True(t, out.StreakExtended)
	assert.Equal(t, 2, out.Pet.Streak)

	// Missed a day: streak resets to 1.
	svc.now = func() time.Time { return day1.AddDate(0, 0, 3) }
	out, err = svc.RecordGameResult(ctx, "NWallet1", p.ID, "word-party", GameResult{Won: true})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Pet.Streak)
}

func TestAchievementUnlockIdempotent(t *testing.T) {
	svc, store, p := newTestService(t)
	ctx := context.Background()

	// Five trivia-rush wins reach trivia 10, the first-steps threshold.
	var unlocks int
	for i := 0; i < 6; i++ {
		out, err := svc.RecordGameResult(ctx, "NWallet1", p.ID, "trivia-rush", GameResult{Won: true})
		require.NoError(t, err)
		unlocks += len(out.NewUnlocks)
	}
	assert.Equal(t, 1, unlocks)

	earned, err := svc.PetAchievements(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, earned, 1)
	assert.Equal(t, "first-steps", earned[0].Code)

	// 6 wins * 10 points + 25 achievement bounty.
	prof, err := store.GetProfile(ctx, "NWallet1")
	require.NoError(t, err)
	assert.Equal(t, 85, prof.Points)
}

func TestListAchievementsCatalogue(t *testing.T) {
	svc, _, _ := newTestService(t)
	list, err := svc.ListAchievements(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, len(config.DefaultRewardRules().Achievements))
}

func TestPetEventsValidation(t *testing.T) {
	svc, _, p := newTestService(t)
	_, err := svc.PetEvents(context.Background(), p.ID, 5000, 0)
	require.Error(t, err)
	_, err = svc.PetEvents(context.Background(), p.ID, 10, -1)
	require.Error(t, err)
}
