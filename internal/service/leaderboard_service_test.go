package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-quest-api/internal/apperror"
	"github.com/noah-isme/gema-quest-api/internal/models"
	"github.com/noah-isme/gema-quest-api/internal/policy"
)

func newCachedLeaderboard(t *testing.T, h *harness, size int) (LeaderboardService, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLeaderboardService(h.store.Profiles, client, time.Minute, size, zerolog.Nop()), server
}

func TestLeaderboardOrdering(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	board := NewLeaderboardService(h.store.Profiles, nil, time.Minute, 3, zerolog.Nop())

	first := h.actor(t, "first", models.RoleStudent)
	second := h.actor(t, "second", models.RoleStudent)
	third := h.actor(t, "third", models.RoleStudent)
	fourth := h.actor(t, "fourth", models.RoleStudent)

	require.NoError(t, h.store.Profiles.IncrementBalances(ctx, first.ProfileID, 20, 1))
	require.NoError(t, h.store.Profiles.IncrementBalances(ctx, second.ProfileID, 10, 9))
	require.NoError(t, h.store.Profiles.IncrementBalances(ctx, third.ProfileID, 10, 9))
	require.NoError(t, h.store.Profiles.IncrementBalances(ctx, fourth.ProfileID, 10, 2))

	top, err := board.Top(ctx, fourth)
	require.NoError(t, err)
	require.False(t, top.CacheHit)
	require.Len(t, top.Items, 3)

	require.Equal(t, first.ProfileID, top.Items[0].ProfileID)
	require.Equal(t, second.ProfileID, top.Items[1].ProfileID)
	require.Equal(t, third.ProfileID, top.Items[2].ProfileID)
	for i, entry := range top.Items {
		require.Equal(t, i+1, entry.Rank)
	}

	_, err = board.Top(ctx, policy.Actor{})
	require.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestLeaderboardCacheAndInvalidate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	board, server := newCachedLeaderboard(t, h, 0)

	student := h.actor(t, "student-s", models.RoleStudent)
	require.NoError(t, h.store.Profiles.IncrementBalances(ctx, student.ProfileID, 5, 5))

	miss, err := board.Top(ctx, student)
	require.NoError(t, err)
	require.False(t, miss.CacheHit)
	require.True(t, server.Exists(leaderboardCacheKey))
	require.Equal(t, time.Minute, server.TTL(leaderboardCacheKey))

	require.NoError(t, h.store.Profiles.IncrementBalances(ctx, student.ProfileID, 5, 0))

	hit, err := board.Top(ctx, student)
	require.NoError(t, err)
	require.True(t, hit.CacheHit)
	require.Equal(t, int64(5), hit.Items[0].CoinsTotal)

	board.Invalidate(ctx)
	require.False(t, server.Exists(leaderboardCacheKey))

	fresh, err := board.Top(ctx, student)
	require.NoError(t, err)
	require.False(t, fresh.CacheHit)
	require.Equal(t, int64(10), fresh.Items[0].CoinsTotal)
}

func TestApprovalInvalidatesCachedLeaderboard(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	board, server := newCachedLeaderboard(t, h, 10)
	submissions := h.submissionService(h.ledger, board)

	teacher := h.actor(t, "teacher-a", models.RoleTeacher)
	student := h.actor(t, "student-s", models.RoleStudent)
	challenge := h.challenge(t, teacher, h.today())
	submission := h.submit(t, student, challenge.ID)

	_, err := board.Top(ctx, student)
	require.NoError(t, err)
	require.True(t, server.Exists(leaderboardCacheKey))

	_, err = submissions.Review(ctx, teacher, submission.ID, approve("Nice work"))
	require.NoError(t, err)
	require.False(t, server.Exists(leaderboardCacheKey))

	top, err := board.Top(ctx, student)
	require.NoError(t, err)
	require.Equal(t, student.ProfileID, top.Items[0].ProfileID)
	require.Equal(t, int64(10), top.Items[0].CoinsTotal)
}
