package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-quest-api/internal/apperror"
	"github.com/noah-isme/gema-quest-api/internal/dto"
	"github.com/noah-isme/gema-quest-api/internal/events"
	"github.com/noah-isme/gema-quest-api/internal/models"
	"github.com/noah-isme/gema-quest-api/internal/policy"
	"github.com/noah-isme/gema-quest-api/internal/repository"
)

func TestSubmissionApprovalCreditsLedger(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	teacher := h.actor(t, "teacher-a", models.RoleTeacher)
	student := h.actor(t, "student-s", models.RoleStudent)

	challenge := h.challenge(t, teacher, h.today())
	submission := h.submit(t, student, challenge.ID)
	require.Equal(t, string(models.SubmissionStatusPending), submission.Status)
	for _, answer := range submission.Answers {
		require.Nil(t, answer.IsCorrect)
	}

	reviewed, err := h.submissions.Review(ctx, teacher, submission.ID, approve("Good work"))
	require.NoError(t, err)
	require.Equal(t, string(models.SubmissionStatusApproved), reviewed.Status)
	require.NotNil(t, reviewed.FeedbackText)
	require.Equal(t, "Good work", *reviewed.FeedbackText)
	require.NotNil(t, reviewed.ReviewedBy)
	require.Equal(t, teacher.ProfileID, *reviewed.ReviewedBy)
	require.NotNil(t, reviewed.ReviewedAt)

	var entries []models.Transaction
	require.NoError(t, h.db.Find(&entries).Error)
	require.Len(t, entries, 1)
	require.Equal(t, student.ProfileID, entries[0].UserID)
	require.Equal(t, int64(10), entries[0].AmountCoins)
	require.Equal(t, int64(5), entries[0].AmountPoints)
	require.NotNil(t, entries[0].RefSubmissionID)
	require.Equal(t, submission.ID, *entries[0].RefSubmissionID)

	profile := h.profile(t, student.ProfileID)
	require.Equal(t, int64(10), profile.CoinsTotal)
	require.Equal(t, int64(5), profile.PointsTotal)

	require.Equal(t, []string{
		events.TypeSubmissionCreated,
		events.TypeRewardCredited,
		events.TypeSubmissionReviewed,
	}, h.publisher.Types())
}

func TestReviewByNonOwningTeacherIsForbidden(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	teacherA := h.actor(t, "teacher-a", models.RoleTeacher)
	teacherB := h.actor(t, "teacher-b", models.RoleTeacher)
	student := h.actor(t, "student-s", models.RoleStudent)

	challenge := h.challenge(t, teacherA, h.today())
	submission := h.submit(t, student, challenge.ID)

	_, err := h.submissions.Review(ctx, teacherB, submission.ID, approve("Looks fine"))
	require.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = h.submissions.Review(ctx, student, submission.ID, approve("Self approval"))
	require.ErrorIs(t, err, apperror.ErrForbidden)

	stored, err := h.submissions.Get(ctx, student, submission.ID)
	require.NoError(t, err)
	require.Equal(t, string(models.SubmissionStatusPending), stored.Status)
	require.Zero(t, h.transactionCount(t))
	require.Zero(t, h.profile(t, student.ProfileID).CoinsTotal)
}

func TestElevatedRolesReviewAnyChallenge(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	teacher := h.actor(t, "teacher-a", models.RoleTeacher)
	underboss := h.actor(t, "head-teacher", models.RoleUnderboss)
	admin := h.actor(t, "admin", models.RoleAdmin)
	first := h.actor(t, "student-1", models.RoleStudent)
	second := h.actor(t, "student-2", models.RoleStudent)

	challenge := h.challenge(t, teacher, h.today())
	one := h.submit(t, first, challenge.ID)
	two := h.submit(t, second, challenge.ID)

	_, err := h.submissions.Review(ctx, underboss, one.ID, approve("Nice"))
	require.NoError(t, err)
	_, err = h.submissions.Review(ctx, admin, two.ID, dto.SubmissionReviewRequest{Decision: "rejected", Feedback: "Try again"})
	require.NoError(t, err)

	require.Equal(t, int64(1), h.transactionCount(t))
}

func TestConcurrentReviewsCreditOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	teacher := h.actor(t, "teacher-a", models.RoleTeacher)
	student := h.actor(t, "student-s", models.RoleStudent)

	challenge := h.challenge(t, teacher, h.today())
	submission := h.submit(t, student, challenge.ID)

	const reviewers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < reviewers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := h.submissions.Review(ctx, teacher, submission.ID, approve("Good work"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, apperror.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected review error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, 1, successes)
	require.Equal(t, reviewers-1, conflicts)
	require.Equal(t, int64(1), h.transactionCount(t))

	profile := h.profile(t, student.ProfileID)
	require.Equal(t, int64(10), profile.CoinsTotal)
	require.Equal(t, int64(5), profile.PointsTotal)
}

func TestReviewOfReviewedSubmissionConflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	teacher := h.actor(t, "teacher-a", models.RoleTeacher)
	student := h.actor(t, "student-s", models.RoleStudent)

	challenge := h.challenge(t, teacher, h.today())
	submission := h.submit(t, student, challenge.ID)

	_, err := h.submissions.Review(ctx, teacher, submission.ID, dto.SubmissionReviewRequest{Decision: "rejected", Feedback: "Check q2"})
	require.NoError(t, err)

	_, err = h.submissions.Review(ctx, teacher, submission.ID, approve("Changed my mind"))
	require.ErrorIs(t, err, ErrAlreadyReviewed)
	require.ErrorIs(t, err, apperror.ErrConflict)
	require.Zero(t, h.transactionCount(t))
}

func TestReviewValidatesInputBeforeMutating(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	teacher := h.actor(t, "teacher-a", models.RoleTeacher)
	student := h.actor(t, "student-s", models.RoleStudent)

	challenge := h.challenge(t, teacher, h.today())
	submission := h.submit(t, student, challenge.ID)

	cases := []struct {
		name    string
		payload dto.SubmissionReviewRequest
	}{
		{name: "blank feedback", payload: approve("   ")},
		{name: "markup only feedback", payload: approve("<script></script>")},
		{name: "unknown decision", payload: dto.SubmissionReviewRequest{Decision: "pending", Feedback: "ok"}},
		{name: "correction for foreign item", payload: dto.SubmissionReviewRequest{
			Decision:         "approved",
			Feedback:         "ok",
			CorrectedAnswers: []dto.AnswerCorrection{{ItemID: "zz", IsCorrect: boolPtr(true)}},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.submissions.Review(ctx, teacher, submission.ID, tc.payload)
			require.Error(t, err)
			require.Equal(t, apperror.KindValidation, apperror.KindOf(err))
		})
	}

	_, err := h.submissions.Review(ctx, teacher, 9999, approve("ok"))
	require.ErrorIs(t, err, ErrSubmissionNotFound)

	stored, err := h.submissions.Get(ctx, teacher, submission.ID)
	require.NoError(t, err)
	require.Equal(t, string(models.SubmissionStatusPending), stored.Status)
}

func TestReviewStoresCorrections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	teacher := h.actor(t, "teacher-a", models.RoleTeacher)
	student := h.actor(t, "student-s", models.RoleStudent)

	challenge := h.challenge(t, teacher, h.today())
	submission := h.submit(t, student, challenge.ID)

	reviewed, err := h.submissions.Review(ctx, teacher, submission.ID, dto.SubmissionReviewRequest{
		Decision: "rejected",
		Feedback: "q3 should be <b>at</b>",
		CorrectedAnswers: []dto.AnswerCorrection{
			{ItemID: "q1", IsCorrect: boolPtr(true)},
			{ItemID: "q3", IsCorrect: boolPtr(false)},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "q3 should be at", *reviewed.FeedbackText)

	byItem := map[string]dto.AnswerResponse{}
	for _, answer := range reviewed.Answers {
		byItem[answer.ItemID] = answer
	}
	require.True(t, *byItem["q1"].IsCorrect)
	require.Nil(t, byItem["q2"].IsCorrect)
	require.False(t, *byItem["q3"].IsCorrect)
	require.Equal(t, "at", byItem["q3"].SelectedOption)
}

type failingLedger struct {
	LedgerService
	err error
}

func (f failingLedger) CreditTx(context.Context, repository.Store, Credit) (models.Transaction, error) {
	return models.Transaction{}, f.err
}

func TestFailingLedgerRollsReviewBack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	teacher := h.actor(t, "teacher-a", models.RoleTeacher)
	student := h.actor(t, "student-s", models.RoleStudent)

	challenge := h.challenge(t, teacher, h.today())
	submission := h.submit(t, student, challenge.ID)

	storageErr := apperror.Wrap(apperror.KindStorage, "storage failure", errors.New("disk full"))
	svc := h.submissionService(failingLedger{LedgerService: h.ledger, err: storageErr}, nil)

	_, err := svc.Review(ctx, teacher, submission.ID, approve("Good work"))
	require.ErrorIs(t, err, apperror.ErrStorage)

	stored, err := h.submissions.Get(ctx, teacher, submission.ID)
	require.NoError(t, err)
	require.Equal(t, string(models.SubmissionStatusPending), stored.Status)
	require.Nil(t, stored.ReviewedBy)
	require.Zero(t, h.transactionCount(t))

	_, err = h.submissions.Review(ctx, teacher, submission.ID, approve("Good work"))
	require.NoError(t, err, "the submission stays reviewable after a rollback")
	require.Equal(t, int64(1), h.transactionCount(t))
}

func TestCreateRejectsMismatchedAnswers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	teacher := h.actor(t, "teacher-a", models.RoleTeacher)
	student := h.actor(t, "student-s", models.RoleStudent)
	challenge := h.challenge(t, teacher, h.today())

	cases := map[string][]dto.AnswerRequest{
		"missing item": {
			{ItemID: "q1", SelectedOption: "in"},
			{ItemID: "q2", SelectedOption: "on"},
		},
		"foreign item": {
			{ItemID: "q1", SelectedOption: "in"},
			{ItemID: "q2", SelectedOption: "on"},
			{ItemID: "q9", SelectedOption: "at"},
		},
		"duplicate item": {
			{ItemID: "q1", SelectedOption: "in"},
			{ItemID: "q1", SelectedOption: "on"},
			{ItemID: "q3", SelectedOption: "at"},
		},
		"option outside the set": {
			{ItemID: "q1", SelectedOption: "under"},
			{ItemID: "q2", SelectedOption: "on"},
			{ItemID: "q3", SelectedOption: "at"},
		},
		"blank answer": {
			{ItemID: "q1", SelectedOption: "in"},
			{ItemID: "q2", SelectedOption: "on"},
			{ItemID: "q3", SelectedOption: "  "},
		},
		"empty": {},
	}

	for name, answers := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.submissions.Create(ctx, student, dto.SubmissionCreateRequest{ChallengeID: challenge.ID, Answers: answers})
			require.Error(t, err)
			require.Equal(t, apperror.KindValidation, apperror.KindOf(err))
		})
	}

	var count int64
	require.NoError(t, h.db.Model(&models.Submission{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestDuplicateSubmissionConflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	teacher := h.actor(t, "teacher-a", models.RoleTeacher)
	student := h.actor(t, "student-s", models.RoleStudent)
	challenge := h.challenge(t, teacher, h.today())

	h.submit(t, student, challenge.ID)
	_, err := h.submissions.Create(ctx, student, fullAnswers(challenge.ID))
	require.ErrorIs(t, err, ErrDuplicateSubmission)
	require.ErrorIs(t, err, apperror.ErrConflict)
}

func TestChallengeBecomesSubmittableOnPublishDate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	teacher := h.actor(t, "teacher-a", models.RoleTeacher)
	student := h.actor(t, "student-s", models.RoleStudent)

	tomorrow := h.clock.Now().AddDate(0, 0, 1).Format("2006-01-02")
	challenge := h.challenge(t, teacher, tomorrow)

	listed, err := h.challenges.ListSubmittable(ctx, student, dto.ChallengeListRequest{})
	require.NoError(t, err)
	require.Empty(t, listed.Items)

	_, err = h.submissions.Create(ctx, student, fullAnswers(challenge.ID))
	require.ErrorIs(t, err, ErrChallengeNotFound)

	_, err = h.submissions.Create(ctx, teacher, fullAnswers(challenge.ID))
	require.ErrorIs(t, err, apperror.ErrForbidden, "the owner sees it but cannot submit early")

	// 23:59 in the reference zone is already tomorrow in UTC.
	h.clock.Advance(13*time.Hour + 59*time.Minute)
	require.Equal(t, "2026-10-16", h.today())
	_, err = h.submissions.Create(ctx, student, fullAnswers(challenge.ID))
	require.ErrorIs(t, err, ErrChallengeNotFound)

	h.clock.Advance(time.Minute)
	require.Equal(t, tomorrow, h.today())

	listed, err = h.challenges.ListSubmittable(ctx, student, dto.ChallengeListRequest{})
	require.NoError(t, err)
	require.Len(t, listed.Items, 1)

	_, err = h.submissions.Create(ctx, student, fullAnswers(challenge.ID))
	require.NoError(t, err)
}

func TestDraftChallengeIsNotSubmittable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	teacher := h.actor(t, "teacher-a", models.RoleTeacher)
	student := h.actor(t, "student-s", models.RoleStudent)

	challenge := h.challenge(t, teacher, h.today())
	draft := string(models.ChallengeStatusDraft)
	_, err := h.challenges.Update(ctx, teacher, challenge.ID, dto.ChallengeUpdateRequest{Status: &draft})
	require.NoError(t, err)

	_, err = h.submissions.Create(ctx, student, fullAnswers(challenge.ID))
	require.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestGetSubmissionVisibility(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.actor(t, "teacher-a", models.RoleTeacher)
	otherTeacher := h.actor(t, "teacher-b", models.RoleTeacher)
	underboss := h.actor(t, "head-teacher", models.RoleUnderboss)
	student := h.actor(t, "student-s", models.RoleStudent)
	peer := h.actor(t, "student-p", models.RoleStudent)

	challenge := h.challenge(t, owner, h.today())
	submission := h.submit(t, student, challenge.ID)

	for _, actor := range []policy.Actor{student, owner, underboss} {
		got, err := h.submissions.Get(ctx, actor, submission.ID)
		require.NoError(t, err)
		require.Equal(t, submission.ID, got.ID)
		require.NotNil(t, got.Challenge)
		require.Equal(t, challenge.ID, got.Challenge.ID)
	}

	_, err := h.submissions.Get(ctx, peer, submission.ID)
	require.ErrorIs(t, err, ErrSubmissionNotFound)

	_, err = h.submissions.Get(ctx, otherTeacher, submission.ID)
	require.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = h.submissions.Get(ctx, policy.Actor{}, submission.ID)
	require.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestReviewQueueAndHistoryScopes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	teacherA := h.actor(t, "teacher-a", models.RoleTeacher)
	teacherB := h.actor(t, "teacher-b", models.RoleTeacher)
	underboss := h.actor(t, "head-teacher", models.RoleUnderboss)
	student := h.actor(t, "student-s", models.RoleStudent)
	peer := h.actor(t, "student-p", models.RoleStudent)

	challengeA := h.challenge(t, teacherA, h.today())
	challengeB := h.challenge(t, teacherB, h.today())

	first := h.submit(t, student, challengeA.ID)
	h.clock.Advance(time.Minute)
	second := h.submit(t, peer, challengeA.ID)
	h.clock.Advance(time.Minute)
	h.submit(t, student, challengeB.ID)

	queue, err := h.submissions.ReviewQueue(ctx, teacherA)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	require.Equal(t, first.ID, queue[0].ID, "oldest first")
	require.Equal(t, second.ID, queue[1].ID)
	require.NotNil(t, queue[0].Student)

	all, err := h.submissions.ReviewQueue(ctx, underboss)
	require.NoError(t, err)
	require.Len(t, all, 3)

	_, err = h.submissions.ReviewQueue(ctx, student)
	require.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = h.submissions.Review(ctx, teacherA, first.ID, approve("Great"))
	require.NoError(t, err)
	h.clock.Advance(time.Minute)
	_, err = h.submissions.Review(ctx, teacherA, second.ID, dto.SubmissionReviewRequest{Decision: "rejected", Feedback: "Redo"})
	require.NoError(t, err)

	history, err := h.submissions.ReviewHistory(ctx, teacherA, dto.ReviewHistoryRequest{})
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, second.ID, history[0].ID, "latest review first")

	filtered, err := h.submissions.ReviewHistory(ctx, teacherA, dto.ReviewHistoryRequest{StudentID: student.ProfileID})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	require.Equal(t, first.ID, filtered[0].ID)

	others, err := h.submissions.ReviewHistory(ctx, teacherB, dto.ReviewHistoryRequest{})
	require.NoError(t, err)
	require.Empty(t, others)

	queue, err = h.submissions.ReviewQueue(ctx, teacherA)
	require.NoError(t, err)
	require.Empty(t, queue)
}

func TestListMineFiltersByPeriod(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	teacher := h.actor(t, "teacher-a", models.RoleTeacher)
	student := h.actor(t, "student-s", models.RoleStudent)

	old := h.challenge(t, teacher, "2026-09-01")
	recent := h.challenge(t, teacher, "2026-10-01")

	oldSubmission := h.submit(t, student, old.ID)
	lastMonth := time.Date(2026, 9, 30, 23, 30, 0, 0, referenceZone)
	require.NoError(t, h.db.Model(&models.Submission{}).Where("id = ?", oldSubmission.ID).
		Update("submitted_at", lastMonth.UTC()).Error)
	recentSubmission := h.submit(t, student, recent.ID)

	all, err := h.submissions.ListMine(ctx, student, dto.SubmissionListRequest{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, recentSubmission.ID, all[0].ID)

	month, err := h.submissions.ListMine(ctx, student, dto.SubmissionListRequest{Period: "month"})
	require.NoError(t, err)
	require.Len(t, month, 1, "30 Sep 23:30 in the reference zone belongs to September")
	require.Equal(t, recentSubmission.ID, month[0].ID)

	year, err := h.submissions.ListMine(ctx, student, dto.SubmissionListRequest{Period: "year"})
	require.NoError(t, err)
	require.Len(t, year, 2)

	_, err = h.submissions.ListMine(ctx, student, dto.SubmissionListRequest{Period: "decade"})
	require.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestApprovalInvalidatesLeaderboard(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	teacher := h.actor(t, "teacher-a", models.RoleTeacher)
	student := h.actor(t, "student-s", models.RoleStudent)

	leaderboard := &countingLeaderboard{}
	svc := h.submissionService(h.ledger, leaderboard)

	challenge := h.challenge(t, teacher, h.today())
	submission := h.submit(t, student, challenge.ID)

	_, err := svc.Review(ctx, teacher, submission.ID, approve("Good"))
	require.NoError(t, err)
	require.Equal(t, 1, leaderboard.invalidations)
}

type countingLeaderboard struct {
	invalidations int
}

func (c *countingLeaderboard) Top(context.Context, policy.Actor) (dto.LeaderboardResponse, error) {
	return dto.LeaderboardResponse{}, nil
}

func (c *countingLeaderboard) Invalidate(context.Context) {
	c.invalidations++
}

func boolPtr(value bool) *bool {
	return &value
}
