package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-quest-api/internal/apperror"
	"github.com/noah-isme/gema-quest-api/internal/dto"
	"github.com/noah-isme/gema-quest-api/internal/models"
	"github.com/noah-isme/gema-quest-api/internal/policy"
)

func TestChallengeCreateRequiresStaff(t *testing.T) {
	h := newHarness(t)
	student := h.actor(t, "student-s", models.RoleStudent)

	_, err := h.challenges.Create(context.Background(), student, dto.ChallengeCreateRequest{
		Title:        "Prepositions of time",
		Description:  "Pick the right word for each blank.",
		Type:         string(models.ChallengeTypeFillBlanks),
		Content:      fillBlanksContent(t),
		PointsReward: 1,
		CoinReward:   1,
		PublishDate:  h.today(),
	})
	require.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestChallengeCreateDefaultsToDraft(t *testing.T) {
	h := newHarness(t)
	teacher := h.actor(t, "teacher-a", models.RoleTeacher)

	created, err := h.challenges.Create(context.Background(), teacher, dto.ChallengeCreateRequest{
		Title:        "  <i>Prepositions</i> of time ",
		Description:  "Pick the right word for each blank.",
		Type:         string(models.ChallengeTypeFillBlanks),
		Content:      fillBlanksContent(t),
		PointsReward: 3,
		CoinReward:   7,
		PublishDate:  h.today(),
	})
	require.NoError(t, err)
	require.Equal(t, string(models.ChallengeStatusDraft), created.Status)
	require.Equal(t, "Prepositions of time", created.Title)
	require.Equal(t, teacher.ProfileID, created.CreatedBy)
	require.Len(t, created.Content.Items, 3)
	require.Equal(t, string(models.AnswerKindMultipleChoice), created.Content.Items[0].AnswerType)
	require.Equal(t, string(models.AnswerKindTextInput), created.Content.Items[2].AnswerType)

	var audits []models.ActivityLog
	require.NoError(t, h.db.Where("action = ?", models.ActivityChallengeCreated).Find(&audits).Error)
	require.Len(t, audits, 1)
}

func TestChallengeContentValidation(t *testing.T) {
	h := newHarness(t)
	teacher := h.actor(t, "teacher-a", models.RoleTeacher)

	cases := map[string]interface{}{
		"no items":             map[string]interface{}{"instructions": "x", "items": []interface{}{}},
		"unknown field":        map[string]interface{}{"items": []interface{}{map[string]interface{}{"id": "a", "text": "t", "options": []string{"x"}, "answer": "x"}}},
		"duplicate ids":        map[string]interface{}{"items": []interface{}{map[string]interface{}{"id": "a", "text": "t", "options": []string{"x"}}, map[string]interface{}{"id": "a", "text": "u", "options": []string{"y"}}}},
		"choice without items": map[string]interface{}{"items": []interface{}{map[string]interface{}{"id": "a", "text": "t"}}},
		"bad answer type":      map[string]interface{}{"items": []interface{}{map[string]interface{}{"id": "a", "text": "t", "answer_type": "essay"}}},
		"not an object":        []string{"a"},
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			raw, err := json.Marshal(content)
			require.NoError(t, err)

			_, err = h.challenges.Create(context.Background(), teacher, dto.ChallengeCreateRequest{
				Title:        "Prepositions of time",
				Description:  "Pick the right word for each blank.",
				Type:         string(models.ChallengeTypeFillBlanks),
				Content:      raw,
				PointsReward: 1,
				CoinReward:   1,
				PublishDate:  h.today(),
			})
			require.ErrorIs(t, err, ErrInvalidContent)
		})
	}
}

func TestChallengeCreateValidatesRewardsAndDates(t *testing.T) {
	h := newHarness(t)
	teacher := h.actor(t, "teacher-a", models.RoleTeacher)

	base := dto.ChallengeCreateRequest{
		Title:        "Prepositions of time",
		Description:  "Pick the right word for each blank.",
		Type:         string(models.ChallengeTypeFillBlanks),
		Content:      fillBlanksContent(t),
		PointsReward: 1,
		CoinReward:   1,
		PublishDate:  h.today(),
	}

	mutations := map[string]func(*dto.ChallengeCreateRequest){
		"zero coins":      func(r *dto.ChallengeCreateRequest) { r.CoinReward = 0 },
		"too many points": func(r *dto.ChallengeCreateRequest) { r.PointsReward = 1001 },
		"bad date":        func(r *dto.ChallengeCreateRequest) { r.PublishDate = "2026-02-30" },
		"short title":     func(r *dto.ChallengeCreateRequest) { r.Title = "<b>Hi</b>   " },
		"unknown type":    func(r *dto.ChallengeCreateRequest) { r.Type = "essay" },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			payload := base
			mutate(&payload)
			_, err := h.challenges.Create(context.Background(), teacher, payload)
			require.Error(t, err)
			require.Equal(t, apperror.KindValidation, apperror.KindOf(err))
		})
	}
}

func TestChallengeEditOwnership(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.actor(t, "teacher-a", models.RoleTeacher)
	other := h.actor(t, "teacher-b", models.RoleTeacher)
	underboss := h.actor(t, "head-teacher", models.RoleUnderboss)

	challenge := h.challenge(t, owner, h.today())
	coins := int64(25)

	_, err := h.challenges.Update(ctx, other, challenge.ID, dto.ChallengeUpdateRequest{CoinReward: &coins})
	require.ErrorIs(t, err, apperror.ErrForbidden)

	updated, err := h.challenges.Update(ctx, underboss, challenge.ID, dto.ChallengeUpdateRequest{CoinReward: &coins})
	require.NoError(t, err)
	require.Equal(t, int64(25), updated.CoinReward)
	require.Equal(t, owner.ProfileID, updated.CreatedBy)

	title := "Renamed challenge"
	updated, err = h.challenges.Update(ctx, owner, challenge.ID, dto.ChallengeUpdateRequest{Title: &title})
	require.NoError(t, err)
	require.Equal(t, title, updated.Title)

	_, err = h.challenges.Update(ctx, owner, 9999, dto.ChallengeUpdateRequest{Title: &title})
	require.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestApprovalUsesCurrentReward(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	teacher := h.actor(t, "teacher-a", models.RoleTeacher)
	student := h.actor(t, "student-s", models.RoleStudent)

	challenge := h.challenge(t, teacher, h.today())
	submission := h.submit(t, student, challenge.ID)

	coins := int64(40)
	_, err := h.challenges.Update(ctx, teacher, challenge.ID, dto.ChallengeUpdateRequest{CoinReward: &coins})
	require.NoError(t, err)

	_, err = h.submissions.Review(ctx, teacher, submission.ID, approve("Well done"))
	require.NoError(t, err)
	require.Equal(t, int64(40), h.profile(t, student.ProfileID).CoinsTotal)
}

func TestChallengeVisibility(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.actor(t, "teacher-a", models.RoleTeacher)
	other := h.actor(t, "teacher-b", models.RoleTeacher)
	admin := h.actor(t, "admin", models.RoleAdmin)
	student := h.actor(t, "student-s", models.RoleStudent)

	tomorrow := h.clock.Now().AddDate(0, 0, 1).Format("2006-01-02")
	future := h.challenge(t, owner, tomorrow)
	current := h.challenge(t, owner, h.today())

	_, err := h.challenges.Get(ctx, student, future.ID)
	require.ErrorIs(t, err, ErrChallengeNotFound)
	_, err = h.challenges.Get(ctx, other, future.ID)
	require.ErrorIs(t, err, ErrChallengeNotFound)

	for _, viewer := range []policy.Actor{owner, admin} {
		got, err := h.challenges.Get(ctx, viewer, future.ID)
		require.NoError(t, err, viewer.Role)
		require.Equal(t, future.ID, got.ID)
	}

	got, err := h.challenges.Get(ctx, student, current.ID)
	require.NoError(t, err)
	require.Equal(t, current.ID, got.ID)

	mine, err := h.challenges.ListMine(ctx, owner, dto.ChallengeListRequest{})
	require.NoError(t, err)
	require.Len(t, mine.Items, 2)
	require.Equal(t, int64(2), mine.Pagination.TotalItems)

	_, err = h.challenges.ListMine(ctx, student, dto.ChallengeListRequest{})
	require.ErrorIs(t, err, apperror.ErrForbidden)

	week, err := h.challenges.ListSubmittable(ctx, student, dto.ChallengeListRequest{Period: "week"})
	require.NoError(t, err)
	require.Len(t, week.Items, 1)
	require.Equal(t, current.ID, week.Items[0].ID)
}
