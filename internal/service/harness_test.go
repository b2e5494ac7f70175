package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-quest-api/internal/clock"
	"github.com/noah-isme/gema-quest-api/internal/dto"
	"github.com/noah-isme/gema-quest-api/internal/models"
	"github.com/noah-isme/gema-quest-api/internal/policy"
	"github.com/noah-isme/gema-quest-api/internal/repository"
)

var referenceZone = time.FixedZone("BRT", -3*60*60)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordedEvent struct {
	Type string
	Data map[string]interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, data map[string]interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{Type: eventType, Data: data})
	return nil
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, event := range p.events {
		types = append(types, event.Type)
	}
	return types
}

type harness struct {
	db          *gorm.DB
	store       repository.Store
	transactor  repository.Transactor
	clock       *testClock
	calendar    *clock.Calendar
	validate    *validator.Validate
	publisher   *recordingPublisher
	activity    ActivityService
	ledger      LedgerService
	submissions SubmissionService
	challenges  ChallengeService
	profiles    ProfileService
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection makes concurrent writers queue up like row locks would.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Profile{},
		&models.Challenge{},
		&models.Submission{},
		&models.Transaction{},
		&models.ActivityLog{},
	))
	return db
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := setupTestDB(t)

	h := &harness{
		db:         db,
		store:      repository.NewStore(db),
		transactor: repository.NewTransactor(db),
		clock:      &testClock{now: time.Date(2026, 10, 16, 10, 0, 0, 0, referenceZone)},
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		publisher:  &recordingPublisher{},
	}
	h.calendar = clock.New(referenceZone).WithNow(h.clock.Now)
	h.activity = NewActivityService(h.store.Activities, h.validate, zerolog.Nop())
	h.ledger = NewLedgerService(h.store, h.transactor, h.validate, h.publisher, h.activity, zerolog.Nop())
	h.challenges = NewChallengeService(h.store.Challenges, h.validate, h.calendar, h.activity, zerolog.Nop())
	h.profiles = NewProfileService(h.store.Profiles, h.validate, h.activity, zerolog.Nop())
	h.submissions = h.submissionService(h.ledger, nil)
	return h
}

func (h *harness) submissionService(ledger LedgerService, leaderboard LeaderboardService) SubmissionService {
	return NewSubmissionService(SubmissionDependencies{
		Store:       h.store,
		Transactor:  h.transactor,
		Ledger:      ledger,
		Leaderboard: leaderboard,
		Events:      h.publisher,
		Activity:    h.activity,
		Validator:   h.validate,
		Calendar:    h.calendar,
	}, zerolog.Nop())
}

func (h *harness) actor(t *testing.T, subject string, role models.Role) policy.Actor {
	t.Helper()
	profile := models.Profile{AuthSubject: subject, Role: role, FullName: subject}
	require.NoError(t, h.db.Create(&profile).Error)
	return policy.ActorFromProfile(profile)
}

func (h *harness) today() string {
	return h.calendar.Today()
}

func fillBlanksContent(t *testing.T) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"instructions": "Choose the right preposition",
		"items": []map[string]interface{}{
			{"id": "q1", "text": "I live ___ Brazil.", "options": []string{"in", "on", "at"}},
			{"id": "q2", "text": "See you ___ Monday.", "options": []string{"in", "on", "at"}},
			{"id": "q3", "text": "Write the missing word: I am good ___ maths.", "answer_type": "text_input"},
		},
	})
	require.NoError(t, err)
	return raw
}

func (h *harness) challenge(t *testing.T, owner policy.Actor, publishDate string) dto.ChallengeResponse {
	t.Helper()
	created, err := h.challenges.Create(context.Background(), owner, dto.ChallengeCreateRequest{
		Title:        "Prepositions of place",
		Description:  "Fill every blank with the right preposition.",
		Type:         string(models.ChallengeTypeFillBlanks),
		Content:      fillBlanksContent(t),
		PointsReward: 5,
		CoinReward:   10,
		PublishDate:  publishDate,
		Status:       string(models.ChallengeStatusPublished),
	})
	require.NoError(t, err)
	return created
}

func fullAnswers(challengeID uint) dto.SubmissionCreateRequest {
	return dto.SubmissionCreateRequest{
		ChallengeID: challengeID,
		Answers: []dto.AnswerRequest{
			{ItemID: "q1", SelectedOption: "in"},
			{ItemID: "q2", SelectedOption: "on"},
			{ItemID: "q3", SelectedOption: "at"},
		},
	}
}

func (h *harness) submit(t *testing.T, student policy.Actor, challengeID uint) dto.SubmissionResponse {
	t.Helper()
	created, err := h.submissions.Create(context.Background(), student, fullAnswers(challengeID))
	require.NoError(t, err)
	return created
}

func (h *harness) profile(t *testing.T, id uint) models.Profile {
	t.Helper()
	profile, err := h.store.Profiles.GetByID(context.Background(), id)
	require.NoError(t, err)
	return profile
}

func (h *harness) transactionCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.db.Model(&models.Transaction{}).Count(&count).Error)
	return count
}

func approve(feedback string) dto.SubmissionReviewRequest {
	return dto.SubmissionReviewRequest{Decision: string(models.SubmissionStatusApproved), Feedback: feedback}
}
