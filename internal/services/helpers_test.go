package services

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kenha/kenhavate/internal/cache"
	"github.com/kenha/kenhavate/internal/config"
	"github.com/kenha/kenhavate/internal/database"
	"github.com/kenha/kenhavate/internal/dto"
	"github.com/kenha/kenhavate/internal/gamification"
	"github.com/kenha/kenhavate/internal/models"
	"github.com/kenha/kenhavate/internal/storage"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

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
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentMail struct {
	to, subject, body string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

// lastCode returns the most recent one-time code mailed to an address.
func (m *recordingMailer) lastCode(t *testing.T, to string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].to == to {
			if code := codePattern.FindString(m.sent[i].body); code != "" {
				return code
			}
		}
	}
	t.Fatalf("no code mailed to %s", to)
	return ""
}

func (m *recordingMailer) count(to string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sent {
		if s.to == to {
			n++
		}
	}
	return n
}

// fixture wires every service against one in-memory SQLite database.
type fixture struct {
	db         *gorm.DB
	clock      *testClock
	mailer     *recordingMailer
	events     *Dispatcher
	audit      *AuditService
	game       *GamificationService
	auth       *AuthService
	ideas      *IdeaService
	challenges *ChallengeService
	categories *CategoryService
	appeals    *AppealService
	users      *UserService
	roles      *RoleService
	category   models.Category
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.SeedRoles(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)

	store, err := storage.NewDiskStore(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{
		JWTSecret:        "test-secret",
		JWTAccessExpiry:  15 * time.Minute,
		JWTRefreshExpiry: 24 * time.Hour,
		OTPTTL:           10 * time.Minute,
		AppealCooldown:   24 * time.Hour,
		AdminEmails:      "chief@kenha.co.ke",
	}

	f := &fixture{
		db:     db,
		clock:  &testClock{now: time.Now().Truncate(time.Second)},
		mailer: &recordingMailer{},
		events: NewDispatcher(),
	}
	content := NewContentService()
	f.audit = NewAuditService(db)
	f.game = NewGamificationService(db, gamification.DefaultPolicy(), cache.NewLeaderboard(nil, 0))
	f.game.Subscribe(f.events)
	f.auth = NewAuthService(db, cfg, f.mailer, f.events, f.audit)
	f.ideas = NewIdeaService(db, f.audit, f.events, content, store)
	f.challenges = NewChallengeService(db, f.audit, content)
	f.categories = NewCategoryService(db, f.audit, content)
	f.appeals = NewAppealService(db, f.audit, content, f.mailer, cfg.AppealCooldown)
	f.users = NewUserService(db, f.audit)
	f.roles = NewRoleService(db, f.audit)

	f.game.now = f.clock.Now
	f.auth.now = f.clock.Now
	f.ideas.now = f.clock.Now
	f.challenges.now = f.clock.Now
	f.appeals.now = f.clock.Now

	f.category = models.Category{ID: uuid.New(), Name: "Road Safety", IsActive: true}
	require.NoError(t, db.Create(&f.category).Error)
	return f
}

// user creates a verified, active account. The first role is primary.
func (f *fixture) user(t *testing.T, name string, roles ...string) Actor {
	t.Helper()
	if len(roles) == 0 {
		roles = []string{models.RoleUser}
	}
	var rows []models.Role
	require.NoError(t, f.db.Where("name IN ?", roles).Find(&rows).Error)
	require.Len(t, rows, len(roles))

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	now := f.clock.Now()
	u := models.User{
		ID:              uuid.New(),
		Name:            name,
		Email:           normalizeEmail(name) + "@kenha.co.ke",
		Password:        string(hash),
		Role:            roles[0],
		Roles:           rows,
		AccountStatus:   models.AccountActive,
		EmailVerifiedAt: &now,
	}
	require.NoError(t, f.db.Create(&u).Error)
	return ActorFromUser(&u, "127.0.0.1")
}

func (f *fixture) draft(t *testing.T, author Actor, collaboration bool) *models.Idea {
	t.Helper()
	idea, err := f.ideas.Create(author, &dto.CreateIdeaRequest{
		Title:                "Solar powered road studs",
		Description:          "Replace reflective studs on the A104 with solar powered LED studs.",
		CategoryID:           f.category.ID,
		CollaborationEnabled: collaboration,
	})
	require.NoError(t, err)
	return idea
}

func (f *fixture) approve(t *testing.T, reviewer Actor, ideaID uuid.UUID) *models.Idea {
	t.Helper()
	_, idea, err := f.ideas.Review(reviewer, ideaID, &dto.ReviewRequest{Decision: models.DecisionApprove, Score: 8})
	require.NoError(t, err)
	return idea
}

func (f *fixture) total(t *testing.T, a Actor) int64 {
	t.Helper()
	total, err := f.game.Total(a.UserID)
	require.NoError(t, err)
	return total
}
