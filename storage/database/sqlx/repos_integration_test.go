//go:build integration

package sqlxrepos_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/annotation"
	"github.com/trezcool/selah/core/donation"
	"github.com/trezcool/selah/core/gamification"
	"github.com/trezcool/selah/core/group"
	"github.com/trezcool/selah/core/lesson"
	"github.com/trezcool/selah/core/notification"
	"github.com/trezcool/selah/core/plan"
	"github.com/trezcool/selah/core/user"
	logsvc "github.com/trezcool/selah/services/logger"
	"github.com/trezcool/selah/storage/database"
	sqlxrepos "github.com/trezcool/selah/storage/database/sqlx"
	testutil "github.com/trezcool/selah/tests"
)

var testDB *sqlx.DB

func setupPostgres(t *testing.T) *sqlx.DB {
	t.Helper()

	pool, err := dockertest.NewPool("")
	require.NoError(t, err)

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_PASSWORD=postgres",
			"POSTGRES_USER=postgres",
			"POSTGRES_DB=selah_test",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Purge(resource) })

	port, err := strconv.Atoi(resource.GetPort("5432/tcp"))
	require.NoError(t, err)

	conf := core.NewTestConfig()
	conf.Database.Host = "localhost"
	conf.Database.Port = port
	conf.Database.Name = "selah_test"
	conf.Database.User = "postgres"
	conf.Database.Password = "postgres"
	conf.Database.DisableTLS = true

	var db *sqlx.DB
	require.NoError(t, pool.Retry(func() error {
		db, err = database.Open(conf)
		return err
	}))
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func TestRepositories(t *testing.T) {
	testDB = setupPostgres(t)

	t.Run("users", testUsers)
	t.Run("gamification", testGamification)
	t.Run("annotations", testAnnotations)
	t.Run("plans", testPlans)
	t.Run("groups", testGroups)
	t.Run("lessons", testLessons)
	t.Run("donations", testDonations)
	t.Run("notifications", testNotifications)
	t.Run("transactions", testTransactions)
}

func testUsers(t *testing.T) {
	ctx := context.Background()
	repo := sqlxrepos.NewUserRepository(testDB)

	usr := testutil.CreateUser(t, repo, "Ruth", "ruth", "ruth@selah.test", "pwd", []string{user.RoleTeacher}, true)
	require.NotEmpty(t, usr.ID)

	got, err := repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{"ruth@selah.test"}})
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)
	assert.NoError(t, got.CheckPassword("pwd"))

	_, err = repo.GetUser(ctx, user.GetFilter{ID: "not-a-uuid"})
	assert.ErrorIs(t, err, user.ErrNotFound)

	err = repo.CheckUsernameUniqueness(ctx, "ruth", "", nil)
	assert.Equal(t, user.ErrUsernameExists, err)
	assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "ruth", "", []user.User{usr}))

	users, err := repo.QueryUsers(ctx, &user.QueryFilter{Roles: []string{"teacher:"}}, nil)
	require.NoError(t, err)
	require.Len(t, users, 1)

	usr.Name = "Ruth M."
	usr.LastLogin = time.Now().UTC()
	_, err = repo.UpdateUser(ctx, usr)
	require.NoError(t, err)
	got, err = repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.Equal(t, "Ruth M.", got.Name)
	assert.False(t, got.LastLogin.IsZero())
}

func testGamification(t *testing.T) {
	ctx := context.Background()
	usr := testutil.CreateReader(t, sqlxrepos.NewUserRepository(testDB), "caleb")
	repo := sqlxrepos.NewGamificationRepository(testDB)

	require.NoError(t, repo.EnsureStats(ctx, usr.ID))
	require.NoError(t, repo.EnsureStats(ctx, usr.ID))
	stats, err := repo.GetStats(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Level)

	act := gamification.Activity{
		ID: uuid.New().String(), UserID: usr.ID, Kind: gamification.KindChapterRead,
		Ref: "GEN.1", XP: 10, LocalDate: "2024-03-01", CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.CreateActivity(ctx, act))
	exists, err := repo.ActivityExists(ctx, usr.ID, gamification.KindChapterRead, "GEN.1", "2024-03-01")
	require.NoError(t, err)
	assert.True(t, exists)

	counts, err := repo.CountActivities(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[gamification.KindChapterRead])

	stats.XP, stats.Level = 10, 1
	require.NoError(t, repo.SaveStats(ctx, stats))
	top, err := repo.TopStats(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, top)

	for _, a := range gamification.DefaultAchievements {
		require.NoError(t, repo.UpsertAchievement(ctx, a))
	}
	all, err := repo.ListAchievements(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(gamification.DefaultAchievements))

	ua := gamification.UserAchievement{UserID: usr.ID, Code: "first_steps", UnlockedAt: time.Now().UTC()}
	require.NoError(t, repo.CreateUserAchievement(ctx, ua))
	require.NoError(t, repo.CreateUserAchievement(ctx, ua))
	unlocked, err := repo.ListUserAchievements(ctx, usr.ID)
	require.NoError(t, err)
	assert.Len(t, unlocked, 1)
}

func testAnnotations(t *testing.T) {
	ctx := context.Background()
	usr := testutil.CreateReader(t, sqlxrepos.NewUserRepository(testDB), "lydia")
	repo := sqlxrepos.NewAnnotationRepository(testDB)
	anchor := annotation.Anchor{Ref: "JHN.3.16", Book: "JHN", Chapter: 3, VerseStart: 16, VerseEnd: 16}
	now := time.Now().UTC()

	bm := annotation.Bookmark{ID: uuid.New().String(), UserID: usr.ID, Anchor: anchor, CreatedAt: now}
	_, created, err := repo.CreateBookmark(ctx, bm)
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := repo.CreateBookmark(ctx, annotation.Bookmark{ID: uuid.New().String(), UserID: usr.ID, Anchor: anchor, CreatedAt: now})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, bm.ID, again.ID)

	h := annotation.Highlight{ID: uuid.New().String(), UserID: usr.ID, Anchor: anchor, Color: "#ffee00", CreatedAt: now, UpdatedAt: now}
	_, err = repo.UpsertHighlight(ctx, h)
	require.NoError(t, err)
	h2 := h
	h2.ID, h2.Color = uuid.New().String(), "#00ff00"
	saved, err := repo.UpsertHighlight(ctx, h2)
	require.NoError(t, err)
	assert.Equal(t, h.ID, saved.ID)
	assert.Equal(t, "#00ff00", saved.Color)

	list, err := repo.ListHighlights(ctx, usr.ID, annotation.Filter{Book: "JHN", Chapter: 3})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.ErrorIs(t, repo.DeleteBookmark(ctx, usr.ID, "nope"), annotation.ErrBookmarkNotFound)
	assert.NoError(t, repo.DeleteBookmark(ctx, usr.ID, bm.ID))
}

func testPlans(t *testing.T) {
	ctx := context.Background()
	author := testutil.CreateTeacher(t, sqlxrepos.NewUserRepository(testDB), "ezra")
	repo := sqlxrepos.NewPlanRepository(testDB)
	now := time.Now().UTC()

	p, err := repo.CreatePlan(ctx, plan.Plan{
		ID: uuid.New().String(), Title: "Gospels", AuthorID: author.ID,
		Days:      []plan.Day{{Number: 1, Refs: []string{"MAT.1"}}, {Number: 2, Refs: []string{"MAT.2", "MAT.3"}}},
		CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	got, err := repo.GetPlan(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Days, got.Days)

	listed, err := repo.ListPlans(ctx, "", core.Pagination{})
	require.NoError(t, err)
	assert.Empty(t, listed)
	listed, err = repo.ListPlans(ctx, author.ID, core.Pagination{})
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	e, err := repo.CreateEnrollment(ctx, plan.Enrollment{
		ID: uuid.New().String(), UserID: author.ID, PlanID: p.ID, StartDate: "2024-03-01", CreatedAt: now,
	})
	require.NoError(t, err)
	e.CompletedDays = []int{1}
	_, err = repo.UpdateEnrollment(ctx, e)
	require.NoError(t, err)

	got2, err := repo.GetEnrollment(ctx, author.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, got2.CompletedDays)

	require.NoError(t, repo.DeletePlan(ctx, p.ID))
	_, err = repo.GetEnrollment(ctx, author.ID, p.ID)
	assert.ErrorIs(t, err, plan.ErrEnrollmentNotFound)
}

func testGroups(t *testing.T) {
	ctx := context.Background()
	owner := testutil.CreateReader(t, sqlxrepos.NewUserRepository(testDB), "priscilla")
	repo := sqlxrepos.NewGroupRepository(testDB)
	now := time.Now().UTC()

	g := group.Group{ID: uuid.New().String(), Name: "Romans", OwnerID: owner.ID, InviteCode: "ABCD1234", CreatedAt: now, UpdatedAt: now}
	_, err := repo.CreateGroup(ctx, g)
	require.NoError(t, err)

	dup := g
	dup.ID = uuid.New().String()
	_, err = repo.CreateGroup(ctx, dup)
	assert.Equal(t, group.ErrInviteCodeExists, err)

	require.NoError(t, repo.AddMember(ctx, group.Member{GroupID: g.ID, UserID: owner.ID, Role: group.RoleOwner, JoinedAt: now}))
	m, err := repo.GetMember(ctx, g.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "priscilla", m.Name)

	var msgs []group.Message
	for i := 0; i < 3; i++ {
		msg, err := repo.CreateMessage(ctx, group.Message{
			ID: uuid.New().String(), GroupID: g.ID, UserID: owner.ID, Body: strconv.Itoa(i), CreatedAt: now.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
		msgs = append(msgs, msg)
	}
	page, err := repo.ListMessages(ctx, g.ID, group.Cursor{CreatedAt: msgs[0].CreatedAt, ID: msgs[0].ID}, 10)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "1", page[0].Body)

	d, err := repo.CreateDiscussion(ctx, group.Discussion{
		ID: uuid.New().String(), GroupID: g.ID, CreatedBy: owner.ID, Ref: "ROM.8", Title: "Romans 8",
		Questions: []string{"What is life in the Spirit?"}, CreatedAt: now,
	})
	require.NoError(t, err)
	_, err = repo.CreatePost(ctx, group.Post{ID: uuid.New().String(), DiscussionID: d.ID, IsAssistant: true, Body: "Hello", CreatedAt: now})
	require.NoError(t, err)
	posts, err := repo.ListPosts(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Empty(t, posts[0].UserID)

	require.NoError(t, repo.DeleteGroup(ctx, g.ID))
	_, err = repo.GetDiscussion(ctx, d.ID)
	assert.ErrorIs(t, err, group.ErrDiscussionNotFound)
}

func testLessons(t *testing.T) {
	ctx := context.Background()
	author := testutil.CreateTeacher(t, sqlxrepos.NewUserRepository(testDB), "apollos")
	repo := sqlxrepos.NewLessonRepository(testDB)
	now := time.Now().UTC()

	l := lesson.Lesson{
		ID: uuid.New().String(), AuthorID: author.ID, Title: "Grace", Summary: "On grace",
		Sections: []lesson.Section{{Heading: "Intro", Body: "...", Refs: []string{"EPH.2.8"}}},
		Tags:     []string{"grace"}, Status: lesson.StatusDraft, CreatedAt: now, UpdatedAt: now,
	}
	_, err := repo.CreateLesson(ctx, l)
	require.NoError(t, err)

	res, err := repo.QueryLessons(ctx, lesson.QueryFilter{Tag: "grace"})
	require.NoError(t, err)
	assert.Empty(t, res)

	res, err = repo.QueryLessons(ctx, lesson.QueryFilter{Tag: "grace", Search: "GRA", Drafts: author.ID})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, l.Sections, res[0].Sections)

	c := lesson.Completion{UserID: author.ID, LessonID: l.ID, CompletedAt: now}
	require.NoError(t, repo.CreateCompletion(ctx, c))
	require.NoError(t, repo.CreateCompletion(ctx, c))
	_, err = repo.GetCompletion(ctx, author.ID, l.ID)
	assert.NoError(t, err)
}

func testDonations(t *testing.T) {
	ctx := context.Background()
	repo := sqlxrepos.NewDonationRepository(testDB)
	now := time.Now().UTC()

	for i, status := range []string{donation.StatusSucceeded, donation.StatusSucceeded, donation.StatusFailed} {
		_, err := repo.CreateDonation(ctx, donation.Donation{
			ID: uuid.New().String(), Amount: decimal.RequireFromString("12.50"), Currency: "usd",
			Status: status, ProviderIntentID: "pi_" + strconv.Itoa(i), CreatedAt: now, UpdatedAt: now,
		})
		require.NoError(t, err)
	}

	totals, err := repo.Totals(ctx, donation.StatusSucceeded)
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, 2, totals[0].Count)
	assert.True(t, decimal.RequireFromString("25").Equal(totals[0].Amount))

	d, err := repo.GetByIntentID(ctx, "pi_2")
	require.NoError(t, err)
	d.Status = donation.StatusRefunded
	_, err = repo.UpdateDonation(ctx, d)
	require.NoError(t, err)
}

func testNotifications(t *testing.T) {
	ctx := context.Background()
	usr := testutil.CreateReader(t, sqlxrepos.NewUserRepository(testDB), "phoebe")
	repo := sqlxrepos.NewNotificationRepository(testDB)
	now := time.Now().UTC()

	s := notification.Subscription{ID: uuid.New().String(), UserID: usr.ID, Endpoint: "https://push.test/1", P256dh: "k", Auth: "a", CreatedAt: now}
	first, err := repo.UpsertSubscription(ctx, s)
	require.NoError(t, err)
	s.ID, s.Auth = uuid.New().String(), "b"
	second, err := repo.UpsertSubscription(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "b", second.Auth)

	p := notification.Preference{UserID: usr.ID, Kind: notification.KindDailyVerse, Enabled: true, TimeOfDay: "07:30", Timezone: "UTC", Weekdays: notification.EveryDay}
	_, err = repo.UpsertPreference(ctx, p)
	require.NoError(t, err)
	require.NoError(t, repo.MarkSent(ctx, usr.ID, notification.KindDailyVerse, "2024-03-01"))

	enabled, err := repo.ListEnabledPreferences(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "2024-03-01", enabled[0].LastSentDate)

	assert.ErrorIs(t, repo.MarkSent(ctx, usr.ID, notification.KindStreakReminder, "2024-03-01"), notification.ErrPreferenceNotFound)
	assert.NoError(t, repo.DeleteSubscription(ctx, s.Endpoint))
	assert.ErrorIs(t, repo.DeleteSubscription(ctx, s.Endpoint), notification.ErrSubscriptionNotFound)
}

func testTransactions(t *testing.T) {
	ctx := context.Background()
	users := sqlxrepos.NewUserRepository(testDB)
	tx := database.NewTxRunner(testDB, logsvc.NewTestLogger())

	err := tx.RunInTx(ctx, "rollback test", func(exec core.DBExecutor) error {
		testutil.CreateUser(t, &txUserRepo{Repository: users, exec: exec}, "Silas", "silas", "silas@selah.test", "", nil, true)
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	_, err = users.GetUser(ctx, user.GetFilter{Username: "silas"})
	assert.ErrorIs(t, err, user.ErrNotFound)
}

// txUserRepo pins CreateUser to a transaction.
type txUserRepo struct {
	user.Repository
	exec core.DBExecutor
}

func (r *txUserRepo) CreateUser(ctx context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	return r.Repository.CreateUser(ctx, usr, r.exec)
}
