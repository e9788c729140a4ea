package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/selah/core/gamification"
	"github.com/trezcool/selah/tests"
)

func Test_gamificationApi_activity(t *testing.T) {
	app := setup(t)

	_, err := gameSvc.SeedAchievements(context.Background())
	require.NoError(t, err)

	reader := testutil.CreateReader(t, usrRepo, "hero")
	token := getToken(t, reader)
	chapterXP, _ := gamification.XPFor(gamification.KindChapterRead)

	tests := []httpTest{
		{name: "Auth required", body: []byte(`{"kind": "chapter_read", "ref": "JHN.3"}`), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "kind required", token: token, body: []byte(`{"ref": "JHN.3"}`), wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"kind": "this field is required"})},
		{name: "server-side kinds are rejected", token: token, body: []byte(`{"kind": "plan_complete", "ref": "lol"}`), wantCode: http.StatusBadRequest},
		{name: "invalid ref", token: token, body: []byte(`{"kind": "chapter_read", "ref": "lol"}`), wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"ref": "invalid reference"})},
		{name: "not a chapter", token: token, body: []byte(`{"kind": "chapter_read", "ref": "JHN.3.16"}`), wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"ref": "chapter_read expects a chapter reference, e.g. JHN.3"})},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/me/activity"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("first chapter", func(t *testing.T) {
		rec := do(app, http.MethodPost, "/api/me/activity", token, []byte(`{"kind": "chapter_read", "ref": "jhn.3"}`))
		checkCode(t, rec, http.StatusOK)
		var res gamification.RewardResult
		decode(t, rec, &res)
		assert.Equal(t, chapterXP, res.XPGained)
		assert.Equal(t, 1, res.Streak)
		assert.False(t, res.Duplicate)
		if assert.Len(t, res.NewAchievements, 1) {
			assert.Equal(t, "first_steps", res.NewAchievements[0].Code)
		}
	})

	t.Run("same chapter the same day", func(t *testing.T) {
		rec := do(app, http.MethodPost, "/api/me/activity", token, []byte(`{"kind": "chapter_read", "ref": "JHN.3"}`))
		checkCode(t, rec, http.StatusOK)
		var res gamification.RewardResult
		decode(t, rec, &res)
		assert.True(t, res.Duplicate)
		assert.Zero(t, res.XPGained)
		assert.Equal(t, chapterXP, res.TotalXP)
		assert.Empty(t, res.NewAchievements)
	})

	t.Run("prayer", func(t *testing.T) {
		rec := do(app, http.MethodPost, "/api/me/activity", token, []byte(`{"kind": "prayer", "ref": "morning"}`))
		checkCode(t, rec, http.StatusOK)
		var res gamification.RewardResult
		decode(t, rec, &res)
		prayerXP, _ := gamification.XPFor(gamification.KindPrayer)
		assert.Equal(t, chapterXP+prayerXP, res.TotalXP)
		assert.Equal(t, 1, res.Streak, "one streak day however many activities")
	})

	t.Run("stats", func(t *testing.T) {
		rec := do(app, http.MethodGet, "/api/me/stats", token)
		checkCode(t, rec, http.StatusOK)
		var stats gamification.Stats
		decode(t, rec, &stats)
		assert.Equal(t, reader.ID, stats.UserID)
		assert.Equal(t, 1, stats.Level)
		assert.Equal(t, 1, stats.CurrentStreak)
		assert.Equal(t, 1, stats.LongestStreak)
	})

	t.Run("achievements", func(t *testing.T) {
		rec := do(app, http.MethodGet, "/api/achievements", token)
		checkCode(t, rec, http.StatusOK)
		var catalog []gamification.Achievement
		decode(t, rec, &catalog)
		assert.Len(t, catalog, len(gamification.DefaultAchievements))

		rec = do(app, http.MethodGet, "/api/me/achievements", token)
		checkCode(t, rec, http.StatusOK)
		var mine []gamification.UnlockedAchievement
		decode(t, rec, &mine)
		if assert.Len(t, mine, 1) {
			assert.Equal(t, "first_steps", mine[0].Code)
			assert.False(t, mine[0].UnlockedAt.IsZero())
		}
	})
}

func Test_gamificationApi_leaderboard(t *testing.T) {
	app := setup(t)

	newbie := testutil.CreateReader(t, usrRepo, "newbie")
	hero := testutil.CreateReader(t, usrRepo, "hero")
	idle := testutil.CreateReader(t, usrRepo, "idle")

	for _, ref := range []string{"GEN.1", "GEN.2", "GEN.3"} {
		rec := do(app, http.MethodPost, "/api/me/activity", getToken(t, hero), marchallObj(t, map[string]string{"kind": "chapter_read", "ref": ref}))
		checkCode(t, rec, http.StatusOK)
	}
	rec := do(app, http.MethodPost, "/api/me/activity", getToken(t, newbie), []byte(`{"kind": "chapter_read", "ref": "GEN.1"}`))
	checkCode(t, rec, http.StatusOK)

	t.Run("ranked by xp", func(t *testing.T) {
		rec := do(app, http.MethodGet, "/api/leaderboard", getToken(t, idle))
		checkCode(t, rec, http.StatusOK)
		var entries []gamification.LeaderboardEntry
		decode(t, rec, &entries)
		require.Len(t, entries, 2, "users without activity are not ranked")
		assert.Equal(t, 1, entries[0].Rank)
		assert.Equal(t, hero.ID, entries[0].UserID)
		assert.Equal(t, hero.Name, entries[0].Name)
		assert.Equal(t, 30, entries[0].XP)
		assert.Equal(t, newbie.ID, entries[1].UserID)
	})

	t.Run("limit", func(t *testing.T) {
		rec := do(app, http.MethodGet, "/api/leaderboard?limit=1", getToken(t, idle))
		var entries []gamification.LeaderboardEntry
		decode(t, rec, &entries)
		if assert.Len(t, entries, 1) {
			assert.Equal(t, hero.ID, entries[0].UserID)
		}
	})
}
