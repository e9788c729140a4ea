package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/selah/core/gamification"
	"github.com/trezcool/selah/core/prayer"
	"github.com/trezcool/selah/tests"
)

func Test_prayerApi_personal(t *testing.T) {
	app := setup(t)

	reader := testutil.CreateReader(t, usrRepo, "hero")
	token := getToken(t, reader)
	otherToken := getToken(t, testutil.CreateReader(t, usrRepo, "other"))
	prayerNotFound := marchallObj(t, httpErr{Error: "prayer not found"})

	t.Run("title required", func(t *testing.T) {
		rec := do(app, http.MethodPost, "/api/me/prayers", token, []byte(`{"body": "lol"}`))
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"title": "this field is required"})}, rec)
	})

	var p prayer.Prayer
	t.Run("create", func(t *testing.T) {
		rec := do(app, http.MethodPost, "/api/me/prayers", token, []byte(`{"title": "Healing for mum", "body": " surgery on friday "}`))
		checkCode(t, rec, http.StatusCreated)
		decode(t, rec, &p)
		assert.Equal(t, reader.ID, p.UserID)
		assert.Equal(t, "surgery on friday", p.Body)
		assert.True(t, p.Private, "personal prayers are private by default")
		assert.True(t, p.AnsweredAt.IsZero())

		rec = do(app, http.MethodGet, "/api/me/stats", token)
		var stats gamification.Stats
		decode(t, rec, &stats)
		xp, _ := gamification.XPFor(gamification.KindPrayer)
		assert.Equal(t, xp, stats.XP)
	})
	prayerPath := "/api/me/prayers/" + p.ID

	tests := []httpTest{
		{name: "get", method: http.MethodGet, path: prayerPath, token: token, wantCode: http.StatusOK, wantData: marchallObj(t, p)},
		{name: "hidden from others", method: http.MethodGet, path: prayerPath, token: otherToken, wantCode: http.StatusNotFound, wantData: prayerNotFound},
		{name: "others cannot update", method: http.MethodPut, path: prayerPath, token: otherToken, body: []byte(`{"title": "lol"}`), wantCode: http.StatusNotFound, wantData: prayerNotFound},
		{name: "others cannot answer", method: http.MethodPost, path: prayerPath + "/answered", token: otherToken, body: []byte(`{"answered": true}`), wantCode: http.StatusNotFound, wantData: prayerNotFound},
		{name: "others cannot delete", method: http.MethodDelete, path: prayerPath, token: otherToken, wantCode: http.StatusNotFound, wantData: prayerNotFound},
		{name: "unknown prayer", method: http.MethodGet, path: "/api/me/prayers/" + unknownUUID, token: token, wantCode: http.StatusNotFound, wantData: prayerNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("update", func(t *testing.T) {
		rec := do(app, http.MethodPut, prayerPath, token, []byte(`{"title": "Healing for mum", "body": "surgery went well"}`))
		checkCode(t, rec, http.StatusOK)
		var updated prayer.Prayer
		decode(t, rec, &updated)
		assert.Equal(t, "surgery went well", updated.Body)
		assert.True(t, updated.Private, "privacy is kept when omitted")
	})

	t.Run("answered", func(t *testing.T) {
		rec := do(app, http.MethodPost, prayerPath+"/answered", token, []byte(`{"answered": true}`))
		checkCode(t, rec, http.StatusOK)
		var answered prayer.Prayer
		decode(t, rec, &answered)
		assert.False(t, answered.AnsweredAt.IsZero())

		rec = do(app, http.MethodPost, prayerPath+"/answered", token, []byte(`{"answered": true}`))
		var again prayer.Prayer
		decode(t, rec, &again)
		assert.True(t, answered.AnsweredAt.Equal(again.AnsweredAt), "answering twice keeps the first date")

		rec = do(app, http.MethodPost, prayerPath+"/answered", token, []byte(`{"answered": false}`))
		var reopened prayer.Prayer
		decode(t, rec, &reopened)
		assert.True(t, reopened.AnsweredAt.IsZero())
	})

	t.Run("list and delete", func(t *testing.T) {
		rec := do(app, http.MethodPost, "/api/me/prayers", token, []byte(`{"title": "Wisdom at work"}`))
		checkCode(t, rec, http.StatusCreated)

		rec = do(app, http.MethodGet, "/api/me/prayers", token)
		checkCode(t, rec, http.StatusOK)
		var prayers []prayer.Prayer
		decode(t, rec, &prayers)
		assert.Len(t, prayers, 2)

		rec = do(app, http.MethodGet, "/api/me/prayers", otherToken)
		decode(t, rec, &prayers)
		assert.Empty(t, prayers)

		rec = do(app, http.MethodDelete, prayerPath, token)
		checkCode(t, rec, http.StatusNoContent)

		rec = do(app, http.MethodGet, prayerPath, token)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: prayerNotFound}, rec)
	})
}

func Test_prayerApi_group(t *testing.T) {
	app := setup(t)

	ownerToken := getToken(t, testutil.CreateReader(t, usrRepo, "owner"))
	friendToken := getToken(t, testutil.CreateReader(t, usrRepo, "friend"))
	strangerToken := getToken(t, testutil.CreateReader(t, usrRepo, "stranger"))
	grp := createGroupWithMember(t, app, ownerToken, friendToken)
	groupPrayersPath := "/api/groups/" + grp.ID + "/prayers"

	t.Run("invalid group id", func(t *testing.T) {
		rec := do(app, http.MethodPost, "/api/me/prayers", ownerToken, []byte(`{"title": "lol", "group_id": "lol"}`))
		checkCode(t, rec, http.StatusBadRequest)
	})

	t.Run("non-members cannot share", func(t *testing.T) {
		rec := do(app, http.MethodPost, "/api/me/prayers", strangerToken, marchallObj(t, prayer.NewPrayer{Title: "lol", GroupID: grp.ID}))
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}, rec)
	})

	var shared, private prayer.Prayer
	t.Run("share", func(t *testing.T) {
		rec := do(app, http.MethodPost, "/api/me/prayers", ownerToken, marchallObj(t, prayer.NewPrayer{Title: "Our retreat", GroupID: grp.ID}))
		checkCode(t, rec, http.StatusCreated)
		decode(t, rec, &shared)
		assert.False(t, shared.Private, "group prayers are public by default")

		hidden := true
		rec = do(app, http.MethodPost, "/api/me/prayers", ownerToken, marchallObj(t, prayer.NewPrayer{Title: "Just me", GroupID: grp.ID, Private: &hidden}))
		checkCode(t, rec, http.StatusCreated)
		decode(t, rec, &private)
		assert.True(t, private.Private)
	})

	tests := []httpTest{
		{name: "members see shared prayers", method: http.MethodGet, path: "/api/me/prayers/" + shared.ID, token: friendToken, wantCode: http.StatusOK, wantData: marchallObj(t, shared)},
		{name: "members do not see private prayers", method: http.MethodGet, path: "/api/me/prayers/" + private.ID, token: friendToken, wantCode: http.StatusNotFound},
		{name: "non-members do not see shared prayers", method: http.MethodGet, path: "/api/me/prayers/" + shared.ID, token: strangerToken, wantCode: http.StatusNotFound},
		{name: "non-members cannot list", method: http.MethodGet, path: groupPrayersPath, token: strangerToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("list", func(t *testing.T) {
		rec := do(app, http.MethodGet, groupPrayersPath, friendToken)
		checkCode(t, rec, http.StatusOK)
		var prayers []prayer.Prayer
		decode(t, rec, &prayers)
		if assert.Len(t, prayers, 1) {
			assert.Equal(t, shared.ID, prayers[0].ID)
		}
	})
}
