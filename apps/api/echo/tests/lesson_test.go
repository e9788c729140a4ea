package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/selah/core/gamification"
	"github.com/trezcool/selah/core/lesson"
	"github.com/trezcool/selah/tests"
)

func Test_lessonApi(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateTeacher(t, usrRepo, "teacher")
	teacherToken := getToken(t, teacher)
	rivalToken := getToken(t, testutil.CreateTeacher(t, usrRepo, "rival"))
	readerToken := getToken(t, testutil.CreateReader(t, usrRepo, "hero"))
	lessonNotFound := marchallObj(t, httpErr{Error: "lesson not found"})

	newLesson := lesson.NewLesson{
		Title:   "Grace",
		Summary: "What grace means in Ephesians",
		Sections: []lesson.Section{
			{Heading: "Saved by grace", Body: "For by grace you have been saved.", Refs: []string{"EPH.2.8-9"}},
			{Heading: "Created for good works", Body: "We are his workmanship."},
		},
		Tags: []string{"Grace", " grace ", "Ephesians"},
	}

	t.Run("readers cannot author", func(t *testing.T) {
		rec := do(app, http.MethodPost, "/api/lessons", readerToken, marchallObj(t, newLesson))
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}, rec)
	})

	t.Run("sections required", func(t *testing.T) {
		rec := do(app, http.MethodPost, "/api/lessons", teacherToken, []byte(`{"title": "lol"}`))
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"sections": "this field is required"})}, rec)
	})

	var draft lesson.Lesson
	t.Run("create draft", func(t *testing.T) {
		rec := do(app, http.MethodPost, "/api/lessons", teacherToken, marchallObj(t, newLesson))
		checkCode(t, rec, http.StatusCreated)
		decode(t, rec, &draft)
		assert.Equal(t, lesson.StatusDraft, draft.Status)
		assert.Equal(t, teacher.ID, draft.AuthorID)
		assert.Equal(t, []string{"grace", "ephesians"}, draft.Tags)
		require.Len(t, draft.Sections, 2)
		assert.Equal(t, []string{}, draft.Sections[1].Refs)
	})
	lessonPath := "/api/lessons/" + draft.ID

	tests := []httpTest{
		{name: "author sees draft", method: http.MethodGet, path: lessonPath, token: teacherToken, wantCode: http.StatusOK, wantData: marchallObj(t, draft)},
		{name: "draft hidden from readers", method: http.MethodGet, path: lessonPath, token: readerToken, wantCode: http.StatusNotFound, wantData: lessonNotFound},
		{name: "drafts cannot be completed", method: http.MethodPost, path: lessonPath + "/complete", token: readerToken, wantCode: http.StatusNotFound, wantData: lessonNotFound},
		{name: "other teachers cannot publish", method: http.MethodPost, path: lessonPath + "/publish", token: rivalToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "readers cannot publish", method: http.MethodPost, path: lessonPath + "/publish", token: readerToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "unknown lesson", method: http.MethodGet, path: "/api/lessons/" + unknownUUID, token: readerToken, wantCode: http.StatusNotFound, wantData: lessonNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("publish", func(t *testing.T) {
		rec := do(app, http.MethodPost, lessonPath+"/publish", teacherToken)
		checkCode(t, rec, http.StatusOK)
		var published lesson.Lesson
		decode(t, rec, &published)
		assert.True(t, published.IsPublished())
		assert.False(t, published.PublishedAt.IsZero())

		rec = do(app, http.MethodGet, lessonPath, readerToken)
		checkCode(t, rec, http.StatusOK)
	})

	t.Run("query", func(t *testing.T) {
		rec := do(app, http.MethodPost, "/api/lessons", rivalToken, marchallObj(t, lesson.NewLesson{
			Title:    "Faith",
			Sections: []lesson.Section{{Heading: "Hebrews 11", Body: "Now faith is..."}},
			Tags:     []string{"faith"},
		}))
		checkCode(t, rec, http.StatusCreated)

		var lessons []lesson.Lesson
		decode(t, do(app, http.MethodGet, "/api/lessons", readerToken), &lessons)
		if assert.Len(t, lessons, 1, "the rival's draft is hidden") {
			assert.Equal(t, draft.ID, lessons[0].ID)
		}

		decode(t, do(app, http.MethodGet, "/api/lessons", rivalToken), &lessons)
		assert.Len(t, lessons, 2, "teachers see their own drafts")

		decode(t, do(app, http.MethodGet, "/api/lessons?tag=GRACE", readerToken), &lessons)
		assert.Len(t, lessons, 1)

		decode(t, do(app, http.MethodGet, "/api/lessons?search=ephesians", readerToken), &lessons)
		assert.Len(t, lessons, 1)

		decode(t, do(app, http.MethodGet, "/api/lessons?tag=faith", readerToken), &lessons)
		assert.Empty(t, lessons)

		decode(t, do(app, http.MethodGet, "/api/lessons?author="+teacher.ID, rivalToken), &lessons)
		assert.Len(t, lessons, 1)
	})

	t.Run("complete", func(t *testing.T) {
		rec := do(app, http.MethodPost, lessonPath+"/complete", readerToken)
		checkCode(t, rec, http.StatusOK)
		var res lesson.CompletionResult
		decode(t, rec, &res)
		assert.Equal(t, draft.ID, res.Completion.LessonID)
		require.NotNil(t, res.Reward)
		xp, _ := gamification.XPFor(gamification.KindLessonComplete)
		assert.Equal(t, xp, res.Reward.XPGained)

		rec = do(app, http.MethodPost, lessonPath+"/complete", readerToken)
		checkCode(t, rec, http.StatusOK)
		var again lesson.CompletionResult
		decode(t, rec, &again)
		assert.Nil(t, again.Reward, "rewarded once")
		assert.True(t, res.Completion.CompletedAt.Equal(again.Completion.CompletedAt))
	})

	t.Run("update, unpublish and delete", func(t *testing.T) {
		update := newLesson
		update.Title = "Amazing Grace"
		rec := do(app, http.MethodPut, lessonPath, rivalToken, marchallObj(t, update))
		checkCode(t, rec, http.StatusForbidden)

		rec = do(app, http.MethodPut, lessonPath, teacherToken, marchallObj(t, update))
		checkCode(t, rec, http.StatusOK)
		var updated lesson.Lesson
		decode(t, rec, &updated)
		assert.Equal(t, "Amazing Grace", updated.Title)
		assert.True(t, updated.IsPublished(), "editing keeps the status")

		rec = do(app, http.MethodPost, lessonPath+"/unpublish", teacherToken)
		checkCode(t, rec, http.StatusOK)
		rec = do(app, http.MethodGet, lessonPath, readerToken)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: lessonNotFound}, rec)

		rec = do(app, http.MethodDelete, lessonPath, teacherToken)
		checkCode(t, rec, http.StatusNoContent)
		rec = do(app, http.MethodGet, lessonPath, teacherToken)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: lessonNotFound}, rec)
	})
}
