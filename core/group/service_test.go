package group_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/bible"
	"github.com/trezcool/selah/core/gamification"
	"github.com/trezcool/selah/core/group"
	"github.com/trezcool/selah/core/user"
	emailsvc "github.com/trezcool/selah/services/email"
	logsvc "github.com/trezcool/selah/services/logger"
	inmemdb "github.com/trezcool/selah/storage/database/inmem"
)

var (
	owner = user.User{ID: "owner", Name: "Grace", Roles: []string{user.RoleReader}}
	bob   = user.User{ID: "bob", Name: "Bob", Roles: []string{user.RoleReader}}
	carol = user.User{ID: "carol", Name: "Carol", Roles: []string{user.RoleReader}}
	admin = user.User{ID: "admin", Name: "Admin", Roles: []string{user.RoleAdmin}}
)

type assistantMock struct {
	mock.Mock
}

func (m *assistantMock) DiscussionQuestions(ctx context.Context, passage, text string) ([]string, error) {
	args := m.Called(passage, text)
	qs, _ := args.Get(0).([]string)
	return qs, args.Error(1)
}

func (m *assistantMock) Reply(ctx context.Context, passage string, thread []group.Post) (string, error) {
	args := m.Called(passage, len(thread))
	return args.String(0), args.Error(1)
}

type passages struct{}

func (passages) Passage(ctx context.Context, translation, ref string) (bible.Passage, error) {
	return bible.Passage{Reference: ref, Translation: translation, Text: "For God so loved the world"}, nil
}

type rewarder struct {
	kinds []gamification.Kind
}

func (r *rewarder) Reward(ctx context.Context, userID string, kind gamification.Kind, ref string) (gamification.RewardResult, error) {
	r.kinds = append(r.kinds, kind)
	return gamification.RewardResult{}, nil
}

type deps struct {
	assistant *assistantMock
	rewarder  *rewarder
}

func setup(t *testing.T, withAssistant bool) (group.Service, deps) {
	t.Helper()
	db := inmemdb.Open()
	logger := logsvc.NewTestLogger()
	d := deps{rewarder: new(rewarder)}

	var assistant group.Assistant
	if withAssistant {
		d.assistant = new(assistantMock)
		assistant = d.assistant
	}
	mailSvc := emailsvc.NewConsoleServiceMock(core.NewTestConfig(), logger)
	svc := group.NewService(inmemdb.NewGroupRepository(db), db, assistant, passages{}, d.rewarder, mailSvc, logger)
	return svc, d
}

// tick makes core.Now advance one second per call.
func tick(t *testing.T) {
	t.Helper()
	orig := core.NowFunc
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	core.NowFunc = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	t.Cleanup(func() { core.NowFunc = orig })
}

func newGroup(t *testing.T, svc group.Service, members ...user.User) group.Group {
	t.Helper()
	g, err := svc.Create(context.Background(), owner, group.NewGroup{Name: " Home group "})
	require.NoError(t, err)
	for _, m := range members {
		_, err := svc.Join(context.Background(), m, g.InviteCode)
		require.NoError(t, err)
	}
	return g
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t, false)
	g := newGroup(t, svc)

	assert.Equal(t, "Home group", g.Name)
	assert.Equal(t, owner.ID, g.OwnerID)
	require.Len(t, g.InviteCode, 8)
	assert.Empty(t, strings.Trim(g.InviteCode, "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"))

	members, err := svc.Members(ctx, owner.ID, g.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.True(t, members[0].IsOwner())
	assert.Equal(t, "Grace", members[0].Name)
}

func TestMembership(t *testing.T) {
	ctx := context.Background()
	tick(t)
	svc, _ := setup(t, false)
	g := newGroup(t, svc)

	t.Run("join with lower case code", func(t *testing.T) {
		joined, err := svc.Join(ctx, bob, " "+strings.ToLower(g.InviteCode)+" ")
		require.NoError(t, err)
		assert.Equal(t, g.ID, joined.ID)
		assert.Empty(t, joined.InviteCode, "members do not see the invite code")

		_, err = svc.Join(ctx, bob, g.InviteCode)
		require.NoError(t, err, "joining twice is a no-op")
		members, err := svc.Members(ctx, bob.ID, g.ID)
		require.NoError(t, err)
		assert.Len(t, members, 2)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := svc.Join(ctx, carol, "ZZZZZZZZ")
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("access", func(t *testing.T) {
		ok, err := svc.IsMember(ctx, g.ID, bob.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = svc.IsMember(ctx, g.ID, carol.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := svc.Get(ctx, bob.ID, g.ID)
		require.NoError(t, err)
		assert.Empty(t, got.InviteCode)
		got, err = svc.Get(ctx, owner.ID, g.ID)
		require.NoError(t, err)
		assert.Equal(t, g.InviteCode, got.InviteCode)

		_, err = svc.Get(ctx, carol.ID, g.ID)
		assert.Equal(t, core.ErrForbidden, err)
		_, err = svc.Members(ctx, carol.ID, g.ID)
		assert.Equal(t, core.ErrForbidden, err)
		_, err = svc.Get(ctx, bob.ID, "missing")
		assert.Equal(t, group.ErrNotFound, err)
	})

	t.Run("mine", func(t *testing.T) {
		groups, err := svc.Mine(ctx, bob.ID)
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Empty(t, groups[0].InviteCode)

		groups, err = svc.Mine(ctx, carol.ID)
		require.NoError(t, err)
		assert.Empty(t, groups)
	})

	t.Run("owner management", func(t *testing.T) {
		_, err := svc.Update(ctx, bob, g.ID, group.NewGroup{Name: "Mine now"})
		assert.Equal(t, core.ErrForbidden, err)

		updated, err := svc.Update(ctx, owner, g.ID, group.NewGroup{Name: "Tuesday group"})
		require.NoError(t, err)
		assert.Equal(t, "Tuesday group", updated.Name)

		regen, err := svc.RegenerateInviteCode(ctx, owner, g.ID)
		require.NoError(t, err)
		assert.NotEqual(t, g.InviteCode, regen.InviteCode)
		_, err = svc.Join(ctx, carol, g.InviteCode)
		assert.True(t, core.IsNotFound(err), "old code no longer works")
	})

	t.Run("leave and remove", func(t *testing.T) {
		var verr *core.ValidationError
		assert.ErrorAs(t, svc.Leave(ctx, owner.ID, g.ID), &verr)
		assert.ErrorAs(t, svc.RemoveMember(ctx, admin, g.ID, owner.ID), &verr)
		assert.Equal(t, core.ErrForbidden, svc.RemoveMember(ctx, bob, g.ID, bob.ID))
		assert.Equal(t, core.ErrForbidden, svc.Leave(ctx, carol.ID, g.ID))

		require.NoError(t, svc.RemoveMember(ctx, owner, g.ID, bob.ID))
		assert.Equal(t, group.ErrMemberNotFound, svc.RemoveMember(ctx, owner, g.ID, bob.ID))

		g2, err := svc.Join(ctx, bob, mustCode(t, svc, g.ID))
		require.NoError(t, err)
		require.NoError(t, svc.Leave(ctx, bob.ID, g2.ID))
		ok, err := svc.IsMember(ctx, g.ID, bob.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete", func(t *testing.T) {
		assert.Equal(t, core.ErrForbidden, svc.Delete(ctx, carol, g.ID))
		require.NoError(t, svc.Delete(ctx, admin, g.ID))
		_, err := svc.Get(ctx, owner.ID, g.ID)
		assert.Equal(t, group.ErrNotFound, err)
	})
}

func mustCode(t *testing.T, svc group.Service, id string) string {
	t.Helper()
	g, err := svc.Get(context.Background(), owner.ID, id)
	require.NoError(t, err)
	return g.InviteCode
}

func TestInvite(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t, false)
	g := newGroup(t, svc, bob)
	emailsvc.ResetSentMessages()

	assert.Equal(t, core.ErrForbidden, svc.Invite(ctx, carol, g.ID, "dan@selah.test"))
	_, sent := emailsvc.LastSentMessage()
	assert.False(t, sent)

	require.NoError(t, svc.Invite(ctx, bob, g.ID, "Dan@Selah.test"))
	msg, sent := emailsvc.LastSentMessage()
	require.True(t, sent)
	require.Len(t, msg.To, 1)
	assert.Equal(t, "dan@selah.test", msg.To[0].Address)
	assert.Equal(t, "Bob invited you to Home group", msg.Subject)
	assert.Contains(t, msg.TextContent, g.InviteCode)
}

func TestMessages(t *testing.T) {
	ctx := context.Background()
	tick(t)
	svc, _ := setup(t, false)
	g := newGroup(t, svc, bob)

	_, err := svc.PostMessage(ctx, carol.ID, g.ID, group.NewMessage{Body: "hi"})
	assert.Equal(t, core.ErrForbidden, err)

	var sent []string
	for _, body := range []string{"one", "two", "three", "four", "five"} {
		m, err := svc.PostMessage(ctx, bob.ID, g.ID, group.NewMessage{Body: body})
		require.NoError(t, err)
		sent = append(sent, m.ID)
	}

	var (
		got    []string
		cursor string
	)
	for i := 0; i < 3; i++ {
		page, err := svc.Messages(ctx, owner.ID, g.ID, cursor, 2)
		require.NoError(t, err)
		for _, m := range page.Messages {
			got = append(got, m.ID)
		}
		cursor = page.NextCursor
	}
	assert.Equal(t, sent, got, "pages cover every message once, oldest first")

	page, err := svc.Messages(ctx, owner.ID, g.ID, cursor, 2)
	require.NoError(t, err)
	assert.Empty(t, page.Messages)
	assert.Equal(t, cursor, page.NextCursor, "an exhausted cursor is returned as is")

	_, err = svc.Messages(ctx, owner.ID, g.ID, "%%%", 0)
	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestCursor(t *testing.T) {
	c := group.Cursor{CreatedAt: time.Date(2024, 5, 1, 8, 0, 0, 123, time.UTC), ID: "abc"}
	decoded, err := group.DecodeCursor(c.Encode())
	require.NoError(t, err)
	assert.True(t, c.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, c.ID, decoded.ID)

	empty, err := group.DecodeCursor("")
	require.NoError(t, err)
	assert.True(t, empty.IsZero())
	assert.Equal(t, "", group.Cursor{}.Encode())

	assert.True(t, c.After(group.Message{CreatedAt: c.CreatedAt, ID: "abd"}))
	assert.False(t, c.After(group.Message{CreatedAt: c.CreatedAt, ID: "abc"}))
	assert.True(t, c.After(group.Message{CreatedAt: c.CreatedAt.Add(time.Nanosecond), ID: "a"}))
}

func TestDiscussionsWithoutAssistant(t *testing.T) {
	ctx := context.Background()
	tick(t)
	svc, d := setup(t, false)
	g := newGroup(t, svc, bob)

	_, err := svc.OpenDiscussion(ctx, carol, g.ID, group.NewDiscussion{Ref: "JHN.3.16"})
	assert.Equal(t, core.ErrForbidden, err)
	_, err = svc.OpenDiscussion(ctx, bob, g.ID, group.NewDiscussion{Ref: "XYZ.1"})
	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)

	disc, err := svc.OpenDiscussion(ctx, bob, g.ID, group.NewDiscussion{Ref: "jhn.3.16"})
	require.NoError(t, err)
	assert.Equal(t, "JHN.3.16", disc.Ref)
	assert.Equal(t, "John 3:16", disc.Title)
	assert.Equal(t, group.FallbackQuestions, disc.Questions)

	_, err = svc.Reply(ctx, bob.ID, disc.ID, group.NewMessage{Body: "Amen"})
	require.NoError(t, err)
	assert.Equal(t, []gamification.Kind{gamification.KindDiscussionPost}, d.rewarder.kinds)

	post, err := svc.AskAssistant(ctx, owner.ID, disc.ID)
	require.NoError(t, err)
	assert.True(t, post.IsAssistant)
	assert.Empty(t, post.UserID)
	assert.NotEmpty(t, post.Body)

	thread, err := svc.Thread(ctx, owner.ID, disc.ID)
	require.NoError(t, err)
	require.Len(t, thread.Posts, 2)
	assert.Equal(t, "Amen", thread.Posts[0].Body)
	assert.True(t, thread.Posts[1].IsAssistant)

	_, err = svc.Thread(ctx, carol.ID, disc.ID)
	assert.Equal(t, core.ErrForbidden, err)

	list, err := svc.Discussions(ctx, owner.ID, g.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDiscussionsWithAssistant(t *testing.T) {
	ctx := context.Background()
	tick(t)
	svc, d := setup(t, true)
	g := newGroup(t, svc, bob)

	questions := []string{"Who is the world?", "What does believing look like?"}
	d.assistant.On("DiscussionQuestions", "John 3:16", "For God so loved the world").Return(questions, nil).Once()
	disc, err := svc.OpenDiscussion(ctx, bob, g.ID, group.NewDiscussion{Ref: "JHN.3.16", Title: "Tuesday"})
	require.NoError(t, err)
	assert.Equal(t, "Tuesday", disc.Title)
	assert.Equal(t, questions, disc.Questions)

	t.Run("falls back when generation fails", func(t *testing.T) {
		d.assistant.On("DiscussionQuestions", "Psalms 23", mock.Anything).Return(nil, errors.New("rate limited")).Once()
		other, err := svc.OpenDiscussion(ctx, bob, g.ID, group.NewDiscussion{Ref: "PSA.23"})
		require.NoError(t, err)
		assert.Equal(t, group.FallbackQuestions, other.Questions)
	})

	t.Run("assistant sees the latest posts", func(t *testing.T) {
		for i := 0; i < group.AssistantContextPosts+5; i++ {
			_, err := svc.Reply(ctx, bob.ID, disc.ID, group.NewMessage{Body: "thought"})
			require.NoError(t, err)
		}
		d.assistant.On("Reply", "John 3:16", group.AssistantContextPosts).Return("Consider verse 17 too.", nil).Once()

		post, err := svc.AskAssistant(ctx, bob.ID, disc.ID)
		require.NoError(t, err)
		assert.True(t, post.IsAssistant)
		assert.Equal(t, "Consider verse 17 too.", post.Body)
	})

	d.assistant.AssertExpectations(t)
}
