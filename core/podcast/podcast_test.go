package podcast_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/gamification"
	"github.com/trezcool/selah/core/podcast"
	"github.com/trezcool/selah/core/user"
	logsvc "github.com/trezcool/selah/services/logger"
	inmemdb "github.com/trezcool/selah/storage/database/inmem"
)

var (
	now     = time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)
	teacher = user.User{ID: "t1", Roles: []string{user.RoleTeacher}}
	other   = user.User{ID: "t2", Roles: []string{user.RoleTeacher}}
	reader  = user.User{ID: "r1", Roles: []string{user.RoleReader}}
)

type rewarder struct {
	calls int
}

func (r *rewarder) Reward(ctx context.Context, userID string, kind gamification.Kind, ref string) (gamification.RewardResult, error) {
	r.calls++
	return gamification.RewardResult{XPGained: 15}, nil
}

func setup(t *testing.T) (podcast.Service, *rewarder) {
	t.Helper()
	orig := core.NowFunc
	core.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { core.NowFunc = orig })

	rw := new(rewarder)
	return podcast.NewService(inmemdb.NewPodcastRepository(inmemdb.Open()), rw, logsvc.NewTestLogger()), rw
}

func at(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func episode(title string, publishedAt *time.Time) podcast.NewEpisode {
	return podcast.NewEpisode{
		Title:       title,
		AudioURL:    "https://cdn.selah.test/" + title + ".mp3",
		Duration:    600,
		Refs:        []string{"ROM.8"},
		PublishedAt: publishedAt,
	}
}

func TestPodcastAuthoring(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	_, err := svc.Create(ctx, reader, podcast.NewPodcast{Title: "Romans"})
	assert.Equal(t, core.ErrForbidden, err)

	p, err := svc.Create(ctx, teacher, podcast.NewPodcast{Title: " Romans "})
	require.NoError(t, err)
	assert.Equal(t, "Romans", p.Title)
	_, err = svc.Create(ctx, other, podcast.NewPodcast{Title: "Acts"})
	require.NoError(t, err)

	list, err := svc.List(ctx, core.Pagination{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Acts", list[0].Title, "podcasts are listed by title")

	_, err = svc.Update(ctx, other, p.ID, podcast.NewPodcast{Title: "Mine"})
	assert.Equal(t, core.ErrForbidden, err)
	p, err = svc.Update(ctx, teacher, p.ID, podcast.NewPodcast{Title: "Romans, verse by verse"})
	require.NoError(t, err)
	assert.Equal(t, "Romans, verse by verse", p.Title)

	_, err = svc.AddEpisode(ctx, other, p.ID, episode("ep1", nil))
	assert.Equal(t, core.ErrForbidden, err)

	assert.Equal(t, core.ErrForbidden, svc.Delete(ctx, reader, p.ID))
	require.NoError(t, svc.Delete(ctx, teacher, p.ID))
	_, err = svc.Get(ctx, p.ID)
	assert.Equal(t, podcast.ErrNotFound, err)
}

func TestEpisodeVisibility(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)
	p, err := svc.Create(ctx, teacher, podcast.NewPodcast{Title: "Romans"})
	require.NoError(t, err)

	old, err := svc.AddEpisode(ctx, teacher, p.ID, episode("old", at(-48*time.Hour)))
	require.NoError(t, err)
	recent, err := svc.AddEpisode(ctx, teacher, p.ID, episode("recent", at(-time.Hour)))
	require.NoError(t, err)
	scheduled, err := svc.AddEpisode(ctx, teacher, p.ID, episode("scheduled", at(24*time.Hour)))
	require.NoError(t, err)
	draft, err := svc.AddEpisode(ctx, teacher, p.ID, episode("draft", nil))
	require.NoError(t, err)
	assert.True(t, draft.PublishedAt.IsZero())

	t.Run("listeners see published episodes, newest first", func(t *testing.T) {
		eps, err := svc.Episodes(ctx, reader, p.ID)
		require.NoError(t, err)
		require.Len(t, eps, 2)
		assert.Equal(t, recent.ID, eps[0].ID)
		assert.Equal(t, old.ID, eps[1].ID)
	})

	t.Run("author sees everything", func(t *testing.T) {
		eps, err := svc.Episodes(ctx, teacher, p.ID)
		require.NoError(t, err)
		assert.Len(t, eps, 4)
	})

	t.Run("single episode", func(t *testing.T) {
		for _, id := range []string{scheduled.ID, draft.ID} {
			_, err := svc.Episode(ctx, reader, id)
			assert.Equal(t, podcast.ErrEpisodeNotFound, err)
			_, err = svc.Episode(ctx, teacher, id)
			assert.NoError(t, err)
		}
		e, err := svc.Episode(ctx, reader, recent.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"ROM.8"}, e.Refs)
	})

	t.Run("publish a draft", func(t *testing.T) {
		_, err := svc.UpdateEpisode(ctx, other, draft.ID, episode("draft", at(0)))
		assert.Equal(t, core.ErrForbidden, err)
		e, err := svc.UpdateEpisode(ctx, teacher, draft.ID, episode("draft", at(0)))
		require.NoError(t, err)
		assert.True(t, e.IsPublished(now))
	})

	t.Run("delete", func(t *testing.T) {
		assert.Equal(t, core.ErrForbidden, svc.DeleteEpisode(ctx, reader, old.ID))
		require.NoError(t, svc.DeleteEpisode(ctx, teacher, old.ID))
		_, err := svc.Episode(ctx, teacher, old.ID)
		assert.Equal(t, podcast.ErrEpisodeNotFound, err)
	})
}

func TestProgress(t *testing.T) {
	ctx := context.Background()
	svc, rw := setup(t)
	p, err := svc.Create(ctx, teacher, podcast.NewPodcast{Title: "Romans"})
	require.NoError(t, err)
	e, err := svc.AddEpisode(ctx, teacher, p.ID, episode("ep1", at(-time.Hour)))
	require.NoError(t, err)
	draft, err := svc.AddEpisode(ctx, teacher, p.ID, episode("ep2", nil))
	require.NoError(t, err)

	prog, err := svc.Progress(ctx, reader.ID, e.ID)
	require.NoError(t, err)
	assert.Zero(t, prog.Position, "no progress yet")

	res, err := svc.SaveProgress(ctx, reader, e.ID, podcast.UpdateProgress{Position: 120})
	require.NoError(t, err)
	assert.Equal(t, 120, res.Progress.Position)
	assert.Nil(t, res.Reward)

	res, err = svc.SaveProgress(ctx, reader, e.ID, podcast.UpdateProgress{Position: 9000, Completed: true})
	require.NoError(t, err)
	assert.Equal(t, 600, res.Progress.Position, "position is capped at the duration")
	require.NotNil(t, res.Reward)
	assert.Equal(t, 15, res.Reward.XPGained)

	res, err = svc.SaveProgress(ctx, reader, e.ID, podcast.UpdateProgress{Position: 30})
	require.NoError(t, err)
	assert.True(t, res.Progress.Completed, "completed episodes stay completed")
	assert.Nil(t, res.Reward)
	assert.Equal(t, 1, rw.calls)

	_, err = svc.SaveProgress(ctx, reader, draft.ID, podcast.UpdateProgress{Position: 1})
	assert.Equal(t, podcast.ErrEpisodeNotFound, err)
}
