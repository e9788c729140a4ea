package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/podcast"
)

type podcastRepository struct {
	db *podcastTables
}

var _ podcast.Repository = (*podcastRepository)(nil)

func NewPodcastRepository(db *DB) podcast.Repository {
	return &podcastRepository{db: db.podcast}
}

func (repo *podcastRepository) CreatePodcast(ctx context.Context, p podcast.Podcast, exec ...core.DBExecutor) (podcast.Podcast, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.podcasts[p.ID] = &p
	return p, nil
}

func (repo *podcastRepository) GetPodcast(ctx context.Context, id string, exec ...core.DBExecutor) (podcast.Podcast, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if p, ok := repo.db.podcasts[id]; ok {
		return *p, nil
	}
	return podcast.Podcast{}, podcast.ErrNotFound
}

func (repo *podcastRepository) ListPodcasts(ctx context.Context, page core.Pagination, exec ...core.DBExecutor) ([]podcast.Podcast, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	res := make([]podcast.Podcast, 0, len(repo.db.podcasts))
	for _, p := range repo.db.podcasts {
		res = append(res, *p)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Title < res[j].Title })
	start, end := page.Window(len(res))
	return res[start:end], nil
}

func (repo *podcastRepository) UpdatePodcast(ctx context.Context, p podcast.Podcast, exec ...core.DBExecutor) (podcast.Podcast, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.podcasts[p.ID]; !ok {
		return podcast.Podcast{}, podcast.ErrNotFound
	}
	repo.db.podcasts[p.ID] = &p
	return p, nil
}

func (repo *podcastRepository) DeletePodcast(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.podcasts[id]; !ok {
		return podcast.ErrNotFound
	}
	delete(repo.db.podcasts, id)
	for eid, e := range repo.db.episodes {
		if e.PodcastID == id {
			delete(repo.db.episodes, eid)
		}
	}
	return nil
}

func copyEpisode(e podcast.Episode) podcast.Episode {
	e.Refs = cloneStrings(e.Refs)
	return e
}

func (repo *podcastRepository) CreateEpisode(ctx context.Context, e podcast.Episode, exec ...core.DBExecutor) (podcast.Episode, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.podcasts[e.PodcastID]; !ok {
		return podcast.Episode{}, podcast.ErrNotFound
	}
	e = copyEpisode(e)
	repo.db.episodes[e.ID] = &e
	return copyEpisode(e), nil
}

func (repo *podcastRepository) GetEpisode(ctx context.Context, id string, exec ...core.DBExecutor) (podcast.Episode, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if e, ok := repo.db.episodes[id]; ok {
		return copyEpisode(*e), nil
	}
	return podcast.Episode{}, podcast.ErrEpisodeNotFound
}

func (repo *podcastRepository) ListEpisodes(ctx context.Context, podcastID string, publishedBefore time.Time, exec ...core.DBExecutor) ([]podcast.Episode, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	res := make([]podcast.Episode, 0)
	for _, e := range repo.db.episodes {
		if e.PodcastID != podcastID {
			continue
		}
		if !publishedBefore.IsZero() && !e.IsPublished(publishedBefore) {
			continue
		}
		res = append(res, copyEpisode(*e))
	}
	sort.Slice(res, func(i, j int) bool {
		if c := compareTime(res[i].PublishedAt, res[j].PublishedAt); c != 0 {
			return c > 0
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

func (repo *podcastRepository) UpdateEpisode(ctx context.Context, e podcast.Episode, exec ...core.DBExecutor) (podcast.Episode, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.episodes[e.ID]; !ok {
		return podcast.Episode{}, podcast.ErrEpisodeNotFound
	}
	e = copyEpisode(e)
	repo.db.episodes[e.ID] = &e
	return copyEpisode(e), nil
}

func (repo *podcastRepository) DeleteEpisode(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.episodes[id]; !ok {
		return podcast.ErrEpisodeNotFound
	}
	delete(repo.db.episodes, id)
	return nil
}

func (repo *podcastRepository) GetProgress(ctx context.Context, userID, episodeID string, exec ...core.DBExecutor) (podcast.Progress, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if p, ok := repo.db.progress[key(userID, episodeID)]; ok {
		return p, nil
	}
	return podcast.Progress{}, podcast.ErrProgressNotFound
}

func (repo *podcastRepository) SaveProgress(ctx context.Context, p podcast.Progress, exec ...core.DBExecutor) (podcast.Progress, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.progress[key(p.UserID, p.EpisodeID)] = p
	return p, nil
}
