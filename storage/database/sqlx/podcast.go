package sqlxrepos

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/podcast"
)

const (
	podcastColumns  = "id, title, description, author_id, cover_url, created_at, updated_at"
	episodeColumns  = "id, podcast_id, title, description, audio_url, duration, refs, published_at, created_at, updated_at"
	progressColumns = "user_id, episode_id, position, completed, updated_at"
)

type podcastRow struct {
	ID          string      `db:"id"`
	Title       string      `db:"title"`
	Description string      `db:"description"`
	AuthorID    null.String `db:"author_id"`
	CoverURL    string      `db:"cover_url"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

type episodeRow struct {
	ID          string         `db:"id"`
	PodcastID   string         `db:"podcast_id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	AudioURL    string         `db:"audio_url"`
	Duration    int            `db:"duration"`
	Refs        pq.StringArray `db:"refs"`
	PublishedAt null.Time      `db:"published_at"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

type progressRow struct {
	UserID    string    `db:"user_id"`
	EpisodeID string    `db:"episode_id"`
	Position  int       `db:"position"`
	Completed bool      `db:"completed"`
	UpdatedAt time.Time `db:"updated_at"`
}

type podcastRepository struct {
	baseRepository
}

var _ podcast.Repository = (*podcastRepository)(nil)

func NewPodcastRepository(exec core.DBExecutor) podcast.Repository {
	return &podcastRepository{baseRepository{exec: exec}}
}

func (repo podcastRepository) boil(p podcast.Podcast) podcastRow {
	return podcastRow{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		AuthorID:    nullString(p.AuthorID),
		CoverURL:    p.CoverURL,
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	}
}

func (repo podcastRepository) unboil(row podcastRow) podcast.Podcast {
	return podcast.Podcast{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		AuthorID:    row.AuthorID.String,
		CoverURL:    row.CoverURL,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

func (repo podcastRepository) boilEpisode(e podcast.Episode) episodeRow {
	refs := e.Refs
	if refs == nil {
		refs = []string{}
	}
	return episodeRow{
		ID:          e.ID,
		PodcastID:   e.PodcastID,
		Title:       e.Title,
		Description: e.Description,
		AudioURL:    e.AudioURL,
		Duration:    e.Duration,
		Refs:        refs,
		PublishedAt: nullTime(e.PublishedAt),
		CreatedAt:   e.CreatedAt.UTC(),
		UpdatedAt:   e.UpdatedAt.UTC(),
	}
}

func (repo podcastRepository) unboilEpisode(row episodeRow) podcast.Episode {
	refs := []string(row.Refs)
	if refs == nil {
		refs = []string{}
	}
	return podcast.Episode{
		ID:          row.ID,
		PodcastID:   row.PodcastID,
		Title:       row.Title,
		Description: row.Description,
		AudioURL:    row.AudioURL,
		Duration:    row.Duration,
		Refs:        refs,
		PublishedAt: fromNullTime(row.PublishedAt),
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

func (repo podcastRepository) CreatePodcast(ctx context.Context, p podcast.Podcast, exec ...core.DBExecutor) (podcast.Podcast, error) {
	q := `INSERT INTO podcasts (` + podcastColumns + `)
		VALUES (:id, :title, :description, :author_id, :cover_url, :created_at, :updated_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, repo.boil(p)); err != nil {
		return podcast.Podcast{}, errors.Wrap(err, "inserting podcast")
	}
	return p, nil
}

func (repo podcastRepository) GetPodcast(ctx context.Context, id string, exec ...core.DBExecutor) (podcast.Podcast, error) {
	if !isUUID(id) {
		return podcast.Podcast{}, podcast.ErrNotFound
	}
	exe := repo.getExec(exec)
	var row podcastRow
	if err := exe.GetContext(ctx, &row, exe.Rebind("SELECT "+podcastColumns+" FROM podcasts WHERE id = ?"), id); err != nil {
		return podcast.Podcast{}, trapNoRowsErr(err, podcast.ErrNotFound, "finding podcast")
	}
	return repo.unboil(row), nil
}

func (repo podcastRepository) ListPodcasts(ctx context.Context, page core.Pagination, exec ...core.DBExecutor) ([]podcast.Podcast, error) {
	var rows []podcastRow
	q := "SELECT " + podcastColumns + " FROM podcasts ORDER BY title, id" + limitOffset(page)
	if err := repo.getExec(exec).SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "listing podcasts")
	}
	res := make([]podcast.Podcast, 0, len(rows))
	for _, r := range rows {
		res = append(res, repo.unboil(r))
	}
	return res, nil
}

func (repo podcastRepository) UpdatePodcast(ctx context.Context, p podcast.Podcast, exec ...core.DBExecutor) (podcast.Podcast, error) {
	q := `UPDATE podcasts SET title = :title, description = :description, cover_url = :cover_url,
		updated_at = :updated_at WHERE id = :id`
	res, err := repo.getExec(exec).NamedExecContext(ctx, q, repo.boil(p))
	if err != nil {
		return podcast.Podcast{}, errors.Wrap(err, "updating podcast")
	}
	if err := rowsAffected(res, podcast.ErrNotFound, "updating podcast"); err != nil {
		return podcast.Podcast{}, err
	}
	return p, nil
}

// DeletePodcast cascades to episodes and listening progress.
func (repo podcastRepository) DeletePodcast(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return podcast.ErrNotFound
	}
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM podcasts WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting podcast")
	}
	return rowsAffected(res, podcast.ErrNotFound, "deleting podcast")
}

func (repo podcastRepository) CreateEpisode(ctx context.Context, e podcast.Episode, exec ...core.DBExecutor) (podcast.Episode, error) {
	row := repo.boilEpisode(e)
	q := `INSERT INTO episodes (` + episodeColumns + `)
		VALUES (:id, :podcast_id, :title, :description, :audio_url, :duration, :refs, :published_at, :created_at, :updated_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, row); err != nil {
		return podcast.Episode{}, errors.Wrap(err, "inserting episode")
	}
	return repo.unboilEpisode(row), nil
}

func (repo podcastRepository) GetEpisode(ctx context.Context, id string, exec ...core.DBExecutor) (podcast.Episode, error) {
	if !isUUID(id) {
		return podcast.Episode{}, podcast.ErrEpisodeNotFound
	}
	exe := repo.getExec(exec)
	var row episodeRow
	if err := exe.GetContext(ctx, &row, exe.Rebind("SELECT "+episodeColumns+" FROM episodes WHERE id = ?"), id); err != nil {
		return podcast.Episode{}, trapNoRowsErr(err, podcast.ErrEpisodeNotFound, "finding episode")
	}
	return repo.unboilEpisode(row), nil
}

func (repo podcastRepository) ListEpisodes(ctx context.Context, podcastID string, publishedBefore time.Time, exec ...core.DBExecutor) ([]podcast.Episode, error) {
	if !isUUID(podcastID) {
		return []podcast.Episode{}, nil
	}
	exe := repo.getExec(exec)
	var w where
	w.add("podcast_id = ?", podcastID)
	if !publishedBefore.IsZero() {
		w.add("published_at IS NOT NULL AND published_at <= ?", publishedBefore.UTC())
	}

	var rows []episodeRow
	q := exe.Rebind("SELECT " + episodeColumns + " FROM episodes" + w.String() +
		" ORDER BY published_at DESC NULLS FIRST, created_at DESC")
	if err := exe.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "listing episodes")
	}
	res := make([]podcast.Episode, 0, len(rows))
	for _, r := range rows {
		res = append(res, repo.unboilEpisode(r))
	}
	return res, nil
}

func (repo podcastRepository) UpdateEpisode(ctx context.Context, e podcast.Episode, exec ...core.DBExecutor) (podcast.Episode, error) {
	row := repo.boilEpisode(e)
	q := `UPDATE episodes SET title = :title, description = :description, audio_url = :audio_url,
		duration = :duration, refs = :refs, published_at = :published_at, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.getExec(exec).NamedExecContext(ctx, q, row)
	if err != nil {
		return podcast.Episode{}, errors.Wrap(err, "updating episode")
	}
	if err := rowsAffected(res, podcast.ErrEpisodeNotFound, "updating episode"); err != nil {
		return podcast.Episode{}, err
	}
	return repo.unboilEpisode(row), nil
}

func (repo podcastRepository) DeleteEpisode(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return podcast.ErrEpisodeNotFound
	}
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM episodes WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting episode")
	}
	return rowsAffected(res, podcast.ErrEpisodeNotFound, "deleting episode")
}

func (repo podcastRepository) GetProgress(ctx context.Context, userID, episodeID string, exec ...core.DBExecutor) (podcast.Progress, error) {
	if !isUUID(episodeID) {
		return podcast.Progress{}, podcast.ErrProgressNotFound
	}
	exe := repo.getExec(exec)
	var row progressRow
	q := exe.Rebind("SELECT " + progressColumns + " FROM episode_progress WHERE user_id = ? AND episode_id = ?")
	if err := exe.GetContext(ctx, &row, q, userID, episodeID); err != nil {
		return podcast.Progress{}, trapNoRowsErr(err, podcast.ErrProgressNotFound, "finding progress")
	}
	return podcast.Progress{
		UserID:    row.UserID,
		EpisodeID: row.EpisodeID,
		Position:  row.Position,
		Completed: row.Completed,
		UpdatedAt: row.UpdatedAt.UTC(),
	}, nil
}

func (repo podcastRepository) SaveProgress(ctx context.Context, p podcast.Progress, exec ...core.DBExecutor) (podcast.Progress, error) {
	row := progressRow{
		UserID:    p.UserID,
		EpisodeID: p.EpisodeID,
		Position:  p.Position,
		Completed: p.Completed,
		UpdatedAt: p.UpdatedAt.UTC(),
	}
	q := `INSERT INTO episode_progress (` + progressColumns + `)
		VALUES (:user_id, :episode_id, :position, :completed, :updated_at)
		ON CONFLICT (user_id, episode_id) DO UPDATE SET position = EXCLUDED.position,
			completed = EXCLUDED.completed, updated_at = EXCLUDED.updated_at`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, row); err != nil {
		return podcast.Progress{}, errors.Wrap(err, "saving progress")
	}
	return p, nil
}
