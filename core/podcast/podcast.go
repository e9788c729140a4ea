package podcast

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/gamification"
	"github.com/trezcool/selah/core/user"
)

var (
	ErrNotFound         = core.NewNotFoundError("podcast")
	ErrEpisodeNotFound  = core.NewNotFoundError("episode")
	ErrProgressNotFound = core.NewNotFoundError("progress")
)

type Podcast struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AuthorID    string    `json:"author_id"`
	CoverURL    string    `json:"cover_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Episode struct {
	ID          string    `json:"id"`
	PodcastID   string    `json:"podcast_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AudioURL    string    `json:"audio_url"`
	Duration    int       `json:"duration"` // seconds
	Refs        []string  `json:"refs"`
	PublishedAt time.Time `json:"published_at"` // zero while draft
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsPublished reports whether the episode is visible to listeners at `now`.
func (e Episode) IsPublished(now time.Time) bool {
	return !e.PublishedAt.IsZero() && !e.PublishedAt.After(now)
}

type Progress struct {
	UserID    string    `json:"-"`
	EpisodeID string    `json:"episode_id"`
	Position  int       `json:"position"` // seconds
	Completed bool      `json:"completed"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NewPodcast struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	CoverURL    string `json:"cover_url" validate:"omitempty,url"`
}

func (np *NewPodcast) Validate(validate *validator.Validate) error { return validate.Struct(np) }

type NewEpisode struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=5000"`
	AudioURL    string     `json:"audio_url" validate:"required,url"`
	Duration    int        `json:"duration" validate:"gte=0"`
	Refs        []string   `json:"refs" validate:"omitempty,dive,ref"`
	PublishedAt *time.Time `json:"published_at"`
}

func (ne *NewEpisode) Validate(validate *validator.Validate) error { return validate.Struct(ne) }

type UpdateProgress struct {
	Position  int  `json:"position" validate:"gte=0"`
	Completed bool `json:"completed"`
}

func (up *UpdateProgress) Validate(validate *validator.Validate) error { return validate.Struct(up) }

type (
	Repository interface {
		CreatePodcast(ctx context.Context, p Podcast, exec ...core.DBExecutor) (Podcast, error)
		GetPodcast(ctx context.Context, id string, exec ...core.DBExecutor) (Podcast, error)
		ListPodcasts(ctx context.Context, page core.Pagination, exec ...core.DBExecutor) ([]Podcast, error)
		UpdatePodcast(ctx context.Context, p Podcast, exec ...core.DBExecutor) (Podcast, error)
		DeletePodcast(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateEpisode(ctx context.Context, e Episode, exec ...core.DBExecutor) (Episode, error)
		GetEpisode(ctx context.Context, id string, exec ...core.DBExecutor) (Episode, error)
		// ListEpisodes lists a podcast's episodes, newest first. publishedBefore filters out
		// drafts and scheduled episodes unless it is zero.
		ListEpisodes(ctx context.Context, podcastID string, publishedBefore time.Time, exec ...core.DBExecutor) ([]Episode, error)
		UpdateEpisode(ctx context.Context, e Episode, exec ...core.DBExecutor) (Episode, error)
		DeleteEpisode(ctx context.Context, id string, exec ...core.DBExecutor) error

		GetProgress(ctx context.Context, userID, episodeID string, exec ...core.DBExecutor) (Progress, error)
		SaveProgress(ctx context.Context, p Progress, exec ...core.DBExecutor) (Progress, error)
	}

	Rewarder interface {
		Reward(ctx context.Context, userID string, kind gamification.Kind, ref string) (gamification.RewardResult, error)
	}

	ProgressResult struct {
		Progress Progress                   `json:"progress"`
		Reward   *gamification.RewardResult `json:"reward,omitempty"`
	}

	Service interface {
		Create(ctx context.Context, author user.User, np NewPodcast) (Podcast, error)
		Get(ctx context.Context, id string) (Podcast, error)
		List(ctx context.Context, page core.Pagination) ([]Podcast, error)
		Update(ctx context.Context, actor user.User, id string, np NewPodcast) (Podcast, error)
		Delete(ctx context.Context, actor user.User, id string) error

		AddEpisode(ctx context.Context, actor user.User, podcastID string, ne NewEpisode) (Episode, error)
		Episodes(ctx context.Context, viewer user.User, podcastID string) ([]Episode, error)
		Episode(ctx context.Context, viewer user.User, id string) (Episode, error)
		UpdateEpisode(ctx context.Context, actor user.User, id string, ne NewEpisode) (Episode, error)
		DeleteEpisode(ctx context.Context, actor user.User, id string) error

		Progress(ctx context.Context, userID, episodeID string) (Progress, error)
		SaveProgress(ctx context.Context, usr user.User, episodeID string, up UpdateProgress) (ProgressResult, error)
	}

	service struct {
		repo     Repository
		rewarder Rewarder
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, rewarder Rewarder, logger core.Logger) Service {
	return &service{
		repo:     repo,
		rewarder: rewarder,
		logger:   logger,
	}
}

func canAuthor(actor user.User, authorID string) bool {
	return actor.IsAdmin() || (actor.IsTeacher() && actor.ID == authorID)
}

func (svc *service) Create(ctx context.Context, author user.User, np NewPodcast) (Podcast, error) {
	if !author.IsTeacher() {
		return Podcast{}, core.ErrForbidden
	}
	now := core.Now()
	return svc.repo.CreatePodcast(ctx, Podcast{
		ID:          uuid.New().String(),
		Title:       core.CleanString(np.Title),
		Description: core.CleanString(np.Description),
		AuthorID:    author.ID,
		CoverURL:    np.CoverURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *service) Get(ctx context.Context, id string) (Podcast, error) {
	return svc.repo.GetPodcast(ctx, id)
}

func (svc *service) List(ctx context.Context, page core.Pagination) ([]Podcast, error) {
	page.Clean()
	return svc.repo.ListPodcasts(ctx, page)
}

func (svc *service) authored(ctx context.Context, actor user.User, id string) (Podcast, error) {
	p, err := svc.repo.GetPodcast(ctx, id)
	if err != nil {
		return Podcast{}, err
	}
	if !canAuthor(actor, p.AuthorID) {
		return Podcast{}, core.ErrForbidden
	}
	return p, nil
}

func (svc *service) Update(ctx context.Context, actor user.User, id string, np NewPodcast) (Podcast, error) {
	p, err := svc.authored(ctx, actor, id)
	if err != nil {
		return Podcast{}, err
	}
	p.Title = core.CleanString(np.Title)
	p.Description = core.CleanString(np.Description)
	p.CoverURL = np.CoverURL
	p.UpdatedAt = core.Now()
	return svc.repo.UpdatePodcast(ctx, p)
}

func (svc *service) Delete(ctx context.Context, actor user.User, id string) error {
	if _, err := svc.authored(ctx, actor, id); err != nil {
		return err
	}
	return svc.repo.DeletePodcast(ctx, id)
}

func applyEpisode(e *Episode, ne NewEpisode) {
	e.Title = core.CleanString(ne.Title)
	e.Description = core.CleanString(ne.Description)
	e.AudioURL = ne.AudioURL
	e.Duration = ne.Duration
	e.Refs = ne.Refs
	if e.Refs == nil {
		e.Refs = []string{}
	}
	e.PublishedAt = time.Time{}
	if ne.PublishedAt != nil {
		e.PublishedAt = ne.PublishedAt.UTC()
	}
}

func (svc *service) AddEpisode(ctx context.Context, actor user.User, podcastID string, ne NewEpisode) (Episode, error) {
	if _, err := svc.authored(ctx, actor, podcastID); err != nil {
		return Episode{}, err
	}
	now := core.Now()
	e := Episode{
		ID:        uuid.New().String(),
		PodcastID: podcastID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyEpisode(&e, ne)
	return svc.repo.CreateEpisode(ctx, e)
}

// Episodes lists published episodes; the podcast's author (or an admin) also sees drafts.
func (svc *service) Episodes(ctx context.Context, viewer user.User, podcastID string) ([]Episode, error) {
	p, err := svc.repo.GetPodcast(ctx, podcastID)
	if err != nil {
		return nil, err
	}
	before := core.Now()
	if canAuthor(viewer, p.AuthorID) {
		before = time.Time{}
	}
	return svc.repo.ListEpisodes(ctx, podcastID, before)
}

func (svc *service) Episode(ctx context.Context, viewer user.User, id string) (Episode, error) {
	e, err := svc.repo.GetEpisode(ctx, id)
	if err != nil {
		return Episode{}, err
	}
	if e.IsPublished(core.Now()) {
		return e, nil
	}
	if _, err := svc.authored(ctx, viewer, e.PodcastID); err != nil {
		return Episode{}, ErrEpisodeNotFound
	}
	return e, nil
}

func (svc *service) authoredEpisode(ctx context.Context, actor user.User, id string) (Episode, error) {
	e, err := svc.repo.GetEpisode(ctx, id)
	if err != nil {
		return Episode{}, err
	}
	if _, err := svc.authored(ctx, actor, e.PodcastID); err != nil {
		return Episode{}, err
	}
	return e, nil
}

func (svc *service) UpdateEpisode(ctx context.Context, actor user.User, id string, ne NewEpisode) (Episode, error) {
	e, err := svc.authoredEpisode(ctx, actor, id)
	if err != nil {
		return Episode{}, err
	}
	applyEpisode(&e, ne)
	e.UpdatedAt = core.Now()
	return svc.repo.UpdateEpisode(ctx, e)
}

func (svc *service) DeleteEpisode(ctx context.Context, actor user.User, id string) error {
	if _, err := svc.authoredEpisode(ctx, actor, id); err != nil {
		return err
	}
	return svc.repo.DeleteEpisode(ctx, id)
}

func (svc *service) Progress(ctx context.Context, userID, episodeID string) (Progress, error) {
	p, err := svc.repo.GetProgress(ctx, userID, episodeID)
	if err != nil {
		if errors.Cause(err) == ErrProgressNotFound {
			return Progress{UserID: userID, EpisodeID: episodeID}, nil
		}
		return Progress{}, err
	}
	return p, nil
}

// SaveProgress records the listening position. The first time an episode is completed, it is rewarded.
// A completed episode stays completed.
func (svc *service) SaveProgress(ctx context.Context, usr user.User, episodeID string, up UpdateProgress) (ProgressResult, error) {
	e, err := svc.Episode(ctx, usr, episodeID)
	if err != nil {
		return ProgressResult{}, err
	}
	prev, err := svc.Progress(ctx, usr.ID, episodeID)
	if err != nil {
		return ProgressResult{}, errors.Wrap(err, "getting progress")
	}

	pos := up.Position
	if e.Duration > 0 && pos > e.Duration {
		pos = e.Duration
	}
	completed := prev.Completed || up.Completed
	p, err := svc.repo.SaveProgress(ctx, Progress{
		UserID:    usr.ID,
		EpisodeID: episodeID,
		Position:  pos,
		Completed: completed,
		UpdatedAt: core.Now(),
	})
	if err != nil {
		return ProgressResult{}, errors.Wrap(err, "saving progress")
	}

	res := ProgressResult{Progress: p}
	if completed && !prev.Completed {
		rr, err := svc.rewarder.Reward(ctx, usr.ID, gamification.KindEpisodeListen, episodeID)
		if err != nil {
			svc.logger.Error(fmt.Sprintf("rewarding episode listen: %v", err), err, usr)
		} else {
			res.Reward = &rr
		}
	}
	return res, nil
}
