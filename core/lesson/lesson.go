package lesson

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/gamification"
	"github.com/trezcool/selah/core/user"
)

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

var (
	ErrNotFound          = core.NewNotFoundError("lesson")
	ErrCompletionMissing = core.NewNotFoundError("completion")
)

type Section struct {
	Heading string   `json:"heading" validate:"required,max=200"`
	Body    string   `json:"body" validate:"required"`
	Refs    []string `json:"refs" validate:"omitempty,dive,ref"`
}

type Lesson struct {
	ID          string    `json:"id"`
	AuthorID    string    `json:"author_id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Sections    []Section `json:"sections"`
	Tags        []string  `json:"tags"`
	Status      string    `json:"status"`
	PublishedAt time.Time `json:"published_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (l Lesson) IsPublished() bool { return l.Status == StatusPublished }

type Completion struct {
	UserID      string    `json:"-"`
	LessonID    string    `json:"lesson_id"`
	CompletedAt time.Time `json:"completed_at"`
}

type NewLesson struct {
	Title    string    `json:"title" validate:"required,max=200"`
	Summary  string    `json:"summary" validate:"max=2000"`
	Sections []Section `json:"sections" validate:"required,min=1,dive"`
	Tags     []string  `json:"tags" validate:"omitempty,max=10,dive,max=32"`
}

func (nl *NewLesson) Validate(validate *validator.Validate) error { return validate.Struct(nl) }

type QueryFilter struct {
	Tag      string `query:"tag"`
	AuthorID string `query:"author"`
	Search   string `query:"search"`
	// Drafts is set by the service: list the drafts of this author as well.
	Drafts string `query:"-"`
	core.Pagination
}

type (
	Repository interface {
		CreateLesson(ctx context.Context, l Lesson, exec ...core.DBExecutor) (Lesson, error)
		GetLesson(ctx context.Context, id string, exec ...core.DBExecutor) (Lesson, error)
		UpdateLesson(ctx context.Context, l Lesson, exec ...core.DBExecutor) (Lesson, error)
		DeleteLesson(ctx context.Context, id string, exec ...core.DBExecutor) error
		// QueryLessons lists published lessons (plus drafts of filter.Drafts) matching the filter, newest first.
		QueryLessons(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Lesson, error)

		GetCompletion(ctx context.Context, userID, lessonID string, exec ...core.DBExecutor) (Completion, error)
		CreateCompletion(ctx context.Context, c Completion, exec ...core.DBExecutor) error
	}

	Rewarder interface {
		Reward(ctx context.Context, userID string, kind gamification.Kind, ref string) (gamification.RewardResult, error)
	}

	CompletionResult struct {
		Completion Completion                 `json:"completion"`
		Reward     *gamification.RewardResult `json:"reward,omitempty"`
	}

	Service interface {
		Create(ctx context.Context, author user.User, nl NewLesson) (Lesson, error)
		Get(ctx context.Context, viewer user.User, id string) (Lesson, error)
		Query(ctx context.Context, viewer user.User, filter QueryFilter) ([]Lesson, error)
		Update(ctx context.Context, actor user.User, id string, nl NewLesson) (Lesson, error)
		Delete(ctx context.Context, actor user.User, id string) error
		Publish(ctx context.Context, actor user.User, id string) (Lesson, error)
		Unpublish(ctx context.Context, actor user.User, id string) (Lesson, error)
		Complete(ctx context.Context, usr user.User, id string) (CompletionResult, error)
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

func cleanTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	res := make([]string, 0, len(tags))
	for _, t := range tags {
		t = core.CleanString(t, true /* lower */)
		if t != "" && !seen[t] {
			seen[t] = true
			res = append(res, t)
		}
	}
	return res
}

func cleanSections(sections []Section) []Section {
	res := make([]Section, 0, len(sections))
	for _, s := range sections {
		if s.Refs == nil {
			s.Refs = []string{}
		}
		s.Heading = core.CleanString(s.Heading)
		res = append(res, s)
	}
	return res
}

func (svc *service) Create(ctx context.Context, author user.User, nl NewLesson) (Lesson, error) {
	if !author.IsTeacher() {
		return Lesson{}, core.ErrForbidden
	}
	now := core.Now()
	return svc.repo.CreateLesson(ctx, Lesson{
		ID:        uuid.New().String(),
		AuthorID:  author.ID,
		Title:     core.CleanString(nl.Title),
		Summary:   core.CleanString(nl.Summary),
		Sections:  cleanSections(nl.Sections),
		Tags:      cleanTags(nl.Tags),
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// Get returns a published lesson; drafts are visible to their author and admins only.
func (svc *service) Get(ctx context.Context, viewer user.User, id string) (Lesson, error) {
	l, err := svc.repo.GetLesson(ctx, id)
	if err != nil {
		return Lesson{}, err
	}
	if !l.IsPublished() && !canEdit(viewer, l) {
		return Lesson{}, ErrNotFound
	}
	return l, nil
}

func (svc *service) Query(ctx context.Context, viewer user.User, filter QueryFilter) ([]Lesson, error) {
	filter.Pagination.Clean()
	filter.Tag = core.CleanString(filter.Tag, true /* lower */)
	filter.Search = core.CleanString(filter.Search)
	filter.Drafts = ""
	if viewer.IsTeacher() {
		filter.Drafts = viewer.ID
	}
	return svc.repo.QueryLessons(ctx, filter)
}

func canEdit(actor user.User, l Lesson) bool {
	return actor.IsAdmin() || (actor.IsTeacher() && actor.ID == l.AuthorID)
}

func (svc *service) editable(ctx context.Context, actor user.User, id string) (Lesson, error) {
	l, err := svc.repo.GetLesson(ctx, id)
	if err != nil {
		return Lesson{}, err
	}
	if !canEdit(actor, l) {
		return Lesson{}, core.ErrForbidden
	}
	return l, nil
}

func (svc *service) Update(ctx context.Context, actor user.User, id string, nl NewLesson) (Lesson, error) {
	l, err := svc.editable(ctx, actor, id)
	if err != nil {
		return Lesson{}, err
	}
	l.Title = core.CleanString(nl.Title)
	l.Summary = core.CleanString(nl.Summary)
	l.Sections = cleanSections(nl.Sections)
	l.Tags = cleanTags(nl.Tags)
	l.UpdatedAt = core.Now()
	return svc.repo.UpdateLesson(ctx, l)
}

func (svc *service) Delete(ctx context.Context, actor user.User, id string) error {
	if _, err := svc.editable(ctx, actor, id); err != nil {
		return err
	}
	return svc.repo.DeleteLesson(ctx, id)
}

func (svc *service) Publish(ctx context.Context, actor user.User, id string) (Lesson, error) {
	l, err := svc.editable(ctx, actor, id)
	if err != nil {
		return Lesson{}, err
	}
	if l.IsPublished() {
		return l, nil
	}
	now := core.Now()
	l.Status = StatusPublished
	l.PublishedAt = now
	l.UpdatedAt = now
	return svc.repo.UpdateLesson(ctx, l)
}

func (svc *service) Unpublish(ctx context.Context, actor user.User, id string) (Lesson, error) {
	l, err := svc.editable(ctx, actor, id)
	if err != nil {
		return Lesson{}, err
	}
	l.Status = StatusDraft
	l.PublishedAt = time.Time{}
	l.UpdatedAt = core.Now()
	return svc.repo.UpdateLesson(ctx, l)
}

// Complete marks a published lesson as completed by usr and rewards it once.
func (svc *service) Complete(ctx context.Context, usr user.User, id string) (CompletionResult, error) {
	l, err := svc.repo.GetLesson(ctx, id)
	if err != nil {
		return CompletionResult{}, err
	}
	if !l.IsPublished() {
		return CompletionResult{}, ErrNotFound
	}

	c, err := svc.repo.GetCompletion(ctx, usr.ID, id)
	if err == nil {
		return CompletionResult{Completion: c}, nil
	}
	if errors.Cause(err) != ErrCompletionMissing {
		return CompletionResult{}, errors.Wrap(err, "getting completion")
	}

	c = Completion{UserID: usr.ID, LessonID: id, CompletedAt: core.Now()}
	if err := svc.repo.CreateCompletion(ctx, c); err != nil {
		return CompletionResult{}, errors.Wrap(err, "creating completion")
	}
	res := CompletionResult{Completion: c}
	rr, err := svc.rewarder.Reward(ctx, usr.ID, gamification.KindLessonComplete, id)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("rewarding lesson completion: %v", err), err, usr)
	} else {
		res.Reward = &rr
	}
	return res, nil
}

// MatchSearch reports whether the lesson title or summary contains the search term.
func MatchSearch(l Lesson, search string) bool {
	if search == "" {
		return true
	}
	s := strings.ToLower(search)
	return strings.Contains(strings.ToLower(l.Title), s) || strings.Contains(strings.ToLower(l.Summary), s)
}
