package annotation

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/bible"
)

var (
	ErrBookmarkNotFound  = core.NewNotFoundError("bookmark")
	ErrHighlightNotFound = core.NewNotFoundError("highlight")
	ErrNoteNotFound      = core.NewNotFoundError("note")
)

type (
	Repository interface {
		// CreateBookmark inserts b unless the user already bookmarked b.Ref,
		// in which case the existing row is returned with created == false.
		CreateBookmark(ctx context.Context, b Bookmark, exec ...core.DBExecutor) (bm Bookmark, created bool, err error)
		ListBookmarks(ctx context.Context, userID string, filter Filter, exec ...core.DBExecutor) ([]Bookmark, error)
		DeleteBookmark(ctx context.Context, userID, id string, exec ...core.DBExecutor) error

		// UpsertHighlight inserts h or updates the color of the user's highlight on h.Ref.
		UpsertHighlight(ctx context.Context, h Highlight, exec ...core.DBExecutor) (Highlight, error)
		ListHighlights(ctx context.Context, userID string, filter Filter, exec ...core.DBExecutor) ([]Highlight, error)
		DeleteHighlight(ctx context.Context, userID, id string, exec ...core.DBExecutor) error

		CreateNote(ctx context.Context, n Note, exec ...core.DBExecutor) (Note, error)
		GetNote(ctx context.Context, id string, exec ...core.DBExecutor) (Note, error)
		UpdateNote(ctx context.Context, n Note, exec ...core.DBExecutor) (Note, error)
		DeleteNote(ctx context.Context, id string, exec ...core.DBExecutor) error
		ListNotes(ctx context.Context, userID string, filter Filter, exec ...core.DBExecutor) ([]Note, error)
	}

	Service interface {
		AddBookmark(ctx context.Context, userID string, nb NewBookmark) (Bookmark, bool, error)
		Bookmarks(ctx context.Context, userID string, filter Filter) ([]Bookmark, error)
		RemoveBookmark(ctx context.Context, userID, id string) error

		Highlight(ctx context.Context, userID string, nh NewHighlight) (Highlight, error)
		Highlights(ctx context.Context, userID string, filter Filter) ([]Highlight, error)
		RemoveHighlight(ctx context.Context, userID, id string) error

		CreateNote(ctx context.Context, userID string, nn NewNote) (Note, error)
		GetNote(ctx context.Context, userID, id string) (Note, error)
		UpdateNote(ctx context.Context, userID, id string, un UpdateNote) (Note, error)
		DeleteNote(ctx context.Context, userID, id string) error
		Notes(ctx context.Context, userID string, filter Filter) ([]Note, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func parseRef(ref string) (Anchor, error) {
	r, err := bible.ParseReference(ref)
	if err != nil {
		return Anchor{}, core.NewValidationError(err, core.FieldError{Field: "ref", Error: err.Error()})
	}
	return anchorFrom(r), nil
}

func cleanFilter(f Filter) Filter {
	f.Book = strings.ToUpper(core.CleanString(f.Book))
	if f.Chapter < 0 {
		f.Chapter = 0
	}
	return f
}

func (svc *service) AddBookmark(ctx context.Context, userID string, nb NewBookmark) (Bookmark, bool, error) {
	anchor, err := parseRef(nb.Ref)
	if err != nil {
		return Bookmark{}, false, err
	}
	b := Bookmark{
		ID:        uuid.New().String(),
		UserID:    userID,
		Anchor:    anchor,
		CreatedAt: core.Now(),
	}
	bm, created, err := svc.repo.CreateBookmark(ctx, b)
	if err != nil {
		return Bookmark{}, false, errors.Wrap(err, "creating bookmark")
	}
	return bm, created, nil
}

func (svc *service) Bookmarks(ctx context.Context, userID string, filter Filter) ([]Bookmark, error) {
	return svc.repo.ListBookmarks(ctx, userID, cleanFilter(filter))
}

func (svc *service) RemoveBookmark(ctx context.Context, userID, id string) error {
	return svc.repo.DeleteBookmark(ctx, userID, id)
}

func (svc *service) Highlight(ctx context.Context, userID string, nh NewHighlight) (Highlight, error) {
	anchor, err := parseRef(nh.Ref)
	if err != nil {
		return Highlight{}, err
	}
	now := core.Now()
	h := Highlight{
		ID:        uuid.New().String(),
		UserID:    userID,
		Anchor:    anchor,
		Color:     strings.ToLower(nh.Color),
		CreatedAt: now,
		UpdatedAt: now,
	}
	h, err = svc.repo.UpsertHighlight(ctx, h)
	if err != nil {
		return Highlight{}, errors.Wrap(err, "upserting highlight")
	}
	return h, nil
}

func (svc *service) Highlights(ctx context.Context, userID string, filter Filter) ([]Highlight, error) {
	return svc.repo.ListHighlights(ctx, userID, cleanFilter(filter))
}

func (svc *service) RemoveHighlight(ctx context.Context, userID, id string) error {
	return svc.repo.DeleteHighlight(ctx, userID, id)
}

func (svc *service) CreateNote(ctx context.Context, userID string, nn NewNote) (Note, error) {
	anchor, err := parseRef(nn.Ref)
	if err != nil {
		return Note{}, err
	}
	now := core.Now()
	n := Note{
		ID:        uuid.New().String(),
		UserID:    userID,
		Anchor:    anchor,
		Body:      core.CleanString(nn.Body),
		Private:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if nn.Private != nil {
		n.Private = *nn.Private
	}
	return svc.repo.CreateNote(ctx, n)
}

// GetNote returns the user's note; notes of other users are reported as not found.
func (svc *service) GetNote(ctx context.Context, userID, id string) (Note, error) {
	n, err := svc.repo.GetNote(ctx, id)
	if err != nil {
		return Note{}, err
	}
	if n.UserID != userID {
		return Note{}, ErrNoteNotFound
	}
	return n, nil
}

func (svc *service) UpdateNote(ctx context.Context, userID, id string, un UpdateNote) (Note, error) {
	n, err := svc.GetNote(ctx, userID, id)
	if err != nil {
		return Note{}, err
	}
	n.Body = core.CleanString(un.Body)
	if un.Private != nil {
		n.Private = *un.Private
	}
	n.UpdatedAt = core.Now()
	return svc.repo.UpdateNote(ctx, n)
}

func (svc *service) DeleteNote(ctx context.Context, userID, id string) error {
	if _, err := svc.GetNote(ctx, userID, id); err != nil {
		return err
	}
	return svc.repo.DeleteNote(ctx, id)
}

func (svc *service) Notes(ctx context.Context, userID string, filter Filter) ([]Note, error) {
	return svc.repo.ListNotes(ctx, userID, cleanFilter(filter))
}
