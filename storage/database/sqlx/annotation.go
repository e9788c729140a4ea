package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/annotation"
)

const anchorColumns = "ref, book, chapter, verse_start, verse_end"

type annotationRepository struct {
	baseRepository
}

var _ annotation.Repository = (*annotationRepository)(nil)

func NewAnnotationRepository(exec core.DBExecutor) annotation.Repository {
	return &annotationRepository{baseRepository{exec: exec}}
}

func anchorWhere(userID string, filter annotation.Filter) *where {
	w := &where{}
	w.add("user_id = ?", userID)
	if filter.Book != "" {
		w.add("book = ?", filter.Book)
	}
	if filter.Chapter > 0 {
		w.add("chapter = ?", filter.Chapter)
	}
	return w
}

func utcBookmarks(res []annotation.Bookmark) {
	for i := range res {
		res[i].CreatedAt = res[i].CreatedAt.UTC()
	}
}

func (repo annotationRepository) CreateBookmark(ctx context.Context, b annotation.Bookmark, exec ...core.DBExecutor) (annotation.Bookmark, bool, error) {
	exe := repo.getExec(exec)
	q := `INSERT INTO bookmarks (id, user_id, ` + anchorColumns + `, created_at)
		VALUES (:id, :user_id, :ref, :book, :chapter, :verse_start, :verse_end, :created_at)
		ON CONFLICT (user_id, ref) DO NOTHING`
	res, err := exe.NamedExecContext(ctx, q, b)
	if err != nil {
		return annotation.Bookmark{}, false, errors.Wrap(err, "inserting bookmark")
	}
	if n, err := res.RowsAffected(); err != nil {
		return annotation.Bookmark{}, false, errors.Wrap(err, "inserting bookmark")
	} else if n == 1 {
		return b, true, nil
	}

	var existing annotation.Bookmark
	sel := exe.Rebind("SELECT id, user_id, " + anchorColumns + ", created_at FROM bookmarks WHERE user_id = ? AND ref = ?")
	if err := exe.GetContext(ctx, &existing, sel, b.UserID, b.Ref); err != nil {
		return annotation.Bookmark{}, false, trapNoRowsErr(err, annotation.ErrBookmarkNotFound, "finding bookmark")
	}
	existing.CreatedAt = existing.CreatedAt.UTC()
	return existing, false, nil
}

func (repo annotationRepository) ListBookmarks(ctx context.Context, userID string, filter annotation.Filter, exec ...core.DBExecutor) ([]annotation.Bookmark, error) {
	exe := repo.getExec(exec)
	w := anchorWhere(userID, filter)
	res := make([]annotation.Bookmark, 0)
	q := exe.Rebind("SELECT id, user_id, " + anchorColumns + ", created_at FROM bookmarks" + w.String() +
		" ORDER BY book, chapter, verse_start")
	if err := exe.SelectContext(ctx, &res, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "listing bookmarks")
	}
	utcBookmarks(res)
	return res, nil
}

func (repo annotationRepository) DeleteBookmark(ctx context.Context, userID, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return annotation.ErrBookmarkNotFound
	}
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM bookmarks WHERE id = ? AND user_id = ?"), id, userID)
	if err != nil {
		return errors.Wrap(err, "deleting bookmark")
	}
	return rowsAffected(res, annotation.ErrBookmarkNotFound, "deleting bookmark")
}

func (repo annotationRepository) UpsertHighlight(ctx context.Context, h annotation.Highlight, exec ...core.DBExecutor) (annotation.Highlight, error) {
	exe := repo.getExec(exec)
	q := `INSERT INTO highlights (id, user_id, ` + anchorColumns + `, color, created_at, updated_at)
		VALUES (:id, :user_id, :ref, :book, :chapter, :verse_start, :verse_end, :color, :created_at, :updated_at)
		ON CONFLICT (user_id, ref) DO UPDATE SET color = EXCLUDED.color, updated_at = EXCLUDED.updated_at`
	if _, err := exe.NamedExecContext(ctx, q, h); err != nil {
		return annotation.Highlight{}, errors.Wrap(err, "upserting highlight")
	}

	var saved annotation.Highlight
	sel := exe.Rebind("SELECT id, user_id, " + anchorColumns + ", color, created_at, updated_at FROM highlights WHERE user_id = ? AND ref = ?")
	if err := exe.GetContext(ctx, &saved, sel, h.UserID, h.Ref); err != nil {
		return annotation.Highlight{}, trapNoRowsErr(err, annotation.ErrHighlightNotFound, "finding highlight")
	}
	saved.CreatedAt, saved.UpdatedAt = saved.CreatedAt.UTC(), saved.UpdatedAt.UTC()
	return saved, nil
}

func (repo annotationRepository) ListHighlights(ctx context.Context, userID string, filter annotation.Filter, exec ...core.DBExecutor) ([]annotation.Highlight, error) {
	exe := repo.getExec(exec)
	w := anchorWhere(userID, filter)
	res := make([]annotation.Highlight, 0)
	q := exe.Rebind("SELECT id, user_id, " + anchorColumns + ", color, created_at, updated_at FROM highlights" + w.String() +
		" ORDER BY book, chapter, verse_start")
	if err := exe.SelectContext(ctx, &res, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "listing highlights")
	}
	for i := range res {
		res[i].CreatedAt, res[i].UpdatedAt = res[i].CreatedAt.UTC(), res[i].UpdatedAt.UTC()
	}
	return res, nil
}

func (repo annotationRepository) DeleteHighlight(ctx context.Context, userID, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return annotation.ErrHighlightNotFound
	}
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM highlights WHERE id = ? AND user_id = ?"), id, userID)
	if err != nil {
		return errors.Wrap(err, "deleting highlight")
	}
	return rowsAffected(res, annotation.ErrHighlightNotFound, "deleting highlight")
}

const noteColumns = "id, user_id, " + anchorColumns + ", body, private, created_at, updated_at"

func utcNote(n *annotation.Note) {
	n.CreatedAt, n.UpdatedAt = n.CreatedAt.UTC(), n.UpdatedAt.UTC()
}

func (repo annotationRepository) CreateNote(ctx context.Context, n annotation.Note, exec ...core.DBExecutor) (annotation.Note, error) {
	q := `INSERT INTO notes (` + noteColumns + `)
		VALUES (:id, :user_id, :ref, :book, :chapter, :verse_start, :verse_end, :body, :private, :created_at, :updated_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, n); err != nil {
		return annotation.Note{}, errors.Wrap(err, "inserting note")
	}
	return n, nil
}

func (repo annotationRepository) GetNote(ctx context.Context, id string, exec ...core.DBExecutor) (annotation.Note, error) {
	if !isUUID(id) {
		return annotation.Note{}, annotation.ErrNoteNotFound
	}
	exe := repo.getExec(exec)
	var n annotation.Note
	if err := exe.GetContext(ctx, &n, exe.Rebind("SELECT "+noteColumns+" FROM notes WHERE id = ?"), id); err != nil {
		return annotation.Note{}, trapNoRowsErr(err, annotation.ErrNoteNotFound, "finding note")
	}
	utcNote(&n)
	return n, nil
}

func (repo annotationRepository) UpdateNote(ctx context.Context, n annotation.Note, exec ...core.DBExecutor) (annotation.Note, error) {
	q := "UPDATE notes SET body = :body, private = :private, updated_at = :updated_at WHERE id = :id"
	res, err := repo.getExec(exec).NamedExecContext(ctx, q, n)
	if err != nil {
		return annotation.Note{}, errors.Wrap(err, "updating note")
	}
	if err := rowsAffected(res, annotation.ErrNoteNotFound, "updating note"); err != nil {
		return annotation.Note{}, err
	}
	return n, nil
}

func (repo annotationRepository) DeleteNote(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return annotation.ErrNoteNotFound
	}
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM notes WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting note")
	}
	return rowsAffected(res, annotation.ErrNoteNotFound, "deleting note")
}

func (repo annotationRepository) ListNotes(ctx context.Context, userID string, filter annotation.Filter, exec ...core.DBExecutor) ([]annotation.Note, error) {
	exe := repo.getExec(exec)
	w := anchorWhere(userID, filter)
	res := make([]annotation.Note, 0)
	q := exe.Rebind("SELECT " + noteColumns + " FROM notes" + w.String() +
		" ORDER BY book, chapter, verse_start, verse_end, created_at")
	if err := exe.SelectContext(ctx, &res, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "listing notes")
	}
	for i := range res {
		utcNote(&res[i])
	}
	return res, nil
}
