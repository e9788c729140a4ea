package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/annotation"
)

type annotationRepository struct {
	db *annotationTables
}

var _ annotation.Repository = (*annotationRepository)(nil)

func NewAnnotationRepository(db *DB) annotation.Repository {
	return &annotationRepository{db: db.annotation}
}

func lessAnchor(a, b annotation.Anchor) bool {
	if a.Book != b.Book {
		return a.Book < b.Book
	}
	if a.Chapter != b.Chapter {
		return a.Chapter < b.Chapter
	}
	return a.VerseStart < b.VerseStart
}

func (repo *annotationRepository) CreateBookmark(ctx context.Context, b annotation.Bookmark, exec ...core.DBExecutor) (annotation.Bookmark, bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, bm := range repo.db.bookmarks {
		if bm.UserID == b.UserID && bm.Ref == b.Ref {
			return *bm, false, nil
		}
	}
	repo.db.bookmarks[b.ID] = &b
	return b, true, nil
}

func (repo *annotationRepository) ListBookmarks(ctx context.Context, userID string, filter annotation.Filter, exec ...core.DBExecutor) ([]annotation.Bookmark, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	res := make([]annotation.Bookmark, 0)
	for _, b := range repo.db.bookmarks {
		if b.UserID == userID && filter.Match(b.Anchor) {
			res = append(res, *b)
		}
	}
	sort.Slice(res, func(i, j int) bool { return lessAnchor(res[i].Anchor, res[j].Anchor) })
	return res, nil
}

func (repo *annotationRepository) DeleteBookmark(ctx context.Context, userID, id string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if b, ok := repo.db.bookmarks[id]; ok && b.UserID == userID {
		delete(repo.db.bookmarks, id)
		return nil
	}
	return annotation.ErrBookmarkNotFound
}

func (repo *annotationRepository) UpsertHighlight(ctx context.Context, h annotation.Highlight, exec ...core.DBExecutor) (annotation.Highlight, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, hl := range repo.db.highlights {
		if hl.UserID == h.UserID && hl.Ref == h.Ref {
			hl.Color = h.Color
			hl.UpdatedAt = h.UpdatedAt
			return *hl, nil
		}
	}
	repo.db.highlights[h.ID] = &h
	return h, nil
}

func (repo *annotationRepository) ListHighlights(ctx context.Context, userID string, filter annotation.Filter, exec ...core.DBExecutor) ([]annotation.Highlight, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	res := make([]annotation.Highlight, 0)
	for _, h := range repo.db.highlights {
		if h.UserID == userID && filter.Match(h.Anchor) {
			res = append(res, *h)
		}
	}
	sort.Slice(res, func(i, j int) bool { return lessAnchor(res[i].Anchor, res[j].Anchor) })
	return res, nil
}

func (repo *annotationRepository) DeleteHighlight(ctx context.Context, userID, id string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if h, ok := repo.db.highlights[id]; ok && h.UserID == userID {
		delete(repo.db.highlights, id)
		return nil
	}
	return annotation.ErrHighlightNotFound
}

func (repo *annotationRepository) CreateNote(ctx context.Context, n annotation.Note, exec ...core.DBExecutor) (annotation.Note, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.notes[n.ID] = &n
	return n, nil
}

func (repo *annotationRepository) GetNote(ctx context.Context, id string, exec ...core.DBExecutor) (annotation.Note, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if n, ok := repo.db.notes[id]; ok {
		return *n, nil
	}
	return annotation.Note{}, annotation.ErrNoteNotFound
}

func (repo *annotationRepository) UpdateNote(ctx context.Context, n annotation.Note, exec ...core.DBExecutor) (annotation.Note, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.notes[n.ID]; !ok {
		return annotation.Note{}, annotation.ErrNoteNotFound
	}
	repo.db.notes[n.ID] = &n
	return n, nil
}

func (repo *annotationRepository) DeleteNote(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.notes[id]; !ok {
		return annotation.ErrNoteNotFound
	}
	delete(repo.db.notes, id)
	return nil
}

func (repo *annotationRepository) ListNotes(ctx context.Context, userID string, filter annotation.Filter, exec ...core.DBExecutor) ([]annotation.Note, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	res := make([]annotation.Note, 0)
	for _, n := range repo.db.notes {
		if n.UserID == userID && filter.Match(n.Anchor) {
			res = append(res, *n)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Anchor == res[j].Anchor {
			return res[i].CreatedAt.Before(res[j].CreatedAt)
		}
		return lessAnchor(res[i].Anchor, res[j].Anchor)
	})
	return res, nil
}
