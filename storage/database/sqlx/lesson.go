package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/lesson"
)

const lessonColumns = "id, author_id, title, summary, sections, tags, status, published_at, created_at, updated_at"

type lessonRow struct {
	ID          string         `db:"id"`
	AuthorID    null.String    `db:"author_id"`
	Title       string         `db:"title"`
	Summary     string         `db:"summary"`
	Sections    types.JSONText `db:"sections"`
	Tags        pq.StringArray `db:"tags"`
	Status      string         `db:"status"`
	PublishedAt null.Time      `db:"published_at"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

type lessonRepository struct {
	baseRepository
}

var _ lesson.Repository = (*lessonRepository)(nil)

func NewLessonRepository(exec core.DBExecutor) lesson.Repository {
	return &lessonRepository{baseRepository{exec: exec}}
}

func (repo lessonRepository) boil(l lesson.Lesson) (lessonRow, error) {
	sections := l.Sections
	if sections == nil {
		sections = []lesson.Section{}
	}
	raw, err := json.Marshal(sections)
	if err != nil {
		return lessonRow{}, errors.Wrap(err, "encoding lesson sections")
	}
	tags := l.Tags
	if tags == nil {
		tags = []string{}
	}
	return lessonRow{
		ID:          l.ID,
		AuthorID:    nullString(l.AuthorID),
		Title:       l.Title,
		Summary:     l.Summary,
		Sections:    raw,
		Tags:        tags,
		Status:      l.Status,
		PublishedAt: nullTime(l.PublishedAt),
		CreatedAt:   l.CreatedAt.UTC(),
		UpdatedAt:   l.UpdatedAt.UTC(),
	}, nil
}

func (repo lessonRepository) unboil(row lessonRow) (lesson.Lesson, error) {
	l := lesson.Lesson{
		ID:          row.ID,
		AuthorID:    row.AuthorID.String,
		Title:       row.Title,
		Summary:     row.Summary,
		Tags:        row.Tags,
		Status:      row.Status,
		PublishedAt: fromNullTime(row.PublishedAt),
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
	if l.Tags == nil {
		l.Tags = []string{}
	}
	if err := row.Sections.Unmarshal(&l.Sections); err != nil {
		return lesson.Lesson{}, errors.Wrap(err, "decoding lesson sections")
	}
	return l, nil
}

func (repo lessonRepository) CreateLesson(ctx context.Context, l lesson.Lesson, exec ...core.DBExecutor) (lesson.Lesson, error) {
	row, err := repo.boil(l)
	if err != nil {
		return lesson.Lesson{}, err
	}
	q := `INSERT INTO lessons (` + lessonColumns + `)
		VALUES (:id, :author_id, :title, :summary, :sections, :tags, :status, :published_at, :created_at, :updated_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, row); err != nil {
		return lesson.Lesson{}, errors.Wrap(err, "inserting lesson")
	}
	return repo.unboil(row)
}

func (repo lessonRepository) GetLesson(ctx context.Context, id string, exec ...core.DBExecutor) (lesson.Lesson, error) {
	if !isUUID(id) {
		return lesson.Lesson{}, lesson.ErrNotFound
	}
	exe := repo.getExec(exec)
	var row lessonRow
	if err := exe.GetContext(ctx, &row, exe.Rebind("SELECT "+lessonColumns+" FROM lessons WHERE id = ?"), id); err != nil {
		return lesson.Lesson{}, trapNoRowsErr(err, lesson.ErrNotFound, "finding lesson")
	}
	return repo.unboil(row)
}

func (repo lessonRepository) UpdateLesson(ctx context.Context, l lesson.Lesson, exec ...core.DBExecutor) (lesson.Lesson, error) {
	row, err := repo.boil(l)
	if err != nil {
		return lesson.Lesson{}, err
	}
	q := `UPDATE lessons SET title = :title, summary = :summary, sections = :sections, tags = :tags,
		status = :status, published_at = :published_at, updated_at = :updated_at WHERE id = :id`
	res, err := repo.getExec(exec).NamedExecContext(ctx, q, row)
	if err != nil {
		return lesson.Lesson{}, errors.Wrap(err, "updating lesson")
	}
	if err := rowsAffected(res, lesson.ErrNotFound, "updating lesson"); err != nil {
		return lesson.Lesson{}, err
	}
	return repo.unboil(row)
}

func (repo lessonRepository) DeleteLesson(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return lesson.ErrNotFound
	}
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM lessons WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	return rowsAffected(res, lesson.ErrNotFound, "deleting lesson")
}

func (repo lessonRepository) QueryLessons(ctx context.Context, filter lesson.QueryFilter, exec ...core.DBExecutor) ([]lesson.Lesson, error) {
	exe := repo.getExec(exec)

	var w where
	if filter.Drafts != "" && isUUID(filter.Drafts) {
		w.add("(status = ? OR author_id = ?)", lesson.StatusPublished, filter.Drafts)
	} else {
		w.add("status = ?", lesson.StatusPublished)
	}
	if filter.Tag != "" {
		w.add("? = ANY(tags)", filter.Tag)
	}
	if filter.AuthorID != "" {
		if !isUUID(filter.AuthorID) {
			return []lesson.Lesson{}, nil
		}
		w.add("author_id = ?", filter.AuthorID)
	}
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		w.add("(title ILIKE ? OR summary ILIKE ?)", val, val)
	}

	var rows []lessonRow
	q := exe.Rebind("SELECT " + lessonColumns + " FROM lessons" + w.String() + " ORDER BY created_at DESC, id" + limitOffset(filter.Pagination))
	if err := exe.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}
	res := make([]lesson.Lesson, 0, len(rows))
	for _, r := range rows {
		l, err := repo.unboil(r)
		if err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, nil
}

func (repo lessonRepository) GetCompletion(ctx context.Context, userID, lessonID string, exec ...core.DBExecutor) (lesson.Completion, error) {
	if !isUUID(lessonID) {
		return lesson.Completion{}, lesson.ErrCompletionMissing
	}
	exe := repo.getExec(exec)
	var row struct {
		UserID      string    `db:"user_id"`
		LessonID    string    `db:"lesson_id"`
		CompletedAt time.Time `db:"completed_at"`
	}
	q := exe.Rebind("SELECT user_id, lesson_id, completed_at FROM lesson_completions WHERE user_id = ? AND lesson_id = ?")
	if err := exe.GetContext(ctx, &row, q, userID, lessonID); err != nil {
		return lesson.Completion{}, trapNoRowsErr(err, lesson.ErrCompletionMissing, "finding completion")
	}
	return lesson.Completion{UserID: row.UserID, LessonID: row.LessonID, CompletedAt: row.CompletedAt.UTC()}, nil
}

func (repo lessonRepository) CreateCompletion(ctx context.Context, c lesson.Completion, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	q := exe.Rebind(`INSERT INTO lesson_completions (user_id, lesson_id, completed_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id, lesson_id) DO NOTHING`)
	if _, err := exe.ExecContext(ctx, q, c.UserID, c.LessonID, c.CompletedAt.UTC()); err != nil {
		return errors.Wrap(err, "inserting completion")
	}
	return nil
}
