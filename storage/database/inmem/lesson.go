package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/lesson"
)

type lessonRepository struct {
	db *lessonTables
}

var _ lesson.Repository = (*lessonRepository)(nil)

func NewLessonRepository(db *DB) lesson.Repository {
	return &lessonRepository{db: db.lesson}
}

func copyLesson(l lesson.Lesson) lesson.Lesson {
	sections := make([]lesson.Section, len(l.Sections))
	for i, s := range l.Sections {
		s.Refs = cloneStrings(s.Refs)
		sections[i] = s
	}
	l.Sections = sections
	l.Tags = cloneStrings(l.Tags)
	return l
}

func hasTag(l *lesson.Lesson, tag string) bool {
	for _, t := range l.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (repo *lessonRepository) CreateLesson(ctx context.Context, l lesson.Lesson, exec ...core.DBExecutor) (lesson.Lesson, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	l = copyLesson(l)
	repo.db.lessons[l.ID] = &l
	return copyLesson(l), nil
}

func (repo *lessonRepository) GetLesson(ctx context.Context, id string, exec ...core.DBExecutor) (lesson.Lesson, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if l, ok := repo.db.lessons[id]; ok {
		return copyLesson(*l), nil
	}
	return lesson.Lesson{}, lesson.ErrNotFound
}

func (repo *lessonRepository) UpdateLesson(ctx context.Context, l lesson.Lesson, exec ...core.DBExecutor) (lesson.Lesson, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.lessons[l.ID]; !ok {
		return lesson.Lesson{}, lesson.ErrNotFound
	}
	l = copyLesson(l)
	repo.db.lessons[l.ID] = &l
	return copyLesson(l), nil
}

func (repo *lessonRepository) DeleteLesson(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.lessons[id]; !ok {
		return lesson.ErrNotFound
	}
	delete(repo.db.lessons, id)
	for k, c := range repo.db.completions {
		if c.LessonID == id {
			delete(repo.db.completions, k)
		}
	}
	return nil
}

func (repo *lessonRepository) QueryLessons(ctx context.Context, filter lesson.QueryFilter, exec ...core.DBExecutor) ([]lesson.Lesson, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	res := make([]lesson.Lesson, 0)
	for _, l := range repo.db.lessons {
		visible := l.IsPublished() || (filter.Drafts != "" && l.AuthorID == filter.Drafts)
		if !visible {
			continue
		}
		if filter.Tag != "" && !hasTag(l, filter.Tag) {
			continue
		}
		if filter.AuthorID != "" && l.AuthorID != filter.AuthorID {
			continue
		}
		if !lesson.MatchSearch(*l, filter.Search) {
			continue
		}
		res = append(res, copyLesson(*l))
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	start, end := filter.Pagination.Window(len(res))
	return res[start:end], nil
}

func (repo *lessonRepository) GetCompletion(ctx context.Context, userID, lessonID string, exec ...core.DBExecutor) (lesson.Completion, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if c, ok := repo.db.completions[key(userID, lessonID)]; ok {
		return c, nil
	}
	return lesson.Completion{}, lesson.ErrCompletionMissing
}

func (repo *lessonRepository) CreateCompletion(ctx context.Context, c lesson.Completion, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	k := key(c.UserID, c.LessonID)
	if _, ok := repo.db.completions[k]; !ok {
		repo.db.completions[k] = c
	}
	return nil
}
