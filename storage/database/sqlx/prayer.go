package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/prayer"
)

const prayerColumns = "id, user_id, group_id, title, body, private, answered_at, created_at, updated_at"

type prayerRow struct {
	ID         string      `db:"id"`
	UserID     string      `db:"user_id"`
	GroupID    null.String `db:"group_id"`
	Title      string      `db:"title"`
	Body       string      `db:"body"`
	Private    bool        `db:"private"`
	AnsweredAt null.Time   `db:"answered_at"`
	CreatedAt  time.Time   `db:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at"`
}

type prayerRepository struct {
	baseRepository
}

var _ prayer.Repository = (*prayerRepository)(nil)

func NewPrayerRepository(exec core.DBExecutor) prayer.Repository {
	return &prayerRepository{baseRepository{exec: exec}}
}

func (repo prayerRepository) boil(p prayer.Prayer) prayerRow {
	return prayerRow{
		ID:         p.ID,
		UserID:     p.UserID,
		GroupID:    nullString(p.GroupID),
		Title:      p.Title,
		Body:       p.Body,
		Private:    p.Private,
		AnsweredAt: nullTime(p.AnsweredAt),
		CreatedAt:  p.CreatedAt.UTC(),
		UpdatedAt:  p.UpdatedAt.UTC(),
	}
}

func (repo prayerRepository) unboil(row prayerRow) prayer.Prayer {
	return prayer.Prayer{
		ID:         row.ID,
		UserID:     row.UserID,
		GroupID:    row.GroupID.String,
		Title:      row.Title,
		Body:       row.Body,
		Private:    row.Private,
		AnsweredAt: fromNullTime(row.AnsweredAt),
		CreatedAt:  row.CreatedAt.UTC(),
		UpdatedAt:  row.UpdatedAt.UTC(),
	}
}

func (repo prayerRepository) CreatePrayer(ctx context.Context, p prayer.Prayer, exec ...core.DBExecutor) (prayer.Prayer, error) {
	q := `INSERT INTO prayers (` + prayerColumns + `)
		VALUES (:id, :user_id, :group_id, :title, :body, :private, :answered_at, :created_at, :updated_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, repo.boil(p)); err != nil {
		return prayer.Prayer{}, errors.Wrap(err, "inserting prayer")
	}
	return p, nil
}

func (repo prayerRepository) GetPrayer(ctx context.Context, id string, exec ...core.DBExecutor) (prayer.Prayer, error) {
	if !isUUID(id) {
		return prayer.Prayer{}, prayer.ErrNotFound
	}
	exe := repo.getExec(exec)
	var row prayerRow
	if err := exe.GetContext(ctx, &row, exe.Rebind("SELECT "+prayerColumns+" FROM prayers WHERE id = ?"), id); err != nil {
		return prayer.Prayer{}, trapNoRowsErr(err, prayer.ErrNotFound, "finding prayer")
	}
	return repo.unboil(row), nil
}

func (repo prayerRepository) UpdatePrayer(ctx context.Context, p prayer.Prayer, exec ...core.DBExecutor) (prayer.Prayer, error) {
	q := `UPDATE prayers SET title = :title, body = :body, private = :private, answered_at = :answered_at,
		updated_at = :updated_at WHERE id = :id`
	res, err := repo.getExec(exec).NamedExecContext(ctx, q, repo.boil(p))
	if err != nil {
		return prayer.Prayer{}, errors.Wrap(err, "updating prayer")
	}
	if err := rowsAffected(res, prayer.ErrNotFound, "updating prayer"); err != nil {
		return prayer.Prayer{}, err
	}
	return p, nil
}

func (repo prayerRepository) DeletePrayer(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return prayer.ErrNotFound
	}
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM prayers WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting prayer")
	}
	return rowsAffected(res, prayer.ErrNotFound, "deleting prayer")
}

func (repo prayerRepository) list(ctx context.Context, w *where, page core.Pagination, exec []core.DBExecutor) ([]prayer.Prayer, error) {
	exe := repo.getExec(exec)
	var rows []prayerRow
	q := exe.Rebind("SELECT " + prayerColumns + " FROM prayers" + w.String() + " ORDER BY created_at DESC, id" + limitOffset(page))
	if err := exe.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "listing prayers")
	}
	res := make([]prayer.Prayer, 0, len(rows))
	for _, r := range rows {
		res = append(res, repo.unboil(r))
	}
	return res, nil
}

func (repo prayerRepository) ListPrayers(ctx context.Context, userID string, page core.Pagination, exec ...core.DBExecutor) ([]prayer.Prayer, error) {
	var w where
	w.add("user_id = ?", userID)
	return repo.list(ctx, &w, page, exec)
}

func (repo prayerRepository) ListGroupPrayers(ctx context.Context, groupID string, page core.Pagination, exec ...core.DBExecutor) ([]prayer.Prayer, error) {
	if !isUUID(groupID) {
		return []prayer.Prayer{}, nil
	}
	var w where
	w.add("group_id = ?", groupID)
	w.add("NOT private")
	return repo.list(ctx, &w, page, exec)
}
