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
	"github.com/trezcool/selah/core/plan"
)

const (
	planColumns       = "id, title, description, author_id, published, days, created_at, updated_at"
	enrollmentColumns = "id, user_id, plan_id, start_date, completed_days, completed_at, created_at"
)

type planRow struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	AuthorID    null.String    `db:"author_id"`
	Published   bool           `db:"published"`
	Days        types.JSONText `db:"days"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

type enrollmentRow struct {
	ID            string        `db:"id"`
	UserID        string        `db:"user_id"`
	PlanID        string        `db:"plan_id"`
	StartDate     string        `db:"start_date"`
	CompletedDays pq.Int64Array `db:"completed_days"`
	CompletedAt   null.Time     `db:"completed_at"`
	CreatedAt     time.Time     `db:"created_at"`
}

type planRepository struct {
	baseRepository
}

var _ plan.Repository = (*planRepository)(nil)

func NewPlanRepository(exec core.DBExecutor) plan.Repository {
	return &planRepository{baseRepository{exec: exec}}
}

func (repo planRepository) boil(p plan.Plan) (planRow, error) {
	days := p.Days
	if days == nil {
		days = []plan.Day{}
	}
	raw, err := json.Marshal(days)
	if err != nil {
		return planRow{}, errors.Wrap(err, "encoding plan days")
	}
	return planRow{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		AuthorID:    nullString(p.AuthorID),
		Published:   p.Published,
		Days:        raw,
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	}, nil
}

func (repo planRepository) unboil(row planRow) (plan.Plan, error) {
	p := plan.Plan{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		AuthorID:    row.AuthorID.String,
		Published:   row.Published,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
	if err := row.Days.Unmarshal(&p.Days); err != nil {
		return plan.Plan{}, errors.Wrap(err, "decoding plan days")
	}
	return p, nil
}

func (repo planRepository) boilEnrollment(e plan.Enrollment) enrollmentRow {
	days := make(pq.Int64Array, 0, len(e.CompletedDays))
	for _, d := range e.CompletedDays {
		days = append(days, int64(d))
	}
	return enrollmentRow{
		ID:            e.ID,
		UserID:        e.UserID,
		PlanID:        e.PlanID,
		StartDate:     e.StartDate,
		CompletedDays: days,
		CompletedAt:   nullTime(e.CompletedAt),
		CreatedAt:     e.CreatedAt.UTC(),
	}
}

func (repo planRepository) unboilEnrollment(row enrollmentRow) plan.Enrollment {
	days := make([]int, 0, len(row.CompletedDays))
	for _, d := range row.CompletedDays {
		days = append(days, int(d))
	}
	return plan.Enrollment{
		ID:            row.ID,
		UserID:        row.UserID,
		PlanID:        row.PlanID,
		StartDate:     row.StartDate,
		CompletedDays: days,
		CompletedAt:   fromNullTime(row.CompletedAt),
		CreatedAt:     row.CreatedAt.UTC(),
	}
}

func (repo planRepository) CreatePlan(ctx context.Context, p plan.Plan, exec ...core.DBExecutor) (plan.Plan, error) {
	row, err := repo.boil(p)
	if err != nil {
		return plan.Plan{}, err
	}
	q := `INSERT INTO plans (` + planColumns + `)
		VALUES (:id, :title, :description, :author_id, :published, :days, :created_at, :updated_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, row); err != nil {
		return plan.Plan{}, errors.Wrap(err, "inserting plan")
	}
	return repo.unboil(row)
}

func (repo planRepository) GetPlan(ctx context.Context, id string, exec ...core.DBExecutor) (plan.Plan, error) {
	if !isUUID(id) {
		return plan.Plan{}, plan.ErrNotFound
	}
	exe := repo.getExec(exec)
	var row planRow
	if err := exe.GetContext(ctx, &row, exe.Rebind("SELECT "+planColumns+" FROM plans WHERE id = ?"), id); err != nil {
		return plan.Plan{}, trapNoRowsErr(err, plan.ErrNotFound, "finding plan")
	}
	return repo.unboil(row)
}

func (repo planRepository) ListPlans(ctx context.Context, authorID string, page core.Pagination, exec ...core.DBExecutor) ([]plan.Plan, error) {
	exe := repo.getExec(exec)
	var w where
	if authorID != "" && isUUID(authorID) {
		w.add("(published OR author_id = ?)", authorID)
	} else {
		w.add("published")
	}

	var rows []planRow
	q := exe.Rebind("SELECT " + planColumns + " FROM plans" + w.String() + " ORDER BY created_at DESC, id" + limitOffset(page))
	if err := exe.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "listing plans")
	}
	plans := make([]plan.Plan, 0, len(rows))
	for _, r := range rows {
		p, err := repo.unboil(r)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, nil
}

func (repo planRepository) UpdatePlan(ctx context.Context, p plan.Plan, exec ...core.DBExecutor) (plan.Plan, error) {
	row, err := repo.boil(p)
	if err != nil {
		return plan.Plan{}, err
	}
	q := `UPDATE plans SET title = :title, description = :description, published = :published,
		days = :days, updated_at = :updated_at WHERE id = :id`
	res, err := repo.getExec(exec).NamedExecContext(ctx, q, row)
	if err != nil {
		return plan.Plan{}, errors.Wrap(err, "updating plan")
	}
	if err := rowsAffected(res, plan.ErrNotFound, "updating plan"); err != nil {
		return plan.Plan{}, err
	}
	return repo.unboil(row)
}

// DeletePlan cascades to enrollments.
func (repo planRepository) DeletePlan(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return plan.ErrNotFound
	}
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM plans WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting plan")
	}
	return rowsAffected(res, plan.ErrNotFound, "deleting plan")
}

func (repo planRepository) GetEnrollment(ctx context.Context, userID, planID string, exec ...core.DBExecutor) (plan.Enrollment, error) {
	if !isUUID(planID) {
		return plan.Enrollment{}, plan.ErrEnrollmentNotFound
	}
	exe := repo.getExec(exec)
	var row enrollmentRow
	q := exe.Rebind("SELECT " + enrollmentColumns + " FROM plan_enrollments WHERE user_id = ? AND plan_id = ?")
	if err := exe.GetContext(ctx, &row, q, userID, planID); err != nil {
		return plan.Enrollment{}, trapNoRowsErr(err, plan.ErrEnrollmentNotFound, "finding enrollment")
	}
	return repo.unboilEnrollment(row), nil
}

func (repo planRepository) CreateEnrollment(ctx context.Context, e plan.Enrollment, exec ...core.DBExecutor) (plan.Enrollment, error) {
	row := repo.boilEnrollment(e)
	q := `INSERT INTO plan_enrollments (` + enrollmentColumns + `)
		VALUES (:id, :user_id, :plan_id, :start_date, :completed_days, :completed_at, :created_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, row); err != nil {
		return plan.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return repo.unboilEnrollment(row), nil
}

func (repo planRepository) UpdateEnrollment(ctx context.Context, e plan.Enrollment, exec ...core.DBExecutor) (plan.Enrollment, error) {
	row := repo.boilEnrollment(e)
	q := `UPDATE plan_enrollments SET start_date = :start_date, completed_days = :completed_days,
		completed_at = :completed_at WHERE id = :id`
	res, err := repo.getExec(exec).NamedExecContext(ctx, q, row)
	if err != nil {
		return plan.Enrollment{}, errors.Wrap(err, "updating enrollment")
	}
	if err := rowsAffected(res, plan.ErrEnrollmentNotFound, "updating enrollment"); err != nil {
		return plan.Enrollment{}, err
	}
	return repo.unboilEnrollment(row), nil
}

func (repo planRepository) ListEnrollments(ctx context.Context, userID string, exec ...core.DBExecutor) ([]plan.Enrollment, error) {
	exe := repo.getExec(exec)
	var rows []enrollmentRow
	q := exe.Rebind("SELECT " + enrollmentColumns + " FROM plan_enrollments WHERE user_id = ? ORDER BY created_at DESC")
	if err := exe.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "listing enrollments")
	}
	res := make([]plan.Enrollment, 0, len(rows))
	for _, r := range rows {
		res = append(res, repo.unboilEnrollment(r))
	}
	return res, nil
}
