package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/plan"
)

type planRepository struct {
	db *planTables
}

var _ plan.Repository = (*planRepository)(nil)

func NewPlanRepository(db *DB) plan.Repository {
	return &planRepository{db: db.plan}
}

func copyPlan(p plan.Plan) plan.Plan {
	days := make([]plan.Day, len(p.Days))
	for i, d := range p.Days {
		days[i] = plan.Day{Number: d.Number, Refs: cloneStrings(d.Refs)}
	}
	p.Days = days
	return p
}

func copyEnrollment(e plan.Enrollment) plan.Enrollment {
	e.CompletedDays = append([]int{}, e.CompletedDays...)
	return e
}

func (repo *planRepository) CreatePlan(ctx context.Context, p plan.Plan, exec ...core.DBExecutor) (plan.Plan, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	p = copyPlan(p)
	repo.db.plans[p.ID] = &p
	return copyPlan(p), nil
}

func (repo *planRepository) GetPlan(ctx context.Context, id string, exec ...core.DBExecutor) (plan.Plan, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if p, ok := repo.db.plans[id]; ok {
		return copyPlan(*p), nil
	}
	return plan.Plan{}, plan.ErrNotFound
}

func (repo *planRepository) ListPlans(ctx context.Context, authorID string, page core.Pagination, exec ...core.DBExecutor) ([]plan.Plan, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	all := make([]plan.Plan, 0)
	for _, p := range repo.db.plans {
		if p.Published || (authorID != "" && p.AuthorID == authorID) {
			all = append(all, copyPlan(*p))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	start, end := page.Window(len(all))
	return all[start:end], nil
}

func (repo *planRepository) UpdatePlan(ctx context.Context, p plan.Plan, exec ...core.DBExecutor) (plan.Plan, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.plans[p.ID]; !ok {
		return plan.Plan{}, plan.ErrNotFound
	}
	p = copyPlan(p)
	repo.db.plans[p.ID] = &p
	return copyPlan(p), nil
}

func (repo *planRepository) DeletePlan(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.plans[id]; !ok {
		return plan.ErrNotFound
	}
	delete(repo.db.plans, id)
	for eid, e := range repo.db.enrollments {
		if e.PlanID == id {
			delete(repo.db.enrollments, eid)
		}
	}
	return nil
}

func (repo *planRepository) GetEnrollment(ctx context.Context, userID, planID string, exec ...core.DBExecutor) (plan.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	for _, e := range repo.db.enrollments {
		if e.UserID == userID && e.PlanID == planID {
			return copyEnrollment(*e), nil
		}
	}
	return plan.Enrollment{}, plan.ErrEnrollmentNotFound
}

func (repo *planRepository) CreateEnrollment(ctx context.Context, e plan.Enrollment, exec ...core.DBExecutor) (plan.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	e = copyEnrollment(e)
	repo.db.enrollments[e.ID] = &e
	return copyEnrollment(e), nil
}

func (repo *planRepository) UpdateEnrollment(ctx context.Context, e plan.Enrollment, exec ...core.DBExecutor) (plan.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.enrollments[e.ID]; !ok {
		return plan.Enrollment{}, plan.ErrEnrollmentNotFound
	}
	e = copyEnrollment(e)
	repo.db.enrollments[e.ID] = &e
	return copyEnrollment(e), nil
}

func (repo *planRepository) ListEnrollments(ctx context.Context, userID string, exec ...core.DBExecutor) ([]plan.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	res := make([]plan.Enrollment, 0)
	for _, e := range repo.db.enrollments {
		if e.UserID == userID {
			res = append(res, copyEnrollment(*e))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}
