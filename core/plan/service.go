package plan

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/gamification"
	"github.com/trezcool/selah/core/user"
)

var (
	ErrNotFound           = core.NewNotFoundError("plan")
	ErrEnrollmentNotFound = core.NewNotFoundError("enrollment")
	ErrDayOutOfRange      = errors.New("day out of range")
	ErrNotPublished       = errors.New("plan is not published")
)

type (
	Repository interface {
		CreatePlan(ctx context.Context, p Plan, exec ...core.DBExecutor) (Plan, error)
		GetPlan(ctx context.Context, id string, exec ...core.DBExecutor) (Plan, error)
		// ListPlans lists published plans, plus the drafts of authorID when set.
		ListPlans(ctx context.Context, authorID string, page core.Pagination, exec ...core.DBExecutor) ([]Plan, error)
		UpdatePlan(ctx context.Context, p Plan, exec ...core.DBExecutor) (Plan, error)
		DeletePlan(ctx context.Context, id string, exec ...core.DBExecutor) error

		GetEnrollment(ctx context.Context, userID, planID string, exec ...core.DBExecutor) (Enrollment, error)
		CreateEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		UpdateEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		ListEnrollments(ctx context.Context, userID string, exec ...core.DBExecutor) ([]Enrollment, error)
	}

	// Rewarder grants XP for plan progress.
	Rewarder interface {
		Reward(ctx context.Context, userID string, kind gamification.Kind, ref string) (gamification.RewardResult, error)
	}

	DayResult struct {
		Enrollment Enrollment                  `json:"enrollment"`
		Rewards    []gamification.RewardResult `json:"rewards"`
	}

	Service interface {
		Create(ctx context.Context, author user.User, np NewPlan) (Plan, error)
		Get(ctx context.Context, id string) (Plan, error)
		List(ctx context.Context, viewer user.User, page core.Pagination) ([]Plan, error)
		SetPublished(ctx context.Context, actor user.User, id string, published bool) (Plan, error)
		Delete(ctx context.Context, actor user.User, id string) error
		Enroll(ctx context.Context, usr user.User, planID string, en Enroll) (Enrollment, error)
		MyPlans(ctx context.Context, usr user.User) ([]Progress, error)
		CompleteDay(ctx context.Context, usr user.User, planID string, day int) (DayResult, error)
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

func (svc *service) Create(ctx context.Context, author user.User, np NewPlan) (Plan, error) {
	now := core.Now()
	p := Plan{
		ID:          uuid.New().String(),
		Title:       core.CleanString(np.Title),
		Description: core.CleanString(np.Description),
		AuthorID:    author.ID,
		Published:   np.Published,
		Days:        make([]Day, 0, len(np.Days)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i, d := range np.Days {
		p.Days = append(p.Days, Day{Number: i + 1, Refs: d.Refs})
	}
	return svc.repo.CreatePlan(ctx, p)
}

func (svc *service) Get(ctx context.Context, id string) (Plan, error) {
	return svc.repo.GetPlan(ctx, id)
}

func (svc *service) List(ctx context.Context, viewer user.User, page core.Pagination) ([]Plan, error) {
	page.Clean()
	authorID := ""
	if viewer.IsTeacher() {
		authorID = viewer.ID
	}
	return svc.repo.ListPlans(ctx, authorID, page)
}

func canEdit(actor user.User, p Plan) bool {
	return actor.IsAdmin() || (actor.IsTeacher() && p.AuthorID == actor.ID)
}

func (svc *service) SetPublished(ctx context.Context, actor user.User, id string, published bool) (Plan, error) {
	p, err := svc.repo.GetPlan(ctx, id)
	if err != nil {
		return Plan{}, err
	}
	if !canEdit(actor, p) {
		return Plan{}, core.ErrForbidden
	}
	p.Published = published
	p.UpdatedAt = core.Now()
	return svc.repo.UpdatePlan(ctx, p)
}

func (svc *service) Delete(ctx context.Context, actor user.User, id string) error {
	p, err := svc.repo.GetPlan(ctx, id)
	if err != nil {
		return err
	}
	if !canEdit(actor, p) {
		return core.ErrForbidden
	}
	return svc.repo.DeletePlan(ctx, id)
}

// Enroll starts the plan for usr; enrolling twice returns the existing enrollment.
func (svc *service) Enroll(ctx context.Context, usr user.User, planID string, en Enroll) (Enrollment, error) {
	p, err := svc.repo.GetPlan(ctx, planID)
	if err != nil {
		return Enrollment{}, err
	}
	if !p.Published && p.AuthorID != usr.ID {
		return Enrollment{}, core.NewValidationError(ErrNotPublished)
	}

	e, err := svc.repo.GetEnrollment(ctx, usr.ID, planID)
	if err == nil {
		return e, nil
	}
	if errors.Cause(err) != ErrEnrollmentNotFound {
		return Enrollment{}, errors.Wrap(err, "getting enrollment")
	}

	now := core.Now()
	start := en.StartDate
	if start == "" {
		start = core.LocalDate(now, usr.Timezone)
	}
	return svc.repo.CreateEnrollment(ctx, Enrollment{
		ID:            uuid.New().String(),
		UserID:        usr.ID,
		PlanID:        planID,
		StartDate:     start,
		CompletedDays: []int{},
		CreatedAt:     now,
	})
}

func (svc *service) MyPlans(ctx context.Context, usr user.User) ([]Progress, error) {
	enrollments, err := svc.repo.ListEnrollments(ctx, usr.ID)
	if err != nil {
		return nil, errors.Wrap(err, "listing enrollments")
	}
	now := core.Now()
	res := make([]Progress, 0, len(enrollments))
	for _, e := range enrollments {
		p, err := svc.repo.GetPlan(ctx, e.PlanID)
		if err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return nil, errors.Wrap(err, "getting plan")
		}
		prog := Progress{
			Enrollment: e,
			Title:      p.Title,
			TotalDays:  p.Length(),
			Today:      Today(e, now, usr.Timezone),
		}
		if prog.Today > prog.TotalDays {
			prog.Today = prog.TotalDays
		}
		if prog.TotalDays > 0 {
			prog.Percent = float64(len(e.CompletedDays)) * 100 / float64(prog.TotalDays)
		}
		res = append(res, prog)
	}
	return res, nil
}

// CompleteDay marks `day` as read and rewards plan_day, plus plan_complete on the last remaining day.
// Completing a day twice changes nothing.
func (svc *service) CompleteDay(ctx context.Context, usr user.User, planID string, day int) (DayResult, error) {
	p, err := svc.repo.GetPlan(ctx, planID)
	if err != nil {
		return DayResult{}, err
	}
	if day < 1 || day > p.Length() {
		return DayResult{}, core.NewValidationError(ErrDayOutOfRange, core.FieldError{
			Field: "day",
			Error: fmt.Sprintf("day must be between 1 and %d", p.Length()),
		})
	}
	e, err := svc.repo.GetEnrollment(ctx, usr.ID, planID)
	if err != nil {
		return DayResult{}, err
	}

	res := DayResult{Rewards: []gamification.RewardResult{}}
	if e.IsCompleted(day) {
		res.Enrollment = e
		return res, nil
	}

	e.complete(day)
	finished := len(e.CompletedDays) == p.Length()
	if finished {
		e.CompletedAt = core.Now()
	}
	if e, err = svc.repo.UpdateEnrollment(ctx, e); err != nil {
		return DayResult{}, errors.Wrap(err, "updating enrollment")
	}
	res.Enrollment = e

	type reward struct {
		kind gamification.Kind
		ref  string
	}
	rewards := []reward{{gamification.KindPlanDay, planID + ":" + strconv.Itoa(day)}}
	if finished {
		rewards = append(rewards, reward{gamification.KindPlanComplete, planID})
	}
	for _, r := range rewards {
		rr, err := svc.rewarder.Reward(ctx, usr.ID, r.kind, r.ref)
		if err != nil {
			svc.logger.Error(fmt.Sprintf("rewarding %s: %v", r.kind, err), err, usr)
			continue
		}
		res.Rewards = append(res.Rewards, rr)
	}
	return res, nil
}
