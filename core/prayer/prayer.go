package prayer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/gamification"
)

var ErrNotFound = core.NewNotFoundError("prayer")

type Prayer struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	GroupID    string    `json:"group_id,omitempty"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Private    bool      `json:"private"`
	AnsweredAt time.Time `json:"answered_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (p Prayer) IsAnswered() bool { return !p.AnsweredAt.IsZero() }

type NewPrayer struct {
	Title   string `json:"title" validate:"required,max=200"`
	Body    string `json:"body" validate:"max=5000"`
	GroupID string `json:"group_id" validate:"omitempty,uuid"`
	Private *bool  `json:"private"`
}

func (np *NewPrayer) Validate(validate *validator.Validate) error { return validate.Struct(np) }

type UpdatePrayer struct {
	Title   string `json:"title" validate:"required,max=200"`
	Body    string `json:"body" validate:"max=5000"`
	Private *bool  `json:"private"`
}

func (up *UpdatePrayer) Validate(validate *validator.Validate) error { return validate.Struct(up) }

type (
	Repository interface {
		CreatePrayer(ctx context.Context, p Prayer, exec ...core.DBExecutor) (Prayer, error)
		GetPrayer(ctx context.Context, id string, exec ...core.DBExecutor) (Prayer, error)
		UpdatePrayer(ctx context.Context, p Prayer, exec ...core.DBExecutor) (Prayer, error)
		DeletePrayer(ctx context.Context, id string, exec ...core.DBExecutor) error
		// ListPrayers lists the user's prayers, most recent first.
		ListPrayers(ctx context.Context, userID string, page core.Pagination, exec ...core.DBExecutor) ([]Prayer, error)
		// ListGroupPrayers lists the non-private prayers shared with a group.
		ListGroupPrayers(ctx context.Context, groupID string, page core.Pagination, exec ...core.DBExecutor) ([]Prayer, error)
	}

	// MembershipChecker tells whether a user belongs to a group.
	MembershipChecker interface {
		IsMember(ctx context.Context, groupID, userID string) (bool, error)
	}

	Rewarder interface {
		Reward(ctx context.Context, userID string, kind gamification.Kind, ref string) (gamification.RewardResult, error)
	}

	Service interface {
		Create(ctx context.Context, userID string, np NewPrayer) (Prayer, error)
		Get(ctx context.Context, userID, id string) (Prayer, error)
		Mine(ctx context.Context, userID string, page core.Pagination) ([]Prayer, error)
		ForGroup(ctx context.Context, userID, groupID string, page core.Pagination) ([]Prayer, error)
		Update(ctx context.Context, userID, id string, up UpdatePrayer) (Prayer, error)
		MarkAnswered(ctx context.Context, userID, id string, answered bool) (Prayer, error)
		Delete(ctx context.Context, userID, id string) error
	}

	service struct {
		repo     Repository
		groups   MembershipChecker
		rewarder Rewarder
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, groups MembershipChecker, rewarder Rewarder, logger core.Logger) Service {
	return &service{
		repo:     repo,
		groups:   groups,
		rewarder: rewarder,
		logger:   logger,
	}
}

func (svc *service) checkMember(ctx context.Context, userID, groupID string) error {
	ok, err := svc.groups.IsMember(ctx, groupID, userID)
	if err != nil {
		return errors.Wrap(err, "checking membership")
	}
	if !ok {
		return core.ErrForbidden
	}
	return nil
}

// Create records a prayer and rewards it. A prayer shared with a group is public by default.
func (svc *service) Create(ctx context.Context, userID string, np NewPrayer) (Prayer, error) {
	if np.GroupID != "" {
		if err := svc.checkMember(ctx, userID, np.GroupID); err != nil {
			return Prayer{}, err
		}
	}

	now := core.Now()
	p := Prayer{
		ID:        uuid.New().String(),
		UserID:    userID,
		GroupID:   np.GroupID,
		Title:     core.CleanString(np.Title),
		Body:      core.CleanString(np.Body),
		Private:   np.GroupID == "",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if np.Private != nil {
		p.Private = *np.Private
	}
	p, err := svc.repo.CreatePrayer(ctx, p)
	if err != nil {
		return Prayer{}, errors.Wrap(err, "creating prayer")
	}

	if _, err := svc.rewarder.Reward(ctx, userID, gamification.KindPrayer, p.ID); err != nil {
		svc.logger.Error(fmt.Sprintf("rewarding prayer: %v", err), err)
	}
	return p, nil
}

// Get returns a prayer the user owns, or a non-private one shared with a group they belong to.
func (svc *service) Get(ctx context.Context, userID, id string) (Prayer, error) {
	p, err := svc.repo.GetPrayer(ctx, id)
	if err != nil {
		return Prayer{}, err
	}
	if p.UserID == userID {
		return p, nil
	}
	if p.GroupID == "" || p.Private {
		return Prayer{}, ErrNotFound
	}
	if err := svc.checkMember(ctx, userID, p.GroupID); err != nil {
		return Prayer{}, ErrNotFound
	}
	return p, nil
}

func (svc *service) Mine(ctx context.Context, userID string, page core.Pagination) ([]Prayer, error) {
	page.Clean()
	return svc.repo.ListPrayers(ctx, userID, page)
}

func (svc *service) ForGroup(ctx context.Context, userID, groupID string, page core.Pagination) ([]Prayer, error) {
	if err := svc.checkMember(ctx, userID, groupID); err != nil {
		return nil, err
	}
	page.Clean()
	return svc.repo.ListGroupPrayers(ctx, groupID, page)
}

func (svc *service) own(ctx context.Context, userID, id string) (Prayer, error) {
	p, err := svc.repo.GetPrayer(ctx, id)
	if err != nil {
		return Prayer{}, err
	}
	if p.UserID != userID {
		return Prayer{}, ErrNotFound
	}
	return p, nil
}

func (svc *service) Update(ctx context.Context, userID, id string, up UpdatePrayer) (Prayer, error) {
	p, err := svc.own(ctx, userID, id)
	if err != nil {
		return Prayer{}, err
	}
	p.Title = core.CleanString(up.Title)
	p.Body = core.CleanString(up.Body)
	if up.Private != nil {
		p.Private = *up.Private
	}
	p.UpdatedAt = core.Now()
	return svc.repo.UpdatePrayer(ctx, p)
}

func (svc *service) MarkAnswered(ctx context.Context, userID, id string, answered bool) (Prayer, error) {
	p, err := svc.own(ctx, userID, id)
	if err != nil {
		return Prayer{}, err
	}
	now := core.Now()
	if answered && !p.IsAnswered() {
		p.AnsweredAt = now
	} else if !answered {
		p.AnsweredAt = time.Time{}
	}
	p.UpdatedAt = now
	return svc.repo.UpdatePrayer(ctx, p)
}

func (svc *service) Delete(ctx context.Context, userID, id string) error {
	if _, err := svc.own(ctx, userID, id); err != nil {
		return err
	}
	return svc.repo.DeletePrayer(ctx, id)
}
