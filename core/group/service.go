package group

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/bible"
	"github.com/trezcool/selah/core/gamification"
	"github.com/trezcool/selah/core/user"
)

const (
	inviteCodeLen      = 8
	inviteCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	inviteCodeAttempts = 5

	DefaultMessageLimit = 50
	MaxMessageLimit     = 200
)

var (
	ErrNotFound           = core.NewNotFoundError("group")
	ErrMemberNotFound     = core.NewNotFoundError("member")
	ErrDiscussionNotFound = core.NewNotFoundError("discussion")
	ErrInviteCodeExists   = errors.New("invite code already exists")
	ErrOwnerCannotLeave   = errors.New("the owner cannot leave the group; delete it instead")
	ErrCannotRemoveOwner  = errors.New("the owner cannot be removed")
)

type (
	Repository interface {
		// CreateGroup returns ErrInviteCodeExists when g.InviteCode is taken.
		CreateGroup(ctx context.Context, g Group, exec ...core.DBExecutor) (Group, error)
		GetGroup(ctx context.Context, id string, exec ...core.DBExecutor) (Group, error)
		GetGroupByInviteCode(ctx context.Context, code string, exec ...core.DBExecutor) (Group, error)
		UpdateGroup(ctx context.Context, g Group, exec ...core.DBExecutor) (Group, error)
		DeleteGroup(ctx context.Context, id string, exec ...core.DBExecutor) error
		ListUserGroups(ctx context.Context, userID string, exec ...core.DBExecutor) ([]Group, error)

		AddMember(ctx context.Context, m Member, exec ...core.DBExecutor) error
		GetMember(ctx context.Context, groupID, userID string, exec ...core.DBExecutor) (Member, error)
		ListMembers(ctx context.Context, groupID string, exec ...core.DBExecutor) ([]Member, error)
		RemoveMember(ctx context.Context, groupID, userID string, exec ...core.DBExecutor) error

		CreateMessage(ctx context.Context, m Message, exec ...core.DBExecutor) (Message, error)
		// ListMessages lists up to limit messages after the cursor, oldest first.
		ListMessages(ctx context.Context, groupID string, after Cursor, limit int, exec ...core.DBExecutor) ([]Message, error)

		CreateDiscussion(ctx context.Context, d Discussion, exec ...core.DBExecutor) (Discussion, error)
		GetDiscussion(ctx context.Context, id string, exec ...core.DBExecutor) (Discussion, error)
		ListDiscussions(ctx context.Context, groupID string, exec ...core.DBExecutor) ([]Discussion, error)
		CreatePost(ctx context.Context, p Post, exec ...core.DBExecutor) (Post, error)
		// ListPosts lists a discussion's posts, oldest first.
		ListPosts(ctx context.Context, discussionID string, exec ...core.DBExecutor) ([]Post, error)
	}

	// Assistant generates discussion content with a language model.
	Assistant interface {
		DiscussionQuestions(ctx context.Context, passage, text string) ([]string, error)
		Reply(ctx context.Context, passage string, thread []Post) (string, error)
	}

	PassageFetcher interface {
		Passage(ctx context.Context, translation, ref string) (bible.Passage, error)
	}

	Rewarder interface {
		Reward(ctx context.Context, userID string, kind gamification.Kind, ref string) (gamification.RewardResult, error)
	}

	Service interface {
		Create(ctx context.Context, owner user.User, ng NewGroup) (Group, error)
		Get(ctx context.Context, userID, id string) (Group, error)
		Mine(ctx context.Context, userID string) ([]Group, error)
		Update(ctx context.Context, actor user.User, id string, ng NewGroup) (Group, error)
		Delete(ctx context.Context, actor user.User, id string) error
		RegenerateInviteCode(ctx context.Context, actor user.User, id string) (Group, error)

		Join(ctx context.Context, usr user.User, code string) (Group, error)
		Leave(ctx context.Context, userID, groupID string) error
		RemoveMember(ctx context.Context, actor user.User, groupID, memberID string) error
		Members(ctx context.Context, userID, groupID string) ([]Member, error)
		IsMember(ctx context.Context, groupID, userID string) (bool, error)
		Invite(ctx context.Context, actor user.User, groupID, email string) error

		PostMessage(ctx context.Context, userID, groupID string, nm NewMessage) (Message, error)
		Messages(ctx context.Context, userID, groupID, cursor string, limit int) (MessagePage, error)

		OpenDiscussion(ctx context.Context, usr user.User, groupID string, nd NewDiscussion) (Discussion, error)
		Discussions(ctx context.Context, userID, groupID string) ([]Discussion, error)
		Thread(ctx context.Context, userID, discussionID string) (Thread, error)
		Reply(ctx context.Context, userID, discussionID string, nm NewMessage) (Post, error)
		AskAssistant(ctx context.Context, userID, discussionID string) (Post, error)
	}

	service struct {
		repo      Repository
		tx        core.TxRunner
		assistant Assistant
		passages  PassageFetcher
		rewarder  Rewarder
		mailSvc   core.EmailService
		logger    core.Logger
	}
)

var _ Service = (*service)(nil)

// NewService builds the group service. assistant may be nil, in which case discussions get FallbackQuestions.
func NewService(
	repo Repository,
	tx core.TxRunner,
	assistant Assistant,
	passages PassageFetcher,
	rewarder Rewarder,
	mailSvc core.EmailService,
	logger core.Logger,
) Service {
	return &service{
		repo:      repo,
		tx:        tx,
		assistant: assistant,
		passages:  passages,
		rewarder:  rewarder,
		mailSvc:   mailSvc,
		logger:    logger,
	}
}

func newInviteCode() (string, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(inviteCodeAlphabet)))
	for i := 0; i < inviteCodeLen; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(inviteCodeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// member returns the caller's membership or core.ErrForbidden.
func (svc *service) member(ctx context.Context, groupID, userID string) (Member, error) {
	if _, err := svc.repo.GetGroup(ctx, groupID); err != nil {
		return Member{}, err
	}
	m, err := svc.repo.GetMember(ctx, groupID, userID)
	if err != nil {
		if errors.Cause(err) == ErrMemberNotFound {
			return Member{}, core.ErrForbidden
		}
		return Member{}, errors.Wrap(err, "getting member")
	}
	return m, nil
}

func (svc *service) Create(ctx context.Context, owner user.User, ng NewGroup) (Group, error) {
	now := core.Now()
	g := Group{
		ID:          uuid.New().String(),
		Name:        core.CleanString(ng.Name),
		Description: core.CleanString(ng.Description),
		OwnerID:     owner.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := svc.tx.RunInTx(ctx, "group.create", func(exec core.DBExecutor) error {
		var (
			created Group
			err     error
		)
		for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
			if g.InviteCode, err = newInviteCode(); err != nil {
				return errors.Wrap(err, "generating invite code")
			}
			if created, err = svc.repo.CreateGroup(ctx, g, exec); errors.Cause(err) != ErrInviteCodeExists {
				break
			}
		}
		if err != nil {
			return errors.Wrap(err, "creating group")
		}
		g = created
		return svc.repo.AddMember(ctx, Member{
			GroupID:  g.ID,
			UserID:   owner.ID,
			Name:     owner.Name,
			Role:     RoleOwner,
			JoinedAt: now,
		}, exec)
	})
	if err != nil {
		return Group{}, err
	}
	return g, nil
}

func (svc *service) Get(ctx context.Context, userID, id string) (Group, error) {
	m, err := svc.member(ctx, id, userID)
	if err != nil {
		return Group{}, err
	}
	g, err := svc.repo.GetGroup(ctx, id)
	if err != nil {
		return Group{}, err
	}
	if !m.IsOwner() {
		g.InviteCode = ""
	}
	return g, nil
}

func (svc *service) Mine(ctx context.Context, userID string) ([]Group, error) {
	groups, err := svc.repo.ListUserGroups(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "listing groups")
	}
	for i := range groups {
		if groups[i].OwnerID != userID {
			groups[i].InviteCode = ""
		}
	}
	return groups, nil
}

func (svc *service) owned(ctx context.Context, actor user.User, id string) (Group, error) {
	g, err := svc.repo.GetGroup(ctx, id)
	if err != nil {
		return Group{}, err
	}
	if g.OwnerID != actor.ID && !actor.IsAdmin() {
		return Group{}, core.ErrForbidden
	}
	return g, nil
}

func (svc *service) Update(ctx context.Context, actor user.User, id string, ng NewGroup) (Group, error) {
	g, err := svc.owned(ctx, actor, id)
	if err != nil {
		return Group{}, err
	}
	g.Name = core.CleanString(ng.Name)
	g.Description = core.CleanString(ng.Description)
	g.UpdatedAt = core.Now()
	return svc.repo.UpdateGroup(ctx, g)
}

func (svc *service) Delete(ctx context.Context, actor user.User, id string) error {
	if _, err := svc.owned(ctx, actor, id); err != nil {
		return err
	}
	return svc.repo.DeleteGroup(ctx, id)
}

func (svc *service) RegenerateInviteCode(ctx context.Context, actor user.User, id string) (Group, error) {
	g, err := svc.owned(ctx, actor, id)
	if err != nil {
		return Group{}, err
	}
	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		if g.InviteCode, err = newInviteCode(); err != nil {
			return Group{}, errors.Wrap(err, "generating invite code")
		}
		g.UpdatedAt = core.Now()
		var updated Group
		if updated, err = svc.repo.UpdateGroup(ctx, g); errors.Cause(err) != ErrInviteCodeExists {
			if err != nil {
				return Group{}, errors.Wrap(err, "updating group")
			}
			return updated, nil
		}
	}
	return Group{}, errors.Wrap(err, "updating group")
}

// Join adds usr to the group with the invite code; joining twice is a no-op.
func (svc *service) Join(ctx context.Context, usr user.User, code string) (Group, error) {
	g, err := svc.repo.GetGroupByInviteCode(ctx, strings.ToUpper(core.CleanString(code)))
	if err != nil {
		return Group{}, err
	}
	if _, err := svc.repo.GetMember(ctx, g.ID, usr.ID); err == nil {
		return g, nil
	} else if errors.Cause(err) != ErrMemberNotFound {
		return Group{}, errors.Wrap(err, "getting member")
	}

	err = svc.repo.AddMember(ctx, Member{
		GroupID:  g.ID,
		UserID:   usr.ID,
		Name:     usr.Name,
		Role:     RoleMember,
		JoinedAt: core.Now(),
	})
	if err != nil {
		return Group{}, errors.Wrap(err, "adding member")
	}
	if g.OwnerID != usr.ID {
		g.InviteCode = ""
	}
	return g, nil
}

func (svc *service) Leave(ctx context.Context, userID, groupID string) error {
	m, err := svc.member(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if m.IsOwner() {
		return core.NewValidationError(ErrOwnerCannotLeave)
	}
	return svc.repo.RemoveMember(ctx, groupID, userID)
}

func (svc *service) RemoveMember(ctx context.Context, actor user.User, groupID, memberID string) error {
	g, err := svc.owned(ctx, actor, groupID)
	if err != nil {
		return err
	}
	if memberID == g.OwnerID {
		return core.NewValidationError(ErrCannotRemoveOwner)
	}
	if _, err := svc.repo.GetMember(ctx, groupID, memberID); err != nil {
		return err
	}
	return svc.repo.RemoveMember(ctx, groupID, memberID)
}

func (svc *service) Members(ctx context.Context, userID, groupID string) ([]Member, error) {
	if _, err := svc.member(ctx, groupID, userID); err != nil {
		return nil, err
	}
	return svc.repo.ListMembers(ctx, groupID)
}

func (svc *service) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	_, err := svc.repo.GetMember(ctx, groupID, userID)
	if err != nil {
		if errors.Cause(err) == ErrMemberNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Invite emails the group's invite code. Any member may invite.
func (svc *service) Invite(ctx context.Context, actor user.User, groupID, email string) error {
	if _, err := svc.member(ctx, groupID, actor.ID); err != nil {
		return err
	}
	g, err := svc.repo.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: core.CleanString(email, true /* lower */)}},
		Subject:      fmt.Sprintf("%s invited you to %s", actor.Name, g.Name),
		TemplateName: "group_invite",
		TemplateData: map[string]string{
			"InviterName": actor.Name,
			"GroupName":   g.Name,
			"InviteCode":  g.InviteCode,
		},
	})
	return nil
}

func (svc *service) PostMessage(ctx context.Context, userID, groupID string, nm NewMessage) (Message, error) {
	if _, err := svc.member(ctx, groupID, userID); err != nil {
		return Message{}, err
	}
	return svc.repo.CreateMessage(ctx, Message{
		ID:        uuid.New().String(),
		GroupID:   groupID,
		UserID:    userID,
		Body:      core.CleanString(nm.Body),
		CreatedAt: core.Now(),
	})
}

func (svc *service) Messages(ctx context.Context, userID, groupID, cursor string, limit int) (MessagePage, error) {
	if _, err := svc.member(ctx, groupID, userID); err != nil {
		return MessagePage{}, err
	}
	after, err := DecodeCursor(cursor)
	if err != nil {
		return MessagePage{}, core.NewValidationError(err, core.FieldError{Field: "after", Error: err.Error()})
	}
	if limit <= 0 {
		limit = DefaultMessageLimit
	} else if limit > MaxMessageLimit {
		limit = MaxMessageLimit
	}

	msgs, err := svc.repo.ListMessages(ctx, groupID, after, limit)
	if err != nil {
		return MessagePage{}, errors.Wrap(err, "listing messages")
	}
	page := MessagePage{Messages: msgs, NextCursor: cursor}
	if n := len(msgs); n > 0 {
		page.NextCursor = Cursor{CreatedAt: msgs[n-1].CreatedAt, ID: msgs[n-1].ID}.Encode()
	}
	return page, nil
}
