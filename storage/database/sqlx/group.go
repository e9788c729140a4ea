package sqlxrepos

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/group"
)

const (
	groupColumns      = "id, name, description, owner_id, invite_code, created_at, updated_at"
	messageColumns    = "id, group_id, user_id, body, created_at"
	discussionColumns = "id, group_id, created_by, ref, title, questions, created_at"
	postColumns       = "id, discussion_id, user_id, is_assistant, body, created_at"

	inviteCodeConstraint = "groups_invite_code_key"
)

type groupRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	OwnerID     string    `db:"owner_id"`
	InviteCode  string    `db:"invite_code"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type memberRow struct {
	GroupID  string    `db:"group_id"`
	UserID   string    `db:"user_id"`
	Name     string    `db:"name"`
	Role     string    `db:"role"`
	JoinedAt time.Time `db:"joined_at"`
}

type messageRow struct {
	ID        string    `db:"id"`
	GroupID   string    `db:"group_id"`
	UserID    string    `db:"user_id"`
	Body      string    `db:"body"`
	CreatedAt time.Time `db:"created_at"`
}

type discussionRow struct {
	ID        string         `db:"id"`
	GroupID   string         `db:"group_id"`
	CreatedBy string         `db:"created_by"`
	Ref       string         `db:"ref"`
	Title     string         `db:"title"`
	Questions pq.StringArray `db:"questions"`
	CreatedAt time.Time      `db:"created_at"`
}

type postRow struct {
	ID           string      `db:"id"`
	DiscussionID string      `db:"discussion_id"`
	UserID       null.String `db:"user_id"`
	IsAssistant  bool        `db:"is_assistant"`
	Body         string      `db:"body"`
	CreatedAt    time.Time   `db:"created_at"`
}

type groupRepository struct {
	baseRepository
}

var _ group.Repository = (*groupRepository)(nil)

func NewGroupRepository(exec core.DBExecutor) group.Repository {
	return &groupRepository{baseRepository{exec: exec}}
}

func (repo groupRepository) boil(g group.Group) groupRow {
	return groupRow{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		OwnerID:     g.OwnerID,
		InviteCode:  g.InviteCode,
		CreatedAt:   g.CreatedAt.UTC(),
		UpdatedAt:   g.UpdatedAt.UTC(),
	}
}

func (repo groupRepository) unboil(row groupRow) group.Group {
	return group.Group{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		OwnerID:     row.OwnerID,
		InviteCode:  row.InviteCode,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

func (repo groupRepository) CreateGroup(ctx context.Context, g group.Group, exec ...core.DBExecutor) (group.Group, error) {
	q := `INSERT INTO groups (` + groupColumns + `)
		VALUES (:id, :name, :description, :owner_id, :invite_code, :created_at, :updated_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, repo.boil(g)); err != nil {
		if isUniqueViolation(err, inviteCodeConstraint) {
			return group.Group{}, group.ErrInviteCodeExists
		}
		return group.Group{}, errors.Wrap(err, "inserting group")
	}
	return g, nil
}

func (repo groupRepository) getGroup(ctx context.Context, col, val string, exec []core.DBExecutor) (group.Group, error) {
	exe := repo.getExec(exec)
	var row groupRow
	if err := exe.GetContext(ctx, &row, exe.Rebind("SELECT "+groupColumns+" FROM groups WHERE "+col+" = ?"), val); err != nil {
		return group.Group{}, trapNoRowsErr(err, group.ErrNotFound, "finding group")
	}
	return repo.unboil(row), nil
}

func (repo groupRepository) GetGroup(ctx context.Context, id string, exec ...core.DBExecutor) (group.Group, error) {
	if !isUUID(id) {
		return group.Group{}, group.ErrNotFound
	}
	return repo.getGroup(ctx, "id", id, exec)
}

func (repo groupRepository) GetGroupByInviteCode(ctx context.Context, code string, exec ...core.DBExecutor) (group.Group, error) {
	return repo.getGroup(ctx, "invite_code", code, exec)
}

func (repo groupRepository) UpdateGroup(ctx context.Context, g group.Group, exec ...core.DBExecutor) (group.Group, error) {
	q := `UPDATE groups SET name = :name, description = :description, invite_code = :invite_code,
		updated_at = :updated_at WHERE id = :id`
	res, err := repo.getExec(exec).NamedExecContext(ctx, q, repo.boil(g))
	if err != nil {
		if isUniqueViolation(err, inviteCodeConstraint) {
			return group.Group{}, group.ErrInviteCodeExists
		}
		return group.Group{}, errors.Wrap(err, "updating group")
	}
	if err := rowsAffected(res, group.ErrNotFound, "updating group"); err != nil {
		return group.Group{}, err
	}
	return g, nil
}

// DeleteGroup cascades to members, messages and discussions.
func (repo groupRepository) DeleteGroup(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return group.ErrNotFound
	}
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM groups WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting group")
	}
	return rowsAffected(res, group.ErrNotFound, "deleting group")
}

func (repo groupRepository) ListUserGroups(ctx context.Context, userID string, exec ...core.DBExecutor) ([]group.Group, error) {
	exe := repo.getExec(exec)
	var rows []groupRow
	q := exe.Rebind(`SELECT g.id, g.name, g.description, g.owner_id, g.invite_code, g.created_at, g.updated_at
		FROM groups g JOIN group_members m ON m.group_id = g.id
		WHERE m.user_id = ? ORDER BY g.name, g.id`)
	if err := exe.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "listing user groups")
	}
	res := make([]group.Group, 0, len(rows))
	for _, r := range rows {
		res = append(res, repo.unboil(r))
	}
	return res, nil
}

// AddMember is a no-op when the user already belongs to the group.
func (repo groupRepository) AddMember(ctx context.Context, m group.Member, exec ...core.DBExecutor) error {
	row := memberRow{GroupID: m.GroupID, UserID: m.UserID, Role: m.Role, JoinedAt: m.JoinedAt.UTC()}
	q := `INSERT INTO group_members (group_id, user_id, role, joined_at) VALUES (:group_id, :user_id, :role, :joined_at)
		ON CONFLICT (group_id, user_id) DO NOTHING`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, row); err != nil {
		return errors.Wrap(err, "inserting member")
	}
	return nil
}

const memberSelect = `SELECT m.group_id, m.user_id, u.name, m.role, m.joined_at
	FROM group_members m JOIN users u ON u.id = m.user_id`

func unboilMember(row memberRow) group.Member {
	return group.Member{
		GroupID:  row.GroupID,
		UserID:   row.UserID,
		Name:     row.Name,
		Role:     row.Role,
		JoinedAt: row.JoinedAt.UTC(),
	}
}

func (repo groupRepository) GetMember(ctx context.Context, groupID, userID string, exec ...core.DBExecutor) (group.Member, error) {
	if !isUUID(groupID) || !isUUID(userID) {
		return group.Member{}, group.ErrMemberNotFound
	}
	exe := repo.getExec(exec)
	var row memberRow
	q := exe.Rebind(memberSelect + " WHERE m.group_id = ? AND m.user_id = ?")
	if err := exe.GetContext(ctx, &row, q, groupID, userID); err != nil {
		return group.Member{}, trapNoRowsErr(err, group.ErrMemberNotFound, "finding member")
	}
	return unboilMember(row), nil
}

func (repo groupRepository) ListMembers(ctx context.Context, groupID string, exec ...core.DBExecutor) ([]group.Member, error) {
	if !isUUID(groupID) {
		return []group.Member{}, nil
	}
	exe := repo.getExec(exec)
	var rows []memberRow
	q := exe.Rebind(memberSelect + " WHERE m.group_id = ? ORDER BY m.joined_at, m.user_id")
	if err := exe.SelectContext(ctx, &rows, q, groupID); err != nil {
		return nil, errors.Wrap(err, "listing members")
	}
	res := make([]group.Member, 0, len(rows))
	for _, r := range rows {
		res = append(res, unboilMember(r))
	}
	return res, nil
}

func (repo groupRepository) RemoveMember(ctx context.Context, groupID, userID string, exec ...core.DBExecutor) error {
	if !isUUID(groupID) || !isUUID(userID) {
		return group.ErrMemberNotFound
	}
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM group_members WHERE group_id = ? AND user_id = ?"), groupID, userID)
	if err != nil {
		return errors.Wrap(err, "deleting member")
	}
	return rowsAffected(res, group.ErrMemberNotFound, "deleting member")
}

func (repo groupRepository) CreateMessage(ctx context.Context, m group.Message, exec ...core.DBExecutor) (group.Message, error) {
	row := messageRow{ID: m.ID, GroupID: m.GroupID, UserID: m.UserID, Body: m.Body, CreatedAt: m.CreatedAt.UTC()}
	q := `INSERT INTO group_messages (` + messageColumns + `) VALUES (:id, :group_id, :user_id, :body, :created_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, row); err != nil {
		return group.Message{}, errors.Wrap(err, "inserting message")
	}
	return m, nil
}

func (repo groupRepository) ListMessages(ctx context.Context, groupID string, after group.Cursor, limit int, exec ...core.DBExecutor) ([]group.Message, error) {
	if !isUUID(groupID) {
		return []group.Message{}, nil
	}
	exe := repo.getExec(exec)
	var w where
	w.add("group_id = ?", groupID)
	if !after.IsZero() {
		w.add("(created_at, id::text) > (?, ?)", after.CreatedAt.UTC(), after.ID)
	}

	var rows []messageRow
	q := exe.Rebind("SELECT " + messageColumns + " FROM group_messages" + w.String() + " ORDER BY created_at, id::text LIMIT ?")
	if err := exe.SelectContext(ctx, &rows, q, append(w.args, limit)...); err != nil {
		return nil, errors.Wrap(err, "listing messages")
	}
	res := make([]group.Message, 0, len(rows))
	for _, r := range rows {
		res = append(res, group.Message{ID: r.ID, GroupID: r.GroupID, UserID: r.UserID, Body: r.Body, CreatedAt: r.CreatedAt.UTC()})
	}
	return res, nil
}

func unboilDiscussion(row discussionRow) group.Discussion {
	questions := []string(row.Questions)
	if questions == nil {
		questions = []string{}
	}
	return group.Discussion{
		ID:        row.ID,
		GroupID:   row.GroupID,
		CreatedBy: row.CreatedBy,
		Ref:       row.Ref,
		Title:     row.Title,
		Questions: questions,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

func (repo groupRepository) CreateDiscussion(ctx context.Context, d group.Discussion, exec ...core.DBExecutor) (group.Discussion, error) {
	questions := d.Questions
	if questions == nil {
		questions = []string{}
	}
	row := discussionRow{
		ID:        d.ID,
		GroupID:   d.GroupID,
		CreatedBy: d.CreatedBy,
		Ref:       d.Ref,
		Title:     d.Title,
		Questions: questions,
		CreatedAt: d.CreatedAt.UTC(),
	}
	q := `INSERT INTO discussions (` + discussionColumns + `)
		VALUES (:id, :group_id, :created_by, :ref, :title, :questions, :created_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, row); err != nil {
		return group.Discussion{}, errors.Wrap(err, "inserting discussion")
	}
	return unboilDiscussion(row), nil
}

func (repo groupRepository) GetDiscussion(ctx context.Context, id string, exec ...core.DBExecutor) (group.Discussion, error) {
	if !isUUID(id) {
		return group.Discussion{}, group.ErrDiscussionNotFound
	}
	exe := repo.getExec(exec)
	var row discussionRow
	if err := exe.GetContext(ctx, &row, exe.Rebind("SELECT "+discussionColumns+" FROM discussions WHERE id = ?"), id); err != nil {
		return group.Discussion{}, trapNoRowsErr(err, group.ErrDiscussionNotFound, "finding discussion")
	}
	return unboilDiscussion(row), nil
}

func (repo groupRepository) ListDiscussions(ctx context.Context, groupID string, exec ...core.DBExecutor) ([]group.Discussion, error) {
	if !isUUID(groupID) {
		return []group.Discussion{}, nil
	}
	exe := repo.getExec(exec)
	var rows []discussionRow
	q := exe.Rebind("SELECT " + discussionColumns + " FROM discussions WHERE group_id = ? ORDER BY created_at DESC")
	if err := exe.SelectContext(ctx, &rows, q, groupID); err != nil {
		return nil, errors.Wrap(err, "listing discussions")
	}
	res := make([]group.Discussion, 0, len(rows))
	for _, r := range rows {
		res = append(res, unboilDiscussion(r))
	}
	return res, nil
}

func (repo groupRepository) CreatePost(ctx context.Context, p group.Post, exec ...core.DBExecutor) (group.Post, error) {
	row := postRow{
		ID:           p.ID,
		DiscussionID: p.DiscussionID,
		UserID:       nullString(p.UserID),
		IsAssistant:  p.IsAssistant,
		Body:         p.Body,
		CreatedAt:    p.CreatedAt.UTC(),
	}
	q := `INSERT INTO discussion_posts (` + postColumns + `)
		VALUES (:id, :discussion_id, :user_id, :is_assistant, :body, :created_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, row); err != nil {
		return group.Post{}, errors.Wrap(err, "inserting post")
	}
	return p, nil
}

func (repo groupRepository) ListPosts(ctx context.Context, discussionID string, exec ...core.DBExecutor) ([]group.Post, error) {
	if !isUUID(discussionID) {
		return []group.Post{}, nil
	}
	exe := repo.getExec(exec)
	var rows []postRow
	q := exe.Rebind("SELECT " + postColumns + " FROM discussion_posts WHERE discussion_id = ? ORDER BY created_at")
	if err := exe.SelectContext(ctx, &rows, q, discussionID); err != nil {
		return nil, errors.Wrap(err, "listing posts")
	}
	res := make([]group.Post, 0, len(rows))
	for _, r := range rows {
		res = append(res, group.Post{
			ID:           r.ID,
			DiscussionID: r.DiscussionID,
			UserID:       r.UserID.String,
			IsAssistant:  r.IsAssistant,
			Body:         r.Body,
			CreatedAt:    r.CreatedAt.UTC(),
		})
	}
	return res, nil
}
