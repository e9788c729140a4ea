package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/group"
)

type groupRepository struct {
	db *groupTables
}

var _ group.Repository = (*groupRepository)(nil)

func NewGroupRepository(db *DB) group.Repository {
	return &groupRepository{db: db.group}
}

func (repo *groupRepository) codeTaken(code, exceptID string) bool {
	for _, g := range repo.db.groups {
		if g.InviteCode == code && g.ID != exceptID {
			return true
		}
	}
	return false
}

func (repo *groupRepository) CreateGroup(ctx context.Context, g group.Group, exec ...core.DBExecutor) (group.Group, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if repo.codeTaken(g.InviteCode, g.ID) {
		return group.Group{}, group.ErrInviteCodeExists
	}
	repo.db.groups[g.ID] = &g
	return g, nil
}

func (repo *groupRepository) GetGroup(ctx context.Context, id string, exec ...core.DBExecutor) (group.Group, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if g, ok := repo.db.groups[id]; ok {
		return *g, nil
	}
	return group.Group{}, group.ErrNotFound
}

func (repo *groupRepository) GetGroupByInviteCode(ctx context.Context, code string, exec ...core.DBExecutor) (group.Group, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	for _, g := range repo.db.groups {
		if g.InviteCode == code {
			return *g, nil
		}
	}
	return group.Group{}, group.ErrNotFound
}

func (repo *groupRepository) UpdateGroup(ctx context.Context, g group.Group, exec ...core.DBExecutor) (group.Group, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.groups[g.ID]; !ok {
		return group.Group{}, group.ErrNotFound
	}
	if repo.codeTaken(g.InviteCode, g.ID) {
		return group.Group{}, group.ErrInviteCodeExists
	}
	repo.db.groups[g.ID] = &g
	return g, nil
}

func (repo *groupRepository) DeleteGroup(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.groups[id]; !ok {
		return group.ErrNotFound
	}
	delete(repo.db.groups, id)
	delete(repo.db.members, id)

	msgs := repo.db.messages[:0]
	for _, m := range repo.db.messages {
		if m.GroupID != id {
			msgs = append(msgs, m)
		}
	}
	repo.db.messages = msgs

	for did, d := range repo.db.discussions {
		if d.GroupID == id {
			delete(repo.db.discussions, did)
		}
	}
	posts := repo.db.posts[:0]
	for _, p := range repo.db.posts {
		if _, ok := repo.db.discussions[p.DiscussionID]; ok {
			posts = append(posts, p)
		}
	}
	repo.db.posts = posts
	return nil
}

func (repo *groupRepository) ListUserGroups(ctx context.Context, userID string, exec ...core.DBExecutor) ([]group.Group, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	res := make([]group.Group, 0)
	for gid, members := range repo.db.members {
		if _, ok := members[userID]; ok {
			if g, ok := repo.db.groups[gid]; ok {
				res = append(res, *g)
			}
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

func (repo *groupRepository) AddMember(ctx context.Context, m group.Member, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.members[m.GroupID]; !ok {
		repo.db.members[m.GroupID] = make(map[string]group.Member)
	}
	if _, ok := repo.db.members[m.GroupID][m.UserID]; !ok {
		repo.db.members[m.GroupID][m.UserID] = m
	}
	return nil
}

func (repo *groupRepository) GetMember(ctx context.Context, groupID, userID string, exec ...core.DBExecutor) (group.Member, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if m, ok := repo.db.members[groupID][userID]; ok {
		return m, nil
	}
	return group.Member{}, group.ErrMemberNotFound
}

func (repo *groupRepository) ListMembers(ctx context.Context, groupID string, exec ...core.DBExecutor) ([]group.Member, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	res := make([]group.Member, 0, len(repo.db.members[groupID]))
	for _, m := range repo.db.members[groupID] {
		res = append(res, m)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].JoinedAt.Before(res[j].JoinedAt) })
	return res, nil
}

func (repo *groupRepository) RemoveMember(ctx context.Context, groupID, userID string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.members[groupID][userID]; !ok {
		return group.ErrMemberNotFound
	}
	delete(repo.db.members[groupID], userID)
	return nil
}

func (repo *groupRepository) CreateMessage(ctx context.Context, m group.Message, exec ...core.DBExecutor) (group.Message, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.messages = append(repo.db.messages, m)
	return m, nil
}

func (repo *groupRepository) ListMessages(ctx context.Context, groupID string, after group.Cursor, limit int, exec ...core.DBExecutor) ([]group.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	res := make([]group.Message, 0)
	for _, m := range repo.db.messages {
		if m.GroupID == groupID && (after.IsZero() || after.After(m)) {
			res = append(res, m)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (repo *groupRepository) CreateDiscussion(ctx context.Context, d group.Discussion, exec ...core.DBExecutor) (group.Discussion, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.discussions[d.ID] = &d
	return d, nil
}

func (repo *groupRepository) GetDiscussion(ctx context.Context, id string, exec ...core.DBExecutor) (group.Discussion, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if d, ok := repo.db.discussions[id]; ok {
		return *d, nil
	}
	return group.Discussion{}, group.ErrDiscussionNotFound
}

func (repo *groupRepository) ListDiscussions(ctx context.Context, groupID string, exec ...core.DBExecutor) ([]group.Discussion, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	res := make([]group.Discussion, 0)
	for _, d := range repo.db.discussions {
		if d.GroupID == groupID {
			res = append(res, *d)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (repo *groupRepository) CreatePost(ctx context.Context, p group.Post, exec ...core.DBExecutor) (group.Post, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.posts = append(repo.db.posts, p)
	return p, nil
}

func (repo *groupRepository) ListPosts(ctx context.Context, discussionID string, exec ...core.DBExecutor) ([]group.Post, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	res := make([]group.Post, 0)
	for _, p := range repo.db.posts {
		if p.DiscussionID == discussionID {
			res = append(res, p)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}
