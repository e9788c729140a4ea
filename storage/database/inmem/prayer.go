package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/prayer"
)

type prayerRepository struct {
	db *prayerTable
}

var _ prayer.Repository = (*prayerRepository)(nil)

func NewPrayerRepository(db *DB) prayer.Repository {
	return &prayerRepository{db: db.prayer}
}

func (repo *prayerRepository) CreatePrayer(ctx context.Context, p prayer.Prayer, exec ...core.DBExecutor) (prayer.Prayer, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table[p.ID] = &p
	return p, nil
}

func (repo *prayerRepository) GetPrayer(ctx context.Context, id string, exec ...core.DBExecutor) (prayer.Prayer, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if p, ok := repo.db.table[id]; ok {
		return *p, nil
	}
	return prayer.Prayer{}, prayer.ErrNotFound
}

func (repo *prayerRepository) UpdatePrayer(ctx context.Context, p prayer.Prayer, exec ...core.DBExecutor) (prayer.Prayer, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.table[p.ID]; !ok {
		return prayer.Prayer{}, prayer.ErrNotFound
	}
	repo.db.table[p.ID] = &p
	return p, nil
}

func (repo *prayerRepository) DeletePrayer(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.table[id]; !ok {
		return prayer.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}

func (repo *prayerRepository) list(match func(p *prayer.Prayer) bool, page core.Pagination) []prayer.Prayer {
	res := make([]prayer.Prayer, 0)
	for _, p := range repo.db.table {
		if match(p) {
			res = append(res, *p)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	start, end := page.Window(len(res))
	return res[start:end]
}

func (repo *prayerRepository) ListPrayers(ctx context.Context, userID string, page core.Pagination, exec ...core.DBExecutor) ([]prayer.Prayer, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.list(func(p *prayer.Prayer) bool { return p.UserID == userID }, page), nil
}

func (repo *prayerRepository) ListGroupPrayers(ctx context.Context, groupID string, page core.Pagination, exec ...core.DBExecutor) ([]prayer.Prayer, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.list(func(p *prayer.Prayer) bool { return p.GroupID == groupID && !p.Private }, page), nil
}
