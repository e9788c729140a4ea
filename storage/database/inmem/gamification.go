package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/gamification"
)

type gamificationRepository struct {
	db *gamificationTables
}

var _ gamification.Repository = (*gamificationRepository)(nil)

func NewGamificationRepository(db *DB) gamification.Repository {
	return &gamificationRepository{db: db.gamification}
}

func (repo *gamificationRepository) EnsureStats(ctx context.Context, userID string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.stats[userID]; !ok {
		s := gamification.NewStats(userID)
		s.UpdatedAt = core.Now()
		repo.db.stats[userID] = &s
	}
	return nil
}

func (repo *gamificationRepository) GetStatsForUpdate(ctx context.Context, userID string, exec ...core.DBExecutor) (gamification.Stats, error) {
	return repo.GetStats(ctx, userID, exec...)
}

func (repo *gamificationRepository) GetStats(ctx context.Context, userID string, exec ...core.DBExecutor) (gamification.Stats, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if s, ok := repo.db.stats[userID]; ok {
		return *s, nil
	}
	return gamification.Stats{}, gamification.ErrNotFound
}

func (repo *gamificationRepository) SaveStats(ctx context.Context, stats gamification.Stats, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.stats[stats.UserID] = &stats
	return nil
}

func (repo *gamificationRepository) ActivityExists(ctx context.Context, userID string, kind gamification.Kind, ref, localDate string, exec ...core.DBExecutor) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	for _, a := range repo.db.activities {
		if a.UserID == userID && a.Kind == kind && a.Ref == ref && a.LocalDate == localDate {
			return true, nil
		}
	}
	return false, nil
}

func (repo *gamificationRepository) CreateActivity(ctx context.Context, act gamification.Activity, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.activities = append(repo.db.activities, act)
	return nil
}

func (repo *gamificationRepository) CountActivities(ctx context.Context, userID string, exec ...core.DBExecutor) (map[gamification.Kind]int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	counts := make(map[gamification.Kind]int)
	for _, a := range repo.db.activities {
		if a.UserID == userID {
			counts[a.Kind]++
		}
	}
	return counts, nil
}

func (repo *gamificationRepository) HasActivityOn(ctx context.Context, userID, localDate string, exec ...core.DBExecutor) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	for _, a := range repo.db.activities {
		if a.UserID == userID && a.LocalDate == localDate {
			return true, nil
		}
	}
	return false, nil
}

func (repo *gamificationRepository) ListAchievements(ctx context.Context, exec ...core.DBExecutor) ([]gamification.Achievement, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	res := make([]gamification.Achievement, 0, len(repo.db.achievements))
	for _, a := range repo.db.achievements {
		res = append(res, a)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Code < res[j].Code })
	return res, nil
}

func (repo *gamificationRepository) UpsertAchievement(ctx context.Context, a gamification.Achievement, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.achievements[a.Code] = a
	return nil
}

func (repo *gamificationRepository) ListUserAchievements(ctx context.Context, userID string, exec ...core.DBExecutor) ([]gamification.UserAchievement, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	res := make([]gamification.UserAchievement, len(repo.db.unlocked[userID]))
	copy(res, repo.db.unlocked[userID])
	return res, nil
}

func (repo *gamificationRepository) CreateUserAchievement(ctx context.Context, ua gamification.UserAchievement, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, u := range repo.db.unlocked[ua.UserID] {
		if u.Code == ua.Code {
			return nil
		}
	}
	repo.db.unlocked[ua.UserID] = append(repo.db.unlocked[ua.UserID], ua)
	return nil
}

func (repo *gamificationRepository) TopStats(ctx context.Context, limit int, exec ...core.DBExecutor) ([]gamification.Stats, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	res := make([]gamification.Stats, 0, len(repo.db.stats))
	for _, s := range repo.db.stats {
		res = append(res, *s)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].XP != res[j].XP {
			return res[i].XP > res[j].XP
		}
		return res[i].UserID < res[j].UserID
	})
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}
