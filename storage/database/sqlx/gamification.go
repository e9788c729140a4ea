package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/gamification"
)

const statsColumns = "user_id, xp, level, current_streak, longest_streak, last_active_date, updated_at"

type gamificationRepository struct {
	baseRepository
}

var _ gamification.Repository = (*gamificationRepository)(nil)

func NewGamificationRepository(exec core.DBExecutor) gamification.Repository {
	return &gamificationRepository{baseRepository{exec: exec}}
}

func (repo gamificationRepository) EnsureStats(ctx context.Context, userID string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	q := exe.Rebind(`INSERT INTO user_stats (user_id, xp, level, updated_at) VALUES (?, 0, 1, ?)
		ON CONFLICT (user_id) DO NOTHING`)
	if _, err := exe.ExecContext(ctx, q, userID, core.Now()); err != nil {
		return errors.Wrap(err, "ensuring stats")
	}
	return nil
}

func (repo gamificationRepository) getStats(ctx context.Context, userID, suffix string, exec []core.DBExecutor) (gamification.Stats, error) {
	exe := repo.getExec(exec)
	var stats gamification.Stats
	q := exe.Rebind("SELECT " + statsColumns + " FROM user_stats WHERE user_id = ?" + suffix)
	if err := exe.GetContext(ctx, &stats, q, userID); err != nil {
		return gamification.Stats{}, trapNoRowsErr(err, gamification.ErrNotFound, "finding stats")
	}
	stats.UpdatedAt = stats.UpdatedAt.UTC()
	return stats, nil
}

// GetStatsForUpdate locks the stats row until the surrounding transaction ends.
func (repo gamificationRepository) GetStatsForUpdate(ctx context.Context, userID string, exec ...core.DBExecutor) (gamification.Stats, error) {
	return repo.getStats(ctx, userID, " FOR UPDATE", exec)
}

func (repo gamificationRepository) GetStats(ctx context.Context, userID string, exec ...core.DBExecutor) (gamification.Stats, error) {
	return repo.getStats(ctx, userID, "", exec)
}

func (repo gamificationRepository) SaveStats(ctx context.Context, stats gamification.Stats, exec ...core.DBExecutor) error {
	q := `UPDATE user_stats SET xp = :xp, level = :level, current_streak = :current_streak,
		longest_streak = :longest_streak, last_active_date = :last_active_date, updated_at = :updated_at
		WHERE user_id = :user_id`
	res, err := repo.getExec(exec).NamedExecContext(ctx, q, stats)
	if err != nil {
		return errors.Wrap(err, "saving stats")
	}
	return rowsAffected(res, gamification.ErrNotFound, "saving stats")
}

func (repo gamificationRepository) ActivityExists(ctx context.Context, userID string, kind gamification.Kind, ref, localDate string, exec ...core.DBExecutor) (bool, error) {
	exe := repo.getExec(exec)
	var exists bool
	q := exe.Rebind(`SELECT EXISTS (SELECT 1 FROM activities
		WHERE user_id = ? AND kind = ? AND ref = ? AND local_date = ?)`)
	if err := exe.GetContext(ctx, &exists, q, userID, kind, ref, localDate); err != nil {
		return false, errors.Wrap(err, "checking activity")
	}
	return exists, nil
}

func (repo gamificationRepository) CreateActivity(ctx context.Context, act gamification.Activity, exec ...core.DBExecutor) error {
	q := `INSERT INTO activities (id, user_id, kind, ref, xp, local_date, created_at)
		VALUES (:id, :user_id, :kind, :ref, :xp, :local_date, :created_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, act); err != nil {
		return errors.Wrap(err, "inserting activity")
	}
	return nil
}

func (repo gamificationRepository) CountActivities(ctx context.Context, userID string, exec ...core.DBExecutor) (map[gamification.Kind]int, error) {
	exe := repo.getExec(exec)
	var rows []struct {
		Kind  gamification.Kind `db:"kind"`
		Count int               `db:"count"`
	}
	q := exe.Rebind("SELECT kind, COUNT(*) AS count FROM activities WHERE user_id = ? GROUP BY kind")
	if err := exe.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "counting activities")
	}
	counts := make(map[gamification.Kind]int, len(rows))
	for _, r := range rows {
		counts[r.Kind] = r.Count
	}
	return counts, nil
}

func (repo gamificationRepository) HasActivityOn(ctx context.Context, userID, localDate string, exec ...core.DBExecutor) (bool, error) {
	exe := repo.getExec(exec)
	var exists bool
	q := exe.Rebind("SELECT EXISTS (SELECT 1 FROM activities WHERE user_id = ? AND local_date = ?)")
	if err := exe.GetContext(ctx, &exists, q, userID, localDate); err != nil {
		return false, errors.Wrap(err, "checking activity")
	}
	return exists, nil
}

func (repo gamificationRepository) ListAchievements(ctx context.Context, exec ...core.DBExecutor) ([]gamification.Achievement, error) {
	res := make([]gamification.Achievement, 0)
	q := "SELECT code, title, description, rule_type, rule_kind, threshold FROM achievements ORDER BY code"
	if err := repo.getExec(exec).SelectContext(ctx, &res, q); err != nil {
		return nil, errors.Wrap(err, "listing achievements")
	}
	return res, nil
}

func (repo gamificationRepository) UpsertAchievement(ctx context.Context, a gamification.Achievement, exec ...core.DBExecutor) error {
	q := `INSERT INTO achievements (code, title, description, rule_type, rule_kind, threshold)
		VALUES (:code, :title, :description, :rule_type, :rule_kind, :threshold)
		ON CONFLICT (code) DO UPDATE SET title = EXCLUDED.title, description = EXCLUDED.description,
			rule_type = EXCLUDED.rule_type, rule_kind = EXCLUDED.rule_kind, threshold = EXCLUDED.threshold`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, a); err != nil {
		return errors.Wrap(err, "upserting achievement")
	}
	return nil
}

func (repo gamificationRepository) ListUserAchievements(ctx context.Context, userID string, exec ...core.DBExecutor) ([]gamification.UserAchievement, error) {
	exe := repo.getExec(exec)
	res := make([]gamification.UserAchievement, 0)
	q := exe.Rebind("SELECT user_id, code, unlocked_at FROM user_achievements WHERE user_id = ? ORDER BY unlocked_at, code")
	if err := exe.SelectContext(ctx, &res, q, userID); err != nil {
		return nil, errors.Wrap(err, "listing user achievements")
	}
	for i := range res {
		res[i].UnlockedAt = res[i].UnlockedAt.UTC()
	}
	return res, nil
}

func (repo gamificationRepository) CreateUserAchievement(ctx context.Context, ua gamification.UserAchievement, exec ...core.DBExecutor) error {
	q := `INSERT INTO user_achievements (user_id, code, unlocked_at) VALUES (:user_id, :code, :unlocked_at)
		ON CONFLICT (user_id, code) DO NOTHING`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, ua); err != nil {
		return errors.Wrap(err, "inserting user achievement")
	}
	return nil
}

func (repo gamificationRepository) TopStats(ctx context.Context, limit int, exec ...core.DBExecutor) ([]gamification.Stats, error) {
	exe := repo.getExec(exec)
	res := make([]gamification.Stats, 0)
	q := exe.Rebind("SELECT " + statsColumns + " FROM user_stats ORDER BY xp DESC, user_id LIMIT ?")
	if err := exe.SelectContext(ctx, &res, q, limit); err != nil {
		return nil, errors.Wrap(err, "listing top stats")
	}
	return res, nil
}
