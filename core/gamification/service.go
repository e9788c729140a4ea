package gamification

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/user"
)

const (
	DefaultLeaderboardSize = 10
	MaxLeaderboardSize     = 100
)

type (
	Repository interface {
		// EnsureStats inserts a zero Stats row for the user if none exists.
		EnsureStats(ctx context.Context, userID string, exec ...core.DBExecutor) error
		// GetStatsForUpdate locks the user's Stats row until the end of the transaction.
		GetStatsForUpdate(ctx context.Context, userID string, exec ...core.DBExecutor) (Stats, error)
		GetStats(ctx context.Context, userID string, exec ...core.DBExecutor) (Stats, error)
		SaveStats(ctx context.Context, stats Stats, exec ...core.DBExecutor) error
		ActivityExists(ctx context.Context, userID string, kind Kind, ref, localDate string, exec ...core.DBExecutor) (bool, error)
		CreateActivity(ctx context.Context, act Activity, exec ...core.DBExecutor) error
		CountActivities(ctx context.Context, userID string, exec ...core.DBExecutor) (map[Kind]int, error)
		HasActivityOn(ctx context.Context, userID, localDate string, exec ...core.DBExecutor) (bool, error)
		ListAchievements(ctx context.Context, exec ...core.DBExecutor) ([]Achievement, error)
		UpsertAchievement(ctx context.Context, a Achievement, exec ...core.DBExecutor) error
		ListUserAchievements(ctx context.Context, userID string, exec ...core.DBExecutor) ([]UserAchievement, error)
		CreateUserAchievement(ctx context.Context, ua UserAchievement, exec ...core.DBExecutor) error
		TopStats(ctx context.Context, limit int, exec ...core.DBExecutor) ([]Stats, error)
	}

	// UserFinder is the subset of user.Service used to resolve timezones & names.
	UserFinder interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service interface {
		Reward(ctx context.Context, userID string, kind Kind, ref string) (RewardResult, error)
		Stats(ctx context.Context, userID string) (Stats, error)
		Achievements(ctx context.Context) ([]Achievement, error)
		UserAchievements(ctx context.Context, userID string) ([]UnlockedAchievement, error)
		SeedAchievements(ctx context.Context) (int, error)
		Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
		HasActivityOn(ctx context.Context, userID, localDate string) (bool, error)
	}

	service struct {
		repo   Repository
		tx     core.TxRunner
		users  UserFinder
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, tx core.TxRunner, users UserFinder, logger core.Logger) Service {
	return &service{
		repo:   repo,
		tx:     tx,
		users:  users,
		logger: logger,
	}
}

// Reward records an activity and updates XP, level, streak & achievements in one transaction.
// The same (kind, ref) on the same user-local day earns nothing more.
func (svc *service) Reward(ctx context.Context, userID string, kind Kind, ref string) (RewardResult, error) {
	xp, ok := XPFor(kind)
	if !ok {
		return RewardResult{}, core.NewValidationError(ErrUnknownKind, core.FieldError{Field: "kind", Error: ErrUnknownKind.Error()})
	}

	usr, err := svc.users.GetByID(ctx, userID)
	if err != nil {
		return RewardResult{}, errors.Wrap(err, "finding user")
	}
	now := core.Now()
	today := core.LocalDate(now, usr.Timezone)

	var res RewardResult
	err = svc.tx.RunInTx(ctx, "gamification.reward", func(exec core.DBExecutor) error {
		if err := svc.repo.EnsureStats(ctx, userID, exec); err != nil {
			return errors.Wrap(err, "ensuring stats")
		}
		stats, err := svc.repo.GetStatsForUpdate(ctx, userID, exec)
		if err != nil {
			return errors.Wrap(err, "locking stats")
		}

		dup, err := svc.repo.ActivityExists(ctx, userID, kind, ref, today, exec)
		if err != nil {
			return errors.Wrap(err, "checking activity")
		}
		if dup {
			res = RewardResult{
				TotalXP:         stats.XP,
				Level:           stats.Level,
				Streak:          stats.CurrentStreak,
				LongestStreak:   stats.LongestStreak,
				NewAchievements: []Achievement{},
				Duplicate:       true,
			}
			return nil
		}

		act := Activity{
			ID:        uuid.New().String(),
			UserID:    userID,
			Kind:      kind,
			Ref:       ref,
			XP:        xp,
			LocalDate: today,
			CreatedAt: now,
		}
		if err := svc.repo.CreateActivity(ctx, act, exec); err != nil {
			return errors.Wrap(err, "creating activity")
		}

		prevLevel := stats.Level
		stats.XP += xp
		stats.Level = Level(stats.XP)
		stats.CurrentStreak, stats.LongestStreak = NextStreak(stats, today)
		stats.LastActiveDate = today
		stats.UpdatedAt = now
		if err := svc.repo.SaveStats(ctx, stats, exec); err != nil {
			return errors.Wrap(err, "saving stats")
		}

		counts, err := svc.repo.CountActivities(ctx, userID, exec)
		if err != nil {
			return errors.Wrap(err, "counting activities")
		}
		unlocked, err := svc.repo.ListUserAchievements(ctx, userID, exec)
		if err != nil {
			return errors.Wrap(err, "listing user achievements")
		}
		catalog, err := svc.repo.ListAchievements(ctx, exec)
		if err != nil {
			return errors.Wrap(err, "listing achievements")
		}

		newly := Evaluate(catalog, stats, counts, unlocked)
		for _, a := range newly {
			ua := UserAchievement{UserID: userID, Code: a.Code, UnlockedAt: now}
			if err := svc.repo.CreateUserAchievement(ctx, ua, exec); err != nil {
				return errors.Wrapf(err, "unlocking %s", a.Code)
			}
		}
		if newly == nil {
			newly = []Achievement{}
		}

		res = RewardResult{
			XPGained:        xp,
			TotalXP:         stats.XP,
			Level:           stats.Level,
			LeveledUp:       stats.Level > prevLevel,
			Streak:          stats.CurrentStreak,
			LongestStreak:   stats.LongestStreak,
			NewAchievements: newly,
		}
		return nil
	})
	if err != nil {
		return RewardResult{}, err
	}

	if len(res.NewAchievements) > 0 {
		svc.logger.Info(fmt.Sprintf("user %s unlocked %d achievement(s)", userID, len(res.NewAchievements)))
	}
	return res, nil
}

// Stats returns the user's stats as of today; a broken streak reads as 0.
func (svc *service) Stats(ctx context.Context, userID string) (Stats, error) {
	stats, err := svc.repo.GetStats(ctx, userID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return NewStats(userID), nil
		}
		return Stats{}, errors.Wrap(err, "getting stats")
	}
	if usr, err := svc.users.GetByID(ctx, userID); err == nil {
		stats.CurrentStreak = StreakOn(stats, core.LocalDate(core.Now(), usr.Timezone))
	}
	return stats, nil
}

func (svc *service) Achievements(ctx context.Context) ([]Achievement, error) {
	return svc.repo.ListAchievements(ctx)
}

func (svc *service) UserAchievements(ctx context.Context, userID string) ([]UnlockedAchievement, error) {
	catalog, err := svc.repo.ListAchievements(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing achievements")
	}
	byCode := make(map[string]Achievement, len(catalog))
	for _, a := range catalog {
		byCode[a.Code] = a
	}

	uas, err := svc.repo.ListUserAchievements(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "listing user achievements")
	}
	res := make([]UnlockedAchievement, 0, len(uas))
	for _, ua := range uas {
		if a, ok := byCode[ua.Code]; ok {
			res = append(res, UnlockedAchievement{Achievement: a, UnlockedAt: ua.UnlockedAt})
		}
	}
	return res, nil
}

// SeedAchievements upserts DefaultAchievements into the catalog.
func (svc *service) SeedAchievements(ctx context.Context) (int, error) {
	err := svc.tx.RunInTx(ctx, "gamification.seed", func(exec core.DBExecutor) error {
		for _, a := range DefaultAchievements {
			if err := svc.repo.UpsertAchievement(ctx, a, exec); err != nil {
				return errors.Wrapf(err, "upserting %s", a.Code)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(DefaultAchievements), nil
}

func (svc *service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	} else if limit > MaxLeaderboardSize {
		limit = MaxLeaderboardSize
	}

	top, err := svc.repo.TopStats(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "getting top stats")
	}
	entries := make([]LeaderboardEntry, 0, len(top))
	for i, s := range top {
		entry := LeaderboardEntry{
			Rank:          i + 1,
			UserID:        s.UserID,
			XP:            s.XP,
			Level:         s.Level,
			CurrentStreak: s.CurrentStreak,
		}
		if usr, err := svc.users.GetByID(ctx, s.UserID); err == nil {
			entry.Name = usr.Name
			entry.CurrentStreak = StreakOn(s, core.LocalDate(core.Now(), usr.Timezone))
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (svc *service) HasActivityOn(ctx context.Context, userID, localDate string) (bool, error) {
	return svc.repo.HasActivityOn(ctx, userID, localDate)
}
