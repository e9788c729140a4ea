package gamification

import (
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/selah/core"
)

var (
	ErrNotFound    = core.NewNotFoundError("stats")
	ErrUnknownKind = errors.New("unknown activity kind")
)

// Kind is the type of activity that earns XP.
type Kind string

const (
	KindChapterRead    Kind = "chapter_read"
	KindPlanDay        Kind = "plan_day"
	KindPlanComplete   Kind = "plan_complete"
	KindLessonComplete Kind = "lesson_complete"
	KindEpisodeListen  Kind = "episode_listen"
	KindPrayer         Kind = "prayer"
	KindDiscussionPost Kind = "discussion_post"
)

var xpTable = map[Kind]int{
	KindChapterRead:    10,
	KindPlanDay:        20,
	KindPlanComplete:   100,
	KindLessonComplete: 30,
	KindEpisodeListen:  15,
	KindPrayer:         5,
	KindDiscussionPost: 5,
}

// XPFor returns the XP earned by an activity of kind k.
func XPFor(k Kind) (int, bool) {
	xp, ok := xpTable[k]
	return xp, ok
}

// Level = floor(sqrt(xp / 100)) + 1
func Level(xp int) int {
	if xp <= 0 {
		return 1
	}
	return int(math.Floor(math.Sqrt(float64(xp)/100))) + 1
}

type Stats struct {
	UserID         string    `json:"user_id" db:"user_id"`
	XP             int       `json:"xp" db:"xp"`
	Level          int       `json:"level" db:"level"`
	CurrentStreak  int       `json:"current_streak" db:"current_streak"`
	LongestStreak  int       `json:"longest_streak" db:"longest_streak"`
	LastActiveDate string    `json:"last_active_date" db:"last_active_date"` // YYYY-MM-DD, user-local
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// NewStats returns the stats of a user without any activity.
func NewStats(userID string) Stats {
	return Stats{UserID: userID, Level: 1}
}

type Activity struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Kind      Kind      `json:"kind" db:"kind"`
	Ref       string    `json:"ref" db:"ref"`
	XP        int       `json:"xp" db:"xp"`
	LocalDate string    `json:"local_date" db:"local_date"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type RuleType string

const (
	RuleXP     RuleType = "xp"
	RuleStreak RuleType = "streak"
	RuleCount  RuleType = "count"
)

type Achievement struct {
	Code        string   `json:"code" db:"code"`
	Title       string   `json:"title" db:"title"`
	Description string   `json:"description" db:"description"`
	RuleType    RuleType `json:"rule_type" db:"rule_type"`
	RuleKind    Kind     `json:"rule_kind,omitempty" db:"rule_kind"` // RuleCount only
	Threshold   int      `json:"threshold" db:"threshold"`
}

type UserAchievement struct {
	UserID     string    `json:"-" db:"user_id"`
	Code       string    `json:"code" db:"code"`
	UnlockedAt time.Time `json:"unlocked_at" db:"unlocked_at"`
}

// UnlockedAchievement is an Achievement along with when the user unlocked it.
type UnlockedAchievement struct {
	Achievement
	UnlockedAt time.Time `json:"unlocked_at"`
}

type RewardResult struct {
	XPGained        int           `json:"xp_gained"`
	TotalXP         int           `json:"total_xp"`
	Level           int           `json:"level"`
	LeveledUp       bool          `json:"leveled_up"`
	Streak          int           `json:"streak"`
	LongestStreak   int           `json:"longest_streak"`
	NewAchievements []Achievement `json:"new_achievements"`
	Duplicate       bool          `json:"duplicate"`
}

type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	UserID        string `json:"user_id"`
	Name          string `json:"name"`
	XP            int    `json:"xp"`
	Level         int    `json:"level"`
	CurrentStreak int    `json:"current_streak"`
}

// DefaultAchievements is the catalog seeded by `admin achievements seed`.
var DefaultAchievements = []Achievement{
	{Code: "first_steps", Title: "First Steps", Description: "Read your first chapter.", RuleType: RuleCount, RuleKind: KindChapterRead, Threshold: 1},
	{Code: "bookworm", Title: "Bookworm", Description: "Read 50 chapters.", RuleType: RuleCount, RuleKind: KindChapterRead, Threshold: 50},
	{Code: "faithful_week", Title: "Faithful Week", Description: "Keep a 7 day streak.", RuleType: RuleStreak, Threshold: 7},
	{Code: "faithful_month", Title: "Faithful Month", Description: "Keep a 30 day streak.", RuleType: RuleStreak, Threshold: 30},
	{Code: "finisher", Title: "Finisher", Description: "Complete a reading plan.", RuleType: RuleCount, RuleKind: KindPlanComplete, Threshold: 1},
	{Code: "prayer_warrior", Title: "Prayer Warrior", Description: "Pray 25 times.", RuleType: RuleCount, RuleKind: KindPrayer, Threshold: 25},
	{Code: "student", Title: "Student", Description: "Complete 5 lessons.", RuleType: RuleCount, RuleKind: KindLessonComplete, Threshold: 5},
	{Code: "listener", Title: "Listener", Description: "Listen to 10 podcast episodes.", RuleType: RuleCount, RuleKind: KindEpisodeListen, Threshold: 10},
	{Code: "conversationalist", Title: "Conversationalist", Description: "Post 20 times in group discussions.", RuleType: RuleCount, RuleKind: KindDiscussionPost, Threshold: 20},
	{Code: "disciple", Title: "Disciple", Description: "Earn 1000 XP.", RuleType: RuleXP, Threshold: 1000},
}
