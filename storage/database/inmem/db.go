package inmemdb

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/annotation"
	"github.com/trezcool/selah/core/donation"
	"github.com/trezcool/selah/core/gamification"
	"github.com/trezcool/selah/core/group"
	"github.com/trezcool/selah/core/lesson"
	"github.com/trezcool/selah/core/notification"
	"github.com/trezcool/selah/core/plan"
	"github.com/trezcool/selah/core/podcast"
	"github.com/trezcool/selah/core/prayer"
	"github.com/trezcool/selah/core/user"
)

type (
	// DB keeps every table in memory. It backs tests and the `inmem` database engine.
	DB struct {
		txMu sync.Mutex

		user         *userTable
		gamification *gamificationTables
		annotation   *annotationTables
		plan         *planTables
		prayer       *prayerTable
		group        *groupTables
		podcast      *podcastTables
		lesson       *lessonTables
		donation     *donationTable
		notification *notificationTables
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	gamificationTables struct {
		sync.RWMutex
		stats        map[string]*gamification.Stats // {userID: stats}
		activities   []gamification.Activity
		achievements map[string]gamification.Achievement
		unlocked     map[string][]gamification.UserAchievement // {userID: unlocks}
	}

	annotationTables struct {
		sync.RWMutex
		bookmarks  map[string]*annotation.Bookmark
		highlights map[string]*annotation.Highlight
		notes      map[string]*annotation.Note
	}

	planTables struct {
		sync.RWMutex
		plans       map[string]*plan.Plan
		enrollments map[string]*plan.Enrollment
	}

	prayerTable struct {
		sync.RWMutex
		table map[string]*prayer.Prayer
	}

	groupTables struct {
		sync.RWMutex
		groups      map[string]*group.Group
		members     map[string]map[string]group.Member // {groupID: {userID: member}}
		messages    []group.Message
		discussions map[string]*group.Discussion
		posts       []group.Post
	}

	podcastTables struct {
		sync.RWMutex
		podcasts map[string]*podcast.Podcast
		episodes map[string]*podcast.Episode
		progress map[string]podcast.Progress // {userID/episodeID: progress}
	}

	lessonTables struct {
		sync.RWMutex
		lessons     map[string]*lesson.Lesson
		completions map[string]lesson.Completion // {userID/lessonID: completion}
	}

	donationTable struct {
		sync.RWMutex
		table map[string]*donation.Donation
	}

	notificationTables struct {
		sync.RWMutex
		subscriptions map[string]notification.Subscription // {endpoint: sub}
		preferences   map[string]notification.Preference   // {userID/kind: pref}
	}
)

func Open() *DB {
	return &DB{
		user: &userTable{table: make(map[string]*user.User)},
		gamification: &gamificationTables{
			stats:        make(map[string]*gamification.Stats),
			achievements: make(map[string]gamification.Achievement),
			unlocked:     make(map[string][]gamification.UserAchievement),
		},
		annotation: &annotationTables{
			bookmarks:  make(map[string]*annotation.Bookmark),
			highlights: make(map[string]*annotation.Highlight),
			notes:      make(map[string]*annotation.Note),
		},
		plan: &planTables{
			plans:       make(map[string]*plan.Plan),
			enrollments: make(map[string]*plan.Enrollment),
		},
		prayer: &prayerTable{table: make(map[string]*prayer.Prayer)},
		group: &groupTables{
			groups:      make(map[string]*group.Group),
			members:     make(map[string]map[string]group.Member),
			discussions: make(map[string]*group.Discussion),
		},
		podcast: &podcastTables{
			podcasts: make(map[string]*podcast.Podcast),
			episodes: make(map[string]*podcast.Episode),
			progress: make(map[string]podcast.Progress),
		},
		lesson: &lessonTables{
			lessons:     make(map[string]*lesson.Lesson),
			completions: make(map[string]lesson.Completion),
		},
		donation: &donationTable{table: make(map[string]*donation.Donation)},
		notification: &notificationTables{
			subscriptions: make(map[string]notification.Subscription),
			preferences:   make(map[string]notification.Preference),
		},
	}
}

// RunInTx serializes transactions. Writes made before fn fails are not rolled back.
func (db *DB) RunInTx(ctx context.Context, reason string, fn func(exec core.DBExecutor) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(nil)
}

var _ core.TxRunner = (*DB)(nil)

func key(parts ...string) string {
	return strings.Join(parts, "/")
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

// cloneStrings copies s, keeping an empty result non-nil.
func cloneStrings(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
