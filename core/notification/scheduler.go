package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/bible"
	"github.com/trezcool/selah/core/user"
)

var ErrTickInProgress = errors.New("a notification tick is already running")

const maxBodyLen = 180

// UserFinder resolves the preferred translation used by daily verse notifications.
type UserFinder interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

// Scheduler matches user-local notification preferences against the clock and sends web pushes.
// Ticks never overlap: a tick that starts while another is running is skipped.
type Scheduler struct {
	repo        Repository
	pusher      Pusher
	activity    ActivityChecker
	verses      VerseSource
	users       UserFinder
	logger      core.Logger
	spec        string
	window      time.Duration
	frontendURL string

	running int32
	cron    *cron.Cron
}

func NewScheduler(
	conf *core.Config,
	repo Repository,
	pusher Pusher,
	activity ActivityChecker,
	verses VerseSource,
	users UserFinder,
	logger core.Logger,
) *Scheduler {
	window := conf.Scheduler.Window
	if window < time.Minute {
		window = time.Minute
	}
	return &Scheduler{
		repo:        repo,
		pusher:      pusher,
		activity:    activity,
		verses:      verses,
		users:       users,
		logger:      logger,
		spec:        conf.Scheduler.Spec,
		window:      window,
		frontendURL: conf.FrontendBaseURL,
	}
}

// Due reports whether p should fire at `now`, along with the user-local date it fires on.
// A preference fires once per local date, on an enabled weekday, when the local time
// is at or up to `window` past its time of day. A target shortly before midnight still
// fires on its own date when the tick lands after midnight.
func Due(p Preference, now time.Time, window time.Duration) (string, bool) {
	loc := core.LoadLocation(p.Timezone)
	local := now.In(loc)
	today := local.Format(core.DateLayout)

	if !p.Enabled {
		return today, false
	}
	mins, err := core.ParseTimeOfDay(p.TimeOfDay)
	if err != nil {
		return today, false
	}

	for _, offset := range []int{0, -1} {
		target := time.Date(local.Year(), local.Month(), local.Day()+offset, mins/60, mins%60, 0, 0, loc)
		date := target.Format(core.DateLayout)
		if diff := local.Sub(target); diff < 0 || diff >= window {
			continue
		}
		if p.LastSentDate == date || !p.OnWeekday(target.Weekday()) {
			return date, false
		}
		return date, true
	}
	return today, false
}

// Tick sends every notification due at `now`.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (TickReport, error) {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return TickReport{}, ErrTickInProgress
	}
	defer atomic.StoreInt32(&s.running, 0)

	var report TickReport
	prefs, err := s.repo.ListEnabledPreferences(ctx)
	if err != nil {
		return report, errors.Wrap(err, "listing preferences")
	}

	for _, p := range prefs {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Checked++

		date, ok := Due(p, now, s.window)
		if !ok {
			continue
		}
		if p.Kind == KindStreakReminder {
			active, err := s.activity.HasActivityOn(ctx, p.UserID, date)
			if err != nil {
				s.logger.Error(fmt.Sprintf("checking activity of %s: %v", p.UserID, err), err)
				continue
			}
			if active {
				continue
			}
		}

		if err := s.notify(ctx, p, now, &report); err != nil {
			s.logger.Error(fmt.Sprintf("notifying %s (%s): %v", p.UserID, p.Kind, err), err)
			continue
		}
		if err := s.repo.MarkSent(ctx, p.UserID, p.Kind, date); err != nil {
			s.logger.Error(fmt.Sprintf("marking %s sent for %s: %v", p.Kind, p.UserID, err), err)
		}
	}
	return report, nil
}

func (s *Scheduler) notify(ctx context.Context, p Preference, now time.Time, report *TickReport) error {
	subs, err := s.repo.ListSubscriptions(ctx, p.UserID)
	if err != nil {
		return errors.Wrap(err, "listing subscriptions")
	}
	if len(subs) == 0 {
		return nil
	}

	payload, err := json.Marshal(s.payload(ctx, p, now))
	if err != nil {
		return errors.Wrap(err, "marshalling payload")
	}

	for _, sub := range subs {
		err := s.pusher.Push(ctx, sub, payload)
		switch {
		case err == nil:
			report.Sent++
		case errors.Cause(err) == ErrSubscriptionExpired:
			report.Expired++
			if err := s.repo.DeleteSubscription(ctx, sub.Endpoint); err != nil {
				s.logger.Error(fmt.Sprintf("deleting expired subscription: %v", err), err)
			}
		default:
			report.Failed++
			s.logger.Warn(fmt.Sprintf("push to %s failed: %v", sub.Endpoint, err))
		}
	}
	return nil
}

func (s *Scheduler) payload(ctx context.Context, p Preference, now time.Time) Payload {
	switch p.Kind {
	case KindDailyVerse:
		day := now.In(core.LoadLocation(p.Timezone))
		ref := bible.VerseOfTheDayRef(day)
		pl := Payload{
			Kind:  p.Kind,
			Title: "Verse of the day",
			Body:  ref.Human(),
			URL:   s.frontendURL + "/bible/passage?ref=" + ref.String(),
		}
		if s.verses != nil {
			var translation string
			if s.users != nil {
				if usr, err := s.users.GetByID(ctx, p.UserID); err == nil {
					translation = usr.Translation
				}
			}
			if passage, err := s.verses.VerseOfTheDay(ctx, translation, day); err == nil && passage.Text != "" {
				pl.Body = truncate(passage.Text, maxBodyLen) + " (" + passage.Display + ")"
			}
		}
		return pl
	case KindStreakReminder:
		return Payload{
			Kind:  p.Kind,
			Title: "Keep your streak alive",
			Body:  "You have not read today yet. A chapter is all it takes.",
			URL:   s.frontendURL + "/bible",
		}
	default:
		return Payload{
			Kind:  p.Kind,
			Title: "Time to read",
			Body:  "Your daily reading is waiting for you.",
			URL:   s.frontendURL + "/plans",
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Start runs Tick on the configured cron spec until Stop is called.
func (s *Scheduler) Start() error {
	logger := cronLogger{s.logger}
	s.cron = cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	_, err := s.cron.AddFunc(s.spec, func() {
		report, err := s.Tick(context.Background(), core.Now())
		if err != nil {
			s.logger.Error(fmt.Sprintf("notification tick: %v", err), err)
			return
		}
		if report.Sent > 0 || report.Expired > 0 {
			s.logger.Info(fmt.Sprintf("notification tick: %d sent, %d failed, %d expired", report.Sent, report.Failed, report.Expired))
		}
	})
	if err != nil {
		return errors.Wrapf(err, "scheduling %q", s.spec)
	}
	s.cron.Start()
	return nil
}

// Stop stops the cron trigger and waits for a running tick to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts core.Logger to cron.Logger.
type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(fmt.Sprintf("cron: %s %v", msg, keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(fmt.Sprintf("cron: %s: %v %v", msg, err, keysAndValues), err)
}
