package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/bible"
	"github.com/trezcool/selah/core/user"
)

var (
	ErrSubscriptionNotFound = core.NewNotFoundError("push subscription")
	ErrPreferenceNotFound   = core.NewNotFoundError("notification preference")
	// ErrSubscriptionExpired is returned by a Pusher when the push service reports
	// the subscription gone (HTTP 404 or 410).
	ErrSubscriptionExpired = errors.New("push subscription expired")
)

type (
	Repository interface {
		// UpsertSubscription inserts s or reassigns the existing row with the same endpoint.
		UpsertSubscription(ctx context.Context, s Subscription, exec ...core.DBExecutor) (Subscription, error)
		DeleteSubscription(ctx context.Context, endpoint string, exec ...core.DBExecutor) error
		ListSubscriptions(ctx context.Context, userID string, exec ...core.DBExecutor) ([]Subscription, error)

		ListPreferences(ctx context.Context, userID string, exec ...core.DBExecutor) ([]Preference, error)
		ListEnabledPreferences(ctx context.Context, exec ...core.DBExecutor) ([]Preference, error)
		UpsertPreference(ctx context.Context, p Preference, exec ...core.DBExecutor) (Preference, error)
		MarkSent(ctx context.Context, userID string, kind Kind, localDate string, exec ...core.DBExecutor) error
	}

	// Pusher delivers a payload to one browser subscription.
	Pusher interface {
		Push(ctx context.Context, sub Subscription, payload []byte) error
	}

	// ActivityChecker tells whether the user already did something on a local date.
	ActivityChecker interface {
		HasActivityOn(ctx context.Context, userID, localDate string) (bool, error)
	}

	VerseSource interface {
		VerseOfTheDay(ctx context.Context, translation string, day time.Time) (bible.Passage, error)
	}

	Service interface {
		VAPIDPublicKey() string
		Subscribe(ctx context.Context, userID string, ns NewSubscription) (Subscription, error)
		Unsubscribe(ctx context.Context, userID, endpoint string) error
		Preferences(ctx context.Context, usr user.User) ([]Preference, error)
		UpdatePreferences(ctx context.Context, usr user.User, up UpdatePreferences) ([]Preference, error)
	}

	service struct {
		repo     Repository
		vapidKey string
	}
)

var _ Service = (*service)(nil)

func NewService(conf *core.Config, repo Repository) Service {
	return &service{
		repo:     repo,
		vapidKey: conf.WebPush.VAPIDPublicKey,
	}
}

func (svc *service) VAPIDPublicKey() string {
	return svc.vapidKey
}

func (svc *service) Subscribe(ctx context.Context, userID string, ns NewSubscription) (Subscription, error) {
	return svc.repo.UpsertSubscription(ctx, Subscription{
		ID:        uuid.New().String(),
		UserID:    userID,
		Endpoint:  ns.Endpoint,
		P256dh:    ns.Keys.P256dh,
		Auth:      ns.Keys.Auth,
		CreatedAt: core.Now(),
	})
}

// Unsubscribe removes one of the user's subscriptions.
func (svc *service) Unsubscribe(ctx context.Context, userID, endpoint string) error {
	subs, err := svc.repo.ListSubscriptions(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "listing subscriptions")
	}
	for _, s := range subs {
		if s.Endpoint == endpoint {
			return svc.repo.DeleteSubscription(ctx, endpoint)
		}
	}
	return ErrSubscriptionNotFound
}

func defaultPreference(usr user.User, kind Kind) Preference {
	return Preference{
		UserID:    usr.ID,
		Kind:      kind,
		TimeOfDay: defaultTimeOfDay,
		Timezone:  usr.Timezone,
		Weekdays:  EveryDay,
	}
}

// Preferences returns one preference per Kind, filling the missing ones with disabled defaults.
func (svc *service) Preferences(ctx context.Context, usr user.User) ([]Preference, error) {
	saved, err := svc.repo.ListPreferences(ctx, usr.ID)
	if err != nil {
		return nil, errors.Wrap(err, "listing preferences")
	}
	byKind := make(map[Kind]Preference, len(saved))
	for _, p := range saved {
		byKind[p.Kind] = p
	}

	prefs := make([]Preference, 0, len(Kinds))
	for _, k := range Kinds {
		if p, ok := byKind[k]; ok {
			prefs = append(prefs, p)
		} else {
			prefs = append(prefs, defaultPreference(usr, k))
		}
	}
	return prefs, nil
}

func (svc *service) UpdatePreferences(ctx context.Context, usr user.User, up UpdatePreferences) ([]Preference, error) {
	current, err := svc.Preferences(ctx, usr)
	if err != nil {
		return nil, err
	}
	byKind := make(map[Kind]Preference, len(current))
	for _, p := range current {
		byKind[p.Kind] = p
	}

	for _, in := range up.Preferences {
		p := byKind[in.Kind]
		p.Enabled = in.Enabled
		if p.TimeOfDay != in.TimeOfDay {
			// a new time may fire again today
			p.LastSentDate = ""
		}
		p.TimeOfDay = in.TimeOfDay
		if in.Timezone != "" {
			p.Timezone = in.Timezone
		}
		if in.Weekdays != nil {
			p.Weekdays = *in.Weekdays
		}
		if _, err := svc.repo.UpsertPreference(ctx, p); err != nil {
			return nil, errors.Wrapf(err, "saving %s preference", in.Kind)
		}
	}
	return svc.Preferences(ctx, usr)
}
