package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/notification"
)

type notificationRepository struct {
	db *notificationTables
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db.notification}
}

func (repo *notificationRepository) UpsertSubscription(ctx context.Context, s notification.Subscription, exec ...core.DBExecutor) (notification.Subscription, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if old, ok := repo.db.subscriptions[s.Endpoint]; ok {
		s.ID = old.ID
		s.CreatedAt = old.CreatedAt
	}
	repo.db.subscriptions[s.Endpoint] = s
	return s, nil
}

func (repo *notificationRepository) DeleteSubscription(ctx context.Context, endpoint string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.subscriptions[endpoint]; !ok {
		return notification.ErrSubscriptionNotFound
	}
	delete(repo.db.subscriptions, endpoint)
	return nil
}

func (repo *notificationRepository) ListSubscriptions(ctx context.Context, userID string, exec ...core.DBExecutor) ([]notification.Subscription, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	res := make([]notification.Subscription, 0)
	for _, s := range repo.db.subscriptions {
		if s.UserID == userID {
			res = append(res, s)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func sortPreferences(prefs []notification.Preference) {
	sort.Slice(prefs, func(i, j int) bool {
		if prefs[i].UserID != prefs[j].UserID {
			return prefs[i].UserID < prefs[j].UserID
		}
		return prefs[i].Kind < prefs[j].Kind
	})
}

func (repo *notificationRepository) ListPreferences(ctx context.Context, userID string, exec ...core.DBExecutor) ([]notification.Preference, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	res := make([]notification.Preference, 0)
	for _, p := range repo.db.preferences {
		if p.UserID == userID {
			res = append(res, p)
		}
	}
	sortPreferences(res)
	return res, nil
}

func (repo *notificationRepository) ListEnabledPreferences(ctx context.Context, exec ...core.DBExecutor) ([]notification.Preference, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	res := make([]notification.Preference, 0)
	for _, p := range repo.db.preferences {
		if p.Enabled {
			res = append(res, p)
		}
	}
	sortPreferences(res)
	return res, nil
}

func (repo *notificationRepository) UpsertPreference(ctx context.Context, p notification.Preference, exec ...core.DBExecutor) (notification.Preference, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.preferences[key(p.UserID, string(p.Kind))] = p
	return p, nil
}

func (repo *notificationRepository) MarkSent(ctx context.Context, userID string, kind notification.Kind, localDate string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	k := key(userID, string(kind))
	p, ok := repo.db.preferences[k]
	if !ok {
		return notification.ErrPreferenceNotFound
	}
	p.LastSentDate = localDate
	repo.db.preferences[k] = p
	return nil
}
