package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/notification"
)

const (
	subscriptionColumns = "id, user_id, endpoint, p256dh, auth, created_at"
	preferenceColumns   = "user_id, kind, enabled, time_of_day, timezone, weekdays, last_sent_date"
)

type subscriptionRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Endpoint  string    `db:"endpoint"`
	P256dh    string    `db:"p256dh"`
	Auth      string    `db:"auth"`
	CreatedAt time.Time `db:"created_at"`
}

type preferenceRow struct {
	UserID       string `db:"user_id"`
	Kind         string `db:"kind"`
	Enabled      bool   `db:"enabled"`
	TimeOfDay    string `db:"time_of_day"`
	Timezone     string `db:"timezone"`
	Weekdays     int    `db:"weekdays"`
	LastSentDate string `db:"last_sent_date"`
}

type notificationRepository struct {
	baseRepository
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(exec core.DBExecutor) notification.Repository {
	return &notificationRepository{baseRepository{exec: exec}}
}

func unboilSubscription(row subscriptionRow) notification.Subscription {
	return notification.Subscription{
		ID:        row.ID,
		UserID:    row.UserID,
		Endpoint:  row.Endpoint,
		P256dh:    row.P256dh,
		Auth:      row.Auth,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

func unboilPreference(row preferenceRow) notification.Preference {
	return notification.Preference{
		UserID:       row.UserID,
		Kind:         notification.Kind(row.Kind),
		Enabled:      row.Enabled,
		TimeOfDay:    row.TimeOfDay,
		Timezone:     row.Timezone,
		Weekdays:     row.Weekdays,
		LastSentDate: row.LastSentDate,
	}
}

// UpsertSubscription keeps the id and creation time of an endpoint already on file.
func (repo notificationRepository) UpsertSubscription(ctx context.Context, s notification.Subscription, exec ...core.DBExecutor) (notification.Subscription, error) {
	exe := repo.getExec(exec)
	q := exe.Rebind(`INSERT INTO push_subscriptions (` + subscriptionColumns + `) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (endpoint) DO UPDATE SET user_id = EXCLUDED.user_id, p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth
		RETURNING ` + subscriptionColumns)
	var row subscriptionRow
	if err := exe.GetContext(ctx, &row, q, s.ID, s.UserID, s.Endpoint, s.P256dh, s.Auth, s.CreatedAt.UTC()); err != nil {
		return notification.Subscription{}, errors.Wrap(err, "upserting subscription")
	}
	return unboilSubscription(row), nil
}

func (repo notificationRepository) DeleteSubscription(ctx context.Context, endpoint string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM push_subscriptions WHERE endpoint = ?"), endpoint)
	if err != nil {
		return errors.Wrap(err, "deleting subscription")
	}
	return rowsAffected(res, notification.ErrSubscriptionNotFound, "deleting subscription")
}

func (repo notificationRepository) ListSubscriptions(ctx context.Context, userID string, exec ...core.DBExecutor) ([]notification.Subscription, error) {
	exe := repo.getExec(exec)
	var rows []subscriptionRow
	q := exe.Rebind("SELECT " + subscriptionColumns + " FROM push_subscriptions WHERE user_id = ? ORDER BY created_at")
	if err := exe.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "listing subscriptions")
	}
	res := make([]notification.Subscription, 0, len(rows))
	for _, r := range rows {
		res = append(res, unboilSubscription(r))
	}
	return res, nil
}

func (repo notificationRepository) listPreferences(ctx context.Context, w *where, exec []core.DBExecutor) ([]notification.Preference, error) {
	exe := repo.getExec(exec)
	var rows []preferenceRow
	q := exe.Rebind("SELECT " + preferenceColumns + " FROM notification_preferences" + w.String() + " ORDER BY user_id, kind")
	if err := exe.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "listing preferences")
	}
	res := make([]notification.Preference, 0, len(rows))
	for _, r := range rows {
		res = append(res, unboilPreference(r))
	}
	return res, nil
}

func (repo notificationRepository) ListPreferences(ctx context.Context, userID string, exec ...core.DBExecutor) ([]notification.Preference, error) {
	var w where
	w.add("user_id = ?", userID)
	return repo.listPreferences(ctx, &w, exec)
}

func (repo notificationRepository) ListEnabledPreferences(ctx context.Context, exec ...core.DBExecutor) ([]notification.Preference, error) {
	var w where
	w.add("enabled")
	return repo.listPreferences(ctx, &w, exec)
}

func (repo notificationRepository) UpsertPreference(ctx context.Context, p notification.Preference, exec ...core.DBExecutor) (notification.Preference, error) {
	row := preferenceRow{
		UserID:       p.UserID,
		Kind:         string(p.Kind),
		Enabled:      p.Enabled,
		TimeOfDay:    p.TimeOfDay,
		Timezone:     p.Timezone,
		Weekdays:     p.Weekdays,
		LastSentDate: p.LastSentDate,
	}
	q := `INSERT INTO notification_preferences (` + preferenceColumns + `)
		VALUES (:user_id, :kind, :enabled, :time_of_day, :timezone, :weekdays, :last_sent_date)
		ON CONFLICT (user_id, kind) DO UPDATE SET enabled = EXCLUDED.enabled, time_of_day = EXCLUDED.time_of_day,
			timezone = EXCLUDED.timezone, weekdays = EXCLUDED.weekdays, last_sent_date = EXCLUDED.last_sent_date`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, row); err != nil {
		return notification.Preference{}, errors.Wrap(err, "upserting preference")
	}
	return p, nil
}

func (repo notificationRepository) MarkSent(ctx context.Context, userID string, kind notification.Kind, localDate string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	q := exe.Rebind("UPDATE notification_preferences SET last_sent_date = ? WHERE user_id = ? AND kind = ?")
	res, err := exe.ExecContext(ctx, q, localDate, userID, string(kind))
	if err != nil {
		return errors.Wrap(err, "marking notification sent")
	}
	return rowsAffected(res, notification.ErrPreferenceNotFound, "marking notification sent")
}
