package notification_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/notification"
	"github.com/trezcool/selah/core/user"
	inmemdb "github.com/trezcool/selah/storage/database/inmem"
)

func newSubscription(endpoint string) notification.NewSubscription {
	var ns notification.NewSubscription
	ns.Endpoint = endpoint
	ns.Keys.P256dh = "BNcRdreALRFXTkOOUHK1EtK2wtaz5Ry4YfYCA_0QTpQtUbVlUls0VJXg7A8u-Ts1XbjhazAkj7I99e8QcYP7DkM"
	ns.Keys.Auth = "tBHItJI5svbpez7KI4CCXg"
	return ns
}

func TestSubscriptions(t *testing.T) {
	ctx := context.Background()
	conf := core.NewTestConfig()
	conf.WebPush.VAPIDPublicKey = "public-key"
	svc := notification.NewService(conf, inmemdb.NewNotificationRepository(inmemdb.Open()))
	assert.Equal(t, "public-key", svc.VAPIDPublicKey())

	const endpoint = "https://push.example.com/send/abc"
	sub, err := svc.Subscribe(ctx, "alice", newSubscription(endpoint))
	require.NoError(t, err)
	assert.Equal(t, endpoint, sub.Endpoint)

	again, err := svc.Subscribe(ctx, "alice", newSubscription(endpoint))
	require.NoError(t, err)
	assert.Equal(t, sub.ID, again.ID, "subscribing twice keeps one subscription")

	t.Run("browser changes hands", func(t *testing.T) {
		moved, err := svc.Subscribe(ctx, "bob", newSubscription(endpoint))
		require.NoError(t, err)
		assert.Equal(t, sub.ID, moved.ID)

		assert.Equal(t, notification.ErrSubscriptionNotFound, svc.Unsubscribe(ctx, "alice", endpoint))
		require.NoError(t, svc.Unsubscribe(ctx, "bob", endpoint))
		assert.Equal(t, notification.ErrSubscriptionNotFound, svc.Unsubscribe(ctx, "bob", endpoint))
	})
}

func TestPreferences(t *testing.T) {
	ctx := context.Background()
	svc := notification.NewService(core.NewTestConfig(), inmemdb.NewNotificationRepository(inmemdb.Open()))
	usr := user.User{ID: "alice", Timezone: "Africa/Kinshasa"}

	prefs, err := svc.Preferences(ctx, usr)
	require.NoError(t, err)
	require.Len(t, prefs, len(notification.Kinds))
	for i, p := range prefs {
		assert.Equal(t, notification.Kinds[i], p.Kind)
		assert.False(t, p.Enabled, "disabled by default")
		assert.Equal(t, "08:00", p.TimeOfDay)
		assert.Equal(t, "Africa/Kinshasa", p.Timezone)
		assert.Equal(t, notification.EveryDay, p.Weekdays)
	}

	weekends := 1<<0 | 1<<6
	prefs, err = svc.UpdatePreferences(ctx, usr, notification.UpdatePreferences{
		Preferences: []notification.PreferenceInput{
			{Kind: notification.KindStreakReminder, Enabled: true, TimeOfDay: "20:30", Weekdays: &weekends},
			{Kind: notification.KindDailyVerse, Enabled: true, TimeOfDay: "07:00", Timezone: "Europe/Paris"},
		},
	})
	require.NoError(t, err)
	require.Len(t, prefs, 3)

	verse, reminder, streak := prefs[0], prefs[1], prefs[2]
	assert.True(t, verse.Enabled)
	assert.Equal(t, "07:00", verse.TimeOfDay)
	assert.Equal(t, "Europe/Paris", verse.Timezone)
	assert.Equal(t, notification.EveryDay, verse.Weekdays)
	assert.False(t, reminder.Enabled)
	assert.True(t, streak.Enabled)
	assert.Equal(t, weekends, streak.Weekdays)
	assert.Equal(t, "Africa/Kinshasa", streak.Timezone)
}
