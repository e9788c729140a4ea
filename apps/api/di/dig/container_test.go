package digcontainer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/user"
	logsvc "github.com/trezcool/selah/services/logger"
)

func TestNewAssistant(t *testing.T) {
	logger := logsvc.NewTestLogger()

	t.Run("disabled without a key", func(t *testing.T) {
		a := newAssistant(&core.Config{}, logger)
		assert.True(t, a == nil, "the interface itself must be nil")
	})

	t.Run("enabled with a key", func(t *testing.T) {
		conf := &core.Config{}
		conf.OpenAI.APIKey = "sk-test"
		assert.NotNil(t, newAssistant(conf, logger))
	})
}

func TestNewStorage_memory(t *testing.T) {
	conf := &core.Config{}
	conf.Database.Engine = EngineMemory

	s, err := newStorage(conf, DBLoggerParam{Logger: logsvc.NewTestLogger()})
	require.NoError(t, err)
	assert.Nil(t, s.HealthCheck, "no database to ping")
	assert.NoError(t, s.Closer())

	ctx := context.Background()
	usr, err := s.Users.CreateUser(ctx, user.User{ID: "u-1", Username: "hero", Email: "hero@selah.test", IsActive: true})
	require.NoError(t, err)
	got, err := s.Users.GetUser(ctx, user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.Equal(t, "hero", got.Username)

	assert.NotNil(t, s.Tx)
	assert.NotNil(t, s.Notifications)
	assert.NotNil(t, s.Donations)
}

func TestServiceAdapters(t *testing.T) {
	conf := &core.Config{}
	logger := logsvc.NewTestLogger()

	assert.NotNil(t, newPusher(conf))
	assert.NotNil(t, newBibleService(conf))
	assert.NotNil(t, newDonationService(conf, nil, nil, nil, logger))
}
