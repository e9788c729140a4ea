package prayer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/gamification"
	"github.com/trezcool/selah/core/prayer"
	logsvc "github.com/trezcool/selah/services/logger"
	inmemdb "github.com/trezcool/selah/storage/database/inmem"
)

const groupID = "0b8e6f4e-3c43-4d4f-9a53-0f1f3b8fa001"

type members map[string]bool

func (m members) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	return m[groupID+"/"+userID], nil
}

type rewarder struct {
	refs []string
}

func (r *rewarder) Reward(ctx context.Context, userID string, kind gamification.Kind, ref string) (gamification.RewardResult, error) {
	r.refs = append(r.refs, string(kind)+":"+ref)
	return gamification.RewardResult{}, nil
}

func setup(t *testing.T) (prayer.Service, *rewarder) {
	t.Helper()
	rw := new(rewarder)
	m := members{groupID + "/alice": true, groupID + "/bob": true}
	svc := prayer.NewService(inmemdb.NewPrayerRepository(inmemdb.Open()), m, rw, logsvc.NewTestLogger())
	return svc, rw
}

func boolPtr(b bool) *bool { return &b }

func TestCreate(t *testing.T) {
	ctx := context.Background()
	svc, rw := setup(t)

	personal, err := svc.Create(ctx, "alice", prayer.NewPrayer{Title: " For my family "})
	require.NoError(t, err)
	assert.Equal(t, "For my family", personal.Title)
	assert.True(t, personal.Private, "personal prayers are private by default")

	shared, err := svc.Create(ctx, "alice", prayer.NewPrayer{Title: "Healing", GroupID: groupID})
	require.NoError(t, err)
	assert.False(t, shared.Private, "group prayers are public by default")

	hidden, err := svc.Create(ctx, "alice", prayer.NewPrayer{Title: "Work", GroupID: groupID, Private: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, hidden.Private)

	_, err = svc.Create(ctx, "carol", prayer.NewPrayer{Title: "Peace", GroupID: groupID})
	assert.Equal(t, core.ErrForbidden, err)

	assert.Equal(t, []string{"prayer:" + personal.ID, "prayer:" + shared.ID, "prayer:" + hidden.ID}, rw.refs)
}

func TestVisibility(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	personal, err := svc.Create(ctx, "alice", prayer.NewPrayer{Title: "Mine"})
	require.NoError(t, err)
	shared, err := svc.Create(ctx, "alice", prayer.NewPrayer{Title: "Ours", GroupID: groupID})
	require.NoError(t, err)
	hidden, err := svc.Create(ctx, "alice", prayer.NewPrayer{Title: "Hidden", GroupID: groupID, Private: boolPtr(true)})
	require.NoError(t, err)

	tests := []struct {
		name    string
		userID  string
		id      string
		visible bool
	}{
		{"owner sees personal", "alice", personal.ID, true},
		{"owner sees private group prayer", "alice", hidden.ID, true},
		{"member sees shared", "bob", shared.ID, true},
		{"member does not see personal", "bob", personal.ID, false},
		{"member does not see private group prayer", "bob", hidden.ID, false},
		{"non-member does not see shared", "carol", shared.ID, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := svc.Get(ctx, tt.userID, tt.id)
			if tt.visible {
				require.NoError(t, err)
				assert.Equal(t, tt.id, p.ID)
			} else {
				assert.Equal(t, prayer.ErrNotFound, err)
			}
		})
	}

	t.Run("group list", func(t *testing.T) {
		prayers, err := svc.ForGroup(ctx, "bob", groupID, core.Pagination{})
		require.NoError(t, err)
		require.Len(t, prayers, 1)
		assert.Equal(t, shared.ID, prayers[0].ID)

		_, err = svc.ForGroup(ctx, "carol", groupID, core.Pagination{})
		assert.Equal(t, core.ErrForbidden, err)
	})

	t.Run("mine", func(t *testing.T) {
		prayers, err := svc.Mine(ctx, "alice", core.Pagination{})
		require.NoError(t, err)
		assert.Len(t, prayers, 3)

		prayers, err = svc.Mine(ctx, "bob", core.Pagination{})
		require.NoError(t, err)
		assert.Empty(t, prayers)
	})
}

func TestUpdateAndAnswer(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)
	p, err := svc.Create(ctx, "alice", prayer.NewPrayer{Title: "Exam", GroupID: groupID})
	require.NoError(t, err)

	_, err = svc.Update(ctx, "bob", p.ID, prayer.UpdatePrayer{Title: "Hijack"})
	assert.Equal(t, prayer.ErrNotFound, err)

	p, err = svc.Update(ctx, "alice", p.ID, prayer.UpdatePrayer{Title: "Final exam", Private: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, "Final exam", p.Title)
	assert.True(t, p.Private)

	p, err = svc.MarkAnswered(ctx, "alice", p.ID, true)
	require.NoError(t, err)
	require.True(t, p.IsAnswered())
	answeredAt := p.AnsweredAt

	p, err = svc.MarkAnswered(ctx, "alice", p.ID, true)
	require.NoError(t, err)
	assert.Equal(t, answeredAt, p.AnsweredAt, "answering twice keeps the first date")

	p, err = svc.MarkAnswered(ctx, "alice", p.ID, false)
	require.NoError(t, err)
	assert.False(t, p.IsAnswered())

	assert.Equal(t, prayer.ErrNotFound, svc.Delete(ctx, "bob", p.ID))
	require.NoError(t, svc.Delete(ctx, "alice", p.ID))
	_, err = svc.Get(ctx, "alice", p.ID)
	assert.Equal(t, prayer.ErrNotFound, err)
}
