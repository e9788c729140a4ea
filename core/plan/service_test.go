package plan_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/gamification"
	"github.com/trezcool/selah/core/plan"
	"github.com/trezcool/selah/core/user"
	logsvc "github.com/trezcool/selah/services/logger"
	inmemdb "github.com/trezcool/selah/storage/database/inmem"
)

type rewarderMock struct {
	mock.Mock
}

func (m *rewarderMock) Reward(ctx context.Context, userID string, kind gamification.Kind, ref string) (gamification.RewardResult, error) {
	args := m.Called(userID, kind, ref)
	return args.Get(0).(gamification.RewardResult), args.Error(1)
}

var (
	teacher = user.User{ID: "t1", Name: "Teacher", Roles: []string{user.RoleTeacher}}
	other   = user.User{ID: "t2", Name: "Other Teacher", Roles: []string{user.RoleTeacher}}
	admin   = user.User{ID: "a1", Name: "Admin", Roles: []string{user.RoleAdmin}}
	reader  = user.User{ID: "r1", Name: "Reader", Roles: []string{user.RoleReader}, Timezone: "UTC"}
)

func setup(t *testing.T) (plan.Service, *rewarderMock) {
	t.Helper()
	rewarder := new(rewarderMock)
	svc := plan.NewService(inmemdb.NewPlanRepository(inmemdb.Open()), rewarder, logsvc.NewTestLogger())
	return svc, rewarder
}

func newPlan(published bool, days ...[]string) plan.NewPlan {
	np := plan.NewPlan{Title: " Gospels ", Published: published}
	for _, refs := range days {
		np.Days = append(np.Days, plan.NewDay{Refs: refs})
	}
	return np
}

func travel(t *testing.T, now time.Time) {
	t.Helper()
	orig := core.NowFunc
	core.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { core.NowFunc = orig })
}

func TestCreateAndList(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	p, err := svc.Create(ctx, teacher, newPlan(true, []string{"MAT.1"}, []string{"MAT.2", "MAT.3"}))
	require.NoError(t, err)
	assert.Equal(t, "Gospels", p.Title)
	require.Len(t, p.Days, 2)
	assert.Equal(t, 2, p.Days[1].Number)
	assert.Equal(t, []string{"MAT.2", "MAT.3"}, p.Days[1].Refs)

	draft, err := svc.Create(ctx, teacher, newPlan(false, []string{"MRK.1"}))
	require.NoError(t, err)

	tests := []struct {
		name   string
		viewer user.User
		want   int
	}{
		{"reader sees published plans", reader, 1},
		{"author sees own drafts", teacher, 2},
		{"other teacher does not see drafts", other, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plans, err := svc.List(ctx, tt.viewer, core.Pagination{})
			require.NoError(t, err)
			assert.Len(t, plans, tt.want)
		})
	}

	t.Run("pagination", func(t *testing.T) {
		plans, err := svc.List(ctx, teacher, core.Pagination{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, plans, 1)
	})

	t.Run("reader cannot enroll in a draft", func(t *testing.T) {
		_, err := svc.Enroll(ctx, reader, draft.ID, plan.Enroll{})
		var verr *core.ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}

func TestPublishAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)
	p, err := svc.Create(ctx, teacher, newPlan(false, []string{"GEN.1"}))
	require.NoError(t, err)

	_, err = svc.SetPublished(ctx, other, p.ID, true)
	assert.Equal(t, core.ErrForbidden, err)
	_, err = svc.SetPublished(ctx, reader, p.ID, true)
	assert.Equal(t, core.ErrForbidden, err)

	published, err := svc.SetPublished(ctx, teacher, p.ID, true)
	require.NoError(t, err)
	assert.True(t, published.Published)

	assert.Equal(t, core.ErrForbidden, svc.Delete(ctx, other, p.ID))
	assert.NoError(t, svc.Delete(ctx, admin, p.ID))
	_, err = svc.Get(ctx, p.ID)
	assert.Equal(t, plan.ErrNotFound, err)
}

func TestEnrollAndCompleteDays(t *testing.T) {
	ctx := context.Background()
	svc, rewarder := setup(t)
	travel(t, time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))

	p, err := svc.Create(ctx, teacher, newPlan(true, []string{"JHN.1"}, []string{"JHN.2"}))
	require.NoError(t, err)

	e, err := svc.Enroll(ctx, reader, p.ID, plan.Enroll{})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-10", e.StartDate)

	again, err := svc.Enroll(ctx, reader, p.ID, plan.Enroll{StartDate: "2024-04-01"})
	require.NoError(t, err)
	assert.Equal(t, e.ID, again.ID, "enrolling twice returns the existing enrollment")

	rewarder.On("Reward", reader.ID, gamification.KindPlanDay, p.ID+":2").
		Return(gamification.RewardResult{XPGained: 20}, nil).Once()
	res, err := svc.CompleteDay(ctx, reader, p.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, res.Enrollment.CompletedDays)
	require.Len(t, res.Rewards, 1)

	t.Run("completing a day twice changes nothing", func(t *testing.T) {
		res, err := svc.CompleteDay(ctx, reader, p.ID, 2)
		require.NoError(t, err)
		assert.Empty(t, res.Rewards)
	})

	t.Run("day out of range", func(t *testing.T) {
		for _, day := range []int{0, 3} {
			_, err := svc.CompleteDay(ctx, reader, p.ID, day)
			var verr *core.ValidationError
			assert.ErrorAs(t, err, &verr, "day %d", day)
		}
	})

	t.Run("last day completes the plan", func(t *testing.T) {
		rewarder.On("Reward", reader.ID, gamification.KindPlanDay, p.ID+":1").
			Return(gamification.RewardResult{XPGained: 20}, nil).Once()
		rewarder.On("Reward", reader.ID, gamification.KindPlanComplete, p.ID).
			Return(gamification.RewardResult{}, errors.New("db down")).Once()

		res, err := svc.CompleteDay(ctx, reader, p.ID, 1)
		require.NoError(t, err, "reward failures are not fatal")
		assert.Equal(t, []int{1, 2}, res.Enrollment.CompletedDays)
		assert.False(t, res.Enrollment.CompletedAt.IsZero())
		assert.Len(t, res.Rewards, 1)
	})

	t.Run("my plans", func(t *testing.T) {
		travel(t, time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC))
		progress, err := svc.MyPlans(ctx, reader)
		require.NoError(t, err)
		require.Len(t, progress, 1)
		assert.Equal(t, "Gospels", progress[0].Title)
		assert.Equal(t, 2, progress[0].TotalDays)
		assert.Equal(t, 2, progress[0].Today)
		assert.Equal(t, float64(100), progress[0].Percent)
	})

	rewarder.AssertExpectations(t)
}

func TestCompleteDayWithoutEnrollment(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)
	p, err := svc.Create(ctx, teacher, newPlan(true, []string{"JHN.1"}))
	require.NoError(t, err)

	_, err = svc.CompleteDay(ctx, reader, p.ID, 1)
	assert.Equal(t, plan.ErrEnrollmentNotFound, err)
}

func TestToday(t *testing.T) {
	e := plan.Enrollment{StartDate: "2024-03-10"}
	tests := []struct {
		now  time.Time
		tz   string
		want int
	}{
		{time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC), "UTC", 0},
		{time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), "UTC", 1},
		{time.Date(2024, 3, 12, 23, 0, 0, 0, time.UTC), "UTC", 3},
		{time.Date(2024, 3, 9, 23, 30, 0, 0, time.UTC), "Africa/Kinshasa", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, plan.Today(e, tt.now, tt.tz), "%s %s", tt.now, tt.tz)
	}
}
