package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/gamification"
	"github.com/trezcool/selah/core/notification"
	"github.com/trezcool/selah/core/user"
	logsvc "github.com/trezcool/selah/services/logger"
	"github.com/trezcool/selah/storage/database"
	inmemdb "github.com/trezcool/selah/storage/database/inmem"
	"github.com/trezcool/selah/tests"
)

var (
	usrRepo   user.Repository
	notifRepo notification.Repository
	pushes    *pusherMock
)

type pusherMock struct {
	sent []notification.Subscription
}

func (m *pusherMock) Push(ctx context.Context, sub notification.Subscription, payload []byte) error {
	m.sent = append(m.sent, sub)
	return nil
}

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	t.Helper()

	conf := core.NewTestConfig()
	log := logsvc.NewTestLogger()

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo = inmemdb.NewUserRepository(db)
	notifRepo = inmemdb.NewNotificationRepository(db)
	pushes = &pusherMock{}

	gameSvc := gamification.NewService(inmemdb.NewGamificationRepository(db), db, nil, log)

	// start CLI
	out := new(bytes.Buffer)
	return &commandLine{
		usrRepo:   usrRepo,
		gameSvc:   gameSvc,
		scheduler: notification.NewScheduler(conf, notifRepo, pushes, gameSvc, nil, nil, log),
		out:       out,
	}, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_help(t *testing.T) {
	cli, _ := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErrStr: `unknown command "lol" for "admin"`},
		{name: "achievements: no subcommand", args: []string{"achievements"}, wantErr: errHelp},
		{name: "notify: no subcommand", args: []string{"notify"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	var gotCommand string
	gooseRun := database.GooseRun
	t.Cleanup(func() { database.GooseRun = gooseRun })
	database.GooseRun = func(command string, db *sql.DB, args ...string) error {
		gotCommand = command
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "reading_plans", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			gotCommand = ""
			err := cli.run(args)
			tt.check(t, err)
			if err == nil {
				assert.Equal(t, tt.args[1], gotCommand)
			}
		})
	}
}

func mockPassword(t *testing.T, pwd string) {
	t.Helper()
	readPassword := readPasswordFunc
	t.Cleanup(func() { readPasswordFunc = readPassword })
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli, out := setup(t)

	existing := testutil.CreateReader(t, usrRepo, "awe")

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "email required", args: []string{"adduser", "--username", "lol"}, extra: extra{pwd: "lol"}, wantErr: errHelp},
		{name: "password required", args: []string{"adduser", "--username", "lol", "--email", "lol@selah.test"}, wantErr: errHelp},
		{name: "unknown role", args: []string{"adduser", "--username", "lol", "--email", "lol@selah.test", "--role", "pope:"}, extra: extra{pwd: "lol"}, wantErrStr: `unknown role "pope:"`},
		{name: "create admin", args: []string{"adduser", "--username", " Boss ", "--email", "BOSS@selah.test", "--name", "The Boss", "--role", user.RoleAdmin}, extra: extra{pwd: "lol"}},
		{name: "update existing", args: []string{"adduser", "--username", existing.Username, "--email", existing.Email, "--role", user.RoleTeacher}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			pwd := ""
			if e, ok := tt.extra.(extra); ok {
				pwd = e.pwd
			}
			mockPassword(t, pwd)
			tt.check(t, cli.run(args))
		})
	}

	boss, err := usrRepo.GetUser(context.Background(), user.GetFilter{Username: "boss"})
	require.NoError(t, err)
	assert.Equal(t, "boss@selah.test", boss.Email)
	assert.Equal(t, "The Boss", boss.Name)
	assert.True(t, boss.IsAdmin())
	assert.True(t, boss.IsActive)
	assert.NoError(t, boss.CheckPassword("lol"))
	assert.Contains(t, out.String(), `user "boss" saved`)

	updated, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: existing.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{user.RoleTeacher}, updated.Roles)
	assert.NoError(t, updated.CheckPassword("lmao"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, _ := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.cd", "mdr", nil, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "--username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "--username", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "--username", usr.Username}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "--username", "AWE@test.cd"}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			pwd := ""
			if e, ok := tt.extra.(extra); ok {
				pwd = e.pwd
			}
			mockPassword(t, pwd)

			err := cli.run(args)
			tt.check(t, err)
			if err == nil {
				refreshedUsr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
				require.NoError(t, err)
				assert.NoError(t, refreshedUsr.CheckPassword(pwd))
			}
		})
	}
}

func Test_commandLine_users(t *testing.T) {
	cli, out := setup(t)

	testutil.CreateReader(t, usrRepo, "zoe")
	testutil.CreateTeacher(t, usrRepo, "abel")

	require.NoError(t, cli.run([]string{"admin", "users"}))
	table := out.String()
	assert.Contains(t, table, "USERNAME")
	assert.Contains(t, table, "zoe@selah.test")
	assert.Less(t, bytes.Index(out.Bytes(), []byte("abel")), bytes.Index(out.Bytes(), []byte("zoe")), "ordered by username")

	out.Reset()
	require.NoError(t, cli.run([]string{"admin", "users", "--role", user.RoleTeacher}))
	assert.Contains(t, out.String(), "abel")
	assert.NotContains(t, out.String(), "zoe")
}

func Test_commandLine_achievementsSeed(t *testing.T) {
	cli, out := setup(t)

	require.NoError(t, cli.run([]string{"admin", "achievements", "seed"}))
	assert.Equal(t, fmt.Sprintf("%d achievements seeded\n", len(gamification.DefaultAchievements)), out.String())
}

func Test_commandLine_notifyRunOnce(t *testing.T) {
	cli, out := setup(t)

	nowFunc := core.NowFunc
	t.Cleanup(func() { core.NowFunc = nowFunc })
	core.NowFunc = func() time.Time { return time.Date(2026, 10, 18, 8, 0, 30, 0, time.UTC) }

	ctx := context.Background()
	usr := testutil.CreateReader(t, usrRepo, "hero")
	_, err := notifRepo.UpsertSubscription(ctx, notification.Subscription{ID: "sub-1", UserID: usr.ID, Endpoint: "https://push.example.com/send/abc"})
	require.NoError(t, err)
	_, err = notifRepo.UpsertPreference(ctx, notification.Preference{
		UserID:    usr.ID,
		Kind:      notification.KindReadingReminder,
		Enabled:   true,
		TimeOfDay: "08:00",
		Timezone:  "UTC",
		Weekdays:  notification.EveryDay,
	})
	require.NoError(t, err)

	require.NoError(t, cli.run([]string{"admin", "notify", "run-once"}))
	assert.Equal(t, "1 checked, 1 sent, 0 failed, 0 expired\n", out.String())
	assert.Len(t, pushes.sent, 1)

	out.Reset()
	require.NoError(t, cli.run([]string{"admin", "notify", "run-once"}))
	assert.Equal(t, "1 checked, 0 sent, 0 failed, 0 expired\n", out.String(), "sent once per day")
}
