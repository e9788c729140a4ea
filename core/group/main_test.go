package group_test

import (
	"os"
	"testing"

	"github.com/trezcool/selah/core"
	logsvc "github.com/trezcool/selah/services/logger"
)

func TestMain(m *testing.M) {
	log := logsvc.NewTestLogger()
	core.ParseEmailTemplates(core.NewTestConfig(), log)

	os.Exit(m.Run())
}
