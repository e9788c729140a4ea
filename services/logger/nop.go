package logsvc

import (
	"go.uber.org/zap"

	"github.com/trezcool/selah/core"
)

// TestLogger discards everything. Tests pass it to services.
type TestLogger struct {
	zl *zap.SugaredLogger
}

var _ core.Logger = (*TestLogger)(nil)

func NewTestLogger() *TestLogger {
	return &TestLogger{zl: zap.NewNop().Sugar()}
}

func (l TestLogger) Debug(msg string, args ...interface{}) { l.zl.Debugw(msg, "args", args) }
func (l TestLogger) Info(msg string, args ...interface{})  { l.zl.Infow(msg, "args", args) }
func (l TestLogger) Warn(msg string, args ...interface{})  { l.zl.Warnw(msg, "args", args) }
func (l TestLogger) Error(msg string, args ...interface{}) { l.zl.Errorw(msg, "args", args) }

// Fatal only logs; unlike RollbarLogger it never exits the process.
func (l TestLogger) Fatal(msg string, args ...interface{}) { l.zl.Errorw(msg, "args", args) }
