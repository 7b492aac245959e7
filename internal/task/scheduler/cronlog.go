package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"

	logx "recurd/pkg/logx"
)

// cronLogger routes robfig/cron's internal logging into logx.
// Info is demoted to debug; cron logs every wake-up there.
type cronLogger struct {
	log logx.Logger
}

var _ cron.Logger = cronLogger{}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	if !l.log.Enabled(logx.LevelDebug) {
		return
	}
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	fs := append(kvFields(keysAndValues), logx.Err(err))
	l.log.Error("cron: "+msg, fs...)
}

func kvFields(kv []any) []logx.Field {
	fs := make([]logx.Field, 0, len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		fs = append(fs, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	if len(kv)%2 == 1 {
		fs = append(fs, logx.Any("extra", kv[len(kv)-1]))
	}
	return fs
}
