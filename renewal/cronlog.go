package renewal

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonwraymond/secretops/observe"
)

// cronLogger routes scheduler diagnostics to an observe.Logger.
type cronLogger struct {
	log observe.Logger
}

var _ cron.Logger = cronLogger{}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(context.Background(), "cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(context.Background(), "cron: "+msg, append(kvFields(keysAndValues), observe.Err(err))...)
}

func kvFields(kv []any) []observe.Field {
	fields := make([]observe.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, observe.F(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}

// every is a fixed-interval cron schedule without cron.Every's one-second
// rounding.
type every struct {
	d time.Duration
}

func (e every) Next(t time.Time) time.Time {
	return t.Add(e.d)
}
