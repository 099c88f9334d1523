package scheduler

import logx "whbot/pkg/logx"

// cronLogger routes robfig/cron's internal messages through logx.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, logx.KV(keysAndValues...)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(logx.KV(keysAndValues...), logx.Err(err))...)
}
