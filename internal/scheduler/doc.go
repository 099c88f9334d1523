// Package scheduler runs the bot's periodic jobs (ingestion, tracker probe)
// on one robfig/cron instance.
//
// Each job is wrapped with SkipIfStillRunning, so a slow run never overlaps
// itself and never delays another job. Panics are recovered and counted.
// Detached jobs run on a context that ignores shutdown; Stop waits for them
// up to ShutdownTimeout.
package scheduler
