// Package scheduler runs named periodic housekeeping jobs on robfig/cron.
//
// Jobs are upserted by name, so hot reloads can re-register them freely.
// A job that is still running when its next tick arrives is skipped.
package scheduler
