// Package scheduler parses trigger expressions and runs jobs on them.
//
// A trigger expression is a six-field cron line whose day-of-month and
// day-of-week fields use the recurrence grammar of package recur
// (LW, 15W, MON#2, FRIL, ...). Time-of-day and month fields are handled by
// robfig/cron. The Service owns a cron instance, persists registrations to a
// storage.Store and publishes trigger.* events on the bus.
package scheduler
