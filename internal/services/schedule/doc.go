// Package schedule provides the bot's periodic job runner.
//
// # Overview
//
// Jobs are registered under a stable, human-readable name (e.g.
// "remind:calendar") together with a fixed interval. Triggers are driven by a
// robfig/cron runner; interval jobs use a custom cron.Schedule so the first
// run happens one full interval after Start (never immediately).
//
// # Concurrency and overlap
//
// Each job carries a single-flight guard: if a job is still running when its
// interval elapses again, that firing is skipped (logged at debug). This keeps
// slow collaborators from stacking concurrent ticks of the same job.
//
// # Failure semantics
//
// A job returning an error, or panicking, is logged and recorded in the run
// history; its future runs and all other jobs are unaffected.
//
// # Lifecycle
//
// Register before Start. Stop cancels every trigger; a run already in flight
// is allowed to complete, and nothing fires afterwards. Definitions survive
// Stop, so the service can be restarted (e.g. on config reload).
package schedule
