// Package scheduler runs named one-shot jobs at an absolute time.
//
// Triggering is delegated to robfig/cron with a schedule that fires once and
// then reports no further activations. The scheduler is responsible only for:
//   - registering and replacing jobs by name
//   - cancelling pending jobs
//   - running a fired job with its timeout and panic recovery
package scheduler
