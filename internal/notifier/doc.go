// Package notifier delivers outbound chat traffic asynchronously.
//
// Callers enqueue kit.Notification jobs (a text message or a reaction on an
// existing message). A worker pool drains the queue through a shared token
// bucket and retries failed sends with jittered exponential backoff. Priority
// jobs get a small reserved lane that workers always check first. Notify
// never blocks: a saturated queue returns ErrQueueFull.
package notifier
