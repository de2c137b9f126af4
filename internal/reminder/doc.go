// Package reminder implements the one-shot reminder scheduler.
//
// A single goroutine (Scheduler.Run) owns a min-heap of pending reminders
// ordered by fire time. It interleaves two event sources: a timer armed for
// the heap head and the Commands channel carrying Add/Cancel/List requests
// from any number of producers.
//
// Liveness is decided by the ActiveSet, not by the heap. Cancel only flips the
// ActiveSet entry to a tombstone; the heap entry stays where it is and is
// discarded when it reaches the head. Every popped entry deletes its ActiveSet
// entry exactly once, so a reminder fires at most once.
//
// Outward effects go through the Notifier interface. The production Notifier
// (Delivery) only enqueues work into the async notifier pipeline, so a slow
// chat API never stalls command intake.
package reminder
