// Package scheduler runs gateway tasks on a bounded worker pool in due-time
// order.
//
// # Dispatch
//
//	Add ──▶ min-heap (due, seq) ──▶ Run loop ──▶ ants pool (N workers)
//	                 ▲                                  │
//	                 └──────── follow-up tasks ◀────────┘
//
// The Run loop sleeps while the pool is saturated, the queue is empty or the
// earliest task is not yet due. Add, injected tasks (via the Source inbox)
// and finishing workers wake it immediately.
//
// A blocking task (a device read waiting on a socket timeout) occupies one
// worker until it returns; the remaining workers keep serving other devices.
// There is no cancellation of a running task.
//
// # Usage
//
//	s, err := scheduler.New(bb, scheduler.Config{Workers: 4, Logger: log})
//	if err != nil {
//	    return err
//	}
//	s.Add(firstTask)
//	err = s.Run(ctx) // returns after Stop, task.Stop() or ctx cancel
package scheduler
