// Package blackboard provides the shared state container of the gateway.
//
// The Blackboard is created once in main and handed to the scheduler and to
// every task. It holds:
//
//   - Devices: the registry of live (open) devices, at most one per serial
//     number, with Observer callbacks on add and remove
//   - Messages: a user-visible event log capped at MessageCapacity entries
//   - Settings: endpoints and device connections (package settings)
//   - a task inbox, so code outside the scheduler (HTTP handlers, observers)
//     can schedule work with AddTask
//   - the clock every due-time comparison uses
//
// Mutations of the registry and the message log schedule a state save task
// through the inbox when a SaveStateFactory is set.
package blackboard
