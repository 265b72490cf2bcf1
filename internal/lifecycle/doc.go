// Package lifecycle opens device connections and keeps trying until the
// device is registered on the blackboard or no longer wanted.
//
// A ConnectionTask moves through these states:
//
//	ATTEMPT_CONNECT ──ok──▶ registered (harvest takes over)
//	      │
//	      └─fail──▶ FindDevice ──found──▶ retry in 5s with the new handle
//	                     │                     │
//	                     │                     └─fail again──▶ give up, config removed
//	                     └─not found──▶ retry in 5 min
//
// One address change is tolerated. A rediscovered handle that still cannot
// connect is treated as gone and its configuration is removed.
//
// SettingsListener starts connection tasks when the backend pushes new
// device connections, and Bootstrap schedules the initial set at start-up.
package lifecycle
