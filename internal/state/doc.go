// Package state persists the gateway's blackboard snapshot, its settings and
// its device connections.
//
// # Saving state
//
// The blackboard requests a save shortly after every registry or message
// mutation. The request becomes a SaveTask built by Saver.Factory, which
// writes one snapshot to every configured Sink. A PerpetualSaveTask also
// saves every five minutes, retrying after ten seconds when a sink fails.
//
//	saver := state.NewSaver(log, store, mirror)
//	bb.SetSaveStateFactory(saver.Factory())
//	sched.Add(state.NewPerpetualSaveTask(bb.NowMs()+state.FirstSaveDelayMs, bb, saver))
//
// # Sinks
//
//   - Store: the local SQLite database (latest snapshot, settings document,
//     device connections).
//   - RedisMirror: an optional Redis hash plus a pub/sub event per save.
package state
