// Package harvest polls registered devices and batches their samples for
// transport.
//
// Each open device gets one Task. The task reads a sample per execution,
// keeps it in its barn and, at most every 10 seconds (or immediately when
// the device goes away), hands the whole barn to one transport task per
// configured endpoint. Connection loss disconnects the handle and starts a
// lifecycle.ConnectionTask for a fresh one 30 seconds later.
//
// Factory watches the blackboard registry and starts a Task for every
// device that is added.
package harvest
