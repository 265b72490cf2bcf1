// Package api implements the gateway's local HTTP API.
//
// The API is a thin view onto the blackboard. Reads return snapshots; writes
// change settings or the device registry and leave the rest to tasks:
// adding a connection injects a connection task through the blackboard
// inbox, and removing a device lets the registry observers disconnect it.
//
// # Routes
//
//	GET    /health                  component health, 503 when one fails
//	GET    /metrics                 Prometheus exposition
//	GET    /api/state               blackboard snapshot
//	GET    /api/messages            message log
//	DELETE /api/messages            clear the log
//	DELETE /api/messages/{id}       delete one message
//	GET    /api/devices             open devices
//	DELETE /api/devices/{sn}        disconnect and forget a device
//	GET    /api/connections         configured connections
//	POST   /api/connections         add a connection and connect it
//	GET    /api/endpoints           harvest endpoints
//	POST   /api/endpoints           add an endpoint
//	DELETE /api/endpoints           remove one (?endpoint=) or all
//	GET    /api/settings            settings document
//	PUT    /api/settings            apply a partial settings document
//
// Errors use one JSON shape: {"status": 404, "code": "not_found", "message": "..."}.
package api
