// Package events provides the in-process notification bus.
//
// The websocket layer subscribes to push device updates to connected
// dashboards; the monitor and toggle handlers publish. Delivery is
// synchronous and best-effort: no queueing, no replay. Current device
// state is always re-fetchable over the API, so missed events are
// harmless.
package events
