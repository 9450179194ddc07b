// Package shelly is the client side of the external discovery adapter.
//
// The adapter is a separate service that owns low-level Shelly device
// discovery and control; this package consumes its HTTP API. It has
// three pieces: Client (request/response passthrough with the error
// policy described on the type), Monitor (the 1-second background
// reconciliation loop that turns adapter polls into deviceUpdate
// events), and SyncDatabase (one-shot reconciliation into the durable
// device table, keyed by IP).
package shelly
