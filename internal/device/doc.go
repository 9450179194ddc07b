// Package device persists the Shelly relays known to the backend.
//
// A device row carries its network identity (IP, globally unique), an
// optional room assignment, the last observed on/off state and power
// reading, and a sort_order hint for dashboard layout. Devices enter the
// table through discovery sync: Sync reconciles adapter-reported devices
// by IP in one transaction, updating matched rows and inserting unknown
// IPs as unassigned devices.
//
// Live state between syncs is tracked by the reconciliation monitor in
// the shelly package; this package is the durable record.
package device
