// Package statereport keeps the remote home graph in step with the local
// device registry.
//
// Three kinds of outbound call are made:
//
//   - ReportState pushes a snapshot of one device or of every device.
//   - RequestSync asks the platform to re-fetch the device list.
//   - ScheduleRequestSync debounces RequestSync: every trigger replaces the
//     pending timer, so a burst of device changes produces one call once the
//     window has been quiet.
//
// A periodic full report runs on a long interval to repair any incremental
// report that was lost. Every call is best effort: failures are logged and
// dropped, and nothing is sent until an account is linked.
package statereport
