// Package homegraph talks to the assistant platform's home graph API.
//
// Calls are authorised with a service-account key: a self-signed RS256
// assertion is exchanged for an access token that is cached and reused
// until it nears expiry. The Client exposes the two calls the bridge makes,
// ReportState and RequestSync.
package homegraph
