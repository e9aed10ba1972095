// Package api serves the assistant-facing HTTP surface.
//
// Routes:
//
//	GET  /oauth            login form (authorization endpoint)
//	POST /oauth            credential check, redirect with an authorization code
//	*    /token            code and refresh-token grants
//	POST /smarthome        fulfillment intents (bearer token required)
//	GET  /check            liveness
//	GET  /metrics          runtime and link status
//	POST /local/smarthome  fulfillment from the local network
//	GET  /local/check      local liveness
//
// The local routes are also served on their own listener when the local API
// has a port of its own. Callers outside loopback and private ranges get an
// empty 403 from them.
//
// Lifecycle follows the other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
