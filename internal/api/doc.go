// Package api provides the management HTTP API for the bridge.
//
// It exposes the device table, the activity log, runtime settings and a
// status endpoint to operator tooling. Every read and mutation goes through
// the gateway's command channel; the API server never touches loop-owned
// state directly.
//
// The server follows the same lifecycle pattern as the infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
