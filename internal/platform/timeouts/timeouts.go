// Package timeouts defines shared timeout constants.
package timeouts

import "time"

// GRPCDial caps the wait time when dialing a backend and probing its
// readiness.
const GRPCDial = 10 * time.Second

// Shutdown limits how long the server waits for in-flight calls and streams
// during graceful shutdown before stopping hard.
const Shutdown = 5 * time.Second
