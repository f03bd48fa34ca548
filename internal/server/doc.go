// Package server hosts the Fiber diagnostics surface used during interactive
// collection sessions. Every route lives under /-/ so it can never be confused
// with a proxied origin path; anything else answers 404. The app wires request
// IDs and panic recovery, and leaves route registration to the routes package
// so the CLI decides which endpoints to expose.
package server
