// Package main (cmd/browser-source) runs the overlay server as a long-lived
// host process.
//
// The process plays the host controller: a single event loop receives
// lifecycle notifications, OS signals and configuration file changes, and
// hands every lifecycle call to a worker goroutine so the loop itself never
// blocks.
//
//   - SIGHUP restarts the listener (and retries a failed bind)
//   - SIGINT/SIGTERM stop the listener, honoring the grace period, and exit
//   - a changed configuration file is reloaded and the listener restarted with
//     the new snapshot; an invalid file keeps the previous one
//
// Prometheus metrics are served on --metrics-addr for the whole process
// lifetime, independent of listener restarts.
//
// Example usage:
//
//	browser-source --config ~/.config/browser-source.yaml --listen-addr 127.0.0.1:8080
//
// Add http://127.0.0.1:8080/glucose/ or http://127.0.0.1:8080/chart/ as a
// browser source in the streaming software.
package main
