// Package main (cmd/overlay-client) queries a running overlay server.
//
// Example usage:
//
//	overlay-client current --unit mmol
//	overlay-client trend
//	overlay-client --server-addr http://127.0.0.1:8080 graph --hours 6 -o chart.png
package main
