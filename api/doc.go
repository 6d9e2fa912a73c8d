// Package api holds the types shared between the overlay HTTP server, its
// handlers and its clients: listener configuration, content types and the
// wire-level constants of the /api surface.
package api
