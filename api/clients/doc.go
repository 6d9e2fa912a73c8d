/*
Package clients provides a client for the overlay HTTP API.

OverlayClient requests the same endpoints a browser source polls, which makes
it useful for checking a running server from scripts or CI:

	c := &clients.OverlayClient{ServerAddr: "http://127.0.0.1:8080"}

	value, err := c.Current(ctx)
	if errors.Is(err, clients.ErrNoReading) {
		// the server is up but the provider has nothing recent
	}

	trend, err := c.Trend(ctx)
	png, err := c.Graph(ctx, 3)

Non-200 answers other than the "no reading" 404 are returned as *StatusError.
*/
package clients
