// Package interfaces defines the core types and contracts of the browser
// source, separating them from the provider client, renderer and HTTP layers.
//
// # Readings
//
// GlucoseReading is an immutable measurement carrying the timestamp (with the
// provider's UTC offset), the raw mg/dL value, the derived mmol/L value and the
// provider trend. ReadingSeries is always ordered oldest first; NewReadingSeries
// normalizes whatever order the provider returned.
//
// # Gateway
//
// GlucoseGateway fronts the telemetry provider. Failures are classified with
// the sentinel errors ErrAuthentication, ErrUpstreamUnavailable and
// ErrInvalidArgument so handlers can pick a status code with errors.Is.
//
// # Render configuration
//
// RenderConfig is the immutable snapshot of unit, thresholds, bounds, colors and
// window length handed to the HTTP layer at construction. It is validated once
// and shared read-only by concurrent requests.
package interfaces
