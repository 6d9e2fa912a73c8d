/*
Package glucose implements the overlay API consumed by browser sources.

# Routes

  - GET /api/current               current value in the configured unit, 404 "--" without data
  - GET /api/current/{unit}        current value in mgdl or mmol
  - GET /api/current/trend         trend arrow, category in the X-Glucose-Trend header
  - GET /api/last[/{hours}]        HTML table of the readings of the last hours, oldest first
  - GET /api/last[/{hours}]/graph  PNG chart of the readings of the last hours
  - *   /api/*                     403 with an empty body
  - GET /glucose/*, /chart/*       static overlay pages

{hours} defaults to the configured window and must be between 1 and 24.

# Error mapping

  - invalid path parameters and gateway ErrInvalidArgument: 400
  - gateway ErrAuthentication: 502
  - gateway ErrUpstreamUnavailable: 503
  - anything else: 500

Handlers share only the read-only RenderConfig and the stateless gateway, so
concurrent requests never interfere.
*/
package glucose
