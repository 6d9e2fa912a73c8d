/*
Package dexcom implements interfaces.GlucoseGateway against the Dexcom Share
web services.

Every gateway call is self-contained: it authenticates with the configured
credentials, obtains a session id and reads the latest glucose values. No
session or reading is cached between calls, so a Client can be shared freely
by concurrent HTTP handlers.

# Authentication

  - POST General/AuthenticatePublisherAccount resolves a username to an account id.
    It is skipped when the configured username already is an account UUID.
  - POST General/LoginPublisherAccountById exchanges the account id for a session id.

# Readings

POST Publisher/ReadPublisherLatestGlucoseValues?sessionId=..&minutes=..&maxCount=..
returns readings newest first. The client normalizes them to oldest first.

# Error mapping

  - AccountPasswordInvalid, SSO_Authenticate*, SessionIdNotFound, SessionNotValid
    and null session ids map to interfaces.ErrAuthentication.
  - InvalidArgument maps to interfaces.ErrInvalidArgument.
  - Transport errors, non-200 statuses and unparseable bodies map to
    interfaces.ErrUpstreamUnavailable.
*/
package dexcom
