package interfaces

import (
	"context"
	"errors"
)

var (
	// ErrAuthentication means the provider rejected the configured credentials.
	ErrAuthentication = errors.New("authentication failure")

	// ErrUpstreamUnavailable covers network failures and provider outages.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrInvalidArgument is returned for arguments the gateway refuses to forward.
	ErrInvalidArgument = errors.New("invalid argument")
)

// GlucoseGateway obtains readings from the telemetry provider.
//
// Implementations hold no mutable state beyond their credentials and are safe
// for concurrent use.
type GlucoseGateway interface {
	// CurrentReading returns the latest reading, or nil without an error when
	// the provider has no current data.
	CurrentReading(ctx context.Context) (*GlucoseReading, error)

	// ReadingsSince returns the readings of the last minutes minutes, oldest
	// first. minutes must be positive.
	ReadingsSince(ctx context.Context, minutes int) (ReadingSeries, error)
}
