// Package actuation translates charge decisions into ordered charger and car
// commands.
package actuation

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by a Port when the target for a command has no
// configured entity.
var ErrNotConfigured = errors.New("actuation target not configured")

// Port issues commands to the charger and the car.
type Port interface {
	SetSwitch(ctx context.Context, on bool) error
	SetCurrentLimit(ctx context.Context, amps int) error
	SetCarLimit(ctx context.Context, soc int) error
	RequestRefresh(ctx context.Context) error
}
