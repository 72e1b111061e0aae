//go:build !linux && !mock

package main

import (
	"fmt"
	"log/slog"

	"github.com/shazow/nmctl/nm"
)

// newBus returns an error for unsupported operating systems.
func newBus(logger *slog.Logger) (nm.Bus, error) {
	return nil, fmt.Errorf("unsupported operating system: %w", nm.ErrNotAvailable)
}
