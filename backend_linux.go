//go:build linux && !mock

package main

import (
	"log/slog"

	"github.com/shazow/nmctl/nm"
	"github.com/shazow/nmctl/nm/systembus"
)

func newBus(logger *slog.Logger) (nm.Bus, error) {
	bus, err := systembus.New()
	if err != nil {
		return nil, err
	}
	logger.Debug("connected to the system bus")
	return bus, nil
}
