//go:build mock

package main

import (
	"log/slog"

	"github.com/shazow/nmctl/nm"
	"github.com/shazow/nmctl/nm/mock"
)

func newBus(logger *slog.Logger) (nm.Bus, error) {
	logger.Warn("using the mock NetworkManager")
	bus := mock.New()
	bus.ActionSleep = mock.DefaultActionSleep
	return bus, nil
}
