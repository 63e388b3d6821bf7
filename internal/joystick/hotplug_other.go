//go:build !linux

package joystick

import (
	"context"
	"errors"
)

type uevent struct {
	Action  string
	DevName string
}

type hotplugMonitor struct{}

func newHotplugMonitor() (*hotplugMonitor, error) {
	return nil, errors.New("joystick hotplug requires linux")
}

func (m *hotplugMonitor) Close() error { return nil }

func (m *hotplugMonitor) Run(ctx context.Context, out chan<- uevent) error {
	close(out)
	<-ctx.Done()
	return ctx.Err()
}
