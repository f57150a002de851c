// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package health reports whether the service and its document store can
// serve requests.
package health

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// Monitor reports its current state of health.
type Monitor interface {
	Healthy(context.Context) (bool, error)
}

// MonitorFunc is a func type of the [Monitor] interface.
type MonitorFunc func(context.Context) (bool, error)

// Healthy implements the [Monitor] interface.
func (f MonitorFunc) Healthy(ctx context.Context) (bool, error) {
	return f(ctx)
}

// Binary is a [Monitor] which is either healthy or unhealthy. The zero
// value is unhealthy. It is safe for concurrent use.
type Binary struct {
	healthy atomic.Bool
}

// MarkUnhealthy
func (b *Binary) MarkUnhealthy() {
	b.healthy.Store(false)
}

// MarkHealthy
func (b *Binary) MarkHealthy() {
	b.healthy.Store(true)
}

// Healthy implements the [Monitor] interface.
func (b *Binary) Healthy(ctx context.Context) (bool, error) {
	return b.healthy.Load(), nil
}

// Pinger is implemented by connections which can be checked for
// reachability, e.g. *store.Store.
type Pinger interface {
	Ping(context.Context) error
}

// PingMonitor is healthy while its [Pinger] answers within Timeout.
type PingMonitor struct {
	Pinger  Pinger
	Timeout time.Duration
}

// Ping returns a [PingMonitor] with a one second timeout.
func Ping(p Pinger) PingMonitor {
	return PingMonitor{Pinger: p, Timeout: time.Second}
}

// Healthy implements the [Monitor] interface. A failed ping is reported
// as unhealthy along with the ping error.
func (m PingMonitor) Healthy(ctx context.Context) (bool, error) {
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}

	err := m.Pinger.Ping(ctx)
	if err != nil {
		return false, err
	}
	return true, nil
}

// AndMonitor is healthy only when every one of its monitors is healthy.
// It stops at the first unhealthy monitor or error.
type AndMonitor []Monitor

// And
func And(ms ...Monitor) AndMonitor {
	return AndMonitor(ms)
}

// Healthy implements the [Monitor] interface.
func (am AndMonitor) Healthy(ctx context.Context) (bool, error) {
	for _, m := range am {
		healthy, err := m.Healthy(ctx)
		if !healthy || err != nil {
			return false, err
		}
	}
	return true, nil
}

// OrMonitor is healthy when any one of its monitors is healthy. Errors of
// the monitors checked before a healthy one are discarded.
type OrMonitor []Monitor

// Or
func Or(ms ...Monitor) OrMonitor {
	return OrMonitor(ms)
}

// Healthy implements the [Monitor] interface.
func (om OrMonitor) Healthy(ctx context.Context) (bool, error) {
	var errs []error
	for _, m := range om {
		healthy, err := m.Healthy(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if healthy {
			return true, nil
		}
	}
	return false, errors.Join(errs...)
}
