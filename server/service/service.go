// Package service holds the implementation of the pushgate.Service interface:
// the orchestration of recipient resolution, payload delivery and endpoint
// cleanup.
package service

import (
	"github.com/WatchBeam/clock"
	"github.com/go-kit/kit/log"

	"github.com/pushgate/pushgate/server/push"
	"github.com/pushgate/pushgate/server/pushgate"
)

// Service wires the datastore, the sender registry and the reaper together.
type Service struct {
	ds       pushgate.Datastore
	registry *push.Registry
	reaper   *Reaper
	logger   log.Logger
	clock    clock.Clock
	metrics  *Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used by the service.
func WithClock(c clock.Clock) Option {
	return func(svc *Service) {
		svc.clock = c
	}
}

// WithMetrics sets the metrics recorder used by the service.
func WithMetrics(m *Metrics) Option {
	return func(svc *Service) {
		svc.metrics = m
	}
}

// NewService creates a Service.
func NewService(ds pushgate.Datastore, registry *push.Registry, reaper *Reaper, logger log.Logger, opts ...Option) *Service {
	svc := &Service{
		ds:       ds,
		registry: registry,
		reaper:   reaper,
		logger:   logger,
		clock:    clock.C,
		metrics:  NewMetrics(nil),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

var _ pushgate.Service = (*Service)(nil)
