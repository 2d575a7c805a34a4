package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/digimart-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type runner interface {
	Run(ctx context.Context) error
}

// Dependency is a backing client that must answer a ping before consuming starts.
type Dependency struct {
	Name  string
	Check pinger
}

// Service gates the notification consumer on its dependencies being reachable.
type Service struct {
	logg     *logger.Logger
	deps     []Dependency
	consumer runner
}

func NewService(logg *logger.Logger, consumer runner, deps ...Dependency) (*Service, error) {
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	if consumer == nil {
		return nil, errors.New("notification consumer is required")
	}
	for _, d := range deps {
		if d.Check == nil {
			return nil, fmt.Errorf("%s client is required", d.Name)
		}
	}
	return &Service{logg: logg, deps: deps, consumer: consumer}, nil
}

// Run pings every dependency in order, then blocks in the consumer.
func (s *Service) Run(ctx context.Context) error {
	names := make([]string, 0, len(s.deps))
	for _, d := range s.deps {
		if err := d.Check.Ping(ctx); err != nil {
			return fmt.Errorf("%s not ready: %w", d.Name, err)
		}
		names = append(names, d.Name)
	}
	s.logg.Info(s.logg.WithField(ctx, "dependencies", names), "worker.ready")
	return s.consumer.Run(ctx)
}
