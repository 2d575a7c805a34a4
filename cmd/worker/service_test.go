package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/digimart-backend/pkg/logger"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type countingRunner struct{ runs int }

func (c *countingRunner) Run(context.Context) error {
	c.runs++
	return nil
}

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "worker-test", Output: &bytes.Buffer{}})
}

func healthy(context.Context) error { return nil }

func TestServiceRunStartsConsumerWhenReady(t *testing.T) {
	consumer := &countingRunner{}
	svc, err := NewService(quietLogger(), consumer,
		Dependency{Name: "database", Check: pingFunc(healthy)},
		Dependency{Name: "redis", Check: pingFunc(healthy)},
	)
	require.NoError(t, err)

	require.NoError(t, svc.Run(context.Background()))
	assert.Equal(t, 1, consumer.runs)
}

func TestServiceRunStopsOnUnreadyDependency(t *testing.T) {
	consumer := &countingRunner{}
	var pinged []string
	track := func(name string, err error) pingFunc {
		return func(context.Context) error {
			pinged = append(pinged, name)
			return err
		}
	}
	svc, err := NewService(quietLogger(), consumer,
		Dependency{Name: "database", Check: track("database", nil)},
		Dependency{Name: "redis", Check: track("redis", errors.New("connection refused"))},
		Dependency{Name: "pubsub", Check: track("pubsub", nil)},
	)
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis not ready")
	assert.Equal(t, []string{"database", "redis"}, pinged)
	assert.Zero(t, consumer.runs)
}

func TestNewServiceRejectsMissingClients(t *testing.T) {
	_, err := NewService(quietLogger(), &countingRunner{}, Dependency{Name: "pubsub"})
	assert.EqualError(t, err, "pubsub client is required")

	_, err = NewService(quietLogger(), nil)
	assert.Error(t, err)
}
