package main

import (
	"context"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

// topicSource is the slice of pkg/pubsub.Client the relay uses.
type topicSource interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

// sink delivers one message and waits for the server ack.
type sink interface {
	send(context.Context, *gcppubsub.Message) error
}

type sinkFactory func(topic string) sink

type sinkFunc func(context.Context, *gcppubsub.Message) error

func (f sinkFunc) send(ctx context.Context, msg *gcppubsub.Message) error { return f(ctx, msg) }

func topicSink(topics topicSource) sinkFactory {
	return func(topic string) sink {
		pub := topics.Publisher(topic)
		if pub == nil {
			return nil
		}
		return sinkFunc(func(ctx context.Context, msg *gcppubsub.Message) error {
			_, err := pub.Publish(ctx, msg).Get(ctx)
			return err
		})
	}
}

const (
	maxWait = 10 * time.Second
	jitter  = 250 * time.Millisecond
)

// pacer doubles the wait after each failed drain, capped at maxWait.
type pacer struct {
	base    time.Duration
	current time.Duration
	rnd     *rand.Rand
}

func newPacer(base time.Duration) *pacer {
	return &pacer{base: base, current: base, rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (p *pacer) reset() { p.current = p.base }

func (p *pacer) idle() time.Duration {
	p.reset()
	return p.withJitter(p.base)
}

func (p *pacer) failure() time.Duration {
	p.current *= 2
	if p.current > maxWait {
		p.current = maxWait
	}
	return p.withJitter(p.current)
}

func (p *pacer) withJitter(d time.Duration) time.Duration {
	return d + time.Duration(p.rnd.Int63n(int64(jitter)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
