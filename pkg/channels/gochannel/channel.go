// Package gochannel provides the in-memory event bus transport for tests and single-process deployments.
package gochannel

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const outputBuffer = 1000

// Option tweaks the GoChannel configuration.
type Option func(*gochannel.Config)

// WithReplay keeps published messages so subscribers that attach later still receive them.
func WithReplay() Option {
	return func(c *gochannel.Config) { c.Persistent = true }
}

// WithBlockingPublish makes Publish wait for the subscriber's ack.
func WithBlockingPublish() Option {
	return func(c *gochannel.Config) { c.BlockPublishUntilSubscriberAck = true }
}

// CreateChannel creates a GoChannel-based publisher and subscriber. Events published by the API
// process are consumed in the same process and nothing survives a restart.
func CreateChannel(logger watermill.LoggerAdapter, opts ...Option) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	config := gochannel.Config{OutputChannelBuffer: outputBuffer}

	for _, opt := range opts {
		opt(&config)
	}

	// One GoChannel is both the publisher and the subscriber.
	pubSub := gochannel.NewGoChannel(config, logger)

	return pubSub, pubSub, nil
}
