// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/Thermoquad/dynostat/pkg/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const redisTimeout = 2 * time.Second

// RedisOptions configures the Redis pub/sub sink.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// redisPublisher is the subset of *redis.Client the sink uses.
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// Redis publishes encoded samples and status events to a pub/sub channel.
type Redis struct {
	client    redisPublisher
	channel   string
	codec     Codec
	transport string
	queue     *queue
}

// NewRedis connects to Redis and checks the connection.
func NewRedis(ctx context.Context, opts RedisOptions, codec Codec, transport string, log logrus.FieldLogger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", opts.Addr, err)
	}
	log.WithField("addr", opts.Addr).Info("Redis connected")

	return newRedis(client, opts.Channel, codec, transport, log), nil
}

func newRedis(client redisPublisher, channel string, codec Codec, transport string, log logrus.FieldLogger) *Redis {
	r := &Redis{
		client:    client,
		channel:   channel,
		codec:     codec,
		transport: transport,
	}
	r.queue = newQueue(DefaultQueueSize, r.send, log.WithField("sink", "redis"))
	return r
}

func (r *Redis) send(m Message) error {
	data, err := r.codec.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode %s: %w", m.Kind, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	return r.client.Publish(ctx, r.channel, data).Err()
}

func (r *Redis) Publish(s telemetry.Sample) {
	r.queue.put(SampleMessage(r.transport, s))
}

func (r *Redis) Status(ev telemetry.StatusEvent) {
	r.queue.put(StatusMessage(r.transport, ev))
}

// Close drains queued messages and closes the client.
func (r *Redis) Close() error {
	r.queue.close()
	return r.client.Close()
}
