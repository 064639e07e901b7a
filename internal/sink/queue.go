// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sink

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultQueueSize bounds the messages buffered for a slow broker.
const DefaultQueueSize = 256

// queue hands messages to a single sender goroutine so broker latency
// never blocks the acquisition tasks. Messages are dropped when full.
type queue struct {
	mu      sync.Mutex
	ch      chan Message
	done    chan struct{}
	closed  bool
	dropped uint64
	log     logrus.FieldLogger
}

func newQueue(size int, send func(Message) error, log logrus.FieldLogger) *queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	q := &queue{
		ch:   make(chan Message, size),
		done: make(chan struct{}),
		log:  log,
	}
	go func() {
		defer close(q.done)
		for m := range q.ch {
			if err := send(m); err != nil {
				q.log.WithError(err).Warn("Publish failed")
			}
		}
	}()
	return q
}

func (q *queue) put(m Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	select {
	case q.ch <- m:
	default:
		q.dropped++
		if q.dropped == 1 || q.dropped%100 == 0 {
			q.log.WithField("dropped", q.dropped).Warn("Broker queue full, dropping messages")
		}
	}
}

// close flushes queued messages and stops the sender.
func (q *queue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()
	<-q.done
}

func (q *queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
