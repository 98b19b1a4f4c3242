package events

import (
	"context"
	"errors"
	"time"

	"github.com/patric-chuzhbe/ecgstore/internal/logger"
)

// ErrQueueFull is returned by Dispatcher.Publish when the buffer has no room left.
var ErrQueueFull = errors.New("event queue is full")

type sink interface {
	Publish(ctx context.Context, event Event) error
}

// Dispatcher decouples request handling from the broker: Publish only
// buffers the event and a background loop forwards batches to the sink
// every flushInterval.
type Dispatcher struct {
	queue         chan Event
	sink          sink
	flushInterval time.Duration
	errorChannel  chan error
	done          chan struct{}
}

func NewDispatcher(target sink, channelCapacity int, flushInterval time.Duration) *Dispatcher {
	return &Dispatcher{
		queue:         make(chan Event, channelCapacity),
		sink:          target,
		flushInterval: flushInterval,
		errorChannel:  make(chan error, channelCapacity),
		done:          make(chan struct{}),
	}
}

// Publish enqueues event without blocking.
func (d *Dispatcher) Publish(ctx context.Context, event Event) error {
	select {
	case d.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// ListenErrors calls callback for every event the sink refused.
func (d *Dispatcher) ListenErrors(callback func(error)) {
	go func() {
		for err := range d.errorChannel {
			callback(err)
		}
	}()
}

// Run starts the forwarding loop. When ctx is done the events still
// buffered are flushed and Wait returns.
func (d *Dispatcher) Run(ctx context.Context) {
	go func() {
		defer close(d.done)
		defer close(d.errorChannel)

		ticker := time.NewTicker(d.flushInterval)
		defer ticker.Stop()

		var batch []Event

		for {
			select {
			case event := <-d.queue:
				batch = append(batch, event)
			case <-ticker.C:
				batch = d.flush(ctx, batch)
			case <-ctx.Done():
			drain:
				for {
					select {
					case event := <-d.queue:
						batch = append(batch, event)
					default:
						break drain
					}
				}
				d.flush(context.Background(), batch)
				return
			}
		}
	}()
}

// Wait blocks until Run has flushed its last batch.
func (d *Dispatcher) Wait() {
	<-d.done
}

func (d *Dispatcher) flush(ctx context.Context, batch []Event) []Event {
	if len(batch) == 0 {
		return batch
	}

	for _, event := range batch {
		if err := d.sink.Publish(ctx, event); err != nil {
			select {
			case d.errorChannel <- err:
			default:
			}
		}
	}
	logger.Log.Debugf("published %d events", len(batch))

	return batch[:0]
}
