package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/texresolve/accounts-api/internal/api/metrics"
	"github.com/texresolve/accounts-api/internal/core/ports"
)

const (
	defaultWorkers = 2
	channelBuffer  = 64
	sendTimeout    = 30 * time.Second
)

// Dispatcher delivers mail on a fixed set of workers. Messages are sharded by
// recipient so mail to one address is delivered in enqueue order.
type Dispatcher struct {
	workers []chan ports.MailMessage
	sender  ports.MailSender
	log     zerolog.Logger
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, sender ports.MailSender, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan ports.MailMessage, numWorkers),
		sender:  sender,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.MailMessage, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers exit once Stop has closed
// their channel and the backlog is drained; ctx bounds each delivery.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue hands msg to the worker responsible for its recipient without
// blocking. It returns false when that worker's buffer is full or the
// dispatcher is stopped.
func (d *Dispatcher) Enqueue(msg ports.MailMessage) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		metrics.MailDispatchTotal.WithLabelValues("dropped").Inc()
		return false
	}

	idx := d.shardIndex(msg.To)
	select {
	case d.workers[idx] <- msg:
		metrics.MailQueueDepth.WithLabelValues(strconv.Itoa(idx)).Inc()
		return true
	default:
		metrics.MailDispatchTotal.WithLabelValues("dropped").Inc()
		d.log.Warn().Str("to", msg.To).Int("worker_id", idx).Msg("mail queue full, message dropped")
		return false
	}
}

// Stop closes the queues and waits for the workers to drain them.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, ch := range d.workers {
			close(ch)
		}
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// shardIndex maps a recipient deterministically to a worker index.
func (d *Dispatcher) shardIndex(recipient string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(recipient))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.MailMessage) {
	defer d.wg.Done()
	depth := metrics.MailQueueDepth.WithLabelValues(strconv.Itoa(id))

	for msg := range ch {
		depth.Dec()

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
		err := d.sender.Send(sendCtx, msg)
		cancel()

		if err != nil {
			metrics.MailDispatchTotal.WithLabelValues("failed").Inc()
			d.log.Error().Err(err).
				Str("to", msg.To).
				Int("worker_id", id).
				Msg("mail delivery failed")
			continue
		}
		metrics.MailDispatchTotal.WithLabelValues("sent").Inc()
	}
}
