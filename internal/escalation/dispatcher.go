package escalation

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/petpulse/petpulse-go/internal/conf"
	"github.com/petpulse/petpulse-go/internal/errors"
	"github.com/petpulse/petpulse-go/internal/logger"
	"github.com/petpulse/petpulse-go/internal/observability/metrics"
)

// Enqueue failure modes. The API maps both onto 503.
var (
	ErrQueueFull         = errors.NewStd("observation queue full")
	ErrDispatcherStopped = errors.NewStd("dispatcher stopped")
)

// Dispatcher fans observations out to per-partition workers. A pet's id is
// hashed onto a fixed partition, so one pet's observations are processed
// FIFO by a single worker while different pets proceed in parallel. A slow
// downstream only ever backs up the partitions whose pets it affects.
type Dispatcher struct {
	engine *Engine
	log    logger.Logger

	queues []chan Observation
	gauges []prometheus.Gauge

	timeout  time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewDispatcher builds the dispatcher and starts one worker per partition.
// metrics may be nil.
func NewDispatcher(engine *Engine, m *metrics.Monitor, log logger.Logger, settings conf.QueueSettings) *Dispatcher {
	n := settings.Partitions
	if n < 1 {
		n = 1
	}
	d := &Dispatcher{
		engine:  engine,
		log:     log,
		queues:  make([]chan Observation, n),
		timeout: settings.EnqueueTimeout.Std(),
		stopCh:  make(chan struct{}),
	}
	if m != nil {
		d.gauges = make([]prometheus.Gauge, n)
	}
	for i := range d.queues {
		d.queues[i] = make(chan Observation, settings.Buffer)
		if d.gauges != nil {
			d.gauges[i] = m.QueueDepthGauge("partition-" + strconv.Itoa(i))
		}
	}
	d.wg.Add(n)
	for i := range d.queues {
		go d.worker(i)
	}
	return d
}

// Enqueue queues an observation for its pet's partition, blocking up to the
// configured timeout when the partition is full. Observations are never
// silently dropped: the caller gets an error and the producer redelivers.
func (d *Dispatcher) Enqueue(ctx context.Context, obs Observation) error {
	select {
	case <-d.stopCh:
		return ErrDispatcherStopped
	default:
	}

	idx := d.partitionFor(obs.PetID)
	timer := time.NewTimer(d.timeout)
	defer timer.Stop()

	select {
	case d.queues[idx] <- obs:
		d.observeDepth(idx)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stopCh:
		return ErrDispatcherStopped
	case <-timer.C:
		return errors.Newf("%w: partition %d", ErrQueueFull, idx).
			Component("escalation").
			Category(errors.CategoryState).
			Context("pet_id", obs.PetID).
			Build()
	}
}

// Stop closes intake and waits for the workers to drain their partitions.
// Safe to call more than once.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
	})
	d.wg.Wait()
}

func (d *Dispatcher) worker(idx int) {
	defer d.wg.Done()
	queue := d.queues[idx]
	for {
		select {
		case obs := <-queue:
			d.handle(idx, obs)
		case <-d.stopCh:
			// Drain what was accepted before intake closed.
			for {
				select {
				case obs := <-queue:
					d.handle(idx, obs)
				default:
					return
				}
			}
		}
	}
}

// handle runs one observation with panic recovery so a bad payload cannot
// kill its partition worker.
func (d *Dispatcher) handle(idx int, obs Observation) {
	defer d.observeDepth(idx)
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("observation processing panicked",
				logger.String("pet_id", obs.PetID),
				logger.String("alert_id", obs.AlertID),
				logger.Any("panic", r),
			)
		}
	}()

	if err := d.engine.Process(context.Background(), obs); err != nil {
		if errors.Is(err, ErrInvalidObservation) {
			d.log.Warn("observation rejected",
				logger.String("pet_id", obs.PetID),
				logger.Error(err),
			)
			return
		}
		d.log.Error("observation processing failed",
			logger.String("pet_id", obs.PetID),
			logger.String("alert_id", obs.AlertID),
			logger.Error(err),
		)
	}
}

func (d *Dispatcher) partitionFor(petID string) int {
	h := fnv.New32a()
	h.Write([]byte(petID))
	return int(h.Sum32() % uint32(len(d.queues)))
}

func (d *Dispatcher) observeDepth(idx int) {
	if d.gauges == nil {
		return
	}
	d.gauges[idx].Set(float64(len(d.queues[idx])))
}
