package notify

// dispatcher.go: fan-out asíncrono de eventos a varios sinks.
//
// El motor publica después del commit y no debe esperar a la consola, la DB de
// actividad ni el webhook. Publish solo encola; un pool de workers entrega a
// cada sink. Con la cola llena el evento se descarta y Publish devuelve ErrQueueFull.

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/accapool/internal/domain"
	"github.com/alejandrodnm/accapool/internal/ports"
)

var (
	// ErrQueueFull indica que el evento se descartó por falta de espacio en la cola.
	ErrQueueFull = errors.New("notify: event queue full")
	// ErrDispatcherClosed indica que el dispatcher ya no acepta eventos.
	ErrDispatcherClosed = errors.New("notify: dispatcher closed")
)

// deliveryTimeout acota lo que un sink puede tardar con un evento.
const deliveryTimeout = 30 * time.Second

// Dispatcher implementa ports.Notifier encolando eventos para sus sinks.
type Dispatcher struct {
	sinks   []ports.Notifier
	queue   chan domain.Event
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewDispatcher arranca workers que entregan cada evento a todos los sinks.
// Si workers <= 0 usa runtime.NumCPU().
func NewDispatcher(buffer, workers int, sinks ...ports.Notifier) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	d := &Dispatcher{
		sinks: sinks,
		queue: make(chan domain.Event, buffer),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for e := range d.queue {
				d.deliver(e)
			}
		}()
	}
	return d
}

// Publish encola el evento sin bloquear.
func (d *Dispatcher) Publish(_ context.Context, e domain.Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- e:
		return nil
	default:
		// El caller loguea el ErrQueueFull; aquí solo se cuenta.
		d.dropped.Add(1)
		return ErrQueueFull
	}
}

// Close deja de aceptar eventos y espera a que se entreguen los encolados.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})
	d.wg.Wait()
}

// Dropped devuelve cuántos eventos se descartaron por cola llena.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// deliver entrega a cada sink con un contexto propio: el del request ya terminó.
func (d *Dispatcher) deliver(e domain.Event) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		if err := sink.Publish(ctx, e); err != nil {
			slog.Warn("event delivery failed", "type", e.Type, "pool_id", e.PoolID, "err", err)
		}
		cancel()
	}
}
