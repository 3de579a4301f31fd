package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/homelink-core/internal/device"
)

// StateUpdate is a decoded device state event from the wire.
type StateUpdate struct {
	DeviceID string
	State    device.State
	Msg      *string
}

// StatusUpdate is a decoded device availability event from the wire.
type StatusUpdate struct {
	DeviceID string
	Online   bool
	SeenAt   time.Time
}

// eventHub demultiplexes inbound device events to per-device observers.
//
// Each observer gets its own bounded buffered channel. There is no
// replay: an observer only sees events emitted after it attached. When
// an observer's buffer is full, new events for that observer are
// dropped - the inbound message path never blocks on a slow consumer.
//
// Channel lifecycle: an observer channel is closed only after its entry
// has been removed from the map under the write lock. Publishers send
// under the read lock, so a send can never race a close.
type eventHub struct {
	mu         sync.RWMutex
	buffer     int
	nextID     uint64
	stateObs   map[string]map[uint64]chan StateUpdate
	statusObs  map[string]map[uint64]chan StatusUpdate
	dropped    atomic.Uint64
	logger     Logger
	loggerMu   sync.RWMutex
}

func newEventHub(buffer int) *eventHub {
	return &eventHub{
		buffer:    buffer,
		stateObs:  make(map[string]map[uint64]chan StateUpdate),
		statusObs: make(map[string]map[uint64]chan StatusUpdate),
		logger:    noopLogger{},
	}
}

func (h *eventHub) setLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

func (h *eventHub) getLogger() Logger {
	h.loggerMu.RLock()
	defer h.loggerMu.RUnlock()
	return h.logger
}

// observeState attaches a state observer for a device.
// The returned channel is closed when ctx is cancelled.
func (h *eventHub) observeState(ctx context.Context, deviceID string) <-chan StateUpdate {
	ch := make(chan StateUpdate, h.buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	if h.stateObs[deviceID] == nil {
		h.stateObs[deviceID] = make(map[uint64]chan StateUpdate)
	}
	h.stateObs[deviceID][id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.detachState(deviceID, id)
	}()

	return ch
}

// observeStatus attaches an availability observer for a device.
// The returned channel is closed when ctx is cancelled.
func (h *eventHub) observeStatus(ctx context.Context, deviceID string) <-chan StatusUpdate {
	ch := make(chan StatusUpdate, h.buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	if h.statusObs[deviceID] == nil {
		h.statusObs[deviceID] = make(map[uint64]chan StatusUpdate)
	}
	h.statusObs[deviceID][id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.detachStatus(deviceID, id)
	}()

	return ch
}

// detachState removes and closes a state observer channel.
func (h *eventHub) detachState(deviceID string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	observers, ok := h.stateObs[deviceID]
	if !ok {
		return
	}
	ch, ok := observers[id]
	if !ok {
		return
	}
	delete(observers, id)
	if len(observers) == 0 {
		delete(h.stateObs, deviceID)
	}
	close(ch)
}

// detachStatus removes and closes a status observer channel.
func (h *eventHub) detachStatus(deviceID string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	observers, ok := h.statusObs[deviceID]
	if !ok {
		return
	}
	ch, ok := observers[id]
	if !ok {
		return
	}
	delete(observers, id)
	if len(observers) == 0 {
		delete(h.statusObs, deviceID)
	}
	close(ch)
}

// publishState delivers a state event to every observer of its device.
// Full observer buffers drop the event for that observer only.
func (h *eventHub) publishState(ev StateUpdate) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.stateObs[ev.DeviceID] {
		select {
		case ch <- ev:
		default:
			h.dropped.Add(1)
			h.getLogger().Warn("state observer buffer full, dropping event",
				"device_id", ev.DeviceID)
		}
	}
}

// publishStatus delivers an availability event to every observer of its device.
func (h *eventHub) publishStatus(ev StatusUpdate) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.statusObs[ev.DeviceID] {
		select {
		case ch <- ev:
		default:
			h.dropped.Add(1)
			h.getLogger().Warn("status observer buffer full, dropping event",
				"device_id", ev.DeviceID)
		}
	}
}

// droppedCount returns how many events were dropped due to full buffers.
func (h *eventHub) droppedCount() uint64 {
	return h.dropped.Load()
}
