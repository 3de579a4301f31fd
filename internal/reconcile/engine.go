package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/homelink-core/internal/device"
	"github.com/nerrad567/homelink-core/internal/gateway"
)

// Reconciliation messages stored alongside device state.
const (
	msgAwaitingConfirmation = "awaiting confirmation"
	msgStateUpdated         = "state updated"
)

// Store is the device persistence surface the engine needs.
// Satisfied by *device.Registry.
type Store interface {
	GetDevice(ctx context.Context, id string) (*device.Device, error)
	ListDevices(ctx context.Context) ([]device.Device, error)
	CreateDevice(ctx context.Context, d *device.Device) error
	DeleteDevice(ctx context.Context, id string) error
	SetDeviceState(ctx context.Context, id string, state device.State, status device.ResponseStatus, msg *string) error
	SetDeviceOnline(ctx context.Context, id string, online bool) error
}

// Gateway is the transport surface the engine needs.
// Satisfied by *gateway.Client.
type Gateway interface {
	SendCommand(homeID, roomID, deviceID string, cmd gateway.Command) error
	ObserveDeviceState(ctx context.Context, deviceID string) <-chan gateway.StateUpdate
	ObserveDeviceStatus(ctx context.Context, deviceID string) <-chan gateway.StatusUpdate
}

// Recorder receives confirmed events for history. Optional.
// Satisfied by *history.Recorder.
type Recorder interface {
	RecordState(deviceID, roomID string, state device.State, at time.Time)
	RecordStatus(deviceID, roomID string, online bool, at time.Time)
}

// Logger interface for optional logging support.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Engine reconciles stored device state with device reports.
//
// Each known device gets a watcher goroutine consuming its state and
// availability events from the gateway. User actions go through the
// engine so the optimistic write and the outbound command stay paired.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Engine struct {
	store  Store
	gw     Gateway
	homeID string

	// logger and recorder may be swapped in after Start; watcher
	// goroutines read them, so access goes through hookMu.
	logger   Logger
	recorder Recorder
	hookMu   sync.RWMutex

	// watchers maps device ID to its watcher's cancel func.
	watchers map[string]context.CancelFunc
	mu       sync.Mutex
	wg       sync.WaitGroup

	// baseCtx parents every watcher; cancel stops them all.
	baseCtx context.Context
	cancel  context.CancelFunc
	started bool
}

// New creates a reconciliation engine. recorder may be nil to disable
// history recording. Call Start to attach watchers for stored devices.
func New(store Store, gw Gateway, homeID string) *Engine {
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:    store,
		gw:       gw,
		homeID:   homeID,
		logger:   noopLogger{},
		watchers: make(map[string]context.CancelFunc),
		baseCtx:  baseCtx,
		cancel:   cancel,
	}
}

// SetLogger sets a logger for reconciliation logging.
func (e *Engine) SetLogger(logger Logger) {
	e.hookMu.Lock()
	e.logger = logger
	e.hookMu.Unlock()
}

// SetRecorder sets an optional history recorder for confirmed events.
func (e *Engine) SetRecorder(recorder Recorder) {
	e.hookMu.Lock()
	e.recorder = recorder
	e.hookMu.Unlock()
}

// getLogger returns the current logger.
func (e *Engine) getLogger() Logger {
	e.hookMu.RLock()
	defer e.hookMu.RUnlock()
	return e.logger
}

// getRecorder returns the current recorder, nil when unset.
func (e *Engine) getRecorder() Recorder {
	e.hookMu.RLock()
	defer e.hookMu.RUnlock()
	return e.recorder
}

// Start attaches watchers for every device already in the store.
// Devices created later are attached by CreateDevice.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.started = true
	e.mu.Unlock()

	devices, err := e.store.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: listing devices: %w", err)
	}

	for _, d := range devices {
		e.attach(d.ID, d.RoomID)
	}

	e.getLogger().Info("reconciliation engine started", "devices", len(devices))
	return nil
}

// Stop cancels all watchers and waits for them to drain.
func (e *Engine) Stop() {
	e.cancel()
	e.wg.Wait()

	e.mu.Lock()
	e.watchers = make(map[string]context.CancelFunc)
	e.mu.Unlock()

	e.getLogger().Info("reconciliation engine stopped")
}

// CreateDevice stores a new device and attaches its watcher, so events
// arriving moments after creation are not lost.
func (e *Engine) CreateDevice(ctx context.Context, d *device.Device) error {
	if err := e.store.CreateDevice(ctx, d); err != nil {
		return err
	}
	e.attach(d.ID, d.RoomID)
	return nil
}

// DeleteDevice detaches the device's watcher before removing the row,
// so a late event cannot write to a deleted device.
func (e *Engine) DeleteDevice(ctx context.Context, id string) error {
	e.detach(id)
	return e.store.DeleteDevice(ctx, id)
}

// Toggle flips a switchable device between on and off.
//
// The target state is written optimistically (marked awaiting
// confirmation) before the command is published. There is no rollback:
// if the device never answers, the record stays waiting.
func (e *Engine) Toggle(ctx context.Context, id string) error {
	d, err := e.store.GetDevice(ctx, id)
	if err != nil {
		return err
	}
	if d.Type != device.TypeSwitch {
		return fmt.Errorf("%w: %s is a %s", ErrNotSwitchable, id, d.Type)
	}

	var target device.State
	var cmd gateway.Command
	switch d.State.(type) {
	case device.On:
		target, cmd = device.Off{}, gateway.TurnOff{}
	default:
		// Off, or an unexpected state for a switch: drive it on.
		target, cmd = device.On{}, gateway.TurnOn{}
	}

	return e.dispatch(ctx, d, target, cmd)
}

// SetValue sets the level of a numeric-value device, optimistically.
func (e *Engine) SetValue(ctx context.Context, id string, value float64) error {
	d, err := e.store.GetDevice(ctx, id)
	if err != nil {
		return err
	}
	if d.Type != device.TypeDimmer {
		return fmt.Errorf("%w: %s is a %s", ErrNotNumeric, id, d.Type)
	}

	return e.dispatch(ctx, d, device.Numeric{Value: value}, gateway.SetValue{Value: value})
}

// RequestState asks a device to report its current state. No
// optimistic write: nothing is known until the device answers.
func (e *Engine) RequestState(ctx context.Context, id string) error {
	d, err := e.store.GetDevice(ctx, id)
	if err != nil {
		return err
	}
	return e.gw.SendCommand(e.homeID, d.RoomID, d.ID, gateway.RequestState{})
}

// dispatch performs the optimistic write then publishes the command.
func (e *Engine) dispatch(ctx context.Context, d *device.Device, target device.State, cmd gateway.Command) error {
	msg := msgAwaitingConfirmation
	if err := e.store.SetDeviceState(ctx, d.ID, target, device.StatusWaiting, &msg); err != nil {
		return err
	}

	if err := e.gw.SendCommand(e.homeID, d.RoomID, d.ID, cmd); err != nil {
		// The optimistic record stays; confirmation will correct it
		// once the device is reachable again.
		return err
	}

	e.getLogger().Debug("command dispatched", "device_id", d.ID, "room_id", d.RoomID)
	return nil
}

// attach starts a watcher for a device. Idempotent per device.
func (e *Engine) attach(deviceID, roomID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.watchers[deviceID]; exists {
		return
	}

	ctx, cancel := context.WithCancel(e.baseCtx)
	e.watchers[deviceID] = cancel

	e.wg.Add(1)
	go e.watchDevice(ctx, deviceID, roomID)
}

// detach stops a device's watcher if one is running.
func (e *Engine) detach(deviceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cancel, exists := e.watchers[deviceID]; exists {
		cancel()
		delete(e.watchers, deviceID)
	}
}

// watchDevice consumes one device's event streams until its context is
// cancelled, applying confirmed state and availability to the store.
func (e *Engine) watchDevice(ctx context.Context, deviceID, roomID string) {
	defer e.wg.Done()

	stateCh := e.gw.ObserveDeviceState(ctx, deviceID)
	statusCh := e.gw.ObserveDeviceStatus(ctx, deviceID)

	for stateCh != nil || statusCh != nil {
		select {
		case ev, ok := <-stateCh:
			if !ok {
				stateCh = nil
				continue
			}
			e.applyState(ctx, roomID, ev)
		case ev, ok := <-statusCh:
			if !ok {
				statusCh = nil
				continue
			}
			e.applyStatus(ctx, roomID, ev)
		}
	}
}

// applyState overwrites the stored state with a confirmed device report.
// Events drained after the watcher was cancelled are discarded.
func (e *Engine) applyState(ctx context.Context, roomID string, ev gateway.StateUpdate) {
	if ctx.Err() != nil {
		return
	}

	msg := ev.Msg
	if msg == nil {
		m := msgStateUpdated
		msg = &m
	}

	err := e.store.SetDeviceState(ctx, ev.DeviceID, ev.State, device.StatusConfirmed, msg)
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		e.getLogger().Debug("state report for unknown device", "device_id", ev.DeviceID)
		return
	case err != nil:
		e.getLogger().Error("applying confirmed state failed",
			"device_id", ev.DeviceID,
			"error", err,
		)
		return
	}

	if recorder := e.getRecorder(); recorder != nil {
		recorder.RecordState(ev.DeviceID, roomID, ev.State, time.Now().UTC())
	}
}

// applyStatus records a device availability change.
func (e *Engine) applyStatus(ctx context.Context, roomID string, ev gateway.StatusUpdate) {
	if ctx.Err() != nil {
		return
	}

	err := e.store.SetDeviceOnline(ctx, ev.DeviceID, ev.Online)
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		e.getLogger().Debug("status report for unknown device", "device_id", ev.DeviceID)
		return
	case err != nil:
		e.getLogger().Error("applying availability failed",
			"device_id", ev.DeviceID,
			"error", err,
		)
		return
	}

	if recorder := e.getRecorder(); recorder != nil {
		recorder.RecordStatus(ev.DeviceID, roomID, ev.Online, ev.SeenAt)
	}
}
