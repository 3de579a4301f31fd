package reconcile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/homelink-core/internal/device"
	"github.com/nerrad567/homelink-core/internal/gateway"
)

// fakeStore is an in-memory Store.
type fakeStore struct {
	mu      sync.Mutex
	devices map[string]*device.Device
}

func newFakeStore(devices ...*device.Device) *fakeStore {
	s := &fakeStore{devices: make(map[string]*device.Device)}
	for _, d := range devices {
		s.devices[d.ID] = d.Clone()
	}
	return s
}

func (s *fakeStore) GetDevice(_ context.Context, id string) (*device.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	return d.Clone(), nil
}

func (s *fakeStore) ListDevices(context.Context) ([]device.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]device.Device, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, *d.Clone())
	}
	return out, nil
}

func (s *fakeStore) CreateDevice(_ context.Context, d *device.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.devices[d.ID]; exists {
		return device.ErrDeviceExists
	}
	s.devices[d.ID] = d.Clone()
	return nil
}

func (s *fakeStore) DeleteDevice(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[id]; !ok {
		return device.ErrDeviceNotFound
	}
	delete(s.devices, id)
	return nil
}

func (s *fakeStore) SetDeviceState(_ context.Context, id string, state device.State, status device.ResponseStatus, msg *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return device.ErrDeviceNotFound
	}
	d.State = state
	d.ResponseStatus = status
	d.ResponseMsg = msg
	return nil
}

func (s *fakeStore) SetDeviceOnline(_ context.Context, id string, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return device.ErrDeviceNotFound
	}
	d.Online = online
	return nil
}

type sentCommand struct {
	homeID, roomID, deviceID string
	cmd                      gateway.Command
}

// fakeGateway records commands and lets tests inject device events.
type fakeGateway struct {
	mu       sync.Mutex
	commands []sentCommand
	stateCh  map[string]chan gateway.StateUpdate
	statusCh map[string]chan gateway.StatusUpdate
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		stateCh:  make(map[string]chan gateway.StateUpdate),
		statusCh: make(map[string]chan gateway.StatusUpdate),
	}
}

func (g *fakeGateway) SendCommand(homeID, roomID, deviceID string, cmd gateway.Command) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.commands = append(g.commands, sentCommand{homeID, roomID, deviceID, cmd})
	return nil
}

func (g *fakeGateway) ObserveDeviceState(ctx context.Context, deviceID string) <-chan gateway.StateUpdate {
	g.mu.Lock()
	ch := make(chan gateway.StateUpdate, 16)
	g.stateCh[deviceID] = ch
	g.mu.Unlock()
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}

func (g *fakeGateway) ObserveDeviceStatus(ctx context.Context, deviceID string) <-chan gateway.StatusUpdate {
	g.mu.Lock()
	ch := make(chan gateway.StatusUpdate, 16)
	g.statusCh[deviceID] = ch
	g.mu.Unlock()
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}

// pushState delivers a state event, waiting briefly for the watcher to
// attach since observation happens on the watcher goroutine.
func (g *fakeGateway) pushState(ev gateway.StateUpdate) {
	for i := 0; i < 400; i++ {
		g.mu.Lock()
		ch := g.stateCh[ev.DeviceID]
		g.mu.Unlock()
		if ch != nil {
			ch <- ev
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	panic("no state observer for " + ev.DeviceID)
}

func (g *fakeGateway) pushStatus(ev gateway.StatusUpdate) {
	for i := 0; i < 400; i++ {
		g.mu.Lock()
		ch := g.statusCh[ev.DeviceID]
		g.mu.Unlock()
		if ch != nil {
			ch <- ev
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	panic("no status observer for " + ev.DeviceID)
}

func (g *fakeGateway) sentCommands() []sentCommand {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sentCommand(nil), g.commands...)
}

func testSwitch(id string) *device.Device {
	return &device.Device{
		ID:             id,
		Name:           "Test Switch",
		Type:           device.TypeSwitch,
		RoomID:         "kitchen",
		State:          device.Off{},
		ResponseStatus: device.StatusIdle,
	}
}

func testDimmer(id string) *device.Device {
	return &device.Device{
		ID:             id,
		Name:           "Test Dimmer",
		Type:           device.TypeDimmer,
		RoomID:         "lounge",
		State:          device.Numeric{Value: 0},
		ResponseStatus: device.StatusIdle,
	}
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestToggleOptimisticWrite(t *testing.T) {
	store := newFakeStore(testSwitch("sw-1"))
	gw := newFakeGateway()
	engine := New(store, gw, "home-1")

	if err := engine.Toggle(context.Background(), "sw-1"); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}

	d, _ := store.GetDevice(context.Background(), "sw-1")
	if d.State != (device.On{}) {
		t.Errorf("State = %#v, want On (optimistic)", d.State)
	}
	if d.ResponseStatus != device.StatusWaiting {
		t.Errorf("ResponseStatus = %q, want waiting", d.ResponseStatus)
	}
	if d.ResponseMsg == nil || *d.ResponseMsg != msgAwaitingConfirmation {
		t.Errorf("ResponseMsg = %v, want %q", d.ResponseMsg, msgAwaitingConfirmation)
	}

	cmds := gw.sentCommands()
	if len(cmds) != 1 {
		t.Fatalf("sent %d commands, want 1", len(cmds))
	}
	sent := cmds[0]
	if sent.homeID != "home-1" || sent.roomID != "kitchen" || sent.deviceID != "sw-1" {
		t.Errorf("command addressing = %+v", sent)
	}
	if _, ok := sent.cmd.(gateway.TurnOn); !ok {
		t.Errorf("command = %T, want TurnOn", sent.cmd)
	}
}

func TestToggleFlipsOnToOff(t *testing.T) {
	sw := testSwitch("sw-1")
	sw.State = device.On{}
	store := newFakeStore(sw)
	gw := newFakeGateway()
	engine := New(store, gw, "home-1")

	if err := engine.Toggle(context.Background(), "sw-1"); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}

	d, _ := store.GetDevice(context.Background(), "sw-1")
	if d.State != (device.Off{}) {
		t.Errorf("State = %#v, want Off", d.State)
	}
	if _, ok := gw.sentCommands()[0].cmd.(gateway.TurnOff); !ok {
		t.Errorf("command = %T, want TurnOff", gw.sentCommands()[0].cmd)
	}
}

func TestToggleRejectsNonSwitch(t *testing.T) {
	store := newFakeStore(testDimmer("dim-1"))
	gw := newFakeGateway()
	engine := New(store, gw, "home-1")

	if err := engine.Toggle(context.Background(), "dim-1"); !errors.Is(err, ErrNotSwitchable) {
		t.Errorf("Toggle() error = %v, want ErrNotSwitchable", err)
	}
	if len(gw.sentCommands()) != 0 {
		t.Error("command sent despite rejection")
	}
}

func TestSetValue(t *testing.T) {
	store := newFakeStore(testDimmer("dim-1"))
	gw := newFakeGateway()
	engine := New(store, gw, "home-1")

	if err := engine.SetValue(context.Background(), "dim-1", 75); err != nil {
		t.Fatalf("SetValue() error = %v", err)
	}

	d, _ := store.GetDevice(context.Background(), "dim-1")
	if d.State != (device.Numeric{Value: 75}) {
		t.Errorf("State = %#v, want Numeric 75", d.State)
	}
	if d.ResponseStatus != device.StatusWaiting {
		t.Errorf("ResponseStatus = %q, want waiting", d.ResponseStatus)
	}

	cmd, ok := gw.sentCommands()[0].cmd.(gateway.SetValue)
	if !ok || cmd.Value != 75 {
		t.Errorf("command = %#v, want SetValue 75", gw.sentCommands()[0].cmd)
	}
}

func TestSetValueRejectsNonDimmer(t *testing.T) {
	store := newFakeStore(testSwitch("sw-1"))
	gw := newFakeGateway()
	engine := New(store, gw, "home-1")

	if err := engine.SetValue(context.Background(), "sw-1", 50); !errors.Is(err, ErrNotNumeric) {
		t.Errorf("SetValue() error = %v, want ErrNotNumeric", err)
	}
}

func TestRequestStateNoOptimisticWrite(t *testing.T) {
	store := newFakeStore(testSwitch("sw-1"))
	gw := newFakeGateway()
	engine := New(store, gw, "home-1")

	if err := engine.RequestState(context.Background(), "sw-1"); err != nil {
		t.Fatalf("RequestState() error = %v", err)
	}

	d, _ := store.GetDevice(context.Background(), "sw-1")
	if d.ResponseStatus != device.StatusIdle {
		t.Errorf("ResponseStatus = %q, want idle (no optimistic write)", d.ResponseStatus)
	}
	if _, ok := gw.sentCommands()[0].cmd.(gateway.RequestState); !ok {
		t.Errorf("command = %T, want RequestState", gw.sentCommands()[0].cmd)
	}
}

func TestConfirmationOverwritesOptimistic(t *testing.T) {
	store := newFakeStore(testSwitch("sw-1"))
	gw := newFakeGateway()
	engine := New(store, gw, "home-1")

	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer engine.Stop()

	if err := engine.Toggle(context.Background(), "sw-1"); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}

	// The device confirms it actually ended up off.
	gw.pushState(gateway.StateUpdate{DeviceID: "sw-1", State: device.Off{}})

	waitFor(t, func() bool {
		d, _ := store.GetDevice(context.Background(), "sw-1")
		return d.ResponseStatus == device.StatusConfirmed
	}, "confirmation never applied")

	d, _ := store.GetDevice(context.Background(), "sw-1")
	if d.State != (device.Off{}) {
		t.Errorf("State = %#v, want confirmed Off", d.State)
	}
	if d.ResponseMsg == nil || *d.ResponseMsg != msgStateUpdated {
		t.Errorf("ResponseMsg = %v, want %q", d.ResponseMsg, msgStateUpdated)
	}
}

func TestConfirmationUsesEventMessage(t *testing.T) {
	store := newFakeStore(testSwitch("sw-1"))
	gw := newFakeGateway()
	engine := New(store, gw, "home-1")

	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer engine.Stop()

	done := "done"
	gw.pushState(gateway.StateUpdate{DeviceID: "sw-1", State: device.On{}, Msg: &done})

	waitFor(t, func() bool {
		d, _ := store.GetDevice(context.Background(), "sw-1")
		return d.ResponseStatus == device.StatusConfirmed
	}, "confirmation never applied")

	d, _ := store.GetDevice(context.Background(), "sw-1")
	if d.ResponseMsg == nil || *d.ResponseMsg != "done" {
		t.Errorf("ResponseMsg = %v, want %q", d.ResponseMsg, "done")
	}
}

func TestStatusEventSetsOnline(t *testing.T) {
	store := newFakeStore(testSwitch("sw-1"))
	gw := newFakeGateway()
	engine := New(store, gw, "home-1")

	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer engine.Stop()

	gw.pushStatus(gateway.StatusUpdate{DeviceID: "sw-1", Online: true, SeenAt: time.Now()})

	waitFor(t, func() bool {
		d, _ := store.GetDevice(context.Background(), "sw-1")
		return d.Online
	}, "availability never applied")
}

func TestCreateDeviceAttachesWatcher(t *testing.T) {
	store := newFakeStore()
	gw := newFakeGateway()
	engine := New(store, gw, "home-1")

	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer engine.Stop()

	if err := engine.CreateDevice(context.Background(), testSwitch("sw-new")); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}

	// An event for the just-created device must reach the store.
	waitFor(t, func() bool {
		gw.mu.Lock()
		_, attached := gw.stateCh["sw-new"]
		gw.mu.Unlock()
		return attached
	}, "watcher never attached")

	gw.pushState(gateway.StateUpdate{DeviceID: "sw-new", State: device.On{}})

	waitFor(t, func() bool {
		d, err := store.GetDevice(context.Background(), "sw-new")
		return err == nil && d.ResponseStatus == device.StatusConfirmed
	}, "event for new device never applied")
}

func TestDeleteDeviceDetachesWatcher(t *testing.T) {
	store := newFakeStore(testSwitch("sw-1"))
	gw := newFakeGateway()
	engine := New(store, gw, "home-1")

	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer engine.Stop()

	if err := engine.DeleteDevice(context.Background(), "sw-1"); err != nil {
		t.Fatalf("DeleteDevice() error = %v", err)
	}

	// Detach closes the observer channel.
	waitFor(t, func() bool {
		gw.mu.Lock()
		ch := gw.stateCh["sw-1"]
		gw.mu.Unlock()
		select {
		case _, open := <-ch:
			return !open
		default:
			return false
		}
	}, "watcher never detached after delete")

	if _, err := store.GetDevice(context.Background(), "sw-1"); !errors.Is(err, device.ErrDeviceNotFound) {
		t.Errorf("GetDevice after delete = %v, want ErrDeviceNotFound", err)
	}
}

// countingLogger counts calls; used to exercise concurrent logger swaps.
type countingLogger struct {
	calls atomic.Uint64
}

func (l *countingLogger) Debug(string, ...any) { l.calls.Add(1) }
func (l *countingLogger) Info(string, ...any)  { l.calls.Add(1) }
func (l *countingLogger) Warn(string, ...any)  { l.calls.Add(1) }
func (l *countingLogger) Error(string, ...any) { l.calls.Add(1) }

type countingRecorder struct {
	states   atomic.Uint64
	statuses atomic.Uint64
}

func (r *countingRecorder) RecordState(string, string, device.State, time.Time) {
	r.states.Add(1)
}

func (r *countingRecorder) RecordStatus(string, string, bool, time.Time) {
	r.statuses.Add(1)
}

func TestSetLoggerAndRecorderAfterStart(t *testing.T) {
	store := newFakeStore(testSwitch("sw-1"))
	gw := newFakeGateway()
	engine := New(store, gw, "home-1")

	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer engine.Stop()

	// Swap hooks while the watcher is consuming events. Run with the
	// race detector to verify the accesses are synchronized.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			engine.SetLogger(&countingLogger{})
			engine.SetRecorder(&countingRecorder{})
		}
	}()

	for i := 0; i < 20; i++ {
		gw.pushStatus(gateway.StatusUpdate{DeviceID: "sw-1", Online: true, SeenAt: time.Now()})
	}
	<-done

	recorder := &countingRecorder{}
	engine.SetRecorder(recorder)
	gw.pushStatus(gateway.StatusUpdate{DeviceID: "sw-1", Online: false, SeenAt: time.Now()})

	waitFor(t, func() bool {
		return recorder.statuses.Load() >= 1
	}, "recorder set after start never received events")
}

func TestNoApplyAfterWatcherCancelled(t *testing.T) {
	store := newFakeStore(testSwitch("sw-1"))
	gw := newFakeGateway()
	engine := New(store, gw, "home-1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Events drained after cancellation must not touch the store.
	done := "late"
	engine.applyState(ctx, "kitchen", gateway.StateUpdate{
		DeviceID: "sw-1", State: device.On{}, Msg: &done,
	})
	engine.applyStatus(ctx, "kitchen", gateway.StatusUpdate{
		DeviceID: "sw-1", Online: true, SeenAt: time.Now(),
	})

	d, _ := store.GetDevice(context.Background(), "sw-1")
	if d.ResponseStatus != device.StatusIdle {
		t.Errorf("ResponseStatus = %q, want idle after cancelled apply", d.ResponseStatus)
	}
	if d.Online {
		t.Error("Online = true, want untouched after cancelled apply")
	}
}

func TestStartTwice(t *testing.T) {
	store := newFakeStore()
	gw := newFakeGateway()
	engine := New(store, gw, "home-1")

	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer engine.Stop()

	if err := engine.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
}
