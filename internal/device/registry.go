package device

import (
	"context"
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides device management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by cache-invalidating CRUD operations.
//
// All public methods are thread-safe. The Registry is the durable store
// consumed by the reconciliation engine; its writes alone drive every
// downstream observer of device state.
type Registry struct {
	repo    Repository
	cache   map[string]*Device // Cached devices by ID
	cacheMu sync.RWMutex       // Protects cache
	logger  Logger
}

// NewRegistry creates a new device registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Device),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		d := devices[i]
		r.cache[d.ID] = d.Clone()
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// DeviceCount returns the number of cached devices.
func (r *Registry) DeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// GetDevice retrieves a device by ID.
// Returns ErrDeviceNotFound if the device does not exist.
// The returned device is a copy; callers can safely modify it.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		return cached.Clone(), nil
	}

	// Fall back to repository (might be a new device not yet cached)
	device, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[id] = device.Clone()
	r.cacheMu.Unlock()

	return device, nil
}

// ListDevices retrieves all devices.
// The returned devices are copies; callers can safely modify them.
func (r *Registry) ListDevices(ctx context.Context) ([]Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if len(r.cache) > 0 {
		devices := make([]Device, 0, len(r.cache))
		for _, d := range r.cache {
			devices = append(devices, *d.Clone())
		}
		return devices, nil
	}

	return r.repo.List(ctx)
}

// ListDevicesByRoom retrieves all devices in a specific room.
func (r *Registry) ListDevicesByRoom(ctx context.Context, roomID string) ([]Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if len(r.cache) > 0 {
		var devices []Device
		for _, d := range r.cache {
			if d.RoomID == roomID {
				devices = append(devices, *d.Clone())
			}
		}
		return devices, nil
	}

	return r.repo.ListByRoom(ctx, roomID)
}

// CreateDevice creates a new device.
// It generates an ID if needed, validates the device, and persists it.
func (r *Registry) CreateDevice(ctx context.Context, device *Device) error {
	if device.ID == "" {
		device.ID = GenerateID()
	}
	if device.State == nil {
		device.State = defaultState(device.Type)
	}
	if device.ResponseStatus == "" {
		device.ResponseStatus = StatusIdle
	}

	if err := ValidateDevice(device); err != nil {
		return err
	}

	if err := r.repo.Create(ctx, device); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[device.ID] = device.Clone()
	r.cacheMu.Unlock()

	r.logger.Info("device created", "id", device.ID, "name", device.Name)
	return nil
}

// UpdateDevice updates an existing device.
func (r *Registry) UpdateDevice(ctx context.Context, device *Device) error {
	if err := ValidateDevice(device); err != nil {
		return err
	}

	if err := r.repo.Update(ctx, device); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[device.ID] = device.Clone()
	r.cacheMu.Unlock()

	return nil
}

// DeleteDevice removes a device.
func (r *Registry) DeleteDevice(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("device deleted", "id", id)
	return nil
}

// SetDeviceState writes a device's state, response status and response
// message. Used for both optimistic command writes and confirmed events.
func (r *Registry) SetDeviceState(ctx context.Context, id string, state State, status ResponseStatus, msg *string) error {
	if err := r.repo.UpdateState(ctx, id, state, status, msg); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		cached.State = state
		cached.ResponseStatus = status
		if msg != nil {
			m := *msg
			cached.ResponseMsg = &m
		} else {
			cached.ResponseMsg = nil
		}
	}
	r.cacheMu.Unlock()

	return nil
}

// SetDeviceOnline writes a device's online flag.
func (r *Registry) SetDeviceOnline(ctx context.Context, id string, online bool) error {
	if err := r.repo.UpdateOnline(ctx, id, online); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		cached.Online = online
	}
	r.cacheMu.Unlock()

	return nil
}

// defaultState returns the initial state for a freshly created device.
func defaultState(t DeviceType) State {
	switch t {
	case TypeDimmer, TypeSensor:
		return Numeric{Value: 0}
	default:
		return Off{}
	}
}
