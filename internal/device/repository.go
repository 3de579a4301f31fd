package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves all devices.
	List(ctx context.Context) ([]Device, error)

	// ListByRoom retrieves all devices in a specific room.
	ListByRoom(ctx context.Context, roomID string) ([]Device, error)

	// Create inserts a new device.
	// Returns ErrDeviceExists if a device with the same ID already exists.
	Create(ctx context.Context, device *Device) error

	// Update modifies an existing device.
	// Returns ErrDeviceNotFound if the device does not exist.
	Update(ctx context.Context, device *Device) error

	// Delete removes a device by ID.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error

	// UpdateState updates only the state, response status and response
	// message of a device. This is the write path for both optimistic
	// command writes and confirmed inbound events.
	UpdateState(ctx context.Context, id string, state State, status ResponseStatus, msg *string) error

	// UpdateOnline updates only the online flag of a device.
	UpdateOnline(ctx context.Context, id string, online bool) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `id, name, type, room_id, state, online,
	response_msg, response_status, created_at, updated_at`

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return device, nil
}

// List retrieves all devices.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices ORDER BY name`
	return r.queryDevices(ctx, query)
}

// ListByRoom retrieves all devices in a specific room.
func (r *SQLiteRepository) ListByRoom(ctx context.Context, roomID string) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE room_id = ? ORDER BY name`
	return r.queryDevices(ctx, query, roomID)
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, device *Device) error {
	stateJSON, err := EncodeState(device.State)
	if err != nil {
		return err
	}

	// Set timestamps if not set
	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now

	if device.ResponseStatus == "" {
		device.ResponseStatus = StatusIdle
	}

	query := `
		INSERT INTO devices (
			id, name, type, room_id, state, online,
			response_msg, response_status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		device.ID,
		device.Name,
		string(device.Type),
		device.RoomID,
		stateJSON,
		boolToInt(device.Online),
		nullableString(device.ResponseMsg),
		string(device.ResponseStatus),
		device.CreatedAt.Format(time.RFC3339),
		device.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}

	return nil
}

// Update modifies an existing device.
func (r *SQLiteRepository) Update(ctx context.Context, device *Device) error {
	stateJSON, err := EncodeState(device.State)
	if err != nil {
		return err
	}

	device.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE devices SET
			name = ?, type = ?, room_id = ?, state = ?, online = ?,
			response_msg = ?, response_status = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		device.Name,
		string(device.Type),
		device.RoomID,
		stateJSON,
		boolToInt(device.Online),
		nullableString(device.ResponseMsg),
		string(device.ResponseStatus),
		device.UpdatedAt.Format(time.RFC3339),
		device.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}

	return requireRowAffected(result)
}

// Delete removes a device by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	return requireRowAffected(result)
}

// UpdateState updates the state, response status and response message.
func (r *SQLiteRepository) UpdateState(ctx context.Context, id string, state State, status ResponseStatus, msg *string) error {
	stateJSON, err := EncodeState(state)
	if err != nil {
		return err
	}

	query := `
		UPDATE devices SET
			state = ?, response_status = ?, response_msg = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		stateJSON,
		string(status),
		nullableString(msg),
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating device state: %w", err)
	}
	return requireRowAffected(result)
}

// UpdateOnline updates the online flag of a device.
func (r *SQLiteRepository) UpdateOnline(ctx context.Context, id string, online bool) error {
	query := `UPDATE devices SET online = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		boolToInt(online),
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating device online flag: %w", err)
	}
	return requireRowAffected(result)
}

// queryDevices runs a query expected to return device rows.
func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows close

	var devices []Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}
		devices = append(devices, *device)
	}
	return devices, rows.Err()
}

// rowScanner abstracts sql.Row and sql.Rows for scanDevice.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a single device row.
func scanDevice(row rowScanner) (*Device, error) {
	var (
		d           Device
		deviceType  string
		stateJSON   string
		online      int
		responseMsg sql.NullString
		status      string
		createdAt   string
		updatedAt   string
	)

	err := row.Scan(
		&d.ID,
		&d.Name,
		&deviceType,
		&d.RoomID,
		&stateJSON,
		&online,
		&responseMsg,
		&status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Type = DeviceType(deviceType)
	d.Online = online != 0
	d.ResponseStatus = ResponseStatus(status)

	if responseMsg.Valid {
		msg := responseMsg.String
		d.ResponseMsg = &msg
	}

	state, err := DecodeState(stateJSON)
	if err != nil {
		return nil, err
	}
	d.State = state

	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		d.CreatedAt = t
	}
	if t, parseErr := time.Parse(time.RFC3339, updatedAt); parseErr == nil {
		d.UpdatedAt = t
	}

	return &d, nil
}

// requireRowAffected converts a zero-row update into ErrDeviceNotFound.
func requireRowAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// nullableString converts *string to a driver-friendly value.
func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// boolToInt converts a bool to SQLite's integer representation.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks for SQLite unique constraint violations.
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
