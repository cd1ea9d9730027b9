package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/TadashiJei/ICP-QikCard-sub000/internal/domain"
)

const deviceColumns = `
	id, device_id, name, device_type, status, location_name, location_lat,
	location_lng, firmware_version, battery_level, signal_strength,
	is_online, last_seen, owner_id, event_id, configuration, health_data,
	created_at, updated_at`

func scanDevice(row pgx.Row) (domain.Device, error) {
	var d domain.Device
	err := row.Scan(
		&d.ID,
		&d.DeviceID,
		&d.Name,
		&d.Type,
		&d.Status,
		&d.LocationName,
		&d.LocationLat,
		&d.LocationLng,
		&d.FirmwareVersion,
		&d.BatteryLevel,
		&d.SignalStrength,
		&d.IsOnline,
		&d.LastSeen,
		&d.OwnerID,
		&d.EventID,
		&d.Configuration,
		&d.HealthData,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	return d, err
}

func (s *Store) CreateDevice(ctx context.Context, d domain.Device) (domain.Device, error) {
	_, err := s.db.Exec(ctx, `
		INSERT INTO devices (
			id, device_id, name, device_type, status, location_name,
			location_lat, location_lng, firmware_version, battery_level,
			signal_strength, is_online, last_seen, owner_id, event_id,
			configuration, health_data, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`, d.ID, d.DeviceID, d.Name, d.Type, d.Status, d.LocationName,
		d.LocationLat, d.LocationLng, d.FirmwareVersion, d.BatteryLevel,
		d.SignalStrength, d.IsOnline, d.LastSeen, d.OwnerID, d.EventID,
		d.Configuration, d.HealthData, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return domain.Device{}, translate(err, domain.ErrDeviceNotFound, domain.ErrDuplicateDevice)
	}
	return d, nil
}

func (s *Store) GetDevice(ctx context.Context, id string) (domain.Device, error) {
	row := s.db.QueryRow(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = $1`, id)
	d, err := scanDevice(row)
	if err != nil {
		return domain.Device{}, translate(err, domain.ErrDeviceNotFound, domain.ErrDuplicateDevice)
	}
	return d, nil
}

func (s *Store) FindDeviceByOwnerExternalID(ctx context.Context, ownerID, deviceID string) (domain.Device, bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+deviceColumns+`
		FROM devices
		WHERE owner_id = $1 AND device_id = $2
	`, ownerID, deviceID)
	d, err := scanDevice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Device{}, false, nil
	}
	if err != nil {
		return domain.Device{}, false, domain.Storage(err)
	}
	return d, true, nil
}

func (s *Store) UpdateDevice(ctx context.Context, d domain.Device) (domain.Device, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE devices SET
			name = $2, device_type = $3, status = $4, location_name = $5,
			location_lat = $6, location_lng = $7, firmware_version = $8,
			battery_level = $9, signal_strength = $10, is_online = $11,
			last_seen = $12, event_id = $13, configuration = $14,
			health_data = $15, updated_at = $16
		WHERE id = $1
	`, d.ID, d.Name, d.Type, d.Status, d.LocationName,
		d.LocationLat, d.LocationLng, d.FirmwareVersion,
		d.BatteryLevel, d.SignalStrength, d.IsOnline,
		d.LastSeen, d.EventID, d.Configuration,
		d.HealthData, d.UpdatedAt)
	if err != nil {
		return domain.Device{}, domain.Storage(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Device{}, domain.NotFound(domain.ErrDeviceNotFound)
	}
	return d, nil
}

func (s *Store) ListDevices(ctx context.Context, ownerID, eventID string) ([]domain.Device, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+deviceColumns+`
		FROM devices
		WHERE ($1 = '' OR owner_id = $1)
		  AND ($2 = '' OR event_id = $2)
		ORDER BY created_at DESC
	`, ownerID, eventID)
	if err != nil {
		return nil, domain.Storage(err)
	}
	defer rows.Close()

	var devices []domain.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, domain.Storage(err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Storage(err)
	}
	return devices, nil
}

func (s *Store) ListStaleOnlineDevices(ctx context.Context, lastSeenBefore time.Time) ([]domain.Device, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+deviceColumns+`
		FROM devices
		WHERE is_online AND last_seen IS NOT NULL AND last_seen < $1
	`, lastSeenBefore)
	if err != nil {
		return nil, domain.Storage(err)
	}
	defer rows.Close()

	var devices []domain.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, domain.Storage(err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Storage(err)
	}
	return devices, nil
}
