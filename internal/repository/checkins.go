package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/TadashiJei/ICP-QikCard-sub000/internal/domain"
)

const checkInColumns = `
	id, event_id, participant_id, device_id, user_id, check_in_time,
	check_out_time, metadata`

func scanCheckIn(row pgx.Row) (domain.CheckIn, error) {
	var c domain.CheckIn
	err := row.Scan(
		&c.ID,
		&c.EventID,
		&c.ParticipantID,
		&c.DeviceID,
		&c.UserID,
		&c.CheckInTime,
		&c.CheckOutTime,
		&c.Metadata,
	)
	return c, err
}

func (s *Store) CreateCheckIn(ctx context.Context, c domain.CheckIn) (domain.CheckIn, error) {
	_, err := s.db.Exec(ctx, `
		INSERT INTO check_ins (
			id, event_id, participant_id, device_id, user_id,
			check_in_time, check_out_time, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.EventID, c.ParticipantID, c.DeviceID, c.UserID,
		c.CheckInTime, c.CheckOutTime, c.Metadata)
	if err != nil {
		// The partial unique index on open sessions reports a second
		// concurrent open row as a conflict.
		return domain.CheckIn{}, translate(err, domain.ErrParticipantNotFound, domain.ErrAlreadyCheckedIn)
	}
	return c, nil
}

func (s *Store) FindOpenCheckIn(ctx context.Context, eventID, participantID string) (domain.CheckIn, bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+checkInColumns+`
		FROM check_ins
		WHERE event_id = $1 AND participant_id = $2 AND check_out_time IS NULL
		ORDER BY check_in_time DESC
		LIMIT 1
	`, eventID, participantID)
	c, err := scanCheckIn(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CheckIn{}, false, nil
	}
	if err != nil {
		return domain.CheckIn{}, false, domain.Storage(err)
	}
	return c, true, nil
}

func (s *Store) CloseCheckIn(ctx context.Context, id string, at time.Time, metadata json.RawMessage) (domain.CheckIn, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE check_ins
		SET check_out_time = $2, metadata = $3
		WHERE id = $1
		RETURNING `+checkInColumns,
		id, at, metadata)
	c, err := scanCheckIn(row)
	if err != nil {
		return domain.CheckIn{}, translate(err, domain.ErrParticipantNotFound, domain.ErrAlreadyCheckedIn)
	}
	return c, nil
}

func (s *Store) listCheckIns(ctx context.Context, query string, args ...any) ([]domain.CheckIn, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.Storage(err)
	}
	defer rows.Close()

	var checkIns []domain.CheckIn
	for rows.Next() {
		c, err := scanCheckIn(rows)
		if err != nil {
			return nil, domain.Storage(err)
		}
		checkIns = append(checkIns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Storage(err)
	}
	return checkIns, nil
}

func (s *Store) ListCheckInsByEvent(ctx context.Context, eventID string) ([]domain.CheckIn, error) {
	return s.listCheckIns(ctx, `
		SELECT `+checkInColumns+`
		FROM check_ins
		WHERE event_id = $1
		ORDER BY check_in_time DESC
	`, eventID)
}

func (s *Store) ListCheckInsByParticipant(ctx context.Context, participantID string) ([]domain.CheckIn, error) {
	return s.listCheckIns(ctx, `
		SELECT `+checkInColumns+`
		FROM check_ins
		WHERE participant_id = $1
		ORDER BY check_in_time DESC
	`, participantID)
}

func (s *Store) ListCheckInsByDevice(ctx context.Context, deviceID string) ([]domain.CheckIn, error) {
	return s.listCheckIns(ctx, `
		SELECT `+checkInColumns+`
		FROM check_ins
		WHERE device_id = $1
		ORDER BY check_in_time DESC
	`, deviceID)
}

func (s *Store) ListCheckInsSince(ctx context.Context, since time.Time) ([]domain.CheckIn, error) {
	return s.listCheckIns(ctx, `
		SELECT `+checkInColumns+`
		FROM check_ins
		WHERE check_in_time >= $1
		ORDER BY check_in_time
	`, since)
}
