package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/TadashiJei/ICP-QikCard-sub000/internal/domain"
)

const eventColumns = `
	id, name, start_date, end_date, status, organizer_id, max_attendees,
	venue_name, venue_address, created_at, updated_at`

func scanEvent(row pgx.Row) (domain.Event, error) {
	var e domain.Event
	err := row.Scan(
		&e.ID,
		&e.Name,
		&e.StartDate,
		&e.EndDate,
		&e.Status,
		&e.OrganizerID,
		&e.MaxAttendees,
		&e.VenueName,
		&e.VenueAddress,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	return e, err
}

func (s *Store) CreateEvent(ctx context.Context, e domain.Event) (domain.Event, error) {
	_, err := s.db.Exec(ctx, `
		INSERT INTO events (
			id, name, start_date, end_date, status, organizer_id,
			max_attendees, venue_name, venue_address, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, e.ID, e.Name, e.StartDate, e.EndDate, e.Status, e.OrganizerID,
		e.MaxAttendees, e.VenueName, e.VenueAddress, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return domain.Event{}, translate(err, domain.ErrEventNotFound, domain.ErrEventNotFound)
	}
	return e, nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	row := s.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if err != nil {
		return domain.Event{}, translate(err, domain.ErrEventNotFound, domain.ErrEventNotFound)
	}
	return e, nil
}

const participantColumns = `
	id, event_id, name, email, status, checked_in_at, checked_out_at,
	created_at, updated_at`

func scanParticipant(row pgx.Row) (domain.Participant, error) {
	var p domain.Participant
	err := row.Scan(
		&p.ID,
		&p.EventID,
		&p.Name,
		&p.Email,
		&p.Status,
		&p.CheckedInAt,
		&p.CheckedOutAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

func (s *Store) CreateParticipant(ctx context.Context, p domain.Participant) (domain.Participant, error) {
	_, err := s.db.Exec(ctx, `
		INSERT INTO participants (
			id, event_id, name, email, status, checked_in_at,
			checked_out_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.EventID, p.Name, p.Email, p.Status, p.CheckedInAt,
		p.CheckedOutAt, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return domain.Participant{}, translate(err, domain.ErrParticipantNotFound, domain.ErrParticipantNotFound)
	}
	return p, nil
}

func (s *Store) GetParticipant(ctx context.Context, id string) (domain.Participant, error) {
	row := s.db.QueryRow(ctx, `SELECT `+participantColumns+` FROM participants WHERE id = $1`, id)
	p, err := scanParticipant(row)
	if err != nil {
		return domain.Participant{}, translate(err, domain.ErrParticipantNotFound, domain.ErrParticipantNotFound)
	}
	return p, nil
}

func (s *Store) ListParticipantsByEvent(ctx context.Context, eventID string) ([]domain.Participant, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+participantColumns+`
		FROM participants
		WHERE event_id = $1
		ORDER BY created_at
	`, eventID)
	if err != nil {
		return nil, domain.Storage(err)
	}
	defer rows.Close()

	var participants []domain.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, domain.Storage(err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Storage(err)
	}
	return participants, nil
}

func (s *Store) MarkParticipantCheckedIn(ctx context.Context, id string, at time.Time) (domain.Participant, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE participants
		SET status = $2, checked_in_at = $3, updated_at = $3
		WHERE id = $1
		RETURNING `+participantColumns,
		id, domain.ParticipantCheckedIn, at)
	p, err := scanParticipant(row)
	if err != nil {
		return domain.Participant{}, translate(err, domain.ErrParticipantNotFound, domain.ErrParticipantNotFound)
	}
	return p, nil
}

func (s *Store) MarkParticipantCheckedOut(ctx context.Context, id string, at time.Time) (domain.Participant, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE participants
		SET status = $2, checked_out_at = $3, updated_at = $3
		WHERE id = $1
		RETURNING `+participantColumns,
		id, domain.ParticipantCheckedOut, at)
	p, err := scanParticipant(row)
	if err != nil {
		return domain.Participant{}, translate(err, domain.ErrParticipantNotFound, domain.ErrParticipantNotFound)
	}
	return p, nil
}
