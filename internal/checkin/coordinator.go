// Package checkin governs a participant's presence at an event. The
// open-session invariant (at most one CheckIn row without a checkout
// time per participant and event) is enforced by serializing check-in
// and check-out per (event, participant) key.
package checkin

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/TadashiJei/ICP-QikCard-sub000/internal/domain"
	"github.com/TadashiJei/ICP-QikCard-sub000/internal/keymutex"
	"github.com/TadashiJei/ICP-QikCard-sub000/internal/notify"
	"github.com/TadashiJei/ICP-QikCard-sub000/internal/realtime"
)

type Store interface {
	GetParticipant(ctx context.Context, id string) (domain.Participant, error)
	CreateCheckIn(ctx context.Context, c domain.CheckIn) (domain.CheckIn, error)
	// FindOpenCheckIn returns the most recent open session for the
	// pair, ordered by check-in time descending.
	FindOpenCheckIn(ctx context.Context, eventID, participantID string) (domain.CheckIn, bool, error)
	CloseCheckIn(ctx context.Context, id string, at time.Time, metadata json.RawMessage) (domain.CheckIn, error)
	MarkParticipantCheckedIn(ctx context.Context, id string, at time.Time) (domain.Participant, error)
	MarkParticipantCheckedOut(ctx context.Context, id string, at time.Time) (domain.Participant, error)
	ListCheckInsByEvent(ctx context.Context, eventID string) ([]domain.CheckIn, error)
	ListCheckInsByParticipant(ctx context.Context, participantID string) ([]domain.CheckIn, error)
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Anchorer records a completed check-in on the ledger. Failures stay
// in the side channel.
type Anchorer interface {
	AnchorCheckIn(ctx context.Context, eventID, participantID string, at time.Time) error
}

const sideEffectTimeout = 10 * time.Second

type Coordinator struct {
	store     Store
	emitter   *notify.Emitter
	publisher realtime.Publisher
	anchorer  Anchorer
	sessions  *keymutex.KeyMutex
	now       func() time.Time
	dispatch  func(fn func())
}

func NewCoordinator(store Store, emitter *notify.Emitter, publisher realtime.Publisher, anchorer Anchorer) *Coordinator {
	return &Coordinator{
		store:     store,
		emitter:   emitter,
		publisher: publisher,
		anchorer:  anchorer,
		sessions:  keymutex.New(),
		now:       func() time.Time { return time.Now().UTC() },
		dispatch:  func(fn func()) { go fn() },
	}
}

type Request struct {
	EventID       string
	ParticipantID string
	OperatorID    string
	DeviceID      *string
	Metadata      json.RawMessage
}

func (r Request) validate() error {
	if r.EventID == "" || r.ParticipantID == "" || r.OperatorID == "" {
		return domain.Validation(domain.ErrMissingField)
	}
	if r.Metadata != nil && !json.Valid(r.Metadata) {
		return domain.Validation(domain.ErrInvalidJSON)
	}
	return nil
}

func sessionKey(eventID, participantID string) string {
	return eventID + "/" + participantID
}

// CheckIn opens a session for the participant. A participant with an
// open session is rejected with a conflict rather than a second open
// row; concurrent calls for the same pair are serialized so the check
// and the insert cannot interleave.
func (c *Coordinator) CheckIn(ctx context.Context, req Request) (domain.CheckIn, error) {
	if err := req.validate(); err != nil {
		return domain.CheckIn{}, err
	}

	key := sessionKey(req.EventID, req.ParticipantID)
	c.sessions.Lock(key)
	defer c.sessions.Unlock(key)

	participant, err := c.participantInEvent(ctx, req.ParticipantID, req.EventID)
	if err != nil {
		return domain.CheckIn{}, err
	}

	if _, open, err := c.store.FindOpenCheckIn(ctx, req.EventID, req.ParticipantID); err != nil {
		return domain.CheckIn{}, err
	} else if open {
		return domain.CheckIn{}, domain.Conflict(domain.ErrAlreadyCheckedIn)
	}

	now := c.now()
	record := domain.CheckIn{
		ID:            uuid.NewString(),
		EventID:       req.EventID,
		ParticipantID: req.ParticipantID,
		DeviceID:      req.DeviceID,
		UserID:        &req.OperatorID,
		CheckInTime:   now,
		Metadata:      req.Metadata,
	}

	err = c.store.WithTx(ctx, func(tx Store) error {
		created, err := tx.CreateCheckIn(ctx, record)
		if err != nil {
			return err
		}
		record = created
		participant, err = tx.MarkParticipantCheckedIn(ctx, req.ParticipantID, now)
		return err
	})
	if err != nil {
		return domain.CheckIn{}, err
	}

	c.dispatch(func() {
		sideCtx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		c.emitter.CheckedIn(sideCtx, participant, req.OperatorID)
		if c.publisher != nil {
			c.publisher.Publish(req.EventID, realtime.NewMessage(realtime.MessageParticipantCheckedIn, record))
		}
		if c.anchorer != nil {
			if err := c.anchorer.AnchorCheckIn(sideCtx, req.EventID, req.ParticipantID, now); err != nil {
				log.Printf("ledger anchor for check-in %s failed: %v", record.ID, err)
			}
		}
	})
	return record, nil
}

// CheckOut closes the most recent open session. With no open session
// it records an instant session (checkInTime == checkOutTime) instead
// of failing; if older open rows exist from pre-fix data they stay
// orphaned by design of the tie-break rule.
func (c *Coordinator) CheckOut(ctx context.Context, req Request) (domain.CheckIn, error) {
	if err := req.validate(); err != nil {
		return domain.CheckIn{}, err
	}

	key := sessionKey(req.EventID, req.ParticipantID)
	c.sessions.Lock(key)
	defer c.sessions.Unlock(key)

	participant, err := c.participantInEvent(ctx, req.ParticipantID, req.EventID)
	if err != nil {
		return domain.CheckIn{}, err
	}

	open, found, err := c.store.FindOpenCheckIn(ctx, req.EventID, req.ParticipantID)
	if err != nil {
		return domain.CheckIn{}, err
	}

	now := c.now()
	var record domain.CheckIn
	err = c.store.WithTx(ctx, func(tx Store) error {
		if !found {
			record = domain.CheckIn{
				ID:            uuid.NewString(),
				EventID:       req.EventID,
				ParticipantID: req.ParticipantID,
				DeviceID:      req.DeviceID,
				UserID:        &req.OperatorID,
				CheckInTime:   now,
				CheckOutTime:  &now,
				Metadata:      req.Metadata,
			}
			created, err := tx.CreateCheckIn(ctx, record)
			if err != nil {
				return err
			}
			record = created
		} else {
			metadata := open.Metadata
			if req.Metadata != nil {
				metadata = req.Metadata
			}
			closed, err := tx.CloseCheckIn(ctx, open.ID, now, metadata)
			if err != nil {
				return err
			}
			record = closed
		}
		participant, err = tx.MarkParticipantCheckedOut(ctx, req.ParticipantID, now)
		return err
	})
	if err != nil {
		return domain.CheckIn{}, err
	}

	c.dispatch(func() {
		sideCtx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		c.emitter.CheckedOut(sideCtx, participant, req.OperatorID)
		if c.publisher != nil {
			c.publisher.Publish(req.EventID, realtime.NewMessage(realtime.MessageParticipantCheckedOut, record))
		}
	})
	return record, nil
}

func (c *Coordinator) ListByEvent(ctx context.Context, eventID string) ([]domain.CheckIn, error) {
	return c.store.ListCheckInsByEvent(ctx, eventID)
}

func (c *Coordinator) ListByParticipant(ctx context.Context, participantID string) ([]domain.CheckIn, error) {
	return c.store.ListCheckInsByParticipant(ctx, participantID)
}

func (c *Coordinator) participantInEvent(ctx context.Context, participantID, eventID string) (domain.Participant, error) {
	participant, err := c.store.GetParticipant(ctx, participantID)
	if err != nil {
		return domain.Participant{}, err
	}
	if participant.EventID != eventID {
		return domain.Participant{}, domain.NotFound(domain.ErrParticipantNotFound)
	}
	return participant, nil
}
