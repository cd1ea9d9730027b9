// Package notify turns coordinator and registry transitions into
// notification rows. Writes are best-effort: a failure is logged and
// never reaches the caller of the originating operation.
package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/TadashiJei/ICP-QikCard-sub000/internal/domain"
)

type Store interface {
	CreateNotification(ctx context.Context, n domain.Notification) (domain.Notification, error)
	ListNotifications(ctx context.Context, userID string, isRead *bool, kind string) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) (domain.Notification, error)
}

type Emitter struct {
	store Store
}

func NewEmitter(store Store) *Emitter {
	return &Emitter{store: store}
}

func (e *Emitter) CheckedIn(ctx context.Context, participant domain.Participant, operatorID string) {
	e.emit(ctx, domain.Notification{
		Title:   "Check-In",
		Message: fmt.Sprintf("Participant %s checked in", participant.Name),
		Type:    domain.NotificationSuccess,
		UserID:  operatorID,
	})
}

func (e *Emitter) CheckedOut(ctx context.Context, participant domain.Participant, operatorID string) {
	e.emit(ctx, domain.Notification{
		Title:   "Check-Out",
		Message: fmt.Sprintf("Participant %s checked out", participant.Name),
		Type:    domain.NotificationInfo,
		UserID:  operatorID,
	})
}

func (e *Emitter) DeviceOffline(ctx context.Context, device domain.Device) {
	e.emit(ctx, domain.Notification{
		Title:   "Device Offline",
		Message: fmt.Sprintf("Device %s (%s) missed its heartbeat window", device.Name, device.DeviceID),
		Type:    domain.NotificationWarning,
		UserID:  device.OwnerID,
	})
}

func (e *Emitter) DeviceError(ctx context.Context, device domain.Device, detail string) {
	e.emit(ctx, domain.Notification{
		Title:   "Device Error",
		Message: fmt.Sprintf("Device %s reported an error: %s", device.DeviceID, detail),
		Type:    domain.NotificationError,
		UserID:  device.OwnerID,
	})
}

func (e *Emitter) emit(ctx context.Context, n domain.Notification) {
	n.ID = uuid.NewString()
	n.CreatedAt = time.Now().UTC()
	if _, err := e.store.CreateNotification(ctx, n); err != nil {
		log.Printf("notification write failed (%s): %v", n.Title, err)
	}
}

// Service exposes the read side: listing and read-acknowledgement.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) List(ctx context.Context, userID string, isRead *bool, kind string) ([]domain.Notification, error) {
	return s.store.ListNotifications(ctx, userID, isRead, kind)
}

func (s *Service) MarkRead(ctx context.Context, id string) (domain.Notification, error) {
	return s.store.MarkNotificationRead(ctx, id)
}
