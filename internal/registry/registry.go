// Package registry owns the canonical view of device health and the
// device lifecycle: registration, pings, event assignment, and
// configuration pushes to the physical device.
package registry

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
	CreateDevice(ctx context.Context, d domain.Device) (domain.Device, error)
	GetDevice(ctx context.Context, id string) (domain.Device, error)
	FindDeviceByOwnerExternalID(ctx context.Context, ownerID, deviceID string) (domain.Device, bool, error)
	UpdateDevice(ctx context.Context, d domain.Device) (domain.Device, error)
	ListDevices(ctx context.Context, ownerID, eventID string) ([]domain.Device, error)
}

// Pusher delivers configuration to the physical device endpoint.
// Calls are time-bounded and best-effort.
type Pusher interface {
	Push(ctx context.Context, device domain.Device, config json.RawMessage) error
}

type Registry struct {
	store            Store
	publisher        realtime.Publisher
	pusher           Pusher
	emitter          *notify.Emitter
	pings            *keymutex.KeyMutex
	offlineThreshold time.Duration
	pushTimeout      time.Duration
	now              func() time.Time
}

func New(store Store, publisher realtime.Publisher, pusher Pusher, emitter *notify.Emitter, offlineThreshold, pushTimeout time.Duration) *Registry {
	return &Registry{
		store:            store,
		publisher:        publisher,
		pusher:           pusher,
		emitter:          emitter,
		pings:            keymutex.New(),
		offlineThreshold: offlineThreshold,
		pushTimeout:      pushTimeout,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

type RegisterSpec struct {
	Name            string
	DeviceType      string
	DeviceID        string
	LocationName    string
	LocationLat     *float64
	LocationLng     *float64
	FirmwareVersion string
	OwnerID         string
	Configuration   json.RawMessage
}

// defaultConfiguration mirrors the factory settings shipped on new
// QikPoint scanners.
func defaultConfiguration() json.RawMessage {
	return json.RawMessage(`{"checkInMessage":"Welcome to the event!","successSound":true,"ledIndicators":true,"timeoutSeconds":30,"retryAttempts":3,"customBranding":false,"welcomeMessage":"Please tap your card or scan QR code","successMessage":"Check-in successful!","errorMessage":"Check-in failed. Please try again."}`)
}

func (r *Registry) Register(ctx context.Context, spec RegisterSpec) (domain.Device, error) {
	deviceType, ok := domain.ParseDeviceType(spec.DeviceType)
	if !ok {
		return domain.Device{}, domain.Validation(domain.ErrInvalidDeviceType)
	}
	if spec.Name == "" || spec.DeviceID == "" || spec.OwnerID == "" {
		return domain.Device{}, domain.Validation(domain.ErrMissingField)
	}
	if spec.Configuration != nil && !json.Valid(spec.Configuration) {
		return domain.Device{}, domain.Validation(domain.ErrInvalidJSON)
	}

	if _, exists, err := r.store.FindDeviceByOwnerExternalID(ctx, spec.OwnerID, spec.DeviceID); err != nil {
		return domain.Device{}, err
	} else if exists {
		return domain.Device{}, domain.Conflict(domain.ErrDuplicateDevice)
	}

	config := spec.Configuration
	if config == nil {
		config = defaultConfiguration()
	}
	now := r.now()
	device := domain.Device{
		ID:              uuid.NewString(),
		DeviceID:        spec.DeviceID,
		Name:            spec.Name,
		Type:            deviceType,
		Status:          domain.DeviceStatusActive,
		LocationName:    spec.LocationName,
		LocationLat:     spec.LocationLat,
		LocationLng:     spec.LocationLng,
		FirmwareVersion: spec.FirmwareVersion,
		IsOnline:        false,
		OwnerID:         spec.OwnerID,
		Configuration:   config,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return r.store.CreateDevice(ctx, device)
}

type PingUpdate struct {
	BatteryLevel   *int
	SignalStrength *int
	IsOnline       *bool
	HealthData     json.RawMessage
}

// Ping merges a health report into the durable record and stamps
// lastSeen. Pings for the same device are serialized; distinct devices
// proceed in parallel.
func (r *Registry) Ping(ctx context.Context, id string, update PingUpdate) (domain.Device, error) {
	if update.HealthData != nil && !json.Valid(update.HealthData) {
		return domain.Device{}, domain.Validation(domain.ErrInvalidJSON)
	}
	if update.BatteryLevel != nil && (*update.BatteryLevel < 0 || *update.BatteryLevel > 100) {
		return domain.Device{}, domain.Validation(domain.ErrInvalidBatteryLevel)
	}

	r.pings.Lock(id)
	defer r.pings.Unlock(id)

	device, err := r.store.GetDevice(ctx, id)
	if err != nil {
		return domain.Device{}, err
	}

	now := r.now()
	device.LastSeen = &now
	device.UpdatedAt = now
	if update.BatteryLevel != nil {
		device.BatteryLevel = update.BatteryLevel
	}
	if update.SignalStrength != nil {
		device.SignalStrength = update.SignalStrength
	}
	if update.IsOnline != nil {
		device.IsOnline = *update.IsOnline
	}
	if update.HealthData != nil {
		device.HealthData = update.HealthData
	}

	updated, err := r.store.UpdateDevice(ctx, device)
	if err != nil {
		return domain.Device{}, err
	}
	r.publishStatus(updated)
	return updated, nil
}

// AssignToEvent is idempotent: assigning a device to the event it
// already belongs to is a no-op. Reassignment overwrites the previous
// assignment; a device never holds more than one.
func (r *Registry) AssignToEvent(ctx context.Context, id, eventID string) (domain.Device, error) {
	if eventID == "" {
		return domain.Device{}, domain.Validation(domain.ErrMissingField)
	}
	device, err := r.store.GetDevice(ctx, id)
	if err != nil {
		return domain.Device{}, err
	}
	if device.EventID != nil && *device.EventID == eventID {
		return device, nil
	}
	device.EventID = &eventID
	device.UpdatedAt = r.now()
	updated, err := r.store.UpdateDevice(ctx, device)
	if err != nil {
		return domain.Device{}, err
	}
	r.publishStatus(updated)
	return updated, nil
}

func (r *Registry) UnassignFromEvent(ctx context.Context, id string) (domain.Device, error) {
	device, err := r.store.GetDevice(ctx, id)
	if err != nil {
		return domain.Device{}, err
	}
	if device.EventID == nil {
		return device, nil
	}
	previous := *device.EventID
	device.EventID = nil
	device.UpdatedAt = r.now()
	updated, err := r.store.UpdateDevice(ctx, device)
	if err != nil {
		return domain.Device{}, err
	}
	if r.publisher != nil {
		r.publisher.Publish(previous, realtime.NewMessage(realtime.MessageDeviceStatusUpdated, updated))
	}
	return updated, nil
}

type UpdateSpec struct {
	Name            *string
	Status          *string
	LocationName    *string
	LocationLat     *float64
	LocationLng     *float64
	FirmwareVersion *string
	Configuration   json.RawMessage
}

func (r *Registry) Update(ctx context.Context, id string, spec UpdateSpec) (domain.Device, error) {
	if spec.Configuration != nil && !json.Valid(spec.Configuration) {
		return domain.Device{}, domain.Validation(domain.ErrInvalidJSON)
	}
	var status domain.DeviceStatus
	if spec.Status != nil {
		switch domain.DeviceStatus(*spec.Status) {
		case domain.DeviceStatusActive, domain.DeviceStatusInactive, domain.DeviceStatusMaintenance, domain.DeviceStatusError:
			status = domain.DeviceStatus(*spec.Status)
		default:
			return domain.Device{}, domain.Validation(domain.ErrInvalidStatus)
		}
	}

	device, err := r.store.GetDevice(ctx, id)
	if err != nil {
		return domain.Device{}, err
	}
	enteredError := spec.Status != nil && status == domain.DeviceStatusError && device.Status != domain.DeviceStatusError
	if spec.Name != nil {
		device.Name = *spec.Name
	}
	if spec.Status != nil {
		device.Status = status
	}
	if spec.LocationName != nil {
		device.LocationName = *spec.LocationName
	}
	if spec.LocationLat != nil {
		device.LocationLat = spec.LocationLat
	}
	if spec.LocationLng != nil {
		device.LocationLng = spec.LocationLng
	}
	if spec.FirmwareVersion != nil {
		device.FirmwareVersion = *spec.FirmwareVersion
	}
	if spec.Configuration != nil {
		device.Configuration = spec.Configuration
	}
	device.UpdatedAt = r.now()
	updated, err := r.store.UpdateDevice(ctx, device)
	if err != nil {
		return domain.Device{}, err
	}
	if enteredError && r.emitter != nil {
		r.emitter.DeviceError(ctx, updated, "status set to ERROR")
	}
	r.publishStatus(updated)
	return updated, nil
}

// Configure persists a new configuration, then pushes it to the device
// endpoint on a background goroutine with a bounded context. A failed
// push never fails the operation: the durable write already happened
// and the device picks the configuration up on its next sync.
func (r *Registry) Configure(ctx context.Context, id string, config json.RawMessage) (domain.Device, error) {
	if config == nil || !json.Valid(config) {
		return domain.Device{}, domain.Validation(domain.ErrInvalidJSON)
	}
	device, err := r.store.GetDevice(ctx, id)
	if err != nil {
		return domain.Device{}, err
	}
	device.Configuration = config
	device.UpdatedAt = r.now()
	updated, err := r.store.UpdateDevice(ctx, device)
	if err != nil {
		return domain.Device{}, err
	}

	if r.pusher != nil {
		go func(device domain.Device, config json.RawMessage) {
			pushCtx, cancel := context.WithTimeout(context.Background(), r.pushTimeout)
			defer cancel()
			if err := r.pusher.Push(pushCtx, device, config); err != nil {
				log.Printf("config push to device %s failed: %v", device.DeviceID, err)
			}
		}(updated, config)
	}
	return updated, nil
}

func (r *Registry) Get(ctx context.Context, id string) (domain.Device, error) {
	return r.store.GetDevice(ctx, id)
}

func (r *Registry) List(ctx context.Context, ownerID, eventID string) ([]domain.Device, error) {
	return r.store.ListDevices(ctx, ownerID, eventID)
}

// Health returns the merged health view. Staleness is computed against
// the offline threshold but the stored flags are reported untouched;
// treating a stale device as offline is the caller's call.
func (r *Registry) Health(ctx context.Context, id string) (domain.DeviceHealth, error) {
	device, err := r.store.GetDevice(ctx, id)
	if err != nil {
		return domain.DeviceHealth{}, err
	}
	stale := device.LastSeen == nil || r.now().Sub(*device.LastSeen) > r.offlineThreshold
	return domain.DeviceHealth{
		DeviceID:        device.DeviceID,
		IsOnline:        device.IsOnline,
		Stale:           stale,
		BatteryLevel:    device.BatteryLevel,
		SignalStrength:  device.SignalStrength,
		FirmwareVersion: device.FirmwareVersion,
		LastSeen:        device.LastSeen,
		HealthData:      device.HealthData,
	}, nil
}

func (r *Registry) publishStatus(device domain.Device) {
	if r.publisher == nil || device.EventID == nil {
		return
	}
	r.publisher.Publish(*device.EventID, realtime.NewMessage(realtime.MessageDeviceStatusUpdated, device))
}
