package domain

import (
	"encoding/json"
	"time"
)

type DeviceType string

const (
	DeviceTypeNFC    DeviceType = "NFC"
	DeviceTypeQR     DeviceType = "QR"
	DeviceTypeHybrid DeviceType = "HYBRID"
)

func ParseDeviceType(value string) (DeviceType, bool) {
	switch DeviceType(value) {
	case DeviceTypeNFC, DeviceTypeQR, DeviceTypeHybrid:
		return DeviceType(value), true
	}
	return "", false
}

type DeviceStatus string

const (
	DeviceStatusActive      DeviceStatus = "ACTIVE"
	DeviceStatusInactive    DeviceStatus = "INACTIVE"
	DeviceStatusMaintenance DeviceStatus = "MAINTENANCE"
	DeviceStatusError       DeviceStatus = "ERROR"
)

type EventStatus string

const (
	EventStatusDraft     EventStatus = "DRAFT"
	EventStatusActive    EventStatus = "ACTIVE"
	EventStatusOngoing   EventStatus = "ONGOING"
	EventStatusCompleted EventStatus = "COMPLETED"
	EventStatusCancelled EventStatus = "CANCELLED"
)

type ParticipantStatus string

const (
	ParticipantRegistered ParticipantStatus = "REGISTERED"
	ParticipantApproved   ParticipantStatus = "APPROVED"
	ParticipantCheckedIn  ParticipantStatus = "CHECKED_IN"
	ParticipantCheckedOut ParticipantStatus = "CHECKED_OUT"
	ParticipantCancelled  ParticipantStatus = "CANCELLED"
)

type NotificationType string

const (
	NotificationInfo    NotificationType = "INFO"
	NotificationWarning NotificationType = "WARNING"
	NotificationError   NotificationType = "ERROR"
	NotificationSuccess NotificationType = "SUCCESS"
)

type Device struct {
	ID              string          `json:"id"`
	DeviceID        string          `json:"deviceId"`
	Name            string          `json:"name"`
	Type            DeviceType      `json:"deviceType"`
	Status          DeviceStatus    `json:"status"`
	LocationName    string          `json:"locationName"`
	LocationLat     *float64        `json:"locationLat,omitempty"`
	LocationLng     *float64        `json:"locationLng,omitempty"`
	FirmwareVersion string          `json:"firmwareVersion"`
	BatteryLevel    *int            `json:"batteryLevel,omitempty"`
	SignalStrength  *int            `json:"signalStrength,omitempty"`
	IsOnline        bool            `json:"isOnline"`
	LastSeen        *time.Time      `json:"lastSeen,omitempty"`
	OwnerID         string          `json:"ownerId"`
	EventID         *string         `json:"eventId,omitempty"`
	Configuration   json.RawMessage `json:"configuration,omitempty"`
	HealthData      json.RawMessage `json:"healthData,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// DeviceHealth is the derived view returned by the registry: stored
// flags merged with the most recent ping, plus a staleness judgement
// computed against the configured offline threshold.
type DeviceHealth struct {
	DeviceID        string          `json:"deviceId"`
	IsOnline        bool            `json:"isOnline"`
	Stale           bool            `json:"stale"`
	BatteryLevel    *int            `json:"batteryLevel,omitempty"`
	SignalStrength  *int            `json:"signalStrength,omitempty"`
	FirmwareVersion string          `json:"firmwareVersion"`
	LastSeen        *time.Time      `json:"lastSeen,omitempty"`
	HealthData      json.RawMessage `json:"healthData,omitempty"`
}

type Event struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	StartDate    time.Time   `json:"startDate"`
	EndDate      time.Time   `json:"endDate"`
	Status       EventStatus `json:"status"`
	OrganizerID  string      `json:"organizerId"`
	MaxAttendees int         `json:"maxAttendees"`
	VenueName    string      `json:"venueName,omitempty"`
	VenueAddress string      `json:"venueAddress,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

type Participant struct {
	ID           string            `json:"id"`
	EventID      string            `json:"eventId"`
	Name         string            `json:"name"`
	Email        string            `json:"email,omitempty"`
	Status       ParticipantStatus `json:"status"`
	CheckedInAt  *time.Time        `json:"checkedInAt,omitempty"`
	CheckedOutAt *time.Time        `json:"checkedOutAt,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

type CheckIn struct {
	ID            string          `json:"id"`
	EventID       string          `json:"eventId"`
	ParticipantID string          `json:"participantId"`
	DeviceID      *string         `json:"deviceId,omitempty"`
	UserID        *string         `json:"userId,omitempty"`
	CheckInTime   time.Time       `json:"checkInTime"`
	CheckOutTime  *time.Time      `json:"checkOutTime,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// Open reports whether this row is an open session.
func (c CheckIn) Open() bool {
	return c.CheckOutTime == nil
}

type Notification struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	UserID    string           `json:"userId"`
	IsRead    bool             `json:"isRead"`
	Metadata  json.RawMessage  `json:"metadata,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}
