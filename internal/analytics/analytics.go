// Package analytics computes read-side rollups on demand. It consumes
// no live events; every number is recomputed from the durable records.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/TadashiJei/ICP-QikCard-sub000/internal/domain"
)

type Store interface {
	GetEvent(ctx context.Context, id string) (domain.Event, error)
	GetDevice(ctx context.Context, id string) (domain.Device, error)
	ListParticipantsByEvent(ctx context.Context, eventID string) ([]domain.Participant, error)
	ListCheckInsByEvent(ctx context.Context, eventID string) ([]domain.CheckIn, error)
	ListCheckInsByDevice(ctx context.Context, deviceID string) ([]domain.CheckIn, error)
	ListCheckInsSince(ctx context.Context, since time.Time) ([]domain.CheckIn, error)
	ListDevices(ctx context.Context, ownerID, eventID string) ([]domain.Device, error)
}

type Aggregator struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Aggregator {
	return &Aggregator{store: store, now: func() time.Time { return time.Now().UTC() }}
}

type DeviceCheckIns struct {
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
	CheckIns   int    `json:"checkIns"`
}

type HourBucket struct {
	Hour     string `json:"hour"`
	CheckIns int    `json:"checkIns"`
}

type EventStats struct {
	EventID           string                           `json:"eventId"`
	TotalParticipants int                              `json:"totalParticipants"`
	CheckedIn         int                              `json:"checkedInParticipants"`
	CheckInCount      int                              `json:"totalCheckIns"`
	CheckInRate       float64                          `json:"checkInRate"`
	TotalDevices      int                              `json:"totalDevices"`
	ActiveDevices     int                              `json:"activeDevices"`
	ParticipantStatus map[domain.ParticipantStatus]int `json:"participantStatus"`
	CheckInsByDevice  []DeviceCheckIns                 `json:"checkInsByDevice"`
	HourlyCheckIns    []HourBucket                     `json:"hourlyCheckIns"`
}

func (a *Aggregator) EventStats(ctx context.Context, eventID string) (EventStats, error) {
	if _, err := a.store.GetEvent(ctx, eventID); err != nil {
		return EventStats{}, err
	}
	participants, err := a.store.ListParticipantsByEvent(ctx, eventID)
	if err != nil {
		return EventStats{}, err
	}
	checkIns, err := a.store.ListCheckInsByEvent(ctx, eventID)
	if err != nil {
		return EventStats{}, err
	}
	devices, err := a.store.ListDevices(ctx, "", eventID)
	if err != nil {
		return EventStats{}, err
	}

	stats := EventStats{
		EventID:           eventID,
		TotalParticipants: len(participants),
		CheckInCount:      len(checkIns),
		TotalDevices:      len(devices),
		ParticipantStatus: make(map[domain.ParticipantStatus]int),
	}
	for _, p := range participants {
		stats.ParticipantStatus[p.Status]++
		if p.Status == domain.ParticipantCheckedIn {
			stats.CheckedIn++
		}
	}
	if stats.TotalParticipants > 0 {
		stats.CheckInRate = float64(stats.CheckedIn) / float64(stats.TotalParticipants) * 100
	}
	for _, d := range devices {
		if d.Status == domain.DeviceStatusActive {
			stats.ActiveDevices++
		}
	}

	deviceNames := make(map[string]string, len(devices))
	for _, d := range devices {
		deviceNames[d.ID] = d.Name
	}
	perDevice := make(map[string]int)
	for _, c := range checkIns {
		if c.DeviceID != nil {
			perDevice[*c.DeviceID]++
		}
	}
	for id, count := range perDevice {
		name := deviceNames[id]
		if name == "" {
			name = "Unknown Device"
		}
		stats.CheckInsByDevice = append(stats.CheckInsByDevice, DeviceCheckIns{
			DeviceID:   id,
			DeviceName: name,
			CheckIns:   count,
		})
	}
	stats.HourlyCheckIns = hourlyHistogram(checkIns)
	return stats, nil
}

func hourlyHistogram(checkIns []domain.CheckIn) []HourBucket {
	buckets := make([]HourBucket, 24)
	for i := range buckets {
		buckets[i].Hour = fmt.Sprintf("%02d:00", i)
	}
	for _, c := range checkIns {
		buckets[c.CheckInTime.UTC().Hour()].CheckIns++
	}
	return buckets
}

type DeviceUtilization struct {
	DeviceID           string  `json:"deviceId"`
	TotalCheckIns      int     `json:"totalCheckIns"`
	UniqueParticipants int     `json:"uniqueParticipants"`
	MeanDwellSeconds   float64 `json:"meanDwellSeconds"`
}

// DeviceStats computes per-device utilization. Mean dwell time covers
// closed sessions only; open sessions have no duration yet.
func (a *Aggregator) DeviceStats(ctx context.Context, deviceID string) (DeviceUtilization, error) {
	device, err := a.store.GetDevice(ctx, deviceID)
	if err != nil {
		return DeviceUtilization{}, err
	}
	checkIns, err := a.store.ListCheckInsByDevice(ctx, device.ID)
	if err != nil {
		return DeviceUtilization{}, err
	}

	util := DeviceUtilization{DeviceID: device.ID, TotalCheckIns: len(checkIns)}
	participants := make(map[string]struct{})
	var dwellTotal time.Duration
	closed := 0
	for _, c := range checkIns {
		participants[c.ParticipantID] = struct{}{}
		if c.CheckOutTime != nil {
			dwellTotal += c.CheckOutTime.Sub(c.CheckInTime)
			closed++
		}
	}
	util.UniqueParticipants = len(participants)
	if closed > 0 {
		util.MeanDwellSeconds = dwellTotal.Seconds() / float64(closed)
	}
	return util, nil
}

type TrendBucket struct {
	Date     string `json:"date"`
	CheckIns int    `json:"checkIns"`
}

// Trends buckets check-ins per day over the trailing window, with
// empty days zero-filled so charts stay continuous.
func (a *Aggregator) Trends(ctx context.Context, days int) ([]TrendBucket, error) {
	if days <= 0 {
		days = 30
	}
	end := a.now().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -(days - 1))

	checkIns, err := a.store.ListCheckInsSince(ctx, start)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, c := range checkIns {
		counts[c.CheckInTime.UTC().Format("2006-01-02")]++
	}

	buckets := make([]TrendBucket, 0, days)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		buckets = append(buckets, TrendBucket{Date: key, CheckIns: counts[key]})
	}
	return buckets, nil
}
