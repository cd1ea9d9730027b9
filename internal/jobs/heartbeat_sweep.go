package jobs

import (
	"context"
	"log"
	"time"

	"github.com/TadashiJei/ICP-QikCard-sub000/internal/domain"
	"github.com/TadashiJei/ICP-QikCard-sub000/internal/notify"
	"github.com/TadashiJei/ICP-QikCard-sub000/internal/realtime"
)

type Store interface {
	ListStaleOnlineDevices(ctx context.Context, lastSeenBefore time.Time) ([]domain.Device, error)
	UpdateDevice(ctx context.Context, d domain.Device) (domain.Device, error)
}

// StartHeartbeatSweep marks devices offline once their heartbeat goes
// stale. Each transition notifies the owner and pushes a status update
// on the assigned event's channel.
func StartHeartbeatSweep(ctx context.Context, store Store, emitter *notify.Emitter, publisher realtime.Publisher, interval, threshold time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	if threshold <= 0 {
		threshold = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				count, err := SweepOnce(ctx, store, emitter, publisher, threshold)
				if err != nil {
					log.Printf("heartbeat sweep error: %v", err)
					continue
				}
				if count > 0 {
					log.Printf("heartbeat sweep marked %d device(s) offline", count)
				}
			}
		}
	}()
}

// SweepOnce runs a single sweep pass and reports how many devices it
// flipped offline.
func SweepOnce(ctx context.Context, store Store, emitter *notify.Emitter, publisher realtime.Publisher, threshold time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-threshold)
	stale, err := store.ListStaleOnlineDevices(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, device := range stale {
		device.IsOnline = false
		device.UpdatedAt = time.Now().UTC()
		updated, err := store.UpdateDevice(ctx, device)
		if err != nil {
			log.Printf("failed to mark device %s offline: %v", device.DeviceID, err)
			continue
		}
		count++
		if emitter != nil {
			emitter.DeviceOffline(ctx, updated)
		}
		if publisher != nil && updated.EventID != nil {
			publisher.Publish(*updated.EventID, realtime.NewMessage(realtime.MessageDeviceStatusUpdated, updated))
		}
	}
	return count, nil
}
