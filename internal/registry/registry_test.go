package registry

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/TadashiJei/ICP-QikCard-sub000/internal/domain"
	"github.com/TadashiJei/ICP-QikCard-sub000/internal/notify"
	"github.com/TadashiJei/ICP-QikCard-sub000/internal/realtime"
)

type fakeStore struct {
	mu      sync.Mutex
	devices map[string]domain.Device
}

func newFakeStore() *fakeStore {
	return &fakeStore{devices: map[string]domain.Device{}}
}

func (f *fakeStore) CreateDevice(_ context.Context, d domain.Device) (domain.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices[d.ID] = d
	return d, nil
}

func (f *fakeStore) GetDevice(_ context.Context, id string) (domain.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[id]
	if !ok {
		return domain.Device{}, domain.NotFound(domain.ErrDeviceNotFound)
	}
	return d, nil
}

func (f *fakeStore) FindDeviceByOwnerExternalID(_ context.Context, ownerID, deviceID string) (domain.Device, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.devices {
		if d.OwnerID == ownerID && d.DeviceID == deviceID {
			return d, true, nil
		}
	}
	return domain.Device{}, false, nil
}

func (f *fakeStore) UpdateDevice(_ context.Context, d domain.Device) (domain.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.devices[d.ID]; !ok {
		return domain.Device{}, domain.NotFound(domain.ErrDeviceNotFound)
	}
	f.devices[d.ID] = d
	return d, nil
}

func (f *fakeStore) ListDevices(_ context.Context, ownerID, eventID string) ([]domain.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Device
	for _, d := range f.devices {
		if ownerID != "" && d.OwnerID != ownerID {
			continue
		}
		if eventID != "" && (d.EventID == nil || *d.EventID != eventID) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

type capturedMessage struct {
	eventID string
	msg     realtime.Message
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []capturedMessage
}

func (f *fakePublisher) Publish(eventID string, msg realtime.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, capturedMessage{eventID: eventID, msg: msg})
}

func (f *fakePublisher) messages() []capturedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capturedMessage(nil), f.msgs...)
}

func newTestRegistry(store Store, publisher realtime.Publisher, pusher Pusher) *Registry {
	return New(store, publisher, pusher, nil, 5*time.Minute, time.Second)
}

func mustRegister(t *testing.T, r *Registry, deviceID string) domain.Device {
	t.Helper()
	device, err := r.Register(context.Background(), RegisterSpec{
		Name:       "Main Entrance",
		DeviceType: "NFC",
		DeviceID:   deviceID,
		OwnerID:    "owner-1",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return device
}

func TestRegisterAppliesDefaults(t *testing.T) {
	r := newTestRegistry(newFakeStore(), nil, nil)

	device := mustRegister(t, r, "QP-001")
	if device.Status != domain.DeviceStatusActive {
		t.Fatalf("status = %s, want ACTIVE", device.Status)
	}
	if device.IsOnline {
		t.Fatal("fresh device must start offline")
	}
	var config map[string]any
	if err := json.Unmarshal(device.Configuration, &config); err != nil {
		t.Fatalf("default configuration not valid JSON: %v", err)
	}
	if config["timeoutSeconds"] != float64(30) {
		t.Fatalf("timeoutSeconds = %v, want 30", config["timeoutSeconds"])
	}
}

func TestRegisterValidation(t *testing.T) {
	r := newTestRegistry(newFakeStore(), nil, nil)
	ctx := context.Background()

	cases := []struct {
		name string
		spec RegisterSpec
		code string
	}{
		{"unknown type", RegisterSpec{Name: "n", DeviceType: "BLE", DeviceID: "d", OwnerID: "o"}, domain.ErrInvalidDeviceType},
		{"missing name", RegisterSpec{DeviceType: "QR", DeviceID: "d", OwnerID: "o"}, domain.ErrMissingField},
		{"bad config", RegisterSpec{Name: "n", DeviceType: "QR", DeviceID: "d", OwnerID: "o", Configuration: json.RawMessage("{nope")}, domain.ErrInvalidJSON},
	}
	for _, tc := range cases {
		_, err := r.Register(ctx, tc.spec)
		derr, ok := err.(*domain.Error)
		if !ok {
			t.Fatalf("%s: got %v, want *domain.Error", tc.name, err)
		}
		if derr.Code != tc.code {
			t.Fatalf("%s: code = %s, want %s", tc.name, derr.Code, tc.code)
		}
	}
}

func TestRegisterDuplicateDeviceID(t *testing.T) {
	r := newTestRegistry(newFakeStore(), nil, nil)
	mustRegister(t, r, "QP-001")

	_, err := r.Register(context.Background(), RegisterSpec{
		Name:       "Second Scanner",
		DeviceType: "QR",
		DeviceID:   "QP-001",
		OwnerID:    "owner-1",
	})
	derr, ok := err.(*domain.Error)
	if !ok || derr.Kind != domain.KindConflict || derr.Code != domain.ErrDuplicateDevice {
		t.Fatalf("duplicate register: got %v, want conflict %s", err, domain.ErrDuplicateDevice)
	}
}

func TestPingMergesHealthReport(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	r := newTestRegistry(store, pub, nil)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	device := mustRegister(t, r, "QP-001")
	if _, err := r.AssignToEvent(context.Background(), device.ID, "event-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	battery := 87
	online := true
	updated, err := r.Ping(context.Background(), device.ID, PingUpdate{
		BatteryLevel: &battery,
		IsOnline:     &online,
		HealthData:   json.RawMessage(`{"temperature":31.5}`),
	})
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	if updated.BatteryLevel == nil || *updated.BatteryLevel != 87 {
		t.Fatalf("battery = %v, want 87", updated.BatteryLevel)
	}
	if !updated.IsOnline {
		t.Fatal("ping with isOnline=true must mark the device online")
	}
	if updated.LastSeen == nil || !updated.LastSeen.Equal(fixed) {
		t.Fatalf("lastSeen = %v, want %v", updated.LastSeen, fixed)
	}

	// A second ping omitting fields keeps the merged values.
	second, err := r.Ping(context.Background(), device.ID, PingUpdate{})
	if err != nil {
		t.Fatalf("second ping: %v", err)
	}
	if second.BatteryLevel == nil || *second.BatteryLevel != 87 {
		t.Fatalf("battery after sparse ping = %v, want 87", second.BatteryLevel)
	}

	msgs := pub.messages()
	if len(msgs) == 0 {
		t.Fatal("ping on an assigned device must publish a status update")
	}
	last := msgs[len(msgs)-1]
	if last.eventID != "event-1" || last.msg.Type != realtime.MessageDeviceStatusUpdated {
		t.Fatalf("published %s to %s, want %s to event-1", last.msg.Type, last.eventID, realtime.MessageDeviceStatusUpdated)
	}
}

func TestPingRejectsBadBattery(t *testing.T) {
	r := newTestRegistry(newFakeStore(), nil, nil)
	device := mustRegister(t, r, "QP-001")

	for _, level := range []int{-1, 101} {
		_, err := r.Ping(context.Background(), device.ID, PingUpdate{BatteryLevel: &level})
		derr, ok := err.(*domain.Error)
		if !ok || derr.Code != domain.ErrInvalidBatteryLevel {
			t.Fatalf("battery %d: got %v, want %s", level, err, domain.ErrInvalidBatteryLevel)
		}
	}
}

func TestAssignToEventIdempotentAndOverwriting(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	r := newTestRegistry(store, pub, nil)
	device := mustRegister(t, r, "QP-001")
	ctx := context.Background()

	first, err := r.AssignToEvent(ctx, device.ID, "event-1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if first.EventID == nil || *first.EventID != "event-1" {
		t.Fatalf("eventId = %v, want event-1", first.EventID)
	}

	// Same event again: no-op, no extra publish.
	before := len(pub.messages())
	again, err := r.AssignToEvent(ctx, device.ID, "event-1")
	if err != nil {
		t.Fatalf("re-assign: %v", err)
	}
	if *again.EventID != "event-1" || len(pub.messages()) != before {
		t.Fatal("assigning to the current event must be a silent no-op")
	}

	// A different event replaces the assignment.
	moved, err := r.AssignToEvent(ctx, device.ID, "event-2")
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if moved.EventID == nil || *moved.EventID != "event-2" {
		t.Fatalf("eventId after reassign = %v, want event-2", moved.EventID)
	}
}

func TestUnassignIdempotent(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	r := newTestRegistry(store, pub, nil)
	device := mustRegister(t, r, "QP-001")
	ctx := context.Background()

	if _, err := r.AssignToEvent(ctx, device.ID, "event-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	unassigned, err := r.UnassignFromEvent(ctx, device.ID)
	if err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if unassigned.EventID != nil {
		t.Fatalf("eventId = %v, want nil", unassigned.EventID)
	}
	msgs := pub.messages()
	last := msgs[len(msgs)-1]
	if last.eventID != "event-1" {
		t.Fatalf("unassign must notify the channel the device left, got %s", last.eventID)
	}

	// Second unassign: same terminal state, no error, no publish.
	before := len(pub.messages())
	again, err := r.UnassignFromEvent(ctx, device.ID)
	if err != nil {
		t.Fatalf("second unassign: %v", err)
	}
	if again.EventID != nil || len(pub.messages()) != before {
		t.Fatal("unassigning an unassigned device must be a silent no-op")
	}
}

func TestUpdateRejectsUnknownStatus(t *testing.T) {
	r := newTestRegistry(newFakeStore(), nil, nil)
	device := mustRegister(t, r, "QP-001")

	bad := "BROKEN"
	_, err := r.Update(context.Background(), device.ID, UpdateSpec{Status: &bad})
	derr, ok := err.(*domain.Error)
	if !ok || derr.Code != domain.ErrInvalidStatus {
		t.Fatalf("got %v, want %s", err, domain.ErrInvalidStatus)
	}
}

type notifyStore struct {
	mu      sync.Mutex
	created []domain.Notification
}

func (n *notifyStore) CreateNotification(_ context.Context, notif domain.Notification) (domain.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, notif)
	return notif, nil
}

func (n *notifyStore) ListNotifications(context.Context, string, *bool, string) ([]domain.Notification, error) {
	return nil, nil
}

func (n *notifyStore) MarkNotificationRead(context.Context, string) (domain.Notification, error) {
	return domain.Notification{}, nil
}

func TestUpdateToErrorNotifiesOwner(t *testing.T) {
	store := newFakeStore()
	notifs := &notifyStore{}
	r := New(store, nil, nil, notify.NewEmitter(notifs), 5*time.Minute, time.Second)
	device := mustRegister(t, r, "QP-001")
	ctx := context.Background()

	errStatus := "ERROR"
	if _, err := r.Update(ctx, device.ID, UpdateSpec{Status: &errStatus}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(notifs.created) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notifs.created))
	}
	if notifs.created[0].Type != domain.NotificationError || notifs.created[0].UserID != "owner-1" {
		t.Fatalf("notification = %+v, want ERROR to owner-1", notifs.created[0])
	}

	// Already in ERROR: no repeat notification.
	if _, err := r.Update(ctx, device.ID, UpdateSpec{Status: &errStatus}); err != nil {
		t.Fatalf("second update: %v", err)
	}
	if len(notifs.created) != 1 {
		t.Fatalf("notifications after repeat = %d, want still 1", len(notifs.created))
	}
}

type fakePusher struct {
	pushed chan json.RawMessage
}

func (f *fakePusher) Push(_ context.Context, _ domain.Device, config json.RawMessage) error {
	f.pushed <- config
	return nil
}

func TestConfigurePersistsThenPushes(t *testing.T) {
	store := newFakeStore()
	pusher := &fakePusher{pushed: make(chan json.RawMessage, 1)}
	r := newTestRegistry(store, nil, pusher)
	device := mustRegister(t, r, "QP-001")

	config := json.RawMessage(`{"timeoutSeconds":60}`)
	updated, err := r.Configure(context.Background(), device.ID, config)
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	if string(updated.Configuration) != string(config) {
		t.Fatalf("configuration = %s, want %s", updated.Configuration, config)
	}

	select {
	case got := <-pusher.pushed:
		if string(got) != string(config) {
			t.Fatalf("pushed %s, want %s", got, config)
		}
	case <-time.After(time.Second):
		t.Fatal("configuration was never pushed to the device endpoint")
	}
}

func TestHealthStaleness(t *testing.T) {
	store := newFakeStore()
	r := newTestRegistry(store, nil, nil)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }
	device := mustRegister(t, r, "QP-001")
	ctx := context.Background()

	// Never seen: stale.
	health, err := r.Health(ctx, device.ID)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if !health.Stale {
		t.Fatal("a device that never pinged must be stale")
	}

	if _, err := r.Ping(ctx, device.ID, PingUpdate{}); err != nil {
		t.Fatalf("ping: %v", err)
	}
	health, err = r.Health(ctx, device.ID)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if health.Stale {
		t.Fatal("a device seen just now must not be stale")
	}

	// Move the clock past the threshold.
	r.now = func() time.Time { return fixed.Add(6 * time.Minute) }
	health, err = r.Health(ctx, device.ID)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if !health.Stale {
		t.Fatal("a device silent past the threshold must be stale")
	}
}
