// Package httpapi exposes the coordination server over HTTP: device
// and check-in commands, analytics reads, notification reads, and the
// per-event SSE channel.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TadashiJei/ICP-QikCard-sub000/internal/analytics"
	"github.com/TadashiJei/ICP-QikCard-sub000/internal/checkin"
	"github.com/TadashiJei/ICP-QikCard-sub000/internal/config"
	"github.com/TadashiJei/ICP-QikCard-sub000/internal/domain"
	"github.com/TadashiJei/ICP-QikCard-sub000/internal/notify"
	"github.com/TadashiJei/ICP-QikCard-sub000/internal/realtime"
	"github.com/TadashiJei/ICP-QikCard-sub000/internal/registry"
)

type EventStore interface {
	CreateEvent(ctx context.Context, e domain.Event) (domain.Event, error)
	CreateParticipant(ctx context.Context, p domain.Participant) (domain.Participant, error)
}

type Server struct {
	cfg           config.Config
	registry      *registry.Registry
	coordinator   *checkin.Coordinator
	notifications *notify.Service
	aggregator    *analytics.Aggregator
	hub           *realtime.Hub
	events        EventStore
	limiter       PingLimiter
}

func NewServer(cfg config.Config, reg *registry.Registry, coordinator *checkin.Coordinator, notifications *notify.Service, aggregator *analytics.Aggregator, hub *realtime.Hub, events EventStore, limiter PingLimiter) *Server {
	return &Server{
		cfg:           cfg,
		registry:      reg,
		coordinator:   coordinator,
		notifications: notifications,
		aggregator:    aggregator,
		hub:           hub,
		events:        events,
		limiter:       limiter,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/devices", s.handleRegisterDevice)
	r.Get("/devices", s.handleListDevices)
	r.Get("/devices/{deviceId}", s.handleGetDevice)
	r.Patch("/devices/{deviceId}", s.handleUpdateDevice)
	r.Post("/devices/{deviceId}/ping", s.handlePingDevice)
	r.Post("/devices/{deviceId}/assign-event", s.handleAssignDevice)
	r.Post("/devices/{deviceId}/unassign-event", s.handleUnassignDevice)
	r.Get("/devices/{deviceId}/health", s.handleDeviceHealth)
	r.Post("/devices/{deviceId}/configure", s.handleConfigureDevice)
	r.Get("/devices/{deviceId}/analytics", s.handleDeviceAnalytics)

	r.Post("/events", s.handleCreateEvent)
	r.Post("/events/{eventId}/participants", s.handleCreateParticipant)
	r.Get("/events/{eventId}/checkins", s.handleListEventCheckIns)
	r.Get("/events/{eventId}/analytics", s.handleEventAnalytics)
	r.Get("/events/{eventId}/stream", s.handleEventStream)

	r.Post("/checkins", s.handleCheckIn)
	r.Post("/checkins/checkout", s.handleCheckOut)
	r.Get("/participants/{participantId}/checkins", s.handleListParticipantCheckIns)

	r.Get("/analytics/trends", s.handleTrends)

	r.Get("/notifications", s.handleListNotifications)
	r.Post("/notifications/{notificationId}/read", s.handleMarkNotificationRead)

	return r
}

// Helpers

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeDomainError maps the error taxonomy onto status codes. Storage
// failures are logged with their cause; the caller only sees the code.
func writeDomainError(w http.ResponseWriter, err error) {
	var domainErr *domain.Error
	if !errors.As(err, &domainErr) {
		log.Printf("unexpected error: %v", err)
		writeError(w, http.StatusInternalServerError, domain.ErrStorage)
		return
	}
	switch domainErr.Kind {
	case domain.KindValidation:
		writeError(w, http.StatusBadRequest, domainErr.Code)
	case domain.KindNotFound:
		writeError(w, http.StatusNotFound, domainErr.Code)
	case domain.KindConflict:
		writeError(w, http.StatusConflict, domainErr.Code)
	case domain.KindExternal:
		log.Printf("external service error: %v", domainErr)
		writeError(w, http.StatusBadGateway, domainErr.Code)
	default:
		log.Printf("storage error: %v", domainErr)
		writeError(w, http.StatusInternalServerError, domainErr.Code)
	}
}
