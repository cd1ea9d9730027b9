package httpapi

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/TadashiJei/ICP-QikCard-sub000/internal/domain"
	"github.com/TadashiJei/ICP-QikCard-sub000/internal/registry"
)

type registerDeviceRequest struct {
	Name            string          `json:"name"`
	DeviceType      string          `json:"deviceType"`
	DeviceID        string          `json:"deviceId"`
	LocationName    string          `json:"locationName"`
	LocationLat     *float64        `json:"locationLat"`
	LocationLng     *float64        `json:"locationLng"`
	FirmwareVersion string          `json:"firmwareVersion"`
	OwnerID         string          `json:"ownerId"`
	Configuration   json.RawMessage `json:"configuration"`
}

func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidJSON)
		return
	}
	device, err := s.registry.Register(r.Context(), registry.RegisterSpec{
		Name:            req.Name,
		DeviceType:      req.DeviceType,
		DeviceID:        req.DeviceID,
		LocationName:    req.LocationName,
		LocationLat:     req.LocationLat,
		LocationLng:     req.LocationLng,
		FirmwareVersion: req.FirmwareVersion,
		OwnerID:         req.OwnerID,
		Configuration:   req.Configuration,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, device)
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.registry.List(r.Context(), r.URL.Query().Get("ownerId"), r.URL.Query().Get("eventId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if devices == nil {
		devices = []domain.Device{}
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	device, err := s.registry.Get(r.Context(), chi.URLParam(r, "deviceId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

type updateDeviceRequest struct {
	Name            *string         `json:"name"`
	Status          *string         `json:"status"`
	LocationName    *string         `json:"locationName"`
	LocationLat     *float64        `json:"locationLat"`
	LocationLng     *float64        `json:"locationLng"`
	FirmwareVersion *string         `json:"firmwareVersion"`
	Configuration   json.RawMessage `json:"configuration"`
}

func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	var req updateDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidJSON)
		return
	}
	device, err := s.registry.Update(r.Context(), chi.URLParam(r, "deviceId"), registry.UpdateSpec{
		Name:            req.Name,
		Status:          req.Status,
		LocationName:    req.LocationName,
		LocationLat:     req.LocationLat,
		LocationLng:     req.LocationLng,
		FirmwareVersion: req.FirmwareVersion,
		Configuration:   req.Configuration,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

type pingDeviceRequest struct {
	BatteryLevel   *int            `json:"batteryLevel"`
	SignalStrength *int            `json:"signalStrength"`
	IsOnline       *bool           `json:"isOnline"`
	HealthData     json.RawMessage `json:"healthData"`
}

func (s *Server) handlePingDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	allowed, err := s.limiter.Allow(r.Context(), deviceID)
	if err != nil {
		// A broken limiter backend should not take the fleet's
		// heartbeats down with it.
		log.Printf("ping limiter failed for %s: %v", deviceID, err)
		allowed = true
	}
	if !allowed {
		pingsThrottledTotal.Inc()
		writeError(w, http.StatusTooManyRequests, "rate_limited")
		return
	}

	var req pingDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidJSON)
		return
	}
	device, err := s.registry.Ping(r.Context(), deviceID, registry.PingUpdate{
		BatteryLevel:   req.BatteryLevel,
		SignalStrength: req.SignalStrength,
		IsOnline:       req.IsOnline,
		HealthData:     req.HealthData,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	devicePingsTotal.Inc()
	writeJSON(w, http.StatusOK, device)
}

type assignDeviceRequest struct {
	EventID string `json:"eventId"`
}

func (s *Server) handleAssignDevice(w http.ResponseWriter, r *http.Request) {
	var req assignDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidJSON)
		return
	}
	device, err := s.registry.AssignToEvent(r.Context(), chi.URLParam(r, "deviceId"), req.EventID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

func (s *Server) handleUnassignDevice(w http.ResponseWriter, r *http.Request) {
	device, err := s.registry.UnassignFromEvent(r.Context(), chi.URLParam(r, "deviceId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

func (s *Server) handleDeviceHealth(w http.ResponseWriter, r *http.Request) {
	health, err := s.registry.Health(r.Context(), chi.URLParam(r, "deviceId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, health)
}

type configureDeviceRequest struct {
	Configuration json.RawMessage `json:"configuration"`
}

func (s *Server) handleConfigureDevice(w http.ResponseWriter, r *http.Request) {
	var req configureDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidJSON)
		return
	}
	device, err := s.registry.Configure(r.Context(), chi.URLParam(r, "deviceId"), req.Configuration)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

func (s *Server) handleDeviceAnalytics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.aggregator.DeviceStats(r.Context(), chi.URLParam(r, "deviceId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
