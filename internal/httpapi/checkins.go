package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/TadashiJei/ICP-QikCard-sub000/internal/checkin"
	"github.com/TadashiJei/ICP-QikCard-sub000/internal/domain"
)

type checkInRequest struct {
	EventID       string          `json:"eventId"`
	ParticipantID string          `json:"participantId"`
	UserID        string          `json:"userId"`
	DeviceID      *string         `json:"deviceId"`
	Metadata      json.RawMessage `json:"metadata"`
}

func (r checkInRequest) toRequest() checkin.Request {
	return checkin.Request{
		EventID:       r.EventID,
		ParticipantID: r.ParticipantID,
		OperatorID:    r.UserID,
		DeviceID:      r.DeviceID,
		Metadata:      r.Metadata,
	}
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidJSON)
		return
	}
	record, err := s.coordinator.CheckIn(r.Context(), req.toRequest())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	checkInsTotal.Inc()
	writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidJSON)
		return
	}
	record, err := s.coordinator.CheckOut(r.Context(), req.toRequest())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	checkOutsTotal.Inc()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"checkIn": record,
	})
}

func (s *Server) handleListEventCheckIns(w http.ResponseWriter, r *http.Request) {
	checkIns, err := s.coordinator.ListByEvent(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if checkIns == nil {
		checkIns = []domain.CheckIn{}
	}
	writeJSON(w, http.StatusOK, checkIns)
}

func (s *Server) handleListParticipantCheckIns(w http.ResponseWriter, r *http.Request) {
	checkIns, err := s.coordinator.ListByParticipant(r.Context(), chi.URLParam(r, "participantId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if checkIns == nil {
		checkIns = []domain.CheckIn{}
	}
	writeJSON(w, http.StatusOK, checkIns)
}
