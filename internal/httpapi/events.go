package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/TadashiJei/ICP-QikCard-sub000/internal/domain"
)

type createEventRequest struct {
	Name         string    `json:"name"`
	StartDate    time.Time `json:"startDate"`
	EndDate      time.Time `json:"endDate"`
	OrganizerID  string    `json:"organizerId"`
	MaxAttendees int       `json:"maxAttendees"`
	VenueName    string    `json:"venueName"`
	VenueAddress string    `json:"venueAddress"`
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidJSON)
		return
	}
	if req.Name == "" || req.OrganizerID == "" {
		writeError(w, http.StatusBadRequest, domain.ErrMissingField)
		return
	}
	if !req.StartDate.Before(req.EndDate) {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidDateWindow)
		return
	}
	now := time.Now().UTC()
	event, err := s.events.CreateEvent(r.Context(), domain.Event{
		ID:           uuid.NewString(),
		Name:         req.Name,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Status:       domain.EventStatusDraft,
		OrganizerID:  req.OrganizerID,
		MaxAttendees: req.MaxAttendees,
		VenueName:    req.VenueName,
		VenueAddress: req.VenueAddress,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

type createParticipantRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *Server) handleCreateParticipant(w http.ResponseWriter, r *http.Request) {
	var req createParticipantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidJSON)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, domain.ErrMissingField)
		return
	}
	now := time.Now().UTC()
	participant, err := s.events.CreateParticipant(r.Context(), domain.Participant{
		ID:        uuid.NewString(),
		EventID:   chi.URLParam(r, "eventId"),
		Name:      req.Name,
		Email:     req.Email,
		Status:    domain.ParticipantRegistered,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, participant)
}

func (s *Server) handleEventAnalytics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.aggregator.EventStats(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	days := s.cfg.TrendWindowDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_days")
			return
		}
		days = parsed
	}
	trends, err := s.aggregator.Trends(r.Context(), days)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trends)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	var isRead *bool
	if raw := r.URL.Query().Get("isRead"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_is_read")
			return
		}
		isRead = &parsed
	}
	notifications, err := s.notifications.List(r.Context(), r.URL.Query().Get("userId"), isRead, r.URL.Query().Get("type"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if notifications == nil {
		notifications = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, notifications)
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	notification, err := s.notifications.MarkRead(r.Context(), chi.URLParam(r, "notificationId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notification)
}
