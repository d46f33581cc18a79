// Package handler exposes the trip module over HTTP. It stays thin: decode,
// delegate to the service, translate coded errors into the envelope.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"rihla/internal/platform/metrics"
	"rihla/internal/platform/middleware"
	"rihla/internal/trip/models"
	"rihla/internal/trip/service"
	"rihla/internal/trip/store"
	id "rihla/pkg/domain"
	dErrors "rihla/pkg/domain-errors"
	"rihla/pkg/platform/httputil"
	"rihla/pkg/requestcontext"
)

// Service defines the trip operations the handler needs.
type Service interface {
	CreateTrip(ctx context.Context, params models.NewTripParams) (*models.Trip, error)
	GetTrips(ctx context.Context, orgID id.OrgID, filter store.TripFilter) ([]*models.Trip, error)
	GetTripByID(ctx context.Context, tripID id.TripID) (*models.Trip, error)
	OpenTrip(ctx context.Context, tripID id.TripID) (*models.Trip, error)
	CloseTrip(ctx context.Context, tripID id.TripID) (*models.Trip, error)

	CreateRegistration(ctx context.Context, params service.CreateRegistrationParams) (*models.Registration, error)
	GetRegistration(ctx context.Context, regID id.RegistrationID) (*models.Registration, error)
	ListRegistrations(ctx context.Context, tripID id.TripID) ([]*models.Registration, error)
	RecordPayment(ctx context.Context, regID id.RegistrationID, amount id.Money) (*models.Registration, error)
	UpdateVisaStatus(ctx context.Context, regID id.RegistrationID, visa models.VisaInfo) (*models.Registration, error)
	CancelRegistration(ctx context.Context, regID id.RegistrationID, reason string, refund *id.Money) (*models.Registration, error)

	GetStatistics(ctx context.Context, orgID id.OrgID) (*models.Statistics, error)
}

// Handler handles trip and registration endpoints.
type Handler struct {
	logger       *slog.Logger
	trips        Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a trip Handler.
func New(
	trips Service,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		trips:        trips,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the trip routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	tripRouter := chi.NewRouter()
	tripRouter.Use(middleware.Recovery(h.logger))
	tripRouter.Use(middleware.RequestID)
	tripRouter.Use(middleware.RequestTime)
	tripRouter.Use(middleware.Logger(h.logger))
	tripRouter.Use(middleware.Timeout(30 * time.Second))
	tripRouter.Use(middleware.ContentTypeJSON)
	tripRouter.Use(middleware.LatencyMiddleware(h.metrics))
	tripRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	tripRouter.Post("/trips", h.handleCreateTrip)
	tripRouter.Get("/trips", h.handleGetTrips)
	tripRouter.Get("/trips/{tripID}", h.handleGetTrip)
	tripRouter.Post("/trips/{tripID}/open", h.handleOpenTrip)
	tripRouter.Post("/trips/{tripID}/close", h.handleCloseTrip)
	tripRouter.Post("/trips/{tripID}/registrations", h.handleCreateRegistration)
	tripRouter.Get("/trips/{tripID}/registrations", h.handleListRegistrations)
	tripRouter.Get("/registrations/{registrationID}", h.handleGetRegistration)
	tripRouter.Post("/registrations/{registrationID}/payments", h.handleRecordPayment)
	tripRouter.Put("/registrations/{registrationID}/visa", h.handleUpdateVisa)
	tripRouter.Post("/registrations/{registrationID}/cancel", h.handleCancelRegistration)
	tripRouter.Get("/statistics", h.handleGetStatistics)

	r.Mount("/", tripRouter)
}

// orgFromContext returns the authenticated organization, or writes a 500 when
// the auth middleware failed to set one.
func (h *Handler) orgFromContext(w http.ResponseWriter, r *http.Request) (id.OrgID, bool) {
	orgID := requestcontext.OrgID(r.Context())
	if orgID.IsNil() {
		h.logger.ErrorContext(r.Context(), "org missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return orgID, false
	}
	return orgID, true
}

func (h *Handler) handleCreateTrip(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := h.orgFromContext(w, r)
	if !ok {
		return
	}

	var req createTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	trip, err := h.trips.CreateTrip(ctx, req.toParams(orgID))
	if err != nil {
		h.writeServiceError(w, r, err, "failed to create trip")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, trip)
}

func (h *Handler) handleGetTrips(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := h.orgFromContext(w, r)
	if !ok {
		return
	}

	filter := store.TripFilter{Status: models.TripStatus(r.URL.Query().Get("status"))}
	trips, err := h.trips.GetTrips(ctx, orgID, filter)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to list trips")
		return
	}
	if trips == nil {
		trips = []*models.Trip{}
	}
	httputil.WriteJSON(w, http.StatusOK, tripListResponse{Trips: trips})
}

func (h *Handler) handleGetTrip(w http.ResponseWriter, r *http.Request) {
	tripID, ok := h.tripIDFromPath(w, r)
	if !ok {
		return
	}
	trip, err := h.trips.GetTripByID(r.Context(), tripID)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to load trip")
		return
	}
	h.requireOrgMatch(w, r, trip.OrgID, func() {
		httputil.WriteJSON(w, http.StatusOK, trip)
	})
}

func (h *Handler) handleOpenTrip(w http.ResponseWriter, r *http.Request) {
	h.handleTripTransition(w, r, h.trips.OpenTrip, "failed to open trip")
}

func (h *Handler) handleCloseTrip(w http.ResponseWriter, r *http.Request) {
	h.handleTripTransition(w, r, h.trips.CloseTrip, "failed to close trip")
}

func (h *Handler) handleTripTransition(w http.ResponseWriter, r *http.Request, transition func(context.Context, id.TripID) (*models.Trip, error), msg string) {
	tripID, ok := h.tripIDFromPath(w, r)
	if !ok {
		return
	}
	if !h.authorizeTrip(w, r, tripID) {
		return
	}
	trip, err := transition(r.Context(), tripID)
	if err != nil {
		h.writeServiceError(w, r, err, msg)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, trip)
}

func (h *Handler) handleCreateRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tripID, ok := h.tripIDFromPath(w, r)
	if !ok {
		return
	}
	if !h.authorizeTrip(w, r, tripID) {
		return
	}

	var req createRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	memberID, err := id.ParseMemberID(req.MemberID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "member_id must be a valid UUID"))
		return
	}
	var totalOverride *id.Money
	if req.TotalAmount != nil {
		amount := id.Money(*req.TotalAmount)
		totalOverride = &amount
	}

	reg, err := h.trips.CreateRegistration(ctx, service.CreateRegistrationParams{
		TripID:        tripID,
		MemberID:      memberID,
		RoomType:      req.RoomType,
		TotalOverride: totalOverride,
	})
	if err != nil {
		h.writeServiceError(w, r, err, "failed to create registration")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, reg)
}

func (h *Handler) handleListRegistrations(w http.ResponseWriter, r *http.Request) {
	tripID, ok := h.tripIDFromPath(w, r)
	if !ok {
		return
	}
	if !h.authorizeTrip(w, r, tripID) {
		return
	}
	regs, err := h.trips.ListRegistrations(r.Context(), tripID)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to list registrations")
		return
	}
	if regs == nil {
		regs = []*models.Registration{}
	}
	httputil.WriteJSON(w, http.StatusOK, registrationListResponse{Registrations: regs})
}

func (h *Handler) handleGetRegistration(w http.ResponseWriter, r *http.Request) {
	regID, ok := h.registrationIDFromPath(w, r)
	if !ok {
		return
	}
	reg, err := h.trips.GetRegistration(r.Context(), regID)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to load registration")
		return
	}
	h.requireOrgMatch(w, r, reg.OrgID, func() {
		httputil.WriteJSON(w, http.StatusOK, reg)
	})
}

func (h *Handler) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	regID, ok := h.registrationIDFromPath(w, r)
	if !ok {
		return
	}
	if !h.authorizeRegistration(w, r, regID) {
		return
	}
	var req recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	reg, err := h.trips.RecordPayment(r.Context(), regID, id.Money(req.Amount))
	if err != nil {
		h.writeServiceError(w, r, err, "failed to record payment")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reg)
}

func (h *Handler) handleUpdateVisa(w http.ResponseWriter, r *http.Request) {
	regID, ok := h.registrationIDFromPath(w, r)
	if !ok {
		return
	}
	if !h.authorizeRegistration(w, r, regID) {
		return
	}
	var req updateVisaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	reg, err := h.trips.UpdateVisaStatus(r.Context(), regID, req.toVisaInfo())
	if err != nil {
		h.writeServiceError(w, r, err, "failed to update visa status")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reg)
}

func (h *Handler) handleCancelRegistration(w http.ResponseWriter, r *http.Request) {
	regID, ok := h.registrationIDFromPath(w, r)
	if !ok {
		return
	}
	if !h.authorizeRegistration(w, r, regID) {
		return
	}
	var req cancelRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	var refund *id.Money
	if req.RefundAmount != nil {
		amount := id.Money(*req.RefundAmount)
		refund = &amount
	}
	reg, err := h.trips.CancelRegistration(r.Context(), regID, req.Reason, refund)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to cancel registration")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reg)
}

func (h *Handler) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgFromContext(w, r)
	if !ok {
		return
	}
	stats, err := h.trips.GetStatistics(r.Context(), orgID)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to load statistics")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) tripIDFromPath(w http.ResponseWriter, r *http.Request) (id.TripID, bool) {
	tripID, err := id.ParseTripID(chi.URLParam(r, "tripID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "trip id must be a valid UUID"))
		return tripID, false
	}
	return tripID, true
}

func (h *Handler) registrationIDFromPath(w http.ResponseWriter, r *http.Request) (id.RegistrationID, bool) {
	regID, err := id.ParseRegistrationID(chi.URLParam(r, "registrationID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "registration id must be a valid UUID"))
		return regID, false
	}
	return regID, true
}

// requireOrgMatch hides other organizations' resources as not found rather
// than confirming their existence with a 403.
func (h *Handler) requireOrgMatch(w http.ResponseWriter, r *http.Request, owner id.OrgID, respond func()) {
	if owner != requestcontext.OrgID(r.Context()) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "not found"))
		return
	}
	respond()
}

// authorizeTrip guards mutating trip routes: the trip must exist and belong
// to the caller's organization before the service is invoked.
func (h *Handler) authorizeTrip(w http.ResponseWriter, r *http.Request, tripID id.TripID) bool {
	trip, err := h.trips.GetTripByID(r.Context(), tripID)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to load trip")
		return false
	}
	if trip.OrgID != requestcontext.OrgID(r.Context()) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "not found"))
		return false
	}
	return true
}

// authorizeRegistration guards mutating registration routes the same way.
func (h *Handler) authorizeRegistration(w http.ResponseWriter, r *http.Request, regID id.RegistrationID) bool {
	reg, err := h.trips.GetRegistration(r.Context(), regID)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to load registration")
		return false
	}
	if reg.OrgID != requestcontext.OrgID(r.Context()) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "not found"))
		return false
	}
	return true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	ctx := r.Context()
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	} else {
		h.logger.WarnContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
