package handlers

import (
	"net/http"

	"github.com/dom/healthguide/internal/logger"
	"github.com/dom/healthguide/internal/service"
	"github.com/dom/healthguide/internal/validator"
)

type HealthHandler struct {
	healthService *service.HealthService
	validate      *validator.Validator
	log           *logger.Logger
}

func NewHealthHandler(healthService *service.HealthService, validate *validator.Validator, log *logger.Logger) *HealthHandler {
	return &HealthHandler{healthService: healthService, validate: validate, log: log}
}

type FirstAidRequest struct {
	Symptoms []string `json:"symptoms" validate:"required,min=1,max=20,dive,max=200"`
}

type FacilitiesRequest struct {
	Location  string   `json:"location" validate:"max=200"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude" validate:"omitempty,longitude"`
}

func (h *HealthHandler) FirstAid(w http.ResponseWriter, r *http.Request) {
	var req FirstAidRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeServiceError(w, h.log, "handlers.FirstAid", err)
		return
	}

	advice, err := h.healthService.FirstAid(r.Context(), req.Symptoms)
	if err != nil {
		writeServiceError(w, h.log, "handlers.FirstAid", err)
		return
	}

	writeJSON(w, http.StatusOK, advice)
}

func (h *HealthHandler) NearbyFacilities(w http.ResponseWriter, r *http.Request) {
	var req FacilitiesRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeServiceError(w, h.log, "handlers.NearbyFacilities", err)
		return
	}

	result, err := h.healthService.NearbyFacilities(r.Context(), service.FacilityQuery{
		Location:  req.Location,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	})
	if err != nil {
		writeServiceError(w, h.log, "handlers.NearbyFacilities", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
