package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dom/healthguide/internal/domain"
	"github.com/dom/healthguide/internal/genai"
	"github.com/dom/healthguide/internal/logger"
	"github.com/dom/healthguide/internal/metrics"
)

const firstAidPrompt = `You are a medical assistant. Given these symptoms: %s, provide:
1. Emergency disclaimer if needed
2. Recommended first aid actions (bulleted)
3. List of commonly available medicines (max 3, generic names)
Respond in JSON: { disclaimer: "...", actions: ["..."], medicines: ["..."] }`

const facilitiesPrompt = `As a healthcare assistant, provide guidance for finding health facilities near %s.
Create a realistic list of 3-4 sample health facilities that would typically be found in this area.
Include hospitals, clinics, and health centers with realistic names, addresses, and phone numbers.
Respond in JSON: {
  message: "brief helpful message about finding healthcare",
  facilities: [{ name: "...", address: "...", phone: "...", distance: "...", type: "hospital/clinic/health center" }]
}`

// sampleFacilities is returned when the model answers without a JSON object.
var sampleFacilities = domain.FacilitiesResult{
	Message: "Here are some sample health facilities. For real-time data, please use Google Maps or call local directory services.",
	Facilities: []domain.Facility{
		{Name: "City General Hospital", Address: "123 Main Street, Your City", Phone: "+1-555-0123", Distance: "2.5 km", Type: "hospital"},
		{Name: "Community Health Clinic", Address: "456 Oak Avenue, Your City", Phone: "+1-555-0456", Distance: "1.8 km", Type: "clinic"},
		{Name: "Primary Care Center", Address: "789 Pine Road, Your City", Phone: "+1-555-0789", Distance: "3.2 km", Type: "health center"},
	},
}

// unavailableFacilities is returned when the model call fails.
var unavailableFacilities = domain.FacilitiesResult{
	Message: "Unable to get AI recommendations. Here are sample facilities - please verify with local directory services.",
	Facilities: []domain.Facility{
		{Name: "Regional Medical Center", Address: "Near your location", Phone: "Call local directory", Distance: "Contact for details", Type: "hospital"},
		{Name: "Local Health Clinic", Address: "In your area", Phone: "Call local directory", Distance: "Contact for details", Type: "clinic"},
	},
}

type HealthService struct {
	model LanguageModel
	log   *logger.Logger
}

func NewHealthService(model LanguageModel, log *logger.Logger) *HealthService {
	return &HealthService{model: model, log: log}
}

// FirstAid asks the model for first aid actions for the given symptoms.
func (s *HealthService) FirstAid(ctx context.Context, symptoms []string) (*domain.FirstAidAdvice, error) {
	cleaned := make([]string, 0, len(symptoms))
	for _, sym := range symptoms {
		if sym = strings.TrimSpace(sym); sym != "" {
			cleaned = append(cleaned, sym)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("%w: no symptoms provided", domain.ErrValidation)
	}

	start := time.Now()
	reply, err := s.model.Generate(ctx, genai.Text(fmt.Sprintf(firstAidPrompt, strings.Join(cleaned, ", "))))
	metrics.RecordUpstream("firstaid", upstreamStatus(err), time.Since(start).Seconds())
	if err != nil {
		s.log.Error("health.FirstAid: model call failed", "err", err)
		return nil, err
	}

	var advice domain.FirstAidAdvice
	if genai.ExtractJSON(reply, &advice) {
		if advice.Actions == nil {
			advice.Actions = []string{}
		}
		if advice.Medicines == nil {
			advice.Medicines = []string{}
		}
		return &advice, nil
	}
	return &domain.FirstAidAdvice{Actions: []string{reply}, Medicines: []string{}}, nil
}

type FacilityQuery struct {
	Location  string
	Latitude  *float64
	Longitude *float64
}

func (q FacilityQuery) describe() (string, bool) {
	if loc := strings.TrimSpace(q.Location); loc != "" {
		return loc, true
	}
	if q.Latitude != nil && q.Longitude != nil {
		return fmt.Sprintf("coordinates: %g, %g", *q.Latitude, *q.Longitude), true
	}
	return "", false
}

// NearbyFacilities suggests health facilities near a place. It falls back to
// static samples so callers always get a list.
func (s *HealthService) NearbyFacilities(ctx context.Context, query FacilityQuery) (*domain.FacilitiesResult, error) {
	where, ok := query.describe()
	if !ok {
		return nil, fmt.Errorf("%w: location or coordinates required", domain.ErrValidation)
	}

	start := time.Now()
	reply, err := s.model.Generate(ctx, genai.Text(fmt.Sprintf(facilitiesPrompt, where)))
	metrics.RecordUpstream("facilities", upstreamStatus(err), time.Since(start).Seconds())
	if err != nil {
		s.log.Warn("health.NearbyFacilities: model call failed, using samples", "err", err)
		return cloneFacilities(unavailableFacilities), nil
	}

	var result domain.FacilitiesResult
	if genai.ExtractJSON(reply, &result) {
		return &result, nil
	}
	return cloneFacilities(sampleFacilities), nil
}

func cloneFacilities(src domain.FacilitiesResult) *domain.FacilitiesResult {
	return &domain.FacilitiesResult{
		Message:    src.Message,
		Facilities: append([]domain.Facility(nil), src.Facilities...),
	}
}
