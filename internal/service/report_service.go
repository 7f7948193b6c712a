package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dom/healthguide/internal/domain"
	"github.com/dom/healthguide/internal/genai"
	"github.com/dom/healthguide/internal/logger"
	"github.com/dom/healthguide/internal/metrics"
	"github.com/google/uuid"
)

const (
	textClassificationPrompt = "Classify the following water issue report into severity (urgent, medium, low) and suggest if the water is safe to drink, needs boiling/filtration, or should be avoided.\nReport: %s\nRespond in JSON: {\"severity\":\"...\", \"suggestion\":\"...\"}"
	imageClassificationPrompt = "Classify this water as clean, muddy, or turbid. Respond in JSON: {\"class\":\"...\"}"
)

// PhotoStore persists uploaded report photos.
type PhotoStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

type ReportService struct {
	model  LanguageModel
	photos PhotoStore
	log    *logger.Logger
}

// NewReportService builds the report analyzer. photos may be nil, in which
// case photos are classified but not kept.
func NewReportService(model LanguageModel, photos PhotoStore, log *logger.Logger) *ReportService {
	return &ReportService{model: model, photos: photos, log: log}
}

type PhotoInput struct {
	Filename    string
	ContentType string
	Data        []byte
}

type ReportInput struct {
	IssueType   string
	Description string
	Location    string
	Photo       *PhotoInput
}

// Analyze classifies a water issue report. Model failures degrade the
// individual analysis fields and never fail the report.
func (s *ReportService) Analyze(ctx context.Context, input ReportInput) (*domain.ReportResult, error) {
	result := &domain.ReportResult{
		Status: "analyzed",
		Data: domain.ReportData{
			IssueType:   input.IssueType,
			Description: input.Description,
			Location:    input.Location,
		},
		TextAnalysis:  domain.TextAnalysis{Severity: domain.SeverityUnknown, Suggestion: domain.SeverityUnknown},
		ImageAnalysis: domain.ImageAnalysis{Class: domain.ImageClassNotProvided},
	}

	if input.Description != "" {
		result.TextAnalysis = s.classifyText(ctx, input.Description)
	}

	if input.Photo != nil && len(input.Photo.Data) > 0 {
		mimeType := photoMimeType(input.Photo)
		if key, ok := s.storePhoto(ctx, input.Photo, mimeType); ok {
			result.Data.Photo = &key
		}
		result.ImageAnalysis = s.classifyImage(ctx, input.Photo.Data, mimeType)
	}

	return result, nil
}

func (s *ReportService) classifyText(ctx context.Context, description string) domain.TextAnalysis {
	start := time.Now()
	reply, err := s.model.Generate(ctx, genai.Text(fmt.Sprintf(textClassificationPrompt, description)))
	metrics.RecordUpstream("report_text", upstreamStatus(err), time.Since(start).Seconds())
	if err != nil {
		s.log.Error("report.classifyText: model call failed", "err", err)
		return domain.TextAnalysis{Severity: domain.SeverityError, Suggestion: domain.AnalysisFailed}
	}

	var analysis domain.TextAnalysis
	if genai.ExtractJSON(reply, &analysis) {
		return analysis
	}
	return domain.TextAnalysis{Severity: domain.SeverityMedium, Suggestion: reply}
}

func (s *ReportService) classifyImage(ctx context.Context, data []byte, mimeType string) domain.ImageAnalysis {
	start := time.Now()
	reply, err := s.model.Generate(ctx, genai.Text(imageClassificationPrompt), genai.Image(mimeType, data))
	metrics.RecordUpstream("report_image", upstreamStatus(err), time.Since(start).Seconds())
	if err != nil {
		s.log.Error("report.classifyImage: model call failed", "err", err)
		return domain.ImageAnalysis{Class: domain.AnalysisFailed}
	}

	var analysis domain.ImageAnalysis
	if genai.ExtractJSON(reply, &analysis) {
		return analysis
	}
	return domain.ImageAnalysis{Class: reply}
}

func (s *ReportService) storePhoto(ctx context.Context, photo *PhotoInput, mimeType string) (string, bool) {
	if s.photos == nil {
		return "", false
	}

	key := "reports/" + uuid.NewString() + strings.ToLower(filepath.Ext(photo.Filename))
	err := s.photos.Upload(ctx, key, bytes.NewReader(photo.Data), int64(len(photo.Data)), mimeType)
	if err != nil {
		s.log.Error("report.storePhoto: upload failed", "key", key, "err", err)
		return "", false
	}
	return key, true
}

func photoMimeType(photo *PhotoInput) string {
	ct := photo.ContentType
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(photo.Data)
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}
