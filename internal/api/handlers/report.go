package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/dom/healthguide/internal/logger"
	"github.com/dom/healthguide/internal/service"
)

// MaxPhotoSize bounds the uploaded report photo.
const MaxPhotoSize = 10 << 20

type ReportHandler struct {
	reportService *service.ReportService
	log           *logger.Logger
}

func NewReportHandler(reportService *service.ReportService, log *logger.Logger) *ReportHandler {
	return &ReportHandler{reportService: reportService, log: log}
}

func (h *ReportHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxPhotoSize+1<<20)
	if err := r.ParseMultipartForm(MaxPhotoSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Photo must be at most 10 MB")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	input := service.ReportInput{
		IssueType:   r.FormValue("issueType"),
		Description: r.FormValue("description"),
		Location:    r.FormValue("location"),
	}

	file, header, err := r.FormFile("photo")
	switch {
	case err == nil:
		defer file.Close()
		if header.Size > MaxPhotoSize {
			writeError(w, http.StatusRequestEntityTooLarge, "Photo must be at most 10 MB")
			return
		}
		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Failed to read photo")
			return
		}
		input.Photo = &service.PhotoInput{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		}
	case errors.Is(err, http.ErrMissingFile):
	default:
		writeError(w, http.StatusBadRequest, "Invalid photo upload")
		return
	}

	result, err := h.reportService.Analyze(r.Context(), input)
	if err != nil {
		writeServiceError(w, h.log, "handlers.Report", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
