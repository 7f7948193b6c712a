package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dom/healthguide/internal/domain"
	"github.com/dom/healthguide/internal/logger"
	"github.com/dom/healthguide/internal/service"
	"github.com/dom/healthguide/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestReportService_Analyze_NoDescriptionNoPhoto(t *testing.T) {
	model := testutil.NewStubModel()
	svc := service.NewReportService(model, testutil.NewMemoryPhotoStore(), logger.Nop())

	result, err := svc.Analyze(context.Background(), service.ReportInput{IssueType: "leak", Location: "Ward 4"})
	require.NoError(t, err)

	assert.Equal(t, "analyzed", result.Status)
	assert.Equal(t, domain.TextAnalysis{Severity: "unknown", Suggestion: "unknown"}, result.TextAnalysis)
	assert.Equal(t, domain.ImageAnalysis{Class: "not_provided"}, result.ImageAnalysis)
	assert.Nil(t, result.Data.Photo)
	assert.Empty(t, model.Calls())
}

func TestReportService_Analyze_TextReplies(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
		want  domain.TextAnalysis
	}{
		{
			name:  "json reply",
			reply: "Sure!\n```json\n{\"severity\":\"urgent\",\"suggestion\":\"avoid drinking\"}\n```",
			want:  domain.TextAnalysis{Severity: "urgent", Suggestion: "avoid drinking"},
		},
		{
			name:  "plain reply",
			reply: "Boil before drinking.",
			want:  domain.TextAnalysis{Severity: "medium", Suggestion: "Boil before drinking."},
		},
		{
			name: "model failure",
			err:  errors.New("boom"),
			want: domain.TextAnalysis{Severity: "error", Suggestion: "AI analysis failed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := testutil.NewStubModel()
			if tt.err != nil {
				model.SetError(tt.err)
			} else {
				model.SetReply(tt.reply)
			}
			svc := service.NewReportService(model, nil, logger.Nop())

			result, err := svc.Analyze(context.Background(), service.ReportInput{Description: "brown water from tap"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.TextAnalysis)

			calls := model.Calls()
			require.Len(t, calls, 1)
			assert.Contains(t, calls[0].PromptText(), "brown water from tap")
		})
	}
}

func TestReportService_Analyze_Photo(t *testing.T) {
	model := testutil.NewStubModel()
	model.SetResponder(func(call testutil.ModelCall) (string, error) {
		if call.HasImage() {
			return `{"class":"muddy"}`, nil
		}
		return `{"severity":"low","suggestion":"filter"}`, nil
	})
	photos := testutil.NewMemoryPhotoStore()
	svc := service.NewReportService(model, photos, logger.Nop())

	result, err := svc.Analyze(context.Background(), service.ReportInput{
		Description: "cloudy",
		Photo:       &service.PhotoInput{Filename: "Tap.PNG", Data: pngHeader},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ImageAnalysis{Class: "muddy"}, result.ImageAnalysis)
	assert.Equal(t, "low", result.TextAnalysis.Severity)

	require.NotNil(t, result.Data.Photo)
	key := *result.Data.Photo
	assert.True(t, strings.HasPrefix(key, "reports/"), key)
	assert.True(t, strings.HasSuffix(key, ".png"), key)

	obj, ok := photos.Get(key)
	require.True(t, ok)
	assert.Equal(t, "image/png", obj.ContentType)
	assert.Equal(t, pngHeader, obj.Data)
}

func TestReportService_Analyze_PhotoFallbacks(t *testing.T) {
	t.Run("model failure", func(t *testing.T) {
		model := testutil.NewStubModel()
		model.SetError(errors.New("boom"))
		svc := service.NewReportService(model, testutil.NewMemoryPhotoStore(), logger.Nop())

		result, err := svc.Analyze(context.Background(), service.ReportInput{
			Photo: &service.PhotoInput{Filename: "a.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.ImageAnalysis{Class: "AI analysis failed"}, result.ImageAnalysis)
		assert.NotNil(t, result.Data.Photo)
	})

	t.Run("plain reply", func(t *testing.T) {
		model := testutil.NewStubModel()
		model.SetReply("turbid")
		svc := service.NewReportService(model, nil, logger.Nop())

		result, err := svc.Analyze(context.Background(), service.ReportInput{
			Photo: &service.PhotoInput{Filename: "a.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.ImageAnalysis{Class: "turbid"}, result.ImageAnalysis)
		assert.Nil(t, result.Data.Photo, "photo is not reported when no store is configured")
	})

	t.Run("upload failure", func(t *testing.T) {
		model := testutil.NewStubModel()
		model.SetReply(`{"class":"clean"}`)
		photos := testutil.NewMemoryPhotoStore()
		photos.FailWith(errors.New("bucket gone"))
		svc := service.NewReportService(model, photos, logger.Nop())

		result, err := svc.Analyze(context.Background(), service.ReportInput{
			Photo: &service.PhotoInput{Filename: "a.jpg", Data: []byte{0xff, 0xd8, 0xff}},
		})
		require.NoError(t, err)
		assert.Nil(t, result.Data.Photo)
		assert.Equal(t, "clean", result.ImageAnalysis.Class)
	})
}
