package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"github.com/yungbote/ragcore/internal/logger"
)

// Vision wraps Google Cloud Vision's document text detection, used by the
// Extractor's image-document path (spec.md §4.F). Generalized down from a
// dual image-bytes/GCS-file OCR service to the single image-bytes path this
// core's image ingestion actually needs; large-document OCR goes through
// DocumentAI instead (see docai.go).
type Vision interface {
	OCRImageBytes(ctx context.Context, img []byte, mimeType string) (*VisionOCRResult, error)
	Close() error
}

type VisionOCRResult struct {
	Provider    string  `json:"provider"`
	MimeType    string  `json:"mime_type,omitempty"`
	PrimaryText string  `json:"primary_text"`
	Confidence  float64 `json:"confidence"`
}

type visionService struct {
	log          *logger.Logger
	visionClient *vision.ImageAnnotatorClient
}

func NewVision(log *logger.Logger) (Vision, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	ctx := context.Background()
	vClient, err := vision.NewImageAnnotatorClient(ctx, ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &visionService{log: log.With("client", "gcp.Vision"), visionClient: vClient}, nil
}

func (s *visionService) Close() error {
	if s.visionClient != nil {
		return s.visionClient.Close()
	}
	return nil
}

func (s *visionService) OCRImageBytes(ctx context.Context, img []byte, mimeType string) (*VisionOCRResult, error) {
	if len(img) == 0 {
		return &VisionOCRResult{Provider: "gcp_vision", MimeType: mimeType}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	req := &visionpb.AnnotateImageRequest{
		Image: &visionpb.Image{Content: img},
		Features: []*visionpb.Feature{
			{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
		},
	}
	resp, err := s.visionClient.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{req},
	})
	if err != nil {
		return nil, fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return &VisionOCRResult{Provider: "gcp_vision", MimeType: mimeType}, nil
	}

	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return nil, fmt.Errorf("vision annotate error: %s", r0.Error.Message)
	}
	fta := r0.FullTextAnnotation
	if fta == nil || strings.TrimSpace(fta.Text) == "" {
		return &VisionOCRResult{Provider: "gcp_vision", MimeType: mimeType}, nil
	}

	var confSum float64
	var confCount int
	for _, page := range fta.Pages {
		if page.Confidence > 0 {
			confSum += float64(page.Confidence)
			confCount++
		}
	}
	confidence := 0.0
	if confCount > 0 {
		confidence = confSum / float64(confCount)
	}

	return &VisionOCRResult{
		Provider:    "gcp_vision",
		MimeType:    mimeType,
		PrimaryText: collapseWhitespace(fta.Text),
		Confidence:  confidence,
	}, nil
}
