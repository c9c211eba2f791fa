package ocr

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

// MaxVisionImageBytes is the inline image limit of the Vision API (20MB).
const MaxVisionImageBytes = 20 * 1024 * 1024

// VisionBackend recognizes images with Google Cloud Vision DOCUMENT_TEXT_DETECTION.
type VisionBackend struct {
	client *vision.ImageAnnotatorClient
}

// NewVisionBackend creates a Vision backend with credentials from environment.
// It expects either GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS JSON in env.
func NewVisionBackend(ctx context.Context, _ Options) (Backend, error) {
	const op = "NewVisionBackend"

	var client *vision.ImageAnnotatorClient
	var err error

	// Check for inline credentials first
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, WrapRecognitionError(op, "", err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, WrapRecognitionError(op, "", err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else {
		// Try default credentials as fallback
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, WrapRecognitionError(op, "", ErrMissingCredentials, "no credentials found in environment")
		}
	}

	return &VisionBackend{client: client}, nil
}

// NewVisionBackendWithClient creates a backend with an explicit client (for testing).
func NewVisionBackendWithClient(client *vision.ImageAnnotatorClient) *VisionBackend {
	return &VisionBackend{client: client}
}

// Recognize sends the image bytes to the Vision API.
func (g *VisionBackend) Recognize(ctx context.Context, path string, opts Options) (*Result, error) {
	const op = "VisionBackend.Recognize"
	startTime := time.Now()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapRecognitionError(op, path, ErrInvalidImage, err.Error())
	}
	if len(data) > MaxVisionImageBytes {
		return nil, WrapRecognitionError(op, path, ErrInvalidImage, fmt.Sprintf("file size: %d bytes", len(data)))
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: data},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				ImageContext: &visionpb.ImageContext{
					LanguageHints: languageHints(opts.Language),
				},
			},
		},
	}

	resp, err := g.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, WrapRecognitionError(op, path, ErrRecognitionFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, WrapRecognitionError(op, path, ErrRecognitionFailed, "no response from Vision API")
	}

	imgResp := resp.Responses[0]
	if imgResp.Error != nil {
		return nil, WrapRecognitionError(op, path, ErrRecognitionFailed, fmt.Sprintf("Vision API error: %s", imgResp.Error.Message))
	}

	result := resultFromAnnotation(imgResp.FullTextAnnotation)
	result.ProcessingDuration = time.Since(startTime)
	return result, nil
}

// resultFromAnnotation flattens the page/block/paragraph/word hierarchy.
// Vision has no line level, so each paragraph also becomes one line.
func resultFromAnnotation(ann *visionpb.TextAnnotation) *Result {
	result := &Result{Backend: "vision"}
	if ann == nil {
		return result
	}
	result.Text = ann.Text

	for _, page := range ann.Pages {
		for _, block := range page.Blocks {
			for _, paragraph := range block.Paragraphs {
				var words []string
				for _, word := range paragraph.Words {
					var sb strings.Builder
					for _, symbol := range word.Symbols {
						sb.WriteString(symbol.Text)
					}
					words = append(words, sb.String())
					result.Words = append(result.Words, Word{
						Text:       sb.String(),
						Confidence: float64(word.Confidence),
						BBox:       bboxFromPoly(word.BoundingBox),
					})
				}
				text := strings.Join(words, " ")
				bbox := bboxFromPoly(paragraph.BoundingBox)
				result.Paragraphs = append(result.Paragraphs, Paragraph{Text: text, Confidence: float64(paragraph.Confidence), BBox: bbox})
				result.Lines = append(result.Lines, Line{Text: text, Confidence: float64(paragraph.Confidence), BBox: bbox})
			}
		}
	}

	result.Confidence = meanWordConfidence(result.Words)
	return result
}

func bboxFromPoly(poly *visionpb.BoundingPoly) BBox {
	if poly == nil || len(poly.Vertices) == 0 {
		return BBox{}
	}
	b := BBox{X0: int(poly.Vertices[0].X), Y0: int(poly.Vertices[0].Y), X1: int(poly.Vertices[0].X), Y1: int(poly.Vertices[0].Y)}
	for _, v := range poly.Vertices[1:] {
		b.X0 = min(b.X0, int(v.X))
		b.Y0 = min(b.Y0, int(v.Y))
		b.X1 = max(b.X1, int(v.X))
		b.Y1 = max(b.Y1, int(v.Y))
	}
	return b
}

// languageHints maps tesseract codes ("spa+eng") to BCP-47 hints.
func languageHints(lang string) []string {
	codes := map[string]string{"spa": "es", "eng": "en", "por": "pt", "fra": "fr", "deu": "de"}
	var hints []string
	for _, part := range strings.Split(lang, "+") {
		part = strings.ToLower(strings.TrimSpace(part))
		if code, ok := codes[part]; ok {
			hints = append(hints, code)
		} else if len(part) == 2 {
			hints = append(hints, part)
		}
	}
	return hints
}

// Close closes the underlying Vision client.
func (g *VisionBackend) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
