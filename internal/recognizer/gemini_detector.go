package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"log"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/100starsco/invoice-ocr-pipeline/internal/job"
	"github.com/100starsco/invoice-ocr-pipeline/internal/ratelimit"
)

// GeminiDetector is the Recognizer's concrete TextDetector implementation,
// adapted from the teacher's internal/ai.ProcessPureOCR: the same
// client-setup and JSON-schema-constrained-response idiom, repurposed
// from "accounting OCR provider" to "raw text-region detector" — it asks
// the model for bounding polygons and text only, with no invoice-specific
// structure.
type GeminiDetector struct {
	apiKey string
	model  string
}

// NewGeminiDetector builds a detector bound to a Gemini API key/model.
func NewGeminiDetector(apiKey, model string) *GeminiDetector {
	return &GeminiDetector{apiKey: apiKey, model: model}
}

func (d *GeminiDetector) Name() string { return "gemini:" + d.model }

type detectedRegion struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Box        [4][2]int `json:"bounding_box"`
}

type detectResponse struct {
	Regions []detectedRegion `json:"regions"`
}

func detectionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"regions": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"text":       {Type: genai.TypeString},
						"confidence": {Type: genai.TypeNumber},
						"bounding_box": {
							Type:  genai.TypeArray,
							Items: &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeInteger}},
						},
					},
					Required: []string{"text", "confidence", "bounding_box"},
				},
			},
		},
		Required: []string{"regions"},
	}
}

const detectionPrompt = `You are a text-detection engine. Given the image, return every distinct
text region you can find, each with its bounding polygon (four [x,y]
integer vertex pairs, clockwise from top-left), the exact text content,
and your confidence in [0,1]. Do not interpret or classify the text —
return raw regions only.`

// Detect calls Gemini with a JSON-schema-constrained prompt and converts
// the response into job.TextRegion values.
func (d *GeminiDetector) Detect(ctx context.Context, img image.Image, confidenceThreshold float64) ([]job.TextRegion, error) {
	if err := ratelimit.WaitForRateLimit(ctx); err != nil {
		return nil, fmt.Errorf("recognizer: rate limit wait: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("recognizer: encoding image for detection: %w", err)
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(d.apiKey))
	if err != nil {
		return nil, fmt.Errorf("recognizer: creating gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(d.model)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = detectionSchema()

	resp, err := model.GenerateContent(ctx, genai.Text(detectionPrompt), genai.Blob{MIMEType: "jpeg", Data: buf.Bytes()})
	if err != nil {
		return nil, fmt.Errorf("recognizer: gemini generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("recognizer: empty response from gemini")
	}

	var raw string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			raw = string(text)
			break
		}
	}
	if raw == "" {
		return nil, fmt.Errorf("recognizer: no text part in gemini response")
	}

	var parsed detectResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("recognizer: parsing gemini response: %w", err)
	}

	regions := make([]job.TextRegion, 0, len(parsed.Regions))
	for _, r := range parsed.Regions {
		if r.Confidence < confidenceThreshold {
			continue
		}
		var poly [4]job.Point
		for i := 0; i < 4 && i < len(r.Box); i++ {
			poly[i] = job.Point{X: r.Box[i][0], Y: r.Box[i][1]}
		}
		regions = append(regions, job.TextRegion{
			Polygon:    poly,
			Text:       r.Text,
			Confidence: r.Confidence,
		})
	}

	log.Printf("recognizer: gemini detected %d regions above threshold %.2f", len(regions), confidenceThreshold)
	return regions, nil
}
