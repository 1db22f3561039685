// Package vision implements the vision-LLM field detector: it rasterizes
// each page, sends the image to a configured vision provider, and parses
// the model's JSON field list back into FieldDetections. No vision SDK
// appears anywhere in the reference pack, so the HTTP client is built on
// net/http and encoding/json directly, in the same request/response-struct
// style the teacher uses for its own JSON-RPC plumbing in internal/mcp.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/docfields/hybriddetect/internal/bbox"
	"github.com/docfields/hybriddetect/internal/config"
	"github.com/docfields/hybriddetect/internal/pdferr"
	"github.com/docfields/hybriddetect/internal/render"
)

const (
	coordinateGrid = 1000.0
	minFieldSize   = 0.001
	requestTimeout = 60 * time.Second
)

const prompt = `You are analyzing a scanned or digital form page for fillable fields.
Return strict JSON only, no prose, no markdown fences, of the form:
{"page_index": N, "fields": [{"id": "...", "type": "text|textarea|checkbox|signature|date|number|unknown", "label": "...", "bbox": [x_min, y_min, x_max, y_max]}]}
Coordinates are on a 0-1000 grid with bottom-left origin: (0,0) is the bottom-left corner, (1000,1000) is the top-right corner.
Only include regions that are genuinely fillable fields.`

// field is one entry in a provider's JSON response.
type field struct {
	ID    string     `json:"id"`
	Type  string     `json:"type"`
	Label string     `json:"label"`
	BBox  [4]float64 `json:"bbox"`
}

// pageResponse is a provider's full JSON response for one page.
type pageResponse struct {
	PageIndex int     `json:"page_index"`
	Fields    []field `json:"fields"`
}

// Provider sends a page image to a vision model and returns its raw text
// response (expected to be, or contain, the pageResponse JSON).
type Provider interface {
	Classify(ctx context.Context, png []byte) (string, error)
}

// Detector runs the vision pipeline across a document's pages.
type Detector struct {
	provider Provider
	renderer *render.Renderer
	cfg      *config.Config
	log      *zap.SugaredLogger
}

// New constructs a Detector. It returns (nil, nil) when vision is not
// configured, per spec: "If the provider client is not configured, the
// detector returns an empty list."
func New(cfg *config.Config, log *zap.SugaredLogger) (*Detector, error) {
	if !cfg.VisionEnabled() {
		return nil, nil
	}

	var provider Provider
	switch cfg.VisionProvider {
	case config.VisionProviderOpenAI:
		provider = &openAIProvider{apiKey: cfg.VisionAPIKey, model: cfg.VisionModel, httpClient: &http.Client{Timeout: requestTimeout}}
	case config.VisionProviderGemini:
		provider = &geminiProvider{apiKey: cfg.VisionAPIKey, model: cfg.VisionModel, httpClient: &http.Client{Timeout: requestTimeout}}
	default:
		return nil, nil
	}

	renderer, err := render.New(cfg.VisionDPI, log)
	if err != nil {
		return nil, pdferr.Wrap(pdferr.KindRenderFailure, "init vision renderer", err)
	}

	return &Detector{provider: provider, renderer: renderer, cfg: cfg, log: log}, nil
}

// Close releases the detector's renderer.
func (d *Detector) Close() error {
	if d == nil || d.renderer == nil {
		return nil
	}
	return d.renderer.Close()
}

// Detect renders every page of path and asks the configured provider to
// find fields on each, skipping any page whose request or response fails.
func (d *Detector) Detect(ctx context.Context, path string) []bbox.FieldDetection {
	if d == nil {
		return nil
	}

	pages, err := d.renderer.RenderPages(path)
	if err != nil {
		d.logWarn("render pages for vision detection", err)
		return nil
	}

	var all []bbox.FieldDetection
	for _, page := range pages {
		detections, err := d.detectPage(ctx, page)
		if err != nil {
			d.logWarn(fmt.Sprintf("vision detect page %d", page.Index), err)
			continue
		}
		all = append(all, detections...)
	}
	return all
}

func (d *Detector) detectPage(ctx context.Context, page render.Page) ([]bbox.FieldDetection, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, page.Image); err != nil {
		return nil, fmt.Errorf("encode page %d to png: %w", page.Index, err)
	}

	raw, err := d.provider.Classify(ctx, buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("classify page %d: %w", page.Index, err)
	}

	resp, err := parseResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse response for page %d: %w", page.Index, err)
	}

	var out []bbox.FieldDetection
	for _, f := range resp.Fields {
		fd, ok := d.toDetection(page.Index, f)
		if ok {
			out = append(out, fd)
		}
	}
	return out, nil
}

func (d *Detector) toDetection(pageIndex int, f field) (bbox.FieldDetection, bool) {
	xMin := clamp01(f.BBox[0] / coordinateGrid)
	yMin := clamp01(f.BBox[1] / coordinateGrid)
	xMax := clamp01(f.BBox[2] / coordinateGrid)
	yMax := clamp01(f.BBox[3] / coordinateGrid)

	width := xMax - xMin
	height := yMax - yMin
	if width < minFieldSize || height < minFieldSize {
		return bbox.FieldDetection{}, false
	}

	box, err := bbox.New(xMin, yMin, width, height)
	if err != nil {
		return bbox.FieldDetection{}, false
	}

	label := strings.TrimSpace(f.Label)
	if label == "" {
		label = f.ID
	}
	if label == "" {
		return bbox.FieldDetection{}, false
	}

	fd, err := bbox.NewDetection(pageIndex, box, mapFieldType(f.Type), label, d.cfg.VisionConfidence, bbox.SourceVision, f.ID)
	if err != nil {
		return bbox.FieldDetection{}, false
	}
	return fd, true
}

func mapFieldType(t string) bbox.FieldType {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "text":
		return bbox.FieldTypeText
	case "textarea":
		return bbox.FieldTypeMultiline
	case "checkbox":
		return bbox.FieldTypeCheckbox
	case "signature":
		return bbox.FieldTypeSignature
	case "date":
		return bbox.FieldTypeDate
	case "number":
		return bbox.FieldTypeNumber
	default:
		return bbox.FieldTypeUnknown
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// parseResponse tolerates responses fenced in ``` or ```json blocks.
func parseResponse(raw string) (pageResponse, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var resp pageResponse
	if err := json.Unmarshal([]byte(trimmed), &resp); err != nil {
		return pageResponse{}, err
	}
	return resp, nil
}

func (d *Detector) logWarn(context string, err error) {
	if d.log == nil {
		return
	}
	d.log.Warnw(context, "error", err)
}

// base64PNG is a small helper shared by both providers to embed the page
// image inline in a JSON request body.
func base64PNG(png []byte) string {
	return base64.StdEncoding.EncodeToString(png)
}
