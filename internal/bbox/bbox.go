// Package bbox defines the normalized bounding-box and field-detection
// value types shared by every detector and by the ensemble merger.
package bbox

import (
	"fmt"
	"math"
	"strings"
)

// epsilon tolerates float accumulation error in the x+w<=1 / y+h<=1 invariants.
const epsilon = 1e-9

// InvalidBBoxError reports a bounding box that violates a construction invariant.
type InvalidBBoxError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *InvalidBBoxError) Error() string {
	return fmt.Sprintf("invalid bbox: %s=%v: %s", e.Field, e.Value, e.Reason)
}

// BBox is a rectangle in normalized page coordinates, origin bottom-left,
// all four values in [0, 1].
type BBox struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// New validates and constructs a BBox, failing with *InvalidBBoxError when any
// invariant in spec §4.1 is violated.
func New(x, y, width, height float64) (BBox, error) {
	b := BBox{X: x, Y: y, Width: width, Height: height}
	if err := b.Validate(); err != nil {
		return BBox{}, err
	}
	return b, nil
}

// Validate checks the BBox invariants without constructing a new value.
func (b BBox) Validate() error {
	switch {
	case b.X < 0 || b.X > 1:
		return &InvalidBBoxError{"x", b.X, "must be in [0, 1]"}
	case b.Y < 0 || b.Y > 1:
		return &InvalidBBoxError{"y", b.Y, "must be in [0, 1]"}
	case b.Width <= 0:
		return &InvalidBBoxError{"width", b.Width, "must be > 0"}
	case b.Height <= 0:
		return &InvalidBBoxError{"height", b.Height, "must be > 0"}
	case b.X+b.Width > 1+epsilon:
		return &InvalidBBoxError{"x+width", b.X + b.Width, "must be <= 1"}
	case b.Y+b.Height > 1+epsilon:
		return &InvalidBBoxError{"y+height", b.Y + b.Height, "must be <= 1"}
	}
	return nil
}

// FromRect builds a BBox from min/max normalized coordinates. The conversion
// is unclamped; callers whose input may exceed [0,1] must call Clamp first.
func FromRect(xMin, yMin, xMax, yMax float64) (BBox, error) {
	return New(xMin, yMin, xMax-xMin, yMax-yMin)
}

// FromPixels converts a pixel rectangle (top-left origin, as image libraries
// report it) to a normalized BBox in bottom-left origin. Unclamped.
func FromPixels(xPx, yPx, wPx, hPx, pageWPx, pageHPx float64) (BBox, error) {
	x := xPx / pageWPx
	w := wPx / pageWPx
	yTop := yPx / pageHPx
	h := hPx / pageHPx
	y := 1 - yTop - h
	return New(x, y, w, h)
}

// Clamp returns a copy of b with every coordinate clamped into [0, 1].
func (b BBox) Clamp() BBox {
	x := clamp01(b.X)
	y := clamp01(b.Y)
	w := clamp01(b.Width)
	h := clamp01(b.Height)
	if x+w > 1 {
		w = 1 - x
	}
	if y+h > 1 {
		h = 1 - y
	}
	return BBox{X: x, Y: y, Width: w, Height: h}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// ToRect returns (xMin, yMin, xMax, yMax).
func (b BBox) ToRect() (xMin, yMin, xMax, yMax float64) {
	return b.X, b.Y, b.X + b.Width, b.Y + b.Height
}

// Area returns width * height.
func (b BBox) Area() float64 {
	return b.Width * b.Height
}

// Center returns the midpoint of the box.
func (b BBox) Center() (x, y float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Intersects reports whether b and other share any area.
func (b BBox) Intersects(other BBox) bool {
	return b.IntersectionArea(other) > 0
}

// IntersectionArea returns the area shared by b and other, or 0 when disjoint.
func (b BBox) IntersectionArea(other BBox) float64 {
	aXMin, aYMin, aXMax, aYMax := b.ToRect()
	bXMin, bYMin, bXMax, bYMax := other.ToRect()

	xMin := math.Max(aXMin, bXMin)
	yMin := math.Max(aYMin, bYMin)
	xMax := math.Min(aXMax, bXMax)
	yMax := math.Min(aYMax, bYMax)

	if xMax <= xMin || yMax <= yMin {
		return 0
	}
	return (xMax - xMin) * (yMax - yMin)
}

// IoU returns the intersection-over-union of b and other, or 0 when the
// union area is 0.
func (b BBox) IoU(other BBox) float64 {
	inter := b.IntersectionArea(other)
	union := b.Area() + other.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// AspectRatio returns width/height, relative to a page of the given
// normalized width/height ratios (both already expressed as fractions of
// page dimensions, so this is simply b.Width / b.Height).
func (b BBox) AspectRatio() float64 {
	if b.Height == 0 {
		return 0
	}
	return b.Width / b.Height
}

func (b BBox) String() string {
	return fmt.Sprintf("BBox{x=%.4f y=%.4f w=%.4f h=%.4f}", b.X, b.Y, b.Width, b.Height)
}

// FieldType is the closed set of field kinds a detector may assign.
type FieldType string

const (
	FieldTypeText      FieldType = "text"
	FieldTypeMultiline FieldType = "multiline"
	FieldTypeCheckbox  FieldType = "checkbox"
	FieldTypeDate      FieldType = "date"
	FieldTypeNumber    FieldType = "number"
	FieldTypeSignature FieldType = "signature"
	FieldTypeUnknown   FieldType = "unknown"
)

// IsValid reports whether ft is one of the closed FieldType values.
func (ft FieldType) IsValid() bool {
	switch ft {
	case FieldTypeText, FieldTypeMultiline, FieldTypeCheckbox, FieldTypeDate,
		FieldTypeNumber, FieldTypeSignature, FieldTypeUnknown:
		return true
	default:
		return false
	}
}

// DetectionSource identifies which detector produced a FieldDetection, and
// carries the explicit merge priority from spec §3 (lower rank wins).
type DetectionSource string

const (
	SourceStructure DetectionSource = "structure"
	SourceGeometric DetectionSource = "geometric"
	SourceVision    DetectionSource = "vision"
	SourceAcroForm  DetectionSource = "acroform"
	SourceMerged    DetectionSource = "merged"
)

// defaultPriority is the §3 priority table: STRUCTURE(1) > GEOMETRIC(2) >
// VISION(3) > ACROFORM(4) > MERGED(5).
var defaultPriority = map[DetectionSource]int{
	SourceStructure: 1,
	SourceGeometric: 2,
	SourceVision:    3,
	SourceAcroForm:  4,
	SourceMerged:    5,
}

// Priority returns s's rank in the default priority table. Lower wins.
// Callers that need the ACROFORM-first ordering should use a
// merge.PriorityTable instead of this method.
func (s DetectionSource) Priority() int {
	if p, ok := defaultPriority[s]; ok {
		return p
	}
	return len(defaultPriority) + 1
}

func (s DetectionSource) String() string {
	return string(s)
}

// FieldDetection is a single detected form field.
type FieldDetection struct {
	PageIndex   int
	BBox        BBox
	FieldType   FieldType
	Label       string
	Confidence  float64
	Source      DetectionSource
	TemplateKey string
}

// maxLabelLen is the column width field_regions.label is truncated to (§6).
const maxLabelLen = 255

// NewDetection validates and constructs a FieldDetection per spec §3's invariants.
func NewDetection(pageIndex int, box BBox, fieldType FieldType, label string, confidence float64, source DetectionSource, templateKey string) (FieldDetection, error) {
	if pageIndex < 0 {
		return FieldDetection{}, fmt.Errorf("%w: page_index must be >= 0, got %d", ErrInvalidDetection, pageIndex)
	}
	if err := box.Validate(); err != nil {
		return FieldDetection{}, fmt.Errorf("%w: %w", ErrInvalidDetection, err)
	}
	if !fieldType.IsValid() {
		return FieldDetection{}, fmt.Errorf("%w: unknown field type %q", ErrInvalidDetection, fieldType)
	}
	cleaned := CleanLabel(label)
	if cleaned == "" {
		return FieldDetection{}, fmt.Errorf("%w: label must be non-empty after cleaning", ErrInvalidDetection)
	}
	if confidence < 0 || confidence > 1 {
		return FieldDetection{}, fmt.Errorf("%w: confidence must be in [0, 1], got %v", ErrInvalidDetection, confidence)
	}
	return FieldDetection{
		PageIndex:   pageIndex,
		BBox:        box,
		FieldType:   fieldType,
		Label:       cleaned,
		Confidence:  confidence,
		Source:      source,
		TemplateKey: templateKey,
	}, nil
}

// ErrInvalidDetection is wrapped by NewDetection's validation errors.
var ErrInvalidDetection = fmt.Errorf("invalid field detection")

// CleanLabel trims, collapses whitespace, strips trailing punctuation, and
// caps length at maxLabelLen, matching spec §3/§4.3.3.
func CleanLabel(label string) string {
	fields := strings.Fields(label)
	cleaned := strings.Join(fields, " ")
	cleaned = strings.TrimRight(cleaned, ".:,;-_ ")
	if len(cleaned) > maxLabelLen {
		cleaned = cleaned[:maxLabelLen]
	}
	return cleaned
}

// ToMap serializes a FieldDetection losslessly, the wire contract between
// detector workers and the orchestrator when they run out-of-process.
func (d FieldDetection) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"page_index":   d.PageIndex,
		"x":            d.BBox.X,
		"y":            d.BBox.Y,
		"width":        d.BBox.Width,
		"height":       d.BBox.Height,
		"field_type":   string(d.FieldType),
		"label":        d.Label,
		"confidence":   d.Confidence,
		"source":       string(d.Source),
		"template_key": d.TemplateKey,
	}
}

// FromMap deserializes a FieldDetection produced by ToMap.
func FromMap(m map[string]interface{}) (FieldDetection, error) {
	pageIndex, _ := m["page_index"].(int)
	x, _ := m["x"].(float64)
	y, _ := m["y"].(float64)
	w, _ := m["width"].(float64)
	h, _ := m["height"].(float64)
	fieldType, _ := m["field_type"].(string)
	label, _ := m["label"].(string)
	confidence, _ := m["confidence"].(float64)
	source, _ := m["source"].(string)
	templateKey, _ := m["template_key"].(string)

	box, err := New(x, y, w, h)
	if err != nil {
		return FieldDetection{}, err
	}
	return NewDetection(pageIndex, box, FieldType(fieldType), label, confidence, DetectionSource(source), templateKey)
}
