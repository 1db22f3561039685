package overlap

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/docfields/hybriddetect/internal/bbox"
)

func mustBox(t *testing.T, x, y, w, h float64) bbox.BBox {
	t.Helper()
	b, err := bbox.New(x, y, w, h)
	if err != nil {
		t.Fatalf("bbox.New: %v", err)
	}
	return b
}

func TestOverlapRatioNoTextRegions(t *testing.T) {
	field := mustBox(t, 0.1, 0.1, 0.2, 0.1)
	assert.Equal(t, 0.0, overlapRatio(field, nil))
}

func TestOverlapRatioFullyCoveredClampsToOne(t *testing.T) {
	field := mustBox(t, 0.1, 0.1, 0.1, 0.1)
	text1 := mustBox(t, 0.1, 0.1, 0.1, 0.06)
	text2 := mustBox(t, 0.1, 0.15, 0.1, 0.05)
	ratio := overlapRatio(field, []bbox.BBox{text1, text2})
	assert.Equal(t, 1.0, ratio)
}

func TestFilterFailsOpenWhenTextExtractionFails(t *testing.T) {
	f, err := bbox.NewDetection(0, mustBox(t, 0.1, 0.1, 0.1, 0.05), bbox.FieldTypeText, "x", 0.8, bbox.SourceStructure, "")
	if err != nil {
		t.Fatalf("NewDetection: %v", err)
	}
	result := Filter("testdata/does-not-exist.pdf", []bbox.FieldDetection{f}, DefaultThreshold)
	assert.Len(t, result, 1)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-1))
	assert.Equal(t, 1.0, clamp01(2))
	assert.Equal(t, 0.5, clamp01(0.5))
}
