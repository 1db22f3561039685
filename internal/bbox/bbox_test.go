package bbox

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesInvariants(t *testing.T) {
	cases := []struct {
		name                   string
		x, y, width, height    float64
		wantErr                bool
	}{
		{"valid", 0.1, 0.1, 0.3, 0.2, false},
		{"x out of range", 1.5, 0.1, 0.1, 0.1, true},
		{"negative width", 0.1, 0.1, -0.1, 0.1, true},
		{"zero height", 0.1, 0.1, 0.1, 0, true},
		{"x+width exceeds 1", 0.9, 0.1, 0.2, 0.1, true},
		{"y+height exceeds 1", 0.1, 0.9, 0.1, 0.2, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.x, tc.y, tc.width, tc.height)
			if tc.wantErr {
				require.Error(t, err)
				var invalid *InvalidBBoxError
				assert.ErrorAs(t, err, &invalid)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// TestCoordinateRoundTrip is testable property 1 from spec §8.
func TestCoordinateRoundTrip(t *testing.T) {
	b, err := New(0.1, 0.2, 0.3, 0.4)
	require.NoError(t, err)

	xMin, yMin, xMax, yMax := b.ToRect()
	b2, err := FromRect(xMin, yMin, xMax, yMax)
	require.NoError(t, err)

	assert.InDelta(t, b.X, b2.X, 1e-9)
	assert.InDelta(t, b.Y, b2.Y, 1e-9)
	assert.InDelta(t, b.Width, b2.Width, 1e-9)
	assert.InDelta(t, b.Height, b2.Height, 1e-9)
}

func TestIntersectionAreaDisjoint(t *testing.T) {
	a, _ := New(0, 0, 0.1, 0.1)
	b, _ := New(0.5, 0.5, 0.1, 0.1)
	assert.Equal(t, 0.0, a.IntersectionArea(b))
	assert.False(t, a.Intersects(b))
}

func TestIntersectionAreaOverlapping(t *testing.T) {
	a, _ := New(0, 0, 0.2, 0.2)
	b, _ := New(0.1, 0.1, 0.2, 0.2)
	got := a.IntersectionArea(b)
	assert.InDelta(t, 0.01, got, 1e-9)
	assert.True(t, a.Intersects(b))
}

func TestIoUZeroUnion(t *testing.T) {
	// Degenerate case cannot be constructed via New (width/height must be >0),
	// so IoU's union==0 branch is exercised through identical zero-area boxes
	// built without validation.
	a := BBox{X: 0, Y: 0, Width: 0, Height: 0}
	b := BBox{X: 0, Y: 0, Width: 0, Height: 0}
	assert.Equal(t, 0.0, a.IoU(b))
}

func TestIoUIdenticalBoxes(t *testing.T) {
	a, _ := New(0.1, 0.1, 0.2, 0.2)
	assert.InDelta(t, 1.0, a.IoU(a), 1e-9)
}

func TestFromPixelsUnclamped(t *testing.T) {
	// A pixel rect outside the page produces an out-of-range BBox; New should
	// reject it, forcing the caller to Clamp.
	_, err := FromPixels(-10, -10, 50, 50, 1000, 1000)
	require.Error(t, err)
}

func TestClamp(t *testing.T) {
	b := BBox{X: -0.5, Y: 1.2, Width: 2.0, Height: 0.5}
	clamped := b.Clamp()
	assert.True(t, clamped.X >= 0 && clamped.X <= 1)
	assert.True(t, clamped.Y >= 0 && clamped.Y <= 1)
	assert.True(t, clamped.X+clamped.Width <= 1+1e-9)
	assert.True(t, clamped.Y+clamped.Height <= 1+1e-9)
}

func TestCleanLabel(t *testing.T) {
	cases := map[string]string{
		"  Name:  Field  ": "Name: Field",
		"Name:   ":          "Name",
		"..":                "",
		"a":                 "a",
	}
	for in, want := range cases {
		got := CleanLabel(in)
		assert.Equal(t, want, got, "input=%q", in)
	}
}

func TestNewFieldDetectionRejectsEmptyLabel(t *testing.T) {
	box, _ := New(0.1, 0.1, 0.1, 0.1)
	_, err := NewDetection(0, box, FieldTypeText, "   ", 0.5, SourceStructure, "")
	require.Error(t, err)
}

func TestDetectionSourcePriorityOrdering(t *testing.T) {
	assert.True(t, SourceStructure.Priority() < SourceGeometric.Priority())
	assert.True(t, SourceGeometric.Priority() < SourceVision.Priority())
	assert.True(t, SourceVision.Priority() < SourceAcroForm.Priority())
	assert.True(t, SourceAcroForm.Priority() < SourceMerged.Priority())
}

func TestFieldDetectionMapRoundTrip(t *testing.T) {
	box, _ := New(0.1, 0.2, 0.3, 0.1)
	d, err := NewDetection(2, box, FieldTypeCheckbox, "Agree", 0.9, SourceGeometric, "tpl-1")
	require.NoError(t, err)

	m := d.ToMap()
	d2, err := FromMap(m)
	require.NoError(t, err)
	assert.Equal(t, d.PageIndex, d2.PageIndex)
	assert.Equal(t, d.FieldType, d2.FieldType)
	assert.Equal(t, d.Label, d2.Label)
	assert.Equal(t, d.Source, d2.Source)
	assert.Equal(t, d.TemplateKey, d2.TemplateKey)
	assert.InDelta(t, d.BBox.X, d2.BBox.X, 1e-9)
}

func TestAspectRatio(t *testing.T) {
	b, _ := New(0, 0, 0.5, 0.25)
	assert.InDelta(t, 2.0, b.AspectRatio(), 1e-9)
}

func TestAreaAndCenter(t *testing.T) {
	b, _ := New(0.2, 0.2, 0.4, 0.2)
	assert.InDelta(t, 0.08, b.Area(), 1e-9)
	cx, cy := b.Center()
	assert.InDelta(t, 0.4, cx, 1e-9)
	assert.InDelta(t, 0.3, cy, 1e-9)
}

func TestNoNaNFromDegenerateAspect(t *testing.T) {
	b := BBox{Width: 1, Height: 0}
	assert.False(t, math.IsNaN(b.AspectRatio()))
}
