package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/docfields/hybriddetect/internal/detect/geometric"
	"github.com/docfields/hybriddetect/internal/detect/structure"
	"github.com/docfields/hybriddetect/internal/render"
)

func TestDetectPageSafelyReturnsEmptyForSentinelPage(t *testing.T) {
	p := &Pipeline{geometric: geometric.New()}
	page := render.Page{Index: 0, WidthPx: 1, HeightPx: 1}
	assert.Empty(t, p.detectPageSafely(page))
}

func TestRunVisionReturnsNilWhenNotConfigured(t *testing.T) {
	p := &Pipeline{}
	assert.Nil(t, p.runVision(nil, "testdata/does-not-exist.pdf"))
}

func TestRunStructureDegradesToEmptyOnOpenFailure(t *testing.T) {
	p := &Pipeline{structure: structure.New()}
	assert.Empty(t, p.runStructure("testdata/does-not-exist.pdf"))
}
