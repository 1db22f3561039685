package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmptyPageSentinel(t *testing.T) {
	p := emptyPage(3)
	assert.Equal(t, 3, p.Index)
	assert.Equal(t, 1, p.WidthPx)
	assert.Equal(t, 1, p.HeightPx)
	assert.NotNil(t, p.Image)
}

func TestRenderPages_MissingDocumentFails(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pdfium-backed render in short mode")
	}

	r, err := New(144, nil)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	defer r.Close()

	pages, err := r.RenderPages("testdata/does-not-exist.pdf")
	assert.Error(t, err)
	assert.Nil(t, pages)
}
