package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentProcessable(t *testing.T) {
	cases := []struct {
		status Status
		want   bool
	}{
		{StatusImported, true},
		{StatusReady, false},
		{StatusFailed, true},
		{StatusProcessing, false},
		{StatusFilling, false},
		{StatusFilled, false},
	}
	for _, c := range cases {
		doc := Document{Status: c.status}
		assert.Equal(t, c.want, doc.Processable(), "status=%s", c.status)
	}
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "documents", Document{}.TableName())
	assert.Equal(t, "field_regions", FieldRegion{}.TableName())
}
