package pdferr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindInvalidInput:      "INVALID_INPUT",
		KindNotFound:          "NOT_FOUND",
		KindStorageFailure:    "STORAGE_FAILURE",
		KindRenderFailure:     "RENDER_FAILURE",
		KindDetectorFailure:   "DETECTOR_FAILURE",
		KindMergerFailure:     "MERGER_FAILURE",
		KindPersistenceFailure: "PERSISTENCE_FAILURE",
		KindCancelled:         "CANCELLED",
		KindUnknown:           "UNKNOWN",
	}
	for k, want := range cases {
		assert.Equal(t, want, k.String())
	}
}

func TestKindRetryable(t *testing.T) {
	assert.True(t, KindStorageFailure.Retryable())
	assert.True(t, KindRenderFailure.Retryable())
	assert.False(t, KindInvalidInput.Retryable())
	assert.False(t, KindPersistenceFailure.Retryable())
}

func TestWrapNilCauseReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(KindStorageFailure, "ctx", nil))
}

func TestErrorMessageFormats(t *testing.T) {
	e := New(KindNotFound, "document missing")
	assert.Equal(t, "NOT_FOUND: document missing", e.Error())

	wrapped := Wrap(KindRenderFailure, "page 2", errors.New("pdfium crash"))
	assert.Equal(t, "RENDER_FAILURE: page 2: pdfium crash", wrapped.Error())

	bare := Wrap(KindRenderFailure, "", errors.New("boom"))
	assert.Equal(t, "RENDER_FAILURE: boom", bare.Error())
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	wrapped := Wrap(KindStorageFailure, "upload", cause)
	assert.Equal(t, cause, errors.Unwrap(wrapped))
	assert.True(t, errors.Is(wrapped, cause))
}

func TestKindOfExtractsThroughWrapping(t *testing.T) {
	inner := Wrap(KindDetectorFailure, "structure detector", errors.New("panic"))
	outer := fmtErrorf(inner)
	assert.Equal(t, KindDetectorFailure, KindOf(outer))
}

func TestKindOfUnknownForPlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func fmtErrorf(err error) error {
	return &wrapper{err}
}

type wrapper struct{ err error }

func (w *wrapper) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrapper) Unwrap() error { return w.err }

func TestNewWithoutCause(t *testing.T) {
	e := New(KindCancelled, "job cancelled")
	require.Nil(t, e.Cause)
	assert.Equal(t, KindCancelled, e.Kind)
}
