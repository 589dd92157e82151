package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindPropagatesThroughWrapping(t *testing.T) {
	base := New(KindRateLimited, "throttled")
	wrapped := fmt.Errorf("fetching blob: %w", base)

	assert.True(t, IsKind(wrapped, KindRateLimited))
	assert.False(t, IsKind(wrapped, KindSourceUnavailable))
	assert.True(t, Retryable(wrapped))
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, KindInternal, "noop"))
}

func TestIsMatchesByKind(t *testing.T) {
	err := Wrap(stderrors.New("boom"), KindStaleManifest, "pinned commit moved")
	assert.True(t, stderrors.Is(err, New(KindStaleManifest, "")))
	assert.False(t, stderrors.Is(err, New(KindCancelled, "")))
}

func TestExitCodes(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{nil, ExitOK},
		{stderrors.New("plain"), ExitFailure},
		{New(KindConfigInvalid, "bad weights"), ExitConfig},
		{New(KindStaleManifest, "moved"), ExitConfig},
		{New(KindSourceUnavailable, "404"), ExitSourceUnavailable},
		{New(KindCancelled, "interrupt"), ExitCancelled},
		{New(KindScannerUnavailable, "no semgrep"), ExitScannerUnavailable},
		{New(KindInternal, "bug"), ExitFailure},
		{fmt.Errorf("outer: %w", New(KindCancelled, "interrupt")), ExitCancelled},
	}
	for _, c := range cases {
		assert.Equal(t, c.code, ExitCode(c.err), "err=%v", c.err)
	}
}

func TestErrorString(t *testing.T) {
	err := New(KindMalformedResponse, "no JSON object in reply")
	assert.Equal(t, "MalformedResponse: no JSON object in reply", err.Error())

	wrapped := Wrap(stderrors.New("eof"), KindCorruptManifest, "manifest.json")
	assert.Contains(t, wrapped.Error(), "CorruptManifest")
	assert.Contains(t, wrapped.Error(), "eof")
}
