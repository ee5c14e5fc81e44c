// Package testutil provides shared test helpers.
package testutil

import (
	"net/http"
	"os"
	"testing"

	"gopkg.in/dnaeon/go-vcr.v2/cassette"
	"gopkg.in/dnaeon/go-vcr.v2/recorder"
)

// NewVCRRecorder creates a VCR recorder for testing HTTP clients. When the
// cassette already exists it replays; otherwise (or when VCR_MODE=record)
// it records the live exchange.
func NewVCRRecorder(t *testing.T, cassettePath string) (*recorder.Recorder, func()) {
	t.Helper()

	mode := recorder.ModeReplaying
	if _, err := os.Stat(cassettePath + ".yaml"); os.IsNotExist(err) || os.Getenv("VCR_MODE") == "record" {
		mode = recorder.ModeRecording
	}

	r, err := recorder.NewAsMode(cassettePath, mode, nil)
	if err != nil {
		t.Fatalf("Failed to create VCR recorder: %v", err)
	}

	// Don't match on request body for simplicity
	r.SetMatcher(func(r *http.Request, i cassette.Request) bool {
		return r.Method == i.Method && r.URL.String() == i.URL
	})

	cleanup := func() {
		if err := r.Stop(); err != nil {
			t.Errorf("Failed to stop VCR recorder: %v", err)
		}
	}

	return r, cleanup
}

// VCRHTTPClient returns an HTTP client configured to use the VCR recorder.
func VCRHTTPClient(r *recorder.Recorder) *http.Client {
	return &http.Client{
		Transport: r,
	}
}
