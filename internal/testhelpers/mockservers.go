package testhelpers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MockDiscordServer provides a configurable mock of the user lookup
// endpoint for testing.
type MockDiscordServer struct {
	Server         *httptest.Server
	AvatarHash     string  // Hash to return for successful lookups
	StatusCode     int     // HTTP status code to return (200 if not set)
	Message        string  // Error message body for non-200 responses
	RetryAfter     float64 // retry_after seconds for rate limit responses
	RequestCount   int     // Number of requests received
	LastAuthHeader string  // Captured Authorization header from last request
}

// SetupMockDiscordServer creates a mock user lookup server. Returns a
// MockDiscordServer with configurable response values and request
// tracking.
func SetupMockDiscordServer(t *testing.T) *MockDiscordServer {
	t.Helper()

	mock := &MockDiscordServer{
		AvatarHash: "a1b2c3d4e5f6",
		StatusCode: http.StatusOK,
	}

	router := http.NewServeMux()

	router.HandleFunc("/users/{identifier}", func(w http.ResponseWriter, r *http.Request) {
		mock.RequestCount++
		mock.LastAuthHeader = r.Header.Get("Authorization")

		if mock.StatusCode != http.StatusOK {
			w.WriteHeader(mock.StatusCode)
			WriteJSON(w, map[string]any{
				"message":     mock.Message,
				"retry_after": mock.RetryAfter,
			})
			return
		}

		WriteJSON(w, map[string]any{
			"id":     r.PathValue("identifier"),
			"avatar": mock.AvatarHash,
		})
	})

	mock.Server = httptest.NewServer(router)
	return mock
}

// Close shuts down the mock server.
func (m *MockDiscordServer) Close() {
	m.Server.Close()
}

// MockCDNServer provides a configurable mock avatar CDN for testing.
type MockCDNServer struct {
	Server        *httptest.Server
	Body          []byte // Response body (an encoded image, unless testing decode failures)
	StatusCode    int    // HTTP status code to return (200 if not set)
	RequestCount  int    // Number of requests received
	LastUserAgent string // Captured User-Agent header from last request
	LastPath      string // Captured request path from last request
}

// SetupMockCDNServer creates a mock CDN serving the configured bytes
// for any avatar path.
func SetupMockCDNServer(t *testing.T) *MockCDNServer {
	t.Helper()

	mock := &MockCDNServer{
		Body:       EncodePNG(t, SolidImage(4, 4, color.NRGBA{R: 0x7f, G: 0x3f, B: 0xbf, A: 0xff})),
		StatusCode: http.StatusOK,
	}

	router := http.NewServeMux()

	router.HandleFunc("/avatars/{identifier}/{asset}", func(w http.ResponseWriter, r *http.Request) {
		mock.RequestCount++
		mock.LastUserAgent = r.Header.Get("User-Agent")
		mock.LastPath = r.URL.Path

		if mock.StatusCode != http.StatusOK {
			w.WriteHeader(mock.StatusCode)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(mock.Body)
	})

	mock.Server = httptest.NewServer(router)
	return mock
}

// Close shuts down the mock server.
func (m *MockCDNServer) Close() {
	m.Server.Close()
}

// WriteJSON is a helper function that writes a JSON response. It sets
// the Content-Type header and marshals the payload to JSON.
func WriteJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(payload)
	if err != nil {
		// In test context, this should never happen with valid test data
		http.Error(w, fmt.Sprintf("failed to marshal JSON: %v", err), http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(data)
}

// SolidImage builds a synthetic image of a single colour.
func SolidImage(width, height int, c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// EncodePNG encodes an image as PNG bytes, failing the test on error.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}
