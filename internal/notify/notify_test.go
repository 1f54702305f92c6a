package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestLoadFailedPostsAlert(t *testing.T) {
	ctx := context.Background()

	var receivedMethod string
	var receivedPath string
	var receivedBody string
	var receivedContentType string

	client := &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			receivedMethod = r.Method
			receivedPath = r.URL.Path
			receivedContentType = r.Header.Get("Content-Type")
			rawBody, err := io.ReadAll(r.Body)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			receivedBody = string(rawBody)
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader("ok")),
				Header:     make(http.Header),
			}, nil
		}),
	}

	n := New("http://example.com/notifications", client)
	if err := n.LoadFailed(ctx, "http://charts.local/index.html", errors.New("web content terminated")); err != nil {
		t.Fatalf("LoadFailed() error = %v", err)
	}

	if got, want := receivedMethod, http.MethodPost; got != want {
		t.Fatalf("method = %q; want %q", got, want)
	}
	if got, want := receivedPath, "/notifications"; got != want {
		t.Fatalf("path = %q; want %q", got, want)
	}
	if got, want := receivedContentType, "text/plain"; got != want {
		t.Fatalf("content-type = %q; want %q", got, want)
	}
	if !strings.Contains(receivedBody, "web content terminated") {
		t.Fatalf("body = %q; want termination message", receivedBody)
	}
	if !strings.Contains(receivedBody, "http://charts.local/index.html") {
		t.Fatalf("body = %q; want chart url", receivedBody)
	}
}

func TestLoadFailedDisabledWithoutEndpoint(t *testing.T) {
	called := false
	client := &http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			called = true
			return nil, errors.New("should not be called")
		}),
	}

	n := New("", client)
	if n.Enabled() {
		t.Fatal("Enabled() = true; want false")
	}
	if err := n.LoadFailed(context.Background(), "http://charts.local", errors.New("x")); err != nil {
		t.Fatalf("LoadFailed() error = %v", err)
	}
	if called {
		t.Fatal("transport called despite empty endpoint")
	}
}

func TestSendReturnsErrorForServerError(t *testing.T) {
	client := &http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusInternalServerError,
				Body:       io.NopCloser(strings.NewReader("server failure")),
				Header:     make(http.Header),
			}, nil
		}),
	}

	err := Send(context.Background(), client, "http://example.com/notifications", "boom")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "alert notification failed") {
		t.Fatalf("error = %q; want to contain %q", err, "alert notification failed")
	}
}
