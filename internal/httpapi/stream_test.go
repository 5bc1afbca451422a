package httpapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hackjutsu/mini-chatbot/internal/chat"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type deadConnWriter struct {
	*httptest.ResponseRecorder
}

func (deadConnWriter) FlushError() error {
	return errors.New("connection reset by peer")
}

type plainWriter struct {
	header http.Header
}

func (w *plainWriter) Header() http.Header         { return w.header }
func (w *plainWriter) Write(b []byte) (int, error) { return len(b), nil }
func (w *plainWriter) WriteHeader(int)             {}

func TestNDJSONSinkWritesFrames(t *testing.T) {
	resp := httptest.NewRecorder()
	sink := newNDJSONSink(chimw.NewWrapResponseWriter(resp, 1))

	if err := sink.Send(chat.DeltaFrame("Hi")); err != nil {
		t.Fatalf("send delta: %v", err)
	}
	if err := sink.Send(chat.DoneFrame()); err != nil {
		t.Fatalf("send done: %v", err)
	}
	if !resp.Flushed {
		t.Fatal("expected response to be flushed")
	}
	want := "{\"type\":\"delta\",\"content\":\"Hi\"}\n{\"type\":\"done\"}\n"
	if got := resp.Body.String(); got != want {
		t.Fatalf("unexpected body: %q", got)
	}
}

func TestNDJSONSinkReportsFlushFailures(t *testing.T) {
	writers := map[string]http.ResponseWriter{
		"direct":  deadConnWriter{httptest.NewRecorder()},
		"wrapped": chimw.NewWrapResponseWriter(deadConnWriter{httptest.NewRecorder()}, 1),
	}
	for name, w := range writers {
		t.Run(name, func(t *testing.T) {
			sink := newNDJSONSink(w)
			if err := sink.Send(chat.DeltaFrame("Hi")); err == nil {
				t.Fatal("expected flush failure to be reported")
			}
		})
	}
}

func TestNDJSONSinkFailBeforeOpenWritesJSON(t *testing.T) {
	resp := httptest.NewRecorder()
	sink := newNDJSONSink(resp)

	if err := sink.Fail("Failed to contact Ollama"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, resp.Code)
	}
	if code := errorCode(t, resp); code != "upstream_unavailable" {
		t.Fatalf("unexpected error code: %q", code)
	}
}

func TestNDJSONSinkRequiresFlusher(t *testing.T) {
	sink := newNDJSONSink(&plainWriter{header: http.Header{}})
	if err := sink.Open(); !errors.Is(err, errStreamingUnsupported) {
		t.Fatalf("expected errStreamingUnsupported, got %v", err)
	}
}
