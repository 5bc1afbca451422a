package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hackjutsu/mini-chatbot/internal/chat"
)

var errStreamingUnsupported = errors.New("server does not support streaming")

// ndjsonSink writes chat frames as newline-delimited JSON, flushing after
// every frame.
type ndjsonSink struct {
	w         http.ResponseWriter
	rc        *http.ResponseController
	streaming bool
	opened    bool
}

func newNDJSONSink(w http.ResponseWriter) *ndjsonSink {
	inner := innermostWriter(w)
	_, flusher := inner.(http.Flusher)
	_, flushError := inner.(interface{ FlushError() error })
	return &ndjsonSink{
		w:         w,
		rc:        http.NewResponseController(inner),
		streaming: flusher || flushError,
	}
}

// innermostWriter strips middleware wrappers, whose Flush methods drop the
// error of the underlying connection.
func innermostWriter(w http.ResponseWriter) http.ResponseWriter {
	for {
		unwrapper, ok := w.(interface{ Unwrap() http.ResponseWriter })
		if !ok {
			return w
		}
		w = unwrapper.Unwrap()
	}
}

func (s *ndjsonSink) Open() error {
	if s.opened {
		return nil
	}
	if !s.streaming {
		return errStreamingUnsupported
	}
	header := s.w.Header()
	header.Set("Content-Type", "application/x-ndjson")
	header.Set("Cache-Control", "no-cache, no-transform")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.opened = true
	return s.rc.Flush()
}

func (s *ndjsonSink) Send(frame chat.Frame) error {
	if err := s.Open(); err != nil {
		return err
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if _, err := s.w.Write(append(payload, '\n')); err != nil {
		return err
	}
	return s.rc.Flush()
}

// Fail answers with a JSON 500 while nothing has been streamed, and with an
// in-band error frame afterwards.
func (s *ndjsonSink) Fail(message string) error {
	if !s.opened {
		writeError(s.w, http.StatusInternalServerError, "upstream_unavailable", message)
		return nil
	}
	return s.Send(chat.ErrorFrame(message))
}
