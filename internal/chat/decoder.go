package chat

import (
	"bytes"
	"encoding/json"
	"strings"

	"go.uber.org/zap"
)

type FrameKind int

const (
	KindNone FrameKind = iota
	KindDelta
	KindError
)

type UpstreamFrame struct {
	Kind FrameKind
	Text string
}

type upstreamLine struct {
	Message *struct {
		Content string `json:"content"`
	} `json:"message"`
	Response string          `json:"response"`
	Error    json.RawMessage `json:"error"`
}

const maxLoggedLineBytes = 200

// Decoder splits an NDJSON byte stream into frames. Input may be cut at any
// byte offset; a partial trailing line is kept until its newline arrives or
// Flush is called.
type Decoder struct {
	buf    []byte
	logger *zap.Logger
}

func NewDecoder(logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{logger: logger}
}

func (d *Decoder) Feed(chunk []byte) []UpstreamFrame {
	d.buf = append(d.buf, chunk...)

	var out []UpstreamFrame
	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			break
		}
		if frame, ok := d.decodeLine(d.buf[:idx]); ok {
			out = append(out, frame)
		}
		d.buf = d.buf[idx+1:]
	}
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return out
}

// Flush decodes whatever is left once the upstream reaches end of stream.
func (d *Decoder) Flush() []UpstreamFrame {
	rest := d.buf
	d.buf = nil
	if frame, ok := d.decodeLine(rest); ok {
		return []UpstreamFrame{frame}
	}
	return nil
}

func (d *Decoder) decodeLine(raw []byte) (UpstreamFrame, bool) {
	line := bytes.TrimSpace(raw)
	if len(line) == 0 {
		return UpstreamFrame{}, false
	}
	frame, err := decodeFrame(line)
	if err != nil {
		d.logger.Warn("skipping non-JSON upstream line", zap.ByteString("line", truncateBytes(line, maxLoggedLineBytes)), zap.Error(err))
		return UpstreamFrame{}, false
	}
	return frame, frame.Kind != KindNone
}

// decodeFrame maps one upstream object to a frame. An error field wins;
// otherwise message.content is preferred over the flat response field.
func decodeFrame(line []byte) (UpstreamFrame, error) {
	var parsed upstreamLine
	if err := json.Unmarshal(line, &parsed); err != nil {
		return UpstreamFrame{}, err
	}

	if message, ok := decodeUpstreamError(parsed.Error); ok {
		return UpstreamFrame{Kind: KindError, Text: message}, nil
	}
	if parsed.Message != nil && parsed.Message.Content != "" {
		return UpstreamFrame{Kind: KindDelta, Text: parsed.Message.Content}, nil
	}
	if parsed.Response != "" {
		return UpstreamFrame{Kind: KindDelta, Text: parsed.Response}, nil
	}
	return UpstreamFrame{}, nil
}

func decodeUpstreamError(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("false")) {
		return "", false
	}

	var asString string
	if err := json.Unmarshal(trimmed, &asString); err == nil {
		if strings.TrimSpace(asString) == "" {
			return "", false
		}
		return asString, true
	}

	var asObject struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(trimmed, &asObject); err == nil && strings.TrimSpace(asObject.Message) != "" {
		return asObject.Message, true
	}
	return string(trimmed), true
}

func truncateBytes(b []byte, limit int) []byte {
	if len(b) <= limit {
		return b
	}
	return b[:limit]
}
