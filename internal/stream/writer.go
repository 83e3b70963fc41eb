// Package stream implements the newline-delimited JSON frame codec used by
// the chat endpoint: one {"type":"message","data":...} object per line.
package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/capitalize-ai/colloquy/internal/model"
)

// ContentType is the content type of a frame stream response.
const ContentType = "text/event-stream"

// Writer writes frames to an underlying writer, flushing after each one.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter creates a frame writer. If w implements http.Flusher every frame
// is flushed as soon as it is written.
func NewWriter(w io.Writer) *Writer {
	fw := &Writer{w: w}
	if f, ok := w.(http.Flusher); ok {
		fw.flusher = f
	}
	return fw
}

// WriteMessage wraps msg in a message frame and writes it.
func (fw *Writer) WriteMessage(msg model.Message) error {
	return fw.WriteFrame(model.NewMessageFrame(msg))
}

// WriteFrame writes one frame followed by a newline.
func (fw *Writer) WriteFrame(frame model.Frame) error {
	data, err := Encode(frame)
	if err != nil {
		return err
	}
	if _, err := fw.w.Write(data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	fw.Flush()
	return nil
}

// Flush pushes buffered bytes to the client.
func (fw *Writer) Flush() {
	if fw.flusher != nil {
		fw.flusher.Flush()
	}
}

// Encode marshals a frame as a single newline-terminated line.
func Encode(frame model.Frame) ([]byte, error) {
	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal frame: %w", err)
	}
	return append(data, '\n'), nil
}
