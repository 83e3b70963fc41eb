package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/capitalize-ai/colloquy/internal/model"
)

// MaxLineSize bounds a single frame on the wire.
const MaxLineSize = 4 << 20

// ParseError reports a line that could not be decoded as a frame. It is not
// fatal: the decoder can continue with the next line.
type ParseError struct {
	Line int
	Raw  string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed frame on line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ErrLineTooLong is the cause of a ParseError for a line over MaxLineSize.
// The rest of the line is discarded and decoding continues after it.
var ErrLineTooLong = errors.New("frame exceeds maximum line size")

// Decoder reads frames from a newline-delimited JSON stream.
type Decoder struct {
	r    *bufio.Reader
	line int
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next frame. Blank lines are skipped. A *ParseError is
// returned for malformed or oversized lines, io.EOF once the stream is
// exhausted, and any other error means the underlying reader failed.
func (d *Decoder) Next() (model.Frame, error) {
	for {
		raw, tooLong, err := d.readLine()
		if err == io.EOF {
			return model.Frame{}, io.EOF
		}
		if err != nil {
			return model.Frame{}, fmt.Errorf("failed to read frame stream: %w", err)
		}
		d.line++
		if tooLong {
			return model.Frame{}, &ParseError{Line: d.line, Err: ErrLineTooLong}
		}

		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			continue
		}

		var frame model.Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			return model.Frame{}, &ParseError{Line: d.line, Raw: string(raw), Err: err}
		}
		if frame.Type != model.FrameTypeMessage {
			return model.Frame{}, &ParseError{Line: d.line, Raw: string(raw), Err: fmt.Errorf("unknown frame type %q", frame.Type)}
		}
		return frame, nil
	}
}

// readLine returns the next line. A line longer than MaxLineSize is read to
// its end without being kept, and tooLong is set. A final line without a
// newline is returned as is; io.EOF means nothing was left.
func (d *Decoder) readLine() (line []byte, tooLong bool, err error) {
	read := 0
	for {
		chunk, err := d.r.ReadSlice('\n')
		read += len(chunk)
		if !tooLong {
			if len(line)+len(chunk) > MaxLineSize+1 {
				tooLong, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}

		switch {
		case err == nil:
			return line, tooLong, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err == io.EOF && read > 0:
			return line, tooLong, nil
		default:
			return nil, false, err
		}
	}
}
