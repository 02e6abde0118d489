package wire

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Envelope is an outbound call record sent to the worker.
type Envelope struct {
	Name    string `msgpack:"name"`
	Args    []any  `msgpack:"args"`
	QueueID string `msgpack:"queue_id"`
}

// EncodeEnvelope packs a call into a single msgpack record.
// A nil args slice is encoded as an empty array so the worker always
// receives a list.
func EncodeEnvelope(name string, args []any, queueID string) ([]byte, error) {
	if args == nil {
		args = []any{}
	}
	data, err := msgpack.Marshal(&Envelope{
		Name:    name,
		Args:    args,
		QueueID: queueID,
	})
	if err != nil {
		return nil, fmt.Errorf("encode envelope %q: %w", name, err)
	}
	return data, nil
}

// Frame is a decoded response record from the worker.
type Frame struct {
	// QueueID is the correlation id the response answers, or "" if the
	// record carried none.
	QueueID string

	// Payload is the full decoded record.
	Payload map[string]any
}

// MergePayload is the result carried by a merge_results response.
type MergePayload struct {
	IsAsync bool
	Results []any
}

// MergePayload extracts the merge_results fields from the frame.
// Missing or mistyped fields degrade to their zero values; ok reports
// whether the frame carried any payload at all.
func (f Frame) MergePayload() (p MergePayload, ok bool) {
	if f.Payload == nil {
		return MergePayload{}, false
	}
	p.IsAsync, _ = f.Payload["is_async"].(bool)
	p.Results, _ = f.Payload["merged_results"].([]any)
	return p, true
}

// Decoder incrementally decodes msgpack records from a byte stream.
// Feed bytes in arbitrary chunks; Next yields complete records and leaves
// partial trailing bytes buffered. Decoder is not safe for concurrent use;
// the transport channel serializes access.
type Decoder struct {
	buf []byte
}

// NewDecoder creates an empty stream decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends raw bytes read from the worker's stdout.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Buffered returns the number of undecoded bytes held.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Next decodes the next complete record from the buffer.
//
// It returns ErrIncomplete when only a partial record (or nothing) is
// buffered, ErrContaminated when a complete record is not a string-keyed
// mapping (the record is consumed and decoding continues at the next one),
// and ErrCorrupted when the buffered bytes cannot be decoded at all (the
// buffer is discarded). Callers drain by looping until ErrIncomplete.
func (d *Decoder) Next() (Frame, error) {
	if len(d.buf) == 0 {
		return Frame{}, ErrIncomplete
	}

	// bytes.Reader implements io.ByteScanner, so the msgpack decoder reads
	// it directly and r.Len() reflects exactly what was consumed.
	r := bytes.NewReader(d.buf)
	dec := msgpack.NewDecoder(r)

	v, err := dec.DecodeInterfaceLoose()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			// Partial record; wait for more bytes.
			return Frame{}, ErrIncomplete
		}
		d.buf = nil
		return Frame{}, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}

	consumed := len(d.buf) - r.Len()
	d.buf = d.buf[consumed:]

	m, ok := v.(map[string]any)
	if !ok {
		return Frame{}, ErrContaminated
	}

	queueID, _ := m["queue_id"].(string)
	return Frame{QueueID: queueID, Payload: m}, nil
}
