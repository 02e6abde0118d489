package wire

import "errors"

// Standard errors returned by the wire codec.
var (
	// ErrIncomplete indicates no complete record is buffered yet.
	// More bytes must be fed before Next can produce a frame.
	ErrIncomplete = errors.New("incomplete record buffered")

	// ErrContaminated indicates a decoded record was not a mapping.
	// This usually means a completion source printed to stdout, which is
	// reserved for the RPC protocol.
	ErrContaminated = errors.New("response record is not a mapping")

	// ErrCorrupted indicates bytes on the stream could not be decoded as
	// msgpack at all. The buffered bytes are discarded.
	ErrCorrupted = errors.New("undecodable bytes on response stream")
)
