// Package wire implements the msgpack envelope protocol spoken between the
// editor host and the completion worker process.
//
// Outbound messages are Envelopes: a call name, an argument list, and a
// correlation id packed into a single self-delimiting msgpack map. Inbound
// bytes are accumulated by a Decoder that yields complete response Frames as
// they become available and keeps partial trailing bytes buffered for the
// next read.
//
// The worker's stdout carries this protocol, but a misbehaving completion
// source can print diagnostic text there as well. The Decoder therefore
// never treats bad input as fatal: a decoded record that is not a mapping is
// reported as contamination and skipped, and undecodable bytes flush the
// buffer rather than wedging the stream. Strings containing invalid UTF-8
// pass through unmodified in both directions; Go strings carry arbitrary
// bytes, so nothing is lost on either encode or decode.
package wire
