// Copyright 2018 Andrew Fort
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package rfc6242

// Mode identifies a NETCONF message framing mechanism.
type Mode int

const (
	// EndOfMessage is the legacy NETCONF 1.0 framing, terminating each message with "]]>]]>".
	EndOfMessage Mode = iota
	// Chunked is the RFC6242 chunked framing used by NETCONF 1.1.
	Chunked
)

func (m Mode) String() string {
	if m == Chunked {
		return "chunked"
	}
	return "end-of-message"
}

// SetChunkedFraming enables chunked framing mode on any non-nil
// *Decoder and *Encoder objects passed to it.
func SetChunkedFraming(objects ...interface{}) {
	for _, obj := range objects {
		switch obj := obj.(type) {
		case *Decoder:
			if obj != nil {
				obj.setFramer(Chunked)
			}
		case *Encoder:
			if obj != nil {
				obj.ChunkedFraming = true
			}
		}
	}
}

// ClearChunkedFraming disables chunked framing mode on any non-nil
// *Decoder and *Encoder objects passed to it.
func ClearChunkedFraming(objects ...interface{}) {
	for _, obj := range objects {
		switch obj := obj.(type) {
		case *Decoder:
			if obj != nil {
				obj.setFramer(EndOfMessage)
			}
		case *Encoder:
			if obj != nil {
				obj.ChunkedFraming = false
			}
		}
	}
}

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithMaximumChunkSize limits the size of the chunks written by a chunked Encoder.
func WithMaximumChunkSize(size uint32) EncoderOption {
	return func(e *Encoder) {
		e.MaxChunkSize = size
	}
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithFramer selects the framing mode the Decoder starts in.
func WithFramer(mode Mode) DecoderOption {
	return func(d *Decoder) {
		d.setFramer(mode)
	}
}

// WithMaximumMessageSize bounds the size of a single decoded message; a larger
// message is reported as a framing error. Zero means unbounded.
func WithMaximumMessageSize(size int) DecoderOption {
	return func(d *Decoder) {
		d.maxMessageSize = size
	}
}
