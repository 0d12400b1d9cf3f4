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

import (
	"bytes"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

// ErrEmptyMessage is returned when asked to frame a message with no content;
// chunked framing has no representation for one.
var ErrEmptyMessage = errors.New("rfc6242: empty message")

// NewEncoder returns a new RFC6242 transport encoding writer with underlying
// writer output, configured with any options provided.
func NewEncoder(output io.Writer, opts ...EncoderOption) *Encoder {
	e := &Encoder{Output: output, MaxChunkSize: rfc6242maximumAllowedChunkSize}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encoder is a filtering writer. By default it acts as a pass through writer.
// If chunked mode is enabled (see SetChunkedFraming), input to Write calls
// is chunked and the RFC6242 chunked encoding output written to the underlying
// writer.
type Encoder struct {
	// Output is the underlying Writer to receive encoded output
	Output io.Writer

	// ChunkedFraming sets whether the next call to Write should use
	// chunked-message framing (true) or end-of-message framing (false)
	ChunkedFraming bool

	// MaxChunkSize is the maximum size of chunks the encoder will Encode. If
	// zero, the maximum allowed by RFC6242 is used.
	MaxChunkSize uint32
}

// Mode reports the framing mode the encoder currently applies.
func (e *Encoder) Mode() Mode {
	if e.ChunkedFraming {
		return Chunked
	}
	return EndOfMessage
}

// Write writes the framed output for b to the underlying writer
func (e *Encoder) Write(b []byte) (n int, err error) {
	if len(b) == 0 {
		return 0, nil
	}
	if e.ChunkedFraming {
		return e.writeChunked(b)
	}
	return e.Output.Write(b)
}

// EndOfMessage must be called after each conceptual message (or XML document) is
// written to the Encoder. It writes the appropriate NETCONF message ending,
// either "]]>]]>" or if chunked framing is enabled, "\n##\n".
func (e *Encoder) EndOfMessage() error {
	var err error
	if e.ChunkedFraming {
		_, err = e.Output.Write(tokenEndOfChunks)
	} else {
		_, err = e.Output.Write(tokenEOM)
	}
	return err
}

// WriteMessage frames doc as one complete message and writes it with a single
// call to the underlying writer, so a message is never interleaved with other output.
func (e *Encoder) WriteMessage(doc []byte) error {
	if len(doc) == 0 {
		return ErrEmptyMessage
	}
	_, err := e.Output.Write(EncodeMessage(e.Mode(), doc, e.MaxChunkSize))
	return err
}

// Close attempts to close the underlying writer.
func (e *Encoder) Close() error {
	if closer, ok := e.Output.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (e *Encoder) chunkSize() int {
	if e.MaxChunkSize == 0 {
		return rfc6242maximumAllowedChunkSize
	}
	return int(e.MaxChunkSize)
}

func (e *Encoder) writeChunked(b []byte) (n int, err error) {
	// encode b, in chunks, to the underlying writer
	for n < len(b) {
		chunksize := len(b) - n
		if chunksize > e.chunkSize() {
			chunksize = e.chunkSize()
		}

		// chunk encoding:
		// \n#<x>\n<x bytes data...>
		_, err = e.Output.Write(chunkHeader(chunksize))
		var wn int
		if err == nil {
			wn, err = e.Output.Write(b[n : n+chunksize])
			// io.Writer requires not returning nil error for short writes,
			// so we do not check for them.
			n += wn
		}
		if err != nil {
			break
		}
	}
	return
}

// EncodeMessage returns doc framed as one complete message in the given mode.
// A maxChunk of zero applies the RFC6242 maximum chunk size. An empty doc
// yields nil.
func EncodeMessage(mode Mode, doc []byte, maxChunk uint32) []byte {
	if len(doc) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if mode != Chunked {
		buf.Grow(len(doc) + len(tokenEOM))
		buf.Write(doc)
		buf.Write(tokenEOM)
		return buf.Bytes()
	}

	size := int(maxChunk)
	if maxChunk == 0 {
		size = rfc6242maximumAllowedChunkSize
	}
	for n := 0; n < len(doc); n += size {
		end := n + size
		if end > len(doc) {
			end = len(doc)
		}
		buf.Write(chunkHeader(end - n))
		buf.Write(doc[n:end])
	}
	buf.Write(tokenEndOfChunks)
	return buf.Bytes()
}

func chunkHeader(size int) []byte {
	return []byte("\n#" + strconv.Itoa(size) + "\n")
}
