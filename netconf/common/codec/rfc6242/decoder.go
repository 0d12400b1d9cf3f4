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
	"fmt"

	"github.com/damianoneill/ncclient/netconf/common"
)

// FramerFn is the tokenization function used by a Decoder. It inspects the
// buffered input and returns the next complete message, if one is available.
type FramerFn func(d *Decoder) (token []byte, ok bool, err error)

// Decoder is an RFC6242 transport framing decoder.
//
// Decoder is push driven: input is supplied in fragments of any size with
// Write (or Feed) and complete messages are taken with Next. Bytes following
// a complete message are retained for the next message, so the framing mode
// may be switched between messages (e.g. after the hello exchange).
//
// A framing error is fatal; once reported every subsequent call returns it.
//
// Decoder is not safe for concurrent use.
type Decoder struct {
	framer FramerFn
	mode   Mode

	// Undecoded input.
	buf []byte

	// Chunked framing state: the message assembled so far, the data still
	// expected for the current chunk and whether any chunk has been seen.
	msg           bytes.Buffer
	chunkDataLeft uint64
	anyChunk      bool

	maxMessageSize int
	err            error
}

// NewDecoder creates a new RFC6242 transport framing decoder, configured with
// any options provided. The decoder starts in end-of-message framing.
func NewDecoder(options ...DecoderOption) *Decoder {
	d := &Decoder{}
	d.setFramer(EndOfMessage)
	for _, option := range options {
		option(d)
	}
	return d
}

// Mode reports the framing mode currently applied to input.
func (d *Decoder) Mode() Mode {
	return d.mode
}

// Buffered returns the number of input bytes not yet delivered as a message.
func (d *Decoder) Buffered() int {
	return len(d.buf) + d.msg.Len()
}

// Err returns the framing error that stopped the decoder, if any.
func (d *Decoder) Err() error {
	return d.err
}

// Write appends input to the decoder, implementing io.Writer. It never blocks.
func (d *Decoder) Write(b []byte) (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	d.buf = append(d.buf, b...)
	return len(b), nil
}

// Next returns the next complete message, if one is available.
// ok is false when more input is required.
func (d *Decoder) Next() (token []byte, ok bool, err error) {
	if d.err != nil {
		return nil, false, d.err
	}
	token, ok, err = d.framer(d)
	if err == nil && d.maxMessageSize > 0 && d.Buffered() > d.maxMessageSize && !ok {
		err = d.fail("message exceeds maximum size %d", d.maxMessageSize)
	}
	return
}

// Feed appends input to the decoder and returns every message completed by it.
// Feeding a stream in fragments of any size delivers the same messages as
// feeding it in one piece.
func (d *Decoder) Feed(b []byte) (msgs [][]byte, err error) {
	if _, err = d.Write(b); err != nil {
		return nil, err
	}
	for {
		token, ok, err := d.Next()
		if err != nil {
			return msgs, err
		}
		if !ok {
			return msgs, nil
		}
		msgs = append(msgs, token)
	}
}

func (d *Decoder) setFramer(mode Mode) {
	d.mode = mode
	if mode == Chunked {
		d.framer = decoderChunked
	} else {
		d.framer = decoderEndOfMessage
	}
}

func (d *Decoder) consume(n int) {
	d.buf = append(d.buf[:0], d.buf[n:]...)
}

func (d *Decoder) fail(format string, args ...interface{}) error {
	d.err = &common.FramingError{Mode: d.mode.String(), Reason: fmt.Sprintf(format, args...)}
	return d.err
}

// decoderEndOfMessage delivers the content preceding each "]]>]]>" marker.
func decoderEndOfMessage(d *Decoder) ([]byte, bool, error) {
	for {
		idx := bytes.Index(d.buf, tokenEOM)
		if idx < 0 {
			return nil, false, nil
		}
		token := append([]byte(nil), bytes.TrimSpace(d.buf[:idx])...)
		d.consume(idx + len(tokenEOM))
		if len(token) > 0 {
			return token, true, nil
		}
	}
}

// decoderChunked assembles a message from "\n#<size>\n<data>" chunks terminated
// by "\n##\n".
func decoderChunked(d *Decoder) ([]byte, bool, error) {
	for {
		if d.chunkDataLeft > 0 {
			n := uint64(len(d.buf))
			if n == 0 {
				return nil, false, nil
			}
			if n > d.chunkDataLeft {
				n = d.chunkDataLeft
			}
			d.msg.Write(d.buf[:n])
			d.consume(int(n))
			d.chunkDataLeft -= n
			continue
		}

		if !d.anyChunk {
			d.skipInterMessageSpace()
		}

		if len(d.buf) > 0 && d.buf[0] != '\n' || len(d.buf) > 1 && d.buf[1] != '#' {
			return nil, false, d.fail("invalid chunk header")
		}
		if len(d.buf) < 3 {
			return nil, false, nil
		}

		if d.buf[2] == '#' {
			if len(d.buf) < 4 {
				return nil, false, nil
			}
			if d.buf[3] != '\n' {
				return nil, false, d.fail("invalid end-of-chunks marker")
			}
			if !d.anyChunk {
				return nil, false, d.fail("end-of-chunks marker without chunk data")
			}
			d.consume(4)
			token := append([]byte(nil), bytes.TrimSpace(d.msg.Bytes())...)
			d.msg.Reset()
			d.anyChunk = false
			if len(token) > 0 {
				return token, true, nil
			}
			continue
		}

		size, complete, err := d.chunkSize()
		if err != nil || !complete {
			return nil, false, err
		}
		d.chunkDataLeft = size
		d.anyChunk = true
	}
}

// chunkSize parses the size field of a chunk header at the head of the buffer,
// consuming the header when it is complete.
func (d *Decoder) chunkSize() (size uint64, complete bool, err error) {
	field := d.buf[2:]
	end := bytes.IndexByte(field, '\n')
	if end >= 0 {
		field = field[:end]
	}

	if len(field) > rfc6242maximumAllowedChunkSizeLength {
		return 0, false, d.fail("no valid chunk-size detected")
	}
	for i, c := range field {
		if c < '0' || c > '9' || i == 0 && c == '0' {
			return 0, false, d.fail("invalid chunk header")
		}
		size = size*10 + uint64(c-'0')
	}
	if end < 0 {
		return 0, false, nil
	}
	if len(field) == 0 {
		return 0, false, d.fail("invalid chunk header")
	}
	if size > rfc6242maximumAllowedChunkSize {
		return 0, false, d.fail("chunk size larger than maximum (%d)", rfc6242maximumAllowedChunkSize)
	}

	d.consume(2 + end + 1)
	return size, true, nil
}

// skipInterMessageSpace discards whitespace some servers emit between messages,
// stopping at the "\n#" that starts a chunk header.
func (d *Decoder) skipInterMessageSpace() {
	n := 0
	for n < len(d.buf) && isSpace(d.buf[n]) {
		if d.buf[n] == '\n' && (n+1 == len(d.buf) || d.buf[n+1] == '#') {
			break
		}
		n++
	}
	if n > 0 {
		d.consume(n)
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

var (
	tokenEOM         = []byte("]]>]]>")
	tokenEndOfChunks = []byte("\n##\n")
)

const (
	// RFC6242 section 4.2 defines the "maximum allowed chunk-size".
	rfc6242maximumAllowedChunkSize = 4294967295
	// the length of `rfc6242maximumAllowedChunkSize` in bytes on the wire.
	rfc6242maximumAllowedChunkSizeLength = 10
)
