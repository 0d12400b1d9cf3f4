package codec

import (
	"io"

	"github.com/beevik/etree"

	"github.com/damianoneill/ncclient/netconf/common/codec/rfc6242"
)

// Default size of the buffer used for reads from the transport.
const defaultReadBufferSize = 32 * 1024

// Decoder reads complete netconf messages from a transport, using an
// RFC6242-compliant decoder for message framing.
type Decoder struct {
	r         io.Reader
	ncDecoder *rfc6242.Decoder
	buf       []byte
	readErr   error
}

// Encoder writes netconf messages to a transport, using an RFC6242-compliant
// encoder for message framing.
type Encoder struct {
	ncEncoder *rfc6242.Encoder
}

// NewDecoder delivers a new decoder.
func NewDecoder(t io.Reader, opts ...rfc6242.DecoderOption) *Decoder {
	return &Decoder{r: t, ncDecoder: rfc6242.NewDecoder(opts...), buf: make([]byte, defaultReadBufferSize)}
}

// NewEncoder delivers a new encoder.
func NewEncoder(t io.Writer, opts ...rfc6242.EncoderOption) *Encoder {
	return &Encoder{ncEncoder: rfc6242.NewEncoder(t, opts...)}
}

// ReadMessage blocks until a complete message has been read, and delivers it.
// Input read beyond the end of the message is retained for the next call.
func (d *Decoder) ReadMessage() ([]byte, error) {
	for {
		msg, ok, err := d.ncDecoder.Next()
		if err != nil || ok {
			return msg, err
		}
		if d.readErr != nil {
			if d.readErr == io.EOF && d.ncDecoder.Buffered() > 0 {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, d.readErr
		}

		var n int
		n, d.readErr = d.r.Read(d.buf)
		if n > 0 {
			if _, err = d.ncDecoder.Write(d.buf[:n]); err != nil {
				return nil, err
			}
		}
	}
}

// ReadDocument reads the next message and parses it.
func (d *Decoder) ReadDocument() (*etree.Document, []byte, error) {
	msg, err := d.ReadMessage()
	if err != nil {
		return nil, nil, err
	}
	doc := etree.NewDocument()
	if err = doc.ReadFromBytes(msg); err != nil {
		return nil, msg, err
	}
	return doc, msg, nil
}

// Mode delivers the framing mode applied to input.
func (d *Decoder) Mode() rfc6242.Mode {
	return d.ncDecoder.Mode()
}

// Encode serializes and frames doc as a single message.
func (e *Encoder) Encode(doc *etree.Document) error {
	b, err := doc.WriteToBytes()
	if err != nil {
		return err
	}
	return e.EncodeBytes(b)
}

// EncodeBytes frames an already serialized document as a single message.
func (e *Encoder) EncodeBytes(b []byte) error {
	return e.ncEncoder.WriteMessage(b)
}

// Mode delivers the framing mode applied to output.
func (e *Encoder) Mode() rfc6242.Mode {
	return e.ncEncoder.Mode()
}

// EnableChunkedFraming enables chunked framing on the specified decoder and encoder.
func EnableChunkedFraming(d *Decoder, e *Encoder) {
	var (
		dec *rfc6242.Decoder
		enc *rfc6242.Encoder
	)
	if d != nil {
		dec = d.ncDecoder
	}
	if e != nil {
		enc = e.ncEncoder
	}
	rfc6242.SetChunkedFraming(dec, enc)
}
