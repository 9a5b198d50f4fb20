// Package captureproto implements the wire protocol spoken between the
// server and its capture helpers: a length-prefixed frame carrying either
// a legacy protobuf-encoded command envelope (v2) or a binary header plus
// MessagePack body (v3).
package captureproto

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxFrameLength guards against a corrupt or hostile length prefix turning
// into an unbounded allocation.
const maxFrameLength = 64 * 1024 * 1024

// ReadFrame reads one `u32 length || body` frame from r and returns body.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameLength {
		return nil, fmt.Errorf("captureproto: frame length %d exceeds maximum %d", n, maxFrameLength)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("captureproto: reading %d-byte frame body: %w", n, err)
	}
	return body, nil
}

// WriteFrame writes body to w prefixed with its big-endian u32 length.
func WriteFrame(w io.Writer, body []byte) error {
	if len(body) > maxFrameLength {
		return fmt.Errorf("captureproto: refusing to write %d-byte frame over maximum %d", len(body), maxFrameLength)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}
