// Package framing reads the fixed wire protocol each connection speaks:
// a header, a payload of declared length, a BREAK delimiter, an optional
// application-metadata segment, and a second BREAK. Any deviation from
// this exact order is a protocol error and the connection must be
// closed.
package framing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"

	"jalocald/internal/record"
)

// Break is the literal delimiter sent between the payload and the
// optional application-metadata segment, and again after it.
var Break = []byte("BREAK")

// ErrParse indicates the peer violated the wire protocol: a malformed
// header, a BREAK that didn't match, or a connection that closed mid
// segment.
var ErrParse = errors.New("framing: parse error")

// Header is the fixed-size preamble sent at the start of every record.
type Header struct {
	Kind    record.Kind
	DataLen uint64
	MetaLen uint64
}

const headerSize = 1 + 8 + 8

// Reader reads framed records from conn, one at a time.
type Reader struct {
	conn net.Conn
}

// NewReader wraps conn for framed reads.
func NewReader(conn net.Conn) *Reader {
	return &Reader{conn: conn}
}

// RecvHeader reads and decodes the fixed header that precedes a record.
// A connection that closes cleanly at a record boundary returns io.EOF
// unwrapped, so callers can tell "peer is done" from "peer sent garbage".
func (r *Reader) RecvHeader() (Header, error) {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r.conn, buf); err != nil {
		if err == io.EOF {
			return Header{}, io.EOF
		}
		return Header{}, fmt.Errorf("%w: header: %v", ErrParse, err)
	}

	kind := record.Kind(buf[0])
	switch kind {
	case record.KindJournal, record.KindAudit, record.KindLog:
	default:
		return Header{}, fmt.Errorf("%w: unknown record kind %d", ErrParse, buf[0])
	}

	return Header{
		Kind:    kind,
		DataLen: binary.BigEndian.Uint64(buf[1:9]),
		MetaLen: binary.BigEndian.Uint64(buf[9:17]),
	}, nil
}

// RecvBytes reads into buf, returning whatever the peer has sent so far
// (a short read is not an error by itself — callers loop until their
// declared length is consumed).
func (r *Reader) RecvBytes(buf []byte) (int, error) {
	n, err := r.conn.Read(buf)
	if err != nil {
		return n, fmt.Errorf("%w: payload: %v", ErrParse, err)
	}
	return n, nil
}

// RecvBreak reads exactly len(Break) bytes and confirms they match the
// BREAK delimiter.
func (r *Reader) RecvBreak() error {
	buf := make([]byte, len(Break))
	if _, err := io.ReadFull(r.conn, buf); err != nil {
		return fmt.Errorf("%w: BREAK: %v", ErrParse, err)
	}
	for i, b := range buf {
		if b != Break[i] {
			return fmt.Errorf("%w: expected BREAK, got %q", ErrParse, buf)
		}
	}
	return nil
}

// RecvAppMeta reads exactly length bytes of application metadata into a
// freshly allocated buffer.
func (r *Reader) RecvAppMeta(length uint64) ([]byte, error) {
	buf := make([]byte, length)
	if _, err := io.ReadFull(r.conn, buf); err != nil {
		return nil, fmt.Errorf("%w: app-meta: %v", ErrParse, err)
	}
	return buf, nil
}
