package framing

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"

	"jalocald/internal/record"
)

func encodeHeader(kind byte, dataLen, metaLen uint64) []byte {
	buf := make([]byte, 17)
	buf[0] = kind
	binary.BigEndian.PutUint64(buf[1:9], dataLen)
	binary.BigEndian.PutUint64(buf[9:17], metaLen)
	return buf
}

// feed writes data to the client end of a pipe from a goroutine and
// returns the server end for the Reader under test.
func feed(t *testing.T, data []byte) net.Conn {
	t.Helper()
	server, client := net.Pipe()
	go func() {
		_, _ = client.Write(data)
		_ = client.Close()
	}()
	t.Cleanup(func() { _ = server.Close() })
	return server
}

func TestRecvHeaderDecodesKindAndLengths(t *testing.T) {
	r := NewReader(feed(t, encodeHeader(byte(record.KindJournal), 8192, 64)))

	h, err := r.RecvHeader()
	if err != nil {
		t.Fatalf("RecvHeader: %v", err)
	}
	if h.Kind != record.KindJournal {
		t.Errorf("Kind = %v, want %v", h.Kind, record.KindJournal)
	}
	if h.DataLen != 8192 || h.MetaLen != 64 {
		t.Errorf("lengths = (%d, %d), want (8192, 64)", h.DataLen, h.MetaLen)
	}
}

func TestRecvHeaderRejectsUnknownKind(t *testing.T) {
	r := NewReader(feed(t, encodeHeader(0x7f, 0, 0)))

	if _, err := r.RecvHeader(); !errors.Is(err, ErrParse) {
		t.Fatalf("RecvHeader: got %v, want ErrParse", err)
	}
}

func TestRecvHeaderCleanEOFIsNotParseError(t *testing.T) {
	r := NewReader(feed(t, nil))

	_, err := r.RecvHeader()
	if !errors.Is(err, io.EOF) {
		t.Fatalf("RecvHeader on closed connection: got %v, want io.EOF", err)
	}
	if errors.Is(err, ErrParse) {
		t.Fatal("a clean close at a record boundary must not read as a parse error")
	}
}

func TestRecvHeaderTruncatedIsParseError(t *testing.T) {
	r := NewReader(feed(t, encodeHeader(byte(record.KindLog), 1, 0)[:5]))

	if _, err := r.RecvHeader(); !errors.Is(err, ErrParse) {
		t.Fatalf("RecvHeader on truncated header: got %v, want ErrParse", err)
	}
}

func TestRecvBreakMatches(t *testing.T) {
	r := NewReader(feed(t, Break))

	if err := r.RecvBreak(); err != nil {
		t.Fatalf("RecvBreak: %v", err)
	}
}

func TestRecvBreakMismatch(t *testing.T) {
	r := NewReader(feed(t, []byte("BREAD")))

	if err := r.RecvBreak(); !errors.Is(err, ErrParse) {
		t.Fatalf("RecvBreak: got %v, want ErrParse", err)
	}
}

func TestRecvAppMetaReadsExactly(t *testing.T) {
	meta := []byte("application metadata")
	r := NewReader(feed(t, meta))

	got, err := r.RecvAppMeta(uint64(len(meta)))
	if err != nil {
		t.Fatalf("RecvAppMeta: %v", err)
	}
	if !bytes.Equal(got, meta) {
		t.Fatalf("RecvAppMeta = %q, want %q", got, meta)
	}
}

func TestRecvAppMetaShortIsParseError(t *testing.T) {
	r := NewReader(feed(t, []byte("half")))

	if _, err := r.RecvAppMeta(100); !errors.Is(err, ErrParse) {
		t.Fatalf("RecvAppMeta: got %v, want ErrParse", err)
	}
}

func TestRecvBytesShortReadIsNotAnError(t *testing.T) {
	r := NewReader(feed(t, []byte("abc")))

	buf := make([]byte, 10)
	n, err := r.RecvBytes(buf)
	if err != nil {
		t.Fatalf("RecvBytes: %v", err)
	}
	if n != 3 || !bytes.Equal(buf[:n], []byte("abc")) {
		t.Fatalf("RecvBytes read %d bytes (%q), want 3 (\"abc\")", n, buf[:n])
	}
}
