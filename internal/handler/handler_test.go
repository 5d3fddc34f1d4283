package handler

import (
	"bytes"
	"encoding/binary"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"jalocald/internal/framing"
	"jalocald/internal/record"
	"jalocald/internal/store"
)

func openTestStore(t *testing.T) (*store.Gateway, string) {
	t.Helper()
	root := t.TempDir()
	g, err := store.Open(store.Config{Root: root})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = g.Close() })
	return g, root
}

func writeHeader(t *testing.T, conn net.Conn, kind record.Kind, dataLen, metaLen uint64) {
	t.Helper()
	buf := make([]byte, 17)
	buf[0] = byte(kind)
	binary.BigEndian.PutUint64(buf[1:9], dataLen)
	binary.BigEndian.PutUint64(buf[9:17], metaLen)
	if _, err := conn.Write(buf); err != nil {
		t.Fatalf("write header: %v", err)
	}
}

func dispatchAsync(ctx *Context) chan error {
	done := make(chan error, 1)
	go func() {
		h, err := ctx.Reader.RecvHeader()
		if err != nil {
			done <- err
			return
		}
		done <- Dispatch(ctx, h)
	}()
	return done
}

func waitDone(t *testing.T, done chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handler")
		return nil
	}
}

// journalFiles lists the payload files committed under the store root.
func journalFiles(t *testing.T, root string) []string {
	t.Helper()
	paths, err := filepath.Glob(filepath.Join(root, "journal", "*"))
	if err != nil {
		t.Fatalf("glob journal dir: %v", err)
	}
	return paths
}

// TestAuditNoMetaNoSigning covers an audit record with no application
// metadata and no signing key configured.
func TestAuditNoMetaNoSigning(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	g, _ := openTestStore(t)
	ctx := &Context{
		Reader: framing.NewReader(server),
		Store:  g,
	}

	payload := []byte("hello world")
	done := dispatchAsync(ctx)

	writeHeader(t, client, record.KindAudit, uint64(len(payload)), 0)
	if _, err := client.Write(payload); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	if _, err := client.Write(framing.Break); err != nil {
		t.Fatalf("write break: %v", err)
	}
	if _, err := client.Write(framing.Break); err != nil {
		t.Fatalf("write second break: %v", err)
	}

	if err := waitDone(t, done); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
}

// TestJournalWithAppMetaAndManifest covers a journal record that
// includes application metadata and has manifest digests enabled. The
// payload file must contain exactly the payload bytes sent.
func TestJournalWithAppMetaAndManifest(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	g, root := openTestStore(t)
	ctx := &Context{
		Reader:       framing.NewReader(server),
		Store:        g,
		ManifestMeta: true,
	}

	payload := bytes.Repeat([]byte("j"), 8192)
	appMeta := []byte(`{"producer":"test"}`)

	done := dispatchAsync(ctx)

	writeHeader(t, client, record.KindJournal, uint64(len(payload)), uint64(len(appMeta)))
	if _, err := client.Write(payload); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	if _, err := client.Write(framing.Break); err != nil {
		t.Fatalf("write break: %v", err)
	}
	if _, err := client.Write(appMeta); err != nil {
		t.Fatalf("write app-meta: %v", err)
	}
	if _, err := client.Write(framing.Break); err != nil {
		t.Fatalf("write second break: %v", err)
	}

	if err := waitDone(t, done); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	files := journalFiles(t, root)
	if len(files) != 1 {
		t.Fatalf("expected exactly one journal payload file, got %d", len(files))
	}
	got, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatalf("read payload file: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload file holds %d bytes, want the %d payload bytes verbatim", len(got), len(payload))
	}
}

// TestEarlyEOF covers a connection that closes mid-payload: the record
// must not be committed and no payload file may remain.
func TestEarlyEOF(t *testing.T) {
	server, client := net.Pipe()

	g, root := openTestStore(t)
	ctx := &Context{
		Reader: framing.NewReader(server),
		Store:  g,
	}

	done := dispatchAsync(ctx)

	writeHeader(t, client, record.KindJournal, 1024, 0)
	if _, err := client.Write([]byte("short")); err != nil {
		t.Fatalf("write partial payload: %v", err)
	}
	client.Close()

	if err := waitDone(t, done); err == nil {
		t.Fatal("expected an error from an early EOF")
	}
	if files := journalFiles(t, root); len(files) != 0 {
		t.Fatalf("expected partial payload file to be removed, found %v", files)
	}
}

// TestMalformedBreak covers a BREAK delimiter that doesn't match.
func TestMalformedBreak(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	g, _ := openTestStore(t)
	ctx := &Context{
		Reader: framing.NewReader(server),
		Store:  g,
	}

	payload := []byte("log payload")
	done := dispatchAsync(ctx)

	writeHeader(t, client, record.KindLog, uint64(len(payload)), 0)
	if _, err := client.Write(payload); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	// Same length as BREAK so the write drains fully through the pipe.
	if _, err := client.Write([]byte("XXXXX")); err != nil {
		t.Fatalf("write bad break: %v", err)
	}

	if err := waitDone(t, done); err == nil {
		t.Fatal("expected a parse error for a malformed BREAK")
	}
}
