package digest

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestBufferMatchesStreaming(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")

	want, err := Buffer(SHA256, data)
	if err != nil {
		t.Fatalf("Buffer: %v", err)
	}

	d := New(SHA256)
	if err := d.Update(data[:10]); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := d.Update(data[10:]); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got := d.Final()

	if !bytes.Equal(want, got) {
		t.Fatalf("streaming digest %x != buffer digest %x", got, want)
	}
}

func TestFDMatchesBuffer(t *testing.T) {
	data := bytes.Repeat([]byte("payload-chunk-"), 2000) // exceeds chunkSize

	path := filepath.Join(t.TempDir(), "payload")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()

	// Move the offset away from zero to confirm FD seeks back to start.
	if _, err := f.Seek(100, 0); err != nil {
		t.Fatalf("Seek: %v", err)
	}

	want, err := Buffer(SHA256, data)
	if err != nil {
		t.Fatalf("Buffer: %v", err)
	}

	got, err := FD(SHA256, f)
	if err != nil {
		t.Fatalf("FD: %v", err)
	}

	if !bytes.Equal(want, got) {
		t.Fatalf("FD digest %x != buffer digest %x", got, want)
	}
}

func TestFDOnClosedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload")
	if err := os.WriteFile(path, []byte("data"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	f.Close()

	if _, err := FD(SHA256, f); err == nil {
		t.Fatal("expected error digesting a closed file")
	}
}
