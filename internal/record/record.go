// Package record defines the in-memory shape of an ingested record as it
// moves from the wire to the store.
package record

import (
	"os"

	"github.com/google/uuid"
)

// Kind identifies which of the three record types a connection is sending.
type Kind uint8

const (
	KindJournal Kind = iota + 1
	KindAudit
	KindLog
)

func (k Kind) String() string {
	switch k {
	case KindJournal:
		return "journal"
	case KindAudit:
		return "audit"
	case KindLog:
		return "log"
	default:
		return "unknown"
	}
}

// Segment holds one payload, either buffered in memory or backed by an
// open file on disk. Exactly one of Payload or (Path, File) is populated.
type Segment struct {
	Length  uint64
	Payload []byte
	OnDisk  bool
	Path    string
	File    *os.File
}

// Close releases the underlying file, if any. Safe to call on an
// in-memory segment.
func (s *Segment) Close() error {
	if s == nil || s.File == nil {
		return nil
	}
	err := s.File.Close()
	s.File = nil
	return err
}

// Record is the full assembled unit handed to the store gateway.
type Record struct {
	Kind    Kind
	Source  string
	UUID    uuid.UUID
	Payload *Segment
	AppMeta *Segment
	SysMeta *Segment
	Nonce   string
}

// New creates an empty record of the given kind with a fresh UUID.
func New(kind Kind) *Record {
	return &Record{
		Kind:   kind,
		Source: "localhost",
		UUID:   uuid.New(),
	}
}

// Destroy releases any on-disk payload file still owned by r. It is a
// best-effort cleanup for the error path; once InsertRecord succeeds the
// store owns the file and Destroy is a no-op on it.
func Destroy(r *Record) {
	if r == nil {
		return
	}
	_ = r.Payload.Close()
	if r.Nonce != "" {
		// Committed: the payload file now belongs to the store.
		return
	}
	if r.Payload != nil && r.Payload.OnDisk && r.Payload.Path != "" {
		_ = os.Remove(r.Payload.Path)
	}
}
