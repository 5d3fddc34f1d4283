// Package store implements the record store gateway: the only component
// allowed to touch the on-disk journal payload files and the record
// index. Callers never need to coordinate locking among themselves; the
// gateway is internally synchronized.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"jalocald/internal/logging"
	"jalocald/internal/record"
)

const (
	lockFileName  = ".lock"
	stampFileName = "format"
)

// rootStamp marks a directory as a record-store root and pins its
// layout version. An incompatible layout change means changing this
// value, so an old root refuses to open instead of being misread.
var rootStamp = []byte("jalocald-store-1\n")

var recordsBucket = []byte("records")

// ErrReject is returned when a record exceeds the configured size limit.
var ErrReject = errors.New("store: record rejected, too large")

// ErrInternal wraps an unexpected internal failure. The caller's only
// recourse is to drop the connection; the store itself is left
// untouched thanks to bbolt's transactional commit.
var ErrInternal = errors.New("store: internal error")

// Config configures a Gateway.
type Config struct {
	// Root is the database directory. It is created if missing.
	Root string

	// MaxRecordBytes caps payload + app-meta + sys-meta length. Zero
	// means unlimited.
	MaxRecordBytes uint64

	// FileMode is applied to created files. Directories are always
	// created with mode 0o750.
	FileMode os.FileMode

	Logger *slog.Logger
}

// Gateway owns the journal payload directory and the record index.
type Gateway struct {
	cfg      Config
	logger   *slog.Logger
	lockFile *os.File
	db       *bbolt.DB
}

// Open locks cfg.Root for exclusive use by this process and opens (or
// creates) the record index. Only one Gateway may have a given Root open
// at a time; a second Open on the same root fails immediately.
func Open(cfg Config) (*Gateway, error) {
	if cfg.FileMode == 0 {
		cfg.FileMode = 0o640
	}
	logger := logging.Default(cfg.Logger).With("component", "store")

	if err := os.MkdirAll(cfg.Root, 0o750); err != nil {
		return nil, fmt.Errorf("store: create root: %w", err)
	}
	if err := os.MkdirAll(journalDir(cfg.Root), 0o750); err != nil {
		return nil, fmt.Errorf("store: create journal dir: %w", err)
	}
	if err := checkStamp(cfg.Root, cfg.FileMode); err != nil {
		return nil, err
	}

	lockPath := filepath.Join(cfg.Root, lockFileName)
	lockFile, err := os.OpenFile(filepath.Clean(lockPath), os.O_CREATE|os.O_RDWR, cfg.FileMode)
	if err != nil {
		return nil, fmt.Errorf("store: open lock file: %w", err)
	}
	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = lockFile.Close()
		return nil, fmt.Errorf("store: root %q is already in use: %w", cfg.Root, err)
	}

	dbPath := filepath.Join(cfg.Root, "index.db")
	db, err := bbolt.Open(dbPath, cfg.FileMode, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		_ = lockFile.Close()
		return nil, fmt.Errorf("store: open index: %w", err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recordsBucket)
		return err
	}); err != nil {
		_ = db.Close()
		_ = lockFile.Close()
		return nil, fmt.Errorf("store: init index: %w", err)
	}

	logger.Info("store opened", "root", cfg.Root)
	return &Gateway{cfg: cfg, logger: logger, lockFile: lockFile, db: db}, nil
}

// checkStamp validates the root's format stamp, writing one on first
// use. A stamp from a different layout version refuses to open rather
// than silently mixing layouts.
func checkStamp(root string, mode os.FileMode) error {
	path := filepath.Join(root, stampFileName)
	data, err := os.ReadFile(filepath.Clean(path))
	if os.IsNotExist(err) {
		if werr := os.WriteFile(path, rootStamp, mode); werr != nil {
			return fmt.Errorf("store: write format stamp: %w", werr)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: read format stamp: %w", err)
	}
	if !bytes.Equal(data, rootStamp) {
		return fmt.Errorf("store: root %q holds a store with an unrecognized layout (stamp %q)", root, data)
	}
	return nil
}

// Close releases the index and the directory lock.
func (g *Gateway) Close() error {
	err := g.db.Close()
	if cerr := g.lockFile.Close(); err == nil {
		err = cerr
	}
	return err
}

func journalDir(root string) string {
	return filepath.Join(root, "journal")
}

// CreateFile allocates a fresh on-disk file for a journal payload, named
// by the record's UUID, and returns its path alongside the open file.
// The file holds raw payload bytes only. The caller owns the returned
// file until it either hands the record to InsertRecord (which closes
// it) or calls record.Destroy on an abandoned record (which removes it).
func (g *Gateway) CreateFile(id uuid.UUID) (string, *os.File, error) {
	path := filepath.Join(journalDir(g.cfg.Root), id.String())

	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_EXCL|os.O_RDWR, g.cfg.FileMode)
	if err != nil {
		return "", nil, fmt.Errorf("%w: create payload file: %v", ErrInternal, err)
	}
	return path, f, nil
}

// CreateSegment returns a fresh, empty segment ready for a handler to
// populate.
func (g *Gateway) CreateSegment() *record.Segment {
	return &record.Segment{}
}

// recordTotalBytes sums the lengths the size limit is enforced over.
func recordTotalBytes(r *record.Record) uint64 {
	var total uint64
	if r.Payload != nil {
		total += r.Payload.Length
	}
	if r.AppMeta != nil {
		total += r.AppMeta.Length
	}
	if r.SysMeta != nil {
		total += r.SysMeta.Length
	}
	return total
}

// InsertRecord commits r to the store as a single atomic operation: the
// index entry — including any in-memory payload, the app-meta, and the
// sys-meta bytes — lands in one bbolt write transaction keyed by the
// assigned nonce. On success it returns the nonce and closes
// r.Payload.File (the store now owns the on-disk file, if any). On
// failure the index is left exactly as it was before the call; the
// caller is responsible for removing any partial payload file via
// record.Destroy.
//
// sync controls whether an on-disk payload is fsynced before the index
// commit. The index commit itself always fsyncs (bbolt's default);
// sync=false only skips the payload-file flush and exists for bulk test
// harnesses.
func (g *Gateway) InsertRecord(r *record.Record, sync bool) (string, error) {
	if g.cfg.MaxRecordBytes > 0 && recordTotalBytes(r) > g.cfg.MaxRecordBytes {
		return "", ErrReject
	}

	if sync && r.Payload != nil && r.Payload.OnDisk && r.Payload.File != nil {
		if err := r.Payload.File.Sync(); err != nil {
			return "", fmt.Errorf("%w: sync payload: %v", ErrInternal, err)
		}
	}

	var nonce string
	err := g.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		nonce = fmt.Sprintf("%020d", seq)

		entry := indexEntry{
			Kind:       uint8(r.Kind),
			Source:     r.Source,
			UUID:       r.UUID.String(),
			CommitTS:   time.Now().UTC().Unix(),
			OnDisk:     r.Payload != nil && r.Payload.OnDisk,
			PayloadLoc: payloadLocation(r),
		}
		if r.Payload != nil && !r.Payload.OnDisk {
			entry.Payload = r.Payload.Payload
		}
		if r.AppMeta != nil {
			entry.AppMeta = r.AppMeta.Payload
		}
		if r.SysMeta != nil {
			entry.SysMeta = r.SysMeta.Payload
		}
		return b.Put([]byte(nonce), entry.encode())
	})
	if err != nil {
		return "", fmt.Errorf("%w: commit: %v", ErrInternal, err)
	}

	if r.Payload != nil && r.Payload.OnDisk {
		_ = r.Payload.Close()
	}

	r.Nonce = nonce
	return nonce, nil
}

func payloadLocation(r *record.Record) string {
	if r.Payload == nil {
		return ""
	}
	if r.Payload.OnDisk {
		return r.Payload.Path
	}
	return ""
}
