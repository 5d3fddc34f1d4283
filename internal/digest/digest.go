// Package digest computes streaming and one-shot digests over record
// payloads. The algorithm is pluggable in shape but this daemon fixes it
// to SHA-256, matching the only digest algorithm the wire protocol names.
package digest

import (
	"crypto/sha256"
	"errors"
	"hash"
	"io"
	"os"
)

const chunkSize = 8192

// ErrFileIO wraps a read/seek failure while digesting an open file.
var ErrFileIO = errors.New("digest: file io error")

// Algorithm names a hash constructor together with the URI the system
// metadata builder records alongside it.
type Algorithm struct {
	URI string
	New func() hash.Hash
}

// SHA256 is the only algorithm this daemon's wire protocol supports.
var SHA256 = Algorithm{
	URI: "http://www.w3.org/2001/04/xmlenc#sha256",
	New: sha256.New,
}

// Digester accumulates a streaming digest across repeated Update calls,
// mirroring a handler's recv loop.
type Digester struct {
	alg Algorithm
	h   hash.Hash
}

// New starts a new streaming digest using alg.
func New(alg Algorithm) *Digester {
	return &Digester{alg: alg, h: alg.New()}
}

// Update feeds p into the running digest. Never returns an error for the
// algorithms this package exposes; the signature stays error-returning so
// callers don't need to special-case a future streaming sink.
func (d *Digester) Update(p []byte) error {
	_, err := d.h.Write(p)
	return err
}

// Final returns the accumulated digest. The Digester must not be reused
// after Final.
func (d *Digester) Final() []byte {
	return d.h.Sum(nil)
}

// Buffer computes alg's digest over data in one call.
func Buffer(alg Algorithm, data []byte) ([]byte, error) {
	d := New(alg)
	if err := d.Update(data); err != nil {
		return nil, err
	}
	return d.Final(), nil
}

// FD computes alg's digest over the full contents of f, seeking to the
// start first. f's offset is left at EOF on return.
func FD(alg Algorithm, f *os.File) ([]byte, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Join(ErrFileIO, err)
	}

	d := New(alg)
	buf := make([]byte, chunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if uerr := d.Update(buf[:n]); uerr != nil {
				return nil, uerr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Join(ErrFileIO, err)
		}
	}
	return d.Final(), nil
}
