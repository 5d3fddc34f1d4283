// Package sysmeta builds the system-metadata envelope that accompanies
// every record: a deterministic, serialized description of the record's
// kind, source, identity, optional digests, and optional signature.
package sysmeta

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"jalocald/internal/digest"
	"jalocald/internal/record"
)

// DigestInfo pairs a computed digest with the algorithm URI used to
// produce it.
type DigestInfo struct {
	Bytes []byte
	URI   string
}

// Input carries everything Build needs to assemble one envelope.
type Input struct {
	Record        *record.Record
	SigningKey    *rsa.PrivateKey // nil disables signing
	PayloadDigest *DigestInfo     // nil when manifest digests are disabled
	AppMetaDigest *DigestInfo     // nil when absent or disabled
	Timestamp     time.Time
}

type envelope struct {
	Kind             uint8  `msgpack:"kind"`
	Source           string `msgpack:"source"`
	UUID             string `msgpack:"uuid"`
	Timestamp        int64  `msgpack:"ts"`
	PayloadDigest    []byte `msgpack:"payload_digest,omitempty"`
	PayloadDigestURI string `msgpack:"payload_digest_uri,omitempty"`
	AppMetaDigest    []byte `msgpack:"app_meta_digest,omitempty"`
	AppMetaDigestURI string `msgpack:"app_meta_digest_uri,omitempty"`
	Signature        []byte `msgpack:"signature,omitempty"`
}

// Build serializes the envelope described by in. When in.SigningKey is
// non-nil, the envelope is serialized once to compute a detached
// signature over its bytes, then re-serialized with that signature
// attached, so verifiers can recompute the signed form deterministically
// by zeroing the Signature field and comparing.
func Build(in Input) ([]byte, error) {
	env := envelope{
		Kind:      uint8(in.Record.Kind),
		Source:    in.Record.Source,
		UUID:      in.Record.UUID.String(),
		Timestamp: in.Timestamp.UTC().Unix(),
	}
	if in.PayloadDigest != nil {
		env.PayloadDigest = in.PayloadDigest.Bytes
		env.PayloadDigestURI = in.PayloadDigest.URI
	}
	if in.AppMetaDigest != nil {
		env.AppMetaDigest = in.AppMetaDigest.Bytes
		env.AppMetaDigestURI = in.AppMetaDigest.URI
	}

	if in.SigningKey == nil {
		return msgpack.Marshal(env)
	}

	unsigned, err := msgpack.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("sysmeta: marshal for signing: %w", err)
	}
	digestSum := sha256.Sum256(unsigned)
	sig, err := rsa.SignPKCS1v15(rand.Reader, in.SigningKey, crypto.SHA256, digestSum[:])
	if err != nil {
		return nil, fmt.Errorf("sysmeta: sign: %w", err)
	}
	env.Signature = sig

	return msgpack.Marshal(env)
}

// PayloadDigestInfo computes a DigestInfo for r's payload segment,
// streaming from disk when the payload lives on disk.
func PayloadDigestInfo(r *record.Record) (*DigestInfo, error) {
	if r.Payload == nil {
		return nil, nil
	}
	var sum []byte
	var err error
	if r.Payload.OnDisk {
		sum, err = digest.FD(digest.SHA256, r.Payload.File)
	} else {
		sum, err = digest.Buffer(digest.SHA256, r.Payload.Payload)
	}
	if err != nil {
		return nil, err
	}
	return &DigestInfo{Bytes: sum, URI: digest.SHA256.URI}, nil
}

// AppMetaDigestInfo computes a DigestInfo for r's in-memory app-meta
// segment, or nil if there is none.
func AppMetaDigestInfo(r *record.Record) (*DigestInfo, error) {
	if r.AppMeta == nil {
		return nil, nil
	}
	sum, err := digest.Buffer(digest.SHA256, r.AppMeta.Payload)
	if err != nil {
		return nil, err
	}
	return &DigestInfo{Bytes: sum, URI: digest.SHA256.URI}, nil
}
