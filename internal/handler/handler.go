// Package handler implements the per-kind record handlers: the
// orchestration that reads a framed record off the wire, digests and
// stores its payload, builds its system metadata, and commits it.
package handler

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"jalocald/internal/framing"
	"jalocald/internal/logging"
	"jalocald/internal/record"
	"jalocald/internal/store"
	"jalocald/internal/sysmeta"
)

const readChunk = 8192

// Context carries the per-connection dependencies every handler needs.
// One Context is constructed per accepted connection and reused for
// every record handled on that connection.
type Context struct {
	Reader       *framing.Reader
	Store        *store.Gateway
	SigningKey   *rsa.PrivateKey // nil when sys-meta signing is disabled
	ManifestMeta bool
	Logger       *slog.Logger
}

// Handler handles one record body, given its header has already been
// read by the caller.
type Handler interface {
	Handle(ctx *Context, h framing.Header) error
}

// Dispatch picks the handler for h.Kind.
func Dispatch(ctx *Context, h framing.Header) error {
	var hnd Handler
	switch h.Kind {
	case record.KindJournal:
		hnd = Journal{}
	case record.KindAudit:
		hnd = Audit{}
	case record.KindLog:
		hnd = Log{}
	default:
		return fmt.Errorf("%w: unhandled record kind %d", framing.ErrParse, h.Kind)
	}
	return hnd.Handle(ctx, h)
}

// commitTail runs the part of the pipeline common to all three record
// kinds once the payload and optional app-meta have been collected:
// compute manifest digests if enabled, build system metadata, and
// insert the record into the store.
func commitTail(ctx *Context, r *record.Record) error {
	logger := logging.Default(ctx.Logger)

	var payloadInfo, appMetaInfo *sysmeta.DigestInfo
	if ctx.ManifestMeta {
		var err error
		payloadInfo, err = sysmeta.PayloadDigestInfo(r)
		if err != nil {
			return fmt.Errorf("digest payload: %w", err)
		}
		appMetaInfo, err = sysmeta.AppMetaDigestInfo(r)
		if err != nil {
			return fmt.Errorf("digest app-meta: %w", err)
		}
	}

	payload, err := sysmeta.Build(sysmeta.Input{
		Record:        r,
		SigningKey:    ctx.SigningKey,
		PayloadDigest: payloadInfo,
		AppMetaDigest: appMetaInfo,
		Timestamp:     time.Now(),
	})
	if err != nil {
		return fmt.Errorf("build system metadata: %w", err)
	}
	r.SysMeta = ctx.Store.CreateSegment()
	r.SysMeta.Length = uint64(len(payload))
	r.SysMeta.Payload = payload

	nonce, err := ctx.Store.InsertRecord(r, true)
	if err != nil {
		if errors.Is(err, store.ErrReject) {
			logger.Warn("record rejected, too large", "kind", r.Kind)
		} else {
			logger.Error("internal error inserting record", "kind", r.Kind, "error", err)
		}
		return err
	}

	logger.Info("record committed", "kind", r.Kind, "uuid", r.UUID, "nonce", nonce)
	return nil
}
