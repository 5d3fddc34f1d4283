package handler

import (
	"fmt"

	"jalocald/internal/framing"
	"jalocald/internal/record"
)

// Journal handles a journal record: its payload always streams to an
// on-disk file named after the record's freshly generated UUID. The
// sequence mirrors the reference local-store journal handler: allocate
// the payload file, stream the payload to it, read the first BREAK,
// read the optional application metadata, read the second BREAK,
// assemble the record, and hand it to the commit tail. When manifest
// digests are enabled the commit tail re-reads the payload from disk,
// so the digest in the system metadata always describes the bytes that
// actually landed in the file.
type Journal struct{}

func (Journal) Handle(ctx *Context, h framing.Header) error {
	r := record.New(record.KindJournal)

	path, f, err := ctx.Store.CreateFile(r.UUID)
	if err != nil {
		return err
	}
	r.Payload = ctx.Store.CreateSegment()
	r.Payload.Length = h.DataLen
	r.Payload.OnDisk = true
	r.Payload.Path = path
	r.Payload.File = f

	buf := make([]byte, readChunk)
	remaining := h.DataLen
	for remaining > 0 {
		want := remaining
		if want > readChunk {
			want = readChunk
		}
		n, rerr := ctx.Reader.RecvBytes(buf[:want])
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				record.Destroy(r)
				return fmt.Errorf("write journal payload: %w", werr)
			}
			remaining -= uint64(n)
		}
		if rerr != nil {
			record.Destroy(r)
			return rerr
		}
	}

	if err := ctx.Reader.RecvBreak(); err != nil {
		record.Destroy(r)
		return err
	}

	var appMeta []byte
	if h.MetaLen > 0 {
		appMeta, err = ctx.Reader.RecvAppMeta(h.MetaLen)
		if err != nil {
			record.Destroy(r)
			return err
		}
	}

	if err := ctx.Reader.RecvBreak(); err != nil {
		record.Destroy(r)
		return err
	}

	if h.MetaLen > 0 {
		r.AppMeta = ctx.Store.CreateSegment()
		r.AppMeta.Length = h.MetaLen
		r.AppMeta.Payload = appMeta
	}

	if err := commitTail(ctx, r); err != nil {
		record.Destroy(r)
		return err
	}
	return nil
}
