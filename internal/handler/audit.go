package handler

import (
	"jalocald/internal/framing"
	"jalocald/internal/record"
)

// Audit handles an audit record: payload is always buffered in memory,
// never written to disk, since audit records carry no separately
// streamed content per the wire contract.
type Audit struct{}

func (Audit) Handle(ctx *Context, h framing.Header) error {
	r := record.New(record.KindAudit)

	payload, err := recvFullBuffer(ctx, h.DataLen)
	if err != nil {
		return err
	}

	if err := ctx.Reader.RecvBreak(); err != nil {
		return err
	}

	var appMeta []byte
	if h.MetaLen > 0 {
		appMeta, err = ctx.Reader.RecvAppMeta(h.MetaLen)
		if err != nil {
			return err
		}
	}

	if err := ctx.Reader.RecvBreak(); err != nil {
		return err
	}

	if h.MetaLen > 0 {
		r.AppMeta = ctx.Store.CreateSegment()
		r.AppMeta.Length = h.MetaLen
		r.AppMeta.Payload = appMeta
	}

	r.Payload = ctx.Store.CreateSegment()
	r.Payload.Length = h.DataLen
	r.Payload.Payload = payload

	return commitTail(ctx, r)
}

// recvFullBuffer reads exactly length bytes of payload in chunked
// RecvBytes calls, matching the same 8 KiB chunking the journal handler
// uses while streaming to disk.
func recvFullBuffer(ctx *Context, length uint64) ([]byte, error) {
	buf := make([]byte, length)
	var read uint64
	for read < length {
		end := read + readChunk
		if end > length {
			end = length
		}
		n, err := ctx.Reader.RecvBytes(buf[read:end])
		read += uint64(n)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}
