package handler

import (
	"jalocald/internal/framing"
	"jalocald/internal/record"
)

// Log handles a log record. Identical in shape to Audit: the payload is
// always buffered in memory.
type Log struct{}

func (Log) Handle(ctx *Context, h framing.Header) error {
	r := record.New(record.KindLog)

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
