package store

import "github.com/vmihailenco/msgpack/v5"

// indexEntry is the value stored under each nonce key in the record
// index: the record's descriptive fields plus every segment that lives
// in memory. Journal payloads stay in their own file under the journal
// directory and are referenced by PayloadLoc instead of being inlined.
type indexEntry struct {
	Kind       uint8  `msgpack:"kind"`
	Source     string `msgpack:"source"`
	UUID       string `msgpack:"uuid"`
	CommitTS   int64  `msgpack:"commit_ts"`
	OnDisk     bool   `msgpack:"on_disk"`
	PayloadLoc string `msgpack:"payload_loc,omitempty"`
	Payload    []byte `msgpack:"payload,omitempty"`
	AppMeta    []byte `msgpack:"app_meta,omitempty"`
	SysMeta    []byte `msgpack:"sys_meta,omitempty"`
}

func (e indexEntry) encode() []byte {
	b, err := msgpack.Marshal(e)
	if err != nil {
		// Marshaling a fixed, concrete struct with only primitive
		// fields cannot fail.
		panic(err)
	}
	return b
}

func decodeIndexEntry(data []byte) (indexEntry, error) {
	var e indexEntry
	err := msgpack.Unmarshal(data, &e)
	return e, err
}
