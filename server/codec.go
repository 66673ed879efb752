package server

import (
	"encoding/json"

	"github.com/chazu/lamarck/machine/wire"
)

// cborCodec serves application/cbor requests and responses using the
// wire package's canonical encoding.
type cborCodec struct{}

func (cborCodec) Name() string { return "cbor" }

func (cborCodec) Marshal(msg any) ([]byte, error) {
	return wire.Marshal(msg)
}

func (cborCodec) Unmarshal(data []byte, msg any) error {
	return wire.Unmarshal(data, msg)
}

// jsonCodec serves application/json requests with encoding/json. The
// bundled JSON codec only handles protobuf messages; ours are plain
// structs.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	// An empty body decodes as an empty message.
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, msg)
}
