package wire

import (
	"github.com/unkn0wn-root/clustercache/codec"
)

// chainCodec/keysCodec use deterministic CBOR encoding so the same
// Chain or key set always serializes to the same bytes.
var (
	chainCodec = codec.MustCBOR[[][]byte](true)
	keysCodec  = codec.MustCBOR[[]uint64](true)
)

// encodeChain serializes a Chain's links as a CBOR array of byte
// strings.
func encodeChain(links [][]byte) ([]byte, error) {
	return chainCodec.Encode(links)
}

// decodeChain is the inverse of encodeChain.
func decodeChain(b []byte) ([][]byte, error) {
	if len(b) == 0 {
		return nil, nil
	}
	return chainCodec.Decode(b)
}

// encodeKeys serializes a []Key as a CBOR array of unsigned integers,
// used to carry ReconnectMessage.InvalidationsInProgress.
func encodeKeys(keys []uint64) ([]byte, error) {
	return keysCodec.Encode(keys)
}

func decodeKeys(b []byte) ([]uint64, error) {
	if len(b) == 0 {
		return nil, nil
	}
	return keysCodec.Decode(b)
}
