// Package wire frames clustercache's Request/Response/ReconnectMessage
// values for transports that move bytes rather than Go values (e.g.
// transport/redis). The envelope is a small fixed binary header
// (kind/op/key/invalidationID) plus a CBOR-encoded body for the
// variable-length Chain/key-set payloads.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/unkn0wn-root/clustercache"
)

const (
	version byte = 1

	msgRequest   byte = 1
	msgResponse  byte = 2
	msgReconnect byte = 3
)

var (
	// ErrCorrupt is returned when a frame fails its header/bounds checks.
	ErrCorrupt = errors.New("wire: corrupt frame")
	magic4     = [...]byte{'C', 'C', 'C', 'H'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

func writeHeader(buf *bytes.Buffer, msgType byte) {
	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(msgType)
}

func checkHeader(b []byte, want byte) error {
	if len(b) < 6 || !hasMagic(b) || b[4] != version || b[5] != want {
		return ErrCorrupt
	}
	return nil
}

func putU32(buf *bytes.Buffer, v int) {
	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(v))
	buf.Write(u4[:])
}

func readU32(b []byte, off int) (int, int, error) {
	if off+4 > len(b) {
		return 0, 0, ErrCorrupt
	}
	n := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if n < 0 || n > len(b)-off {
		return 0, 0, ErrCorrupt
	}
	return n, off, nil
}

func putU64(buf *bytes.Buffer, v uint64) {
	var u8 [8]byte
	binary.BigEndian.PutUint64(u8[:], v)
	buf.Write(u8[:])
}

func readU64(b []byte, off int) (uint64, int, error) {
	if off+8 > len(b) {
		return 0, 0, ErrCorrupt
	}
	return binary.BigEndian.Uint64(b[off : off+8]), off + 8, nil
}

func putBytes(buf *bytes.Buffer, b []byte) {
	putU32(buf, len(b))
	buf.Write(b)
}

func readBytes(b []byte, off int) ([]byte, int, error) {
	n, off, err := readU32(b, off)
	if err != nil {
		return nil, 0, err
	}
	return b[off : off+n], off + n, nil
}

// EncodeRequest serializes req for the wire.
//
//	header(6) | op(1) | key(8) | invalidationID(8) |
//	payload(len-prefixed) | expect(len-prefixed cbor) | update(len-prefixed cbor)
func EncodeRequest(req clustercache.Request) ([]byte, error) {
	expect, err := encodeChain(req.Expect.Links())
	if err != nil {
		return nil, err
	}
	update, err := encodeChain(req.Update.Links())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writeHeader(&buf, msgRequest)
	buf.WriteByte(byte(req.Op))
	putU64(&buf, req.Key)
	putU64(&buf, uint64(req.InvalidationID))
	putBytes(&buf, req.Payload)
	putBytes(&buf, expect)
	putBytes(&buf, update)
	return buf.Bytes(), nil
}

// DecodeRequest is the inverse of EncodeRequest.
func DecodeRequest(b []byte) (clustercache.Request, error) {
	if err := checkHeader(b, msgRequest); err != nil {
		return clustercache.Request{}, err
	}
	off := 6
	if off+1 > len(b) {
		return clustercache.Request{}, ErrCorrupt
	}
	op := clustercache.Op(b[off])
	off++

	key, off, err := readU64(b, off)
	if err != nil {
		return clustercache.Request{}, err
	}
	invID, off, err := readU64(b, off)
	if err != nil {
		return clustercache.Request{}, err
	}
	payload, off, err := readBytes(b, off)
	if err != nil {
		return clustercache.Request{}, err
	}
	expectRaw, off, err := readBytes(b, off)
	if err != nil {
		return clustercache.Request{}, err
	}
	updateRaw, _, err := readBytes(b, off)
	if err != nil {
		return clustercache.Request{}, err
	}

	expectLinks, err := decodeChain(expectRaw)
	if err != nil {
		return clustercache.Request{}, err
	}
	updateLinks, err := decodeChain(updateRaw)
	if err != nil {
		return clustercache.Request{}, err
	}

	return clustercache.Request{
		Op:             op,
		Key:            key,
		Payload:        payload,
		Expect:         clustercache.NewChain(expectLinks...),
		Update:         clustercache.NewChain(updateLinks...),
		InvalidationID: int64(invID),
	}, nil
}

// EncodeResponse serializes resp for the wire.
//
//	header(6) | kind(1) | key(8) | invalidationID(8) | chain(len-prefixed cbor)
func EncodeResponse(resp clustercache.Response) ([]byte, error) {
	chainBytes, err := encodeChain(resp.Chain.Links())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writeHeader(&buf, msgResponse)
	buf.WriteByte(byte(resp.Kind))
	putU64(&buf, resp.Key)
	putU64(&buf, uint64(resp.InvalidationID))
	putBytes(&buf, chainBytes)
	return buf.Bytes(), nil
}

// DecodeResponse is the inverse of EncodeResponse.
func DecodeResponse(b []byte) (clustercache.Response, error) {
	if err := checkHeader(b, msgResponse); err != nil {
		return clustercache.Response{}, err
	}
	off := 6
	if off+1 > len(b) {
		return clustercache.Response{}, ErrCorrupt
	}
	kind := clustercache.Kind(b[off])
	off++

	key, off, err := readU64(b, off)
	if err != nil {
		return clustercache.Response{}, err
	}
	invID, off, err := readU64(b, off)
	if err != nil {
		return clustercache.Response{}, err
	}
	chainRaw, _, err := readBytes(b, off)
	if err != nil {
		return clustercache.Response{}, err
	}
	links, err := decodeChain(chainRaw)
	if err != nil {
		return clustercache.Response{}, err
	}

	return clustercache.Response{
		Kind:           kind,
		Chain:          clustercache.NewChain(links...),
		Key:            key,
		InvalidationID: int64(invID),
	}, nil
}

// EncodeReconnectMessage serializes msg for the wire.
//
//	header(6) | clearInProgress(1) | keys(len-prefixed cbor)
func EncodeReconnectMessage(msg clustercache.ReconnectMessage) ([]byte, error) {
	keysBytes, err := encodeKeys(msg.InvalidationsInProgress)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writeHeader(&buf, msgReconnect)
	if msg.ClearInProgress {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	putBytes(&buf, keysBytes)
	return buf.Bytes(), nil
}

// DecodeReconnectMessage is the inverse of EncodeReconnectMessage.
func DecodeReconnectMessage(b []byte) (clustercache.ReconnectMessage, error) {
	if err := checkHeader(b, msgReconnect); err != nil {
		return clustercache.ReconnectMessage{}, err
	}
	off := 6
	if off+1 > len(b) {
		return clustercache.ReconnectMessage{}, ErrCorrupt
	}
	clearing := b[off] == 1
	off++

	keysRaw, _, err := readBytes(b, off)
	if err != nil {
		return clustercache.ReconnectMessage{}, err
	}
	keys, err := decodeKeys(keysRaw)
	if err != nil {
		return clustercache.ReconnectMessage{}, err
	}

	msg := clustercache.ReconnectMessage{}
	msg.AddInvalidationsInProgress(keys)
	if clearing {
		msg.SetClearInProgress()
	}
	return msg, nil
}
