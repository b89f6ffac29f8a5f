package wire

import (
	"testing"

	cc "github.com/unkn0wn-root/clustercache"
)

func TestRequestRoundTrip(t *testing.T) {
	req := cc.Request{
		Op:             cc.OpReplaceAtHead,
		Key:            42,
		Payload:        []byte("payload"),
		Expect:         cc.NewChain([]byte("a"), []byte("b")),
		Update:         cc.NewChain([]byte("a"), []byte("b"), []byte("c")),
		InvalidationID: 7,
	}

	b, err := EncodeRequest(req)
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	got, err := DecodeRequest(b)
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}

	if got.Op != req.Op || got.Key != req.Key || got.InvalidationID != req.InvalidationID {
		t.Fatalf("scalar fields mismatch: %+v", got)
	}
	if string(got.Payload) != string(req.Payload) {
		t.Fatalf("payload mismatch: %q", got.Payload)
	}
	if !got.Expect.Equal(req.Expect) {
		t.Fatalf("expect chain mismatch: %v", got.Expect.Links())
	}
	if !got.Update.Equal(req.Update) {
		t.Fatalf("update chain mismatch: %v", got.Update.Links())
	}
}

func TestResponseRoundTrip(t *testing.T) {
	resp := cc.Response{
		Kind:           cc.KindGetResponse,
		Chain:          cc.NewChain([]byte("x"), []byte("y")),
		Key:            9,
		InvalidationID: 3,
	}

	b, err := EncodeResponse(resp)
	if err != nil {
		t.Fatalf("EncodeResponse: %v", err)
	}
	got, err := DecodeResponse(b)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if got.Kind != resp.Kind || got.Key != resp.Key || got.InvalidationID != resp.InvalidationID {
		t.Fatalf("scalar fields mismatch: %+v", got)
	}
	if !got.Chain.Equal(resp.Chain) {
		t.Fatalf("chain mismatch: %v", got.Chain.Links())
	}
}

func TestReconnectMessageRoundTrip(t *testing.T) {
	var msg cc.ReconnectMessage
	msg.AddInvalidationsInProgress([]cc.Key{1, 2, 3})
	msg.SetClearInProgress()

	b, err := EncodeReconnectMessage(msg)
	if err != nil {
		t.Fatalf("EncodeReconnectMessage: %v", err)
	}
	got, err := DecodeReconnectMessage(b)
	if err != nil {
		t.Fatalf("DecodeReconnectMessage: %v", err)
	}
	if !got.ClearInProgress {
		t.Fatalf("expected ClearInProgress true")
	}
	if len(got.InvalidationsInProgress) != 3 {
		t.Fatalf("expected 3 keys, got %v", got.InvalidationsInProgress)
	}
}

func TestDecodeRejectsCorruptFrames(t *testing.T) {
	if _, err := DecodeRequest([]byte("not a frame")); err != ErrCorrupt {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	if _, err := DecodeResponse(nil); err != ErrCorrupt {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	if _, err := DecodeReconnectMessage([]byte{1, 2, 3}); err != ErrCorrupt {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}
