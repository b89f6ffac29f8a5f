package clustercache

import (
	"context"
)

// CommonProxy is the stateless translator between cache operations and
// transport messages. It never blocks on its own behalf beyond the
// transport's own wait modes; the invalidation barrier lives one layer
// up, in StrongProxy.
type CommonProxy struct {
	cacheId   CacheId
	transport Transport
	log       Logger
	hooks     Hooks
}

// NewCommonProxy wires up the three inbound invalidation listeners and
// returns a proxy ready to serve get/append/getAndAppend/replaceAtHead/
// clear. invalidation is the upstream collaborator purging the local
// tier; it must not be nil.
func NewCommonProxy(cacheId CacheId, transport Transport, invalidation InvalidationListener, log Logger, hooks Hooks) *CommonProxy {
	log = coalesce[Logger](log, NopLogger{})
	hooks = coalesce[Hooks](hooks, NopHooks{})
	p := &CommonProxy{cacheId: cacheId, transport: transport, log: log, hooks: hooks}

	transport.AddResponseListener(KindServerInvalidateHash, func(r Response) {
		p.log.Debug("server requesting hash invalidation", Fields{"cache": cacheId, "key": r.Key})
		invalidation.OnInvalidateHash(r.Key)
	})

	transport.AddResponseListener(KindClientInvalidateHash, func(r Response) {
		p.log.Debug("invalidating hash for client ack", Fields{"cache": cacheId, "key": r.Key, "id": r.InvalidationID})
		invalidation.OnInvalidateHash(r.Key)

		ack := Request{Op: OpClientInvalidationAck, Key: r.Key, InvalidationID: r.InvalidationID}
		if err := transport.InvokeWaitSent(context.Background(), ack, false); err != nil {
			p.log.Error("failed to ack hash invalidation", Fields{"cache": cacheId, "key": r.Key, "id": r.InvalidationID, "err": err})
			p.hooks.PeerAckFailed(&PeerAckFailure{Kind: KindClientInvalidateHash, Key: r.Key, InvalidationID: r.InvalidationID, Err: err})
		}
	})

	transport.AddResponseListener(KindClientInvalidateAll, func(r Response) {
		p.log.Debug("invalidating all for client ack", Fields{"cache": cacheId, "id": r.InvalidationID})
		invalidation.OnInvalidateAll()

		ack := Request{Op: OpClientInvalidationAllAck, InvalidationID: r.InvalidationID}
		if err := transport.InvokeWaitSent(context.Background(), ack, false); err != nil {
			p.log.Error("failed to ack all invalidation", Fields{"cache": cacheId, "id": r.InvalidationID, "err": err})
			p.hooks.PeerAckFailed(&PeerAckFailure{Kind: KindClientInvalidateAll, InvalidationID: r.InvalidationID, Err: err})
		}
	})

	return p
}

// CacheId returns the logical cache id this proxy was built for.
func (p *CommonProxy) CacheId() CacheId { return p.cacheId }

// Close does nothing and returns nil: the response listeners that
// NewCommonProxy registered stay registered on the transport, which
// keeps delivering to them. The transport itself may be shared by
// other proxies for distinct cache ids and is not closed here.
func (p *CommonProxy) Close() error { return nil }

func (p *CommonProxy) Get(ctx context.Context, key Key) (Chain, error) {
	resp, err := p.transport.InvokeWaitRetired(ctx, Request{Op: OpGet, Key: key}, false)
	if err != nil {
		return Chain{}, wrapTransportErr("get", err)
	}
	if resp.Kind != KindGetResponse {
		return Chain{}, &ProtocolError{Op: "get", Kind: resp.Kind}
	}
	return resp.Chain, nil
}

func (p *CommonProxy) Append(ctx context.Context, key Key, payload []byte) error {
	req := Request{Op: OpAppend, Key: key, Payload: payload}
	if err := p.transport.InvokeWaitReceived(ctx, req, true); err != nil {
		return wrapTransportErr("append", err)
	}
	return nil
}

func (p *CommonProxy) GetAndAppend(ctx context.Context, key Key, payload []byte) (Chain, error) {
	req := Request{Op: OpGetAndAppend, Key: key, Payload: payload}
	resp, err := p.transport.InvokeWaitRetired(ctx, req, true)
	if err != nil {
		return Chain{}, wrapTransportErr("getAndAppend", err)
	}
	if resp.Kind != KindGetResponse {
		return Chain{}, &ProtocolError{Op: "getAndAppend", Kind: resp.Kind}
	}
	return resp.Chain, nil
}

// ReplaceAtHead is a fire-and-forget optimistic CAS: the server
// silently ignores it if expect no longer matches the chain prefix.
func (p *CommonProxy) ReplaceAtHead(ctx context.Context, key Key, expect, update Chain) error {
	req := Request{Op: OpReplaceAtHead, Key: key, Expect: expect, Update: update}
	if err := p.transport.InvokeWaitSent(ctx, req, false); err != nil {
		return wrapTransportErr("replaceAtHead", err)
	}
	return nil
}

func (p *CommonProxy) Clear(ctx context.Context) error {
	_, err := p.transport.InvokeWaitRetired(ctx, Request{Op: OpClear}, true)
	if err != nil {
		return wrapTransportErr("clear", err)
	}
	return nil
}
