// Package redis is a clustercache.Transport backed by Redis: request
// queues (RPUSH/BLPOP) carry client-to-server calls, and a Pub/Sub
// channel fans out the server's asynchronous invalidation and
// barrier-release notifications.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	cc "github.com/unkn0wn-root/clustercache"
	"github.com/unkn0wn-root/clustercache/wire"
)

// ErrNilClient is returned by New when cfg.Client is nil.
var ErrNilClient = errors.New("redis transport: nil client")

// Config configures a Redis transport.
type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this transport exclusively owns the client
	CacheId     cc.CacheId
	Timeouts    cc.Timeouts
	// PingInterval governs how often the connection-state poll loop
	// checks the client with PING. Defaults to 2s.
	PingInterval time.Duration
	Log          cc.Logger
}

// Redis is a clustercache.Transport over RPUSH/BLPOP request queues
// and a Pub/Sub async-notification channel.
type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
	cacheId     cc.CacheId
	timeouts    cc.Timeouts
	log         cc.Logger

	reqKey       string
	asyncKey     string
	reconnectKey string

	reqID atomic.Uint64

	mu           sync.Mutex
	listeners    map[cc.Kind]cc.ResponseListener
	reconnectFn  func(*cc.ReconnectMessage)
	disconnectFn func()

	connected atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}
}

var _ cc.Transport = (*Redis)(nil)

// New builds and starts a Redis transport: it launches the async
// Pub/Sub fan-out subscriber and the connection-state poll loop, both
// stopped by Close.
func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	if cfg.Log == nil {
		cfg.Log = cc.NopLogger{}
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 2 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Redis{
		rdb:          cfg.Client,
		closeClient:  cfg.CloseClient,
		cacheId:      cfg.CacheId,
		timeouts:     cfg.Timeouts,
		log:          cfg.Log,
		reqKey:       fmt.Sprintf("cc:req:%s", cfg.CacheId),
		asyncKey:     fmt.Sprintf("cc:async:%s", cfg.CacheId),
		reconnectKey: fmt.Sprintf("cc:reconnect:%s", cfg.CacheId),
		listeners:    make(map[cc.Kind]cc.ResponseListener),
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	r.connected.Store(true)

	sub := r.rdb.Subscribe(ctx, r.asyncKey)
	go r.pumpAsync(ctx, sub)
	go r.pollConnection(ctx, cfg.PingInterval)

	return r, nil
}

func (r *Redis) respKey(reqID uint64, suffix string) string {
	return fmt.Sprintf("cc:%s:%s:%d", suffix, r.cacheId, reqID)
}

func (r *Redis) nextReqID() uint64 { return r.reqID.Add(1) }

// InvokeWaitSent pushes req onto the request queue and returns once
// Redis has accepted it.
func (r *Redis) InvokeWaitSent(ctx context.Context, req cc.Request, replicate bool) error {
	if !r.IsConnected() {
		return cc.ErrDisconnected
	}
	frame, err := wire.EncodeRequest(req)
	if err != nil {
		return err
	}
	if err := r.rdb.RPush(ctx, r.reqKey, frame).Err(); err != nil {
		return r.wrapErr(err)
	}
	return nil
}

// InvokeWaitReceived pushes req and blocks on its per-request receipt
// list until the server signals receipt or the mutative timeout
// elapses.
func (r *Redis) InvokeWaitReceived(ctx context.Context, req cc.Request, replicate bool) error {
	if !r.IsConnected() {
		return cc.ErrDisconnected
	}
	id := r.nextReqID()
	key := r.respKey(id, "recv")
	req.InvalidationID = int64(id)

	frame, err := wire.EncodeRequest(req)
	if err != nil {
		return err
	}
	if err := r.rdb.RPush(ctx, r.reqKey, frame).Err(); err != nil {
		return r.wrapErr(err)
	}

	wctx, cancel := context.WithTimeout(ctx, r.timeouts.Mutative)
	defer cancel()
	if _, err := r.rdb.BLPop(wctx, r.timeouts.Mutative, key).Result(); err != nil {
		return r.mapWaitErr(err)
	}
	return nil
}

// InvokeWaitRetired pushes req and blocks on its per-request response
// list until the server returns a decoded Response or the applicable
// timeout elapses.
func (r *Redis) InvokeWaitRetired(ctx context.Context, req cc.Request, replicate bool) (cc.Response, error) {
	if !r.IsConnected() {
		return cc.Response{}, cc.ErrDisconnected
	}
	id := r.nextReqID()
	key := r.respKey(id, "ret")
	req.InvalidationID = int64(id)

	timeout := r.timeouts.Read
	if req.Op != cc.OpGet {
		timeout = r.timeouts.Mutative
	}

	frame, err := wire.EncodeRequest(req)
	if err != nil {
		return cc.Response{}, err
	}
	if err := r.rdb.RPush(ctx, r.reqKey, frame).Err(); err != nil {
		return cc.Response{}, r.wrapErr(err)
	}

	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	res, err := r.rdb.BLPop(wctx, timeout, key).Result()
	if err != nil {
		return cc.Response{}, r.mapWaitErr(err)
	}
	if len(res) < 2 {
		return cc.Response{}, &cc.ProtocolError{Op: "invokeWaitRetired", Kind: 0}
	}
	return wire.DecodeResponse([]byte(res[1]))
}

func (r *Redis) AddResponseListener(kind cc.Kind, fn cc.ResponseListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[kind] = fn
}

func (r *Redis) SetReconnectListener(fn func(*cc.ReconnectMessage)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reconnectFn = fn
}

func (r *Redis) SetDisconnectionListener(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnectFn = fn
}

func (r *Redis) listener(kind cc.Kind) cc.ResponseListener {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listeners[kind]
}

func (r *Redis) reconnectListener() func(*cc.ReconnectMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reconnectFn
}

func (r *Redis) disconnectListener() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disconnectFn
}

func (r *Redis) IsConnected() bool        { return r.connected.Load() }
func (r *Redis) GetTimeouts() cc.Timeouts { return r.timeouts }

// Close stops the background loops and, if this transport owns the
// client, closes it.
func (r *Redis) Close() error {
	r.cancel()
	<-r.done
	if r.closeClient {
		if err := r.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

func (r *Redis) pumpAsync(ctx context.Context, sub *goredis.PubSub) {
	defer close(r.done)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			resp, err := wire.DecodeResponse([]byte(msg.Payload))
			if err != nil {
				r.log.Warn("redis transport: dropped corrupt async frame", cc.Fields{"err": err})
				continue
			}
			if fn := r.listener(resp.Kind); fn != nil {
				fn(resp)
			}
		}
	}
}

// pollConnection keeps r.connected in sync with reachability, firing
// the disconnect/reconnect listeners on each transition exactly once.
func (r *Redis) pollConnection(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			err := r.rdb.Ping(ctx).Err()
			wasConnected := r.connected.Load()
			nowConnected := err == nil

			if wasConnected && !nowConnected {
				r.connected.Store(false)
				if fn := r.disconnectListener(); fn != nil {
					fn()
				}
			} else if !wasConnected && nowConnected {
				r.connected.Store(true)
				if fn := r.reconnectListener(); fn != nil {
					var msg cc.ReconnectMessage
					fn(&msg)
					r.sendReconnect(ctx, msg)
				}
			}
		}
	}
}

// sendReconnect pushes msg onto the reconnect queue so the server knows
// which barriers this client had in flight when its session dropped and
// must re-drive fan-out for. A push failure is logged and swallowed:
// the client is already reconnected, and the next disconnect/reconnect
// cycle gets another chance to deliver the handshake.
func (r *Redis) sendReconnect(ctx context.Context, msg cc.ReconnectMessage) {
	frame, err := wire.EncodeReconnectMessage(msg)
	if err != nil {
		r.log.Warn("redis transport: failed to encode reconnect message", cc.Fields{"err": err})
		return
	}
	if err := r.rdb.RPush(ctx, r.reconnectKey, frame).Err(); err != nil {
		r.log.Warn("redis transport: failed to send reconnect message", cc.Fields{"err": err})
	}
}

func (r *Redis) wrapErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return cc.ErrTimeout
	}
	if errors.Is(err, goredis.ErrClosed) {
		return cc.ErrDisconnected
	}
	return err
}

func (r *Redis) mapWaitErr(err error) error {
	if errors.Is(err, goredis.Nil) || errors.Is(err, context.DeadlineExceeded) {
		return cc.ErrTimeout
	}
	return r.wrapErr(err)
}
