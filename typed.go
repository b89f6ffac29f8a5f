package clustercache

import (
	"context"

	"github.com/unkn0wn-root/clustercache/codec"
)

// TypedStore wraps a StrongProxy with a Codec[V], so callers append and
// read structured values instead of raw []byte payloads.
type TypedStore[V any] struct {
	proxy *StrongProxy
	codec codec.Codec[V]
}

// NewTypedStore builds a TypedStore over proxy using c to (de)serialize
// values.
func NewTypedStore[V any](proxy *StrongProxy, c codec.Codec[V]) *TypedStore[V] {
	return &TypedStore[V]{proxy: proxy, codec: c}
}

// Get returns the decoded value of every link in key's chain, in
// order. A link that fails to decode is skipped rather than failing
// the whole read.
func (t *TypedStore[V]) Get(ctx context.Context, key Key) ([]V, error) {
	chain, err := t.proxy.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return t.decodeLinks(chain), nil
}

// Append encodes v and appends it under the barrier.
func (t *TypedStore[V]) Append(ctx context.Context, key Key, v V) error {
	b, err := t.codec.Encode(v)
	if err != nil {
		return err
	}
	return t.proxy.Append(ctx, key, b)
}

// GetAndAppend encodes v, appends it under the barrier, and returns the
// decoded resulting chain.
func (t *TypedStore[V]) GetAndAppend(ctx context.Context, key Key, v V) ([]V, error) {
	b, err := t.codec.Encode(v)
	if err != nil {
		return nil, err
	}
	chain, err := t.proxy.GetAndAppend(ctx, key, b)
	if err != nil {
		return nil, err
	}
	return t.decodeLinks(chain), nil
}

// Clear delegates to the wrapped proxy; it carries no payload to
// encode.
func (t *TypedStore[V]) Clear(ctx context.Context) error {
	return t.proxy.Clear(ctx)
}

func (t *TypedStore[V]) decodeLinks(chain Chain) []V {
	links := chain.Links()
	out := make([]V, 0, len(links))
	for _, l := range links {
		v, err := t.codec.Decode(l)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}
