// Package clustercache implements the client side of a strongly
// consistent, cluster-wide invalidating cache on top of a remote
// server-store "cluster tier".
//
// A StrongProxy is a thin, provider-agnostic proxy over a [Transport]: every
// mutation (append, getAndAppend, clear) installs a per-key or global
// barrier that only releases once every other client attached to the
// same cluster tier has observed and acknowledged the invalidation the
// mutation triggered. This is what "strong" buys over a plain
// write-through cache: a caller that returns from Append knows no peer
// can observe the pre-mutation Chain anymore.
//
// Components:
//   - Transport: the collaborator interface for talking to the cluster
//     tier server (see transport/memory and transport/redis for
//     implementations, and wire for the byte framing transport/redis
//     puts on the network).
//   - Chain: the ordered, immutable sequence of payloads the server
//     maintains per key.
//   - StrongProxy: wraps CommonProxy with the invalidation barrier.
//   - localtier: adapts a local byte store (see its provider/*
//     backends) into the InvalidationListener a proxy notifies.
//   - TypedStore: wraps a StrongProxy with a codec.Codec so callers
//     append and read structured values instead of raw bytes.
//   - reconnect.Supervisor: detects fleet-wide disconnection and drives
//     a single reconnect callback.
//
// Keys are 64-bit content hashes (uint64); cache ids are short strings
// identifying one logical cache inside a cluster tier.
package clustercache
