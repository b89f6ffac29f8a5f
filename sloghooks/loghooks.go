// Package sloghooks implements clustercache.Hooks on top of log/slog,
// with key redaction and optional sampling for the hot, per-call event
// (barrier installs).
package sloghooks

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/clustercache"
)

type Options struct {
	// Sampling to avoid floods on BarrierInstalled; 0/1 = log all.
	BarrierInstalledEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(clustercache.Key) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	barrierCtr atomic.Uint64
}

var _ clustercache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k clustercache.Key) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], k)
	sum := sha256.Sum256(buf[:])
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) BarrierInstalled(key clustercache.Key) {
	if h.l == nil || !sample(h.opts.BarrierInstalledEvery, &h.barrierCtr) {
		return
	}
	h.l.Debug("clustercache.barrier_installed", "key", h.redact(key))
}

func (h *Hooks) BarrierTimedOut(key clustercache.Key, isAll bool) {
	if h.l == nil {
		return
	}
	h.l.Warn("clustercache.barrier_timed_out", "key", h.redact(key), "is_all", isAll)
}

func (h *Hooks) PeerAckFailed(err *clustercache.PeerAckFailure) {
	if h.l == nil {
		return
	}
	h.l.Error("clustercache.peer_ack_failed",
		"kind", err.Kind.String(),
		"key", h.redact(err.Key),
		"invalidation_id", err.InvalidationID,
		"err", err.Err)
}

func (h *Hooks) Disconnected(pendingHash int, pendingAll bool) {
	if h.l == nil {
		return
	}
	h.l.Warn("clustercache.disconnected", "pending_hash", pendingHash, "pending_all", pendingAll)
}

func (h *Hooks) Reconnected(keys []clustercache.Key, clearInProgress bool) {
	if h.l == nil {
		return
	}
	h.l.Info("clustercache.reconnected", "keys", len(keys), "clear_in_progress", clearInProgress)
}
