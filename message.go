package clustercache

// Kind tags the variant of an inbound server message so the transport
// can dispatch to the right listener without type assertions scattered
// through the proxy. It plays the role the Java source fills with a
// sealed EhcacheEntityResponse hierarchy and instanceof checks.
type Kind byte

const (
	// KindGetResponse answers get/getAndAppend with a Chain snapshot.
	KindGetResponse Kind = iota + 1
	// KindHashInvalidationDone releases a per-key barrier.
	KindHashInvalidationDone
	// KindAllInvalidationDone releases the all-invalidation barrier.
	KindAllInvalidationDone
	// KindServerInvalidateHash is an advisory, unacknowledged peer
	// invalidation the server originated itself.
	KindServerInvalidateHash
	// KindClientInvalidateHash requires an ack before the server
	// releases the originating mutation's barrier.
	KindClientInvalidateHash
	// KindClientInvalidateAll requires an ack before the server
	// releases the originating clear's barrier.
	KindClientInvalidateAll
)

func (k Kind) String() string {
	switch k {
	case KindGetResponse:
		return "GetResponse"
	case KindHashInvalidationDone:
		return "HashInvalidationDone"
	case KindAllInvalidationDone:
		return "AllInvalidationDone"
	case KindServerInvalidateHash:
		return "ServerInvalidateHash"
	case KindClientInvalidateHash:
		return "ClientInvalidateHash"
	case KindClientInvalidateAll:
		return "ClientInvalidateAll"
	default:
		return "Unknown"
	}
}

// Response is an inbound server message. Only the fields relevant to
// Kind are populated; callers must check Kind before reading them.
type Response struct {
	Kind           Kind
	Chain          Chain
	Key            Key
	InvalidationID int64
}

// ResponseListener handles one Response. Listeners for a given Kind are
// serialized with respect to each other but may run concurrently with
// caller goroutines and with listeners for other kinds.
type ResponseListener func(Response)

// Request is an outbound message to the cluster tier server.
type Request struct {
	Op             Op
	Key            Key
	Payload        []byte
	Expect, Update Chain
	InvalidationID int64
}

// Op identifies the operation a Request performs.
type Op byte

const (
	OpGet Op = iota + 1
	OpAppend
	OpGetAndAppend
	OpReplaceAtHead
	OpClear
	OpClientInvalidationAck
	OpClientInvalidationAllAck
)

// ReconnectMessage is populated by the proxy during session
// re-establishment and tells the server which barriers it must
// re-drive fan-out for.
type ReconnectMessage struct {
	InvalidationsInProgress []Key
	ClearInProgress         bool
}

// AddInvalidationsInProgress appends the proxy's in-flight key set.
func (m *ReconnectMessage) AddInvalidationsInProgress(keys []Key) {
	m.InvalidationsInProgress = append(m.InvalidationsInProgress, keys...)
}

// SetClearInProgress marks that an all-invalidation was pending when
// the session dropped.
func (m *ReconnectMessage) SetClearInProgress() {
	m.ClearInProgress = true
}

// InvalidationListener is the upstream collaborator notified when a
// key (or the whole cache) must be purged from a local tier.
type InvalidationListener interface {
	OnInvalidateHash(key Key)
	OnInvalidateAll()
}

// ReconnectHandle is the upstream hook invoked once a fleet-wide
// disconnection has been detected and a fresh session re-established.
type ReconnectHandle interface {
	OnReconnect()
}
