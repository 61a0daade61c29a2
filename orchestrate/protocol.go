// Package orchestrate drives the create-time handshake between the parent
// and the init child: it owns the exec fifo, the init pipe byte protocol,
// the log forwarder, and prestart hook execution.
package orchestrate

// Signal bytes exchanged on the init pipe. Values are arbitrary but fixed
// and distinct; what matters is that parent and init agree on them.
const (
	InitReqPrestartHooks   byte = 0xA1
	CreateAckPrestartHooks byte = 0xA2
	InitReadyToExecv       byte = 0xA3
)
