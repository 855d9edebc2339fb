// Package metrics holds the gateway's monotonic counters. Counters are
// incremented from many goroutines and reset only by process restart;
// rendering them (Prometheus text or otherwise) is the caller's business.
package metrics

import "sync/atomic"

type Metrics struct {
	messagesSent     atomic.Uint64
	messagesReceived atomic.Uint64
	rpcCalls         atomic.Uint64
	rpcErrors        atomic.Uint64
	wsClients        atomic.Int64
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	MessagesSent     uint64
	MessagesReceived uint64
	RPCCalls         uint64
	RPCErrors        uint64
	WSClients        int64
}

func New() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncMessagesSent()     { m.messagesSent.Add(1) }
func (m *Metrics) IncMessagesReceived() { m.messagesReceived.Add(1) }
func (m *Metrics) IncRPCCalls()         { m.rpcCalls.Add(1) }
func (m *Metrics) IncRPCErrors()        { m.rpcErrors.Add(1) }

// AddWSClients adjusts the live push-feed subscriber gauge.
func (m *Metrics) AddWSClients(delta int64) { m.wsClients.Add(delta) }

func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		MessagesSent:     m.messagesSent.Load(),
		MessagesReceived: m.messagesReceived.Load(),
		RPCCalls:         m.rpcCalls.Load(),
		RPCErrors:        m.rpcErrors.Load(),
		WSClients:        m.wsClients.Load(),
	}
}
