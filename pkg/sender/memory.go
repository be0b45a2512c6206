package sender

import (
	"sync"

	"github.com/agora-protocol/agora-go/pkg/protocol"
	"github.com/agora-protocol/agora-go/pkg/registry"
)

// ProtocolEntry is what Memory tracks for one negotiated protocol: the
// protocol itself, its judged suitability per task, and any synthesized
// adapter sources.
type ProtocolEntry struct {
	mu              sync.RWMutex
	protocol        *protocol.Protocol
	suitability     map[string]protocol.Suitability
	implementations map[string]string
}

// Protocol returns the tracked protocol.
func (e *ProtocolEntry) Protocol() *protocol.Protocol { return e.protocol }

// Suitability reports what is known about the protocol's fit for a task.
func (e *ProtocolEntry) Suitability(taskID string) protocol.Suitability {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.suitability[taskID]
}

// Implementation returns the stored adapter source for a task, if any.
func (e *ProtocolEntry) Implementation(taskID string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	source, ok := e.implementations[taskID]
	return source, ok
}

// Memory remembers negotiated protocols across runs so a sender can
// reuse a protocol (and its adapter) instead of renegotiating the same
// task.
type Memory struct {
	entries *registry.BaseRegistry[*ProtocolEntry]
}

// NewMemory creates an empty protocol memory.
func NewMemory() *Memory {
	return &Memory{entries: registry.NewBaseRegistry[*ProtocolEntry]()}
}

// RegisterProtocol starts tracking a negotiated protocol. Registering
// the same protocol twice is an error.
func (m *Memory) RegisterProtocol(proto *protocol.Protocol) (*ProtocolEntry, error) {
	entry := &ProtocolEntry{
		protocol:        proto,
		suitability:     make(map[string]protocol.Suitability),
		implementations: make(map[string]string),
	}
	if err := m.entries.Register(proto.ID(), entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Get returns the entry for a protocol ID.
func (m *Memory) Get(protocolID string) (*ProtocolEntry, bool) {
	return m.entries.Get(protocolID)
}

// Count reports how many protocols are tracked.
func (m *Memory) Count() int { return m.entries.Count() }

// SetSuitability records a suitability judgement for a protocol/task pair.
func (m *Memory) SetSuitability(protocolID, taskID string, s protocol.Suitability) bool {
	entry, ok := m.entries.Get(protocolID)
	if !ok {
		return false
	}
	entry.mu.Lock()
	entry.suitability[taskID] = s
	entry.mu.Unlock()
	return true
}

// StoreImplementation records a synthesized adapter for a protocol/task
// pair.
func (m *Memory) StoreImplementation(protocolID, taskID, source string) bool {
	entry, ok := m.entries.Get(protocolID)
	if !ok {
		return false
	}
	entry.mu.Lock()
	entry.implementations[taskID] = source
	entry.mu.Unlock()
	return true
}

// SuitableProtocol returns a protocol already judged adequate for the
// task, if one is known.
func (m *Memory) SuitableProtocol(taskID string) (*ProtocolEntry, bool) {
	for _, id := range m.entries.Names() {
		entry, ok := m.entries.Get(id)
		if !ok {
			continue
		}
		if entry.Suitability(taskID) == protocol.SuitabilityAdequate {
			return entry, true
		}
	}
	return nil, false
}
