// Package protocol defines the negotiated protocol value and its lifecycle
// metadata.
package protocol

import (
	"github.com/google/uuid"

	"github.com/agora-protocol/agora-go/pkg/extract"
)

// Protocol is the negotiated, named wire contract for one task. A Protocol
// only ever exists fully populated: it is created by a successful negotiation
// and immutable afterwards.
type Protocol struct {
	id          string
	name        string
	description string
	multiround  bool
	document    string
	metadata    map[string]string
}

// New builds a Protocol from a negotiated document body and its parsed
// metadata header.
func New(document string, meta extract.Metadata) *Protocol {
	metadata := make(map[string]string, len(meta.Fields))
	for k, v := range meta.Fields {
		metadata[k] = v
	}

	return &Protocol{
		id:          uuid.NewString(),
		name:        meta.Name,
		description: meta.Description,
		multiround:  meta.Multiround,
		document:    document,
		metadata:    metadata,
	}
}

func (p *Protocol) ID() string          { return p.id }
func (p *Protocol) Name() string        { return p.name }
func (p *Protocol) Description() string { return p.description }
func (p *Protocol) Multiround() bool    { return p.multiround }

// Document returns the full negotiated body text, metadata header included.
func (p *Protocol) Document() string { return p.document }

// Metadata returns a copy of the parsed header fields.
func (p *Protocol) Metadata() map[string]string {
	out := make(map[string]string, len(p.metadata))
	for k, v := range p.metadata {
		out[k] = v
	}
	return out
}

// Suitability records what is known about whether a protocol fits a given
// counterparty.
type Suitability int

const (
	SuitabilityUnknown Suitability = iota
	SuitabilityAdequate
	SuitabilityInadequate
	SuitabilityProbing
)

func (s Suitability) String() string {
	switch s {
	case SuitabilityAdequate:
		return "adequate"
	case SuitabilityInadequate:
		return "inadequate"
	case SuitabilityProbing:
		return "probing"
	default:
		return "unknown"
	}
}
