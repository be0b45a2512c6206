package protocol

import (
	"testing"

	"github.com/agora-protocol/agora-go/pkg/extract"
)

func TestNewProtocol(t *testing.T) {
	meta := extract.Metadata{
		Name:        "QueryWeather",
		Description: "Asks for the weather.",
		Multiround:  true,
		Fields:      map[string]string{"name": "QueryWeather", "version": "2"},
	}

	p := New("document body", meta)
	if p.ID() == "" {
		t.Error("ID() is empty")
	}
	if p.Name() != "QueryWeather" {
		t.Errorf("Name() = %q", p.Name())
	}
	if !p.Multiround() {
		t.Error("Multiround() = false, want true")
	}
	if p.Document() != "document body" {
		t.Errorf("Document() = %q", p.Document())
	}
	if p.Metadata()["version"] != "2" {
		t.Error("Metadata() lost a non-standard field")
	}

	// Each protocol gets its own identity.
	other := New("document body", meta)
	if other.ID() == p.ID() {
		t.Error("two protocols share an ID")
	}
}

func TestMetadataIsCopied(t *testing.T) {
	fields := map[string]string{"name": "X"}
	p := New("body", extract.Metadata{Name: "X", Fields: fields})

	fields["name"] = "mutated"
	if p.Metadata()["name"] != "X" {
		t.Error("Protocol shares the caller's metadata map")
	}

	out := p.Metadata()
	out["name"] = "mutated again"
	if p.Metadata()["name"] != "X" {
		t.Error("Metadata() exposes internal state")
	}
}

func TestSuitabilityString(t *testing.T) {
	tests := []struct {
		s    Suitability
		want string
	}{
		{SuitabilityUnknown, "unknown"},
		{SuitabilityAdequate, "adequate"},
		{SuitabilityInadequate, "inadequate"},
		{SuitabilityProbing, "probing"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("Suitability(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}
