// Package extract implements the tagged-text mini-protocol used between
// negotiating agents and the reasoning backend: delimited blocks, the
// protocol metadata header, and code-fence stripping.
package extract

import (
	"strings"
)

// Delimiter tags of the wire format. These are bit-exact compatibility
// surfaces and must not change.
const (
	ProtocolOpenTag  = "<FINALPROTOCOL>"
	ProtocolCloseTag = "</FINALPROTOCOL>"

	ImplementationOpenTag  = "<IMPLEMENTATION>"
	ImplementationCloseTag = "</IMPLEMENTATION>"

	nameOpenTag         = "<NAME>"
	nameCloseTag        = "</NAME>"
	descriptionOpenTag  = "<DESCRIPTION>"
	descriptionCloseTag = "</DESCRIPTION>"
)

// Defaults for metadata keys absent from a protocol header.
const (
	DefaultProtocolName = "Unnamed protocol"
)

// FindBlock extracts the body between a delimiter pair. The second return
// value distinguishes "no match" from an empty body: a missing opening tag,
// or an opening tag without its closing tag, is not-found.
func FindBlock(text, openTag, closeTag string) (string, bool) {
	start := strings.Index(text, openTag)
	if start < 0 {
		return "", false
	}
	rest := text[start+len(openTag):]

	end := strings.Index(rest, closeTag)
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

// Metadata is the parsed protocol header.
type Metadata struct {
	Name        string
	Description string
	Multiround  bool
	// Fields holds every key-value line of the header, including keys beyond
	// the three standard ones.
	Fields map[string]string
}

// ParseMetadata parses the metadata header of an extracted protocol body.
//
// Two grammar variants exist in the wild: a "---"-delimited key-value block
// at the top of the body, and an older form using <NAME> and <DESCRIPTION>
// tags. Both are accepted; the dashed header wins when both are present.
// Missing keys fall back to defaults (DefaultProtocolName, empty description,
// multiround=false).
func ParseMetadata(body string) Metadata {
	meta := Metadata{
		Name:   DefaultProtocolName,
		Fields: map[string]string{},
	}

	if fields, ok := parseDashedHeader(body); ok {
		meta.Fields = fields
		if name, ok := fields["name"]; ok && name != "" {
			meta.Name = name
		}
		meta.Description = fields["description"]
		meta.Multiround = parseBool(fields["multiround"])
		return meta
	}

	// Legacy tag grammar.
	if name, ok := FindBlock(body, nameOpenTag, nameCloseTag); ok {
		name = strings.TrimSpace(name)
		if name != "" {
			meta.Name = name
			meta.Fields["name"] = name
		}
	}
	if description, ok := FindBlock(body, descriptionOpenTag, descriptionCloseTag); ok {
		description = strings.TrimSpace(description)
		meta.Description = description
		meta.Fields["description"] = description
	}

	return meta
}

// parseDashedHeader reads a header of "key: value" lines delimited by a pair
// of "---" lines at the top of the body.
func parseDashedHeader(body string) (map[string]string, bool) {
	lines := strings.Split(body, "\n")

	start := -1
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if trimmed == "---" {
			start = i
		}
		break
	}
	if start < 0 {
		return nil, false
	}

	fields := map[string]string{}
	for _, line := range lines[start+1:] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "---" {
			return fields, true
		}
		key, value, found := strings.Cut(trimmed, ":")
		if !found {
			continue
		}
		fields[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	// Opening delimiter without a closing one: not a header.
	return nil, false
}

func parseBool(value string) bool {
	return strings.EqualFold(strings.TrimSpace(value), "true")
}

// StripCodeFences removes Markdown code-fence markers that backends sometimes
// leave inside an extracted implementation, including the language marker on
// the opening fence.
func StripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "```python", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}
