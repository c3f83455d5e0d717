package ktxml

import "fmt"

// MalformedDocumentError reports a decode failure: which element broke which
// rule. Decoding aborts on the first violation.
type MalformedDocumentError struct {
	Element string // "document", "entity" or "relation"
	ID      string // offending id text, empty for document-level failures
	Rule    string
}

func (e *MalformedDocumentError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("malformed document: %s: %s", e.Element, e.Rule)
	}
	return fmt.Sprintf("malformed document: %s %s: %s", e.Element, e.ID, e.Rule)
}

// UnsupportedConstructError reports a recognized upstream construct that
// this schema deliberately does not carry: ability-graph entities, resource
// entities, critical-order and connect-resource relations. The whole file is
// rejected rather than reinterpreted or silently skipped.
type UnsupportedConstructError struct {
	Element   string
	ID        string
	Construct string
}

func (e *UnsupportedConstructError) Error() string {
	return fmt.Sprintf("unsupported construct in %s %s: %s", e.Element, e.ID, e.Construct)
}
