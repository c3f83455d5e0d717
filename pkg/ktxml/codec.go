// Package ktxml reads and writes the KT-SQEP XML dialect, the interchange
// format shared with the external KT-SQEP tool. Encoding is deterministic
// (entity and relation order follows document insertion order) and every
// non-ASCII rune is written as a decimal character reference, matching the
// external tool's output byte for byte.
package ktxml

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/ktsqep/graphdoc/pkg/graph"
	"github.com/ktsqep/graphdoc/pkg/schema"
)

type xmlDocument struct {
	XMLName   xml.Name      `xml:"knowledge_graph"`
	Entities  []xmlEntity   `xml:"entities>entity"`
	Relations []xmlRelation `xml:"relations>relation"`
}

// xmlEntity keeps every field as text so decoding can name the exact
// offending value instead of failing inside the xml package.
type xmlEntity struct {
	ID             string `xml:"id"`
	ClassName      string `xml:"class_name"`
	Classification string `xml:"classification"`
	Identity       string `xml:"identity"`
	Level          string `xml:"level"`
	Attach         string `xml:"attach"`
	OpenTool       string `xml:"opentool"`
	Content        string `xml:"content"`
	X              string `xml:"x"`
	Y              string `xml:"y"`
}

type xmlRelation struct {
	From      string `xml:"from"`
	To        string `xml:"to"`
	ClassName string `xml:"class_name"`
}

// Encode serializes the document. Repeated encodes of an unmodified
// document produce identical bytes.
func Encode(doc *graph.Document) (string, error) {
	wire := xmlDocument{}

	for _, ent := range doc.Entities() {
		wire.Entities = append(wire.Entities, xmlEntity{
			ID:             strconv.FormatUint(ent.ID, 10),
			ClassName:      ent.Type.ClassName(),
			Classification: schema.Classification,
			Identity:       schema.Identity,
			Level:          ent.Type.Level(),
			Attach:         ent.Addons.Attach(),
			OpenTool:       schema.OpenTool,
			Content:        ent.Content,
			X:              formatCoord(ent.X),
			Y:              formatCoord(ent.Y),
		})
	}
	for _, e := range doc.Edges() {
		wire.Relations = append(wire.Relations, xmlRelation{
			From:      strconv.FormatUint(e.From, 10),
			To:        strconv.FormatUint(e.To, 10),
			ClassName: e.Relation.ClassName(),
		})
	}

	out, err := xml.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return escapeNonASCII(normalizeEscapes(string(out))), nil
}

// normalizeEscapes rewrites the escape forms xml.Marshal chose into the ones
// the external tool writes: named entities for quotes, literal whitespace
// for newline and tab. A literal "&#34;" in content cannot be confused with
// these because its ampersand is already "&amp;" at this point. Carriage
// returns stay as "&#xD;" so they survive re-parsing, which would normalize
// a bare CR to a newline.
var escapeNormalizer = strings.NewReplacer(
	"&#34;", "&quot;",
	"&#39;", "&apos;",
	"&#xA;", "\n",
	"&#x9;", "\t",
)

func normalizeEscapes(s string) string {
	return escapeNormalizer.Replace(s)
}

// Decode parses KT-SQEP XML into a fresh document. Entity ids come from the
// file unchanged; the id allocator resumes past the highest one. Decoding is
// all-or-nothing: on any violation no document is returned.
func Decode(text string) (*graph.Document, error) {
	var wire xmlDocument
	if err := xml.Unmarshal([]byte(text), &wire); err != nil {
		return nil, &MalformedDocumentError{Element: "document", Rule: err.Error()}
	}

	doc := graph.NewDocument()

	for _, we := range wire.Entities {
		ent, err := decodeEntity(we)
		if err != nil {
			return nil, err
		}
		if _, ok := doc.Entity(ent.ID); ok {
			return nil, &MalformedDocumentError{Element: "entity", ID: we.ID, Rule: "duplicate id"}
		}
		if err := doc.RestoreEntity(ent); err != nil {
			return nil, &MalformedDocumentError{Element: "entity", ID: we.ID, Rule: err.Error()}
		}
	}

	for _, wr := range wire.Relations {
		if err := decodeRelation(doc, wr); err != nil {
			return nil, err
		}
	}

	return doc, nil
}

func decodeEntity(we xmlEntity) (graph.Entity, error) {
	var ent graph.Entity

	id, err := strconv.ParseUint(we.ID, 10, 64)
	if err != nil || id == 0 {
		return ent, &MalformedDocumentError{Element: "entity", ID: we.ID, Rule: fmt.Sprintf("malformed id %q", we.ID)}
	}

	// Resource entities are recognized by class_name alone; their other
	// fields differ upstream and must not produce a misleading error.
	if schema.ResourceClassName(we.ClassName) {
		return ent, &UnsupportedConstructError{Element: "entity", ID: we.ID, Construct: fmt.Sprintf("resource entity %q", we.ClassName)}
	}
	if we.Classification == schema.AbilityClassification {
		return ent, &UnsupportedConstructError{Element: "entity", ID: we.ID, Construct: "ability-graph entity"}
	}
	if we.Classification != schema.Classification {
		return ent, &MalformedDocumentError{Element: "entity", ID: we.ID, Rule: fmt.Sprintf("unknown classification %q", we.Classification)}
	}

	dtype, ok := schema.DistinctTypeByClassName(we.ClassName)
	if !ok {
		return ent, &MalformedDocumentError{Element: "entity", ID: we.ID, Rule: fmt.Sprintf("unknown class_name %q", we.ClassName)}
	}
	if we.Level != dtype.Level() {
		return ent, &MalformedDocumentError{Element: "entity", ID: we.ID, Rule: fmt.Sprintf("level %q does not match class %q", we.Level, we.ClassName)}
	}

	addons, err := schema.ParseAttach(we.Attach)
	if err != nil {
		return ent, &MalformedDocumentError{Element: "entity", ID: we.ID, Rule: fmt.Sprintf("malformed attach code %q", we.Attach)}
	}

	x, err := parseCoord(we.X)
	if err != nil {
		return ent, &MalformedDocumentError{Element: "entity", ID: we.ID, Rule: fmt.Sprintf("malformed x coordinate %q", we.X)}
	}
	y, err := parseCoord(we.Y)
	if err != nil {
		return ent, &MalformedDocumentError{Element: "entity", ID: we.ID, Rule: fmt.Sprintf("malformed y coordinate %q", we.Y)}
	}

	return graph.Entity{ID: id, Content: we.Content, Type: dtype, Addons: addons, X: x, Y: y}, nil
}

func decodeRelation(doc *graph.Document, wr xmlRelation) error {
	elemID := wr.From + "->" + wr.To

	from, err := strconv.ParseUint(wr.From, 10, 64)
	if err != nil {
		return &MalformedDocumentError{Element: "relation", ID: elemID, Rule: fmt.Sprintf("malformed from id %q", wr.From)}
	}
	to, err := strconv.ParseUint(wr.To, 10, 64)
	if err != nil {
		return &MalformedDocumentError{Element: "relation", ID: elemID, Rule: fmt.Sprintf("malformed to id %q", wr.To)}
	}

	rel, ok := schema.RelationByClassName(wr.ClassName)
	if !ok {
		if kind, unsupported := schema.UnsupportedRelationClassName(wr.ClassName); unsupported {
			return &UnsupportedConstructError{Element: "relation", ID: elemID, Construct: kind + " relation"}
		}
		return &MalformedDocumentError{Element: "relation", ID: elemID, Rule: fmt.Sprintf("unknown relation %q", wr.ClassName)}
	}

	if _, ok := doc.Entity(from); !ok {
		return &MalformedDocumentError{Element: "relation", ID: elemID, Rule: fmt.Sprintf("references missing entity %d", from)}
	}
	if _, ok := doc.Entity(to); !ok {
		return &MalformedDocumentError{Element: "relation", ID: elemID, Rule: fmt.Sprintf("references missing entity %d", to)}
	}

	if err := doc.AddEdge(from, to, rel); err != nil {
		return &MalformedDocumentError{Element: "relation", ID: elemID, Rule: err.Error()}
	}
	return nil
}

// formatCoord writes the shortest round-trip decimal form without exponent
// notation; the external tool never emits exponents, so "0.00001" and
// "1000000000000000000000", not "1e-05" and "1e+21".
func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseCoord(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("missing coordinate")
	}
	return strconv.ParseFloat(s, 64)
}

// escapeNonASCII rewrites every rune above 0x7f as a decimal character
// reference. The external tool emits and expects this form.
func escapeNonASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x80 {
			b.WriteRune(r)
		} else {
			b.WriteString("&#")
			b.WriteString(strconv.Itoa(int(r)))
			b.WriteByte(';')
		}
	}
	return b.String()
}
