package ktxml

import (
	"fmt"
	"strings"
	"testing"

	"github.com/ktsqep/graphdoc/pkg/graph"
	"github.com/ktsqep/graphdoc/pkg/schema"
	"github.com/stretchr/testify/assert"
)

// entityXML builds one entity element the way the external tool writes it,
// for decode tests. The decoder accepts plain UTF-8 as well as character
// references, so the vocabulary can stay readable here.
func entityXML(id, className, classification, level, attach, content, x, y string) string {
	return fmt.Sprintf("<entity><id>%s</id><class_name>%s</class_name><classification>%s</classification><identity>知识</identity><level>%s</level><attach>%s</attach><opentool>无</opentool><content>%s</content><x>%s</x><y>%s</y></entity>",
		id, className, classification, level, attach, content, x, y)
}

func wrapDoc(entities, relations string) string {
	return "<knowledge_graph><entities>" + entities + "</entities><relations>" + relations + "</relations></knowledge_graph>"
}

func validEntityXML(id string) string {
	return entityXML(id, "知识点", "内容方法型节点", "归纳级", "000000", "N"+id, "0", "0")
}

// Golden bytes produced by the external KT-SQEP tool for one entity per
// distinct type. The encoder must reproduce them exactly.
func TestEncodeEntityGolden(t *testing.T) {
	cases := []struct {
		dtype  schema.DistinctType
		golden string
	}{
		{schema.KnowledgeArea, "<entity><id>114514</id><class_name>&#30693;&#35782;&#39046;&#22495;</class_name><classification>&#20869;&#23481;&#26041;&#27861;&#22411;&#33410;&#28857;</classification><identity>&#30693;&#35782;</identity><level>&#19968;&#32423;</level><attach>111000</attach><opentool>&#26080;</opentool><content>Hello &#19990;&#30028;&#65281;&#129408;@#&amp; </content><x>1</x><y>2</y></entity>"},
		{schema.KnowledgeUnit, "<entity><id>114514</id><class_name>&#30693;&#35782;&#21333;&#20803;</class_name><classification>&#20869;&#23481;&#26041;&#27861;&#22411;&#33410;&#28857;</classification><identity>&#30693;&#35782;</identity><level>&#20108;&#32423;</level><attach>111000</attach><opentool>&#26080;</opentool><content>Hello &#19990;&#30028;&#65281;&#129408;@#&amp; </content><x>1</x><y>2</y></entity>"},
		{schema.KnowledgePoint, "<entity><id>114514</id><class_name>&#30693;&#35782;&#28857;</class_name><classification>&#20869;&#23481;&#26041;&#27861;&#22411;&#33410;&#28857;</classification><identity>&#30693;&#35782;</identity><level>&#24402;&#32435;&#32423;</level><attach>111000</attach><opentool>&#26080;</opentool><content>Hello &#19990;&#30028;&#65281;&#129408;@#&amp; </content><x>1</x><y>2</y></entity>"},
		{schema.KnowledgeDetail, "<entity><id>114514</id><class_name>&#20851;&#38190;&#30693;&#35782;&#32454;&#33410;</class_name><classification>&#20869;&#23481;&#26041;&#27861;&#22411;&#33410;&#28857;</classification><identity>&#30693;&#35782;</identity><level>&#20869;&#23481;&#32423;</level><attach>111000</attach><opentool>&#26080;</opentool><content>Hello &#19990;&#30028;&#65281;&#129408;@#&amp; </content><x>1</x><y>2</y></entity>"},
	}

	for _, tc := range cases {
		doc := graph.NewDocument()
		err := doc.RestoreEntity(graph.Entity{
			ID:      114514,
			Content: "Hello 世界！🦀@#& ",
			Type:    tc.dtype,
			Addons:  schema.NewAddonSet(schema.Thinking, schema.Political, schema.Question),
			X:       1,
			Y:       2,
		})
		assert.NoError(t, err)

		out, err := Encode(doc)
		assert.NoError(t, err)
		assert.Contains(t, out, tc.golden)
	}
}

// Coordinates serialize in plain decimal, never exponent notation; the
// external tool does not read forms like "1e-05".
func TestEncodeCoordinateForms(t *testing.T) {
	cases := []struct {
		value float64
		want  string
	}{
		{1, "1"},
		{-0.5, "-0.5"},
		{200.5, "200.5"},
		{0.00001, "0.00001"},
		{1e21, "1000000000000000000000"},
		{-3e-7, "-0.0000003"},
	}

	for _, tc := range cases {
		doc := graph.NewDocument()
		_, err := doc.AddEntity("A", schema.KnowledgePoint, nil, tc.value, tc.value)
		assert.NoError(t, err)

		out, err := Encode(doc)
		assert.NoError(t, err)
		assert.Contains(t, out, "<x>"+tc.want+"</x><y>"+tc.want+"</y>", "coordinate %v", tc.value)

		decoded, err := Decode(out)
		assert.NoError(t, err)
		assert.Equal(t, doc.Entities(), decoded.Entities())
	}
}

// Content escaping follows the external tool: named entities for the five
// predefined characters, literal newline and tab. Carriage returns keep a
// numeric reference so a re-parse cannot fold them into newlines.
func TestEncodeContentEscaping(t *testing.T) {
	doc := graph.NewDocument()
	_, err := doc.AddEntity("say \"hi\" & <eat> 'now'\n\tdone\rend", schema.KnowledgePoint, nil, 0, 0)
	assert.NoError(t, err)

	out, err := Encode(doc)
	assert.NoError(t, err)
	assert.Contains(t, out, "<content>say &quot;hi&quot; &amp; &lt;eat&gt; &apos;now&apos;\n\tdone&#xD;end</content>")

	decoded, err := Decode(out)
	assert.NoError(t, err)
	assert.Equal(t, doc.Entities(), decoded.Entities())
}

func TestEncodeOrdering(t *testing.T) {
	doc := graph.NewDocument()
	a, err := doc.AddEntity("A", schema.KnowledgeArea, nil, 0, 0)
	assert.NoError(t, err)
	b, err := doc.AddEntity("B", schema.KnowledgeUnit, nil, 10, 10)
	assert.NoError(t, err)
	assert.NoError(t, doc.AddEdge(a, b, schema.Contain))
	assert.NoError(t, doc.AddEdge(b, a, schema.Order))

	out, err := Encode(doc)
	assert.NoError(t, err)

	// entities in insertion order, then relations in insertion order
	i1 := strings.Index(out, "<id>1</id>")
	i2 := strings.Index(out, "<id>2</id>")
	ir := strings.Index(out, "<relations>")
	assert.True(t, i1 >= 0 && i1 < i2 && i2 < ir)

	// 包含关系 / 次序关系 as character references
	assert.Contains(t, out, "<relation><from>1</from><to>2</to><class_name>&#21253;&#21547;&#20851;&#31995;</class_name></relation>")
	assert.Contains(t, out, "<relation><from>2</from><to>1</to><class_name>&#27425;&#24207;&#20851;&#31995;</class_name></relation>")

	// repeated saves of an unmodified document are byte-identical
	again, err := Encode(doc)
	assert.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestRoundTrip(t *testing.T) {
	doc := graph.NewDocument()
	a, err := doc.AddEntity("根 root", schema.KnowledgeArea, schema.NewAddonSet(schema.Knowledge, schema.Example), -3.25, 4)
	assert.NoError(t, err)
	b, err := doc.AddEntity("叶 leaf", schema.KnowledgeDetail, nil, 100, 200.5)
	assert.NoError(t, err)
	c, err := doc.AddEntity("", schema.KnowledgePoint, schema.NewAddonSet(schema.Political), 0.00001, 1e21)
	assert.NoError(t, err)
	assert.NoError(t, doc.AddEdge(a, b, schema.Contain))
	assert.NoError(t, doc.AddEdge(a, b, schema.Order))
	assert.NoError(t, doc.AddEdge(b, c, schema.Contain))

	out, err := Encode(doc)
	assert.NoError(t, err)

	decoded, err := Decode(out)
	assert.NoError(t, err)
	assert.Equal(t, doc.Entities(), decoded.Entities())
	assert.Equal(t, doc.Edges(), decoded.Edges())

	// and the re-encoding is stable
	again, err := Encode(decoded)
	assert.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestDecodeResumesIDAllocation(t *testing.T) {
	text := wrapDoc(validEntityXML("7")+validEntityXML("3"), "")
	doc, err := Decode(text)
	assert.NoError(t, err)

	id, err := doc.AddEntity("new", schema.KnowledgePoint, nil, 0, 0)
	assert.NoError(t, err)
	assert.Equal(t, uint64(8), id, "allocator resumes past the highest decoded id")
}

func TestEncodeDecodeEmptyDocument(t *testing.T) {
	out, err := Encode(graph.NewDocument())
	assert.NoError(t, err)

	doc, err := Decode(out)
	assert.NoError(t, err)
	assert.Equal(t, 0, doc.EntityCount())
	assert.Equal(t, 0, doc.EdgeCount())
}

func TestDecodeRejectsMalformed(t *testing.T) {
	valid := validEntityXML("1") + validEntityXML("2")

	cases := []struct {
		name string
		text string
		rule string // substring expected in the reported rule
	}{
		{
			name: "not xml at all",
			text: "definitely not xml",
			rule: "",
		},
		{
			name: "wrong root element",
			text: "<other></other>",
			rule: "",
		},
		{
			name: "malformed id",
			text: wrapDoc(entityXML("abc", "知识点", "内容方法型节点", "归纳级", "000000", "", "0", "0"), ""),
			rule: "malformed id",
		},
		{
			name: "duplicate id",
			text: wrapDoc(validEntityXML("1")+validEntityXML("1"), ""),
			rule: "duplicate id",
		},
		{
			name: "unknown class_name",
			text: wrapDoc(entityXML("1", "能力点", "内容方法型节点", "归纳级", "000000", "", "0", "0"), ""),
			rule: "unknown class_name",
		},
		{
			name: "unknown classification",
			text: wrapDoc(entityXML("1", "知识点", "谜之节点", "归纳级", "000000", "", "0", "0"), ""),
			rule: "unknown classification",
		},
		{
			name: "mismatched level",
			text: wrapDoc(entityXML("1", "知识点", "内容方法型节点", "一级", "000000", "", "0", "0"), ""),
			rule: "does not match class",
		},
		{
			name: "malformed attach",
			text: wrapDoc(entityXML("1", "知识点", "内容方法型节点", "归纳级", "11", "", "0", "0"), ""),
			rule: "malformed attach",
		},
		{
			name: "malformed coordinate",
			text: wrapDoc(entityXML("1", "知识点", "内容方法型节点", "归纳级", "000000", "", "abc", "0"), ""),
			rule: "malformed x coordinate",
		},
		{
			name: "missing coordinate",
			text: wrapDoc(entityXML("1", "知识点", "内容方法型节点", "归纳级", "000000", "", "0", ""), ""),
			rule: "malformed y coordinate",
		},
		{
			name: "unknown relation",
			text: wrapDoc(valid, "<relation><from>1</from><to>2</to><class_name>链接</class_name></relation>"),
			rule: "unknown relation",
		},
		{
			name: "relation to missing entity",
			text: wrapDoc(valid, "<relation><from>1</from><to>9</to><class_name>包含关系</class_name></relation>"),
			rule: "references missing entity 9",
		},
		{
			name: "self-loop relation",
			text: wrapDoc(valid, "<relation><from>1</from><to>1</to><class_name>包含关系</class_name></relation>"),
			rule: "itself",
		},
		{
			name: "duplicate relation",
			text: wrapDoc(valid, strings.Repeat("<relation><from>1</from><to>2</to><class_name>包含关系</class_name></relation>", 2)),
			rule: "already exists",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := Decode(tc.text)
			assert.Nil(t, doc, "no document may escape a failed decode")
			var mde *MalformedDocumentError
			assert.ErrorAs(t, err, &mde)
			if tc.rule != "" {
				assert.Contains(t, mde.Rule, tc.rule)
			}
		})
	}
}

func TestDecodeRejectsUnsupportedConstructs(t *testing.T) {
	cases := []struct {
		name      string
		text      string
		construct string
	}{
		{
			name:      "resource entity",
			text:      wrapDoc(entityXML("1", "视频", "资源型节点", "", "000000", "clip", "0", "0"), ""),
			construct: "resource entity",
		},
		{
			name:      "ability-graph entity",
			text:      wrapDoc(entityXML("1", "能力项", "能力型节点", "归纳级", "000000", "", "0", "0"), ""),
			construct: "ability-graph entity",
		},
		{
			name:      "critical-order relation",
			text:      wrapDoc(validEntityXML("1")+validEntityXML("2"), "<relation><from>1</from><to>2</to><class_name>关键次序关系</class_name></relation>"),
			construct: "critical-order relation",
		},
		{
			name:      "connect-resource relation",
			text:      wrapDoc(validEntityXML("1")+validEntityXML("2"), "<relation><from>1</from><to>2</to><class_name>资源连接关系</class_name></relation>"),
			construct: "connect-resource relation",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := Decode(tc.text)
			assert.Nil(t, doc)
			var uce *UnsupportedConstructError
			assert.ErrorAs(t, err, &uce)
			assert.Contains(t, uce.Construct, tc.construct)
		})
	}
}

func TestDecodeAcceptsCharacterReferences(t *testing.T) {
	// the external tool writes everything non-ASCII as &#NNNN;
	text := wrapDoc(entityXML("1",
		"&#30693;&#35782;&#28857;", "&#20869;&#23481;&#26041;&#27861;&#22411;&#33410;&#28857;",
		"&#24402;&#32435;&#32423;", "010000", "Hello &#19990;&#30028;", "1.5", "-2"), "")

	doc, err := Decode(text)
	assert.NoError(t, err)

	ent, ok := doc.Entity(1)
	assert.True(t, ok)
	assert.Equal(t, "Hello 世界", ent.Content)
	assert.Equal(t, schema.KnowledgePoint, ent.Type)
	assert.True(t, ent.Addons.Has(schema.Political))
	assert.Equal(t, 1.5, ent.X)
	assert.Equal(t, -2.0, ent.Y)
}
