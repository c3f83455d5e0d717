package schema

// KT-SQEP file vocabulary. These strings are part of the external file
// format and must not change.

const (
	// Classification carried by every supported entity element.
	Classification = "内容方法型节点"
	// Identity carried by every supported entity element.
	Identity = "知识"
	// OpenTool carried by every supported entity element.
	OpenTool = "无"

	// AbilityClassification marks ability-graph entities, which this
	// schema does not support.
	AbilityClassification = "能力型节点"
)

var distinctClassNames = map[DistinctType]string{
	KnowledgeArea:   "知识领域",
	KnowledgeUnit:   "知识单元",
	KnowledgePoint:  "知识点",
	KnowledgeDetail: "关键知识细节",
}

var distinctLevels = map[DistinctType]string{
	KnowledgeArea:   "一级",
	KnowledgeUnit:   "二级",
	KnowledgePoint:  "归纳级",
	KnowledgeDetail: "内容级",
}

// ClassName returns the entity class_name written to KT-SQEP files.
func (t DistinctType) ClassName() string { return distinctClassNames[t] }

// Level returns the entity level written to KT-SQEP files.
func (t DistinctType) Level() string { return distinctLevels[t] }

// DistinctTypeByClassName resolves a file class_name back to a distinct type.
func DistinctTypeByClassName(name string) (DistinctType, bool) {
	for t, n := range distinctClassNames {
		if n == name {
			return t, true
		}
	}
	return "", false
}

// Resource entity class names appear in upstream files but are outside this
// schema. They are recognized so the codec can name them in errors instead of
// mis-parsing them as knowledge entities.
var resourceClassNames = map[string]bool{
	"视频": true,
	"PPT": true,
	"文档": true,
}

// ResourceClassName reports whether name denotes an unsupported
// resource-type entity.
func ResourceClassName(name string) bool { return resourceClassNames[name] }

var relationClassNames = map[Relation]string{
	Contain: "包含关系",
	Order:   "次序关系",
}

// ClassName returns the relation class_name written to KT-SQEP files.
func (r Relation) ClassName() string { return relationClassNames[r] }

// RelationByClassName resolves a file class_name back to a relation kind.
func RelationByClassName(name string) (Relation, bool) {
	for r, n := range relationClassNames {
		if n == name {
			return r, true
		}
	}
	return "", false
}

// Unsupported upstream relation kinds, recognized by name only.
var unsupportedRelationClassNames = map[string]string{
	"关键次序关系": "critical-order",
	"资源连接关系": "connect-resource",
}

// UnsupportedRelationClassName reports whether name denotes a relation kind
// outside this schema, and if so which one.
func UnsupportedRelationClassName(name string) (string, bool) {
	kind, ok := unsupportedRelationClassNames[name]
	return kind, ok
}

// AttachOrder is the fixed bit order of the attach code string in KT-SQEP
// files: thinking, political, question, knowledge, example, practice.
var AttachOrder = [6]AddonType{Thinking, Political, Question, Knowledge, Example, Practice}

// Attach encodes the set as the fixed-order 0/1 string stored in the attach
// element, e.g. "110100".
func (s AddonSet) Attach() string {
	b := make([]byte, len(AttachOrder))
	for i, t := range AttachOrder {
		if s[t] {
			b[i] = '1'
		} else {
			b[i] = '0'
		}
	}
	return string(b)
}

// ParseAttach decodes an attach code string back into a set.
func ParseAttach(code string) (AddonSet, error) {
	if len(code) != len(AttachOrder) {
		return nil, &InvalidCodeError{Kind: "attach", Code: code}
	}
	s := make(AddonSet, len(AttachOrder))
	for i, t := range AttachOrder {
		switch code[i] {
		case '1':
			s[t] = true
		case '0':
		default:
			return nil, &InvalidCodeError{Kind: "attach", Code: code}
		}
	}
	return s, nil
}
