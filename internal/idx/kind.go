package idx

// SymbolKind classifies a symbol for UI purposes. The core treats it
// opaquely except for equality.
type SymbolKind uint8

const (
	KindUnknown SymbolKind = iota
	KindNamespace
	KindClass
	KindStruct
	KindUnion
	KindEnum
	KindEnumMember
	KindField
	KindFunction
	KindMethod
	KindVariable
	KindParameter
	KindTypeAlias
	KindConcept
	KindMacro
	KindModule
	KindLabel
)

var symbolKindNames = [...]string{
	KindUnknown:    "unknown",
	KindNamespace:  "namespace",
	KindClass:      "class",
	KindStruct:     "struct",
	KindUnion:      "union",
	KindEnum:       "enum",
	KindEnumMember: "enum_member",
	KindField:      "field",
	KindFunction:   "function",
	KindMethod:     "method",
	KindVariable:   "variable",
	KindParameter:  "parameter",
	KindTypeAlias:  "type_alias",
	KindConcept:    "concept",
	KindMacro:      "macro",
	KindModule:     "module",
	KindLabel:      "label",
}

func (k SymbolKind) String() string {
	if int(k) < len(symbolKindNames) {
		return symbolKindNames[k]
	}
	return "unknown"
}

// RelationKind is a bit-set enum: a single Relation may (conceptually) be
// tagged with multiple purposes, but each stored Relation record carries
// exactly one RelationKind value for the occasion it was recorded for; the
// bit-set nature matters for lookup's relation-kind filter masks.
type RelationKind uint32

const (
	RelationDeclaration RelationKind = 1 << iota
	RelationDefinition
	RelationReference
	RelationRead
	RelationWrite
	RelationInterface
	RelationImplementation
	RelationTypeDefinition
	RelationBase
	RelationDerived
	RelationConstructor
	RelationDestructor
	RelationCaller
	RelationCallee
)

// AllRelationKinds is a mask matching every relation kind; used as the
// default filter for a plain "find references" query.
const AllRelationKinds RelationKind = RelationDeclaration | RelationDefinition |
	RelationReference | RelationRead | RelationWrite | RelationInterface |
	RelationImplementation | RelationTypeDefinition | RelationBase |
	RelationDerived | RelationConstructor | RelationDestructor |
	RelationCaller | RelationCallee

// Has reports whether mask includes kind.
func (mask RelationKind) Has(kind RelationKind) bool {
	return mask&kind != 0
}

var relationKindNames = map[RelationKind]string{
	RelationDeclaration:    "declaration",
	RelationDefinition:     "definition",
	RelationReference:      "reference",
	RelationRead:           "read",
	RelationWrite:          "write",
	RelationInterface:      "interface",
	RelationImplementation: "implementation",
	RelationTypeDefinition: "type_definition",
	RelationBase:           "base",
	RelationDerived:        "derived",
	RelationConstructor:    "constructor",
	RelationDestructor:     "destructor",
	RelationCaller:         "caller",
	RelationCallee:         "callee",
}

func (k RelationKind) String() string {
	if name, ok := relationKindNames[k]; ok {
		return name
	}
	return "combined"
}
