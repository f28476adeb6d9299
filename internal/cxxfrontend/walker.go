package cxxfrontend

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/hctxindex/internal/ast"
	"github.com/standardbeagle/hctxindex/internal/idx"
)

// walker descends one expanded translation unit's tree-sitter-cpp parse
// tree and emits ast.Occasion/ast.CallSite values. It has no semantic
// model of the language: canonical names are a lexical qualified-name
// join (namespace/class scope stack plus the declared name), not a
// USR. Two distinct overloads of the same name in the same scope collide
// onto one symbol; this is a known imprecision of a parser-only front
// end, documented in DESIGN.md alongside the original's own approximate
// canonicalization cases.
type walker struct {
	inc      *includer
	interest ast.InterestFilter
	content  []byte

	scope   []string
	caller  *ast.Decl
	touched map[string]bool

	occasions []ast.Occasion
	callSites []ast.CallSite
}

func newWalker(inc *includer, interest ast.InterestFilter, content []byte) *walker {
	return &walker{
		inc:      inc,
		interest: interest,
		content:  content,
		touched:  make(map[string]bool),
	}
}

func (w *walker) text(n *sitter.Node) string {
	return string(w.content[n.StartByte():n.EndByte()])
}

func (w *walker) accepts(file string) bool {
	return w.interest == nil || w.interest(file)
}

// declAt builds a Decl for node n, named name, of kind. Returns ok=false
// if n's location doesn't map to an interested file.
func (w *walker) declAt(n *sitter.Node, name string, kind ast.DeclKind) (ast.Decl, bool) {
	file, localOff, ok := w.inc.locate(n.StartByte())
	if !ok || !w.accepts(file) {
		return ast.Decl{}, false
	}
	_, endOff, _ := w.inc.locate(n.EndByte() - 1)
	rng := idx.Range{Begin: localOff, End: endOff + 1}

	w.touched[file] = true

	return ast.Decl{
		CanonicalText:  canonicalText(kind, w.scope, name),
		File:           file,
		Name:           name,
		Kind:           kind,
		Range:          rng,
		SpellingRange:  rng,
		HasSpellingLoc: true,
		ExpansionRange: rng,
		RangeLocKind:   ast.LocFile,
		Conditional:    w.inc.conditionalAt(n.StartByte()),
	}, true
}

func canonicalText(kind ast.DeclKind, scope []string, name string) string {
	var sb strings.Builder
	sb.WriteString("cxx:")
	for _, s := range scope {
		sb.WriteString(s)
		sb.WriteString("::")
	}
	sb.WriteString(name)
	return sb.String()
}

// walk recurses the tree, dispatching on node kind. It is the single
// entry point; each case decides whether to push scope, emit a decl, or
// just recurse into children unchanged.
func (w *walker) walk(n *sitter.Node) {
	if n == nil {
		return
	}

	switch n.Kind() {
	case "namespace_definition":
		w.walkNamespace(n)
		return
	case "class_specifier", "struct_specifier", "union_specifier":
		w.walkAggregate(n)
		return
	case "enum_specifier":
		w.walkEnum(n)
		return
	case "function_definition":
		w.walkFunctionDefinition(n)
		return
	case "field_declaration":
		w.walkFieldDeclaration(n)
		return
	case "declaration":
		w.walkTopLevelDeclaration(n)
		return
	case "call_expression":
		w.walkCallExpression(n)
	}

	for i := uint(0); i < n.ChildCount(); i++ {
		w.walk(n.Child(i))
	}
}

func (w *walker) walkNamespace(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	name := "<anonymous>"
	if nameNode != nil {
		name = w.text(nameNode)
		if decl, ok := w.declAt(nameNode, name, ast.DeclNamespace); ok {
			w.occasions = append(w.occasions, ast.Occasion{Subject: decl, Kind: idx.RelationDefinition})
		}
	}

	w.scope = append(w.scope, name)
	if body := n.ChildByFieldName("body"); body != nil {
		for i := uint(0); i < body.ChildCount(); i++ {
			w.walk(body.Child(i))
		}
	}
	w.scope = w.scope[:len(w.scope)-1]
}

func (w *walker) walkAggregate(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	kind := ast.DeclClass
	switch n.Kind() {
	case "struct_specifier":
		kind = ast.DeclStruct
	case "union_specifier":
		kind = ast.DeclUnion
	}

	name := "<anonymous>"
	if nameNode != nil {
		name = w.text(nameNode)
		if decl, ok := w.declAt(nameNode, name, kind); ok {
			w.occasions = append(w.occasions, ast.Occasion{Subject: decl, Kind: idx.RelationDefinition})
		}
	}

	w.scope = append(w.scope, name)
	if body := n.ChildByFieldName("body"); body != nil {
		for i := uint(0); i < body.ChildCount(); i++ {
			w.walk(body.Child(i))
		}
	}
	w.scope = w.scope[:len(w.scope)-1]
}

func (w *walker) walkEnum(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	name := "<anonymous>"
	if nameNode != nil {
		name = w.text(nameNode)
		if decl, ok := w.declAt(nameNode, name, ast.DeclEnum); ok {
			w.occasions = append(w.occasions, ast.Occasion{Subject: decl, Kind: idx.RelationDefinition})
		}
	}

	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	w.scope = append(w.scope, name)
	for i := uint(0); i < body.ChildCount(); i++ {
		child := body.Child(i)
		if child.Kind() != "enumerator" {
			continue
		}
		memberName := child.ChildByFieldName("name")
		if memberName == nil {
			continue
		}
		if decl, ok := w.declAt(memberName, w.text(memberName), ast.DeclEnumMember); ok {
			w.occasions = append(w.occasions, ast.Occasion{Subject: decl, Kind: idx.RelationDefinition})
		}
	}
	w.scope = w.scope[:len(w.scope)-1]
}

func (w *walker) walkFieldDeclaration(n *sitter.Node) {
	declarator := n.ChildByFieldName("declarator")
	base, nameNode := unwrapDeclarator(declarator)
	if nameNode == nil {
		return
	}

	kind := ast.DeclField
	relation := idx.RelationDefinition
	if base != nil && base.Kind() == "function_declarator" {
		kind = ast.DeclMethod
		relation = idx.RelationDeclaration
	}

	if decl, ok := w.declAt(nameNode, w.text(nameNode), kind); ok {
		w.occasions = append(w.occasions, ast.Occasion{Subject: decl, Kind: relation})
	}
}

func (w *walker) walkTopLevelDeclaration(n *sitter.Node) {
	declarator := n.ChildByFieldName("declarator")
	base, nameNode := unwrapDeclarator(declarator)
	if nameNode == nil {
		for i := uint(0); i < n.ChildCount(); i++ {
			w.walk(n.Child(i))
		}
		return
	}

	if base != nil && base.Kind() == "function_declarator" {
		if decl, ok := w.declAt(nameNode, w.text(nameNode), ast.DeclFunction); ok {
			w.occasions = append(w.occasions, ast.Occasion{Subject: decl, Kind: idx.RelationDeclaration})
		}
		return
	}

	if decl, ok := w.declAt(nameNode, w.text(nameNode), ast.DeclVariable); ok {
		w.occasions = append(w.occasions, ast.Occasion{Subject: decl, Kind: idx.RelationDefinition})
	}
}

func (w *walker) walkFunctionDefinition(n *sitter.Node) {
	declarator := n.ChildByFieldName("declarator")
	fnDeclarator, nameNode := unwrapDeclarator(declarator)
	if fnDeclarator == nil || fnDeclarator.Kind() != "function_declarator" || nameNode == nil {
		for i := uint(0); i < n.ChildCount(); i++ {
			w.walk(n.Child(i))
		}
		return
	}

	name := w.text(nameNode)
	kind := ast.DeclFunction
	extraScope := ""

	if nameNode.Kind() == "qualified_identifier" {
		scopeNode := nameNode.ChildByFieldName("scope")
		identNode := nameNode.ChildByFieldName("name")
		if identNode != nil {
			name = w.text(identNode)
		}
		if scopeNode != nil {
			extraScope = w.text(scopeNode)
		}
	} else if nameNode.Kind() == "destructor_name" {
		kind = ast.DeclDestructor
	}

	if len(w.scope) > 0 && name == w.scope[len(w.scope)-1] {
		kind = ast.DeclConstructor
	} else if strings.HasPrefix(name, "~") {
		kind = ast.DeclDestructor
	}

	if extraScope != "" {
		w.scope = append(w.scope, extraScope)
		defer func() { w.scope = w.scope[:len(w.scope)-1] }()
	}

	decl, ok := w.declAt(nameNode, name, kind)
	if ok {
		w.occasions = append(w.occasions, ast.Occasion{Subject: decl, Kind: idx.RelationDefinition})
	}

	prevCaller := w.caller
	if ok {
		callerCopy := decl
		w.caller = &callerCopy
	}

	if body := n.ChildByFieldName("body"); body != nil {
		w.walk(body)
	}

	w.caller = prevCaller
}

func (w *walker) walkCallExpression(n *sitter.Node) {
	if w.caller == nil {
		return
	}

	fn := n.ChildByFieldName("function")
	if fn == nil {
		return
	}

	var nameNode *sitter.Node
	switch fn.Kind() {
	case "identifier", "qualified_identifier":
		nameNode = fn
	case "field_expression":
		nameNode = fn.ChildByFieldName("field")
	}
	if nameNode == nil {
		return
	}

	name := w.text(nameNode)
	if nameNode.Kind() == "qualified_identifier" {
		if ident := nameNode.ChildByFieldName("name"); ident != nil {
			name = w.text(ident)
		}
	}

	// Callee canonicalization deliberately ignores the caller's own scope:
	// without semantic resolution there is no way to know which scope a
	// bare call resolves against, and assuming "the caller's scope" is
	// wrong far more often (any call to a global function from inside a
	// class method) than assuming global scope. Documented as a known
	// imprecision in DESIGN.md.
	savedScope := w.scope
	w.scope = nil
	callee, ok := w.declAt(nameNode, name, ast.DeclFunction)
	w.scope = savedScope
	if !ok {
		return
	}

	_, begin, begOK := w.inc.locate(n.StartByte())
	_, end, endOK := w.inc.locate(n.EndByte() - 1)
	if !begOK || !endOK {
		return
	}

	w.callSites = append(w.callSites, ast.CallSite{
		Caller: *w.caller,
		Callee: callee,
		Range:  idx.Range{Begin: begin, End: end + 1},
	})
}

func (w *walker) touchedFiles() []string {
	out := make([]string, 0, len(w.touched))
	for f := range w.touched {
		out = append(out, f)
	}
	return out
}

// unwrapDeclarator strips pointer/reference/array/parenthesized wrapper
// declarators to find the innermost node (typically a function_declarator
// or an identifier-like leaf) plus the name node inside it.
func unwrapDeclarator(n *sitter.Node) (base *sitter.Node, name *sitter.Node) {
	for n != nil {
		switch n.Kind() {
		case "pointer_declarator", "reference_declarator", "array_declarator", "parenthesized_declarator":
			n = n.ChildByFieldName("declarator")
			continue
		case "init_declarator":
			n = n.ChildByFieldName("declarator")
			continue
		case "function_declarator":
			inner := n.ChildByFieldName("declarator")
			_, nm := unwrapDeclarator(inner)
			if nm == nil {
				nm = inner
			}
			return n, nm
		case "identifier", "field_identifier", "type_identifier", "qualified_identifier", "destructor_name", "operator_name":
			return nil, n
		default:
			return nil, nil
		}
	}
	return nil, nil
}
