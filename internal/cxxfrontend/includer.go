package cxxfrontend

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/standardbeagle/hctxindex/internal/ast"
)

// segment records one contiguous run of bytes in the expanded buffer that
// came verbatim from one original file, starting at that file's offset 0
// (every #include splices a whole file, never a partial range).
type segment struct {
	file     string
	bufStart uint32
	bufEnd   uint32
}

// condRange records one contiguous run of the expanded buffer that was
// spliced in while at least one #if/#ifdef/#ifndef block was open (spec
// §3 glossary "dependent element ... whose presence varies across
// canonical contexts"): a declaration whose range falls in one of these
// is conditional on whatever macro state produced this parse.
type condRange struct {
	bufStart uint32
	bufEnd   uint32
}

// condFrame is one level of #if/#ifdef/#ifndef nesting.
type condFrame struct {
	parentActive bool // whether the enclosing context was active
	branchActive bool // whether this specific arm's condition currently holds
	taken        bool // whether some arm of this chain has already matched
}

// includer performs textual #include expansion plus a minimal
// #if/#ifdef/#ifndef/#elif/#else/#endif/#define/#undef evaluator: no
// macro substitution or function-like macro expansion, just enough
// conditional-compilation tracking to know which spliced text was gated
// on a macro and to skip branches that don't apply. This stands in for
// the preprocessing stage a clang-based front end gets for free;
// tree-sitter-cpp only parses already-preprocessed text, so something has
// to produce it.
//
// No preprocessor or include-resolution library exists anywhere in the
// example pack, so this is hand-rolled rather than adapted from a
// teacher file — see DESIGN.md.
type includer struct {
	quoteDirs []string
	angleDirs []string
	visited   map[string]bool
	edges     []ast.IncludeEdge
	segments  []segment
	buf       bytes.Buffer
	maxDepth  int

	defines   map[string]string
	condStack []*condFrame

	conditionalRanges []condRange
	condOpen          bool
	condRangeStart    uint32
}

func newIncluder(argv []string) *includer {
	inc := &includer{
		visited:  make(map[string]bool),
		maxDepth: 200,
		defines:  make(map[string]string),
	}
	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch {
		case arg == "-I" || arg == "-isystem" || arg == "-iquote":
			if i+1 < len(argv) {
				inc.angleDirs = append(inc.angleDirs, argv[i+1])
				if arg == "-iquote" {
					inc.quoteDirs = append(inc.quoteDirs, argv[i+1])
				}
				i++
			}
		case strings.HasPrefix(arg, "-I"):
			inc.angleDirs = append(inc.angleDirs, strings.TrimPrefix(arg, "-I"))
		case strings.HasPrefix(arg, "-isystem"):
			inc.angleDirs = append(inc.angleDirs, strings.TrimPrefix(arg, "-isystem"))
		case arg == "-D":
			if i+1 < len(argv) {
				inc.applyCommandLineDefine(argv[i+1])
				i++
			}
		case strings.HasPrefix(arg, "-D"):
			inc.applyCommandLineDefine(strings.TrimPrefix(arg, "-D"))
		}
	}
	return inc
}

func (inc *includer) applyCommandLineDefine(spec string) {
	name, value, hasValue := strings.Cut(spec, "=")
	if name == "" {
		return
	}
	if !hasValue {
		value = "1"
	}
	inc.defines[name] = value
}

// expand returns the fully inlined source text for mainFile plus every
// header it transitively includes, and populates edges/segments as a side
// effect.
func (inc *includer) expand(mainFile string) ([]byte, error) {
	if err := inc.process(mainFile, -1, 0); err != nil {
		return nil, err
	}
	inc.closeConditionalRange()
	return inc.buf.Bytes(), nil
}

// process splices file's content into the buffer, recursively expanding
// the #include directives it finds. parentEdge is the index into
// inc.edges of the include that pulled file in, or -1 for the main file.
func (inc *includer) process(file string, parentEdge int, depth int) error {
	if depth > inc.maxDepth {
		return fmt.Errorf("include depth exceeded at %s", file)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}

	inc.visited[file] = true

	segStart := uint32(inc.buf.Len())
	dir := filepath.Dir(file)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	lineNo := uint32(0)
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		if directive, rest, ok := parseDirective(line); ok {
			switch directive {
			case "ifdef", "ifndef", "if":
				inc.pushCond(directive, rest)
				inc.buf.WriteByte('\n')
				inc.syncConditionalRange()
				continue
			case "elif":
				inc.elifCond(rest)
				inc.buf.WriteByte('\n')
				inc.syncConditionalRange()
				continue
			case "else":
				inc.elseCond()
				inc.buf.WriteByte('\n')
				inc.syncConditionalRange()
				continue
			case "endif":
				inc.popCond()
				inc.buf.WriteByte('\n')
				inc.syncConditionalRange()
				continue
			case "define":
				if inc.active() {
					inc.applyDefine(rest)
				}
				inc.buf.WriteByte('\n')
				continue
			case "undef":
				if inc.active() {
					inc.applyUndef(rest)
				}
				inc.buf.WriteByte('\n')
				continue
			case "include":
				if !inc.active() {
					inc.buf.WriteByte('\n')
					continue
				}

				target, angle, iok := parseIncludeTarget(rest)
				if !iok {
					inc.buf.WriteString(line)
					inc.buf.WriteByte('\n')
					continue
				}

				resolved, found := inc.resolve(dir, target, angle)
				if !found {
					// Unresolvable include (system header not on any search
					// path): leave a blank line so offsets stay in sync but
					// record nothing to recurse into.
					inc.buf.WriteByte('\n')
					continue
				}

				if segStart < uint32(inc.buf.Len()) {
					inc.segments = append(inc.segments, segment{file: file, bufStart: segStart, bufEnd: uint32(inc.buf.Len())})
				}

				edgeIdx := len(inc.edges)
				inc.edges = append(inc.edges, ast.IncludeEdge{
					FromFile:              file,
					ToFile:                resolved,
					Line:                  lineNo,
					ParentIndex:           parentEdge,
					GuardedAgainstReparse: inc.visited[resolved],
				})

				if inc.visited[resolved] {
					inc.buf.WriteByte('\n')
				} else if err := inc.process(resolved, edgeIdx, depth+1); err != nil {
					return err
				}

				segStart = uint32(inc.buf.Len())
				continue
			default:
				// Unrecognized directive (#pragma, #error, #line, ...):
				// fall through to be written verbatim below when active,
				// same as before conditional tracking existed.
			}
		}

		if !inc.active() {
			inc.buf.WriteByte('\n')
			continue
		}
		inc.buf.WriteString(line)
		inc.buf.WriteByte('\n')
	}

	if segStart < uint32(inc.buf.Len()) {
		inc.segments = append(inc.segments, segment{file: file, bufStart: segStart, bufEnd: uint32(inc.buf.Len())})
	}

	return scanner.Err()
}

// locate maps an offset in the expanded buffer back to the original file
// and its local byte offset within that file's own content.
func (inc *includer) locate(bufOffset uint32) (file string, localOffset uint32, ok bool) {
	for _, seg := range inc.segments {
		if bufOffset >= seg.bufStart && bufOffset < seg.bufEnd {
			return seg.file, bufOffset - seg.bufStart, true
		}
	}
	return "", 0, false
}

// conditionalAt reports whether bufOffset fell inside an active
// #if/#ifdef/#ifndef block at splice time.
func (inc *includer) conditionalAt(bufOffset uint32) bool {
	for _, cr := range inc.conditionalRanges {
		if bufOffset >= cr.bufStart && bufOffset < cr.bufEnd {
			return true
		}
	}
	return false
}

// syncConditionalRange opens or closes the pending conditionalRanges entry
// depending on whether the includer is currently inside an active
// conditional block, called right after every directive that can change
// that state.
func (inc *includer) syncConditionalRange() {
	conditional := len(inc.condStack) > 0 && inc.active()
	if conditional == inc.condOpen {
		return
	}
	if conditional {
		inc.condOpen = true
		inc.condRangeStart = uint32(inc.buf.Len())
		return
	}
	inc.closeConditionalRange()
}

func (inc *includer) closeConditionalRange() {
	if !inc.condOpen {
		return
	}
	inc.condOpen = false
	end := uint32(inc.buf.Len())
	if end > inc.condRangeStart {
		inc.conditionalRanges = append(inc.conditionalRanges, condRange{bufStart: inc.condRangeStart, bufEnd: end})
	}
}

// active reports whether the includer's current nesting position is live:
// every directive body above the top of condStack matched, and the arm at
// the top of the stack currently matches too.
func (inc *includer) active() bool {
	if len(inc.condStack) == 0 {
		return true
	}
	top := inc.condStack[len(inc.condStack)-1]
	return top.parentActive && top.branchActive
}

func (inc *includer) pushCond(directive, rest string) {
	parentActive := inc.active()
	cond := parentActive && inc.evalCondition(directive, rest)
	inc.condStack = append(inc.condStack, &condFrame{
		parentActive: parentActive,
		branchActive: cond,
		taken:        cond,
	})
}

func (inc *includer) elifCond(rest string) {
	if len(inc.condStack) == 0 {
		return
	}
	top := inc.condStack[len(inc.condStack)-1]
	if top.taken || !top.parentActive {
		top.branchActive = false
		return
	}
	cond := inc.evalCondition("if", rest)
	top.branchActive = cond
	if cond {
		top.taken = true
	}
}

func (inc *includer) elseCond() {
	if len(inc.condStack) == 0 {
		return
	}
	top := inc.condStack[len(inc.condStack)-1]
	top.branchActive = top.parentActive && !top.taken
	if top.branchActive {
		top.taken = true
	}
}

func (inc *includer) popCond() {
	if len(inc.condStack) == 0 {
		return
	}
	inc.condStack = inc.condStack[:len(inc.condStack)-1]
}

// evalCondition dispatches a #ifdef/#ifndef/#if/#elif condition to the
// right evaluator.
func (inc *includer) evalCondition(directive, rest string) bool {
	switch directive {
	case "ifdef":
		return inc.isDefined(rest)
	case "ifndef":
		return !inc.isDefined(rest)
	default:
		return inc.evalExpr(rest)
	}
}

func (inc *includer) isDefined(name string) bool {
	name = strings.TrimSpace(name)
	if i := strings.IndexAny(name, " \t"); i >= 0 {
		name = name[:i]
	}
	_, ok := inc.defines[name]
	return ok
}

// evalExpr handles the small subset of #if/#elif expressions this front
// end models: defined(NAME) / defined NAME (with optional leading !), a
// bare macro name (true unless undefined or defined to "0"), and the
// integer literal 0. Anything more elaborate (arithmetic, && / ||) is
// treated as always-true, matching the permissive default a non-evaluating
// preprocessor would apply.
func (inc *includer) evalExpr(expr string) bool {
	expr = strings.TrimSpace(expr)
	negate := false
	for strings.HasPrefix(expr, "!") {
		negate = !negate
		expr = strings.TrimSpace(expr[1:])
	}

	var result bool
	switch {
	case strings.HasPrefix(expr, "defined"):
		arg := strings.TrimSpace(strings.TrimPrefix(expr, "defined"))
		arg = strings.TrimPrefix(arg, "(")
		arg = strings.TrimSuffix(arg, ")")
		result = inc.isDefined(arg)
	case expr == "0":
		result = false
	case expr == "":
		result = false
	default:
		if v, ok := inc.defines[expr]; ok {
			result = v != "0"
		} else if isIdentifier(expr) {
			result = false // undefined bare identifier: treated as 0, per the standard
		} else {
			result = true
		}
	}
	if negate {
		result = !result
	}
	return result
}

func isIdentifier(s string) bool {
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIdentByte(s[i]) {
			return false
		}
	}
	return true
}

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func (inc *includer) applyDefine(rest string) {
	rest = strings.TrimSpace(rest)
	i := 0
	for i < len(rest) && isIdentByte(rest[i]) {
		i++
	}
	name := rest[:i]
	if name == "" {
		return
	}
	value := strings.TrimSpace(rest[i:])
	inc.defines[name] = value
}

func (inc *includer) applyUndef(rest string) {
	name := strings.TrimSpace(rest)
	if i := strings.IndexAny(name, " \t("); i >= 0 {
		name = name[:i]
	}
	delete(inc.defines, name)
}

func (inc *includer) resolve(fromDir, spec string, angle bool) (string, bool) {
	if !angle {
		candidate := filepath.Join(fromDir, spec)
		if fileExists(candidate) {
			return filepath.Clean(candidate), true
		}
		for _, dir := range inc.quoteDirs {
			candidate := filepath.Join(dir, spec)
			if fileExists(candidate) {
				return filepath.Clean(candidate), true
			}
		}
	}
	for _, dir := range inc.angleDirs {
		candidate := filepath.Join(dir, spec)
		if fileExists(candidate) {
			return filepath.Clean(candidate), true
		}
	}
	if angle {
		return "", false
	}
	candidate := filepath.Join(fromDir, spec)
	return filepath.Clean(candidate), fileExists(candidate)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// parseDirective recognizes a (possibly leading-whitespace) preprocessor
// directive line and splits it into its name (the token right after '#')
// and the remainder of the line.
func parseDirective(line string) (name string, rest string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return "", "", false
	}
	body := strings.TrimSpace(trimmed[1:])
	for i := 0; i < len(body); i++ {
		if body[i] == ' ' || body[i] == '\t' {
			return body[:i], strings.TrimSpace(body[i:]), true
		}
	}
	return body, "", true
}

// parseIncludeTarget extracts the quoted or angle-bracketed filename from
// the remainder of a #include directive line (the part after "include").
func parseIncludeTarget(rest string) (target string, angle bool, ok bool) {
	rest = strings.TrimSpace(rest)
	if len(rest) < 2 {
		return "", false, false
	}

	switch rest[0] {
	case '"':
		end := strings.IndexByte(rest[1:], '"')
		if end < 0 {
			return "", false, false
		}
		return rest[1 : 1+end], false, true
	case '<':
		end := strings.IndexByte(rest[1:], '>')
		if end < 0 {
			return "", false, false
		}
		return rest[1 : 1+end], true, true
	default:
		return "", false, false
	}
}
