package shader

import (
	"fmt"
	"regexp"
	"strings"
)

// identifierRegex matches identifiers eligible for define value substitution.
var identifierRegex = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// condFrame is one level of #ifdef nesting.
type condFrame struct {
	// parentActive is whether the enclosing block emits lines.
	parentActive bool
	// taken is whether the current branch emits lines.
	taken bool
	// seenElse guards against a second #else.
	seenElse bool
	// line is where the block opened, for diagnostics.
	line int
}

// Preprocess runs the define preprocessor over variant text so the result is plain WGSL.
// Supported directives are #define, #undef, #ifdef, #ifndef, #else and #endif. Valued defines
// are substituted wherever their name appears as a whole identifier. #version, #line and
// #pragma lines are dropped. Every directive and every inactive line is replaced with an empty
// line so line numbers in compiler diagnostics match the input.
//
// Parameters:
//   - source: the variant text
//
// Returns:
//   - string: the processed WGSL
//   - error: an error naming the offending line for malformed or unbalanced directives
func Preprocess(source string) (string, error) {
	defines := make(map[string]string)
	var stack []condFrame
	active := true

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))

	for i, raw := range lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(raw)

		if !strings.HasPrefix(trimmed, "#") {
			if active {
				out = append(out, substitute(raw, defines))
			} else {
				out = append(out, "")
			}
			continue
		}

		directive, rest, _ := strings.Cut(trimmed[1:], " ")
		directive = strings.TrimSpace(directive)
		rest = strings.TrimSpace(rest)
		out = append(out, "")

		switch directive {
		case "version", "line", "pragma":
		case "define":
			if !active {
				continue
			}
			name, value, _ := strings.Cut(rest, " ")
			if !isIdentifier(name) {
				return "", fmt.Errorf("line %d: malformed #define %q", lineNo, rest)
			}
			defines[name] = strings.TrimSpace(value)
		case "undef":
			if !active {
				continue
			}
			if !isIdentifier(rest) {
				return "", fmt.Errorf("line %d: malformed #undef %q", lineNo, rest)
			}
			delete(defines, rest)
		case "ifdef", "ifndef":
			if !isIdentifier(rest) {
				return "", fmt.Errorf("line %d: malformed #%s %q", lineNo, directive, rest)
			}
			_, defined := defines[rest]
			cond := defined == (directive == "ifdef")
			stack = append(stack, condFrame{parentActive: active, taken: cond, line: lineNo})
			active = active && cond
		case "else":
			if len(stack) == 0 {
				return "", fmt.Errorf("line %d: #else without #ifdef", lineNo)
			}
			top := &stack[len(stack)-1]
			if top.seenElse {
				return "", fmt.Errorf("line %d: duplicate #else for block opened at line %d", lineNo, top.line)
			}
			top.seenElse = true
			top.taken = !top.taken
			active = top.parentActive && top.taken
		case "endif":
			if len(stack) == 0 {
				return "", fmt.Errorf("line %d: #endif without #ifdef", lineNo)
			}
			active = stack[len(stack)-1].parentActive
			stack = stack[:len(stack)-1]
		default:
			return "", fmt.Errorf("line %d: unknown directive #%s", lineNo, directive)
		}
	}

	if len(stack) > 0 {
		return "", fmt.Errorf("line %d: unterminated #%s block", stack[len(stack)-1].line, "ifdef")
	}
	return strings.Join(out, "\n"), nil
}

// substitute replaces every whole identifier that names a valued define with its value.
func substitute(line string, defines map[string]string) string {
	if len(defines) == 0 {
		return line
	}
	return identifierRegex.ReplaceAllStringFunc(line, func(id string) string {
		if v, ok := defines[id]; ok && v != "" {
			return v
		}
		return id
	})
}

func isIdentifier(s string) bool {
	return s != "" && identifierRegex.FindString(s) == s
}
