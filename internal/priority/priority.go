// Package priority ranks identifier occurrences by how much the surrounding
// line looks like a definition. It is a lexical heuristic, not a parser.
package priority

import "strings"

// Priorities, lowest to highest.
const (
	Test    = 0
	Normal  = 1
	Impl    = 2
	Class   = 3
	IDL     = 4
	IDLHigh = 5

	Min = Test
	Max = IDLHigh
)

// Family groups extensions that share classification rules.
type Family int

const (
	FamilyOther Family = iota
	FamilyInterface
	FamilyProtocol
	FamilyC
	FamilyScript
)

func (f Family) String() string {
	switch f {
	case FamilyInterface:
		return "interface"
	case FamilyProtocol:
		return "protocol"
	case FamilyC:
		return "c"
	case FamilyScript:
		return "script"
	default:
		return "other"
	}
}

var families = map[string]Family{
	".idl":    FamilyInterface,
	".webidl": FamilyInterface,
	".ipdl":   FamilyProtocol,
	".c":      FamilyC,
	".cc":     FamilyC,
	".cpp":    FamilyC,
	".cxx":    FamilyC,
	".h":      FamilyC,
	".hh":     FamilyC,
	".hpp":    FamilyC,
	".java":   FamilyC,
	".js":     FamilyScript,
	".jsm":    FamilyScript,
}

// FamilyOf maps a file extension (with the dot, case-sensitive) to its family.
func FamilyOf(ext string) Family {
	return families[ext]
}

// Candidate is the input to a rule.
type Candidate struct {
	Tag  string
	Line string
}

// Rule assigns Priority when Match holds.
type Rule struct {
	Name     string
	Match    func(Candidate) bool
	Priority int
}

func contains(s string) func(Candidate) bool {
	return func(c Candidate) bool { return strings.Contains(c.Line, s) }
}

func containsNot(s, not string) func(Candidate) bool {
	return func(c Candidate) bool {
		return strings.Contains(c.Line, s) && !strings.Contains(c.Line, not)
	}
}

func always(Candidate) bool { return true }

// Rules are evaluated in order; the first match wins. A family whose rules
// all miss falls through to the filename rule.
var Rules = map[Family][]Rule{
	FamilyInterface: {
		{Name: "interface-declaration", Match: containsNot("interface", ";"), Priority: IDLHigh},
		{Name: "interface-member", Match: always, Priority: IDL},
	},
	FamilyProtocol: {
		{Name: "protocol-declaration", Match: contains("protocol"), Priority: IDLHigh},
		{Name: "protocol-member", Match: always, Priority: IDL},
	},
	FamilyC: {
		{Name: "macro", Match: contains("define"), Priority: IDL},
		{Name: "class-declaration", Match: containsNot("class", ";"), Priority: Class},
		{Name: "scoped-implementation", Match: func(c Candidate) bool {
			return strings.Contains(strings.ToLower(c.Line), "::"+strings.ToLower(c.Tag))
		}, Priority: Impl},
	},
	FamilyScript: {
		{Name: "prototype", Match: contains("prototype"), Priority: Class},
		{Name: "function", Match: contains("function"), Priority: Impl},
	},
}

// Classify returns the priority of tag occurring on line in a file with the
// given extension and basename.
func Classify(tag, line, ext, basename string) int {
	return ClassifyFamily(FamilyOf(ext), tag, line, basename)
}

// ClassifyFamily is Classify with the family already resolved, for callers
// that classify every line of one file.
func ClassifyFamily(f Family, tag, line, basename string) int {
	c := Candidate{Tag: tag, Line: line}
	for _, r := range Rules[f] {
		if r.Match(c) {
			return r.Priority
		}
	}
	if strings.Contains(strings.ToLower(basename), "test") {
		return Test
	}
	return Normal
}
