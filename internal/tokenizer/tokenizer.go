// Package tokenizer extracts identifier-like tokens from a line of source.
//
// A token is a maximal run of ASCII letters, digits and underscores. Every
// other character, non-ASCII included, separates tokens. Runs shorter than
// the minimum length or starting with a digit are dropped.
package tokenizer

// DefaultMinLength is the shortest token emitted by default.
const DefaultMinLength = 5

// Token is one identifier occurrence within a line.
type Token struct {
	Text string
	// Column is the 1-based character position of the first character.
	Column int
}

// Tokenize returns the tokens of line in order of appearance.
// A minLen below 1 is treated as 1.
func Tokenize(line string, minLen int) []Token {
	if minLen < 1 {
		minLen = 1
	}

	var tokens []Token
	start := -1 // byte offset of the current run
	startCol := 0
	col := 0

	emit := func(end int) {
		if end-start >= minLen && !isDigit(line[start]) {
			tokens = append(tokens, Token{Text: line[start:end], Column: startCol})
		}
		start = -1
	}

	for i, r := range line {
		col++
		if r < 0x80 && isWordByte(byte(r)) {
			if start < 0 {
				start = i
				startCol = col
			}
			continue
		}
		if start >= 0 {
			emit(i)
		}
	}
	if start >= 0 {
		emit(len(line))
	}
	return tokens
}

// First returns the first token of text, if any.
func First(text string, minLen int) (Token, bool) {
	tokens := Tokenize(text, minLen)
	if len(tokens) == 0 {
		return Token{}, false
	}
	return tokens[0], true
}

func isWordByte(c byte) bool {
	return c == '_' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
