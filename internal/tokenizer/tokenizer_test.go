package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		minLen int
		want   []Token
	}{
		{
			name:   "hello world",
			line:   "hello world",
			minLen: 5,
			want:   []Token{{"hello", 1}, {"world", 7}},
		},
		{
			name:   "short and digit-led runs dropped",
			line:   "int x = 12345abc + value_1;",
			minLen: 5,
			want:   []Token{{"value_1", 20}},
		},
		{
			name:   "trailing run without separator",
			line:   "return counter",
			minLen: 5,
			want:   []Token{{"return", 1}, {"counter", 8}},
		},
		{
			name:   "scope operator",
			line:   "void Foo::Bar() {",
			minLen: 3,
			want:   []Token{{"void", 1}, {"Foo", 6}, {"Bar", 11}},
		},
		{
			name:   "non-ascii separates and counts one column",
			line:   "caféteria naïve_thing",
			minLen: 3,
			want:   []Token{{"caf", 1}, {"teria", 5}, {"ve_thing", 14}},
		},
		{
			name:   "underscore only",
			line:   "_____",
			minLen: 5,
			want:   []Token{{"_____", 1}},
		},
		{
			name:   "min length below one",
			line:   "a 1 b",
			minLen: 0,
			want:   []Token{{"a", 1}, {"b", 5}},
		},
		{
			name:   "empty line",
			line:   "",
			minLen: 5,
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.line, tt.minLen))
		})
	}
}

func TestTokenize_LengthAndDigitProperty(t *testing.T) {
	lines := []string{
		"static nsresult nsFooBar::DoSomething(int aIndex, 9lives, __init__)",
		"  for (var i = 0; i < 100000; i++) { total_sum += array_value[i]; }",
		"#define MAX_BUFFER_SIZE 4096",
		"ünïcödé_identifier — dash – separated",
	}

	for _, line := range lines {
		for minLen := 1; minLen <= 8; minLen++ {
			for _, tok := range Tokenize(line, minLen) {
				assert.GreaterOrEqual(t, len(tok.Text), minLen, "token %q in %q", tok.Text, line)
				assert.False(t, isDigit(tok.Text[0]), "token %q starts with a digit", tok.Text)
				for i := 0; i < len(tok.Text); i++ {
					assert.True(t, isWordByte(tok.Text[i]), "token %q has a non-word byte", tok.Text)
				}
			}
		}
	}
}

func TestTokenize_ColumnRoundTrip(t *testing.T) {
	lines := []string{
		"nsresult nsDocument::GetElementById(const nsAString& aId)",
		"    this.prototype.handleEvent = function handleEvent(event) {",
		"naïve façade_builder rôle",
	}

	for _, line := range lines {
		runes := []rune(line)
		for _, tok := range Tokenize(line, 1) {
			require.LessOrEqual(t, tok.Column-1+len(tok.Text), len(runes))
			got := string(runes[tok.Column-1 : tok.Column-1+len(tok.Text)])
			assert.Equal(t, tok.Text, got, "column %d in %q", tok.Column, line)

			// Re-tokenizing the token text alone yields the token itself.
			again := Tokenize(tok.Text, 1)
			require.Len(t, again, 1)
			assert.Equal(t, tok.Text, again[0].Text)
			assert.Equal(t, 1, again[0].Column)
		}
	}
}

func TestTokenize_CaseSensitive(t *testing.T) {
	got := Tokenize("GetValue getvalue GETVALUE", 5)
	require.Len(t, got, 3)
	assert.Equal(t, "GetValue", got[0].Text)
	assert.Equal(t, "getvalue", got[1].Text)
	assert.Equal(t, "GETVALUE", got[2].Text)
}

func TestFirst(t *testing.T) {
	tok, ok := First("  hello world", DefaultMinLength)
	require.True(t, ok)
	assert.Equal(t, Token{"hello", 3}, tok)

	_, ok = First("a b c", DefaultMinLength)
	assert.False(t, ok)

	_, ok = First(strings.Repeat("1", 10), DefaultMinLength)
	assert.False(t, ok)
}
