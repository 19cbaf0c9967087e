package fields

import "fmt"

// TokenKind identifies the lexical class of a token.
type TokenKind int

// Token kinds.
const (
	TokenName TokenKind = iota
	TokenComma
	TokenColonColon
	TokenTilde
	TokenPipe
	TokenBracketOpen
	TokenBracketClose
	TokenParenOpen
	TokenParenClose
	TokenSemicolon
	TokenBang
)

var tokenKindNames = [...]string{
	TokenName:         "NAME",
	TokenComma:        "COMMA",
	TokenColonColon:   "COLON_COLON",
	TokenTilde:        "TILDE",
	TokenPipe:         "PIPE",
	TokenBracketOpen:  "BRACKET_OPEN",
	TokenBracketClose: "BRACKET_CLOSE",
	TokenParenOpen:    "PAREN_OPEN",
	TokenParenClose:   "PAREN_CLOSE",
	TokenSemicolon:    "SEMICOLON",
	TokenBang:         "BANG",
}

// String returns the token kind name.
func (k TokenKind) String() string {
	if k >= 0 && int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token is a lexical unit of a fields expression. Start and End are byte
// offsets into the input; Text is the raw source slice.
type Token struct {
	Kind  TokenKind
	Text  string
	Start int
	End   int
}

// String formats the token for diagnostics.
func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d", t.Kind, t.Text, t.Start)
}

// symbolKinds maps single-byte structural symbols to their kinds. ':' is
// handled separately since only "::" is structural.
var symbolKinds = map[byte]TokenKind{
	',': TokenComma,
	'~': TokenTilde,
	'|': TokenPipe,
	'[': TokenBracketOpen,
	']': TokenBracketClose,
	'(': TokenParenOpen,
	')': TokenParenClose,
	';': TokenSemicolon,
	'!': TokenBang,
}

// Tokenize splits a fields expression into tokens. It never fails; malformed
// input surfaces as parser or validation errors.
//
// All structural symbols are ASCII, so scanning bytes is safe for UTF-8 input:
// multi-byte sequences never contain ASCII bytes and stay inside NAME tokens.
func Tokenize(input string) []Token {
	if input == "" {
		return nil
	}

	tokens := make([]Token, 0, len(input)/2+1)
	nameStart := -1

	flushName := func(end int) {
		if nameStart >= 0 {
			tokens = append(tokens, Token{Kind: TokenName, Text: input[nameStart:end], Start: nameStart, End: end})
			nameStart = -1
		}
	}

	for i := 0; i < len(input); i++ {
		c := input[i]

		if c == ':' {
			if i+1 < len(input) && input[i+1] == ':' {
				flushName(i)
				tokens = append(tokens, Token{Kind: TokenColonColon, Text: "::", Start: i, End: i + 2})
				i++
				continue
			}
			// a lone ':' belongs to a name, e.g. the preset ":simple"
			if nameStart < 0 {
				nameStart = i
			}
			continue
		}

		kind, structural := symbolKinds[c]
		if !structural {
			if nameStart < 0 {
				nameStart = i
			}
			continue
		}

		flushName(i)
		tokens = append(tokens, Token{Kind: kind, Text: input[i : i+1], Start: i, End: i + 1})
	}
	flushName(len(input))

	return tokens
}
