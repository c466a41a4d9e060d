package condition

import (
	"fmt"
	"strings"
	"unicode"
)

// tokenKind identifies a lexical token.
type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokTrue
	tokFalse
	tokNull
	tokAnd
	tokOr
	tokNot
	tokEq
	tokNe
	tokLt
	tokLe
	tokGt
	tokGe
	tokIn
	tokDot
	tokComma
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
)

var tokenNames = map[tokenKind]string{
	tokEOF:      "end of input",
	tokNumber:   "number",
	tokString:   "string",
	tokIdent:    "identifier",
	tokTrue:     "true",
	tokFalse:    "false",
	tokNull:     "null",
	tokAnd:      "&&",
	tokOr:       "||",
	tokNot:      "!",
	tokEq:       "==",
	tokNe:       "!=",
	tokLt:       "<",
	tokLe:       "<=",
	tokGt:       ">",
	tokGe:       ">=",
	tokIn:       "in",
	tokDot:      ".",
	tokComma:    ",",
	tokLParen:   "(",
	tokRParen:   ")",
	tokLBracket: "[",
	tokRBracket: "]",
}

func (k tokenKind) String() string {
	if name, ok := tokenNames[k]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(k))
}

type token struct {
	kind tokenKind
	text string
	pos  int
}

var keywords = map[string]tokenKind{
	"true":      tokTrue,
	"false":     tokFalse,
	"null":      tokNull,
	"undefined": tokNull,
	"in":        tokIn,
}

// lex splits src into tokens. The returned slice always ends with tokEOF.
func lex(src string) ([]token, error) {
	var tokens []token
	runes := []rune(src)
	i := 0

	for i < len(runes) {
		r := runes[i]

		if unicode.IsSpace(r) {
			i++
			continue
		}

		start := i
		switch {
		case r == '&' || r == '|':
			if i+1 >= len(runes) || runes[i+1] != r {
				return nil, newSyntaxError(src, start, fmt.Sprintf("unexpected %q, expected %q", r, string([]rune{r, r})))
			}
			kind := tokAnd
			if r == '|' {
				kind = tokOr
			}
			tokens = append(tokens, token{kind: kind, text: string([]rune{r, r}), pos: start})
			i += 2

		case r == '=' || r == '!':
			// == and === are equality, != and !== inequality, a lone ! is negation
			n := 1
			for i+n < len(runes) && runes[i+n] == '=' && n < 3 {
				n++
			}
			switch {
			case r == '=' && n >= 2:
				tokens = append(tokens, token{kind: tokEq, text: string(runes[i : i+n]), pos: start})
			case r == '!' && n >= 2:
				tokens = append(tokens, token{kind: tokNe, text: string(runes[i : i+n]), pos: start})
			case r == '!':
				tokens = append(tokens, token{kind: tokNot, text: "!", pos: start})
			default:
				return nil, newSyntaxError(src, start, "assignment is not allowed, use ==")
			}
			i += n

		case r == '<' || r == '>':
			kind := tokLt
			if r == '>' {
				kind = tokGt
			}
			if i+1 < len(runes) && runes[i+1] == '=' {
				kind++ // tokLe follows tokLt, tokGe follows tokGt
				tokens = append(tokens, token{kind: kind, text: string(runes[i : i+2]), pos: start})
				i += 2
				continue
			}
			tokens = append(tokens, token{kind: kind, text: string(r), pos: start})
			i++

		case r == '.' && !(i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			tokens = append(tokens, token{kind: tokDot, text: ".", pos: start})
			i++
		case r == ',':
			tokens = append(tokens, token{kind: tokComma, text: ",", pos: start})
			i++
		case r == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: start})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: start})
			i++
		case r == '[':
			tokens = append(tokens, token{kind: tokLBracket, text: "[", pos: start})
			i++
		case r == ']':
			tokens = append(tokens, token{kind: tokRBracket, text: "]", pos: start})
			i++

		case r == '"' || r == '\'':
			text, next, err := lexString(src, runes, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokString, text: text, pos: start})
			i = next

		case unicode.IsDigit(r) || r == '.' || (r == '-' && i+1 < len(runes) && (unicode.IsDigit(runes[i+1]) || runes[i+1] == '.')):
			i++
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.' || runes[i] == 'e' || runes[i] == 'E' ||
				((runes[i] == '-' || runes[i] == '+') && (runes[i-1] == 'e' || runes[i-1] == 'E'))) {
				i++
			}
			tokens = append(tokens, token{kind: tokNumber, text: string(runes[start:i]), pos: start})

		case r == '_' || r == '$' || unicode.IsLetter(r):
			for i < len(runes) && (runes[i] == '_' || runes[i] == '$' || unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i])) {
				i++
			}
			word := string(runes[start:i])
			if kind, ok := keywords[word]; ok {
				tokens = append(tokens, token{kind: kind, text: word, pos: start})
			} else {
				tokens = append(tokens, token{kind: tokIdent, text: word, pos: start})
			}

		default:
			return nil, newSyntaxError(src, start, fmt.Sprintf("unexpected character %q", r))
		}
	}

	tokens = append(tokens, token{kind: tokEOF, pos: len(runes)})
	return tokens, nil
}

// lexString reads a quoted string starting at runes[i] and returns its
// unescaped value and the index just past the closing quote.
func lexString(src string, runes []rune, i int) (string, int, error) {
	quote := runes[i]
	start := i
	i++

	var sb strings.Builder
	for i < len(runes) {
		r := runes[i]
		switch {
		case r == '\\':
			if i+1 >= len(runes) {
				return "", 0, newSyntaxError(src, i, "unterminated escape sequence")
			}
			switch esc := runes[i+1]; esc {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			default:
				sb.WriteRune(esc)
			}
			i += 2
		case r == quote:
			return sb.String(), i + 1, nil
		default:
			sb.WriteRune(r)
			i++
		}
	}

	return "", 0, newSyntaxError(src, start, "unterminated string literal")
}
