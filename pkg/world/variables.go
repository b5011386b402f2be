package world

import "strings"

// substituteCaptures replaces %0..%99 tokens in text with the captures of
// the most recent match. %0 is the whole matched text. Two-digit tokens
// are taken greedily so %10 is capture ten, not capture one followed by a
// zero. %% produces a literal percent sign. Tokens for captures the
// pattern did not produce expand to nothing.
func substituteCaptures(text string, captures []string) string {
	if !strings.ContainsRune(text, '%') {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '%' || i+1 >= len(text) {
			b.WriteByte(c)
			continue
		}
		next := text[i+1]
		switch {
		case next == '%':
			b.WriteByte('%')
			i++
		case next >= '0' && next <= '9':
			n := int(next - '0')
			i++
			if i+1 < len(text) && text[i+1] >= '0' && text[i+1] <= '9' {
				n = n*10 + int(text[i+1]-'0')
				i++
			}
			if n < len(captures) {
				b.WriteString(captures[n])
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// expandVariables replaces @name tokens in text with the named variable
// of the owning scope. Names run over letters, digits and underscores and
// are case-insensitive. @@ produces a literal at sign. Unknown variables
// expand to nothing.
func expandVariables(sc *Scope, text string) string {
	if !strings.ContainsRune(text, '@') {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '@' {
			b.WriteByte(c)
			continue
		}
		if i+1 < len(text) && text[i+1] == '@' {
			b.WriteByte('@')
			i++
			continue
		}
		j := i + 1
		for j < len(text) && isVariableChar(text[j]) {
			j++
		}
		if j == i+1 {
			b.WriteByte(c)
			continue
		}
		if value, err := sc.Variable(text[i+1 : j]); err == nil {
			b.WriteString(value)
		}
		i = j - 1
	}
	return b.String()
}

func isVariableChar(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}
