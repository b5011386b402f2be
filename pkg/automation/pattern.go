package automation

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern is the match condition shared by triggers and aliases. Literal
// patterns treat each * as a run of characters within one line; regexp
// patterns use Go regexp syntax. The compiled expression is cached and
// recompiled only when the pattern text or case sensitivity changes.
type Pattern struct {
	Text       string
	Regexp     bool
	IgnoreCase bool

	// LowercaseCaptures lowercases every capture except capture 0
	// before it is exposed to actions and scripts.
	LowercaseCaptures bool

	compiled     *regexp.Regexp
	compiledText string
	compiledCase bool
}

// Match holds the result of a successful pattern match. Captures[0] is the
// whole matched text, 1..N the capture groups. Named holds named groups.
type Match struct {
	Captures []string
	Named    map[string]string
	Start    int // offset of the match within the subject
	End      int
}

// wildcardToRegexp converts a literal * pattern to an anchored regexp source.
// Every regexp metacharacter except * is escaped; each * becomes a
// non-greedy capture group.
func wildcardToRegexp(pattern string) string {
	escaped := regexp.QuoteMeta(pattern)
	escaped = strings.ReplaceAll(escaped, `\*`, `(.*?)`)
	return "^" + escaped + "$"
}

func (p *Pattern) source() string {
	src := p.Text
	if !p.Regexp {
		src = wildcardToRegexp(src)
	}
	if p.IgnoreCase {
		src = "(?i)" + src
	}
	return src
}

// Compile builds the cached regexp for the pattern. A compilation failure
// is a distinct error, never reported as a non-match.
func (p *Pattern) Compile() error {
	if p.Text == "" {
		return ErrEmptyPattern
	}
	re, err := regexp.Compile(p.source())
	if err != nil {
		return fmt.Errorf("compiling pattern %q: %w", p.Text, err)
	}
	p.compiled = re
	p.compiledText = p.Text
	p.compiledCase = p.IgnoreCase
	return nil
}

func (p *Pattern) ensureCompiled() error {
	if p.compiled == nil || p.compiledText != p.Text || p.compiledCase != p.IgnoreCase {
		return p.Compile()
	}
	return nil
}

// Match attempts the pattern against subject. It returns (nil, nil) when
// the pattern simply does not match.
func (p *Pattern) Match(subject string) (*Match, error) {
	return p.MatchAt(subject, 0)
}

// MatchAt matches starting at byte offset pos, for repeat matching on the
// same line.
func (p *Pattern) MatchAt(subject string, pos int) (*Match, error) {
	if err := p.ensureCompiled(); err != nil {
		return nil, err
	}
	if pos < 0 || pos > len(subject) {
		return nil, nil
	}
	loc := p.compiled.FindStringSubmatchIndex(subject[pos:])
	if loc == nil {
		return nil, nil
	}

	m := &Match{
		Start: pos + loc[0],
		End:   pos + loc[1],
	}
	n := p.compiled.NumSubexp() + 1
	m.Captures = make([]string, n)
	for i := 0; i < n; i++ {
		if loc[2*i] < 0 {
			continue // group did not participate
		}
		captured := subject[pos+loc[2*i] : pos+loc[2*i+1]]
		if p.LowercaseCaptures && i > 0 {
			captured = strings.ToLower(captured)
		}
		m.Captures[i] = captured
	}
	for i, name := range p.compiled.SubexpNames() {
		if name == "" {
			continue
		}
		if m.Named == nil {
			m.Named = make(map[string]string)
		}
		m.Named[name] = m.Captures[i]
	}
	return m, nil
}
