package game

import "strings"

const zeroWidthSpace = "\u200b"

var (
	duckTail   = []rune("・゜゜・。。・゜゜")
	duckBodies = []string{"\\_o< ", "\\_O< ", "\\_0< ", "\\_\u00f6< ", "\\_\u00f8< ", "\\_\u00f3< "}
	duckNoises = []string{"QUACK!", "FLAP FLAP!", "quack!"}
)

// Duck is the randomized art of a spawn announcement
type Duck struct {
	Tail  string
	Body  string
	Noise string
}

// String joins the parts into one line
func (d Duck) String() string {
	return d.Tail + d.Body + d.Noise
}

// GenerateDuck builds duck art with zero-width spaces at random positions so
// the announcement cannot be matched verbatim by highlight rules or scripts.
func (e *Engine) GenerateDuck() Duck {
	return Duck{
		Tail:  e.splitRunes(duckTail, " "+zeroWidthSpace+" "),
		Body:  e.splitRunes([]rune(duckBodies[e.intn(len(duckBodies))]), zeroWidthSpace),
		Noise: e.splitRunes([]rune(duckNoises[e.intn(len(duckNoises))]), zeroWidthSpace),
	}
}

// splitRunes inserts sep at a random interior position of s
func (e *Engine) splitRunes(s []rune, sep string) string {
	if len(s) < 2 {
		return string(s)
	}
	at := 1 + e.intn(len(s)-1)
	var b strings.Builder
	b.WriteString(string(s[:at]))
	b.WriteString(sep)
	b.WriteString(string(s[at:]))
	return b.String()
}
