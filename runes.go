package phoo

import (
	"errors"
	"strconv"
	"strings"
)

// controlNames lists the mnemonics of the C0 controls, space, delete, and
// the C1 controls, in code point order within each range.
var controlNames = [...]struct {
	first rune
	names string
}{
	{0x00, "NUL SOH STX ETX EOT ENQ ACK BEL BS HT NL VT NP CR SO SI " +
		"DLE DC1 DC2 DC3 DC4 NAK SYN ETB CAN EM SUB ESC FS GS RS US SP"},
	{0x7f, "DEL"},
	{0x80, "PAD HOP BPH NBH IND NEL SSA ESA HTS HTJ VTS PLD PLU RI SS2 SS3 " +
		"DCS PU1 PU2 STS CCH MW SPA EPA SOS SGCI SCI CSI ST OSC PM APC"},
}

// controlRunes maps "<ESC>", in upper or lower case, to its rune.
var controlRunes = make(map[string]rune)

func init() {
	for _, block := range controlNames {
		r := block.first
		for _, name := range strings.Fields(block.names) {
			controlRunes["<"+name+">"] = r
			controlRunes["<"+strings.ToLower(name)+">"] = r
			r++
		}
	}
}

var errInvalidRune = errors.New(`rune literal must be <NAME> or a single quoted character`)

// unquoteRune parses a control mnemonic like <ESC>, or a quoted character
// like 'a' or '\n'.
func unquoteRune(token string) (rune, error) {
	if r, defined := controlRunes[token]; defined {
		return r, nil
	}
	if len(token) < 3 || token[0] != '\'' || token[len(token)-1] != '\'' {
		return 0, errInvalidRune
	}
	r, _, tail, err := strconv.UnquoteChar(token[1:], '\'')
	if err != nil {
		return 0, err
	}
	if tail != "'" {
		return 0, errInvalidRune
	}
	return r, nil
}
