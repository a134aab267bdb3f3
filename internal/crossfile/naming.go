package crossfile

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const syntheticHashLen = 5

// SyntheticName derives the name of the nested type that replaces an anonymous rule
// body: the capitalised field name plus a short hash of the field name and the body.
// Whitespace in the body does not affect the hash.
func SyntheticName(field, body string) string {
	return capitalize(field) + "_" + contentHash(field, body)[:syntheticHashLen]
}

func contentHash(field, body string) string {
	input := field + "\x00" + strings.Join(strings.Fields(body), " ")
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Namer hands out synthetic names that are unique within their enclosing type. A
// collision lengthens the hash prefix until the name is free.
type Namer struct {
	taken map[string]map[string]bool
}

func NewNamer() *Namer {
	return &Namer{taken: make(map[string]map[string]bool)}
}

// Reserve marks names already declared in the enclosing type.
func (n *Namer) Reserve(enclosing string, names ...string) {
	set := n.scope(enclosing)
	for _, name := range names {
		set[name] = true
	}
}

func (n *Namer) scope(enclosing string) map[string]bool {
	set, ok := n.taken[enclosing]
	if !ok {
		set = make(map[string]bool)
		n.taken[enclosing] = set
	}
	return set
}

// Name returns the synthetic name for a body declared in enclosing and reserves it.
func (n *Namer) Name(enclosing, field, body string) string {
	set := n.scope(enclosing)
	hash := contentHash(field, body)
	prefix := capitalize(field) + "_"
	for l := syntheticHashLen; l <= len(hash); l++ {
		name := prefix + hash[:l]
		if !set[name] {
			set[name] = true
			return name
		}
	}
	// identical field and body declared twice in one type
	for i := 2; ; i++ {
		name := prefix + hash + "_" + strconv.Itoa(i)
		if !set[name] {
			set[name] = true
			return name
		}
	}
}
