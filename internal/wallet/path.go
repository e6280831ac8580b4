package wallet

import (
	"fmt"
	"strconv"
	"strings"
)

// HardenedOffset is added to an index to request hardened derivation.
const HardenedOffset uint32 = 0x80000000

// maxPathDepth is the deepest node a serialized extended key can describe.
const maxPathDepth = 255

// PathComponent is one step of a derivation path.
type PathComponent struct {
	Index    uint32 // always below HardenedOffset
	Hardened bool
}

// ChildNumber returns the BIP-32 child number, with bit 31 set for
// hardened components.
func (c PathComponent) ChildNumber() uint32 {
	if c.Hardened {
		return c.Index | HardenedOffset
	}
	return c.Index
}

// Path is a parsed derivation path, applied left to right from the root.
type Path []PathComponent

// ParsePath parses a key path such as "m/44'/0'/0'/0/1".
//
// Components may be separated by '/', ',', spaces or backslashes, and an
// optional leading "m" selects the root. A component is a decimal index
// below 2^31 followed by an optional hardened marker: ', p, h or H.
// An empty string or a bare "m" is the root itself.
func ParsePath(s string) (Path, error) {
	tokens := strings.FieldsFunc(s, isPathSeparator)
	if len(tokens) > 0 && (tokens[0] == "m" || tokens[0] == "M") {
		tokens = tokens[1:]
	}
	if len(tokens) > maxPathDepth {
		return nil, fmt.Errorf("%w: depth %d exceeds %d", ErrInvalidPath, len(tokens), maxPathDepth)
	}

	path := make(Path, 0, len(tokens))
	for _, tok := range tokens {
		c, err := parseComponent(tok)
		if err != nil {
			return nil, err
		}
		path = append(path, c)
	}
	return path, nil
}

// String formats the path in canonical m/0'/1 form.
func (p Path) String() string {
	var b strings.Builder
	b.WriteString("m")
	for _, c := range p {
		b.WriteByte('/')
		b.WriteString(strconv.FormatUint(uint64(c.Index), 10))
		if c.Hardened {
			b.WriteByte('\'')
		}
	}
	return b.String()
}

func parseComponent(tok string) (PathComponent, error) {
	var c PathComponent
	digits := tok
	switch tok[len(tok)-1] {
	case '\'', 'p', 'h', 'H':
		c.Hardened = true
		digits = tok[:len(tok)-1]
	}
	n, err := strconv.ParseUint(digits, 10, 31)
	if err != nil {
		return c, fmt.Errorf("%w: component %q", ErrInvalidPath, tok)
	}
	c.Index = uint32(n)
	return c, nil
}

func isPathSeparator(r rune) bool {
	switch r {
	case '/', ',', ' ', '\\':
		return true
	}
	return false
}
