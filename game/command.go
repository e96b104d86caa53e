package game

import (
	"fmt"
	"strings"
)

// Command is the set of keys held down for one timestep.
type Command uint8

const (
	Q Command = 1 << iota
	W
	O
	P
)

const None Command = 0

// Common key combinations used by the default action sets.
const (
	WO = W | O
	QP = Q | P
)

var keyNames = []struct {
	key  Command
	name byte
}{{Q, 'Q'}, {W, 'W'}, {O, 'O'}, {P, 'P'}}

func (c Command) Has(key Command) bool {
	return c&key == key
}

func (c Command) String() string {
	if c == None {
		return "--"
	}
	var b strings.Builder
	for _, k := range keyNames {
		if c.Has(k.key) {
			b.WriteByte(k.name)
		}
	}
	return b.String()
}

// ParseCommand reads a key string such as "wo" or "QP". An empty string or
// "-"/"--" is no keys.
func ParseCommand(s string) (Command, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || strings.Trim(s, "-") == "" {
		return None, nil
	}

	var c Command
	for i := 0; i < len(s); i++ {
		found := false
		for _, k := range keyNames {
			if s[i] == k.name {
				c |= k.key
				found = true
				break
			}
		}
		if !found {
			return None, fmt.Errorf("unknown key %q in command %q", s[i], s)
		}
	}
	return c, nil
}

func (c Command) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Command) UnmarshalText(text []byte) error {
	parsed, err := ParseCommand(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
