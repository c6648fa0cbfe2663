package enum

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// names maps an enum ordinal to its wire/storage spelling. Index 0 is the
// zero value and is never a valid spelling.
type names []string

func (n names) text(i uint8) string {
	if int(i) >= len(n) || i == 0 {
		return ""
	}
	return n[i]
}

func (n names) parse(s string) (uint8, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i := 1; i < len(n); i++ {
		if n[i] == s {
			return uint8(i), true
		}
	}
	return 0, false
}

func (n names) scan(kind string, src any) (uint8, error) {
	var s string
	switch v := src.(type) {
	case nil:
		return 0, nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return 0, fmt.Errorf("%s: unsupported scan type %T", kind, src)
	}
	if s == "" {
		return 0, nil
	}
	i, ok := n.parse(s)
	if !ok {
		return 0, fmt.Errorf("%s: unknown value %q", kind, s)
	}
	return i, nil
}

func value(s string) (driver.Value, error) {
	if s == "" {
		return nil, nil
	}
	return s, nil
}
