package objectdb

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// FormatValue renders a Value as the textual predicate literal it would
// parse back from (§6 "describe" serialisation format): strings use
// C-escapes, bytes outside printable ASCII (and all quotes) are
// re-emitted as `B64"...=="` padded to 4-byte multiples, timestamps use
// `T<sec>:<ns>`. This is the single formatter internal/parser and
// internal/condnode both call, so a round-tripped query is byte-exact
// regardless of which layer last touched it.
func FormatValue(v Value) string {
	if v.Null {
		return "NULL"
	}
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int(), 10)
	case KindBool:
		if v.Bool() {
			return "true"
		}
		return "false"
	case KindFloat:
		return strconv.FormatFloat(float64(v.Float32()), 'g', -1, 32)
	case KindDouble:
		return strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	case KindString:
		return formatStringLiteral(v.Str())
	case KindBinary:
		return formatBinaryLiteral(v.Bytes())
	case KindTimestamp:
		t := v.Time()
		return fmt.Sprintf("T%d:%d", t.Seconds, t.Nanoseconds)
	case KindLink:
		return v.Link().String()
	case KindList:
		elems := v.Elems()
		parts := make([]string, len(elems))
		for i, e := range elems {
			parts[i] = FormatValue(e)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "<unsupported>"
	}
}

// formatStringLiteral emits a C-escaped, double-quoted string unless any
// byte requires non-printable-ASCII or quote escaping, in which case the
// whole literal falls back to base64 (§6).
func formatStringLiteral(s string) string {
	needsB64 := false
	for _, r := range s {
		if r == '"' || r > unicode.MaxASCII || !unicode.IsPrint(r) {
			needsB64 = true
			break
		}
	}
	if needsB64 {
		return formatBinaryLiteral([]byte(s))
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// formatBinaryLiteral emits `B64"...=="`, standard-padded to a multiple
// of 4 base64 characters (the default encoding.StdEncoding already pads
// this way).
func formatBinaryLiteral(b []byte) string {
	return `B64"` + base64.StdEncoding.EncodeToString(b) + `"`
}
