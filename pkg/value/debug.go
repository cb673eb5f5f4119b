package value

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultMaxLogLength bounds a single sanitized rendering.
	DefaultMaxLogLength = 256
	truncationMarker    = "..."
	maxBytesShown       = 32
)

// String renders v deterministically for diagnostics. Dictionary keys are
// sorted. The output is not sanitized; use DebugDumpSanitized for logs.
func (v Value) String() string {
	var sb strings.Builder
	v.writeTo(&sb)
	return sb.String()
}

func (v Value) writeTo(sb *strings.Builder) {
	switch v.kind {
	case KindNull:
		sb.WriteString("null")
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.b))
	case KindInt:
		sb.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		sb.WriteString(strconv.FormatFloat(v.f, 'g', -1, 64))
	case KindString:
		sb.WriteString(strconv.Quote(v.s))
	case KindBytes:
		shown := v.bin
		if len(shown) > maxBytesShown {
			shown = shown[:maxBytesShown]
		}
		fmt.Fprintf(sb, "0x%s", hex.EncodeToString(shown))
		if len(v.bin) > maxBytesShown {
			sb.WriteString(truncationMarker)
		}
	case KindArray:
		sb.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				sb.WriteByte(',')
			}
			item.writeTo(sb)
		}
		sb.WriteByte(']')
	case KindDict:
		keys := make([]string, 0, len(v.dict))
		for k := range v.dict {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Quote(k))
			sb.WriteByte(':')
			v.dict[k].writeTo(sb)
		}
		sb.WriteByte('}')
	}
}

// DebugDumpSanitized renders v for logging with control characters escaped
// and the result truncated to DefaultMaxLogLength.
func DebugDumpSanitized(v Value) string {
	return SanitizeForLog(v.String(), DefaultMaxLogLength)
}

// SanitizeForLog escapes control and invalid UTF-8 bytes in s and truncates
// the result to at most maxLen bytes (including the truncation marker).
func SanitizeForLog(s string, maxLen int) string {
	var sb strings.Builder
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == utf8.RuneError && size == 1:
			fmt.Fprintf(&sb, "\\x%02x", s[i])
		case unicode.IsControl(r) || r == '\u2028' || r == '\u2029':
			if r < 0x100 {
				fmt.Fprintf(&sb, "\\x%02x", r)
			} else {
				fmt.Fprintf(&sb, "\\u%04x", r)
			}
		default:
			sb.WriteString(s[i : i+size])
		}
		i += size
	}
	return truncate(sb.String(), maxLen)
}

// truncate cuts s on a rune boundary so the result, marker included, fits maxLen.
func truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	limit := maxLen - len(truncationMarker)
	if limit < 0 {
		limit = 0
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit] + truncationMarker
}
