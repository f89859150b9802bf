package printing

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/language"
)

// typographic replacements for runes the standard PDF fonts cannot show
var typographic = strings.NewReplacer(
	"\u2009", " ", // thin space
	"\u202f", " ", // narrow no-break space
	"\u2011", "-", // non-breaking hyphen
	"\u2212", "-", // minus sign
	"\u2265", ">=",
	"\u2264", "<=",
	"\u2192", "->",
)

// normalizeText applies the typographic replacements
func normalizeText(s string) string {
	return typographic.Replace(s)
}

// encodeWinAnsi converts s to WinAnsi (Windows-1252) bytes.
// Runes outside the code page fail with an UnsupportedCharacter error.
func encodeWinAnsi(s string) ([]byte, error) {
	s = normalizeText(s)
	out := make([]byte, 0, len(s))
	for i, r := range s {
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			return nil, NewEncodingError(ErrNameUnsupportedCharacter,
				fmt.Sprintf("character %q (U+%04X) at byte %d cannot be encoded", r, r, i), nil)
		}
		out = append(out, b)
	}
	return out, nil
}

// pdfString returns s as the body of a PDF literal string
func pdfString(s string) (string, error) {
	raw, err := encodeWinAnsi(s)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.Grow(len(raw) + 8)
	for _, b := range raw {
		switch {
		case b == '(' || b == ')' || b == '\\':
			sb.WriteByte('\\')
			sb.WriteByte(b)
		case b < 0x20 || b >= 0x7f:
			fmt.Fprintf(&sb, "\\%03o", b)
		default:
			sb.WriteByte(b)
		}
	}
	return sb.String(), nil
}

// categoryLabel turns a category slug into a display label.
// A Caser keeps state between calls, so each call builds its own.
func categoryLabel(category string) string {
	if category == "" {
		return ""
	}
	return cases.Title(language.French).String(strings.ReplaceAll(category, "-", " "))
}
