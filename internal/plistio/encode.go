package plistio

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hupe1980/prefexport/internal/tree"
)

const (
	xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
		`<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">` + "\n" +
		`<plist version="1.0">` + "\n"
	xmlFooter = "</plist>\n"

	// DateLayout is the plist date encoding. Dates are always written in UTC.
	DateLayout = "2006-01-02T15:04:05Z"

	// dataLineWidth is the column budget for wrapped base64 data lines,
	// counting each indentation tab as eight columns.
	dataLineWidth = 76
	tabWidth      = 8
)

var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\r", "&#13;",
)

// Encode serializes v as a complete XML property-list document.
//
// Dict keys are emitted in lexicographic byte order at every nesting level.
// Array elements keep their order. The output depends only on the content of
// v, never on map iteration order.
func Encode(v tree.Value) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(xmlHeader)

	if err := writeValue(&buf, v, 0, ""); err != nil {
		return nil, err
	}

	buf.WriteString(xmlFooter)

	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, v tree.Value, level int, path string) error {
	switch v.Kind() {
	case tree.KindDict:
		if v.Len() == 0 {
			writeLine(buf, level, "<dict/>")
			return nil
		}

		writeLine(buf, level, "<dict>")

		for _, k := range v.SortedKeys() {
			key, err := escapeText(k)
			if err != nil {
				return fmt.Errorf("%s: key %q: %w", displayPath(path), k, err)
			}

			writeLine(buf, level+1, "<key>"+key+"</key>")

			if err := writeValue(buf, v.Map()[k], level+1, path+"/"+k); err != nil {
				return err
			}
		}

		writeLine(buf, level, "</dict>")
	case tree.KindArray:
		if v.Len() == 0 {
			writeLine(buf, level, "<array/>")
			return nil
		}

		writeLine(buf, level, "<array>")

		for i, item := range v.Items() {
			if err := writeValue(buf, item, level+1, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}

		writeLine(buf, level, "</array>")
	case tree.KindString:
		s, err := escapeText(v.Str())
		if err != nil {
			return fmt.Errorf("%s: %w", displayPath(path), err)
		}

		writeLine(buf, level, "<string>"+s+"</string>")
	case tree.KindInteger:
		writeLine(buf, level, "<integer>"+v.IntegerText()+"</integer>")
	case tree.KindReal:
		writeLine(buf, level, "<real>"+FormatReal(v.Float())+"</real>")
	case tree.KindBool:
		if v.Truth() {
			writeLine(buf, level, "<true/>")
		} else {
			writeLine(buf, level, "<false/>")
		}
	case tree.KindDate:
		writeLine(buf, level, "<date>"+v.Time().UTC().Format(DateLayout)+"</date>")
	case tree.KindData:
		writeLine(buf, level, "<data>")

		for _, line := range wrapBase64(v.Bytes(), dataLineWidth-tabWidth*level) {
			writeLine(buf, level, line)
		}

		writeLine(buf, level, "</data>")
	default:
		return fmt.Errorf("%s: cannot encode value of kind %s", displayPath(path), v.Kind())
	}

	return nil
}

func writeLine(buf *bytes.Buffer, level int, s string) {
	for range level {
		buf.WriteByte('\t')
	}

	buf.WriteString(s)
	buf.WriteByte('\n')
}

// escapeText escapes XML markup characters. Control characters other than
// tab, newline and carriage return, the noncharacters U+FFFE and U+FFFF and
// invalid UTF-8 are not allowed in XML 1.0 and are rejected.
func escapeText(s string) (string, error) {
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("string is not valid UTF-8")
	}

	for _, r := range s {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return "", fmt.Errorf("string contains control character %U", r)
		}

		if r == 0xFFFE || r == 0xFFFF {
			return "", fmt.Errorf("string contains noncharacter %U", r)
		}
	}

	return textEscaper.Replace(s), nil
}

// wrapBase64 encodes data in base64 lines of at most width columns. Each line
// encodes a whole number of 3-byte groups so lines never carry padding except
// the last.
func wrapBase64(data []byte, width int) []string {
	width = max(width, 16)
	chunk := (width / 4) * 3

	lines := make([]string, 0, len(data)/chunk+1)

	for start := 0; start < len(data); start += chunk {
		end := min(start+chunk, len(data))
		lines = append(lines, base64.StdEncoding.EncodeToString(data[start:end]))
	}

	return lines
}

// FormatReal renders f in its shortest round-trip decimal form. Values whose
// decimal exponent lies in [-4, 16) use positional notation and keep a ".0"
// suffix when integral so they read back as reals. Everything else uses
// exponent notation with at least two exponent digits. The special values
// are spelled nan, inf and -inf.
func FormatReal(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)

	exp, err := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if err != nil || exp < -4 || exp >= 16 {
		return sci
	}

	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}

	return s
}
