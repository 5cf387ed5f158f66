package lexer

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
)

// fallbackEncodings is the deterministic decode chain applied after UTF-8.
// The first encoding that decodes without a replacement rune is adopted.
var fallbackEncodings = []struct {
	name string
	enc  encoding.Encoding
}{
	{"euc-kr", korean.EUCKR},
	{"shift-jis", japanese.ShiftJIS},
}

// Decode converts raw source bytes to a string, falling back through
// UTF-8 and the common East-Asian codepages. Returns the decoded text and
// the adopted encoding name. When nothing decodes cleanly the UTF-8
// interpretation is returned with encoding "utf-8?" so parsing can still
// proceed fail-soft.
func Decode(content []byte) (string, string) {
	if utf8.Valid(content) {
		return string(content), "utf-8"
	}

	for _, fe := range fallbackEncodings {
		decoded, err := fe.enc.NewDecoder().Bytes(content)
		if err != nil {
			continue
		}
		text := string(decoded)
		if !strings.ContainsRune(text, utf8.RuneError) {
			return text, fe.name
		}
	}

	return string(content), "utf-8?"
}

// MojibakeRatio returns the fraction of replacement runes in text.
// A high ratio after an adopted decode indicates the source was written in
// a superset of the detected codepage.
func MojibakeRatio(text string) float64 {
	if text == "" {
		return 0
	}
	total := 0
	bad := 0
	for _, r := range text {
		total++
		if r == utf8.RuneError {
			bad++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(bad) / float64(total)
}
