package util

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"
)

const maxBinaryCheckBytes = 512

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Smart punctuation and Windows-1252 leftovers mapped to plain ASCII so rule
// patterns only need to match one spelling.
var punctuationReplacer = strings.NewReplacer(
	"\u2018", "'", "\u2019", "'", "\u201C", "\"", "\u201D", "\"",
	"\u2013", "-", "\u2014", "--", "\u2026", "...", "\u00A0", " ",
	"\u0096", "-", "\u0097", "--", "\u0091", "'", "\u0092", "'",
	"\u0093", "\"", "\u0094", "\"",
)

// IsLikelyBinary sniffs the first bytes of a file for NULs.
func IsLikelyBinary(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer file.Close()

	buffer := make([]byte, maxBinaryCheckBytes)
	n, err := file.Read(buffer)
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}

	return bytes.Contains(buffer[:n], []byte{0}), nil
}

// CleanFileContent turns raw file or response bytes into valid UTF-8 text.
func CleanFileContent(raw []byte, src string) (string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)

	if !utf8.Valid(raw) {
		log.WithField("source", src).Warn("invalid UTF-8, replacing invalid chars")
		raw = bytes.ToValidUTF8(raw, []byte(string(utf8.RuneError)))
	}

	str := punctuationReplacer.Replace(string(raw))
	if !utf8.ValidString(str) {
		return "", fmt.Errorf("invalid UTF-8 after replacements: %s", src)
	}
	return str, nil
}

// NormalizeForMatching folds text into the form rule matching runs on:
// compatibility-normalized (fullwidth and ligature tricks collapse), zero-width
// and control characters dropped, punctuation simplified, lower-cased and
// whitespace collapsed.
func NormalizeForMatching(text string) string {
	text = norm.NFKC.String(text)
	text = punctuationReplacer.Replace(text)

	var b strings.Builder
	b.Grow(len(text))
	lastSpace := false
	for _, r := range text {
		switch {
		case r == '\u200B' || r == '\u200C' || r == '\u200D' || r == '\uFEFF':
			continue
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
			}
			lastSpace = true
			continue
		case unicode.IsControl(r):
			continue
		}
		b.WriteRune(unicode.ToLower(r))
		lastSpace = false
	}
	return strings.TrimSpace(b.String())
}
