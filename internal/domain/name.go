package domain

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// MaxNameLength bounds user supplied job names.
	MaxNameLength = 100

	namePrefixRunes = 30
	nameTimeLayout  = "20060102T150405"
)

// DeriveName builds the default label for a job: a short alphanumeric slice of
// the prompt followed by the creation timestamp.
func DeriveName(prompt string, createdAt time.Time) string {
	head := []rune(prompt)
	if len(head) > namePrefixRunes {
		head = head[:namePrefixRunes]
	}
	folded, _, err := transform.String(accentFolder(), string(head))
	if err != nil {
		folded = string(head)
	}
	var b strings.Builder
	for _, r := range folded {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	slug := b.String()
	if slug == "" {
		slug = "video"
	}
	return "sora_" + slug + "_" + createdAt.UTC().Format(nameTimeLayout)
}

func accentFolder() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}
