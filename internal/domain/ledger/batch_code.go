package ledger

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	batchPrefixLength = 4
	batchPrefixPad    = "X"
	batchDateLayout   = "20060102"

	// MaxBatchCodeLength is the width of the batch_code columns
	MaxBatchCodeLength = 50
)

// BatchCodePattern matches generated batch codes: PREFIX-YYYYMMDD-NNN
var BatchCodePattern = regexp.MustCompile(`^[A-Z]{4}-\d{8}-\d{3,}$`)

// specialLetters are letters that carry no combining mark under NFD
var specialLetters = strings.NewReplacer("đ", "d", "Đ", "D", "ł", "l", "Ł", "L", "ø", "o", "Ø", "O")

// BatchPrefix derives the 4-letter code prefix from a product name: marks
// are stripped, non-letters dropped, and the result upper-cased and padded
// with X.
func BatchPrefix(productName string) string {
	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(stripper, specialLetters.Replace(productName))
	if err != nil {
		plain = productName
	}

	var b strings.Builder
	for _, r := range strings.ToUpper(plain) {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
			if b.Len() == batchPrefixLength {
				break
			}
		}
	}

	prefix := b.String()
	if len(prefix) < batchPrefixLength {
		prefix += strings.Repeat(batchPrefixPad, batchPrefixLength-len(prefix))
	}
	return prefix
}

// BatchCodeStem returns "PREFIX-YYYYMMDD-" for the given day
func BatchCodeStem(prefix string, day time.Time) string {
	return fmt.Sprintf("%s-%s-", prefix, day.Format(batchDateLayout))
}

// FormatBatchCode appends a zero-padded sequence to the stem
func FormatBatchCode(stem string, seq int) string {
	return fmt.Sprintf("%s%03d", stem, seq)
}
