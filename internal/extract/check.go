package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/zombor/docscan/internal/ocr"
)

var (
	amountPattern    = regexp.MustCompile(`\$?\s*(\d+[,.]?\d*\.?\d*)`)
	digitRunPattern  = regexp.MustCompile(`[:|]?\s*\d{9,}`)
	digitRunsPattern = regexp.MustCompile(`\d{9,}`)

	payerStopWords = []string{"pay", "order", "date", "check"}
)

// checkRule inspects one line of a check with access to its neighbours and
// assigns into the record. Each rule owns its overwrite semantics.
type checkRule func(i int, line string, lines []string, rec *CheckRecord)

// checkRules run in this order for every line
var checkRules = []checkRule{
	checkNumberRule,
	payeeRule,
	amountRule,
	memoRule,
	bankNumbersRule,
	payerRule,
}

// Check reads check fields from the key-value pairs and lines of an OCR
// result. Missing fields are left nil; only a result without an analysis is
// an error.
func Check(result *ocr.Result) (*CheckRecord, error) {
	analysis, err := result.Analysis()
	if err != nil {
		return nil, err
	}

	rec := &CheckRecord{DocumentType: "check"}
	applyKeyValuePairs(analysis.KeyValuePairs, rec)

	lines := result.Lines()
	for i, line := range lines {
		for _, rule := range checkRules {
			rule(i, line, lines, rec)
		}
	}
	return rec, nil
}

// applyKeyValuePairs maps labelled values in engine order; later pairs win
func applyKeyValuePairs(pairs []ocr.KeyValuePair, rec *CheckRecord) {
	for _, pair := range pairs {
		var key, value string
		if pair.Key != nil {
			key = strings.ToLower(pair.Key.Content)
		}
		if pair.Value != nil {
			value = pair.Value.Content
		}

		switch {
		case strings.Contains(key, "pay") && strings.Contains(key, "order"):
			rec.PayeeName = ptr(value)
		case strings.Contains(key, "date"):
			rec.Date = ptr(value)
		case strings.Contains(key, "memo"):
			rec.Memo = ptr(value)
		}
	}
}

// checkNumberRule: a short all-digit line near the top
func checkNumberRule(i int, line string, _ []string, rec *CheckRecord) {
	if i < 3 && isDigits(line) && utf8.RuneCountInString(line) <= 6 {
		rec.CheckNumber = ptr(line)
	}
}

// payeeRule: the line after "pay to the order of", unless it is an amount
func payeeRule(i int, line string, lines []string, rec *CheckRecord) {
	lower := strings.ToLower(line)
	if !strings.Contains(lower, "pay") || !strings.Contains(lower, "order") || i+1 >= len(lines) {
		return
	}
	next := strings.TrimSpace(lines[i+1])
	if next != "" && !strings.HasPrefix(next, "$") {
		rec.PayeeName = ptr(next)
	}
}

// amountRule: the last line with "$" or "dollars" wins
func amountRule(_ int, line string, _ []string, rec *CheckRecord) {
	hasDollars := strings.Contains(strings.ToLower(line), "dollars")
	if !strings.Contains(line, "$") && !hasDollars {
		return
	}
	if m := amountPattern.FindStringSubmatch(line); m != nil {
		rec.Amount = ptr(strings.ReplaceAll(m[1], ",", ""))
	}
	if hasDollars {
		rec.AmountInWords = ptr(strings.TrimSpace(line))
	}
}

// memoRule: the line after a "memo" label
func memoRule(i int, line string, lines []string, rec *CheckRecord) {
	if strings.Contains(strings.ToLower(line), "memo") && i+1 < len(lines) {
		rec.Memo = ptr(strings.TrimSpace(lines[i+1]))
	}
}

// bankNumbersRule: the first 9+ digit runs seen become routing then account;
// neither is overwritten once set
func bankNumbersRule(_ int, line string, _ []string, rec *CheckRecord) {
	if !digitRunPattern.MatchString(line) {
		return
	}
	numbers := digitRunsPattern.FindAllString(line, -1)
	if len(numbers) == 0 {
		return
	}
	if unset(rec.RoutingNumber) && len(numbers[0]) >= 9 {
		rec.RoutingNumber = ptr(numbers[0])
	}
	if len(numbers) > 1 && unset(rec.AccountNumber) {
		rec.AccountNumber = ptr(numbers[1])
	}
}

// payerRule: the first unlabelled lines of the check are the payer's name
// and address
func payerRule(i int, line string, _ []string, rec *CheckRecord) {
	if i >= 4 || containsAny(strings.ToLower(line), payerStopWords) {
		return
	}
	trimmed := strings.TrimSpace(line)
	switch {
	case unset(rec.PayerName) && trimmed != "":
		rec.PayerName = ptr(trimmed)
	case !unset(rec.PayerName) && unset(rec.PayerAddress):
		rec.PayerAddress = ptr(trimmed)
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
