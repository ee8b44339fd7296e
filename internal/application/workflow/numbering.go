package workflow

import (
	"fmt"
	"strconv"
	"strings"
)

// caseNumberDigits is the zero padding of the per-prefix counter
const caseNumberDigits = 6

// FormatCaseNumber renders prefix + zero-padded counter, e.g. ABC000042
func FormatCaseNumber(prefix string, n int) string {
	return fmt.Sprintf("%s%0*d", prefix, caseNumberDigits, n)
}

// ParseCaseNumber extracts the counter from a case number of the prefix
func ParseCaseNumber(prefix, caseNo string) (int, error) {
	if !strings.HasPrefix(caseNo, prefix) {
		return 0, fmt.Errorf("case number %s does not start with prefix %s", caseNo, prefix)
	}
	n, err := strconv.Atoi(caseNo[len(prefix):])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("case number %s has no numeric counter", caseNo)
	}
	return n, nil
}

// NextCaseNumber returns the number following latest, or the first number
// of the prefix when latest is empty
func NextCaseNumber(prefix, latest string) (string, error) {
	if latest == "" {
		return FormatCaseNumber(prefix, 1), nil
	}
	n, err := ParseCaseNumber(prefix, latest)
	if err != nil {
		return "", err
	}
	return FormatCaseNumber(prefix, n+1), nil
}
