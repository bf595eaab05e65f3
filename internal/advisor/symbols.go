package advisor

import (
	"regexp"
	"strings"
)

var cashtagPattern = regexp.MustCompile(`\$([A-Za-z]{1,5}(?:\.[A-Za-z])?)\b`)

// ExtractSymbols finds cashtag mentions such as "$IBM" or "$brk.b" in free
// text. Returns deduplicated uppercase tickers in order of appearance.
func ExtractSymbols(text string) []string {
	seen := make(map[string]bool)
	var result []string
	for _, m := range cashtagPattern.FindAllStringSubmatch(text, -1) {
		sym := strings.ToUpper(m[1])
		if !seen[sym] {
			seen[sym] = true
			result = append(result, sym)
		}
	}
	return result
}
