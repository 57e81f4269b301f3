package metadata

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Rule maps a semantic label onto an XPath expression. Rule files are
// maintained by hand, one "label|xpath" per line; blank and malformed
// lines are tolerated.
type Rule struct {
	Label string
	Expr  string
}

// LoadRules reads a rule file. Malformed lines are logged and skipped so
// an editing mistake in one rule never takes the rest of the file down.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var rules []Rule
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		label, expr, found := strings.Cut(line, "|")
		if !found || strings.TrimSpace(label) == "" || strings.TrimSpace(expr) == "" {
			slog.Debug("Skipping malformed rule line", "file", path, "line", i+1)
			continue
		}

		rules = append(rules, Rule{
			Label: strings.TrimSpace(label),
			Expr:  strings.TrimSpace(expr),
		})
	}

	return rules, nil
}
