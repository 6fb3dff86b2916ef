package model

import (
	"fmt"
	"strings"
)

// FormatCosts renders a report as "J=0.1234 err=0.5678" pairs in declared
// order, for training-log lines.
func FormatCosts(names []string, r CostReport) string {
	parts := make([]string, 0, len(r))
	for i, v := range r {
		name := fmt.Sprintf("cost%d", i)
		if i < len(names) {
			name = names[i]
		}
		parts = append(parts, fmt.Sprintf("%s=%.4f", name, v))
	}
	return strings.Join(parts, " ")
}
