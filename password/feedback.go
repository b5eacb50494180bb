package password

import "fmt"

// Feedback renders an Assessment as human-readable lines.
func Feedback(a Assessment) []string {
	lines := []string{fmt.Sprintf("Password strength: %s (score %d/100)", a.Strength, a.Score)}

	if a.Valid {
		lines = append(lines, "✓ Password meets all requirements")
	} else {
		lines = append(lines, "✗ Password does not meet requirements:")
		for _, e := range a.Errors {
			lines = append(lines, "  ✗ "+e)
		}
	}
	for _, w := range a.Warnings {
		lines = append(lines, "  ! "+w)
	}

	if a.Score < 60 {
		lines = append(lines,
			"Suggestions:",
			"  - Use at least 16 characters",
			"  - Mix uppercase, lowercase, numbers and symbols",
			"  - Avoid sequences such as 123 or abc and repeated characters",
		)
	}
	return lines
}
