package password

import (
	"fmt"

	"github.com/ashley-ai/sentinel/internal/util"
)

// DefaultGeneratedLength is used by Generate when length is not positive.
const DefaultGeneratedLength = 16

var (
	upperChars   = []rune("ABCDEFGHJKLMNPQRSTUVWXYZ")
	lowerChars   = []rune("abcdefghijkmnopqrstuvwxyz")
	digitChars   = []rune("23456789")
	specialChars = []rune("!@#$%^&*()-_=+[]{};:,.?")
)

// Generate returns a random password of the given length containing every
// character class. Lengths below DefaultMinLength are raised to it.
func Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultGeneratedLength
	}
	length = max(length, DefaultMinLength)

	sets := [][]rune{upperChars, lowerChars, digitChars, specialChars}
	var all []rune
	for _, s := range sets {
		all = append(all, s...)
	}

	out := make([]rune, 0, length)
	for _, s := range sets {
		r, err := util.RandomFrom(s)
		if err != nil {
			return "", fmt.Errorf("generating password: %w", err)
		}
		out = append(out, r)
	}
	for len(out) < length {
		r, err := util.RandomFrom(all)
		if err != nil {
			return "", fmt.Errorf("generating password: %w", err)
		}
		out = append(out, r)
	}

	// Fisher-Yates so the guaranteed characters are not always first.
	for i := len(out) - 1; i > 0; i-- {
		j, err := util.RandomIntn(i + 1)
		if err != nil {
			return "", fmt.Errorf("generating password: %w", err)
		}
		out[i], out[j] = out[j], out[i]
	}
	return string(out), nil
}
