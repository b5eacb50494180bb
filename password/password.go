// Package password scores candidate passwords against a policy, hashes
// them for storage and optionally checks them against a public breach
// corpus without disclosing the password.
package password

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMinLength is the minimum length of the default policy.
const DefaultMinLength = 12

// Strength labels a score.
type Strength string

const (
	Weak       Strength = "weak"
	Fair       Strength = "fair"
	Good       Strength = "good"
	Strong     Strength = "strong"
	VeryStrong Strength = "very-strong"
)

// StrengthFor maps a 0..100 score to its label.
func StrengthFor(score int) Strength {
	switch {
	case score >= 80:
		return VeryStrong
	case score >= 60:
		return Strong
	case score >= 40:
		return Good
	case score >= 20:
		return Fair
	default:
		return Weak
	}
}

// Requirements is a password policy.
type Requirements struct {
	MinLength      int  `json:"min_length" yaml:"min_length"`
	RequireUpper   bool `json:"require_upper" yaml:"require_upper"`
	RequireLower   bool `json:"require_lower" yaml:"require_lower"`
	RequireDigit   bool `json:"require_digit" yaml:"require_digit"`
	RequireSpecial bool `json:"require_special" yaml:"require_special"`
	DisallowCommon bool `json:"disallow_common" yaml:"disallow_common"`
}

// DefaultRequirements requires 12 characters, all four character classes
// and a password outside the common-password list.
func DefaultRequirements() Requirements {
	return Requirements{
		MinLength:      DefaultMinLength,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSpecial: true,
		DisallowCommon: true,
	}
}

// Assessment is the outcome of Validate. Valid depends only on Errors; the
// score is informational. Warnings note patterns that lowered the score.
type Assessment struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings,omitempty"`
	Strength Strength `json:"strength"`
	Score    int      `json:"score"`
}

// Messages shared by Validate and Feedback.
const (
	MsgUpper      = "Password must contain at least one uppercase letter"
	MsgLower      = "Password must contain at least one lowercase letter"
	MsgDigit      = "Password must contain at least one number"
	MsgSpecial    = "Password must contain at least one special character"
	MsgCommon     = "Password is too common and easily guessable"
	MsgSequential = "Password contains sequential characters (e.g., 123, abc)"
	MsgRepeated   = "Password contains too many repeated characters"
	MsgBreached   = "Password has appeared in a known data breach"
)

type classes struct {
	upper, lower, digit, special bool
}

func (c classes) count() int {
	n := 0
	for _, ok := range []bool{c.upper, c.lower, c.digit, c.special} {
		if ok {
			n++
		}
	}
	return n
}

func classify(pw string) classes {
	var c classes
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			c.upper = true
		case unicode.IsLower(r):
			c.lower = true
		case unicode.IsDigit(r):
			c.digit = true
		case !unicode.IsSpace(r) && !unicode.IsLetter(r):
			c.special = true
		}
	}
	return c
}

// Validate checks pw against req and scores it.
func Validate(pw string, req Requirements) Assessment {
	a := Assessment{Errors: []string{}}
	length := utf8.RuneCountInString(pw)
	c := classify(pw)

	if length < req.MinLength {
		a.Errors = append(a.Errors, fmt.Sprintf("Password must be at least %d characters long", req.MinLength))
	}
	if req.RequireUpper && !c.upper {
		a.Errors = append(a.Errors, MsgUpper)
	}
	if req.RequireLower && !c.lower {
		a.Errors = append(a.Errors, MsgLower)
	}
	if req.RequireDigit && !c.digit {
		a.Errors = append(a.Errors, MsgDigit)
	}
	if req.RequireSpecial && !c.special {
		a.Errors = append(a.Errors, MsgSpecial)
	}
	if req.DisallowCommon && IsCommon(pw) {
		a.Errors = append(a.Errors, MsgCommon)
	}

	score := 0
	if length >= req.MinLength {
		score += 20
	}
	if length >= 16 {
		score += 10
	}
	if length >= 20 {
		score += 10
	}
	score += 15 * c.count()
	if hasSequence(pw) {
		score -= 10
		a.Warnings = append(a.Warnings, MsgSequential)
	}
	if hasRepeat(pw) {
		score -= 10
		a.Warnings = append(a.Warnings, MsgRepeated)
	}
	switch c.count() {
	case 4:
		score += 10
	case 3:
		score += 5
	}

	a.Score = min(max(score, 0), 100)
	a.Strength = StrengthFor(a.Score)
	a.Valid = len(a.Errors) == 0
	return a
}

// hasSequence reports a run of three ascending or descending letters or
// digits, compared case-insensitively.
func hasSequence(pw string) bool {
	rs := []rune(strings.ToLower(pw))
	for i := 0; i+2 < len(rs); i++ {
		a, b, c := rs[i], rs[i+1], rs[i+2]
		if !sameSequenceClass(a, b, c) {
			continue
		}
		if (b == a+1 && c == b+1) || (b == a-1 && c == b-1) {
			return true
		}
	}
	return false
}

func sameSequenceClass(rs ...rune) bool {
	letters, digits := 0, 0
	for _, r := range rs {
		switch {
		case r >= 'a' && r <= 'z':
			letters++
		case r >= '0' && r <= '9':
			digits++
		}
	}
	return letters == len(rs) || digits == len(rs)
}

func hasRepeat(pw string) bool {
	rs := []rune(pw)
	for i := 0; i+2 < len(rs); i++ {
		if rs[i] == rs[i+1] && rs[i+1] == rs[i+2] {
			return true
		}
	}
	return false
}
