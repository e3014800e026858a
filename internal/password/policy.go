package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MinLength is the minimum number of characters in a password.
	MinLength = 8

	// MaxLength is the longest password bcrypt accepts, in bytes.
	MaxLength = 72

	// SpecialCharacters is the set a password must draw at least one character from.
	SpecialCharacters = `!@#$%^&*(),.?":{}|<>`
)

// Rule names one password policy requirement.
type Rule string

const (
	RuleMinLength Rule = "min_length"
	RuleMaxLength Rule = "max_length"
	RuleLowercase Rule = "lowercase"
	RuleUppercase Rule = "uppercase"
	RuleDigit     Rule = "digit"
	RuleSpecial   Rule = "special"
)

var ruleMessages = map[Rule]string{
	RuleMinLength: "password must be at least 8 characters long",
	RuleMaxLength: "password must be at most 72 bytes long",
	RuleLowercase: "password must contain a lowercase letter",
	RuleUppercase: "password must contain an uppercase letter",
	RuleDigit:     "password must contain a digit",
	RuleSpecial:   "password must contain one of " + SpecialCharacters,
}

// Message returns the human-readable form of the rule.
func (r Rule) Message() string {
	if msg, ok := ruleMessages[r]; ok {
		return msg
	}
	return string(r)
}

// ValidatePolicy returns every rule password violates, in a fixed order.
// An empty result means the password is acceptable.
func ValidatePolicy(password string) []Rule {
	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(SpecialCharacters, r):
			special = true
		}
	}

	var violations []Rule
	if utf8.RuneCountInString(password) < MinLength {
		violations = append(violations, RuleMinLength)
	}
	if len(password) > MaxLength {
		violations = append(violations, RuleMaxLength)
	}
	if !lower {
		violations = append(violations, RuleLowercase)
	}
	if !upper {
		violations = append(violations, RuleUppercase)
	}
	if !digit {
		violations = append(violations, RuleDigit)
	}
	if !special {
		violations = append(violations, RuleSpecial)
	}
	return violations
}
