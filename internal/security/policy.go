package security

import "errors"

// ErrPasswordPolicy is wrapped by ValidatePassword when at least one rule fails.
var ErrPasswordPolicy = errors.New("password does not meet policy")

// PasswordRule is one independent predicate of the password policy.
type PasswordRule struct {
	// ID is a stable identifier (e.g. "min_length") for UI lookups.
	ID string
	// Description is the user-facing rule text.
	Description string
	Check       func(password string) bool
}

// RuleResult is the outcome of a single rule against a candidate password.
type RuleResult struct {
	ID          string
	Description string
	Passed      bool
}

const minPasswordLength = 8

// Letter and digit classes are ASCII only; accented letters count toward length alone.
func inRange(lo, hi rune) func(rune) bool {
	return func(r rune) bool { return r >= lo && r <= hi }
}

// PasswordRules is the ordered policy used both for live feedback and at submit time.
var PasswordRules = []PasswordRule{
	{
		ID:          "min_length",
		Description: "At least 8 characters",
		Check:       func(pw string) bool { return len([]rune(pw)) >= minPasswordLength },
	},
	{
		ID:          "uppercase",
		Description: "At least one uppercase letter",
		Check:       func(pw string) bool { return containsRune(pw, inRange('A', 'Z')) },
	},
	{
		ID:          "lowercase",
		Description: "At least one lowercase letter",
		Check:       func(pw string) bool { return containsRune(pw, inRange('a', 'z')) },
	},
	{
		ID:          "digit",
		Description: "At least one number",
		Check:       func(pw string) bool { return containsRune(pw, inRange('0', '9')) },
	},
}

// EvaluatePassword runs every rule in order and reports each result.
func EvaluatePassword(password string) []RuleResult {
	out := make([]RuleResult, 0, len(PasswordRules))
	for _, rule := range PasswordRules {
		out = append(out, RuleResult{
			ID:          rule.ID,
			Description: rule.Description,
			Passed:      rule.Check(password),
		})
	}
	return out
}

// PasswordAccepted reports whether every rule holds.
func PasswordAccepted(password string) bool {
	for _, r := range EvaluatePassword(password) {
		if !r.Passed {
			return false
		}
	}
	return true
}

// ValidatePassword returns nil when the password satisfies the policy, otherwise an error
// wrapping ErrPasswordPolicy that names the first failing rule.
func ValidatePassword(password string) error {
	for _, r := range EvaluatePassword(password) {
		if !r.Passed {
			return &PolicyError{Failed: r}
		}
	}
	return nil
}

// PasswordsMatch reports whether the password and its confirmation are identical.
func PasswordsMatch(password, confirm string) bool {
	return password == confirm
}

// PolicyError names the first rule a password failed.
type PolicyError struct {
	Failed RuleResult
}

func (e *PolicyError) Error() string {
	return ErrPasswordPolicy.Error() + ": " + e.Failed.Description
}

func (e *PolicyError) Unwrap() error { return ErrPasswordPolicy }

func containsRune(s string, pred func(rune) bool) bool {
	for _, r := range s {
		if pred(r) {
			return true
		}
	}
	return false
}
