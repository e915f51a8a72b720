package idrule

import (
	"strings"
	"testing"
)

func TestValidateValid(t *testing.T) {
	ids := []string{"runner-001", "track_2024", "se-001", "MyRunner123", "a"}
	for _, id := range ids {
		if err := Validate(id); err != nil {
			t.Errorf("Validate(%q) = %v, want nil", id, err)
		}
	}
}

func TestValidateEmpty(t *testing.T) {
	err := Validate("")
	if err == nil {
		t.Fatal("expected error for empty id")
	}
	var ve *Error
	if !errorsAs(err, &ve) || ve.Rule != RuleEmpty {
		t.Errorf("expected RuleEmpty, got %v", err)
	}
}

func TestValidateTooLong(t *testing.T) {
	long := strings.Repeat("a", MaxIDLength+1)
	err := Validate(long)
	var ve *Error
	if !errorsAs(err, &ve) || ve.Rule != RuleTooLong {
		t.Errorf("expected RuleTooLong, got %v", err)
	}
}

func TestValidateInvalidChars(t *testing.T) {
	bad := []string{"runner/001", "../passwd", "runner 001", "runner.md", "runner:001"}
	for _, id := range bad {
		err := Validate(id)
		var ve *Error
		if !errorsAs(err, &ve) || ve.Rule != RuleInvalidChars {
			t.Errorf("Validate(%q): expected RuleInvalidChars, got %v", id, err)
		}
	}
}

func TestValidateReservedNames(t *testing.T) {
	bad := []string{".", "..", "CON", "nul", "AUX"}
	for _, id := range bad {
		err := Validate(id)
		var ve *Error
		if !errorsAs(err, &ve) || ve.Rule != RuleReservedName {
			t.Errorf("Validate(%q): expected RuleReservedName, got %v", id, err)
		}
	}
}

// errorsAs is a tiny local helper to avoid importing errors in every
// test case above for a single type assertion.
func errorsAs(err error, target **Error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = e
	return true
}
