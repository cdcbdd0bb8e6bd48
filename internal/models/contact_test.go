package models

import (
	"errors"
	"strings"
	"testing"
)

func TestEmergencyContactValidate(t *testing.T) {
	tests := []struct {
		name    string
		contact EmergencyContact
		field   string
	}{
		{name: "empty", contact: EmergencyContact{}},
		{name: "phone only", contact: EmergencyContact{Phone: "+1 (555) 010-0199"}},
		{name: "full", contact: EmergencyContact{Name: "Dana Reyes", Phone: "555.010.0199", Email: "dana@example.com"}},
		{name: "email only", contact: EmergencyContact{Name: "Dana Reyes", Email: "dana@example.com"}},
		{name: "letters in phone", contact: EmergencyContact{Phone: "call dana"}, field: "emergency_contact.phone"},
		{name: "too few digits", contact: EmergencyContact{Phone: "12"}, field: "emergency_contact.phone"},
		{name: "plus not leading", contact: EmergencyContact{Phone: "555+0199"}, field: "emergency_contact.phone"},
		{name: "bad email", contact: EmergencyContact{Phone: "5550199", Email: "dana@"}, field: "emergency_contact.email"},
		{name: "long name", contact: EmergencyContact{Name: strings.Repeat("a", 101), Phone: "5550199"}, field: "emergency_contact.name"},
		{name: "name without a way to reach", contact: EmergencyContact{Name: "Dana Reyes"}, field: "emergency_contact"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.contact.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Validate() error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestEmergencyContactCallable(t *testing.T) {
	if (EmergencyContact{Name: "Dana", Email: "dana@example.com"}).Callable() {
		t.Error("contact without a phone should not be callable")
	}
	if !(EmergencyContact{Phone: "5550199"}).Callable() {
		t.Error("contact with a phone should be callable")
	}
}

func TestProfileValidate(t *testing.T) {
	if err := (Profile{Name: "Pat", Email: "pat@example.com"}).Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
	var verr *ValidationError
	if err := (Profile{Email: "not-an-email"}).Validate(); !errors.As(err, &verr) || verr.Field != "profile.email" {
		t.Errorf("Validate() = %v, want profile.email error", err)
	}
}

func TestSettingsMapRoundTripKeepsContact(t *testing.T) {
	in := DefaultSettings()
	in.Profile = Profile{Name: "Pat", Email: "pat@example.com"}
	in.EmergencyContact = EmergencyContact{Name: "Dana Reyes", Phone: "555-0199"}

	out, err := MapToSettings(SettingsToMap(in))
	if err != nil {
		t.Fatalf("MapToSettings() error: %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}
