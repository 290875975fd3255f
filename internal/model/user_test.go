package model

import "testing"

func TestRoleAtLeast(t *testing.T) {
	tests := []struct {
		role, minimum string
		want          bool
	}{
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleTechnician, true},
		{RoleManager, RoleManager, true},
		{RoleManager, RoleAdmin, false},
		{RoleTechnician, RoleManager, false},
		{RoleTechnician, RoleTechnician, true},
		{"", RoleTechnician, false},
		{"bogus", RoleTechnician, false},
	}
	for _, tt := range tests {
		if got := RoleAtLeast(tt.role, tt.minimum); got != tt.want {
			t.Errorf("RoleAtLeast(%q, %q) = %v, want %v", tt.role, tt.minimum, got, tt.want)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	for _, password := range []string{"", "short", "1234567"} {
		if err := ValidatePassword(password); err == nil {
			t.Errorf("ValidatePassword(%q) accepted", password)
		}
	}
	if err := ValidatePassword("12345678"); err != nil {
		t.Errorf("ValidatePassword rejected valid password: %v", err)
	}
}
