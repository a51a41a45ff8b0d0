package httpapi

import "testing"

func TestHashAPIKeyIsDeterministic(t *testing.T) {
	a := hashAPIKey("pkg_same-key")
	b := hashAPIKey("pkg_same-key")
	if a != b {
		t.Errorf("hashAPIKey not deterministic: %q != %q", a, b)
	}
	if hashAPIKey("pkg_other-key") == a {
		t.Error("different keys hashed to the same value")
	}
}

func TestNewAuthAppliesDefaults(t *testing.T) {
	a := NewAuth(nil, "secret", 0, 0, 0, 0, 0)
	if a.BcryptCost <= 0 {
		t.Errorf("expected a positive default bcrypt cost, got %d", a.BcryptCost)
	}
	if a.MaxFailedLogins != DefaultMaxFailedLogins {
		t.Errorf("MaxFailedLogins = %d, want %d", a.MaxFailedLogins, DefaultMaxFailedLogins)
	}
	if a.LockoutDuration != DefaultLockoutDuration {
		t.Errorf("LockoutDuration = %v, want %v", a.LockoutDuration, DefaultLockoutDuration)
	}
}
