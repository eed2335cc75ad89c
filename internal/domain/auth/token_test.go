package auth

import (
	"testing"
	"time"
)

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken("secret-a", Claims{UserID: "u1", RoleName: RoleEmployee}, time.Minute)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := ParseToken("secret-b", token); err == nil {
		t.Fatal("expected parse failure with wrong secret")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, err := GenerateToken("secret", Claims{UserID: "u1", RoleName: RoleEmployee}, -time.Minute)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := ParseToken("secret", token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestHashTokenStable(t *testing.T) {
	if HashToken("abc") != HashToken("abc") {
		t.Fatal("expected stable hash")
	}
	if HashToken("abc") == HashToken("abd") {
		t.Fatal("expected distinct hashes")
	}
}

func TestUserCanSupervise(t *testing.T) {
	cases := []struct {
		user User
		want bool
	}{
		{User{Role: RoleAdmin}, true},
		{User{Role: RoleApprover}, true},
		{User{Role: RoleEmployee, ApprovalLevel: ApprovalLevel1}, true},
		{User{Role: RoleEmployee}, false},
	}
	for _, tc := range cases {
		if got := tc.user.CanSupervise(); got != tc.want {
			t.Fatalf("CanSupervise(%+v) = %v, want %v", tc.user, got, tc.want)
		}
	}
}
