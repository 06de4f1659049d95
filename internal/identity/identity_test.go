package identity_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clubattend/internal/auth"
	"clubattend/internal/identity"
)

var pdsb = identity.Membership{Domain: "pdsb.net"}

func TestMembership(t *testing.T) {
	cases := []struct {
		email  string
		member bool
		number string
	}{
		{"123456@pdsb.net", true, "123456"},
		{"123456@PDSB.NET", true, "123456"},
		{"someone@gmail.com", false, "someone@gmail.com"},
		{"pdsb.net", false, "pdsb.net"},
		{"@pdsb.net", false, "@pdsb.net"},
		{"x@sub.pdsb.net", false, "x@sub.pdsb.net"},
	}
	for _, tc := range cases {
		if got := pdsb.IsMember(tc.email); got != tc.member {
			t.Errorf("IsMember(%q) = %v, want %v", tc.email, got, tc.member)
		}
		if got := pdsb.StudentNumber(tc.email); got != tc.number {
			t.Errorf("StudentNumber(%q) = %q, want %q", tc.email, got, tc.number)
		}
	}
	if (identity.Membership{}).IsMember("a@pdsb.net") {
		t.Error("empty domain must not match")
	}
}

func TestTokenResolver(t *testing.T) {
	r := identity.NewTokenResolver("secret", "clubattend", pdsb)
	token, _, err := auth.Issue(auth.Profile{
		Subject: "uid-1",
		Name:    "Ada",
		Email:   "123456@pdsb.net",
		Picture: "https://example.com/a.png",
	}, "clubattend", "secret", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	id, err := r.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id.SubjectID != "uid-1" || !id.IsOrganizationMember || id.PhotoURL != "https://example.com/a.png" {
		t.Errorf("unexpected identity %+v", id)
	}
}

func TestTokenResolver_Invalid(t *testing.T) {
	r := identity.NewTokenResolver("secret", "clubattend", pdsb)
	for _, tok := range []string{"", "not-a-jwt"} {
		if _, err := r.Resolve(context.Background(), tok); !errors.Is(err, identity.ErrInvalidToken) {
			t.Errorf("Resolve(%q): expected ErrInvalidToken, got %v", tok, err)
		}
	}
}

func TestClient_Resolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Token string `json:"token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch body.Token {
		case "good":
			_ = json.NewEncoder(w).Encode(map[string]string{
				"uid":          "uid-2",
				"display_name": "Grace",
				"email":        "654321@pdsb.net",
			})
		case "outsider":
			_ = json.NewEncoder(w).Encode(map[string]string{
				"uid":   "uid-3",
				"email": "grace@gmail.com",
			})
		case "boom":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	c := identity.NewClient(srv.URL, pdsb)
	ctx := context.Background()

	id, err := c.Resolve(ctx, "good")
	if err != nil {
		t.Fatalf("Resolve good: %v", err)
	}
	if id.SubjectID != "uid-2" || !id.IsOrganizationMember {
		t.Errorf("unexpected identity %+v", id)
	}

	id, err = c.Resolve(ctx, "outsider")
	if err != nil {
		t.Fatalf("Resolve outsider: %v", err)
	}
	if id.IsOrganizationMember {
		t.Error("expected outsider to be a non-member")
	}

	if _, err := c.Resolve(ctx, "unknown"); !errors.Is(err, identity.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for unknown token, got %v", err)
	}

	_, err = c.Resolve(ctx, "boom")
	if err == nil || errors.Is(err, identity.ErrInvalidToken) {
		t.Errorf("expected resolution failure for upstream error, got %v", err)
	}
}
