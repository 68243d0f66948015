package auth

import (
	"context"
	stdErrors "errors"
	"testing"
)

func staticConfig() Config {
	return Config{
		Mode: ModeStatic,
		Tokens: []StaticToken{
			{Token: "admin-token", Name: "admin", Permissions: []string{"epochs:write"}},
			{Token: "reader-token", Name: "reader"},
			{Token: "revoked-token", Name: "revoked", Disabled: true},
		},
	}
}

func TestNewServiceValidation(t *testing.T) {
	if _, err := NewService(Config{Mode: "jwt"}); err == nil {
		t.Fatalf("expected error for unsupported mode")
	}
	if _, err := NewService(Config{Mode: ModeStatic}); err == nil {
		t.Fatalf("expected error for static mode without tokens")
	}
	if _, err := NewService(Config{Mode: ModeStatic, Tokens: []StaticToken{{Token: "  "}}}); err == nil {
		t.Fatalf("expected error for blank token")
	}
}

func TestAuthenticateRequestDisabledMode(t *testing.T) {
	service, err := NewService(Config{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if service.Enabled() {
		t.Fatalf("default mode should be disabled")
	}
	subject, err := service.AuthenticateRequest(context.Background(), "")
	if err != nil || subject != nil {
		t.Fatalf("disabled mode must admit anonymous requests: subject=%v err=%v", subject, err)
	}
}

func TestAuthenticateRequestStaticTokens(t *testing.T) {
	service, err := NewService(staticConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()

	cases := []struct {
		name          string
		authorization string
		wantErr       error
		wantName      string
	}{
		{"valid token", "Bearer admin-token", nil, "admin"},
		{"case-insensitive scheme", "bearer admin-token", nil, "admin"},
		{"padded token", "Bearer  reader-token ", nil, "reader"},
		{"missing header", "", ErrMissingToken, ""},
		{"scheme only", "Bearer ", ErrInvalidToken, ""},
		{"wrong scheme", "Basic admin-token", ErrInvalidToken, ""},
		{"unknown token", "Bearer nope", ErrInvalidToken, ""},
		{"revoked token", "Bearer revoked-token", ErrSubjectRevoked, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			subject, err := service.AuthenticateRequest(ctx, tc.authorization)
			if tc.wantErr != nil {
				if !stdErrors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("authenticate: %v", err)
			}
			if subject.Name != tc.wantName {
				t.Fatalf("subject = %s, want %s", subject.Name, tc.wantName)
			}
		})
	}
}

func TestSubjectAuthorize(t *testing.T) {
	service, err := NewService(staticConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()

	admin, err := service.AuthenticateRequest(ctx, "Bearer admin-token")
	if err != nil {
		t.Fatalf("authenticate admin: %v", err)
	}
	if err := admin.Authorize("epochs:write"); err != nil {
		t.Fatalf("admin should hold epochs:write: %v", err)
	}
	if !admin.HasPermission("EPOCHS:WRITE") {
		t.Fatalf("permission check should ignore case")
	}

	reader, err := service.AuthenticateRequest(ctx, "Bearer reader-token")
	if err != nil {
		t.Fatalf("authenticate reader: %v", err)
	}
	if err := reader.Authorize("epochs:write"); !stdErrors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
}

func TestSubjectCloneIsIndependent(t *testing.T) {
	subject := &Subject{Name: "a", Permissions: []string{"epochs:write"}}
	clone := subject.Clone()
	clone.Permissions[0] = "other"
	if subject.Permissions[0] != "epochs:write" {
		t.Fatalf("clone shares permission slice with original")
	}
}

func TestContextRoundTrip(t *testing.T) {
	subject := &Subject{Name: "a"}
	ctx := WithSubject(context.Background(), subject)
	if got := SubjectFromContext(ctx); got == nil || got.Name != "a" {
		t.Fatalf("subject not recoverable from context: %+v", got)
	}
	if got := SubjectFromContext(context.Background()); got != nil {
		t.Fatalf("empty context should not carry a subject: %+v", got)
	}
}
