package middleware

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/mnehpets/httprpc/endpoint"
	"github.com/mnehpets/httprpc/service"
)

func newKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, KeySize)
	if _, err := rand.Read(k); err != nil {
		t.Fatalf("rand.Read(key): %v", err)
	}
	return k
}

func newPrincipalCookie(t *testing.T, keyID string, keys map[string][]byte) *PrincipalCookie {
	t.Helper()
	pc, err := NewPrincipalCookie("who", keyID, keys)
	if err != nil {
		t.Fatalf("NewPrincipalCookie: %v", err)
	}
	return pc
}

func TestPrincipalCookie_RoundTrip(t *testing.T) {
	pc := newPrincipalCookie(t, "a", map[string][]byte{"a": newKey(t)})
	want := service.Principal{Subject: "ada", Roles: []string{"reader", "admin"}}

	ck, err := pc.Issue(want, 3600)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if ck.Name != "who" || ck.Path != "/" || !ck.HttpOnly || !ck.Secure || ck.MaxAge != 3600 {
		t.Fatalf("cookie attributes: %+v", ck)
	}
	if !strings.HasPrefix(ck.Value, "a.") {
		t.Fatalf("cookie value prefix: got %q want to start with %q", ck.Value, "a.")
	}

	got, err := pc.Open(ck)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("principal mismatch: got %+v want %+v", got, want)
	}
}

func TestPrincipalCookie_Config(t *testing.T) {
	if _, err := NewPrincipalCookie("who", "missing", map[string][]byte{"a": newKey(t)}); !errors.Is(err, ErrCookieConfig) {
		t.Fatalf("missing keyID: got %v want %v", err, ErrCookieConfig)
	}
	if _, err := NewPrincipalCookie("who", "a", map[string][]byte{"a": []byte("short")}); !errors.Is(err, ErrCookieConfig) {
		t.Fatalf("short key: got %v want %v", err, ErrCookieConfig)
	}
	if _, err := NewPrincipalCookie("", "a", map[string][]byte{"a": newKey(t)}); !errors.Is(err, ErrCookieConfig) {
		t.Fatalf("empty name: got %v want %v", err, ErrCookieConfig)
	}

	pc := newPrincipalCookie(t, "a", map[string][]byte{"a": newKey(t)})
	if _, err := pc.Issue(service.Principal{Subject: "ada"}, 0); !errors.Is(err, ErrCookieConfig) {
		t.Fatalf("zero maxAge: got %v want %v", err, ErrCookieConfig)
	}
	if _, err := pc.Issue(service.Principal{}, 60); !errors.Is(err, ErrCookieConfig) {
		t.Fatalf("empty subject: got %v want %v", err, ErrCookieConfig)
	}
}

func TestPrincipalCookie_Rotation_OldKeyStillOpens(t *testing.T) {
	oldK, newK := newKey(t), newKey(t)
	before := newPrincipalCookie(t, "old", map[string][]byte{"old": oldK})
	after := newPrincipalCookie(t, "new", map[string][]byte{"old": oldK, "new": newK})

	ck, err := before.Issue(service.Principal{Subject: "ada"}, 60)
	if err != nil {
		t.Fatalf("Issue(old): %v", err)
	}
	got, err := after.Open(ck)
	if err != nil {
		t.Fatalf("Open(with new instance): %v", err)
	}
	if got.Subject != "ada" {
		t.Fatalf("subject: got %q want %q", got.Subject, "ada")
	}

	ck, err = after.Issue(service.Principal{Subject: "bob"}, 60)
	if err != nil {
		t.Fatalf("Issue(new): %v", err)
	}
	if !strings.HasPrefix(ck.Value, "new.") {
		t.Fatalf("cookie value prefix: got %q want to start with %q", ck.Value, "new.")
	}
	if _, err := before.Open(ck); !errors.Is(err, ErrCookieInvalid) {
		t.Fatalf("Open(unknown keyID): got %v want %v", err, ErrCookieInvalid)
	}
}

func TestPrincipalCookie_Rejects(t *testing.T) {
	key := newKey(t)
	pc := newPrincipalCookie(t, "a", map[string][]byte{"a": key})
	ck, err := pc.Issue(service.Principal{Subject: "ada"}, 60)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	_, enc, _ := strings.Cut(ck.Value, ".")
	sealed, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		t.Fatalf("decode value: %v", err)
	}
	sealed[len(sealed)-1] ^= 0x01
	tampered := "a." + base64.RawURLEncoding.EncodeToString(sealed)

	other := newPrincipalCookie(t, "a", map[string][]byte{"a": newKey(t)})
	renamed, err := NewPrincipalCookie("other", "a", map[string][]byte{"a": key})
	if err != nil {
		t.Fatalf("NewPrincipalCookie: %v", err)
	}

	tests := []struct {
		name  string
		pc    *PrincipalCookie
		value string
		want  error
	}{
		{"empty", pc, "", ErrCookieFormat},
		{"no separator", pc, "abc", ErrCookieFormat},
		{"bad base64", pc, "a.!!!", ErrCookieFormat},
		{"too short", pc, "a.AAAA", ErrCookieFormat},
		{"too long", pc, "a." + strings.Repeat("A", maxCookieLen), ErrCookieFormat},
		{"tampered", pc, tampered, ErrCookieInvalid},
		{"wrong key", other, ck.Value, ErrCookieInvalid},
		{"bound to name", renamed, ck.Value, ErrCookieInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.pc.Open(&http.Cookie{Name: "who", Value: tt.value})
			if !errors.Is(err, tt.want) {
				t.Fatalf("Open: got %v want %v", err, tt.want)
			}
		})
	}
	if _, err := pc.Open(nil); !errors.Is(err, ErrCookieFormat) {
		t.Fatalf("Open(nil): got %v want %v", err, ErrCookieFormat)
	}
}

func TestPrincipalCookie_Expired(t *testing.T) {
	pc := newPrincipalCookie(t, "a", map[string][]byte{"a": newKey(t)})
	issued := time.Unix(1700000000, 0)
	pc.now = func() time.Time { return issued }
	ck, err := pc.Issue(service.Principal{Subject: "ada"}, 60)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	pc.now = func() time.Time { return issued.Add(59 * time.Second) }
	if _, err := pc.Open(ck); err != nil {
		t.Fatalf("Open before expiry: %v", err)
	}
	pc.now = func() time.Time { return issued.Add(61 * time.Second) }
	if _, err := pc.Open(ck); !errors.Is(err, ErrCookieExpired) {
		t.Fatalf("Open after expiry: got %v want %v", err, ErrCookieExpired)
	}
}

func TestPrincipalCookie_Clear(t *testing.T) {
	pc := newPrincipalCookie(t, "a", map[string][]byte{"a": newKey(t)})
	ck := pc.Clear()
	if ck.Name != "who" || ck.Value != "" || ck.MaxAge != -1 || ck.Expires.IsZero() {
		t.Fatalf("clear cookie: %+v", ck)
	}
}

func TestPrincipalProcessor(t *testing.T) {
	pc := newPrincipalCookie(t, "a", map[string][]byte{"a": newKey(t)})
	ck, err := pc.Issue(service.Principal{Subject: "ada", Roles: []string{"admin"}}, 60)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	whoami := func(w http.ResponseWriter, r *http.Request) error {
		p, ok := service.PrincipalFromContext(r.Context())
		if !ok {
			p.Subject = "anonymous"
		}
		_, err := w.Write([]byte(p.Subject))
		return err
	}

	tests := []struct {
		name     string
		required bool
		cookie   *http.Cookie
		wantErr  int
		wantBody string
	}{
		{"valid", false, ck, 0, "ada"},
		{"valid required", true, ck, 0, "ada"},
		{"missing", false, nil, 0, "anonymous"},
		{"missing required", true, nil, http.StatusUnauthorized, ""},
		{"garbage", false, &http.Cookie{Name: "who", Value: "a.xyz"}, 0, "anonymous"},
		{"garbage required", true, &http.Cookie{Name: "who", Value: "a.xyz"}, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			rec := httptest.NewRecorder()
			err := NewPrincipalProcessor(pc, tt.required).Process(rec, req, whoami)
			if tt.wantErr != 0 {
				if err == nil {
					t.Fatalf("expected error")
				}
				if got := endpoint.StatusOf(err); got != tt.wantErr {
					t.Fatalf("status: got %d want %d", got, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			if rec.Body.String() != tt.wantBody {
				t.Fatalf("body: got %q want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}
