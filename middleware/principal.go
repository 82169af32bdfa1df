package middleware

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/mnehpets/httprpc/endpoint"
	"github.com/mnehpets/httprpc/service"
)

var (
	ErrCookieFormat  = errors.New("invalid principal cookie format")
	ErrCookieInvalid = errors.New("invalid principal cookie")
	ErrCookieExpired = errors.New("principal cookie expired")
	ErrCookieConfig  = errors.New("invalid principal cookie configuration")
)

// maxCookieLen bounds the attacker-controlled data decoded for a cookie.
const maxCookieLen = 8192

// KeySize is the length in bytes of a principal cookie key.
const KeySize = chacha20poly1305.KeySize

// PrincipalCookie seals a service.Principal into a cookie and opens it again.
//
// Format: [keyId] "." [sealed_b64]
// where sealed = nonce || XChaCha20-Poly1305.Seal(nonce, cbor(claims), aad)
// and aad = name ":" path ":" secure.
//
// Keys holds every accepted key; KeyID selects the key used for sealing, so
// old keys can be kept for opening while a new one is rolled out.
type PrincipalCookie struct {
	Name   string
	Path   string
	Secure bool

	keyID string
	aeads map[string]cipher.AEAD
	now   func() time.Time
}

// claims is the sealed payload.
type claims struct {
	service.Principal
	Expires int64 `cbor:"exp"`
}

// NewPrincipalCookie creates a PrincipalCookie sealing with keys[keyID].
// Path defaults to "/" and Secure to true.
func NewPrincipalCookie(name, keyID string, keys map[string][]byte) (*PrincipalCookie, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty cookie name", ErrCookieConfig)
	}
	if _, ok := keys[keyID]; !ok {
		return nil, fmt.Errorf("%w: keyID %q not found in keys", ErrCookieConfig, keyID)
	}
	aeads := make(map[string]cipher.AEAD, len(keys))
	for id, k := range keys {
		aead, err := chacha20poly1305.NewX(k)
		if err != nil {
			return nil, fmt.Errorf("%w: key %s: %v", ErrCookieConfig, id, err)
		}
		aeads[id] = aead
	}
	return &PrincipalCookie{
		Name:   name,
		Path:   "/",
		Secure: true,
		keyID:  keyID,
		aeads:  aeads,
		now:    time.Now,
	}, nil
}

func (pc *PrincipalCookie) aad() []byte {
	secure := "f"
	if pc.Secure {
		secure = "t"
	}
	return []byte(pc.Name + ":" + pc.Path + ":" + secure)
}

// Issue returns a cookie carrying p that is valid for maxAge seconds.
func (pc *PrincipalCookie) Issue(p service.Principal, maxAge int) (*http.Cookie, error) {
	if maxAge <= 0 {
		return nil, fmt.Errorf("%w: maxAge must be positive", ErrCookieConfig)
	}
	if p.Subject == "" {
		return nil, fmt.Errorf("%w: empty subject", ErrCookieConfig)
	}
	expires := pc.now().Add(time.Duration(maxAge) * time.Second)
	plain, err := cbor.Marshal(claims{Principal: p, Expires: expires.Unix()})
	if err != nil {
		return nil, err
	}
	aead := pc.aeads[pc.keyID]
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	sealed := aead.Seal(nonce, nonce, plain, pc.aad())
	return &http.Cookie{
		Name:     pc.Name,
		Value:    pc.keyID + "." + base64.RawURLEncoding.EncodeToString(sealed),
		Path:     pc.Path,
		MaxAge:   maxAge,
		Expires:  expires,
		Secure:   pc.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// Open verifies and decodes a cookie produced by Issue.
func (pc *PrincipalCookie) Open(cookie *http.Cookie) (service.Principal, error) {
	if cookie == nil || len(cookie.Value) == 0 || len(cookie.Value) > maxCookieLen {
		return service.Principal{}, ErrCookieFormat
	}
	keyID, enc, ok := strings.Cut(cookie.Value, ".")
	if !ok || keyID == "" || enc == "" {
		return service.Principal{}, ErrCookieFormat
	}
	aead, ok := pc.aeads[keyID]
	if !ok {
		return service.Principal{}, ErrCookieInvalid
	}
	sealed, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil || len(sealed) < aead.NonceSize()+aead.Overhead() {
		return service.Principal{}, ErrCookieFormat
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, pc.aad())
	if err != nil {
		return service.Principal{}, ErrCookieInvalid
	}
	var c claims
	if err := cbor.Unmarshal(plain, &c); err != nil {
		return service.Principal{}, ErrCookieInvalid
	}
	if pc.now().Unix() >= c.Expires {
		return service.Principal{}, ErrCookieExpired
	}
	return c.Principal, nil
}

// Clear returns a cookie that removes the principal cookie from the client.
func (pc *PrincipalCookie) Clear() *http.Cookie {
	return &http.Cookie{
		Name:     pc.Name,
		Path:     pc.Path,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   pc.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// PrincipalProcessor attaches the caller carried by the principal cookie to
// the request context, where methods read it with
// service.PrincipalFromContext.
//
// A missing or unreadable cookie leaves the request anonymous, unless
// Required is set, in which case the request fails with 401.
type PrincipalProcessor struct {
	Cookie   *PrincipalCookie
	Required bool
}

// NewPrincipalProcessor creates a processor reading pc.
func NewPrincipalProcessor(pc *PrincipalCookie, required bool) *PrincipalProcessor {
	return &PrincipalProcessor{Cookie: pc, Required: required}
}

func (p *PrincipalProcessor) Process(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error {
	if p.Cookie == nil {
		return endpoint.Error(http.StatusInternalServerError, "principal cookie not configured", ErrCookieConfig)
	}
	ck, err := r.Cookie(p.Cookie.Name)
	if err == nil {
		var principal service.Principal
		if principal, err = p.Cookie.Open(ck); err == nil {
			return next(w, r.WithContext(service.WithPrincipal(r.Context(), principal)))
		}
	}
	if p.Required {
		return endpoint.Error(http.StatusUnauthorized, "", err)
	}
	return next(w, r)
}

var _ endpoint.Processor = (*PrincipalProcessor)(nil)
