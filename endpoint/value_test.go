package endpoint

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mnehpets/httprpc/codec"
	"github.com/mnehpets/httprpc/param"
	"github.com/mnehpets/httprpc/rpcerr"
	"github.com/mnehpets/httprpc/value"
)

func TestValueRenderer_StreamsJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	var done []error
	vr := &ValueRenderer{
		Value: map[string]any{"cities": []string{"Sydney", "Melbourne"}},
		Done:  func(err error) { done = append(done, err) },
	}
	if err := vr.Render(rec, req); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected Content-Type %q, got %q", "application/json", got)
	}
	if got := rec.Body.String(); got != `{"cities":["Sydney","Melbourne"]}` {
		t.Fatalf("unexpected body %q", got)
	}
	if len(done) != 1 || done[0] != nil {
		t.Fatalf("expected one successful completion, got %v", done)
	}
}

func TestValueRenderer_UnsupportedValue(t *testing.T) {
	h := Handler(func(_ http.ResponseWriter, _ *http.Request, _ param.Values) (Renderer, error) {
		return &ValueRenderer{Value: make(chan int)}, nil
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
	}
}

type closer struct {
	closes int
}

func (c *closer) Close() error {
	c.closes++
	return nil
}

func TestValueRenderer_CloseReleasesUnrenderedValue(t *testing.T) {
	c := &closer{}
	vr := &ValueRenderer{Value: c}
	if err := vr.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	vr.Close()
	if c.closes != 1 {
		t.Fatalf("expected one close, got %d", c.closes)
	}
}

func TestValueRenderer_CheckFailsBeforeHeader(t *testing.T) {
	closes := 0
	seq := value.Entries().WithCloser(func() error {
		closes++
		return nil
	})
	var done error
	h := Handler(func(_ http.ResponseWriter, _ *http.Request, _ param.Values) (Renderer, error) {
		return &ValueRenderer{
			ContentType: "text/csv",
			Value:       seq,
			Encoder:     codec.NewCSVEncoder(),
			Done:        func(err error) { done = err },
		}, nil
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusNotAcceptable {
		t.Fatalf("expected status %d, got %d", http.StatusNotAcceptable, rec.Code)
	}
	if closes != 1 {
		t.Fatalf("expected value closed once, got %d", closes)
	}
	if done == nil {
		t.Fatalf("expected completion with error")
	}
}

func TestValueRenderer_StreamFailureKeepsStatus(t *testing.T) {
	errCursor := errors.New("cursor broke")
	i := 0
	seq := value.NewSequence(func() (value.Value, bool, error) {
		if i == 1 {
			return nil, false, errCursor
		}
		i++
		return value.Int(1), true, nil
	})

	var done error
	rec := httptest.NewRecorder()
	vr := &ValueRenderer{Value: seq, Done: func(err error) { done = err }}
	if err := vr.Render(rec, httptest.NewRequest(http.MethodGet, "/", nil)); err != nil {
		t.Fatalf("Render returned error after the body began: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if !errors.Is(done, errCursor) {
		t.Fatalf("expected completion with cursor error, got %v", done)
	}
	if !strings.HasPrefix(rec.Body.String(), "[1") {
		t.Fatalf("expected partial body, got %q", rec.Body.String())
	}
}

func TestValueRenderer_ResourceError(t *testing.T) {
	seq := value.Values(value.String("a")).WithCloser(func() error { return errors.New("release failed") })

	var done error
	rec := httptest.NewRecorder()
	vr := &ValueRenderer{Value: seq, Done: func(err error) { done = err }}
	if err := vr.Render(rec, httptest.NewRequest(http.MethodGet, "/", nil)); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if got := rec.Body.String(); got != `["a"]` {
		t.Fatalf("unexpected body %q", got)
	}
	if !errors.Is(done, rpcerr.ErrResource) {
		t.Fatalf("expected resource error, got %v", done)
	}
}
