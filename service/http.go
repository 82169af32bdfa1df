package service

import (
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/mnehpets/httprpc/codec"
	"github.com/mnehpets/httprpc/endpoint"
	"github.com/mnehpets/httprpc/param"
	"github.com/mnehpets/httprpc/rpcerr"
)

// Endpoint serves the methods of a Service over HTTP.
//
// The method name is the {method} path value when the route declares one,
// and the last path segment otherwise:
//
//	e := service.NewEndpoint(svc)
//	mux.Handle("/rpc/{method}", endpoint.Handler(e.Endpoint))
//
// Parameters come from the query string and, for POST, a urlencoded or
// multipart form body. The result format follows the Accept header: JSON
// by default, or CBOR, CSV or server-sent events. A void method answers
// 200 with an empty body. Every failure before the body begins answers
// 500, with the rpcerr kind in the message.
type Endpoint struct {
	Service *Service
	// JSON configures the JSON encoder, which also encodes event data.
	JSON *codec.JSONEncoder
}

// NewEndpoint returns an endpoint for s writing compact JSON.
func NewEndpoint(s *Service) *Endpoint {
	return &Endpoint{Service: s, JSON: codec.NewJSONEncoder()}
}

type format struct {
	contentType string
	encoder     endpoint.Encoder
}

// Endpoint is an endpoint.EndpointFunc.
func (e *Endpoint) Endpoint(w http.ResponseWriter, r *http.Request, params param.Values) (endpoint.Renderer, error) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		return nil, endpoint.Error(http.StatusMethodNotAllowed, "method must be GET or POST", nil)
	}

	ctx := r.Context()
	name := methodName(r)
	start := time.Now()
	done := func(err error) {
		Complete(ctx, Completion{Method: name, Err: err, Duration: time.Since(start)})
	}

	m, ok := e.Service.Lookup(name)
	if !ok {
		err := rpcerr.Resolution("method not found: %s", name)
		done(err)
		return nil, err
	}
	f := e.negotiate(r.Header.Get("Accept"))

	result, err := m.Call(ctx, params)
	if err != nil {
		done(err)
		return nil, err
	}
	if m.Returns.kind == KindVoid {
		done(nil)
		return &endpoint.NoContentRenderer{Status: http.StatusOK}, nil
	}
	return &endpoint.ValueRenderer{
		ContentType: f.contentType,
		Value:       result,
		Encoder:     f.encoder,
		Done:        done,
	}, nil
}

func methodName(r *http.Request) string {
	if name := r.PathValue("method"); name != "" {
		return name
	}
	name := path.Base(r.URL.Path)
	if name == "/" || name == "." {
		return ""
	}
	return name
}

// negotiate picks the first supported media range in accept, in the
// client's order. Anything unrecognized falls back to JSON.
func (e *Endpoint) negotiate(accept string) format {
	jsonEnc := e.JSON
	if jsonEnc == nil {
		jsonEnc = codec.NewJSONEncoder()
	}
	for _, part := range strings.Split(accept, ",") {
		mediaType, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil || params["q"] == "0" {
			continue
		}
		switch mediaType {
		case "application/json", "application/*", "*/*":
			return format{"application/json", jsonEnc}
		case "application/cbor":
			return format{"application/cbor", codec.NewCBOREncoder()}
		case "text/csv":
			return format{"text/csv; charset=utf-8", codec.NewCSVEncoder()}
		case "text/event-stream":
			return format{"text/event-stream", &codec.EventStreamEncoder{JSON: jsonEnc}}
		}
	}
	return format{"application/json", jsonEnc}
}
