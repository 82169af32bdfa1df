package param

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"sort"
	"strings"

	"github.com/mnehpets/httprpc/rpcerr"
)

// defaultFormLimit is the maximum amount of memory to use when parsing
// multipart form data. Anything beyond this may be stored in temporary files by
// net/http.
var defaultFormLimit int64 = 32 << 20

// maxFormBody bounds an application/x-www-form-urlencoded body.
var maxFormBody int64 = 10 << 20

// PairsFromRequest returns the query string pairs followed by the form body
// pairs of r. Multipart file parts are not parameters and are skipped.
func PairsFromRequest(r *http.Request) ([]Pair, error) {
	if r == nil {
		return nil, rpcerr.Decode(errors.New("nil request"), "request")
	}

	var pairs []Pair
	if r.URL != nil {
		q, err := ParseQuery(r.URL.RawQuery)
		if err != nil {
			return nil, err
		}
		pairs = q
	}

	if r.Body == nil || r.Body == http.NoBody {
		return pairs, nil
	}

	switch requestBodyMediaType(r) {
	case "application/x-www-form-urlencoded":
		b, err := io.ReadAll(io.LimitReader(r.Body, maxFormBody+1))
		if err != nil {
			return nil, rpcerr.Decode(err, "read form body")
		}
		if int64(len(b)) > maxFormBody {
			return nil, rpcerr.Decode(nil, "form body exceeds %d bytes", maxFormBody)
		}
		body, err := ParseQuery(string(b))
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, body...)
	case "multipart/form-data":
		if err := r.ParseMultipartForm(defaultFormLimit); err != nil {
			return nil, rpcerr.Decode(err, "parse multipart form")
		}
		if r.MultipartForm == nil {
			return pairs, nil
		}
		// Part order across names is not retained by mime/multipart; order
		// within a name is.
		names := make([]string, 0, len(r.MultipartForm.Value))
		for name := range r.MultipartForm.Value {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			for _, text := range r.MultipartForm.Value[name] {
				pairs = append(pairs, Pair{Name: name, Text: text, Present: true})
			}
		}
	}
	return pairs, nil
}

// FromRequest decodes the parameters of r.
func FromRequest(r *http.Request) (Values, error) {
	pairs, err := PairsFromRequest(r)
	if err != nil {
		return nil, err
	}
	return Decode(pairs)
}

func requestBodyMediaType(r *http.Request) string {
	ct := strings.TrimSpace(r.Header.Get("Content-Type"))
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		// If malformed, return the raw (lowercased) content-type.
		return strings.ToLower(ct)
	}
	return strings.ToLower(strings.TrimSpace(mt))
}
