package param

import (
	"net/url"
	"strings"

	"github.com/mnehpets/httprpc/rpcerr"
)

// ParseQuery splits a URL-encoded query string or form body into pairs,
// in submission order. Percent-escapes and '+' are resolved; an invalid
// escape is a decode error.
func ParseQuery(raw string) ([]Pair, error) {
	var pairs []Pair
	for raw != "" {
		var seg string
		seg, raw, _ = strings.Cut(raw, "&")
		if seg == "" {
			continue
		}
		rawName, rawText, hasText := strings.Cut(seg, "=")
		name, err := url.QueryUnescape(rawName)
		if err != nil {
			return nil, rpcerr.Decode(err, "param name %q", rawName)
		}
		text := ""
		if hasText {
			text, err = url.QueryUnescape(rawText)
			if err != nil {
				return nil, rpcerr.Decode(err, "param %q", name)
			}
		}
		pairs = append(pairs, Pair{Name: name, Text: text, Present: hasText})
	}
	return pairs, nil
}
