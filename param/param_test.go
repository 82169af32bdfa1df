package param

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnehpets/httprpc/rpcerr"
)

func mustParse(t *testing.T, raw string) Values {
	t.Helper()
	pairs, err := ParseQuery(raw)
	require.NoError(t, err)
	vs, err := Decode(pairs)
	require.NoError(t, err)
	return vs
}

func TestDecode_Shapes(t *testing.T) {
	tests := []struct {
		name  string
		query string
		param string
		shape Shape
		text  string
		list  []string
		m     map[string]string
	}{
		{name: "single", query: "q=hello", param: "q", shape: Text, text: "hello"},
		{name: "empty text", query: "q=", param: "q", shape: Text, text: ""},
		{name: "repeated", query: "n=3&n=1&n=2", param: "n", shape: List, list: []string{"3", "1", "2"}},
		{name: "keyed", query: "a=x:1&a=y:2", param: "a", shape: Map, m: map[string]string{"x": "1", "y": "2"}},
		{name: "keyed overwrite", query: "a=x:1&a=x:2", param: "a", shape: Map, m: map[string]string{"x": "2"}},
		{name: "single keyed", query: "a=x:1", param: "a", shape: Map, m: map[string]string{"x": "1"}},
		{name: "value keeps later colons", query: "a=t:12:30", param: "a", shape: Map, m: map[string]string{"t": "12:30"}},
		{name: "percent escapes", query: "q=a%20b%2Cc+d", param: "q", shape: Text, text: "a b,c d"},
		{name: "escaped colon still keyed", query: "a=x%3A1", param: "a", shape: Map, m: map[string]string{"x": "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vs := mustParse(t, tt.query)
			v, ok := vs.Lookup(tt.param)
			require.True(t, ok)
			assert.Equal(t, tt.shape, v.Shape())
			switch tt.shape {
			case Text:
				assert.Equal(t, tt.text, v.Text())
			case List:
				assert.Equal(t, tt.list, v.List())
			case Map:
				assert.Equal(t, tt.m, v.Map())
			}
		})
	}
}

func TestDecode_ListPreservesSubmissionOrder(t *testing.T) {
	vs := mustParse(t, "x=a&other=1&x=b&x=c&x=d")
	assert.Equal(t, []string{"a", "b", "c", "d"}, vs["x"].List())
	assert.Len(t, vs["x"].List(), 4)
}

func TestDecode_MapKeysFirstSeenOrder(t *testing.T) {
	vs := mustParse(t, "m=b:1&m=a:2&m=b:3")
	assert.Equal(t, []string{"b", "a"}, vs["m"].Keys())
	assert.Equal(t, "3", vs["m"].Map()["b"])
}

func TestDecode_AbsentNames(t *testing.T) {
	vs := mustParse(t, "a=1&bare&&")
	_, ok := vs.Lookup("bare")
	assert.False(t, ok, "a name with no value yields no entry")
	_, ok = vs.Lookup("missing")
	assert.False(t, ok)
	assert.Len(t, vs, 1)
}

func TestDecode_MixedShapesIsDecodeError(t *testing.T) {
	pairs, err := ParseQuery("a=x:1&a=plain")
	require.NoError(t, err)
	_, err = Decode(pairs)
	require.Error(t, err)
	assert.ErrorIs(t, err, rpcerr.ErrDecode)
}

func TestParseQuery_InvalidEscape(t *testing.T) {
	_, err := ParseQuery("a=%zz")
	require.Error(t, err)
	assert.ErrorIs(t, err, rpcerr.ErrDecode)

	_, err = ParseQuery("%g=1")
	assert.ErrorIs(t, err, rpcerr.ErrDecode)
}

func TestFromRequest_QueryThenForm(t *testing.T) {
	body := strings.NewReader("tags=c&tags=d&limit=5")
	req := httptest.NewRequest(http.MethodPost, "/items?tags=a&tags=b", body)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	vs, err := FromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, vs["tags"].List())
	assert.Equal(t, "5", vs["limit"].Text())
}

func TestFromRequest_Multipart(t *testing.T) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("name", "widget"))
	require.NoError(t, w.WriteField("attr", "color:red"))
	require.NoError(t, w.WriteField("attr", "size:xl"))
	fw, err := w.CreateFormFile("upload", "a.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("file content"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/items", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())

	vs, err := FromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "widget", vs["name"].Text())
	assert.Equal(t, map[string]string{"color": "red", "size": "xl"}, vs["attr"].Map())
	_, ok := vs.Lookup("upload")
	assert.False(t, ok, "file parts are not parameters")
}

func TestFromRequest_IgnoresNonFormBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/items?id=7", strings.NewReader(`{"id": 8}`))
	req.Header.Set("Content-Type", "application/json")

	vs, err := FromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "7", vs["id"].Text())
}

func TestFromRequest_BadFormEscape(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader("a=%"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	_, err := FromRequest(req)
	assert.ErrorIs(t, err, rpcerr.ErrDecode)
}
