package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/samvad-hq/samvad-fetch/pkg/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	baseURL     = "https://api.example.com"
	bearerToken = "your-bearer-token"
)

type fakeResponse struct {
	code    int
	text    string
	body    string
	success *bool
}

func (f fakeResponse) Body() []byte    { return []byte(f.body) }
func (f fakeResponse) StatusCode() int { return f.code }
func (f fakeResponse) Status() string  { return f.text }
func (f fakeResponse) IsSuccess() bool {
	if f.success != nil {
		return *f.success
	}
	return f.code > 199 && f.code < 300
}

type fakeTransport struct {
	resp    fakeResponse
	err     error
	calls   int
	method  string
	url     string
	headers map[string]string
	body    []byte
}

func (f *fakeTransport) Do(_ context.Context, method, url string, headers map[string]string, body []byte) (httpclient.Response, error) {
	f.calls++
	f.method = method
	f.url = url
	f.headers = headers
	f.body = body
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type exampleData struct {
	Data string `json:"data"`
}

type exampleError struct {
	Message string `json:"message"`
}

func TestGetSuccess(t *testing.T) {
	assert := assert.New(t)
	transport := &fakeTransport{resp: fakeResponse{code: 200, text: "OK", body: `{"data":"example data"}`}}

	res, err := Get[exampleData, exampleError](context.Background(), New(transport), Request{
		BaseURL:     baseURL,
		Path:        "/example",
		BearerToken: bearerToken,
	})
	require.NoError(t, err)

	assert.Equal(1, transport.calls)
	assert.Equal("GET", transport.method)
	assert.Equal(baseURL+"/example", transport.url)
	assert.Equal(map[string]string{"Authorization": "Bearer " + bearerToken}, transport.headers)
	assert.Nil(transport.body)
	require.NotNil(t, res.Payload)
	assert.Equal(exampleData{Data: "example data"}, *res.Payload)
	assert.Nil(res.Error)
	assert.True(res.OK())
}

func TestGetError(t *testing.T) {
	assert := assert.New(t)
	transport := &fakeTransport{resp: fakeResponse{code: 404, text: "Not Found", body: `{"message":"Example error"}`}}

	res, err := Get[exampleData, exampleError](context.Background(), New(transport), Request{
		BaseURL:     baseURL,
		Path:        "/example",
		BearerToken: bearerToken,
	})
	require.NoError(t, err)

	assert.Nil(res.Payload)
	require.NotNil(t, res.Error)
	assert.Equal(exampleError{Message: "Example error"}, *res.Error)
	assert.False(res.OK())
}

func TestPostWithoutPayloadEmptyBody(t *testing.T) {
	assert := assert.New(t)
	transport := &fakeTransport{resp: fakeResponse{code: 200, text: "OK"}}

	res, err := Post[any, any](context.Background(), New(transport), Request{BaseURL: baseURL, Path: "/example"}, nil)
	require.NoError(t, err)

	assert.Equal("POST", transport.method)
	assert.Nil(transport.body)
	assert.NotContains(transport.headers, "Authorization")
	assert.NotContains(transport.headers, "Content-Type")
	require.NotNil(t, res.Payload)
	assert.Equal(StatusDescriptor{Status: 200, StatusText: "OK"}, *res.Payload)
	assert.Nil(res.Error)
}

func TestNullPayloadsSendNoBody(t *testing.T) {
	payloads := map[string]any{
		"nil pointer": (*exampleData)(nil),
		"nil map":     map[string]any(nil),
		"raw null":    json.RawMessage("null"),
		"padded null": json.RawMessage(" null "),
	}
	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			transport := &fakeTransport{resp: fakeResponse{code: 200, text: "OK"}}

			_, err := Put[any, any](context.Background(), New(transport), Request{BaseURL: baseURL, Path: "/example"}, payload)
			require.NoError(t, err)

			assert.Equal(t, "PUT", transport.method)
			assert.Nil(t, transport.body)
			assert.NotContains(t, transport.headers, "Content-Type")
		})
	}
}

func TestFailureWithEmptyBodySubstitutesStatus(t *testing.T) {
	transport := &fakeTransport{resp: fakeResponse{code: 503, text: "Service Unavailable", body: "  \n"}}

	res, err := Delete[map[string]any, StatusDescriptor](context.Background(), New(transport), Request{BaseURL: baseURL, Path: "/x"})
	require.NoError(t, err)

	assert.Equal(t, "DELETE", transport.method)
	assert.Nil(t, res.Payload)
	require.NotNil(t, res.Error)
	assert.Equal(t, StatusDescriptor{Status: 503, StatusText: "Service Unavailable"}, *res.Error)
}

func TestNullBodyTreatedAsAbsent(t *testing.T) {
	transport := &fakeTransport{resp: fakeResponse{code: 204, text: "No Content", body: "null"}}

	res, err := Get[map[string]any, any](context.Background(), New(transport), Request{BaseURL: baseURL, Path: "/x"})
	require.NoError(t, err)
	require.NotNil(t, res.Payload)
	assert.Equal(t, map[string]any{"status": float64(204), "statusText": "No Content"}, *res.Payload)
}

func TestStatusSubstitutionIntoRawMessage(t *testing.T) {
	transport := &fakeTransport{resp: fakeResponse{code: 500, text: "Internal Server Error"}}

	res, err := Get[json.RawMessage, json.RawMessage](context.Background(), New(transport), Request{BaseURL: baseURL})
	require.NoError(t, err)
	require.NotNil(t, res.Error)
	assert.JSONEq(t, `{"status":500,"statusText":"Internal Server Error"}`, string(*res.Error))
}

func TestPostAndPutSendJSONPayload(t *testing.T) {
	payload := map[string]string{"teste": "example data"}
	for _, call := range []struct {
		method string
		fn     func(context.Context, *Client, Request, any) (Result[any, any], error)
	}{
		{"POST", Post[any, any]},
		{"PUT", Put[any, any]},
	} {
		t.Run(call.method, func(t *testing.T) {
			transport := &fakeTransport{resp: fakeResponse{code: 201, text: "Created", body: `{"id":1}`}}
			res, err := call.fn(context.Background(), New(transport), Request{
				BaseURL:     baseURL,
				Path:        "/example",
				BearerToken: bearerToken,
			}, payload)
			require.NoError(t, err)

			assert.Equal(t, call.method, transport.method)
			assert.JSONEq(t, `{"teste":"example data"}`, string(transport.body))
			assert.Equal(t, "Bearer "+bearerToken, transport.headers["Authorization"])
			assert.Equal(t, "application/json", transport.headers["Content-Type"])
			require.NotNil(t, res.Payload)
			assert.Equal(t, map[string]any{"id": float64(1)}, *res.Payload)
		})
	}
}

func TestGetAndDeleteDropPayload(t *testing.T) {
	transport := &fakeTransport{resp: fakeResponse{code: 200, text: "OK", body: `{}`}}
	req := Request{BaseURL: baseURL, Path: "/x", Method: MethodPost, Payload: map[string]int{"a": 1}}

	_, err := Get[any, any](context.Background(), New(transport), req)
	require.NoError(t, err)
	assert.Equal(t, "GET", transport.method)
	assert.Nil(t, transport.body)

	_, err = Delete[any, any](context.Background(), New(transport), req)
	require.NoError(t, err)
	assert.Equal(t, "DELETE", transport.method)
	assert.Nil(t, transport.body)
}

func TestCallerHeadersMergeOverAuthorization(t *testing.T) {
	transport := &fakeTransport{resp: fakeResponse{code: 200, text: "OK", body: `{}`}}

	_, err := Put[any, any](context.Background(), New(transport), Request{
		BaseURL:     baseURL,
		BearerToken: bearerToken,
		Headers: map[string]string{
			"Authorization": "Basic abc",
			"content-type":  "application/merge-patch+json",
			"X-Trace":       "t1",
		},
	}, map[string]int{"a": 1})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"Authorization": "Basic abc",
		"content-type":  "application/merge-patch+json",
		"X-Trace":       "t1",
	}, transport.headers)
}

func TestTransportErrorBypassesEnvelope(t *testing.T) {
	transport := &fakeTransport{err: errors.New("dial tcp: no such host")}

	res, err := Get[any, any](context.Background(), New(transport), Request{BaseURL: baseURL})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Nil(t, res.Payload)
	assert.Nil(t, res.Error)
}

func TestMalformedBodyIsError(t *testing.T) {
	transport := &fakeTransport{resp: fakeResponse{code: 200, text: "OK", body: `{"data":`}}

	_, err := Get[any, any](context.Background(), New(transport), Request{BaseURL: baseURL})
	assert.ErrorIs(t, err, ErrDecodeBody)
}

func TestUnsupportedMethod(t *testing.T) {
	transport := &fakeTransport{}

	_, err := Do[any, any](context.Background(), New(transport), Request{BaseURL: baseURL, Method: "PATCH"})
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
	assert.Zero(t, transport.calls)
}

func TestStrictPolicyUsesTransportFlag(t *testing.T) {
	flag := false
	transport := &fakeTransport{resp: fakeResponse{code: 200, text: "OK", body: `{"a":1}`, success: &flag}}

	tolerant, err := Get[any, any](context.Background(), New(transport), Request{BaseURL: baseURL})
	require.NoError(t, err)
	assert.True(t, tolerant.OK())

	strict, err := Get[any, any](context.Background(), New(transport, WithPolicy(PolicyStrict)), Request{BaseURL: baseURL})
	require.NoError(t, err)
	assert.False(t, strict.OK())
	require.NotNil(t, strict.Error)
	assert.Equal(t, map[string]any{"a": float64(1)}, *strict.Error)
}

func TestEnvelopeJSONShape(t *testing.T) {
	transport := &fakeTransport{resp: fakeResponse{code: 404, text: "Not Found", body: `{"message":"Example error"}`}}

	res, err := Get[json.RawMessage, json.RawMessage](context.Background(), New(transport), Request{BaseURL: baseURL})
	require.NoError(t, err)

	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"payload":null,"error":{"message":"Example error"}}`, string(out))
}

func TestParseMethodAndPolicy(t *testing.T) {
	m, err := ParseMethod(" delete ")
	require.NoError(t, err)
	assert.Equal(t, MethodDelete, m)

	_, err = ParseMethod("HEAD")
	assert.ErrorIs(t, err, ErrUnsupportedMethod)

	p, err := ParsePolicy("STRICT")
	require.NoError(t, err)
	assert.Equal(t, PolicyStrict, p)

	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyTolerant, p)

	_, err = ParsePolicy("lenient")
	assert.Error(t, err)
}

func TestDoOverRestyTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+bearerToken, r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"name":"n"}`, string(raw))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := New(httpclient.NewRestyClient(0), WithPolicy(PolicyStrict))
	res, err := Post[any, any](context.Background(), client, Request{
		BaseURL:     srv.URL,
		Path:        "/items",
		BearerToken: bearerToken,
	}, map[string]string{"name": "n"})
	require.NoError(t, err)
	require.NotNil(t, res.Payload)
	assert.Equal(t, StatusDescriptor{Status: 201, StatusText: "Created"}, *res.Payload)
}
