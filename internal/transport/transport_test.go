package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/nwl-centralize/backoffice/internal/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens string

func (s staticTokens) AccessToken(context.Context) (string, error) {
	return string(s), nil
}

type recordedRequest struct {
	Method        string
	Path          string
	Authorization string
	RequestID     string
	ContentType   string
	Body          string
}

func newRecordingServer(t *testing.T, status int, body string) (*httptest.Server, *[]recordedRequest) {
	requests := []recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&payload)
		requests = append(requests, recordedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get("X-Request-ID"),
			ContentType:   r.Header.Get("Content-Type"),
			Body:          string(payload),
		})
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func newTestTransport(t *testing.T, rawURL string, tokens TokenSource) *Transport {
	baseURL, err := url.Parse(rawURL)
	require.NoError(t, err)
	tr, err := NewTransport(WithBaseURL(baseURL), WithTokenSource(tokens))
	require.NoError(t, err)
	return tr
}

func TestSendAttachesStoredToken(t *testing.T) {
	srv, requests := newRecordingServer(t, http.StatusOK, `{"data":[{"id":"u1"}]}`)
	tr := newTestTransport(t, srv.URL, staticTokens("A1"))

	res, err := tr.Send(context.Background(), Request{Path: "management/users"})

	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[{"id":"u1"}]}`, string(res))
	require.Len(t, *requests, 1)
	sent := (*requests)[0]
	assert.Equal(t, http.MethodGet, sent.Method)
	assert.Equal(t, "/management/users", sent.Path)
	assert.Equal(t, "Bearer A1", sent.Authorization)
	_, err = uuid.Parse(sent.RequestID)
	assert.NoError(t, err)
	assert.Empty(t, sent.ContentType)
}

func TestSendExplicitTokenWins(t *testing.T) {
	srv, requests := newRecordingServer(t, http.StatusOK, `{}`)
	tr := newTestTransport(t, srv.URL, staticTokens("A1"))

	_, err := tr.Send(context.Background(), Request{Method: http.MethodPost, Path: "/management/users", Body: map[string]string{"name": "x"}, Token: "A2"})

	require.NoError(t, err)
	require.Len(t, *requests, 1)
	assert.Equal(t, "Bearer A2", (*requests)[0].Authorization)
	assert.Equal(t, "application/json", (*requests)[0].ContentType)
	assert.JSONEq(t, `{"name":"x"}`, (*requests)[0].Body)
}

func TestSendNoBearerOnCredentialEndpoints(t *testing.T) {
	srv, requests := newRecordingServer(t, http.StatusOK, `{"access_token":"A","refresh_token":"R"}`)
	tr := newTestTransport(t, srv.URL, staticTokens("stale"))

	for _, path := range []string{LoginPath, RefreshPath, "auth/refresh-token/"} {
		_, err := tr.Send(context.Background(), Request{Method: http.MethodPost, Path: path, Token: "stale", Body: json.RawMessage(`{}`)})
		require.NoError(t, err)
	}

	require.Len(t, *requests, 3)
	for _, sent := range *requests {
		assert.Empty(t, sent.Authorization, sent.Path)
	}
}

func TestSendWithoutToken(t *testing.T) {
	srv, requests := newRecordingServer(t, http.StatusOK, ``)
	tr := newTestTransport(t, srv.URL, staticTokens(""))

	res, err := tr.Send(context.Background(), Request{Path: VerifyPath})

	require.NoError(t, err)
	assert.Equal(t, "null", string(res))
	assert.Empty(t, (*requests)[0].Authorization)
}

func TestSendKeepsBasePath(t *testing.T) {
	srv, requests := newRecordingServer(t, http.StatusOK, `{}`)
	tr := newTestTransport(t, srv.URL+"/api/v1/", nil)

	_, err := tr.Send(context.Background(), Request{Path: "/management/devices/d1"})

	require.NoError(t, err)
	assert.Equal(t, "/api/v1/management/devices/d1", (*requests)[0].Path)
}

func TestSendReusesRequestID(t *testing.T) {
	srv, requests := newRecordingServer(t, http.StatusOK, `{}`)
	tr := newTestTransport(t, srv.URL, nil)
	ctx := WithRequestID(context.Background(), "inbound-id")

	_, err := tr.Send(ctx, Request{Path: "/auth/verify"})

	require.NoError(t, err)
	assert.Equal(t, "inbound-id", (*requests)[0].RequestID)
}

func TestSendFailureMessages(t *testing.T) {
	type testCase struct {
		Name    string
		Status  int
		Body    string
		Message string
	}
	testCases := []testCase{
		{Name: "bad request with server message", Status: 400, Body: `{"message":"email is required"}`, Message: "email is required"},
		{Name: "bad request with validation list", Status: 400, Body: `{"message":["email is required","name is too long"]}`, Message: "email is required, name is too long"},
		{Name: "bad request without body", Status: 400, Body: ``, Message: "invalid request, please check your data"},
		{Name: "forbidden ignores server message", Status: 403, Body: `{"message":"role mismatch"}`, Message: "you do not have permission to perform this action"},
		{Name: "not found", Status: 404, Body: `not json`, Message: "resource not found"},
		{Name: "not found with server message", Status: 404, Body: `{"message":"no such project"}`, Message: "no such project"},
		{Name: "server error ignores server message", Status: 500, Body: `{"message":"nil pointer"}`, Message: "server error, please try again later"},
		{Name: "unavailable", Status: 503, Body: ``, Message: "service temporarily unavailable, please try again later"},
		{Name: "unauthorized", Status: 401, Body: `{"message":"jwt expired"}`, Message: "jwt expired"},
		{Name: "other status", Status: 409, Body: `{}`, Message: "HTTP error: 409"},
	}
	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			srv, _ := newRecordingServer(t, tc.Status, tc.Body)
			tr := newTestTransport(t, srv.URL, nil)

			_, err := tr.Send(context.Background(), Request{Path: "/management/projects"})

			var failure *HTTPFailure
			require.ErrorAs(t, err, &failure)
			assert.Equal(t, tc.Status, failure.Status)
			assert.Equal(t, tc.Message, failure.Message)
			assert.Equal(t, tc.Message, err.Error())
			assert.Equal(t, tc.Status, StatusOf(err))
			assert.Equal(t, tc.Status == 401, IsUnauthorized(err))
			assert.NotErrorIs(t, err, apperrors.ErrConnection)
		})
	}
}

func TestSendConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	rawURL := srv.URL
	srv.Close()
	tr := newTestTransport(t, rawURL, nil)

	_, err := tr.Send(context.Background(), Request{Path: "/management/users"})

	var failure *HTTPFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 0, failure.Status)
	assert.Equal(t, "connection failed", failure.Message)
	assert.ErrorIs(t, err, apperrors.ErrConnection)
	assert.False(t, IsUnauthorized(err))
}

func TestSendInvalidJSON(t *testing.T) {
	srv, _ := newRecordingServer(t, http.StatusOK, `<html></html>`)
	tr := newTestTransport(t, srv.URL, nil)

	_, err := tr.Send(context.Background(), Request{Path: "/auth/verify"})

	assert.ErrorContains(t, err, "is not valid JSON")
}

func TestNewTransportValidation(t *testing.T) {
	_, err := NewTransport()
	assert.ErrorContains(t, err, "the base url is not set")

	_, err = NewTransport(WithBaseURL(&url.URL{Scheme: "ftp", Host: "example.org"}))
	assert.ErrorContains(t, err, "unsupported scheme")

	_, err = NewTransport(WithBaseURL(&url.URL{Scheme: "http", Host: "example.org"}), WithTimeout(-1))
	assert.ErrorContains(t, err, "cannot be negative")
}

func TestIsCredentialEndpoint(t *testing.T) {
	assert.True(t, IsCredentialEndpoint("auth/login"))
	assert.True(t, IsCredentialEndpoint("/auth/refresh-token?x=1"))
	assert.False(t, IsCredentialEndpoint("/auth/logout"))
	assert.False(t, IsCredentialEndpoint("/auth/verify"))
	assert.False(t, IsCredentialEndpoint("/management/users"))
}

func TestEndpointMatchers(t *testing.T) {
	type testCase struct {
		Path    string
		Login   bool
		Refresh bool
	}
	testCases := []testCase{
		{Path: "/auth/refresh-token", Refresh: true},
		{Path: "auth/refresh-token/", Refresh: true},
		{Path: "/auth/refresh-token#retry", Refresh: true},
		{Path: "//auth/login/?next=/users", Login: true},
		{Path: "/auth/refresh-token-legacy"},
		{Path: "/auth/verify"},
	}
	for _, tc := range testCases {
		t.Run(tc.Path, func(t *testing.T) {
			assert.Equal(t, tc.Login, IsLoginEndpoint(tc.Path))
			assert.Equal(t, tc.Refresh, IsRefreshEndpoint(tc.Path))
			assert.Equal(t, tc.Login || tc.Refresh, IsCredentialEndpoint(tc.Path))
		})
	}
}
