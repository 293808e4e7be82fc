package wehttp_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weegigs/wee-ledger-go/accumulator"
	"github.com/weegigs/wee-ledger-go/connectors/wehttp"
	"github.com/weegigs/wee-ledger-go/stores/memory"
	"github.com/weegigs/wee-ledger-go/we"
)

var secret = []byte("test-secret")

type fixture struct {
	server        *httptest.Server
	notifications *we.NotificationLog
	auth          *wehttp.JWTAuthenticator
}

func setup(t *testing.T) *fixture {
	t.Helper()

	notifications := we.NewNotificationLog()
	auth := wehttp.NewJWTAuthenticator(secret)
	handler := wehttp.NewHandler[accumulator.Accumulation](
		accumulator.NewService(memory.NewEventStore(), notifications),
		wehttp.Authenticated[accumulator.Accumulation](auth),
		wehttp.DefaultState[accumulator.Accumulation](),
	)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &fixture{server: server, notifications: notifications, auth: auth}
}

func (f *fixture) token(t *testing.T, who we.AccountID) string {
	token, err := f.auth.Token(who, time.Minute)
	require.NoError(t, err)
	return token
}

func (f *fixture) post(t *testing.T, path string, token string, body string) *http.Response {
	t.Helper()

	request, err := http.NewRequest(http.MethodPost, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	t.Cleanup(func() { _ = response.Body.Close() })

	return response
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()

	response, err := http.Get(f.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = response.Body.Close() })

	return response
}

func decode(t *testing.T, response *http.Response) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.NewDecoder(response.Body).Decode(&body))
	return body
}

const path = "/template-module/acc"

func TestResources(t *testing.T) {
	t.Run("serves the default accumulation", func(t *testing.T) {
		f := setup(t)

		response := f.get(t, path)
		require.Equal(t, http.StatusOK, response.StatusCode)

		body := decode(t, response)
		assert.Equal(t, "0", body["current_count"])
		assert.Equal(t, "0", body["increment_per_call"])
		assert.Equal(t, "template-module.acc", body["$id"])
		assert.Equal(t, string(we.InitialRevision), body["$revision"])
	})

	t.Run("other aggregates are not found", func(t *testing.T) {
		f := setup(t)

		response := f.get(t, "/template-module/other")
		assert.Equal(t, http.StatusNotFound, response.StatusCode)
	})
}

func TestCommands(t *testing.T) {
	t.Run("accumulates for a signed caller", func(t *testing.T) {
		f := setup(t)
		token := f.token(t, "alice")

		response := f.post(t, path, token, `{"command":"template-module:set-increment","payload":{"increment":"5"}}`)
		require.Equal(t, http.StatusOK, response.StatusCode)

		response = f.post(t, path, token, `{"command":"template-module:accumulate"}`)
		require.Equal(t, http.StatusOK, response.StatusCode)

		body := decode(t, response)
		assert.Equal(t, "5", body["current_count"])
		assert.Equal(t, "5", body["increment_per_call"])
		assert.Equal(t, 1, f.notifications.Len())
	})

	t.Run("unsigned commands are unauthorized", func(t *testing.T) {
		f := setup(t)

		response := f.post(t, path, "", `{"command":"template-module:accumulate"}`)
		assert.Equal(t, http.StatusUnauthorized, response.StatusCode)
		assert.Equal(t, 0, f.notifications.Len())
	})

	t.Run("forged tokens are rejected", func(t *testing.T) {
		f := setup(t)
		forged, err := wehttp.NewJWTAuthenticator([]byte("not-the-secret")).Token("mallory", time.Minute)
		require.NoError(t, err)

		response := f.post(t, path, forged, `{"command":"template-module:accumulate"}`)
		assert.Equal(t, http.StatusUnauthorized, response.StatusCode)
	})

	t.Run("overflow is unprocessable", func(t *testing.T) {
		f := setup(t)
		token := f.token(t, "alice")

		max := `{"command":"template-module:set-increment","payload":{"increment":"340282366920938463463374607431768211455"}}`
		require.Equal(t, http.StatusOK, f.post(t, path, token, max).StatusCode)
		require.Equal(t, http.StatusOK, f.post(t, path, token, `{"command":"template-module:accumulate"}`).StatusCode)

		response := f.post(t, path, token, `{"command":"template-module:accumulate"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, response.StatusCode)
		assert.Equal(t, "template-module:accumulation-overflow", decode(t, response)["error"])
		assert.Equal(t, 1, f.notifications.Len())
	})

	t.Run("unknown commands are bad requests", func(t *testing.T) {
		f := setup(t)

		response := f.post(t, path, f.token(t, "alice"), `{"command":"reset"}`)
		assert.Equal(t, http.StatusBadRequest, response.StatusCode)
	})

	t.Run("requires a json body", func(t *testing.T) {
		f := setup(t)

		request, err := http.NewRequest(http.MethodPost, f.server.URL+path, strings.NewReader("accumulate"))
		require.NoError(t, err)
		request.Header.Set("Content-Type", "text/plain")

		response, err := http.DefaultClient.Do(request)
		require.NoError(t, err)
		defer response.Body.Close()

		assert.Equal(t, http.StatusUnsupportedMediaType, response.StatusCode)
	})
}
