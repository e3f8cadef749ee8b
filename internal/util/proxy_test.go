package util

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearProxyEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"HTTP_PROXY", "http_proxy", "HTTPS_PROXY", "https_proxy", "NO_PROXY", "no_proxy", "REQUEST_METHOD"} {
		t.Setenv(k, "")
	}
}

func request(scheme, host string) *http.Request {
	return &http.Request{URL: &url.URL{Scheme: scheme, Host: host}}
}

func TestNewProxyFunc_Explicit(t *testing.T) {
	clearProxyEnv(t)
	fn := NewProxyFunc("http://proxy:3128", "http://secure-proxy:3129", "")

	got, err := fn(request("https", "api.openai.com"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "secure-proxy:3129", got.Host)

	got, err = fn(request("http", "ollama.internal:11434"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "proxy:3128", got.Host)
}

func TestNewProxyFunc_NoProxy(t *testing.T) {
	clearProxyEnv(t)
	fn := NewProxyFunc("http://proxy:3128", "http://proxy:3128", "ollama.internal,.corp.example")

	for _, host := range []string{"ollama.internal:11434", "llm.corp.example", "localhost:11434", "127.0.0.1:11434"} {
		got, err := fn(request("http", host))
		require.NoError(t, err)
		assert.Nil(t, got, host)
	}

	got, err := fn(request("https", "api.anthropic.com"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "proxy:3128", got.Host)
}

func TestNewProxyFunc_Environment(t *testing.T) {
	clearProxyEnv(t)
	t.Setenv("HTTPS_PROXY", "http://env-proxy:8080")

	fn := NewProxyFunc("", "", "")
	got, err := fn(request("https", "generativelanguage.googleapis.com"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "env-proxy:8080", got.Host)
}
