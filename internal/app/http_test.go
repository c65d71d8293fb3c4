package app

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPTransport_Config(t *testing.T) {
	tr := newHTTPTransport()
	assert.NotZero(t, tr.MaxIdleConnsPerHost, "expected a per-host idle pool")
	assert.NotNil(t, tr.Proxy, "expected proxy from environment")
	assert.NotSame(t, http.DefaultTransport, tr)
}

func TestNewLLMHTTPClient_NoOverallTimeout(t *testing.T) {
	base := newHTTPTransport()
	c := newLLMHTTPClient(base)
	assert.Zero(t, c.Timeout, "streaming client must not set an overall timeout")
	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.NotZero(t, tr.ResponseHeaderTimeout)
	assert.Zero(t, base.ResponseHeaderTimeout, "base transport must not be modified")
}
