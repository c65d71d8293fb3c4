package app

import (
	"net"
	"net/http"
	"time"
)

// newHTTPTransport returns the transport shared by the page fetcher and the
// LLM client.
func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// newLLMHTTPClient returns a client for streaming completions. Only the wait
// for response headers is bounded; the caller's context bounds the stream.
func newLLMHTTPClient(tr *http.Transport) *http.Client {
	tr = tr.Clone()
	tr.ResponseHeaderTimeout = 120 * time.Second
	return &http.Client{Transport: tr}
}
