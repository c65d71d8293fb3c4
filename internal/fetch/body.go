package fetch

import (
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"
)

// readBody decodes the Content-Encoding the server chose, reads at most
// limit bytes and converts them to UTF-8.
func readBody(resp *http.Response, limit int64) ([]byte, bool, error) {
	decoded, err := decodeContent(resp.Body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, false, err
	}
	if c, ok := decoded.(io.Closer); ok && decoded != io.Reader(resp.Body) {
		defer c.Close()
	}

	raw, err := io.ReadAll(io.LimitReader(decoded, limit+1))
	if err != nil {
		return nil, false, err
	}
	truncated := false
	if int64(len(raw)) > limit {
		raw = raw[:limit]
		truncated = true
	}
	return toUTF8(raw, resp.Header.Get("Content-Type")), truncated, nil
}

func decodeContent(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return r, nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return zr, nil
	case "deflate":
		return flate.NewReader(r), nil
	case "br":
		return brotli.NewReader(r), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding: %s", encoding)
	}
}

// toUTF8 converts raw using the declared or sniffed charset. Undeclared
// bodies that already are valid UTF-8 are returned unchanged, since the
// sniffer otherwise defaults to windows-1252.
func toUTF8(raw []byte, contentType string) []byte {
	enc, name, certain := charset.DetermineEncoding(raw, contentType)
	if name == "utf-8" {
		return raw
	}
	if !certain && utf8.Valid(trimPartialRune(raw)) {
		return raw
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return raw
	}
	return out
}

// trimPartialRune drops an incomplete rune left at the end by truncation.
func trimPartialRune(b []byte) []byte {
	for i := 0; i < utf8.UTFMax-1 && len(b) > 0; i++ {
		if r, _ := utf8.DecodeLastRune(b); r != utf8.RuneError {
			break
		}
		b = b[:len(b)-1]
	}
	return b
}
