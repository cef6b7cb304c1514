package macro

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// SharePrefix tags a share code so pasted text is recognizable.
const SharePrefix = "GMAC-"

// ToShareCode encodes the macro as a compact shareable string: compact
// JSON, zlib best compression, URL-safe base64 with padding stripped,
// prefixed with SharePrefix.
func (m *Macro) ToShareCode() (string, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encoding macro: %w", err)
	}

	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return "", fmt.Errorf("creating compressor: %w", err)
	}
	if _, err := zw.Write(raw); err != nil {
		return "", fmt.Errorf("compressing macro: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("compressing macro: %w", err)
	}

	return SharePrefix + base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// FromShareCode decodes a share code back into a macro. The prefix is
// stripped case-insensitively if present and missing base64 padding is
// tolerated.
func FromShareCode(code string) (*Macro, error) {
	code = strings.TrimSpace(code)
	if len(code) >= len(SharePrefix) && strings.EqualFold(code[:len(SharePrefix)], SharePrefix) {
		code = code[len(SharePrefix):]
	}
	if code == "" {
		return nil, ErrBadShareCode
	}

	compressed, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(code, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadShareCode, err)
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadShareCode, err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadShareCode, err)
	}

	m, err := FromJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadShareCode, err)
	}
	return m, nil
}
