package texdoc

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/hpungsan/texclean/internal/config"
	"github.com/hpungsan/texclean/internal/errors"
)

// Codec turns markup bytes into text and back according to a decoding policy.
type Codec struct {
	policy string
}

// NewCodec returns a Codec for one of the config.Decode* policies.
// An empty policy means strict.
func NewCodec(policy string) (Codec, error) {
	switch policy {
	case "":
		policy = config.DecodeStrict
	case config.DecodeStrict, config.DecodeReplace, config.DecodeIgnore, config.DecodeLatin1:
	default:
		return Codec{}, errors.NewInvalidRequest(fmt.Sprintf("unknown decode policy %q", policy))
	}
	return Codec{policy: policy}, nil
}

// Policy returns the policy name.
func (c Codec) Policy() string {
	return c.policy
}

// Decode converts raw file bytes to a UTF-8 string. path is only used in
// error messages.
func (c Codec) Decode(path string, raw []byte) (string, error) {
	switch c.policy {
	case config.DecodeReplace:
		out, err := unicode.UTF8.NewDecoder().Bytes(raw)
		if err != nil {
			return "", errors.NewInternal(fmt.Errorf("%s: %w", path, err))
		}
		return string(out), nil
	case config.DecodeIgnore:
		return strings.ToValidUTF8(string(raw), ""), nil
	case config.DecodeLatin1:
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if err != nil {
			return "", errors.NewInternal(fmt.Errorf("%s: %w", path, err))
		}
		return string(out), nil
	default:
		if offset := invalidOffset(raw); offset >= 0 {
			return "", errors.NewDecodeFailed(path, offset)
		}
		return string(raw), nil
	}
}

// Encode converts text back to the bytes written to the output tree. Only the
// latin1 policy re-encodes; the others write UTF-8. Runes Latin-1 cannot
// represent are written as numeric character references.
func (c Codec) Encode(text string) ([]byte, error) {
	if c.policy != config.DecodeLatin1 {
		return []byte(text), nil
	}
	enc := encoding.HTMLEscapeUnsupported(charmap.ISO8859_1.NewEncoder())
	out, err := enc.Bytes([]byte(text))
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// invalidOffset returns the byte offset of the first invalid UTF-8 sequence,
// or -1 when raw is valid.
func invalidOffset(raw []byte) int {
	if utf8.Valid(raw) {
		return -1
	}
	for i := 0; i < len(raw); {
		r, size := utf8.DecodeRune(raw[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return -1
}
