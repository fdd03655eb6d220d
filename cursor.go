package chatflow

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/chatflow/pkg/domain"
)

var b64 = base64.RawURLEncoding

// cursorCodec turns cursors into opaque tokens and back.
// With a secret, tokens carry an HMAC-SHA256 signature and forged ones are rejected.
type cursorCodec struct {
	secret []byte
}

func (c cursorCodec) encode(cur domain.Cursor) (string, error) {
	data, err := json.Marshal(cur)
	if err != nil {
		return "", fmt.Errorf("failed to encode cursor: %w", err)
	}

	token := b64.EncodeToString(data)
	if len(c.secret) > 0 {
		token += "." + b64.EncodeToString(c.sign(token))
	}
	return token, nil
}

func (c cursorCodec) decode(token string) (domain.Cursor, error) {
	var cur domain.Cursor

	payload, sig, signed := strings.Cut(token, ".")
	if len(c.secret) > 0 {
		if !signed {
			return cur, fmt.Errorf("%w: missing signature", domain.ErrInvalidCursor)
		}
		got, err := b64.DecodeString(sig)
		if err != nil || !hmac.Equal(got, c.sign(payload)) {
			return cur, fmt.Errorf("%w: bad signature", domain.ErrInvalidCursor)
		}
	}

	data, err := b64.DecodeString(payload)
	if err != nil {
		return cur, fmt.Errorf("%w: %v", domain.ErrInvalidCursor, err)
	}
	if err := json.Unmarshal(data, &cur); err != nil {
		return cur, fmt.Errorf("%w: %v", domain.ErrInvalidCursor, err)
	}
	if cur.FlowID == "" || cur.CurrentNodeID == "" {
		return cur, fmt.Errorf("%w: incomplete cursor", domain.ErrInvalidCursor)
	}
	return cur, nil
}

func (c cursorCodec) sign(payload string) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}
