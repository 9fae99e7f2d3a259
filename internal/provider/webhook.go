package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Verificación de firmas del push channel de eventos. El provider firma cada
// entrega con HMAC-SHA256 sobre "{id}.{timestamp}.{payload}" y manda la
// firma en el header webhook-signature como lista "v1,<base64>" separada por
// espacios (esquema compatible con svix). La verificación es obligatoria
// antes de parsear nada.

const (
	// secretPrefix es el prefijo con que el provider entrega el secret.
	secretPrefix = "whsec_"

	// timestampTolerance acota el replay de entregas viejas (o relojes rotos).
	timestampTolerance = 5 * time.Minute
)

var (
	ErrMissingHeaders  = errors.New("webhook: missing signature headers")
	ErrBadTimestamp    = errors.New("webhook: invalid or stale timestamp")
	ErrBadSignature    = errors.New("webhook: signature mismatch")
	ErrMalformedSecret = errors.New("webhook: malformed signing secret")
)

// WebhookVerifier valida firmas de entregas inbound.
type WebhookVerifier struct {
	key []byte
	now func() time.Time
}

func NewWebhookVerifier(secret string) (*WebhookVerifier, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(secret), secretPrefix)
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(key) == 0 {
		return nil, ErrMalformedSecret
	}
	return &WebhookVerifier{key: key, now: time.Now}, nil
}

// Verify chequea timestamp y firma de una entrega.
// msgID y timestamp vienen de los headers webhook-id / webhook-timestamp;
// sigHeader es el contenido completo de webhook-signature.
func (v *WebhookVerifier) Verify(msgID, timestamp, sigHeader string, payload []byte) error {
	if msgID == "" || timestamp == "" || sigHeader == "" {
		return ErrMissingHeaders
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrBadTimestamp
	}
	now := v.now()
	delta := now.Sub(time.Unix(ts, 0))
	if delta > timestampTolerance || delta < -timestampTolerance {
		return ErrBadTimestamp
	}

	expected := v.sign(msgID, timestamp, payload)

	// El header puede traer varias firmas (rotación de secrets); alcanza con
	// que una matchee.
	for _, part := range strings.Fields(sigHeader) {
		version, sig, ok := strings.Cut(part, ",")
		if !ok || version != "v1" {
			continue
		}
		got, err := base64.StdEncoding.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(got, expected) {
			return nil
		}
	}
	return ErrBadSignature
}

func (v *WebhookVerifier) sign(msgID, timestamp string, payload []byte) []byte {
	mac := hmac.New(sha256.New, v.key)
	fmt.Fprintf(mac, "%s.%s.", msgID, timestamp)
	mac.Write(payload)
	return mac.Sum(nil)
}
