// File: internal/infra/adapters/webhook/poster.go
package webhook

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"reply-assistant/internal/domain/ports/adapter"
)

var _ adapter.WebhookPoster = (*Poster)(nil)

const issuer = "reply-assistant"

var (
	ErrMissingToken = errors.New("webhook: missing token")
	ErrBadSignature = errors.New("webhook: invalid signature")
)

// StatusError is returned for non-2xx callback responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("webhook: http %d", e.Code) }

// BodyClaims binds a token to the exact request body it travels with.
type BodyClaims struct {
	BodySHA256 string `json:"body_sha256"`
	jwt.RegisteredClaims
}

// Poster sends one JSON POST per call and never retries.
type Poster struct {
	secret []byte
	client *http.Client
	ttl    time.Duration
}

func NewPoster(secret string, timeout time.Duration) (*Poster, error) {
	if secret == "" {
		return nil, errors.New("webhook secret empty")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Poster{
		secret: []byte(secret),
		client: &http.Client{Timeout: timeout},
		ttl:    5 * time.Minute,
	}, nil
}

func bodyDigest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Sign returns an HS256 token over body.
func (p *Poster) Sign(body []byte) (string, error) {
	now := time.Now()
	claims := BodyClaims{
		BodySHA256: bodyDigest(body),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

// Verify checks an Authorization header value against body. Receivers of our
// callbacks can use it directly.
func (p *Poster) Verify(authorization string, body []byte) error {
	if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
		return ErrMissingToken
	}
	claims := &BodyClaims{}
	tkn, err := jwt.ParseWithClaims(strings.TrimSpace(authorization[7:]), claims, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil || !tkn.Valid {
		return ErrBadSignature
	}
	if claims.BodySHA256 != bodyDigest(body) {
		return ErrBadSignature
	}
	return nil
}

func (p *Poster) Post(ctx context.Context, url string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook marshal: %w", err)
	}
	token, err := p.Sign(b)
	if err != nil {
		return fmt.Errorf("webhook sign: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}
