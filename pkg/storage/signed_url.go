package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Token errors.
var (
	ErrTokenMalformed = errors.New("invalid token format")
	ErrTokenSignature = errors.New("invalid token signature")
	ErrTokenExpired   = errors.New("token expired")
)

// TokenClaims is what a preview token grants access to.
type TokenClaims struct {
	FileID    string
	Key       string
	ExpiresAt time.Time
}

// SignedURLSigner issues and verifies HMAC-signed preview tokens for uploaded
// files. Tokens have the form fileID.expiry.base64(key).signature.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate returns a token for the file stored under key.
func (s *SignedURLSigner) Generate(fileID, key string) (string, time.Time, error) {
	if fileID == "" || key == "" {
		return "", time.Time{}, fmt.Errorf("fileID and key required")
	}
	if strings.Contains(fileID, ".") {
		return "", time.Time{}, fmt.Errorf("fileID must not contain '.'")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedKey := base64.RawURLEncoding.EncodeToString([]byte(key))
	token := strings.Join([]string{fileID, ts, encodedKey, s.sign(fileID, ts, encodedKey)}, ".")
	return token, expiresAt, nil
}

// Parse verifies the token. allowExpired skips the expiry check so cleanup
// routines can still resolve the key.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (TokenClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return TokenClaims{}, ErrTokenMalformed
	}
	fileID, ts, encodedKey, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.sign(fileID, ts, encodedKey)), []byte(signature)) {
		return TokenClaims{}, ErrTokenSignature
	}
	rawKey, err := base64.RawURLEncoding.DecodeString(encodedKey)
	if err != nil {
		return TokenClaims{}, ErrTokenMalformed
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return TokenClaims{}, ErrTokenMalformed
	}
	claims := TokenClaims{FileID: fileID, Key: string(rawKey), ExpiresAt: time.Unix(expUnix, 0)}
	if !allowExpired && s.now().After(claims.ExpiresAt) {
		return TokenClaims{}, ErrTokenExpired
	}
	return claims, nil
}

func (s *SignedURLSigner) sign(fileID, ts, encodedKey string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(fileID + "|" + ts + "|" + encodedKey))
	return hex.EncodeToString(mac.Sum(nil))
}
