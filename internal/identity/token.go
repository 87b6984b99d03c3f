package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken はアクセストークンを解釈できないことを表す。
var ErrInvalidToken = errors.New("invalid access token")

// TokenClaims はアクセストークンから取り出したクレーム。
type TokenClaims struct {
	Subject   string
	Email     string
	ExpiresAt time.Time // ゼロ値は期限なし
}

type accessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// ParseAccessToken はアクセストークンを解析する。
// secretが設定されている場合はHS256署名と有効期限を検証し、
// 未設定の場合は署名を検証せずにクレームのみを取り出す（検証はGetUserで行う）。
func ParseAccessToken(token, secret string) (*TokenClaims, error) {
	claims := &accessClaims{}

	if secret != "" {
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		if !parsed.Valid {
			return nil, ErrInvalidToken
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: empty sub claim", ErrInvalidToken)
	}

	tc := &TokenClaims{
		Subject: claims.Subject,
		Email:   claims.Email,
	}
	if claims.ExpiresAt != nil {
		tc.ExpiresAt = claims.ExpiresAt.Time
	}
	return tc, nil
}
