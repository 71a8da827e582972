package services

import (
	"fmt"
	"time"

	"github.com/auroracast/stagecast/pkg/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
)

type SessionClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func CreateSessionToken(account models.Account) (string, error) {
	claims := SessionClaims{
		Username: account.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "stagecast",
			Subject:   fmt.Sprintf("%d", account.ID),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 24 * 7)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	tks, err := token.SignedString([]byte(viper.GetString("security.session_token_secret")))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %v", err)
	}
	return tks, nil
}

func ParseSessionToken(tk string) (SessionClaims, error) {
	var claims SessionClaims
	token, err := jwt.ParseWithClaims(tk, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Method)
		}
		return []byte(viper.GetString("security.session_token_secret")), nil
	})
	if err != nil {
		return claims, err
	}
	if !token.Valid {
		return claims, fmt.Errorf("invalid token")
	}
	return claims, nil
}
