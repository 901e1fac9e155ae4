package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"sitter-link/internal/domain"
)

const (
	TokenTypeAccess    = "access"
	TokenTypeResponder = "responder"
	TokenTypeUpgrade   = "upgrade"

	responderTokenTTL = 30 * time.Minute
	upgradeTokenTTL   = 24 * time.Hour
)

// JWTService emite y valida tokens JWT.
// El access token solo identifica la sesión; la inactividad la controla SessionMonitor.
type JWTService struct {
	secret    []byte
	accessTTL time.Duration
	issuer    string
}

type Claims struct {
	UserID    string `json:"uid,omitempty"`
	Email     string `json:"email,omitempty"`
	SessionID string `json:"sid,omitempty"`
	RequestID string `json:"rid,omitempty"`
	Mobile    string `json:"mobile,omitempty"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

var (
	ErrJWTInvalid = errors.New("jwt invalid")
	ErrJWTExpired = errors.New("jwt expired")
)

func NewJWTService(secret string, accessTTL time.Duration) *JWTService {
	if accessTTL <= 0 {
		accessTTL = 12 * time.Hour
	}
	return &JWTService{
		secret:    []byte(secret),
		accessTTL: accessTTL,
		issuer:    "sitter-link",
	}
}

// IssueAccessToken firma un token que liga al usuario con su sesión.
func (s *JWTService) IssueAccessToken(user domain.User, session domain.Session) (string, error) {
	if session.ID == "" || user.ID == "" {
		return "", ErrJWTInvalid
	}
	return s.sign(Claims{
		UserID:    user.ID,
		Email:     user.Email,
		SessionID: session.ID,
		TokenType: TokenTypeAccess,
	}, user.ID, s.accessTTL)
}

func (s *JWTService) ParseAccessToken(accessToken string) (Claims, error) {
	claims, err := s.parseTyped(accessToken, TokenTypeAccess)
	if err != nil {
		return Claims{}, err
	}
	if claims.UserID == "" || claims.Subject != claims.UserID || claims.SessionID == "" {
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}

// IssueResponderToken habilita la respuesta a requestID tras verificar el móvil.
func (s *JWTService) IssueResponderToken(requestID, mobile string) (string, error) {
	if strings.TrimSpace(requestID) == "" || strings.TrimSpace(mobile) == "" {
		return "", ErrJWTInvalid
	}
	return s.sign(Claims{
		RequestID: requestID,
		Mobile:    mobile,
		TokenType: TokenTypeResponder,
	}, requestID, responderTokenTTL)
}

// ParseResponderToken valida el token y que corresponda a requestID.
func (s *JWTService) ParseResponderToken(token, requestID string) (Claims, error) {
	claims, err := s.parseTyped(token, TokenTypeResponder)
	if err != nil {
		return Claims{}, err
	}
	if claims.RequestID == "" || claims.RequestID != requestID || claims.Subject != requestID || claims.Mobile == "" {
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}

func (s *JWTService) IssueUpgradeToken(userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", ErrJWTInvalid
	}
	return s.sign(Claims{
		UserID:    userID,
		TokenType: TokenTypeUpgrade,
	}, userID, upgradeTokenTTL)
}

func (s *JWTService) ParseUpgradeToken(token string) (Claims, error) {
	claims, err := s.parseTyped(token, TokenTypeUpgrade)
	if err != nil {
		return Claims{}, err
	}
	if claims.UserID == "" || claims.Subject != claims.UserID {
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}

func (s *JWTService) sign(claims Claims, subject string, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrJWTInvalid
	}
	now := time.Now().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    s.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *JWTService) parseTyped(tokenString, tokenType string) (Claims, error) {
	if len(s.secret) == 0 {
		return Claims{}, ErrJWTInvalid
	}
	if strings.TrimSpace(tokenString) == "" {
		return Claims{}, ErrJWTInvalid
	}
	claims, err := s.parseToken(tokenString)
	if err != nil {
		return Claims{}, err
	}
	if claims.TokenType != tokenType {
		return Claims{}, ErrJWTInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.Issuer) != s.issuer {
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}

func (s *JWTService) parseToken(tokenString string) (Claims, error) {
	var claims Claims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrJWTExpired
		}
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}
