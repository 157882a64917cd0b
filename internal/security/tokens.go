package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, carries a bad
	// signature, or fails claim validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned when a token's exp is in the past. Kept
	// distinct from ErrInvalidToken so callers can attempt a silent refresh
	// instead of forcing re-authentication.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked is returned when a token's jti has been revoked.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrDeviceMismatch is returned when a refresh token's device binding does
	// not match the presenting device's fingerprint.
	ErrDeviceMismatch = errors.New("device fingerprint mismatch")
)

// Role is the closed set of recognized user roles. Tokens carrying anything
// else are rejected, never silently defaulted.
type Role string

const (
	RoleCustomer  Role = "customer"
	RoleAdmin     Role = "admin"
	RoleVolunteer Role = "volunteer"
	RoleEmployer  Role = "employer"
)

// Valid reports whether r is a recognized role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleAdmin, RoleVolunteer, RoleEmployer:
		return true
	}
	return false
}

// refreshTokenType marks refresh tokens in the "type" claim; access tokens
// omit the claim.
const refreshTokenType = "refresh"

// Claims is the full JWT claim set: sub, email, role, iat, exp, jti, and the
// device binding. Refresh tokens additionally carry type=refresh.
type Claims struct {
	jwt.RegisteredClaims
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	DeviceID  string `json:"device_id"`
	TokenType string `json:"type,omitempty"`
}

// IsRefresh reports whether the claims belong to a refresh token.
func (c *Claims) IsRefresh() bool { return c.TokenType == refreshTokenType }

// TokenPair is the result of issuance or rotation.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	// ExpiresAt is the absolute expiry of the access token.
	ExpiresAt time.Time
	// ExpiresIn is the seconds-remaining hint captured at issuance.
	ExpiresIn int64
}

// TokenProvider issues, verifies, rotates, and revokes JWTs signed with an
// asymmetric key pair (ES256 or RS256). The revocation set is process-local
// and bounded by the refresh TTL; it is a short-window defense, not a global
// replay log.
type TokenProvider struct {
	privateKey  crypto.Signer
	publicKey   crypto.PublicKey
	issuer      string
	audience    string
	accessTTL   time.Duration
	refreshTTL  time.Duration
	revocations *RevocationSet
	nowF        func() time.Time
}

// NewTokenProvider returns a TokenProvider that signs with the given private
// key. issuer and audience are set on claims and validated on verify.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, accessTTL, refreshTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		privateKey:  privateKey,
		publicKey:   publicKey,
		issuer:      issuer,
		audience:    audience,
		accessTTL:   accessTTL,
		refreshTTL:  refreshTTL,
		revocations: NewRevocationSet(refreshTTL),
		nowF:        time.Now,
	}
}

// SignToken validates claims and returns the compact three-part token string.
// Claims violating ValidateTokenClaims fail here, before signing.
func (p *TokenProvider) SignToken(claims *Claims) (string, error) {
	if err := p.validateForSigning(claims); err != nil {
		return "", err
	}
	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	default:
		return "", ErrInvalidToken
	}
	return jwt.NewWithClaims(method, claims).SignedString(p.privateKey)
}

// VerifyToken parses and validates a token: signature, expiry, issuer,
// audience, required claims, recognized role, and revocation. Returns the
// claims, or ErrTokenExpired / ErrTokenRevoked / ErrInvalidToken.
func (p *TokenProvider) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodECDSA, *jwt.SigningMethodRSA:
			return p.publicKey, nil
		}
		return nil, ErrInvalidToken
	}, jwt.WithIssuer(p.issuer), jwt.WithAudience(p.audience), jwt.WithTimeFunc(p.nowF))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if err := p.ValidateTokenClaims(claims); err != nil {
		return nil, err
	}
	if p.revocations.IsRevoked(claims.ID) {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// GenerateTokenPair issues an access/refresh token pair for the user. Both
// tokens carry the device id derived from the fingerprint hash; the refresh
// token is marked type=refresh and lives for the refresh TTL.
func (p *TokenProvider) GenerateTokenPair(userID, email string, role Role, fp DeviceFingerprint) (*TokenPair, error) {
	deviceID := HashFingerprint(fp)
	now := p.nowF().UTC()
	accessExp := now.Add(p.accessTTL)

	accessJTI, err := generateJTI()
	if err != nil {
		return nil, err
	}
	access, err := p.SignToken(&Claims{
		RegisteredClaims: p.registered(accessJTI, userID, now, accessExp),
		Email:            email,
		Role:             role,
		DeviceID:         deviceID,
	})
	if err != nil {
		return nil, err
	}

	refreshJTI, err := generateJTI()
	if err != nil {
		return nil, err
	}
	refresh, err := p.SignToken(&Claims{
		RegisteredClaims: p.registered(refreshJTI, userID, now, now.Add(p.refreshTTL)),
		Email:            email,
		Role:             role,
		DeviceID:         deviceID,
		TokenType:        refreshTokenType,
	})
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    accessExp,
		ExpiresIn:    int64(p.accessTTL.Seconds()),
	}, nil
}

// RotateTokens verifies the old refresh token and issues a wholly new pair
// with fresh jti values. The old refresh token's jti is revoked as part of
// rotation, so a stolen copy becomes worthless the moment rotation occurs.
// Fails with ErrTokenExpired, ErrTokenRevoked, ErrDeviceMismatch, or
// ErrInvalidToken without issuing anything.
func (p *TokenProvider) RotateTokens(oldRefreshToken string, fp DeviceFingerprint) (*TokenPair, error) {
	claims, err := p.VerifyToken(oldRefreshToken)
	if err != nil {
		return nil, err
	}
	if !claims.IsRefresh() {
		return nil, ErrInvalidToken
	}
	if claims.DeviceID != HashFingerprint(fp) {
		return nil, ErrDeviceMismatch
	}
	pair, err := p.GenerateTokenPair(claims.Subject, claims.Email, claims.Role, fp)
	if err != nil {
		return nil, err
	}
	p.RevokeToken(claims.ID)
	return pair, nil
}

// RevokeToken marks the jti revoked for the remainder of its lifetime.
func (p *TokenProvider) RevokeToken(jti string) { p.revocations.Revoke(jti) }

// IsTokenRevoked reports whether the jti has been revoked.
func (p *TokenProvider) IsTokenRevoked(jti string) bool { return p.revocations.IsRevoked(jti) }

// ValidateTokenClaims is the single choke point all verification paths funnel
// through. It rejects missing required claims, an expired exp, and any role
// outside the recognized enumeration, with descriptive errors wrapping
// ErrInvalidToken (ErrTokenExpired for expiry).
func (p *TokenProvider) ValidateTokenClaims(claims *Claims) error {
	if claims == nil {
		return fmt.Errorf("%w: nil claims", ErrInvalidToken)
	}
	if claims.Subject == "" {
		return fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	if claims.Email == "" {
		return fmt.Errorf("%w: missing email", ErrInvalidToken)
	}
	if !claims.Role.Valid() {
		return fmt.Errorf("%w: unrecognized role %q", ErrInvalidToken, claims.Role)
	}
	if claims.IssuedAt == nil {
		return fmt.Errorf("%w: missing iat", ErrInvalidToken)
	}
	if claims.ExpiresAt == nil {
		return fmt.Errorf("%w: missing exp", ErrInvalidToken)
	}
	if claims.ID == "" {
		return fmt.Errorf("%w: missing jti", ErrInvalidToken)
	}
	if claims.DeviceID == "" {
		return fmt.Errorf("%w: missing device_id", ErrInvalidToken)
	}
	if !claims.ExpiresAt.After(p.nowF()) {
		return ErrTokenExpired
	}
	return nil
}

// validateForSigning mirrors ValidateTokenClaims for the signing path; it is
// split out so a construction bug surfaces as a sign-time failure.
func (p *TokenProvider) validateForSigning(claims *Claims) error {
	return p.ValidateTokenClaims(claims)
}

func (p *TokenProvider) registered(jti, userID string, now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        jti,
		Subject:   userID,
		Issuer:    p.issuer,
		Audience:  jwt.ClaimStrings{p.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
}

const bearerPrefix = "bearer "

// ExtractBearerToken parses an "Authorization: Bearer <token>" header value.
// Returns "" for any absent or malformed header; this is a parsing helper,
// not a security gate.
func ExtractBearerToken(header string) string {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
