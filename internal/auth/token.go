// Copyright 2026 The PropDesk Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Domain errors
var (
	ErrTokenMissing    = errors.New("token missing")
	ErrTokenInvalid    = errors.New("token invalid")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

const bearerPrefix = "Bearer "

// Claims is the JWT payload issued to PropDesk users.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates bearer credentials and decodes them into an Identity.
type Verifier struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewVerifier creates a verifier for HS256 tokens signed with secret.
// An empty issuer disables the iss check.
func NewVerifier(secret, issuer string, leeway time.Duration) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		issuer: issuer,
		leeway: leeway,
	}
}

// Verify decodes an Authorization header value.
// Every failure past the presence check is reported as ErrTokenInvalid.
func (v *Verifier) Verify(header string) (id *Identity, err error) {
	header = strings.TrimSpace(header)
	if header == "" || strings.EqualFold(header, strings.TrimSpace(bearerPrefix)) {
		return nil, ErrTokenMissing
	}

	defer func() {
		if rec := recover(); rec != nil {
			id = nil
			err = fmt.Errorf("%w: decoder panic: %v", ErrTokenInvalid, rec)
		}
	}()

	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return nil, fmt.Errorf("%w: expected bearer scheme", ErrTokenInvalid)
	}
	raw := strings.TrimSpace(header[len(bearerPrefix):])

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	role := Role(claims.Role)
	if claims.Subject == "" || !role.IsValid() {
		return nil, fmt.Errorf("%w: incomplete claims", ErrTokenInvalid)
	}

	return &Identity{SubjectID: claims.Subject, Role: role}, nil
}

// Issuer mints tokens accepted by a Verifier sharing the same secret.
type Issuer struct {
	secret []byte
	issuer string
}

// NewIssuer creates a token issuer
func NewIssuer(secret, issuer string) *Issuer {
	return &Issuer{secret: []byte(secret), issuer: issuer}
}

// Issue signs a token for subjectID with the given role and lifetime.
func (i *Issuer) Issue(subjectID string, role Role, ttl time.Duration) (string, error) {
	if subjectID == "" {
		return "", fmt.Errorf("subject is required")
	}
	if !role.IsValid() {
		return "", fmt.Errorf("invalid role: %s", role)
	}

	now := time.Now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}
