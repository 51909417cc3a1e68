// --------------------------------------------------------------------------------
// Author: Thomas F McGeehan V
//
// This file is part of a software project developed by Thomas F McGeehan V.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
//
// For more information about the MIT License, please visit:
// https://opensource.org/licenses/MIT
//
// Acknowledgment appreciated but not required.
// --------------------------------------------------------------------------------

// Package auth turns the connection token supplied by an operator into the
// database password.
package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/arrowarc/chingest/internal/errors"
)

// PasswordClaim is the claim holding the database password.
const PasswordClaim = "password"

// ResolvePassword returns the database password for token. With an empty
// secret the token is the password. Otherwise token must be an HS256 JWT
// signed with secret whose password claim is a string.
func ResolvePassword(token, secret string) (string, error) {
	if secret == "" {
		return token, nil
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", errors.WithHint(errors.Wrap(err, "invalid token"), "token expired, request a new one")
		}
		return "", errors.Wrap(err, "invalid token")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}
	password, ok := claims[PasswordClaim].(string)
	if !ok {
		return "", errors.Newf("token has no %q claim", PasswordClaim)
	}
	return password, nil
}

// IssueToken signs password into an HS256 token. It is used by the CLI to
// mint tokens for the HTTP API.
func IssueToken(password, secret string, claims jwt.MapClaims) (string, error) {
	all := jwt.MapClaims{PasswordClaim: password}
	for k, v := range claims {
		all[k] = v
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, all).SignedString([]byte(secret))
}
