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

package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowarc/chingest/internal/errors"
)

func TestResolvePasswordWithoutSecret(t *testing.T) {
	t.Parallel()

	password, err := ResolvePassword("plain", "")
	require.NoError(t, err)
	assert.Equal(t, "plain", password)
}

func TestResolvePasswordFromToken(t *testing.T) {
	t.Parallel()

	token, err := IssueToken("s3cret", "key", jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)

	password, err := ResolvePassword(token, "key")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", password)
}

func TestResolvePasswordRejects(t *testing.T) {
	t.Parallel()

	wrongKey, err := IssueToken("x", "other", nil)
	require.NoError(t, err)
	_, err = ResolvePassword(wrongKey, "key")
	assert.Error(t, err)

	expired, err := IssueToken("x", "key", jwt.MapClaims{
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	require.NoError(t, err)
	_, err = ResolvePassword(expired, "key")
	require.Error(t, err)
	assert.Contains(t, errors.FlattenHints(err), "token expired")

	noClaim, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u"}).SignedString([]byte("key"))
	require.NoError(t, err)
	_, err = ResolvePassword(noClaim, "key")
	assert.Error(t, err)

	_, err = ResolvePassword("not-a-jwt", "key")
	assert.Error(t, err)
}
