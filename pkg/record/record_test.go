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

package record

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowarc/chingest/internal/errors"
)

var tableColumns = []Column{
	{Name: "id", Type: "UInt64"},
	{Name: "name", Type: "String"},
	{Name: "score", Type: "Float64"},
}

func TestNewProjectionKeepsRequestedOrder(t *testing.T) {
	t.Parallel()

	p, err := NewProjection(tableColumns, []string{"score", "id"})
	require.NoError(t, err)
	assert.Equal(t, []string{"score", "id"}, p.Names())
	assert.Equal(t, "Float64", p[0].Type)
	assert.Equal(t, 1, p.Index("id"))
	assert.Equal(t, -1, p.Index("name"))
}

func TestNewProjectionRejects(t *testing.T) {
	t.Parallel()

	for _, names := range [][]string{
		nil,
		{"id", "missing"},
		{"id", "id"},
	} {
		_, err := NewProjection(tableColumns, names)
		var sm *errors.SchemaMismatchError
		assert.True(t, errors.As(err, &sm), "%v", names)
	}
}

func TestProjectionCheck(t *testing.T) {
	t.Parallel()

	p, err := NewProjection(tableColumns, []string{"id", "name"})
	require.NoError(t, err)

	assert.NoError(t, p.Check(New(Field{"name", Text("a")}, Field{"id", Uint(1)})))
	assert.Error(t, p.Check(New(Field{"id", Uint(1)})))
	assert.Error(t, p.Check(New(Field{"id", Uint(1)}, Field{"id", Uint(2)})))
	assert.Error(t, p.Check(New(Field{"id", Uint(1)}, Field{"score", Float(1)})))
}

func TestCanonicalIgnoresFieldOrder(t *testing.T) {
	t.Parallel()

	a := New(Field{"a", Int(1)}, Field{"b", Text("x")})
	b := New(Field{"b", Text("x")}, Field{"a", Int(1)})
	c := New(Field{"a", Uint(1)}, Field{"b", Text("x")})

	assert.Equal(t, a.Canonical(), b.Canonical())
	assert.NotEqual(t, a.Canonical(), c.Canonical())
}

func TestValueEqual(t *testing.T) {
	t.Parallel()

	assert.True(t, Float(math.NaN()).Equal(Float(math.NaN())))
	assert.True(t, Null().Equal(Value{}))
	assert.False(t, Int(1).Equal(Uint(1)))
	assert.False(t, Text("").Equal(Null()))
	assert.Equal(t, "-inf", Float(math.Inf(-1)).String())
	assert.Equal(t, "0.1", Float(0.1).String())
}
