// MIT License
//
// Copyright (c) 2026 Meshgrain Authors
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

package state_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshgrain/silo/errors"
	"github.com/meshgrain/silo/identity"
	"github.com/meshgrain/silo/state"
)

func TestWrite_FirstWriteRequiresEmptyETag(t *testing.T) {
	b := state.NewMemoryBackend()
	ctx := context.Background()
	grain := identity.NewString("acct", "g1")

	etag, err := b.Write(ctx, grain, "balance", []byte("100"), "")
	require.NoError(t, err)
	require.NotEmpty(t, etag)

	_, err = b.Write(ctx, grain, "balance", []byte("200"), "")
	require.ErrorIs(t, err, errors.ErrInconsistentState)
}

func TestWrite_WrongETagFails(t *testing.T) {
	b := state.NewMemoryBackend()
	ctx := context.Background()
	grain := identity.NewString("acct", "g1")

	_, err := b.Write(ctx, grain, "balance", []byte("100"), "")
	require.NoError(t, err)

	_, err = b.Write(ctx, grain, "balance", []byte("200"), "not-the-real-etag")
	require.ErrorIs(t, err, errors.ErrInconsistentState)
}

func TestWrite_CorrectETagSucceedsAndRotatesETag(t *testing.T) {
	b := state.NewMemoryBackend()
	ctx := context.Background()
	grain := identity.NewString("acct", "g1")

	etag1, err := b.Write(ctx, grain, "balance", []byte("100"), "")
	require.NoError(t, err)

	etag2, err := b.Write(ctx, grain, "balance", []byte("200"), etag1)
	require.NoError(t, err)
	require.NotEqual(t, etag1, etag2)

	blob, etag, err := b.Read(ctx, grain, "balance")
	require.NoError(t, err)
	require.Equal(t, []byte("200"), blob)
	require.Equal(t, etag2, etag)
}

func TestRead_MissingStateReturnsZeroValueNotError(t *testing.T) {
	b := state.NewMemoryBackend()
	ctx := context.Background()
	grain := identity.NewString("acct", "ghost")

	blob, etag, err := b.Read(ctx, grain, "balance")
	require.NoError(t, err)
	require.Nil(t, blob)
	require.Empty(t, etag)
}

func TestClear_WrongETagFails(t *testing.T) {
	b := state.NewMemoryBackend()
	ctx := context.Background()
	grain := identity.NewString("acct", "g1")

	etag, err := b.Write(ctx, grain, "balance", []byte("100"), "")
	require.NoError(t, err)

	err = b.Clear(ctx, grain, "balance", "not-the-real-etag")
	require.ErrorIs(t, err, errors.ErrInconsistentState)

	err = b.Clear(ctx, grain, "balance", etag)
	require.NoError(t, err)

	blob, _, err := b.Read(ctx, grain, "balance")
	require.NoError(t, err)
	require.Nil(t, blob)
}
