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

package stream_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/meshgrain/silo/stream"
)

func TestAddMessages_AssignsIncreasingPositionsPerStream(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := stream.NewCache(time.Minute)
	ctx := context.Background()
	c.Start(ctx)
	defer c.Stop()

	positions := c.AddMessages([]stream.Message{
		{StreamID: "s1", Payload: []byte("a")},
		{StreamID: "s1", Payload: []byte("b")},
		{StreamID: "s2", Payload: []byte("c")},
	}, time.Now())

	require.Equal(t, []stream.Position{0, 1, 0}, positions)
}

func TestTryGetNext_ReturnsOnlyMessagesAtOrAfterCursor(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := stream.NewCache(time.Minute)
	ctx := context.Background()
	c.Start(ctx)
	defer c.Stop()

	c.AddMessages([]stream.Message{
		{StreamID: "s1", Payload: []byte("a")},
		{StreamID: "s1", Payload: []byte("b")},
		{StreamID: "s1", Payload: []byte("c")},
	}, time.Now())

	cursor := c.GetCursor("s1", 1)
	batch, ok := c.TryGetNext(cursor)
	require.True(t, ok)
	require.Len(t, batch, 2)
	require.Equal(t, []byte("b"), batch[0].Payload)
	require.Equal(t, []byte("c"), batch[1].Payload)
}

func TestTryGetNext_EmptyStreamReturnsNotOK(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := stream.NewCache(time.Minute)
	ctx := context.Background()
	c.Start(ctx)
	defer c.Stop()

	_, ok := c.TryGetNext(c.GetCursor("nope", 0))
	require.False(t, ok)
}

func TestSignalPurge_DropsConsumedPrefix(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := stream.NewCache(time.Minute)
	ctx := context.Background()
	c.Start(ctx)
	defer c.Stop()

	c.AddMessages([]stream.Message{
		{StreamID: "s1", Payload: []byte("a")},
		{StreamID: "s1", Payload: []byte("b")},
	}, time.Now())

	c.SignalPurge("s1", 1)
	batch, ok := c.TryGetNext(c.GetCursor("s1", 0))
	require.True(t, ok)
	require.Len(t, batch, 1)
	require.Equal(t, []byte("b"), batch[0].Payload)
}

func TestEvictExpired_RemovesStaleEntriesAfterTTL(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := stream.NewCache(20 * time.Millisecond)
	ctx := context.Background()
	c.Start(ctx)
	defer c.Stop()

	c.AddMessages([]stream.Message{{StreamID: "s1", Payload: []byte("a")}}, time.Now())

	require.Eventually(t, func() bool {
		_, ok := c.TryGetNext(c.GetCursor("s1", 0))
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestIsUnderPressure_FalseWhenBelowThreshold(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := stream.NewCache(time.Minute)
	ctx := context.Background()
	c.Start(ctx)
	defer c.Stop()

	c.AddMessages([]stream.Message{{StreamID: "s1", Payload: []byte("a")}}, time.Now())
	require.False(t, c.IsUnderPressure())
}
