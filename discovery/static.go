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

package discovery

import "context"

// Static is a Discoverer backed by a fixed, operator-supplied peer list. It
// is the simplest backend, useful for tests and for clusters whose
// membership is managed out-of-band (e.g. a StatefulSet with known DNS
// names).
type Static struct {
	peers []string
	self  string
}

var _ Discoverer = (*Static)(nil)

// NewStatic builds a Static discoverer over the given peer endpoints.
func NewStatic(peers []string) *Static {
	return &Static{peers: append([]string(nil), peers...)}
}

func (s *Static) Initialize() error { return nil }

func (s *Static) Register(_ context.Context, selfEndpoint string) error {
	s.self = selfEndpoint
	return nil
}

func (s *Static) DiscoverPeers(_ context.Context) ([]string, error) {
	out := make([]string, 0, len(s.peers))
	for _, p := range s.peers {
		if p != s.self {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Static) Close() error { return nil }
