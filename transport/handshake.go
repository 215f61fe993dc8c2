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

package transport

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/meshgrain/silo/errors"
)

// CurrentProtocolVersion is this silo's wire protocol version, exchanged in
// every handshake preamble.
const CurrentProtocolVersion uint32 = 1

const maxPreambleSize = 4 << 10 // 4 KiB is ample for a preamble

// Preamble is exchanged at connection setup: node identity, protocol
// version, the silo address (peer connections only; empty for a
// gateway-to-client connection), and the cluster id both sides must agree
// on before any framed message is exchanged.
type Preamble struct {
	NodeIdentity    string
	ProtocolVersion uint32
	SiloAddress     string
	ClusterID       string
}

func writePreamble(w io.Writer, p Preamble) error {
	data, err := cbor.Marshal(p)
	if err != nil {
		return fmt.Errorf("transport: encoding preamble: %w", err)
	}
	if len(data) > maxPreambleSize {
		return fmt.Errorf("transport: preamble too large (%d bytes)", len(data))
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(data)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func readPreamble(r io.Reader) (Preamble, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Preamble{}, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n == 0 || n > maxPreambleSize {
		return Preamble{}, fmt.Errorf("transport: invalid preamble length %d", n)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return Preamble{}, err
	}
	var p Preamble
	if err := cbor.Unmarshal(data, &p); err != nil {
		return Preamble{}, fmt.Errorf("transport: decoding preamble: %w", err)
	}
	return p, nil
}

// rwCloser is the minimal surface handshake needs from a connection.
type rwCloser interface {
	io.Reader
	io.Writer
}

// dialHandshake performs the dialing side of the handshake (the writer
// side writes its preamble first) then reads the peer's (the reader side
// from the peer's perspective), validating cluster ids match.
func dialHandshake(conn rwCloser, self Preamble) (Preamble, error) {
	if err := writePreamble(conn, self); err != nil {
		return Preamble{}, err
	}
	peer, err := readPreamble(conn)
	if err != nil {
		return Preamble{}, err
	}
	if peer.ClusterID != self.ClusterID {
		return peer, errors.ErrClusterIDMismatch
	}
	if peer.ProtocolVersion != self.ProtocolVersion {
		return peer, errors.ErrProtocolVersionMismatch
	}
	return peer, nil
}

// acceptHandshake performs the accepting side of the handshake (the reader
// side expects the peer's preamble first) then writes its own.
func acceptHandshake(conn rwCloser, self Preamble) (Preamble, error) {
	peer, err := readPreamble(conn)
	if err != nil {
		return Preamble{}, err
	}
	if err := writePreamble(conn, self); err != nil {
		return peer, err
	}
	if peer.ClusterID != self.ClusterID {
		return peer, errors.ErrClusterIDMismatch
	}
	if peer.ProtocolVersion != self.ProtocolVersion {
		return peer, errors.ErrProtocolVersionMismatch
	}
	return peer, nil
}
