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
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/meshgrain/silo/message"
)

var (
	cborEncOpts = cbor.EncOptions{
		Sort:        cbor.SortNone,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeUnixDynamic,
	}
	cborDecOpts = cbor.DecOptions{
		MaxNestedLevels: 64,
		IndefLength:     cbor.IndefLengthForbidden,
	}
)

// wireEnvelope is the CBOR-encoded shape placed on the wire: the message
// header encodes directly (it has no polymorphic fields), while the body is
// encoded separately alongside its registered type name so the receiver can
// reconstruct the concrete Go value.
type wireEnvelope struct {
	Header    message.Header
	BodyType  string
	BodyBytes []byte
}

// Codec serializes and deserializes Messages using CBOR, the same encoding
// goakt's remoting layer offers as an alternative to its gRPC/protobuf path
// for non-generated message types. A Codec is safe for concurrent use once
// every body type has been registered.
type Codec struct {
	enc   cbor.EncMode
	dec   cbor.DecMode
	types *typeRegistry
}

// NewCodec returns a ready-to-use Codec with no body types registered.
func NewCodec() *Codec {
	enc, err := cborEncOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("transport: invalid cbor encode options: %v", err))
	}
	dec, err := cborDecOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("transport: invalid cbor decode options: %v", err))
	}
	return &Codec{enc: enc, dec: dec, types: newTypeRegistry()}
}

// RegisterBodyType registers a message body type (pass a pointer to its
// zero value) so Decode can reconstruct it from the wire's type name.
func (c *Codec) RegisterBodyType(v any) {
	c.types.Register(v)
}

// Encode serializes msg to a self-contained CBOR document. Its own length
// is not included; callers frame it with transport.PrefixWriter.
func (c *Codec) Encode(msg message.Message) ([]byte, error) {
	env := wireEnvelope{Header: msg.Header}
	if msg.Body != nil {
		bodyBytes, err := c.enc.Marshal(msg.Body)
		if err != nil {
			return nil, fmt.Errorf("transport: encoding message body: %w", err)
		}
		env.BodyType = typeName(msg.Body)
		env.BodyBytes = bodyBytes
	}
	out, err := c.enc.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("transport: encoding message envelope: %w", err)
	}
	return out, nil
}

// Decode reconstructs a Message from bytes produced by Encode. The body is
// returned as a pointer to its registered concrete type; callers recover it
// with a type assertion, the same convention goakt's CBORSerializer uses.
func (c *Codec) Decode(data []byte) (message.Message, error) {
	var env wireEnvelope
	if err := c.dec.Unmarshal(data, &env); err != nil {
		return message.Message{}, fmt.Errorf("transport: decoding message envelope: %w", err)
	}
	if env.BodyType == "" {
		return message.Message{Header: env.Header}, nil
	}

	body := c.types.New(env.BodyType)
	if body == nil {
		return message.Message{}, fmt.Errorf("transport: body type %q not registered", env.BodyType)
	}
	if err := c.dec.Unmarshal(env.BodyBytes, body); err != nil {
		return message.Message{}, fmt.Errorf("transport: decoding message body: %w", err)
	}
	return message.Message{Header: env.Header, Body: body}, nil
}
