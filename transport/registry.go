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
	"reflect"
	"strings"
	"sync"
)

// typeRegistry maps a message body's fully-qualified type name to its
// reflect.Type, letting the receive path reconstruct a concrete Go value
// from the wire's type-name field. Safe for concurrent use.
type typeRegistry struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

func newTypeRegistry() *typeRegistry {
	return &typeRegistry{types: make(map[string]reflect.Type)}
}

// Register adds v's type to the registry, keyed by its lowercased, trimmed
// type name. Pass a pointer to the zero value of the type being registered.
func (r *typeRegistry) Register(v any) {
	name := typeName(v)
	rt := reflect.TypeOf(v)
	if rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	r.mu.Lock()
	r.types[name] = rt
	r.mu.Unlock()
}

// New returns a fresh pointer to the named type's zero value, or nil if the
// type name was never registered.
func (r *typeRegistry) New(name string) any {
	r.mu.RLock()
	rt, ok := r.types[name]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return reflect.New(rt).Interface()
}

func typeName(v any) string {
	rt := reflect.TypeOf(v)
	if rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	return strings.ToLower(strings.TrimSpace(rt.String()))
}
