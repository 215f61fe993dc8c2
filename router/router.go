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

// Package router implements the Message Router: it addresses, sends,
// receives, retries and rejects messages, matching responses to outstanding
// callback records by correlation id.
package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/meshgrain/silo/address"
	"github.com/meshgrain/silo/directory"
	"github.com/meshgrain/silo/errors"
	"github.com/meshgrain/silo/identity"
	"github.com/meshgrain/silo/log"
	"github.com/meshgrain/silo/message"
)

// Deliverer hands a message to the Connection Manager for network delivery
// to msg.Header.TargetSilo. The router never frames or dials itself.
type Deliverer interface {
	Deliver(ctx context.Context, msg message.Message) error
}

// LocalHandler invokes a locally hosted activation (via the Scheduler) and
// returns its response. Used when a request resolves to this router's own
// silo.
type LocalHandler func(ctx context.Context, msg message.Message) (message.Message, error)

// Options configures the router's timeouts and retry budget.
type Options struct {
	ResponseTimeout       time.Duration
	SystemResponseTimeout time.Duration
	MaxRetries            int
	SweepInterval         time.Duration
}

// DefaultOptions mirrors the sweep-interval floor used elsewhere: a 1s
// sweep interval (min(response timeout, 1s)).
func DefaultOptions() Options {
	return Options{
		ResponseTimeout:       30 * time.Second,
		SystemResponseTimeout: 10 * time.Second,
		MaxRetries:            3,
		SweepInterval:         time.Second,
	}
}

// Router is the per-silo message router.
type Router struct {
	self  address.Address
	dir   *directory.Directory
	deliv Deliverer
	local LocalHandler
	opts  Options
	log   log.Logger

	nextCorrelation atomic.Uint64

	mu        sync.Mutex
	callbacks map[string]*message.Callback

	stop chan struct{}
	wg   sync.WaitGroup
}

// New constructs a Router bound to one silo's directory and transport.
func New(self address.Address, dir *directory.Directory, deliv Deliverer, local LocalHandler, opts Options, logger log.Logger) *Router {
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if logger == nil {
		logger = log.DiscardLogger
	}
	return &Router{
		self:      self,
		dir:       dir,
		deliv:     deliv,
		local:     local,
		opts:      opts,
		log:       logger,
		callbacks: make(map[string]*message.Callback),
		stop:      make(chan struct{}),
	}
}

// Start launches the timeout sweeper goroutine.
func (r *Router) Start() {
	r.wg.Add(1)
	go r.sweepLoop()
}

// Stop halts the sweeper and fails every outstanding callback with a
// timeout, as if the silo were shutting down mid-flight.
func (r *Router) Stop() {
	close(r.stop)
	r.wg.Wait()

	r.mu.Lock()
	remaining := r.callbacks
	r.callbacks = make(map[string]*message.Callback)
	r.mu.Unlock()

	for _, cb := range remaining {
		cb.Sink.Timeout()
	}
}

func (r *Router) nextCorrelationID() string {
	n := r.nextCorrelation.Inc()
	return fmt.Sprintf("%s/%d", r.self.String(), n)
}

func (r *Router) timeoutFor(systemMessage bool) time.Duration {
	if systemMessage {
		return r.opts.SystemResponseTimeout
	}
	return r.opts.ResponseTimeout
}

// SendOptions customizes one outbound request.
type SendOptions struct {
	System            bool
	Timeout           time.Duration
	RequestContext    map[string]string
}

// SendRequest resolves target's current activation via the Directory,
// assigns a correlation id, records a Callback, and either dispatches
// locally or hands the message to the Connection Manager. sink receives
// the terminal event exactly once.
func (r *Router) SendRequest(ctx context.Context, sending, target identity.GrainIdentity, body any, opts SendOptions, sink message.CompletionSink) error {
	activation, found, err := r.dir.Lookup(ctx, target)
	if err != nil {
		return err
	}
	if !found {
		return errors.ErrActivationNotFound
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = r.timeoutFor(opts.System)
	}
	now := time.Now()

	hdr := message.Header{
		SendingGrain:     sending,
		TargetGrain:      target,
		SendingSilo:      r.self,
		TargetSilo:       activation.Silo,
		CorrelationID:    r.nextCorrelationID(),
		Direction:        message.Request,
		Expiry:           now.Add(timeout),
		RequestContext:   opts.RequestContext,
	}
	msg := message.Message{Header: hdr, Body: body}

	cb := &message.Callback{
		CorrelationID: hdr.CorrelationID,
		SendingGrain:  sending,
		TargetGrain:   target,
		Request:       msg,
		Expiry:        hdr.Expiry,
		Sink:          sink,
	}
	r.mu.Lock()
	r.callbacks[r.callbackKey(sending, hdr.CorrelationID)] = cb
	r.mu.Unlock()

	return r.dispatch(ctx, msg)
}

func (r *Router) callbackKey(sendingGrain identity.GrainIdentity, correlationID string) string {
	return sendingGrain.String() + "#" + correlationID
}

// dispatch delivers msg either to the local handler (target silo is self)
// or to the Connection Manager, dropping it with a surfaced timeout if it
// has already expired at the handoff point.
func (r *Router) dispatch(ctx context.Context, msg message.Message) error {
	if msg.Header.Expired(time.Now()) {
		r.expire(msg)
		return nil
	}

	if msg.Header.TargetSilo.Equal(r.self) {
		if r.local == nil {
			return errors.ErrUnsupportedRequest
		}
		go func() {
			resp, err := r.local(ctx, msg)
			if err != nil {
				r.Fail(msg, rejectionFor(err))
				return
			}
			// The response answers msg, so address it back to msg's sender
			// under msg's correlation id for callback matching.
			resp.Header.SendingGrain = msg.Header.TargetGrain
			resp.Header.TargetGrain = msg.Header.SendingGrain
			resp.Header.SendingSilo = r.self
			resp.Header.TargetSilo = msg.Header.SendingSilo
			resp.Header.CorrelationID = msg.Header.CorrelationID
			resp.Header.Direction = message.Response
			r.receiveResponse(resp)
		}()
		return nil
	}

	if msg.IsOneWay() {
		return r.deliv.Deliver(ctx, msg)
	}
	if err := r.deliv.Deliver(ctx, msg); err != nil {
		r.log.Debugf("router: delivery to %s failed: %v", msg.Header.TargetSilo, err)
		// Delivery failures are reported to the caller only through its
		// callback sink (Retry ultimately calls Fail on exhaustion), never
		// as SendRequest's own return value: that return value is reserved
		// for synchronous setup failures such as a directory miss.
		if retryErr := r.Retry(ctx, msg); retryErr != nil {
			r.log.Debugf("router: retry exhausted for %s: %v", msg.Header.CorrelationID, retryErr)
		}
		return nil
	}
	return nil
}

// SendResponse is called by the scheduler once a locally hosted
// activation's turn produces a response to a request it received.
func (r *Router) SendResponse(ctx context.Context, request message.Message, responseBody any) error {
	resp := message.Message{
		Header: message.Header{
			SendingGrain:  request.Header.TargetGrain,
			TargetGrain:   request.Header.SendingGrain,
			SendingSilo:   r.self,
			TargetSilo:    request.Header.SendingSilo,
			CorrelationID: request.Header.CorrelationID,
			Direction:     message.Response,
			Expiry:        request.Header.Expiry,
		},
		Body: responseBody,
	}
	if resp.Header.TargetSilo.Equal(r.self) {
		r.receiveResponse(resp)
		return nil
	}
	return r.deliv.Deliver(ctx, resp)
}

// Receive is the Connection Manager's entry point for an inbound message
// read off the wire. Responses and rejections are matched to callbacks;
// requests are the caller's concern (typically handed to the catalog via
// a LocalHandler wired by the silo orchestrator).
func (r *Router) Receive(msg message.Message) {
	switch msg.Header.Direction {
	case message.Response:
		if msg.Header.Rejection != message.NoRejection {
			r.receiveRejection(msg)
			return
		}
		r.receiveResponse(msg)
	default:
		r.log.Debugf("router: Receive called with non-response message, ignoring")
	}
}

func (r *Router) receiveResponse(msg message.Message) {
	key := r.callbackKey(msg.Header.TargetGrain, msg.Header.CorrelationID)
	r.mu.Lock()
	cb, ok := r.callbacks[key]
	if ok {
		delete(r.callbacks, key)
	}
	r.mu.Unlock()
	if !ok {
		r.log.Debugf("router: no callback for correlation %s, dropping response", msg.Header.CorrelationID)
		return
	}
	cb.Sink.Complete(msg)
}

func (r *Router) receiveRejection(msg message.Message) {
	key := r.callbackKey(msg.Header.TargetGrain, msg.Header.CorrelationID)
	r.mu.Lock()
	cb, ok := r.callbacks[key]
	r.mu.Unlock()
	if !ok {
		r.log.Debugf("router: no callback for rejected correlation %s", msg.Header.CorrelationID)
		return
	}

	if msg.Header.Rejection.InvalidatesCache() {
		r.dir.Invalidate(cb.TargetGrain)
	}

	if msg.Header.Rejection == message.RejectionDuplicateRequest {
		r.mu.Lock()
		delete(r.callbacks, key)
		r.mu.Unlock()
		return
	}

	if !msg.Header.Rejection.Retryable() {
		r.removeAndReject(key, msg.Header.Rejection, errors.ErrActivationFailed)
		return
	}

	if err := r.Retry(context.Background(), cb.Request); err != nil {
		r.removeAndReject(key, msg.Header.Rejection, err)
	}
}

func (r *Router) removeAndReject(key string, kind message.RejectionKind, err error) {
	r.mu.Lock()
	cb, ok := r.callbacks[key]
	if ok {
		delete(r.callbacks, key)
	}
	r.mu.Unlock()
	if ok {
		cb.Sink.Reject(kind, err)
	}
}

// Retry re-addresses msg through the directory (the prior owner may have
// failed or moved) and redelivers it, incrementing its retry count.
// Exceeding MaxRetries surfaces ErrMaxRetriesExceeded rather than retrying
// again.
func (r *Router) Retry(ctx context.Context, msg message.Message) error {
	if msg.Header.RetryCount >= r.opts.MaxRetries {
		r.Fail(msg, message.RejectionUnrecoverable)
		return errors.ErrMaxRetriesExceeded
	}
	msg.Header.RetryCount++

	activation, found, err := r.dir.Lookup(ctx, msg.Header.TargetGrain)
	if err != nil || !found {
		r.Fail(msg, message.RejectionTransient)
		if err != nil {
			return err
		}
		return errors.ErrActivationNotFound
	}
	msg.Header.TargetSilo = activation.Silo
	return r.dispatch(ctx, msg)
}

// Fail surfaces a terminal rejection for msg's callback, if any, without
// retrying.
func (r *Router) Fail(msg message.Message, kind message.RejectionKind) {
	key := r.callbackKey(msg.Header.SendingGrain, msg.Header.CorrelationID)
	r.removeAndReject(key, kind, errors.ErrActivationFailed)
}

func (r *Router) expire(msg message.Message) {
	if msg.IsOneWay() {
		return
	}
	key := r.callbackKey(msg.Header.SendingGrain, msg.Header.CorrelationID)
	r.mu.Lock()
	cb, ok := r.callbacks[key]
	if ok {
		delete(r.callbacks, key)
	}
	r.mu.Unlock()
	if ok {
		cb.Sink.Timeout()
	}
}

// GatewayReroute implements the gateway-inbound rerouting rule: a message
// with no known target silo is addressed via the directory; a system-target
// message is rebound to this (gateway) silo.
func (r *Router) GatewayReroute(ctx context.Context, msg message.Message, systemTarget bool) (message.Message, error) {
	if systemTarget {
		msg.Header.TargetSilo = r.self
		return msg, nil
	}
	if !msg.Header.TargetSilo.IsZero() {
		return msg, nil
	}
	activation, found, err := r.dir.Lookup(ctx, msg.Header.TargetGrain)
	if err != nil {
		return msg, err
	}
	if !found {
		return msg, errors.ErrActivationNotFound
	}
	msg.Header.TargetSilo = activation.Silo
	return msg, nil
}

func (r *Router) sweepLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.sweepExpired()
		}
	}
}

func (r *Router) sweepExpired() {
	now := time.Now()
	var expired []*message.Callback

	r.mu.Lock()
	for key, cb := range r.callbacks {
		if cb.Expired(now) {
			expired = append(expired, cb)
			delete(r.callbacks, key)
		}
	}
	r.mu.Unlock()

	for _, cb := range expired {
		cb.Sink.Timeout()
	}
}

func rejectionFor(err error) message.RejectionKind {
	switch {
	case errors.Is(err, errors.ErrDuplicateRequest):
		return message.RejectionDuplicateRequest
	case errors.Is(err, errors.ErrOverloaded), errors.Is(err, errors.ErrGatewayTooBusy):
		return message.RejectionGatewayTooBusy
	case errors.Is(err, errors.ErrStaleActivation), errors.Is(err, errors.ErrActivationNotFound):
		return message.RejectionUnrecoverable
	default:
		return message.RejectionTransient
	}
}
