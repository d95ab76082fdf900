// Package resolver implements the iterative referral chase: given a
// client's raw query bytes, it walks from root hints through delegation
// referrals until it has an authoritative answer, a negative answer, or
// has exhausted every candidate server.
package resolver

import (
	"errors"
	"time"

	"github.com/haloarc/iterdns/internal/dns/common/clock"
	"github.com/haloarc/iterdns/internal/dns/common/log"
	"github.com/haloarc/iterdns/internal/dns/common/metrics"
	"github.com/haloarc/iterdns/internal/dns/domain"
	"github.com/haloarc/iterdns/internal/dns/wire"
)

// timeoutSentinel is the literal ASCII payload the resolver returns to
// the client when a client query's lifecycle ends without ever producing
// a forwardable upstream message (spec §4.3's DONE-on-timeout path).
const timeoutSentinel = "timeout"

// Upstreamer sends a client query's raw bytes to a single upstream server
// and waits up to timeout for a reply. It returns an error on timeout or
// any transport failure; the resolver treats both as "no datagram within
// timeout" (spec §4.3 step 3).
type Upstreamer interface {
	Query(serverIP string, payload []byte, timeout time.Duration) ([]byte, error)
}

// Options configures a Resolver.
type Options struct {
	Roots    []string
	Upstream Upstreamer
	Codec    *wire.Codec
	Logger   log.Logger
	Timeout  time.Duration
	Clock    clock.Clock
}

// Resolver runs the iterative referral chase for one client query at a
// time (spec §4.3's "at-most-one in flight" invariant is enforced by the
// transport layer serializing calls to HandleClientQuery, not by this
// type itself).
type Resolver struct {
	roots    []string
	upstream Upstreamer
	codec    *wire.Codec
	logger   log.Logger
	timeout  time.Duration
	clock    clock.Clock
}

// New constructs a Resolver. At least one root hint is required; an
// empty root list is a fatal startup condition (spec §4.2).
func New(opts Options) (*Resolver, error) {
	if len(opts.Roots) == 0 {
		return nil, errNoRoots
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	return &Resolver{
		roots:    opts.Roots,
		upstream: opts.Upstream,
		codec:    opts.Codec,
		logger:   opts.Logger,
		timeout:  opts.Timeout,
		clock:    opts.Clock,
	}, nil
}

var errNoRoots = errors.New("resolver requires at least one root hint")

// HandleClientQuery runs the full IDLE→QUERYING_ROOT→QUERYING_DELEGATE→
// DONE chase for one client datagram and returns the bytes to send back
// to clientAddr: either a verbatim upstream message or the literal
// "timeout" sentinel.
func (r *Resolver) HandleClientQuery(clientAddr string, payload []byte) []byte {
	q := newQuery(clientAddr, payload, r.roots)
	start := r.clock.Now()
	hops := 0

	for {
		hops++
		queryStart := r.clock.Now()
		reply, err := r.upstream.Query(q.currentServer, q.clientQuery, r.timeout)
		if err != nil {
			metrics.ObserveUpstreamQuery(metrics.OutcomeTimeout, r.clock.Now().Sub(queryStart))
			r.logger.Debug(map[string]any{"server": q.currentServer, "err": err.Error()}, "upstream query failed")
			if q.advance() {
				continue
			}
			return r.finish(metrics.OutcomeTimeout, hops, start, nil)
		}
		metrics.ObserveUpstreamQuery(metrics.OutcomeAnswer, r.clock.Now().Sub(queryStart))

		// Peek the header alone first: a reply that carries an answer is
		// forwarded verbatim even if something further in the message (e.g.
		// malformed RDATA past the answer section) fails to fully decode.
		if header, headerErr := r.codec.DecodeHeader(reply); headerErr == nil && header.ANCount > 0 {
			return r.finish(metrics.OutcomeAnswer, hops, start, reply)
		}

		msg, decodeErr := r.codec.DecodeMessage(reply)
		if decodeErr != nil {
			r.logger.Warn(map[string]any{"server": q.currentServer, "err": decodeErr.Error()}, "unusable upstream reply")
			if q.advance() {
				continue
			}
			return r.finish(metrics.OutcomeTimeout, hops, start, nil)
		}

		if msg.HasAnswers() {
			return r.finish(metrics.OutcomeAnswer, hops, start, reply)
		}

		if msg.Header.RCode == domain.RCodeNXDomain || msg.Header.RCode == domain.RCodeFormErr {
			// NXDOMAIN or FORMERR: authoritative negative answer, forward as-is.
			outcome := metrics.OutcomeNXDomain
			if msg.Header.RCode == domain.RCodeFormErr {
				outcome = metrics.OutcomeFormerr
			}
			return r.finish(outcome, hops, start, reply)
		}

		glue := msg.GlueAddresses()
		isDeadEnd := msg.Header.RCode == domain.RCodeServFail || msg.Header.RCode == domain.RCodeNotImp ||
			msg.Header.RCode == domain.RCodeRefused || len(glue) == 0
		if isDeadEnd {
			if q.advance() {
				continue
			}
			return r.finish(metrics.OutcomeTimeout, hops, start, reply)
		}

		if !q.acceptReferral(glue) {
			// every glue address in this referral was already tried
			if q.advance() {
				continue
			}
			return r.finish(metrics.OutcomeTimeout, hops, start, reply)
		}
	}
}

// finish records the resolution's outcome and hop count, then returns
// either the raw upstream reply (if one exists) or the timeout sentinel.
func (r *Resolver) finish(outcome metrics.Outcome, hops int, start time.Time, raw []byte) []byte {
	metrics.RecordResolution(outcome, hops)
	r.logger.Info(map[string]any{
		"outcome":  string(outcome),
		"hops":     hops,
		"duration": r.clock.Now().Sub(start).String(),
	}, "client query resolved")
	if raw != nil {
		return raw
	}
	return []byte(timeoutSentinel)
}
