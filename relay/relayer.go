// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package relay is a reference relayer. It picks up paid relay requests,
// fetches the attested envelope from the source chain, asks the destination
// program how to deliver it, posts it to the destination bridge and
// executes the delivery.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/hello"
	"github.com/luxfi/hello/bridge"
	"github.com/luxfi/hello/cache"
	"github.com/luxfi/hello/executor"
	"github.com/luxfi/hello/program"
	"github.com/luxfi/hello/resolver"
	"github.com/luxfi/hello/runtime"
)

const (
	defaultMaxConcurrentRelays = 4
	defaultPlanCacheSize       = 1024
	defaultRetryInterval       = 100 * time.Millisecond
	defaultRetryTimeout        = 10 * time.Second
)

var (
	ErrUnsupportedChain = errors.New("request targets another chain")
	ErrMissingAccounts  = errors.New("plan needs accounts the relayer cannot supply")
	ErrEmptyPlan        = errors.New("plan has no instructions")
)

// EnvelopeSource returns the attested body of a published message, or an
// error wrapping bridge.ErrNotObserved while it is not attested yet.
type EnvelopeSource interface {
	Envelope(ctx context.Context, chain uint16, emitter [32]byte, sequence uint64) ([]byte, error)
}

// Destination executes instructions on the destination chain
type Destination interface {
	Execute(ctx context.Context, ix runtime.Instruction, signers ...solana.PublicKey) (*runtime.Result, error)
	Simulate(ctx context.Context, ix runtime.Instruction, signers ...solana.PublicKey) (*runtime.Result, error)
}

// Poster posts attested envelopes to the destination bridge
type Poster interface {
	ID() solana.PublicKey
	PostVAAInstruction(payer solana.PublicKey, body []byte) (runtime.Instruction, error)
}

// Config configures a Relayer. Zero values take defaults.
type Config struct {
	// ChainID is the destination chain requests must target
	ChainID uint16
	// Payer signs and pays for posting and delivery
	Payer               solana.PublicKey
	MaxConcurrentRelays int
	PlanCacheSize       int
	// RetryInterval and RetryTimeout bound the wait for an envelope to be
	// observed.
	RetryInterval time.Duration
	RetryTimeout  time.Duration
	// Programs maps a destination address to the program that owns it, for
	// peers registered by their emitter account. Addresses not listed are
	// taken as program ids.
	Programs map[solana.PublicKey]solana.PublicKey
}

func (c *Config) setDefaults() {
	if c.MaxConcurrentRelays <= 0 {
		c.MaxConcurrentRelays = defaultMaxConcurrentRelays
	}
	if c.PlanCacheSize <= 0 {
		c.PlanCacheSize = defaultPlanCacheSize
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = defaultRetryInterval
	}
	if c.RetryTimeout <= 0 {
		c.RetryTimeout = defaultRetryTimeout
	}
}

// Request is a paid request to deliver one published message
type Request struct {
	ID                uuid.UUID
	DstChain          uint16
	DstAddress        solana.PublicKey
	Message           *executor.VAAv1Request
	RelayInstructions []byte
}

// Instructions decodes the relay instructions of the request
func (r *Request) Instructions() ([]executor.RelayInstruction, error) {
	return executor.ParseRelayInstructions(r.RelayInstructions)
}

// NewRequest parses the arguments an executor accepted
func NewRequest(args *executor.RequestForExecutionArgs) (*Request, error) {
	msg, err := executor.ParseVAAv1Request(args.RequestBytes)
	if err != nil {
		return nil, err
	}
	return &Request{
		ID:                uuid.New(),
		DstChain:          args.DstChain,
		DstAddress:        solana.PublicKeyFromBytes(args.DstAddr[:]),
		Message:           msg,
		RelayInstructions: args.RelayInstructions,
	}, nil
}

// Requests returns the relay requests emitted in res
func Requests(res *runtime.Result) ([]*Request, error) {
	var requests []*Request
	for _, event := range res.Events {
		e, ok := event.(executor.RequestForExecution)
		if !ok {
			continue
		}
		req, err := NewRequest(e.Args)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, nil
}

type emitterKey struct {
	chain   uint16
	address [32]byte
}

type planKey struct {
	program solana.PublicKey
	hash    ids.ID
}

// Relayer delivers relay requests to one destination chain
type Relayer struct {
	log     log.Logger
	config  Config
	source  EnvelopeSource
	dst     Destination
	bridge  Poster
	plans   *cache.FIFO[planKey, *resolver.Result]
	metrics *metrics

	lock        sync.Mutex
	checkpoints map[emitterKey]*Checkpoint
}

// New creates a relayer from source to dst, posting through bridge
func New(
	log log.Logger,
	config Config,
	source EnvelopeSource,
	dst Destination,
	bridge Poster,
	registerer prometheus.Registerer,
) *Relayer {
	config.setDefaults()
	return &Relayer{
		log:     log,
		config:  config,
		source:  source,
		dst:     dst,
		bridge:  bridge,
		plans:   cache.NewFIFO[planKey, *resolver.Result](config.PlanCacheSize),
		metrics: newMetrics(registerer),

		checkpoints: make(map[emitterKey]*Checkpoint),
	}
}

func (r *Relayer) checkpoint(chain uint16, emitter [32]byte) *Checkpoint {
	r.lock.Lock()
	defer r.lock.Unlock()

	key := emitterKey{chain: chain, address: emitter}
	c, ok := r.checkpoints[key]
	if !ok {
		c = NewCheckpoint(0)
		r.checkpoints[key] = c
	}
	return c
}

// Next returns the first sequence of emitter not yet relayed
func (r *Relayer) Next(chain uint16, emitter [32]byte) uint64 {
	return r.checkpoint(chain, emitter).Next()
}

// CatchUp relays the messages of emitter from its checkpoint up to, but not
// including, until. It covers messages whose relay was never requested.
func (r *Relayer) CatchUp(ctx context.Context, chain uint16, emitter [32]byte, dstAddress solana.PublicKey, until uint64) error {
	var requests []*Request
	for seq := r.Next(chain, emitter); seq < until; seq++ {
		requests = append(requests, &Request{
			ID:         uuid.New(),
			DstChain:   r.config.ChainID,
			DstAddress: dstAddress,
			Message: &executor.VAAv1Request{
				EmitterChain:   chain,
				EmitterAddress: emitter,
				Sequence:       seq,
			},
		})
	}
	return r.HandleRequests(ctx, requests)
}

// HandleResult relays every request emitted in res
func (r *Relayer) HandleResult(ctx context.Context, res *runtime.Result) error {
	requests, err := Requests(res)
	if err != nil {
		r.metrics.failedMessages.WithLabelValues("", chainLabel(r.config.ChainID), reasonRequest).Inc()
		return err
	}
	return r.HandleRequests(ctx, requests)
}

// HandleRequests relays requests concurrently. A failed request does not
// stop the others; the returned error joins every failure.
func (r *Relayer) HandleRequests(ctx context.Context, requests []*Request) error {
	var (
		eg   errgroup.Group
		lock sync.Mutex
		errs []error
	)
	eg.SetLimit(r.config.MaxConcurrentRelays)
	for _, req := range requests {
		eg.Go(func() error {
			if err := r.Relay(ctx, req); err != nil {
				lock.Lock()
				errs = append(errs, fmt.Errorf("job %s: %w", req.ID, err))
				lock.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()
	return errors.Join(errs...)
}

// Relay delivers the message of req. A message the destination already
// received counts as delivered.
func (r *Relayer) Relay(ctx context.Context, req *Request) error {
	start := time.Now()
	programID := r.programID(req.DstAddress)
	srcLabel := chainLabel(req.Message.EmitterChain)
	dstLabel := chainLabel(req.DstChain)
	fail := func(reason string, err error) error {
		if ctx.Err() != nil {
			reason = reasonCanceled
		}
		r.metrics.failedMessages.WithLabelValues(srcLabel, dstLabel, reason).Inc()
		r.log.Warn("relay failed",
			log.Stringer("job", req.ID),
			log.Stringer("program", programID),
			log.Err(err),
		)
		return err
	}

	if req.DstChain != r.config.ChainID {
		return fail(reasonRequest, fmt.Errorf("%w: chain %d, relaying to %d", ErrUnsupportedChain, req.DstChain, r.config.ChainID))
	}

	body, err := r.fetch(ctx, req)
	if err != nil {
		return fail(reasonFetch, err)
	}
	hash := hello.EnvelopeHash(body)

	plan, err := r.plan(ctx, programID, hash, body)
	if err != nil {
		return fail(reasonResolve, err)
	}

	posted, err := r.post(ctx, body)
	if err != nil {
		return fail(reasonPost, err)
	}

	duplicate, err := r.deliver(ctx, plan, posted)
	if err != nil {
		return fail(reasonDeliver, err)
	}

	r.checkpoint(req.Message.EmitterChain, req.Message.EmitterAddress).Stage(req.Message.Sequence)
	if duplicate {
		r.metrics.duplicateMessages.WithLabelValues(srcLabel, dstLabel).Inc()
		r.log.Debug("message already delivered",
			log.Stringer("job", req.ID),
			log.Stringer("envelope", hash),
		)
		return nil
	}
	r.metrics.relayedMessages.WithLabelValues(srcLabel, dstLabel).Inc()
	r.metrics.relayLatencyMS.WithLabelValues(srcLabel, dstLabel).Set(float64(time.Since(start).Milliseconds()))
	r.log.Info("relayed message",
		log.Stringer("job", req.ID),
		log.Stringer("program", programID),
		log.Stringer("envelope", hash),
	)
	return nil
}

func (r *Relayer) programID(addr solana.PublicKey) solana.PublicKey {
	if programID, ok := r.config.Programs[addr]; ok {
		return programID
	}
	return addr
}

// fetch waits for the envelope to be observed. Other errors are permanent.
func (r *Relayer) fetch(ctx context.Context, req *Request) ([]byte, error) {
	var body []byte
	operation := func() error {
		var err error
		body, err = r.source.Envelope(ctx, req.Message.EmitterChain, req.Message.EmitterAddress, req.Message.Sequence)
		if err != nil && !errors.Is(err, bridge.ErrNotObserved) {
			return backoff.Permanent(err)
		}
		return err
	}
	expBackOff := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(r.config.RetryInterval),
		backoff.WithMaxElapsedTime(r.config.RetryTimeout),
	)
	notify := func(err error, wait time.Duration) {
		r.log.Debug("envelope not observed, retrying",
			log.Stringer("job", req.ID),
			log.Stringer("wait", wait),
			log.Err(err),
		)
	}
	err := backoff.RetryNotify(operation, backoff.WithContext(expBackOff, ctx), notify)
	return body, err
}

// plan asks the destination program how to deliver body
func (r *Relayer) plan(ctx context.Context, programID solana.PublicKey, hash ids.ID, body []byte) (*resolver.Result, error) {
	key := planKey{program: programID, hash: hash}
	if plan, ok := r.plans.Get(key); ok {
		r.metrics.planCacheHits.Inc()
		return plan, nil
	}
	return r.plans.GetOrFetch(ctx, key, func(ctx context.Context, key planKey) (*resolver.Result, error) {
		res, err := r.dst.Simulate(ctx, program.ExecutorResolveInstruction(key.program, body))
		if err != nil {
			return nil, err
		}
		if res.ReturnProgram != key.program {
			return nil, fmt.Errorf("%w: return data set by %s", resolver.ErrInvalidPlan, res.ReturnProgram)
		}
		plan, err := resolver.ParseResult(res.ReturnData)
		if err != nil {
			return nil, err
		}
		if plan.Missing != nil {
			return nil, fmt.Errorf("%w: %d accounts", ErrMissingAccounts, len(plan.Missing.Accounts))
		}
		if len(plan.Groups) == 0 {
			return nil, ErrEmptyPlan
		}
		return plan, nil
	})
}

// post posts body to the destination bridge and returns the posted account
func (r *Relayer) post(ctx context.Context, body []byte) (solana.PublicKey, error) {
	ix, err := r.bridge.PostVAAInstruction(r.config.Payer, body)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if _, err := r.dst.Execute(ctx, ix, r.config.Payer); err != nil {
		return solana.PublicKey{}, err
	}
	posted, err := bridge.PostedVAAAddress(r.bridge.ID(), hello.EnvelopeHash(body))
	return posted.Key, err
}

// deliver executes the plan with the placeholders filled in. It reports
// whether the destination had already received the message.
func (r *Relayer) deliver(ctx context.Context, plan *resolver.Result, posted solana.PublicKey) (bool, error) {
	for _, group := range plan.Groups {
		for i := range group.Instructions {
			ix := group.Instructions[i].Resolve(r.config.Payer, posted)
			_, err := r.dst.Execute(ctx, ix, r.config.Payer)
			if hello.IsAlreadyReceived(err) {
				return true, nil
			}
			if err != nil {
				return false, err
			}
		}
	}
	return false, nil
}

func chainLabel(chain uint16) string {
	return strconv.FormatUint(uint64(chain), 10)
}
