// Package bootstrap brings the local identity up at startup.
//
// Run reconciles the attestation signing key held in the attribute store with
// its published public half, creating a fresh key pair on first run, while
// loading both trust rings in parallel. Every task settles before Run
// returns; trust ring load failures are reported per key type.
package bootstrap

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cloudflare/circl/sign/ed25519"
	"golang.org/x/sync/errgroup"

	"xdao.co/trustring/identity"
	"xdao.co/trustring/keys"
	"xdao.co/trustring/metrics"
	"xdao.co/trustring/model"
	"xdao.co/trustring/storage"
	"xdao.co/trustring/truststore"
)

// Attribute slots holding the local identity's signing key material.
const (
	SlotSigningPrivate = "identity.signing.private"
	SlotSigningPublic  = "identity.signing.public"
	SlotSignature      = "identity.signature"
)

type State uint8

const (
	StateStart State = iota
	StateKeyVerified
	StateBootstrapped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateKeyVerified:
		return "key-verified"
	case StateBootstrapped:
		return "bootstrapped"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Report describes how a Run settled.
type Report struct {
	State State
	// Republished is set when the published public key was missing or stale
	// and was rewritten.
	Republished bool
	// SigningPublicKey is the attestation key in effect after Run.
	SigningPublicKey ed25519.PublicKey
	// LoadErrors holds the trust ring loads that failed, by key type.
	LoadErrors map[model.KeyType]error
}

// LoadErr joins the per-key-type load failures, or returns nil.
func (r *Report) LoadErr() error {
	if r == nil || len(r.LoadErrors) == 0 {
		return nil
	}
	var errs []error
	for _, kt := range model.KeyTypes() {
		if err, ok := r.LoadErrors[kt]; ok {
			errs = append(errs, fmt.Errorf("%s: %w", kt, err))
		}
	}
	return errors.Join(errs...)
}

type Config struct {
	Handle     model.Handle
	Attributes truststore.Attributes
	// LongTermKey is attested by the signing key on first run.
	LongTermKey model.KeyMaterial
	// Passphrase seals the private signing seed at rest. Empty stores it raw.
	Passphrase string

	Rand    io.Reader
	Clock   func() time.Time
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

type Controller struct {
	cfg Config
	log *slog.Logger
}

func New(cfg Config) (*Controller, error) {
	if cfg.Attributes == nil {
		return nil, model.NewError(model.KindInvalidInput, "TRUST-BOOT-001", "attribute store is required")
	}
	if _, err := cfg.LongTermKey.Canonical(); err != nil {
		return nil, fmt.Errorf("bootstrap: long-term key: %w", err)
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Reader
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Controller{cfg: cfg, log: log.With("handle", cfg.Handle.String())}, nil
}

// Run executes the bootstrap state machine once. On success the caller owns
// the returned Local and must Close it. The Report is always non-nil.
func (c *Controller) Run(ctx context.Context) (*identity.Local, *Report, error) {
	trust := truststore.New(c.cfg.Attributes, c.cfg.Handle,
		truststore.WithLogger(c.log),
		truststore.WithMetrics(c.cfg.Metrics),
	)
	report := &Report{State: StateStart}

	var (
		g       errgroup.Group
		priv    ed25519.PrivateKey
		mu      sync.Mutex
		loadErr = map[model.KeyType]error{}
	)
	g.Go(func() error {
		var err error
		priv, err = c.setupKey(ctx, trust, report)
		return err
	})
	for _, kt := range model.KeyTypes() {
		g.Go(func() error {
			if _, err := trust.Load(ctx, kt); err != nil {
				mu.Lock()
				loadErr[kt] = err
				mu.Unlock()
			}
			return nil
		})
	}
	err := g.Wait()

	// A first run creates the rings, so a missing ring is expected then.
	for kt, lerr := range loadErr {
		if storage.IsNotFound(lerr) && trust.Loaded(kt) {
			delete(loadErr, kt)
			continue
		}
		c.log.WarnContext(ctx, "trust ring load failed", "key_type", kt.String(), "error", lerr)
	}
	if len(loadErr) > 0 {
		report.LoadErrors = loadErr
	}

	if err != nil {
		report.State = StateFailed
		if priv != nil {
			keys.Wipe(priv)
		}
		c.log.ErrorContext(ctx, "bootstrap failed", "error", err)
		return nil, report, err
	}

	local, err := identity.New(c.cfg.Handle, priv, c.cfg.LongTermKey, trust,
		identity.WithClock(c.cfg.Clock),
		identity.WithMetrics(c.cfg.Metrics),
	)
	if err != nil {
		report.State = StateFailed
		return nil, report, err
	}
	report.SigningPublicKey = local.SigningPublicKey()
	c.log.InfoContext(ctx, "bootstrap complete", "state", report.State.String(), "republished", report.Republished)
	return local, report, nil
}

func (c *Controller) setupKey(ctx context.Context, trust *truststore.Store, report *Report) (ed25519.PrivateKey, error) {
	owner := c.cfg.Handle.String()
	blob, err := c.cfg.Attributes.GetAttribute(ctx, owner, SlotSigningPrivate)
	switch {
	case err == nil:
		return c.verifyKey(ctx, owner, blob, report)
	case storage.IsNotFound(err):
		return c.firstRun(ctx, trust, report)
	default:
		return nil, fmt.Errorf("bootstrap: fetch signing key: %w", err)
	}
}

func (c *Controller) verifyKey(ctx context.Context, owner string, blob []byte, report *Report) (ed25519.PrivateKey, error) {
	// blob belongs to the host; only the private copy is wiped.
	seed := append([]byte(nil), blob...)
	defer keys.Wipe(seed)
	if c.cfg.Passphrase != "" {
		opened, err := keys.OpenSeed(c.cfg.Passphrase, seed)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: unseal signing key: %w", err)
		}
		defer keys.Wipe(opened)
		seed = opened
	}
	priv, err := keys.SigningKeyFromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: decode signing key: %w", err)
	}
	pub := keys.PublicOf(priv)

	published, err := c.cfg.Attributes.GetAttribute(ctx, owner, SlotSigningPublic)
	if err != nil && !storage.IsNotFound(err) {
		keys.Wipe(priv)
		return nil, fmt.Errorf("bootstrap: fetch published key: %w", err)
	}
	if err != nil || !bytes.Equal(published, pub) {
		if err := c.cfg.Attributes.SetAttribute(ctx, SlotSigningPublic, pub); err != nil {
			keys.Wipe(priv)
			return nil, fmt.Errorf("bootstrap: republish signing key: %w", err)
		}
		report.Republished = true
		c.log.WarnContext(ctx, "published signing key did not match; republished")
	}
	report.State = StateKeyVerified
	return priv, nil
}

func (c *Controller) firstRun(ctx context.Context, trust *truststore.Store, report *Report) (ed25519.PrivateKey, error) {
	pub, priv, err := keys.GenerateSigningKey(c.cfg.Rand)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: generate signing key: %w", err)
	}
	fail := func(err error) (ed25519.PrivateKey, error) {
		keys.Wipe(priv)
		return nil, err
	}

	stored := priv.Seed()
	if c.cfg.Passphrase != "" {
		sealed, err := keys.SealSeed(c.cfg.Passphrase, stored, c.cfg.Rand)
		keys.Wipe(stored)
		if err != nil {
			return fail(fmt.Errorf("bootstrap: seal signing key: %w", err))
		}
		stored = sealed
	}
	err = c.cfg.Attributes.SetAttribute(ctx, SlotSigningPrivate, append([]byte(nil), stored...))
	keys.Wipe(stored)
	if err != nil {
		return fail(fmt.Errorf("bootstrap: store signing key: %w", err))
	}
	if err := c.cfg.Attributes.SetAttribute(ctx, SlotSigningPublic, pub); err != nil {
		return fail(fmt.Errorf("bootstrap: publish signing key: %w", err))
	}

	env, err := keys.SignKey(c.cfg.LongTermKey, priv, c.cfg.Clock())
	if err != nil {
		return fail(err)
	}
	if err := c.cfg.Attributes.SetAttribute(ctx, SlotSignature, env); err != nil {
		return fail(fmt.Errorf("bootstrap: store self-signature: %w", err))
	}

	for _, kt := range model.KeyTypes() {
		if err := trust.Scrub(ctx, kt); err != nil {
			return fail(err)
		}
	}
	report.State = StateBootstrapped
	c.log.InfoContext(ctx, "generated new signing key")
	return priv, nil
}
