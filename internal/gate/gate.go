// Package gate implements the PIN lock in front of the lounge operations.
package gate

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goodtune/lounge/internal/apperr"
	"github.com/goodtune/lounge/internal/storage"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultTokenExpiration is how long an unlock stays valid.
	DefaultTokenExpiration = 8 * time.Hour

	// DefaultMaxAttempts is the number of wrong PINs allowed before lockout.
	DefaultMaxAttempts = 3

	// DefaultLockout is how long the gate refuses unlocks after too many failures.
	DefaultLockout = 30 * time.Second

	// BcryptCost is the cost factor for bcrypt PIN hashing.
	BcryptCost = 12

	// PINLength is the exact number of digits in a PIN.
	PINLength = 4
)

var (
	// ErrInvalidPIN is returned when an unlock attempt uses the wrong PIN.
	ErrInvalidPIN = errors.New("invalid PIN")

	// ErrLockedOut is returned while the gate refuses unlock attempts.
	ErrLockedOut = errors.New("too many failed attempts")

	// ErrInvalidToken is returned when an unlock token is invalid or expired.
	ErrInvalidToken = errors.New("invalid token")

	// ErrNoPIN is returned when unlocking a gate that has no PIN.
	ErrNoPIN = errors.New("no PIN set")
)

// Claims are the JWT claims of an unlock token. Epoch ties a token to the
// gate generation it was issued in, so Lock revokes every earlier token.
type Claims struct {
	Epoch int64 `json:"epoch"`
	jwt.RegisteredClaims
}

// Config tunes a Gate. Zero values select the defaults.
type Config struct {
	Secret      string
	TTL         time.Duration
	MaxAttempts int
	Lockout     time.Duration
	Cost        int
	Now         func() time.Time
}

// Status describes the gate for display.
type Status struct {
	PINSet            bool      `json:"pinSet"`
	LockedOut         bool      `json:"lockedOut"`
	LockedUntil       time.Time `json:"lockedUntil,omitzero"`
	RemainingAttempts int       `json:"remainingAttempts"`
}

// Gate guards access with a 4-digit PIN and issues expiring unlock tokens.
type Gate struct {
	store       storage.AccessStore
	secret      []byte
	ttl         time.Duration
	maxAttempts int
	lockout     time.Duration
	cost        int
	now         func() time.Time
	logger      zerolog.Logger

	attemptMu sync.Mutex

	mu          sync.Mutex
	hash        string
	failures    int
	lockedUntil time.Time
	epoch       int64
}

// New creates a gate backed by store. Call Init before use.
func New(store storage.AccessStore, cfg Config, logger zerolog.Logger) *Gate {
	g := &Gate{
		store:       store,
		secret:      []byte(cfg.Secret),
		ttl:         cfg.TTL,
		maxAttempts: cfg.MaxAttempts,
		lockout:     cfg.Lockout,
		cost:        cfg.Cost,
		now:         cfg.Now,
		logger:      logger.With().Str("component", "gate").Logger(),
	}
	if g.ttl <= 0 {
		g.ttl = DefaultTokenExpiration
	}
	if g.maxAttempts <= 0 {
		g.maxAttempts = DefaultMaxAttempts
	}
	if g.lockout <= 0 {
		g.lockout = DefaultLockout
	}
	if g.cost == 0 {
		g.cost = BcryptCost
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g
}

// Init loads the stored PIN and failed attempts. Without a configured
// secret a random one is generated, so tokens do not survive a restart.
func (g *Gate) Init(ctx context.Context) error {
	pin, err := g.store.GetPIN(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return apperr.Wrap(apperr.Storage, "gate.init", err)
	}
	attempts, err := g.store.GetAttempts(ctx)
	if err != nil {
		return apperr.Wrap(apperr.Storage, "gate.init", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.secret) == 0 {
		g.secret = make([]byte, 32)
		if _, err := rand.Read(g.secret); err != nil {
			return fmt.Errorf("generate token secret: %w", err)
		}
		g.logger.Debug().Msg("No token secret configured, generated an ephemeral one")
	}

	g.hash = ""
	if pin != nil {
		g.hash = pin.Hash
	}
	g.failures = attempts.Failures
	g.lockedUntil = attempts.LockedUntil
	g.epoch = g.now().UnixNano()

	g.logger.Info().Bool("pin_set", g.hash != "").Msg("Access gate initialized")
	return nil
}

// HasPIN reports whether a PIN is set. A gate without a PIN is open.
func (g *Gate) HasPIN() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.hash != ""
}

// ValidatePIN checks that pin is exactly four digits.
func ValidatePIN(pin string) error {
	if len(pin) != PINLength {
		return apperr.New(apperr.Validation, "gate.pin", "PIN must be exactly %d digits", PINLength)
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return apperr.New(apperr.Validation, "gate.pin", "PIN must be exactly %d digits", PINLength)
		}
	}
	return nil
}

// SetPIN stores a new PIN and revokes every outstanding token.
func (g *Gate) SetPIN(ctx context.Context, pin string) error {
	if err := ValidatePIN(pin); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), g.cost)
	if err != nil {
		return fmt.Errorf("hash PIN: %w", err)
	}

	g.attemptMu.Lock()
	defer g.attemptMu.Unlock()
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.store.SetPIN(ctx, storage.AccessPIN{Hash: string(hash), UpdatedAt: g.now()}); err != nil {
		return apperr.Wrap(apperr.Storage, "gate.set_pin", err)
	}
	g.hash = string(hash)
	g.resetLocked(ctx)

	g.logger.Info().Msg("PIN set")
	return nil
}

// ClearPIN removes the PIN, opening the gate.
func (g *Gate) ClearPIN(ctx context.Context) error {
	g.attemptMu.Lock()
	defer g.attemptMu.Unlock()
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.store.ClearPIN(ctx); err != nil {
		return apperr.Wrap(apperr.Storage, "gate.clear_pin", err)
	}
	g.hash = ""
	g.resetLocked(ctx)

	g.logger.Info().Msg("PIN cleared")
	return nil
}

// Unlock checks pin and returns a signed token with its expiry. After
// MaxAttempts consecutive failures the gate refuses attempts for the
// lockout period. Failed attempts are kept in the store, so the lockout
// holds for every process sharing it.
func (g *Gate) Unlock(ctx context.Context, pin string) (string, time.Time, error) {
	// Attempts run one at a time. The hash comparison happens outside mu so
	// Verify and Status never wait on it.
	g.attemptMu.Lock()
	defer g.attemptMu.Unlock()

	g.mu.Lock()
	hash := g.hash
	g.mu.Unlock()
	if hash == "" {
		return "", time.Time{}, ErrNoPIN
	}

	attempts, err := g.store.GetAttempts(ctx)
	if err != nil {
		return "", time.Time{}, apperr.Wrap(apperr.Storage, "gate.unlock", err)
	}
	g.mirrorAttempts(attempts)

	now := g.now()
	if now.Before(attempts.LockedUntil) {
		return "", time.Time{}, ErrLockedOut
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)); err != nil {
		attempts.Failures++
		lockedOut := attempts.Failures >= g.maxAttempts
		if lockedOut {
			attempts = storage.AccessAttempts{LockedUntil: now.Add(g.lockout)}
		}
		g.recordAttempts(ctx, attempts)

		if lockedOut {
			g.logger.Warn().Time("locked_until", attempts.LockedUntil).Msg("Too many failed PIN attempts, locking out")
			return "", time.Time{}, ErrLockedOut
		}
		g.logger.Debug().Int("remaining", g.maxAttempts-attempts.Failures).Msg("Wrong PIN")
		return "", time.Time{}, ErrInvalidPIN
	}
	if attempts.Failures > 0 || !attempts.LockedUntil.IsZero() {
		g.recordAttempts(ctx, storage.AccessAttempts{})
	}

	g.mu.Lock()
	epoch := g.epoch
	g.mu.Unlock()

	expires := now.Add(g.ttl)
	claims := &Claims{
		Epoch: epoch,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "lounge",
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	g.logger.Info().Time("expires_at", expires).Msg("Gate unlocked")
	return token, expires, nil
}

// recordAttempts persists attempts and mirrors them for Status. A store
// failure is only logged.
func (g *Gate) recordAttempts(ctx context.Context, attempts storage.AccessAttempts) {
	if err := g.store.SetAttempts(ctx, attempts); err != nil {
		g.logger.Error().Err(err).Msg("Failed to persist unlock attempts")
	}
	g.mirrorAttempts(attempts)
}

func (g *Gate) mirrorAttempts(attempts storage.AccessAttempts) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures = attempts.Failures
	g.lockedUntil = attempts.LockedUntil
}

// Verify checks an unlock token. Every token passes while no PIN is set.
func (g *Gate) Verify(tokenString string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.hash == "" {
		return nil
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return g.secret, nil
	}, jwt.WithTimeFunc(g.now), jwt.WithExpirationRequired())
	if err != nil {
		return ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Epoch != g.epoch {
		return ErrInvalidToken
	}
	return nil
}

// Lock revokes every outstanding token.
func (g *Gate) Lock() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.epoch++
	g.logger.Info().Msg("Gate locked")
}

// Status reports the gate state.
func (g *Gate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := Status{
		PINSet:            g.hash != "",
		RemainingAttempts: g.maxAttempts - g.failures,
	}
	if g.now().Before(g.lockedUntil) {
		st.LockedOut = true
		st.LockedUntil = g.lockedUntil
		st.RemainingAttempts = 0
	}
	return st
}

func (g *Gate) resetLocked(ctx context.Context) {
	if err := g.store.SetAttempts(ctx, storage.AccessAttempts{}); err != nil {
		g.logger.Error().Err(err).Msg("Failed to reset unlock attempts")
	}
	g.failures = 0
	g.lockedUntil = time.Time{}
	g.epoch++
}
