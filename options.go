package waitlist

import (
	"errors"
	"fmt"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// waitlistOptions holds configuration options for Waitlist creation.
type waitlistOptions struct {
	logger      *logiface.Logger[logiface.Event]
	misuseRates map[time.Duration]int
	limiter     *catrate.Limiter
	capacity    int
	maxWaiters  int
	ratesSet    bool
}

// defaultMisuseRates applies per operation (category), if a logger is
// configured without WithMisuseLogRates.
var defaultMisuseRates = map[time.Duration]int{
	time.Second: 1,
	time.Minute: 10,
}

// Option configures a Waitlist instance.
type Option interface {
	applyOption(*waitlistOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyOptionFunc func(*waitlistOptions) error
}

func (o *optionImpl) applyOption(opts *waitlistOptions) error {
	return o.applyOptionFunc(opts)
}

// WithCapacity sets the initial capacity hint, rounded up to a power of two,
// and capped at 65536. Storage is allocated lazily, on first Register, and
// doubles as needed.
func WithCapacity(n int) Option {
	return &optionImpl{func(opts *waitlistOptions) error {
		if n < 0 {
			return fmt.Errorf(`waitlist: invalid capacity: %d`, n)
		}
		opts.capacity = n
		return nil
	}}
}

// WithMaxWaiters limits the number of occupied slots, i.e. registered
// entries plus notified entries not yet acknowledged. Register will fail
// with ErrCapacityExceeded, once reached. Zero (the default) disables the
// limit.
func WithMaxWaiters(n int) Option {
	return &optionImpl{func(opts *waitlistOptions) error {
		if n < 0 {
			return fmt.Errorf(`waitlist: invalid max waiters: %d`, n)
		}
		opts.maxWaiters = n
		return nil
	}}
}

// WithLogger configures structured logging. A nil logger (the default)
// disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *waitlistOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMisuseLogRates configures rate limiting of log events that report
// misuse, e.g. stale keys, per operation. See catrate.NewLimiter for the
// rules that rates must follow. A nil or empty map disables rate limiting.
func WithMisuseLogRates(rates map[time.Duration]int) Option {
	return &optionImpl{func(opts *waitlistOptions) error {
		opts.misuseRates = rates
		opts.ratesSet = true
		return nil
	}}
}

// resolveOptions applies Option instances to waitlistOptions.
func resolveOptions(opts []Option) (*waitlistOptions, error) {
	cfg := &waitlistOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyOption(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.maxWaiters > 0 && cfg.capacity > cfg.maxWaiters {
		cfg.capacity = cfg.maxWaiters
	}

	rates := cfg.misuseRates
	if !cfg.ratesSet && cfg.logger != nil {
		rates = defaultMisuseRates
	}
	if len(rates) != 0 {
		limiter, err := newLimiter(rates)
		if err != nil {
			return nil, err
		}
		cfg.limiter = limiter
	}

	return cfg, nil
}

// newLimiter converts the panic catrate.NewLimiter raises on invalid rates
// into an error.
func newLimiter(rates map[time.Duration]int) (limiter *catrate.Limiter, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf(`waitlist: misuse log rates: %w`, e)
			} else {
				err = errors.New(`waitlist: misuse log rates: invalid`)
			}
		}
	}()
	return catrate.NewLimiter(rates), nil
}
