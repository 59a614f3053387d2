package siteinit

import (
	"errors"
	"time"

	"github.com/joeycumines/logiface"
)

const (
	// DefaultProgramCacheSize is the default number of compiled scripts
	// retained by the [Evaluator].
	DefaultProgramCacheSize = 128

	// DefaultDiagnosticInterval is the default window within which repeated
	// invalid variable name diagnostics are demoted to debug level.
	DefaultDiagnosticInterval = time.Minute
)

// instanceOptions holds configuration options for Instance creation.
type instanceOptions struct {
	logger             *logiface.Logger[logiface.Event]
	reader             TextReader
	evalTimeout        time.Duration
	programCacheSize   int
	diagnosticInterval time.Duration
}

// Option configures an [Instance].
type Option interface {
	applyInstance(*instanceOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyInstanceFunc func(*instanceOptions) error
}

func (o *optionImpl) applyInstance(opts *instanceOptions) error {
	return o.applyInstanceFunc(opts)
}

// WithLogger sets the logger used for all diagnostics. A nil logger (the
// default) disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *instanceOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithTextReader replaces the capability used to read site scripts.
// Defaults to [FSReader].
func WithTextReader(reader TextReader) Option {
	return &optionImpl{func(opts *instanceOptions) error {
		if reader == nil {
			return errors.New("siteinit: nil text reader")
		}
		opts.reader = reader
		return nil
	}}
}

// WithEvalTimeout interrupts any single script evaluation that runs for
// longer than d. Zero (the default) disables the timeout.
func WithEvalTimeout(d time.Duration) Option {
	return &optionImpl{func(opts *instanceOptions) error {
		if d < 0 {
			return errors.New("siteinit: negative eval timeout")
		}
		opts.evalTimeout = d
		return nil
	}}
}

// WithProgramCacheSize sets the number of compiled scripts to retain.
func WithProgramCacheSize(size int) Option {
	return &optionImpl{func(opts *instanceOptions) error {
		if size <= 0 {
			return errors.New("siteinit: program cache size must be positive")
		}
		opts.programCacheSize = size
		return nil
	}}
}

// WithDiagnosticInterval limits how often the same invalid variable name,
// from the same provider, is reported as a warning. Repeats within the
// interval are logged at debug level. Zero reports every occurrence as a
// warning.
func WithDiagnosticInterval(d time.Duration) Option {
	return &optionImpl{func(opts *instanceOptions) error {
		if d < 0 {
			return errors.New("siteinit: negative diagnostic interval")
		}
		opts.diagnosticInterval = d
		return nil
	}}
}

// resolveOptions applies Option instances to instanceOptions.
func resolveOptions(opts []Option) (*instanceOptions, error) {
	cfg := &instanceOptions{
		reader:             FSReader{},
		programCacheSize:   DefaultProgramCacheSize,
		diagnosticInterval: DefaultDiagnosticInterval,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyInstance(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
