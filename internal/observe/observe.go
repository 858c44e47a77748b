// observe.go - Build diagnostics.
//
// The transaction builder reports progress to an injected Observer instead of a global logger.
// Logger writes zerolog events, Metrics feeds prometheus collectors, Multi fans out to several.

package observe

import (
	"time"

	"github.com/rs/zerolog"
)

// Observer receives build and proving events. Implementations must be safe for concurrent use.
type Observer interface {
	BuildStarted(outputs int, withdraw bool)
	InputsSelected(tree, inputs int)
	BuildFinished(took time.Duration, err error)
	Proved(kind string, took time.Duration, err error)
}

// Proof kinds reported to Proved.
const (
	KindReal  = "real"
	KindDummy = "dummy"
)

// Nop discards every event.
type Nop struct{}

func (Nop) BuildStarted(int, bool) {}
func (Nop) InputsSelected(int, int) {}
func (Nop) BuildFinished(time.Duration, error) {}
func (Nop) Proved(string, time.Duration, error) {}

// Logger writes events as structured log lines.
type Logger struct {
	log zerolog.Logger
}

func NewLogger(log zerolog.Logger) *Logger {
	return &Logger{log: log.With().Str("component", "txbuilder").Logger()}
}

func (l *Logger) BuildStarted(outputs int, withdraw bool) {
	l.log.Debug().Int("outputs", outputs).Bool("withdraw", withdraw).Msg("build started")
}

func (l *Logger) InputsSelected(tree, inputs int) {
	l.log.Debug().Int("tree", tree).Int("inputs", inputs).Msg("inputs selected")
}

func (l *Logger) BuildFinished(took time.Duration, err error) {
	if err != nil {
		l.log.Warn().Err(err).Dur("took", took).Msg("build failed")
		return
	}
	l.log.Info().Dur("took", took).Msg("build finished")
}

func (l *Logger) Proved(kind string, took time.Duration, err error) {
	if err != nil {
		l.log.Error().Err(err).Str("kind", kind).Dur("took", took).Msg("prove failed")
		return
	}
	l.log.Info().Str("kind", kind).Dur("took", took).Msg("proved")
}

// Multi fans events out in order.
type Multi []Observer

func (m Multi) BuildStarted(outputs int, withdraw bool) {
	for _, o := range m {
		o.BuildStarted(outputs, withdraw)
	}
}

func (m Multi) InputsSelected(tree, inputs int) {
	for _, o := range m {
		o.InputsSelected(tree, inputs)
	}
}

func (m Multi) BuildFinished(took time.Duration, err error) {
	for _, o := range m {
		o.BuildFinished(took, err)
	}
}

func (m Multi) Proved(kind string, took time.Duration, err error) {
	for _, o := range m {
		o.Proved(kind, took, err)
	}
}
