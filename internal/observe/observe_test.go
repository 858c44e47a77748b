package observe

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestMetricsCountsBuildsAndProofs(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg, func(error) string { return "no_balance" })
	require.NoError(t, err)

	m.InputsSelected(0, 2)
	m.BuildFinished(time.Millisecond, nil)
	m.BuildFinished(time.Millisecond, errors.New("boom"))
	m.Proved(KindDummy, time.Millisecond, nil)

	require.Equal(t, 1.0, testutil.ToFloat64(m.builds.WithLabelValues("ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.builds.WithLabelValues("no_balance")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.proofs.WithLabelValues(KindDummy, "ok")))

	_, err = NewMetrics(reg, nil)
	require.Error(t, err)
}

func TestLoggerAndMulti(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))
	o := Multi{Nop{}, l}

	o.BuildStarted(2, true)
	o.InputsSelected(1, 3)
	o.BuildFinished(time.Second, errors.New("no balance"))
	o.Proved(KindReal, time.Second, nil)

	out := buf.String()
	require.Contains(t, out, `"message":"build started"`)
	require.Contains(t, out, `"tree":1`)
	require.Contains(t, out, `"error":"no balance"`)
	require.Contains(t, out, `"kind":"real"`)
	require.Contains(t, out, `"component":"txbuilder"`)
}
