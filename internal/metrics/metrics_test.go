package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterOnceAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)
	Register(reg)

	before := testutil.ToFloat64(AuthOps.WithLabelValues("login", "ok"))
	AuthOps.WithLabelValues("login", Result(nil)).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(AuthOps.WithLabelValues("login", "ok")))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestResult(t *testing.T) {
	assert.Equal(t, "ok", Result(nil))
	assert.Equal(t, "error", Result(errors.New("x")))
}
