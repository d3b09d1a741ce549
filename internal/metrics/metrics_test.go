// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewPrometheus(reg)

	sink.TrackMetric("buildtimeus-zlib:x64-windows", 1500)
	sink.TrackMetric("buildtimeus-zlib:x64-windows", 2500)
	sink.TrackProperty("error", "build failed")

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]bool, len(families))
	for _, mf := range families {
		byName[mf.GetName()] = true
	}
	assert.True(t, byName["stevedore_buildtimeus_zlib_x64_windows"])
	assert.True(t, byName["stevedore_property_info"])
}

func TestNoop(t *testing.T) {
	var sink Sink = Noop{}
	sink.TrackMetric("x", 1)
	sink.TrackProperty("a", "b")
}
