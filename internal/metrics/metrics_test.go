package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiningOutcomes(t *testing.T) {
	before := testutil.ToFloat64(MiningOutcomes.WithLabelValues("facts"))
	MiningOutcomes.WithLabelValues("facts").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(MiningOutcomes.WithLabelValues("facts")))
}

func TestObserveGeneration(t *testing.T) {
	ObserveGeneration("ok", time.Now().Add(-time.Second))
	assert.Equal(t, 1, testutil.CollectAndCount(GenerationDuration))
}
