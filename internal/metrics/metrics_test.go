package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/forblgac/nijisanji-vtuber-recommend/internal/metrics"
)

func TestRecordReload(t *testing.T) {
	before := testutil.ToFloat64(metrics.ReloadsTotal.WithLabelValues("test", metrics.ResultSuccess))
	metrics.RecordReload("test", metrics.ResultSuccess, 10*time.Millisecond)
	after := testutil.ToFloat64(metrics.ReloadsTotal.WithLabelValues("test", metrics.ResultSuccess))

	assert.Equal(t, before+1, after)
}

func TestRecordSnapshot(t *testing.T) {
	metrics.RecordSnapshot(10, 4)

	assert.Equal(t, 10.0, testutil.ToFloat64(metrics.CatalogProfiles))
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.CatalogClusters))
}

func TestRecordRejectedIgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(metrics.RejectedProfilesTotal)
	metrics.RecordRejected(0)
	metrics.RecordRejected(2)

	assert.Equal(t, before+2, testutil.ToFloat64(metrics.RejectedProfilesTotal))
}
