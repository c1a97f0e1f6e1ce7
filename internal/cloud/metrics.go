package cloud

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metrics publishes synchronization counters to CloudWatch. Like the outcome
// publisher it is optional: a nil receiver or empty namespace disables it.
// Emission failures are logged, never propagated; losing a counter must not
// affect order handling.
type Metrics struct {
	CW        CloudWatchAPI
	Namespace string
}

// NewMetrics returns a Metrics emitter for the namespace.
func NewMetrics(cw CloudWatchAPI, namespace string) *Metrics {
	return &Metrics{CW: cw, Namespace: namespace}
}

// RecordSync counts one sync attempt outcome.
func (m *Metrics) RecordSync(ctx context.Context, success bool) {
	name := "SyncFailure"
	if success {
		name = "SyncSuccess"
	}
	m.put(ctx, name, 1)
}

// RecordReconcile counts the results of one reconciliation sweep.
func (m *Metrics) RecordReconcile(ctx context.Context, successful, failed int) {
	m.put(ctx, "ReconcileSuccessful", float64(successful))
	m.put(ctx, "ReconcileFailed", float64(failed))
}

func (m *Metrics) put(ctx context.Context, name string, value float64) {
	if m == nil || m.CW == nil || m.Namespace == "" {
		return
	}
	now := time.Now().UTC()
	_, err := m.CW.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: &m.Namespace,
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: &name,
				Value:      &value,
				Unit:       cwtypes.StandardUnitCount,
				Timestamp:  &now,
			},
		},
	})
	if err != nil {
		log.Printf("[cloud] put metric %s: %v", name, err)
	}
}
