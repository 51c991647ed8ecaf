// Package metrics emits dispatch and backfill counters to CloudWatch.
// Emission is best-effort: a metrics failure is logged and never surfaces
// to the scheduling path.
package metrics

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"ordercast/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchRecorder publishes engine counters under the Ordercast
// namespace.
type CloudWatchRecorder struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchRecorder creates a recorder publishing to the standard
// namespace.
func NewCloudWatchRecorder(client CloudWatchClient, logger *slog.Logger) *CloudWatchRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchRecorder{
		client:    client,
		namespace: types.MetricNamespace,
		logger:    logger,
	}
}

// RecordDispatch emits the per-event counters with TenantID and EventType
// dimensions. Zero-valued counters are omitted to keep PutMetricData
// payloads small.
func (m *CloudWatchRecorder) RecordDispatch(ctx context.Context, tenantID string, eventType types.EventType, result types.DispatchResult) {
	dims := []cwtypes.Dimension{
		{Name: aws.String(types.DimTenantID), Value: aws.String(tenantID)},
		{Name: aws.String(types.DimEventType), Value: aws.String(string(eventType))},
	}

	data := appendCount(nil, types.MetricDispatchMatched, result.RulesMatched, dims)
	data = appendCount(data, types.MetricDispatchScheduled, result.NotificationsCreated, dims)
	data = appendCount(data, types.MetricDispatchSkipped, result.ChannelsSkipped, dims)
	data = appendCount(data, types.MetricDispatchErrors, result.Errors, dims)

	m.put(ctx, data)
}

// RecordBackfill emits the per-batch counters. Backfill batches span
// tenants, so these carry no dimensions.
func (m *CloudWatchRecorder) RecordBackfill(ctx context.Context, stats types.BackfillStats) {
	data := appendCount(nil, types.MetricBackfillProcessed, stats.ItemsProcessed, nil)
	data = appendCount(data, types.MetricBackfillScheduled, stats.NotificationsCreated, nil)
	data = appendCount(data, types.MetricBackfillSkipped, stats.ItemsSkipped, nil)
	data = appendCount(data, types.MetricBackfillJobsComplete, stats.JobsCompleted, nil)
	data = appendCount(data, types.MetricBackfillErrors, stats.Errors, nil)

	m.put(ctx, data)
}

// RecordWakeupFailure emits one failure counter when a wake-up publish to
// the delivery worker fails. Dimensioned by tenant and scheduling source.
func (m *CloudWatchRecorder) RecordWakeupFailure(ctx context.Context, tenantID, source string) {
	dims := []cwtypes.Dimension{
		{Name: aws.String(types.DimTenantID), Value: aws.String(tenantID)},
		{Name: aws.String(types.DimSource), Value: aws.String(source)},
	}
	m.put(ctx, appendCount(nil, types.MetricWakeupFailure, 1, dims))
}

func (m *CloudWatchRecorder) put(ctx context.Context, data []cwtypes.MetricDatum) {
	if len(data) == 0 {
		return
	}
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to publish metrics",
			"namespace", m.namespace,
			"datum_count", len(data),
			"error", err,
		)
	}
}

func appendCount(data []cwtypes.MetricDatum, name string, value int, dims []cwtypes.Dimension) []cwtypes.MetricDatum {
	if value == 0 {
		return data
	}
	return append(data, cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(float64(value)),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: dims,
	})
}
