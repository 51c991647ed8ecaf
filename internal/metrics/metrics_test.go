package metrics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"ordercast/internal/types"
)

type mockCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (m *mockCloudWatch) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.inputs = append(m.inputs, params)
	if m.err != nil {
		return nil, m.err
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func newTestRecorder(client *mockCloudWatch) *CloudWatchRecorder {
	return NewCloudWatchRecorder(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func metricNames(input *cloudwatch.PutMetricDataInput) []string {
	names := make([]string, 0, len(input.MetricData))
	for _, d := range input.MetricData {
		names = append(names, *d.MetricName)
	}
	return names
}

func TestRecordDispatchEmitsCounters(t *testing.T) {
	client := &mockCloudWatch{}
	rec := newTestRecorder(client)

	rec.RecordDispatch(context.Background(), "tenant_1", types.EventOrderPaid, types.DispatchResult{
		RulesMatched:         3,
		RulesClaimed:         2,
		NotificationsCreated: 4,
		ChannelsSkipped:      1,
	})

	if len(client.inputs) != 1 {
		t.Fatalf("PutMetricData called %d times", len(client.inputs))
	}
	input := client.inputs[0]
	if *input.Namespace != types.MetricNamespace {
		t.Errorf("namespace = %q", *input.Namespace)
	}

	names := metricNames(input)
	want := []string{
		types.MetricDispatchMatched,
		types.MetricDispatchScheduled,
		types.MetricDispatchSkipped,
	}
	if len(names) != len(want) {
		t.Fatalf("metric names = %v, want %v", names, want)
	}
	for i, n := range want {
		if names[i] != n {
			t.Errorf("metric[%d] = %q, want %q", i, names[i], n)
		}
	}

	matched := input.MetricData[0]
	if *matched.Value != 3 {
		t.Errorf("matched value = %v", *matched.Value)
	}
	if len(matched.Dimensions) != 2 {
		t.Fatalf("dimensions = %v", matched.Dimensions)
	}
	if *matched.Dimensions[0].Name != types.DimTenantID || *matched.Dimensions[0].Value != "tenant_1" {
		t.Errorf("tenant dimension = %v", matched.Dimensions[0])
	}
	if *matched.Dimensions[1].Value != string(types.EventOrderPaid) {
		t.Errorf("event dimension = %v", matched.Dimensions[1])
	}
}

func TestRecordDispatchAllZeroSkipsCall(t *testing.T) {
	client := &mockCloudWatch{}
	rec := newTestRecorder(client)

	rec.RecordDispatch(context.Background(), "tenant_1", types.EventOrderPaid, types.DispatchResult{})

	if len(client.inputs) != 0 {
		t.Errorf("expected no PutMetricData for all-zero result, got %d calls", len(client.inputs))
	}
}

func TestRecordBackfillCarriesNoDimensions(t *testing.T) {
	client := &mockCloudWatch{}
	rec := newTestRecorder(client)

	rec.RecordBackfill(context.Background(), types.BackfillStats{
		ItemsProcessed: 10,
		JobsCompleted:  1,
	})

	if len(client.inputs) != 1 {
		t.Fatalf("PutMetricData called %d times", len(client.inputs))
	}
	for _, d := range client.inputs[0].MetricData {
		if len(d.Dimensions) != 0 {
			t.Errorf("backfill metric %s has dimensions %v", *d.MetricName, d.Dimensions)
		}
	}
}

func TestRecordWakeupFailure(t *testing.T) {
	client := &mockCloudWatch{}
	rec := newTestRecorder(client)

	rec.RecordWakeupFailure(context.Background(), "tenant_1", types.SourceBackfill)

	if len(client.inputs) != 1 {
		t.Fatalf("PutMetricData called %d times", len(client.inputs))
	}
	data := client.inputs[0].MetricData
	if len(data) != 1 || *data[0].MetricName != types.MetricWakeupFailure {
		t.Fatalf("metric data = %v", data)
	}
	if *data[0].Value != 1 {
		t.Errorf("value = %v", *data[0].Value)
	}
	if len(data[0].Dimensions) != 2 {
		t.Fatalf("dimensions = %v", data[0].Dimensions)
	}
	if *data[0].Dimensions[1].Name != types.DimSource || *data[0].Dimensions[1].Value != types.SourceBackfill {
		t.Errorf("source dimension = %v", data[0].Dimensions[1])
	}
}

func TestRecordDispatchClientErrorSwallowed(t *testing.T) {
	client := &mockCloudWatch{err: errors.New("throttled")}
	rec := newTestRecorder(client)

	// Must not panic; the failure is logged only.
	rec.RecordDispatch(context.Background(), "tenant_1", types.EventOrderPaid, types.DispatchResult{RulesMatched: 1})
}
