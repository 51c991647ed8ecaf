package types

// Telemetry metric names for CloudWatch. All components MUST use these
// constants.
const (
	// Metric Names
	MetricDispatchMatched      = "DispatchRulesMatched"
	MetricDispatchScheduled    = "DispatchNotificationsScheduled"
	MetricDispatchSkipped      = "DispatchChannelsSkipped"
	MetricDispatchErrors       = "DispatchErrors"
	MetricBackfillProcessed    = "BackfillItemsProcessed"
	MetricBackfillScheduled    = "BackfillNotificationsScheduled"
	MetricBackfillSkipped      = "BackfillItemsSkipped"
	MetricBackfillJobsComplete = "BackfillJobsCompleted"
	MetricBackfillErrors       = "BackfillErrors"
	MetricWakeupFailure        = "WakeupPublishFailure"

	// Dimension Keys
	DimTenantID  = "TenantID"
	DimEventType = "EventType"
	DimSource    = "Source"

	// Metric Namespace
	MetricNamespace = "Ordercast"
)
