// internal/metrics/cloudwatch.go
// Optional CloudWatch mirror for the §4.4 counters (SPEC_FULL §11:
// aws-sdk-go-v2 cloudwatch). Adapted from the teacher's
// cloudWatchState/InitCloudWatch/publishMetricDatum shape: an
// atomic.Pointer-held client so publishing is a no-op until
// InitCloudWatch succeeds, generalized from the teacher's ad hoc
// per-call LogMetric plumbing to a single EmitFeedSnapshot entry point
// called by the supervisor once per feed tick.
package metrics

import (
	"context"
	_ "embed"
	"os"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"bbofeed/internal/logger"
)

//go:embed dashboard.json
var dashboardTemplate string

// cloudWatchPutter is the one cloudwatch.Client method this package
// calls; narrowing to an interface lets tests inject a fake instead of
// exercising real AWS network calls.
type cloudWatchPutter interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

type cloudWatchState struct {
	client    cloudWatchPutter
	namespace string
	region    string
}

var cwState atomic.Pointer[cloudWatchState]

func init() {
	cwState.Store(&cloudWatchState{namespace: "bbofeed"})
}

// InitCloudWatch builds the CloudWatch client for region/namespace.
// On failure it logs a warning and leaves publishing disabled — the
// engine must run with or without AWS credentials present.
func InitCloudWatch(region, namespace string) {
	log := logger.Global().WithComponent("cloudwatch")

	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	ctx := context.Background()
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.WithError(err).Warn("failed to load AWS configuration; CloudWatch metrics disabled")
		return
	}

	state := cloudWatchState{client: cloudwatch.NewFromConfig(cfg)}
	if namespace != "" {
		state.namespace = namespace
	} else {
		state.namespace = "bbofeed"
	}
	state.region = cfg.Region

	cwState.Store(&state)
	log.WithFields(logger.Fields{"region": state.region, "namespace": state.namespace}).Info("initialized CloudWatch client")
}

// EmitFeedSnapshot mirrors one feed's §4.4 counters to CloudWatch as a
// single PutMetricData call. A no-op until InitCloudWatch has run.
func EmitFeedSnapshot(exchange, instrumentType string, framesIn, framesDecoded, invariantRejected, decodeErr, reconnects int64) {
	state := cwState.Load()
	if state == nil || state.client == nil {
		return
	}

	dims := []cwtypes.Dimension{
		{Name: aws.String("exchange"), Value: aws.String(exchange)},
		{Name: aws.String("instrument_type"), Value: aws.String(instrumentType)},
	}
	metric := func(name string, v int64) cwtypes.MetricDatum {
		return cwtypes.MetricDatum{
			MetricName: aws.String(name),
			Dimensions: dims,
			Unit:       cwtypes.StandardUnitCount,
			Value:      aws.Float64(float64(v)),
		}
	}

	data := []cwtypes.MetricDatum{
		metric("frames_in", framesIn),
		metric("frames_decoded", framesDecoded),
		metric("frames_invariant_rejected", invariantRejected),
		metric("frames_decode_err", decodeErr),
		metric("reconnects", reconnects),
	}

	ctx := context.Background()
	if _, err := state.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(state.namespace),
		MetricData: data,
	}); err != nil {
		logger.Global().WithComponent("cloudwatch").WithError(err).Warn("failed to publish CloudWatch metrics")
	}
}

// DashboardTemplate exposes the embedded dashboard body for callers
// that want to PutDashboard themselves (kept out of this package's own
// startup path since dashboard naming/region substitution is a
// deployment concern, not an engine one).
func DashboardTemplate() string { return dashboardTemplate }
