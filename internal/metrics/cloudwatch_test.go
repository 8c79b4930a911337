package metrics

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
)

type fakeCloudWatchPutter struct {
	calls int
	last  *cloudwatch.PutMetricDataInput
}

func (f *fakeCloudWatchPutter) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.calls++
	f.last = params
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestEmitFeedSnapshotNoopBeforeInit(t *testing.T) {
	cwState.Store(&cloudWatchState{namespace: "bbofeed"})

	EmitFeedSnapshot("binance", "spot", 1, 2, 3, 4, 5)
}

func TestEmitFeedSnapshotPublishesAfterInit(t *testing.T) {
	fake := &fakeCloudWatchPutter{}
	cwState.Store(&cloudWatchState{client: fake, namespace: "bbofeed_test"})
	defer cwState.Store(&cloudWatchState{namespace: "bbofeed"})

	EmitFeedSnapshot("binance", "spot", 10, 8, 1, 1, 2)

	if fake.calls != 1 {
		t.Fatalf("PutMetricData calls = %d, want 1", fake.calls)
	}
	if got := aws.ToString(fake.last.Namespace); got != "bbofeed_test" {
		t.Fatalf("namespace = %q, want bbofeed_test", got)
	}
	if len(fake.last.MetricData) != 5 {
		t.Fatalf("metric datum count = %d, want 5", len(fake.last.MetricData))
	}
}

