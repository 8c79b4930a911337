package metrics

import "testing"

func TestForFeedCountersDoNotPanic(t *testing.T) {
	c := ForFeed("binance", "spot")
	c.IncFramesIn()
	c.IncFramesDecoded()
	c.IncInvariantRejected()
	c.IncDecodeErr()
	c.IncReconnects()
	c.SetLastFrameTsNs(123)
}

func TestReportWeightDoesNotPanic(t *testing.T) {
	ReportWeight("binance", "exchange_info", 42)
}

func TestDashboardTemplateEmbedded(t *testing.T) {
	if DashboardTemplate() == "" {
		t.Fatalf("expected non-empty embedded dashboard template")
	}
}

func TestCountersSnapshotReflectsIncrements(t *testing.T) {
	c := ForFeed("snapshot_test_venue", "spot")
	c.IncFramesIn()
	c.IncFramesIn()
	c.IncFramesDecoded()
	c.IncInvariantRejected()
	c.IncDecodeErr()
	c.IncReconnects()

	in, decoded, invariantRejected, decodeErr, reconn := c.Snapshot()
	if in != 2 {
		t.Fatalf("in = %d, want 2", in)
	}
	if decoded != 1 || invariantRejected != 1 || decodeErr != 1 || reconn != 1 {
		t.Fatalf("snapshot = (%d,%d,%d,%d), want all 1", decoded, invariantRejected, decodeErr, reconn)
	}
}

func TestCountersSnapshotUnknownFeedIsZero(t *testing.T) {
	c := ForFeed("snapshot_test_venue_unused", "perp")
	in, decoded, invariantRejected, decodeErr, reconn := c.Snapshot()
	if in != 0 || decoded != 0 || invariantRejected != 0 || decodeErr != 0 || reconn != 0 {
		t.Fatalf("snapshot = (%d,%d,%d,%d,%d), want all 0 for a feed with no increments yet", in, decoded, invariantRejected, decodeErr, reconn)
	}
}
