package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestProgressFor_MonotonicHappyPath verifies the happy-path sequence is
// monotonically non-decreasing and every canonical status has a defined value.
func TestProgressFor_MonotonicHappyPath(t *testing.T) {
	happyPath := []TrackingStatus{
		StatusOrderReceived,
		StatusOrderConfirmed,
		StatusPickedUp,
		StatusInTransit,
		StatusOutForDelivery,
		StatusDelivered,
	}

	last := 0
	for _, status := range happyPath {
		pct := ProgressFor(status, last)
		assert.GreaterOrEqual(t, pct, last, "progress dropped at %s", status)
		last = pct
	}
	assert.Equal(t, 100, last)

	for _, status := range AllStatuses {
		pct := ProgressFor(status, 50)
		assert.GreaterOrEqual(t, pct, 0, "progress undefined for %s", status)
		assert.LessOrEqual(t, pct, 100, "progress out of range for %s", status)
	}
}

// TestProgressFor_ExceptionRetainsLastMilestone verifies exception states keep
// the last milestone percentage instead of resetting.
func TestProgressFor_ExceptionRetainsLastMilestone(t *testing.T) {
	assert.Equal(t, 50, ProgressFor(StatusDelayed, 50))
	assert.Equal(t, 75, ProgressFor(StatusException, 75))
	assert.Equal(t, 75, ProgressFor(StatusDeliveryAttempted, 75))
	assert.Equal(t, 0, ProgressFor(StatusOnHold, 0))
}

// TestProgressFor_TerminalFailuresReportZero verifies terminal failures
// always report 0 regardless of prior progress.
func TestProgressFor_TerminalFailuresReportZero(t *testing.T) {
	for _, status := range []TrackingStatus{StatusDamaged, StatusLost, StatusCancelled, StatusReturnedToSender} {
		assert.Zero(t, ProgressFor(status, 75), "expected 0 for %s", status)
	}
}

func TestShouldNotifyCustomer(t *testing.T) {
	// Notifiable status, customer-visible event.
	assert.True(t, ShouldNotifyCustomer(StatusDelivered, true))
	assert.True(t, ShouldNotifyCustomer(StatusDelayed, true))

	// Internal event never notifies, even on a notifiable status.
	assert.False(t, ShouldNotifyCustomer(StatusDelivered, false))

	// Diagnostic statuses never notify.
	assert.False(t, ShouldNotifyCustomer(StatusOrderReceived, true))
	assert.False(t, ShouldNotifyCustomer(StatusOnHold, true))
}

func TestTrackingEvent_DedupeKey(t *testing.T) {
	when := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	a := TrackingEvent{TrackingNumber: "TN-1", EventTime: when, Description: "Paket diterima"}
	b := TrackingEvent{TrackingNumber: "TN-1", EventTime: when, Description: "Paket diterima", Sequence: 9}
	c := TrackingEvent{TrackingNumber: "TN-1", EventTime: when, Description: "Different"}

	assert.Equal(t, a.DedupeKey(), b.DedupeKey())
	assert.NotEqual(t, a.DedupeKey(), c.DedupeKey())
}
