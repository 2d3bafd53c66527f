package metrics

import "time"

// CaptureMetrics provides observability for the capture-session pipeline.
//
// This interface is optional - pass nil to disable metrics collection with
// zero overhead.
type CaptureMetrics interface {
	// RecordSessionOpened counts a newly created open session.
	RecordSessionOpened()

	// RecordSessionClosed counts a session leaving the open state.
	RecordSessionClosed()

	// RecordSessionClaimed counts a closed session promoted to processing
	// by the claim dispatcher.
	RecordSessionClaimed()

	// RecordImageAppended counts a stored screenshot.
	RecordImageAppended()

	// RecordNotificationDispatch records one drain cycle that claimed at
	// least one row.
	RecordNotificationDispatch(claimed, sent, failed int)

	// RecordDispatchCycle records the duration and outcome of one
	// dispatcher cycle.
	//
	// Parameters:
	//   - dispatcher: "sessions" or "notifications"
	//   - duration: wall time of the cycle
	//   - failed: whether the cycle ended in an error
	RecordDispatchCycle(dispatcher string, duration time.Duration, failed bool)
}
