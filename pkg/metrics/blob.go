package metrics

import "time"

// BlobMetrics provides observability for blob store operations.
//
// This interface is optional - pass nil to disable metrics collection with
// zero overhead.
type BlobMetrics interface {
	// RecordOperation records a completed blob store call.
	//
	// Parameters:
	//   - operation: "put", "get" or "exists"
	//   - duration: wall time of the call
	//   - failed: whether the call returned an error (a missing object on
	//     get/exists is not a failure)
	RecordOperation(operation string, duration time.Duration, failed bool)

	// RecordBytes records payload bytes moved by an operation.
	//
	// Parameters:
	//   - operation: "put" or "get"
	//   - bytes: payload size
	RecordBytes(operation string, bytes int64)
}
