package telemetry

// Config holds OpenTelemetry initialization parameters.
type Config struct {
	// Enabled controls whether tracing is active at all.
	Enabled bool

	// Endpoint is the OTLP gRPC collector endpoint (host:port).
	Endpoint string

	// Insecure disables TLS on the collector connection.
	Insecure bool

	// SampleRate is the trace sampling rate (0.0 to 1.0).
	SampleRate float64

	// ServiceName identifies this service in trace data.
	ServiceName string

	// ServiceVersion is reported alongside the service name.
	ServiceVersion string
}
