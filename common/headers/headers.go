// Package headers is the registry of metadata keys shared by every interceptor that reads or writes
// correlation data on the wire. gRPC lower-cases metadata keys, so all keys are lower case.
package headers

const (
	// Authorization carries the caller credential as "Bearer <token>".
	Authorization = "authorization"

	// XTraceID correlates every log line of a call across client and server.
	XTraceID = "x-trace-id"

	// XRequestID identifies a single HTTP request entering through the gateway.
	XRequestID = "x-request-id"

	// XClientID tags the calling service so servers can attribute traffic.
	XClientID = "x-client-id"
)

// BearerPrefix is the scheme prefix expected in front of every token, including the trailing space.
const BearerPrefix = "Bearer "

// Forwarded returns the headers the HTTP gateway copies into outgoing gRPC metadata.
func Forwarded() []string {
	return []string{
		Authorization,
		XTraceID,
		XRequestID,
		XClientID,
	}
}
