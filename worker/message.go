package worker

import "github.com/amp-labs/amp-dispatch/try"

// Message is the envelope delivered to a worker's mailbox. CorrelationId
// identifies the originating request for reply routing and log correlation;
// it travels on the envelope explicitly instead of ambient call context.
// If ResponseChan is nil the message is fire-and-forget; otherwise the
// worker sends the processing result (or error) to it.
type Message[Request, Response any] struct {
	// Request is the data to be processed by the worker.
	Request Request
	// CorrelationId identifies the originating request.
	CorrelationId string
	// ResponseChan is an optional channel for receiving the response.
	// If nil, no response is expected (fire-and-forget).
	ResponseChan chan try.Try[Response]
}
