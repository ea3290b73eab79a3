package worker

import (
	"context"

	"github.com/amp-labs/amp-dispatch/try"
)

// Processor handles one message at a time on the worker's message loop.
// A returned error counts against the worker's restart budget; returning
// nil resumes normally.
type Processor[Request, Response any] interface {
	Process(ctx context.Context, msg Message[Request, Response]) error
}

type processor[Request, Response any] struct {
	process func(ctx context.Context, msg Message[Request, Response]) error
}

func (p *processor[Request, Response]) Process(ctx context.Context, msg Message[Request, Response]) error {
	return p.process(ctx, msg)
}

// NewProcessor wraps a function as a Processor.
func NewProcessor[Request, Response any](
	processorFunc func(ctx context.Context, msg Message[Request, Response]) error,
) Processor[Request, Response] {
	return &processor[Request, Response]{
		process: processorFunc,
	}
}

// SimpleProcessor adapts a request/response function into a Processor.
// The result is delivered to the message's response channel when one is
// present, and the error (if any) is reported to the supervision loop
// either way.
func SimpleProcessor[Request, Response any](
	f func(ctx context.Context, req Request) (Response, error),
) Processor[Request, Response] {
	processorFunc := func(ctx context.Context, msg Message[Request, Response]) error {
		resp, err := f(ctx, msg.Request)

		if msg.ResponseChan != nil {
			msg.ResponseChan <- try.Try[Response]{
				Value: resp,
				Error: err,
			}

			close(msg.ResponseChan)
		}

		return err
	}

	return NewProcessor(processorFunc)
}
