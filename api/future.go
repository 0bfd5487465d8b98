package api

import "context"

// Future is the deferred phase of an operation, e.g. waiting for a transaction
// to be committed after its proposal was accepted.
type Future interface {
	Wait(ctx context.Context) error
}

type FutureFunc func(ctx context.Context) error

func (f FutureFunc) Wait(ctx context.Context) error {
	return f(ctx)
}

// Resolved is a Future that has already completed.
var Resolved Future = FutureFunc(func(context.Context) error { return nil })

// Failed returns a Future that always reports err.
func Failed(err error) Future {
	return FutureFunc(func(context.Context) error { return err })
}

type ProposalResponse struct {
	Node    string `json:"node" cbor:"node"`
	MSPID   string `json:"msp_id" cbor:"msp_id"`
	TxID    string `json:"tx_id" cbor:"tx_id"`
	Status  int32  `json:"status" cbor:"status"`
	Message string `json:"message" cbor:"message"`
	Payload []byte `json:"payload,omitempty" cbor:"payload"`
}

// Outcome is what a single-organization operation returns: the responses
// available immediately and the handle for its completion.
type Outcome struct {
	Responses  []*ProposalResponse
	Completion Future
}

func (o *Outcome) Wait(ctx context.Context) error {
	if o.Completion == nil {
		return nil
	}
	return o.Completion.Wait(ctx)
}
