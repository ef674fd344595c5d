package completion

import (
	ectx "github.com/xiaoyuanxun/anda-sub000/engine/context"
	"github.com/xiaoyuanxun/anda-sub000/types"
)

// Iterator is completion_iter: a lazy sequence of AgentOutput values, one
// per completion turn, per spec.md §4.8.4.
type Iterator struct {
	ctx      *ectx.AgentCtx
	req      types.CompletionRequest
	maxTurns int
	turn     int
	done     bool
}

// NewIterator starts a turn sequence against ctx. maxTurns <= 0 means no
// caller-imposed cap (terminal-complete/terminal-fail/cancellation still
// apply).
func NewIterator(ctx *ectx.AgentCtx, req types.CompletionRequest, maxTurns int) *Iterator {
	return &Iterator{ctx: ctx, req: req, maxTurns: maxTurns}
}

// IsDone reports whether the sequence has reached a terminal state.
func (it *Iterator) IsDone() bool { return it.done }

// Next runs one more completion turn. hasMore is false once a terminal
// condition is reached: no tool calls and no failure (terminal-complete),
// a set failed_reason (terminal-fail), context cancellation, or the
// caller-specified maximum turn count.
func (it *Iterator) Next() (out types.AgentOutput, hasMore bool, err error) {
	if it.done {
		return types.AgentOutput{}, false, nil
	}

	select {
	case <-it.ctx.Done():
		it.done = true
		return types.AgentOutput{}, false, it.ctx.Err()
	default:
	}

	it.turn++
	out, err = it.ctx.Completion(it.req)
	if err != nil {
		it.done = true
		return types.AgentOutput{}, false, err
	}

	terminalComplete := len(out.ToolCalls) == 0 && out.FailedReason == ""
	terminalFail := out.FailedReason != ""
	maxTurnsExceeded := it.maxTurns > 0 && it.turn >= it.maxTurns

	if terminalComplete || terminalFail || maxTurnsExceeded {
		it.done = true
		return out, false, nil
	}

	it.req.ChatHistory = out.FullHistory
	it.req.Prompt = ""
	return out, true, nil
}

// TurnResult is one value produced by RunAsync.
type TurnResult struct {
	Output types.AgentOutput
	Err    error
}

// RunAsync spawns the remaining turns on a goroutine and streams each
// AgentOutput on the returned channel, closed once the sequence terminates.
// Matches the usage pattern in spec.md §4.8.4: take the first turn
// synchronously for latency, then hand the rest to this for background
// processing while each intermediate state is committed to the thread
// store by the consumer.
func (it *Iterator) RunAsync() <-chan TurnResult {
	ch := make(chan TurnResult, 1)
	go func() {
		defer close(ch)
		for !it.IsDone() {
			out, _, err := it.Next()
			ch <- TurnResult{Output: out, Err: err}
			if err != nil {
				return
			}
		}
	}()
	return ch
}
