package llm

import (
	"context"
	"errors"
	"sync"
)

// ErrNoMockResponse is returned by MockClient when its queue is exhausted.
var ErrNoMockResponse = errors.New("mock client has no response queued")

// MockClient is a canned Client for tests. Responses are returned in the
// order they were queued; when a Handler is set it answers every call
// instead. Every request is recorded.
type MockClient struct {
	Handler   func(req Request) (*Response, error)
	requests  []Request
	responses []mockReply
	mu        sync.Mutex
}

type mockReply struct {
	resp *Response
	err  error
}

// NewMockClient creates an empty mock.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// QueueText queues a plain text reply.
func (m *MockClient) QueueText(content string) *MockClient {
	return m.Queue(&Response{Content: content, FinishReason: "stop"}, nil)
}

// QueueToolCalls queues a reply that requests the given tool calls with the
// given text.
func (m *MockClient) QueueToolCalls(content string, calls ...ToolCall) *MockClient {
	return m.Queue(&Response{Content: content, ToolCalls: calls, FinishReason: "tool_calls"}, nil)
}

// QueueError queues a failed call.
func (m *MockClient) QueueError(err error) *MockClient {
	return m.Queue(nil, err)
}

// Queue queues an arbitrary reply.
func (m *MockClient) Queue(resp *Response, err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockReply{resp: resp, err: err})
	return m
}

// Complete implements Client.
func (m *MockClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	handler := m.Handler
	if handler == nil && len(m.responses) == 0 {
		m.mu.Unlock()
		return nil, ErrNoMockResponse
	}
	var reply mockReply
	if handler == nil {
		reply = m.responses[0]
		m.responses = m.responses[1:]
	}
	m.mu.Unlock()

	if handler != nil {
		return handler(req)
	}
	return reply.resp, reply.err
}

// Requests returns a copy of every request received so far.
func (m *MockClient) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Calls returns how many requests were received.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
