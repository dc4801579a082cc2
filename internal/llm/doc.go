// Package llm is the client for OpenAI-compatible chat completion services.
// It supports declared tools with automatic tool selection and JSON-object
// responses, and adds token-bucket rate limiting and retry with exponential
// backoff around every call.
package llm
