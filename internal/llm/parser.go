package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Veraticus/bizpilot/internal/common"
)

// StripCodeFence removes a surrounding markdown code block, with or without
// a language tag, from a model reply.
func StripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	content = strings.TrimPrefix(content, "```")
	if newline := strings.IndexByte(content, '\n'); newline >= 0 {
		// Drop the language tag line ("json", "JSON", ...).
		if tag := strings.TrimSpace(content[:newline]); !strings.ContainsAny(tag, "{[") {
			content = content[newline+1:]
		}
	}
	content = strings.TrimSpace(content)
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// DecodeJSON parses a JSON object out of a model reply into dst. Code fences
// and any prose before the first '{' or after the last '}' are ignored.
func DecodeJSON(content string, dst any) error {
	content = StripCodeFence(content)

	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end < start {
		return fmt.Errorf("%w: no JSON object in response", common.ErrInvalidResponse)
	}

	if err := json.Unmarshal([]byte(content[start:end+1]), dst); err != nil {
		return fmt.Errorf("%w: %w", common.ErrInvalidResponse, err)
	}
	return nil
}
