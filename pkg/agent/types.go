package agent

import "fmt"

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall represents a tool invocation requested by the model
type ToolCall struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates another usage report
func (u *TokenUsage) Add(other *TokenUsage) {
	if other == nil {
		return
	}
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// Total returns input plus output tokens
func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// AgentMessage represents a message in the conversation.
// Tool results use RoleTool with ToolCallID set.
type AgentMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	IsError    bool       `json:"is_error,omitempty"`
}

// ToolSpec is the provider-neutral description of a callable tool
type ToolSpec struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// Result is the outcome of one conversational turn
type Result struct {
	Response  string     `json:"response"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     TokenUsage `json:"usage"`
	Cycles    int        `json:"cycles"`
}

// String returns the response text
func (r Result) String() string {
	return r.Response
}

// EstimateTokens provides a rough token count estimation. Tool call
// arguments count too since they are sent back with the history.
func EstimateTokens(messages []AgentMessage) int {
	totalChars := 0
	for _, msg := range messages {
		totalChars += len(msg.Content)
		for _, tc := range msg.ToolCalls {
			totalChars += len(tc.Name)
			for k, v := range tc.Parameters {
				totalChars += len(k) + len(fmt.Sprint(v))
			}
		}
	}
	// Rough estimation: 1 token ≈ 4 characters
	return (totalChars + 3) / 4
}

// groupToolResults splits messages into runs so consecutive tool results
// can be sent as one user message, which Bedrock and Anthropic require.
func groupToolResults(messages []AgentMessage) [][]AgentMessage {
	var groups [][]AgentMessage
	for _, msg := range messages {
		n := len(groups)
		if msg.Role == RoleTool && n > 0 && groups[n-1][0].Role == RoleTool {
			groups[n-1] = append(groups[n-1], msg)
			continue
		}
		groups = append(groups, []AgentMessage{msg})
	}
	return groups
}
