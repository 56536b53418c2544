package domain

import "strings"

// StopReason is the completion service's signal for how a turn ended.
type StopReason string

const (
	StopEndTurn StopReason = "end_turn"
	StopToolUse StopReason = "tool_use"
)

// TurnOutcome is the result of one completion call: either final text or a
// batch of tool requests. Content preserves the blocks exactly as emitted,
// including any free text interleaved with tool_use blocks.
type TurnOutcome struct {
	StopReason StopReason
	Content    []ContentBlock
}

// ToolUses returns the tool_use blocks of the turn in emission order.
func (o *TurnOutcome) ToolUses() []ContentBlock {
	var uses []ContentBlock
	for _, b := range o.Content {
		if b.Type == BlockToolUse {
			uses = append(uses, b)
		}
	}
	return uses
}

// Text concatenates the text blocks of the turn.
func (o *TurnOutcome) Text() string {
	var sb strings.Builder
	for _, b := range o.Content {
		if b.Type == BlockText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}
