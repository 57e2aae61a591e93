package agents

import (
	"encoding/json"
	"fmt"
	"strings"

	"mentor/internal/adapters/ai"
	"mentor/internal/domain/study"
	"mentor/internal/tools"
)

const analyticalPrompt = `You are a study coach professor with an analytical, fact-driven style.
Be direct and precise. Point out exactly what the student got wrong and why,
cite the relevant material, and prioritize correctness over encouragement.`

const supportivePrompt = `You are a study coach professor with a warm, supportive style.
Acknowledge the student's effort first, then guide them toward the correct
understanding with encouragement. Keep explanations approachable.`

const coachInstructions = `You help the student work through their uploaded textbook.

Rules:
- Use query_textbook to look up material before answering content questions.
- Use update_task_list to create or revise the student's day-by-day study plan.
  The tool replaces the whole list: include every task that should remain.
- Use add_feedback to record an evaluation after reviewing a student's answer.
- When you have enough information, answer the student directly without
  further tool calls.`

// systemPrompt renders the engine's standing instructions from the aggregate:
// persona by professor type, coaching rules, and a snapshot of the current
// study plan so the engine never invents task ids.
func systemPrompt(state *study.State) string {
	var b strings.Builder

	switch state.ProfessorType {
	case study.ProfessorSupportive:
		b.WriteString(supportivePrompt)
	default:
		b.WriteString(analyticalPrompt)
	}
	b.WriteString("\n\n")
	b.WriteString(coachInstructions)

	if len(state.TaskList) > 0 {
		if snapshot, err := json.Marshal(state.TaskList); err == nil {
			b.WriteString("\n\nCurrent study plan:\n")
			b.Write(snapshot)
		}
	}

	return b.String()
}

// buildConversation converts the durable transcript into engine messages.
// Tool records in the transcript carry only the tool name and result, so each
// one is rendered as a synthesized call/response pair with a deterministic id.
func buildConversation(state *study.State) []ai.Message {
	msgs := make([]ai.Message, 0, len(state.Messages)+1)
	msgs = append(msgs, ai.Message{Role: ai.RoleSystem, Content: systemPrompt(state)})

	synth := 0
	for _, m := range state.Messages {
		switch m.Role {
		case study.RoleUser:
			msgs = append(msgs, ai.Message{Role: ai.RoleUser, Content: m.Content})
		case study.RoleAssistant:
			msgs = append(msgs, ai.Message{Role: ai.RoleAssistant, Content: m.Content})
		case study.RoleTool:
			synth++
			id := fmt.Sprintf("call_%04d", synth)
			msgs = append(msgs,
				ai.Message{
					Role:      ai.RoleAssistant,
					ToolCalls: []ai.ToolCall{{ID: id, Name: m.Tool, Arguments: "{}"}},
				},
				ai.Message{
					Role:       ai.RoleTool,
					Content:    m.Content,
					ToolCallID: id,
					Name:       m.Tool,
				},
			)
		}
	}

	return msgs
}

// toolDefinitions exposes the registry's tools to the engine.
func toolDefinitions(reg *tools.Registry) []ai.ToolDefinition {
	list := reg.List()
	defs := make([]ai.ToolDefinition, 0, len(list))
	for _, t := range list {
		defs = append(defs, ai.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}
