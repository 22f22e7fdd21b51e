package fanout

import (
	"strings"
)

// DefaultCompletionTool is the tool name an agent calls to end its loop
const DefaultCompletionTool = "mark_complete"

// DefaultAgentInstructions is the system prompt seeded into every agent's conversation
const DefaultAgentInstructions = `You are a research agent working on one part of a larger task.
Use the available tools to gather information. When you have a complete answer
for your assigned subtask, write it out and then call the ` + DefaultCompletionTool + ` tool.
Be concise and factual. Do not ask the user questions; work autonomously.`

// DefaultDecompositionPrompt asks for exactly {num_agents} subtask strings as a JSON array
const DefaultDecompositionPrompt = `Break the following request into exactly {num_agents} independent research subtasks.
Each subtask should cover a distinct angle (background, current trends, practical
applications, risks and limitations, and so on).

Request: {user_input}

Respond with ONLY a JSON array of {num_agents} strings, no other text.`

// DefaultSynthesisPrompt merges {num_responses} labeled agent outputs into one answer
const DefaultSynthesisPrompt = `You are given {num_responses} responses from independent research agents,
each covering a different angle of the same request. Merge them into one
consolidated, well-organized answer. Remove duplication, resolve conflicts,
and keep every substantive finding.

{agent_responses}

Respond with the consolidated answer only.`

// renderPrompt substitutes {key} placeholders by exact string replacement
func renderPrompt(template string, vars map[string]string) string {
	out := template
	for key, val := range vars {
		out = strings.ReplaceAll(out, "{"+key+"}", val)
	}
	return out
}
