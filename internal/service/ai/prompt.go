package ai

import (
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

const (
	varContext  = "context"
	varHistory  = "history"
	varQuestion = "question"
)

const baseInstruction = "You are a helpful assistant answering questions about the documents below. " +
	"Answer the question using ONLY the context below. " +
	"If the answer is not in the context, say you do not know. " +
	"Reply in plain text without markdown, bullet symbols or other formatting."

// systemInstruction returns the fixed rules plus any configured persona facts.
// The result is used as template text, so braces in facts are escaped.
func systemInstruction(facts []string) string {
	var sb strings.Builder
	sb.WriteString(baseInstruction)
	if len(facts) > 0 {
		sb.WriteString("\n\nKnown facts:")
		for _, f := range facts {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			sb.WriteString("\n- ")
			sb.WriteString(escapeBraces(f))
		}
	}
	sb.WriteString("\n\nContext:\n{" + varContext + "}")
	return sb.String()
}

func newTemplate(facts []string) prompt.ChatTemplate {
	return prompt.FromMessages(schema.FString,
		schema.SystemMessage(systemInstruction(facts)),
		schema.MessagesPlaceholder(varHistory, true),
		schema.UserMessage("{"+varQuestion+"}"),
	)
}

func escapeBraces(s string) string {
	s = strings.ReplaceAll(s, "{", "{{")
	return strings.ReplaceAll(s, "}", "}}")
}
