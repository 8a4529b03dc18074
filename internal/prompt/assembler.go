// Package prompt assembles the ordered message sequence sent to the
// generation backend: persona and memory digest in the system section,
// then the history window, then the new user message.
package prompt

import (
	"errors"
	"strings"

	"github.com/elacava/principia/internal/history"
	"github.com/elacava/principia/internal/llm"
)

// ErrOversized reports that the assembled prompt exceeds the size budget.
// The assembler never evicts anything itself; the orchestrator decides
// which history turns to drop.
var ErrOversized = errors.New("assembled prompt exceeds size budget")

// MemoryHeading introduces the digest inside the system section. It is
// omitted entirely when the digest is empty so the model never sees an
// empty memory claim.
const MemoryHeading = "What you remember about this user:"

// Assembler builds prompts under a fixed character budget. Zero budget
// means unbounded.
type Assembler struct {
	maxChars int
}

func NewAssembler(maxChars int) *Assembler {
	return &Assembler{maxChars: maxChars}
}

// Build is deterministic given identical inputs. The user's current
// message is never truncated.
func (a *Assembler) Build(persona, digest string, hist []history.Turn, userMessage string) (llm.Prompt, error) {
	var system strings.Builder
	system.WriteString(persona)
	if strings.TrimSpace(digest) != "" {
		system.WriteString("\n\n")
		system.WriteString(MemoryHeading)
		system.WriteString("\n")
		system.WriteString(digest)
	}

	messages := make([]llm.Message, 0, len(hist)+1)
	for _, t := range hist {
		messages = append(messages, llm.Message{Role: t.Role, Content: t.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userMessage})

	p := llm.Prompt{System: system.String(), Messages: messages}
	if a.maxChars > 0 && p.Chars() > a.maxChars {
		return llm.Prompt{}, ErrOversized
	}
	return p, nil
}
