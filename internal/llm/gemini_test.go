package llm

import (
	"testing"

	"google.golang.org/genai"
)

func TestChunkTextJoinsMultiPartCandidates(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Parts: []*genai.Part{{Text: "Gravity "}, {Text: "is a force."}},
			},
		}},
	}
	if got := chunkText(resp); got != "Gravity is a force." {
		t.Fatalf("chunkText() = %q", got)
	}
}

func TestChunkTextEmptyResponses(t *testing.T) {
	if got := chunkText(nil); got != "" {
		t.Fatalf("chunkText(nil) = %q", got)
	}
	if got := chunkText(&genai.GenerateContentResponse{}); got != "" {
		t.Fatalf("chunkText(no candidates) = %q", got)
	}
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}
	if got := chunkText(resp); got != "" {
		t.Fatalf("chunkText(nil content) = %q", got)
	}
}
