package extract

import (
	"strings"
	"testing"

	"github.com/mityayka1/pkgraph/internal/store"
)

func TestParseStripsSurroundingProse(t *testing.T) {
	raw := "Sure, here you go:\n```json\n{\"facts\":[{\"entityMention\":\"Alice\",\"factType\":\"city\",\"value\":\"Berlin\",\"confidence\":0.9}]}\n```"
	r, err := Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Facts) != 1 || r.Facts[0].Value != "Berlin" {
		t.Fatalf("Parse() = %+v", r)
	}
}

func TestParseInvalidJSON(t *testing.T) {
	if _, err := Parse("not json at all"); err == nil {
		t.Fatal("expected error for non-JSON response")
	}
}

func TestBuildPromptIncludesParticipantsAndMessages(t *testing.T) {
	seg := &store.TopicalSegment{Topic: "budget planning"}
	messages := []*store.Message{{SenderIdentifierValue: "alice", Content: "let's cut costs"}}
	prompt := BuildPrompt(seg, messages, map[string]string{"e1": "Alice"})
	for _, want := range []string{"budget planning", "Alice", "let's cut costs"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("BuildPrompt() missing %q: %s", want, prompt)
		}
	}
}
