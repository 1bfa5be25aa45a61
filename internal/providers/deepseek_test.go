package providers

import (
	"strings"
	"testing"
)

func TestStripThinkingTags(t *testing.T) {
	answer, thinking := StripThinkingTags("<think>step one\nstep two</think>The answer is 4.")
	if answer != "The answer is 4." {
		t.Errorf("answer = %q", answer)
	}
	if thinking != "step one\nstep two" {
		t.Errorf("thinking = %q", thinking)
	}
}

func TestStripThinkingTags_CaseInsensitive(t *testing.T) {
	answer, thinking := StripThinkingTags("<THINK>hmm</THINK>ok")
	if answer != "ok" || thinking != "hmm" {
		t.Errorf("got (%q, %q)", answer, thinking)
	}
}

func TestStripThinkingTags_OnlyThinking(t *testing.T) {
	answer, _ := StripThinkingTags("<think>endless deliberation</think>")
	if answer != OnlyThinkingFallback {
		t.Errorf("answer = %q, want fallback line", answer)
	}
}

func TestStripThinkingTags_MultipleBlocks(t *testing.T) {
	answer, thinking := StripThinkingTags("<think>a</think>first.\n<think>b</think>second.")
	if strings.Contains(answer, "<think>") {
		t.Errorf("tags left in answer: %q", answer)
	}
	if !strings.Contains(thinking, "a") || !strings.Contains(thinking, "b") {
		t.Errorf("thinking = %q, want both blocks", thinking)
	}
}

func TestStripThinkingTags_NoTags(t *testing.T) {
	answer, thinking := StripThinkingTags("plain answer")
	if answer != "plain answer" || thinking != "" {
		t.Errorf("got (%q, %q)", answer, thinking)
	}
}

func TestStripThinkingTags_CollapsesBlankRuns(t *testing.T) {
	answer, _ := StripThinkingTags("before\n\n<think>x</think>\n\n\n\nafter")
	if strings.Contains(answer, "\n\n\n") {
		t.Errorf("blank runs not collapsed: %q", answer)
	}
}
