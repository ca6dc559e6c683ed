package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEmbeddedPromptsAreNonEmpty(t *testing.T) {
	set := LoadPromptSet()
	if set.Planner == "" || set.Critic == "" || set.FinalAnswer == "" {
		t.Fatalf("embedded prompt missing: %+v", set)
	}
	if !strings.Contains(set.Planner, "overall_summary") {
		t.Fatal("planner prompt should pin the output shape")
	}
	if !strings.Contains(set.Critic, "overall_comment") {
		t.Fatal("critic prompt should pin the output shape")
	}
	if !strings.Contains(set.FinalAnswer, "answer_markdown") {
		t.Fatal("final answer prompt should pin the output shape")
	}
}

func TestLoaderWithoutOverrideDirServesEmbedded(t *testing.T) {
	l, err := NewLoader("")
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	defer l.Close()

	if l.Planner() != LoadPromptSet().Planner {
		t.Fatal("loader should serve the embedded planner prompt")
	}
}

func TestLoaderAppliesOverrides(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "critic.txt"), []byte("custom critic prompt"), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	l, err := NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	defer l.Close()

	if l.Critic() != "custom critic prompt" {
		t.Fatalf("override not applied: %q", l.Critic())
	}
	// Stages without an override file keep the embedded prompt.
	if l.Planner() != LoadPromptSet().Planner {
		t.Fatal("planner should still be embedded")
	}
}

func TestLoaderHotReloadsEditedOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "planner.txt")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	l, err := NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	defer l.Close()

	if l.Planner() != "v1" {
		t.Fatalf("initial override not applied: %q", l.Planner())
	}

	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if l.Planner() == "v2" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("override not reloaded, still %q", l.Planner())
}
