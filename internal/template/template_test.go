package template

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestNewStoreSeedsPrompt(t *testing.T) {
	s := NewStore("hi")
	v, ok := s.Get(PromptVar)
	if !ok || v != "hi" {
		t.Errorf("expected prompt=hi, got %q (ok=%v)", v, ok)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 variable, got %d", s.Len())
	}
}

func TestStoreIsWriteOnce(t *testing.T) {
	s := NewStore("hi")

	if err := s.Set("r1", "first"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Set("r1", "second"); !errors.Is(err, ErrAlreadySet) {
		t.Errorf("expected ErrAlreadySet, got %v", err)
	}
	if err := s.Set(PromptVar, "override"); !errors.Is(err, ErrAlreadySet) {
		t.Errorf("expected prompt to be write-protected, got %v", err)
	}
	if err := s.Set("", "x"); !errors.Is(err, ErrInvalidName) {
		t.Errorf("expected ErrInvalidName for empty name, got %v", err)
	}
	if err := s.Set("my-draft", "x"); !errors.Is(err, ErrInvalidName) {
		t.Errorf("expected ErrInvalidName for a name placeholders can't reference, got %v", err)
	}

	if v, _ := s.Get("r1"); v != "first" {
		t.Errorf("expected first value to stick, got %q", v)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewStore("hi")
	snap := s.Snapshot()
	snap["prompt"] = "changed"

	if v, _ := s.Get("prompt"); v != "hi" {
		t.Errorf("snapshot mutation leaked into store: %q", v)
	}
}

func TestResolve(t *testing.T) {
	s := NewStore("hi")
	_ = s.Set("response_p", "P says {{prompt}}")
	_ = s.Set("response_q", "Q says $1")

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{"no placeholders is unchanged", "plain text { not } a {{ placeholder", "plain text { not } a {{ placeholder"},
		{"prompt alone", "{{prompt}}", "hi"},
		{"repeated name", "{{prompt}}/{{prompt}}", "hi/hi"},
		{"values are not expanded again", "{{response_p}}", "P says {{prompt}}"},
		{"dollar signs stay literal", "{{response_q}}", "Q says $1"},
		{"mixed", "**p:**\n{{response_p}}\n**q:**\n{{response_q}}", "**p:**\nP says {{prompt}}\n**q:**\nQ says $1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.tmpl, s)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.tmpl, got, tt.want)
			}
		})
	}
}

func TestResolveUnresolvedReference(t *testing.T) {
	s := NewStore("hi")

	_, err := Resolve("{{prompt}} then {{missing}} and {{other}}", s)
	if err == nil {
		t.Fatal("expected error")
	}

	var unresolved *UnresolvedReferenceError
	if !errors.As(err, &unresolved) {
		t.Fatalf("expected UnresolvedReferenceError, got %T", err)
	}
	if unresolved.Name != "missing" {
		t.Errorf("expected first missing name, got %q", unresolved.Name)
	}
	if !strings.Contains(err.Error(), "unresolved reference: missing") {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestReferences(t *testing.T) {
	got := References("{{a}} {{b}} {{a}} {{ c }} {{step0_output}}")
	want := []string{"a", "b", "step0_output"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	if got := References("nothing here"); len(got) != 0 {
		t.Errorf("expected no references, got %v", got)
	}
}

func TestPlaceholder(t *testing.T) {
	if got := Placeholder("selected"); got != "{{selected}}" {
		t.Errorf("unexpected placeholder %q", got)
	}
}

func TestValidName(t *testing.T) {
	for _, name := range []string{"prompt", "draft", "step1_output", "revision2_claude", "X"} {
		if !ValidName(name) {
			t.Errorf("expected %q to be valid", name)
		}
	}
	for _, name := range []string{"", "my-draft", "a.b", "two words", "{{x}}"} {
		if ValidName(name) {
			t.Errorf("expected %q to be invalid", name)
		}
	}
}
