package transform

import "testing"

func TestRegexReplaceWithBackreference(t *testing.T) {
	r, err := NewRegex(`(\w+)@example\.com`, `$1@redacted.example`)
	if err != nil {
		t.Fatalf("NewRegex: %v", err)
	}
	got := r.ApplyBytes([]byte("contact alice@example.com or bob@example.com"))
	want := "contact alice@redacted.example or bob@redacted.example"
	if string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRegexLiteralDollar(t *testing.T) {
	r, err := NewRegex(`price`, `$$5`)
	if err != nil {
		t.Fatalf("NewRegex: %v", err)
	}
	got := r.ApplyBytes([]byte("the price is low"))
	want := "the $5 is low"
	if string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRegexNonRecursive(t *testing.T) {
	// Replacing "a" with "aa" must not re-scan the produced "aa" in the
	// same pass: "a" -> one pass produces "aa", not an infinite expansion.
	r, err := NewRegex(`a`, `aa`)
	if err != nil {
		t.Fatalf("NewRegex: %v", err)
	}
	got := r.ApplyBytes([]byte("a"))
	if string(got) != "aa" {
		t.Errorf("got %q, want %q", got, "aa")
	}
}

func TestRegexPreservesInvalidUTF8Surroundings(t *testing.T) {
	r, err := NewRegex(`secret`, `[REDACTED]`)
	if err != nil {
		t.Fatalf("NewRegex: %v", err)
	}
	input := append([]byte{0xff, 0xfe}, []byte(" secret value")...)
	got := r.ApplyBytes(input)
	if got[0] != 0xff || got[1] != 0xfe {
		t.Errorf("invalid UTF-8 prefix bytes were not preserved: %v", got[:2])
	}
}

func TestRegexInPipelineDeletesAllMatches(t *testing.T) {
	r, err := NewRegex(`password`, `[REDACTED]`)
	if err != nil {
		t.Fatalf("NewRegex: %v", err)
	}
	p := Pipeline{Steps: []Transform{r}}
	out, err := p.Run([]byte(`{"password":"my password is password"}`))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := `{"[REDACTED]":"my [REDACTED] is [REDACTED]"}`
	if string(out) != want {
		t.Errorf("got %q, want %q", out, want)
	}
}
