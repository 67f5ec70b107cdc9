package latex

import (
	"strings"
	"testing"
)

func TestEscapeReservedCharacters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{name: "ampersand", input: "R&D", expect: `R\&D`},
		{name: "percent", input: "40%", expect: `40\%`},
		{name: "dollar", input: "$100", expect: `\$100`},
		{name: "hash", input: "C#", expect: `C\#`},
		{name: "underscore", input: "snake_case", expect: `snake\_case`},
		{name: "braces", input: "{x}", expect: `\{x\}`},
		{name: "plain text untouched", input: "Senior Go Engineer", expect: "Senior Go Engineer"},
		{name: "all together", input: "&%$#_{}", expect: `\&\%\$\#\_\{\}`},
		{name: "unicode kept", input: "Zürich & Köln", expect: `Zürich \& Köln`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Escape(tt.input); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestEscapeLeavesNoBareReservedCharacter(t *testing.T) {
	input := "Led 5 teams & cut costs by 30% ($2M) on project_x {core} #1"
	out := Escape(input)

	for _, c := range reserved {
		want := strings.Count(input, string(c))
		if got := strings.Count(out, `\`+string(c)); got != want {
			t.Fatalf("expected %d escaped %q, got %d in %q", want, c, got, out)
		}
	}

	// Every reserved rune in the output must sit right after a backslash.
	runes := []rune(out)
	for i, r := range runes {
		if strings.ContainsRune(reserved, r) && (i == 0 || runes[i-1] != '\\') {
			t.Fatalf("bare %q at %d in %q", r, i, out)
		}
	}
}

func TestStripCodeFences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{name: "latex tag", input: "```latex\n\\section*{Summary}\n```", expect: "\\section*{Summary}"},
		{name: "no tag", input: "```\nHello\n```", expect: "Hello"},
		{name: "surrounding whitespace", input: "  \n```tex\nHello\n```\n\n", expect: "Hello"},
		{name: "no fences", input: "Hello world", expect: "Hello world"},
		{name: "only closing fence", input: "Hello\n```", expect: "Hello"},
		{name: "first line is content", input: "```Hello there\nworld```", expect: "Hello there\nworld"},
		{name: "nested fences", input: "```\n```latex\nHi\n```\n```", expect: "Hi"},
		{name: "inner fence kept", input: "a\n```\nb", expect: "a\n```\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := StripCodeFences(tt.input); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestStripCodeFencesIsIdempotent(t *testing.T) {
	inputs := []string{
		"```latex\n\\textbf{Name}\n```",
		"``````",
		"```\n```\n```",
		"plain",
		"```latex",
		"  ```python\nprint(1)\n```  ",
	}

	for _, input := range inputs {
		once := StripCodeFences(input)
		if twice := StripCodeFences(once); twice != once {
			t.Fatalf("not idempotent for %q: %q then %q", input, once, twice)
		}
	}
}

func TestNormalize(t *testing.T) {
	raw := "```latex\n\\section{Experience}\nBuilt C# & Go services_\n```\n"
	expect := `\section\{Experience\}` + "\n" + `Built C\# \& Go services\_`

	if got := Normalize(raw); got != expect {
		t.Fatalf("expected %q, got %q", expect, got)
	}
}
