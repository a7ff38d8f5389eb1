package llm

import "testing"

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"none", "just prose", ""},
		{"single", "```repl\nx = 1\n```", "x = 1"},
		{"trims", "```repl   \n\n  print(x)  \n\n```", "print(x)"},
		{"multiple in order", "a\n```repl\nfirst()\n```\nb\n```repl\nsecond()\n```", "first()\nsecond()"},
		{"ignores other fences", "```python\nnope()\n```\n```repl\nyes()\n```", "yes()"},
		{"empty fence", "```repl\n```", ""},
		{"unterminated", "```repl\nnever closed", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractCode(tt.in); got != tt.want {
				t.Errorf("ExtractCode() = %q, want %q", got, tt.want)
			}
		})
	}
}
