package budget

import (
	"strings"
	"testing"
)

func TestEstimateTokensFromChars(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{0, 0},
		{1, 1}, // ceil(1/4)=1
		{3, 1},
		{4, 1},
		{5, 2},
		{400, 100},
	}
	for _, c := range cases {
		got := EstimateTokensFromChars(c.in)
		if got != c.want {
			t.Fatalf("EstimateTokensFromChars(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestEstimatePromptTokens(t *testing.T) {
	// system(6)->2, user(12)->3
	if got := EstimatePromptTokens("system", "user message"); got != 5 {
		t.Fatalf("EstimatePromptTokens() = %d, want 5", got)
	}
}

func TestModelContextTokens(t *testing.T) {
	if ModelContextTokens("") != 8192 {
		t.Fatal("empty model should default to 8192")
	}
	if ModelContextTokens("gpt-4o") < 100_000 {
		t.Fatal("gpt-4o should be large (~128k)")
	}
	if ModelContextTokens("LLAMA-3.1") < 100_000 {
		t.Fatal("case-insensitive match for llama-3.1 should be ~128k")
	}
	if ModelContextTokens("mystery-512k") != 512_000 {
		t.Fatal("numeric suffix heuristic 512k should map to 512k tokens")
	}
	if ModelContextTokens("mystery-model") != 8192 {
		t.Fatal("unknown model should default to 8192")
	}
}

func TestRemainingAndFits(t *testing.T) {
	model := "gpt-4o"
	max := ModelContextTokens(model)
	prompt := max / 2
	if rem := RemainingContext(model, 2000, prompt); rem <= 0 {
		t.Fatalf("remaining should be positive, got %d", rem)
	}
	if !FitsInContext(model, 2000, prompt) {
		t.Fatal("prompt should fit when remaining is positive")
	}
	// Force overflow
	prompt = max
	if rem := RemainingContext(model, 1, prompt); rem != 0 {
		t.Fatalf("remaining should clamp at 0 on overflow, got %d", rem)
	}
	if FitsInContext(model, 1, prompt) {
		t.Fatal("prompt should not fit when overflowed")
	}
	// Fits only without headroom
	prompt = max - 1000
	if FitsInContext(model, 500, prompt) {
		t.Fatal("headroom should be reserved")
	}
}

func TestHeadroomTokens(t *testing.T) {
	if HeadroomTokens("gpt-4o") < 512 {
		t.Fatalf("headroom should be at least 512")
	}
	if HeadroomTokens("") != 512 { // 5% of 8192 is 410, floored to 512
		t.Fatalf("default model headroom should floor to 512")
	}
}

func TestTruncate(t *testing.T) {
	short := "short text"
	if got, cut := Truncate(short, 100); got != short || cut {
		t.Fatalf("short text should be unchanged, got %q %v", got, cut)
	}

	long := strings.Repeat("a", 150)
	got, cut := Truncate(long, 100)
	if !cut {
		t.Fatal("expected truncation")
	}
	if got != strings.Repeat("a", 100)+TruncationMarker {
		t.Fatalf("unexpected truncation result %q", got)
	}

	exact := strings.Repeat("b", 100)
	if got, cut := Truncate(exact, 100); got != exact || cut {
		t.Fatal("text at the limit should be unchanged")
	}

	if got, cut := Truncate(long, 0); got != long || cut {
		t.Fatal("zero limit disables truncation")
	}
}

func TestTruncate_CountsRunes(t *testing.T) {
	s := strings.Repeat("ä", 10) // 20 bytes
	got, cut := Truncate(s, 4)
	if !cut || got != "ääää"+TruncationMarker {
		t.Fatalf("expected rune-safe cut, got %q", got)
	}
}

func TestTruncate_DefaultLimit(t *testing.T) {
	got, cut := Truncate(strings.Repeat("x", DefaultMaxChars+1), DefaultMaxChars)
	if !cut || !strings.HasSuffix(got, "[Article continues but was truncated due to length...]") {
		t.Fatal("expected marker at default limit")
	}
	if len(got) != DefaultMaxChars+len(TruncationMarker) {
		t.Fatalf("unexpected length %d", len(got))
	}
}
