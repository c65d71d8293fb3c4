package budget

import (
	"fmt"
	"strings"
	"testing"
)

func BenchmarkEstimateTokens(b *testing.B) {
	inputs := []int{64, 256, 1024, 4096, 16384, 65536}
	for _, n := range inputs {
		b.Run(fmt.Sprintf("chars=%d", n), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_ = EstimateTokensFromChars(n)
			}
		})
	}
}

func BenchmarkTruncate(b *testing.B) {
	ascii := strings.Repeat("lorem ipsum ", 20_000)
	multi := strings.Repeat("äöü ", 40_000)
	for _, bc := range []struct {
		name string
		s    string
	}{
		{"ascii", ascii},
		{"multibyte", multi},
	} {
		b.Run(bc.name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_, _ = Truncate(bc.s, DefaultMaxChars)
			}
		})
	}
}
