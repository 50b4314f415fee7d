package idgen

import (
	"testing"

	"github.com/oklog/ulid/v2"
)

func TestULIDGeneratorProducesUniqueParsableIDs(t *testing.T) {
	gen := NewULIDGenerator()
	seen := make(map[string]bool)

	for i := 0; i < 1000; i++ {
		id := gen.Generate()
		if _, err := ulid.ParseStrict(id); err != nil {
			t.Fatalf("generated id %q is not a valid ULID: %v", id, err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
