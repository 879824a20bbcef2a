package payload

import (
	"errors"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestGenerateIDs(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	now := time.UnixMilli(1700000000000)

	ids := GenerateIDs(rng, 1000, now, time.Hour)
	if len(ids) != 1000 {
		t.Fatalf("len = %d, want 1000", len(ids))
	}

	re := regexp.MustCompile(`^TRD-\d+-[0-9a-z]{9}$`)
	for _, id := range ids {
		if !re.MatchString(id) {
			t.Fatalf("id %q does not match TRD-<millis>-<base36>", id)
		}
		ms, _ := strconv.ParseInt(strings.Split(id, "-")[1], 10, 64)
		if ms > now.UnixMilli() || ms < now.Add(-time.Hour).UnixMilli() {
			t.Fatalf("id %q timestamp outside the max-age window", id)
		}
	}
}

func TestIDPool(t *testing.T) {
	if _, err := NewIDPool(nil); !errors.Is(err, ErrEmptyPool) {
		t.Errorf("NewIDPool(nil) error = %v, want ErrEmptyPool", err)
	}

	src := []string{"a", "b", "c"}
	pool, err := NewIDPool(src)
	if err != nil {
		t.Fatalf("NewIDPool() error = %v", err)
	}
	src[0] = "mutated"

	if pool.Len() != 3 {
		t.Errorf("Len() = %d, want 3", pool.Len())
	}

	rng := rand.New(rand.NewSource(5))
	seen := map[string]bool{}
	for i := 0; i < 300; i++ {
		seen[pool.Pick(rng)] = true
	}
	if seen["mutated"] {
		t.Error("pool shares the caller's slice")
	}
	if len(seen) != 3 {
		t.Errorf("picked %d distinct IDs, want 3", len(seen))
	}
}
