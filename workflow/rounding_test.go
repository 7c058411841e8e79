package workflow

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestAllocateProportionallySplitsWithExactRemainder(t *testing.T) {
	shares, err := AllocateProportionally(dec("100"), []decimal.Decimal{dec("1"), dec("1"), dec("1")})
	if err != nil {
		t.Fatalf("AllocateProportionally: %v", err)
	}
	want := []string{"33.33", "33.33", "33.34"}
	total := decimal.Zero
	for i, share := range shares {
		if share.StringFixed(2) != want[i] {
			t.Fatalf("share %d = %s, want %s", i, share.StringFixed(2), want[i])
		}
		total = total.Add(share)
	}
	if !total.Equal(dec("100")) {
		t.Fatalf("shares sum to %s, want 100", total)
	}
}

func TestAllocateProportionallyZeroWeightsSplitEqually(t *testing.T) {
	shares, err := AllocateProportionally(dec("90"), []decimal.Decimal{decimal.Zero, decimal.Zero, decimal.Zero})
	if err != nil {
		t.Fatalf("AllocateProportionally: %v", err)
	}
	for i, share := range shares {
		if i < len(shares)-1 && !share.Equal(dec("30")) {
			t.Fatalf("share %d = %s, want 30", i, share)
		}
	}
	total := decimal.Zero
	for _, share := range shares {
		total = total.Add(share)
	}
	if !total.Equal(dec("90")) {
		t.Fatalf("shares sum to %s, want 90", total)
	}
}

func TestAllocateProportionallyRejectsNegativeWeight(t *testing.T) {
	if _, err := AllocateProportionally(dec("10"), []decimal.Decimal{dec("1"), dec("-1")}); err == nil {
		t.Fatal("expected error for negative weight")
	}
}
