package workflow

import (
	"testing"

	"github.com/agrifocus/farmbooks_backend/models"
)

func TestParcelAcreageCapacity(t *testing.T) {
	f := newFixture(t)

	parcel, err := models.CreateLandParcel(f.ctx, &models.NewLandParcel{
		Name:       "River Field",
		TotalAcres: dec("25"),
	})
	if err != nil {
		t.Fatalf("CreateLandParcel: %v", err)
	}

	if _, err := models.AllocateParcelAcreage(f.ctx, f.cycle.ID, parcel.ID, dec("15")); err != nil {
		t.Fatalf("first allocation: %v", err)
	}
	if _, err := models.AllocateParcelAcreage(f.ctx, f.cycle.ID, parcel.ID, dec("10")); err != nil {
		t.Fatalf("allocation up to capacity: %v", err)
	}

	// 25 of 25 acres claimed; any further claim must fail.
	if _, err := models.AllocateParcelAcreage(f.ctx, f.cycle.ID, parcel.ID, dec("0.5")); err == nil {
		t.Fatalf("allocation beyond capacity succeeded")
	}
}
