package catalog

import (
	"testing"
	"time"

	"github.com/shelfsync/shelfsync-backend/internal/types"
)

func TestFingerprintChangesWithMatchableFields(t *testing.T) {
	base := SourceItem{ProductID: "p1", Name: "Oat Milk 1L", Unit: "l"}
	if Fingerprint(base) != Fingerprint(base) {
		t.Fatal("fingerprint not deterministic")
	}
	renamed := base
	renamed.Name = "Oat Milk 1.5L"
	if Fingerprint(base) == Fingerprint(renamed) {
		t.Fatal("name change must change the fingerprint")
	}
	changedUnit := base
	changedUnit.Unit = "ml"
	if Fingerprint(base) == Fingerprint(changedUnit) {
		t.Fatal("unit change must change the fingerprint")
	}
	recoded := base
	recoded.BarcodeFields = []string{"4001234567890"}
	if Fingerprint(base) == Fingerprint(recoded) {
		t.Fatal("barcode change must change the fingerprint")
	}
}

func TestDiffCatalog(t *testing.T) {
	kept := SourceItem{ProductID: "p1", Name: "Oat Milk 1L", Unit: "l"}
	renamed := SourceItem{ProductID: "p2", Name: "Dark Rye Bread", Unit: "pc"}
	added := SourceItem{ProductID: "p4", Name: "Butter 250g", Unit: "pc"}

	existing := map[string]string{
		"p1": Fingerprint(kept),
		"p2": Fingerprint(SourceItem{ProductID: "p2", Name: "Rye Bread", Unit: "pc"}),
		"p3": "whatever",
	}

	changed, removed := diffCatalog(existing, []SourceItem{kept, renamed, added})

	if len(changed) != 2 {
		t.Fatalf("changed: %#v", changed)
	}
	if changed[0].ProductID != "p2" || changed[1].ProductID != "p4" {
		t.Fatalf("changed order: %#v", changed)
	}
	if len(removed) != 1 || removed[0] != "p3" {
		t.Fatalf("removed: %#v", removed)
	}
}

func TestExtractBarcodes(t *testing.T) {
	cases := []struct {
		fields []string
		want   []string
	}{
		{[]string{"4001234567890"}, []string{"4001234567890"}},
		{[]string{"", "ext-4001234567890"}, []string{"4001234567890"}},
		{[]string{"123456"}, []string{}}, // six digits: below the threshold
		{[]string{"7012345/4001234567890", ""}, []string{"7012345", "4001234567890"}},
		{[]string{"4001234567890", "4001234567890"}, []string{"4001234567890"}}, // deduped across fields
		{nil, []string{}},
	}
	for _, tc := range cases {
		got := ExtractBarcodes(tc.fields)
		if len(got) != len(tc.want) {
			t.Fatalf("%v: got %#v want %#v", tc.fields, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("%v: got %#v want %#v", tc.fields, got, tc.want)
			}
		}
	}
}

func TestWithinCooldown(t *testing.T) {
	now := time.Now()
	recent := now.Add(-10 * time.Minute)
	stale := now.Add(-3 * time.Hour)

	never := &types.Store{StoreID: "s1"}
	if withinCooldown(never, now) {
		t.Fatal("store without a sync timestamp is never in cooldown")
	}

	fresh := &types.Store{StoreID: "s1", CatalogLastSyncAt: &recent, CatalogSyncCooldown: 30}
	if !withinCooldown(fresh, now) {
		t.Fatal("sync 10m ago with a 30m cooldown must be skipped")
	}

	expired := &types.Store{StoreID: "s1", CatalogLastSyncAt: &stale, CatalogSyncCooldown: 30}
	if withinCooldown(expired, now) {
		t.Fatal("sync 3h ago with a 30m cooldown must run")
	}

	defaulted := &types.Store{StoreID: "s1", CatalogLastSyncAt: &recent}
	if !withinCooldown(defaulted, now) {
		t.Fatal("zero cooldown falls back to the default window")
	}
}
