package matching

import (
	"github.com/shelfsync/shelfsync-backend/internal/repos"
	"github.com/shelfsync/shelfsync-backend/internal/types"
)

// barcodePass resolves items whose scanned barcode maps to exactly one
// catalog product. Multiple hits become candidates for the collision
// arbitration pass; zero hits leave the item untouched.
type barcodePass struct {
	products repos.ProductRepo
}

func NewBarcodePass(products repos.ProductRepo) Pass {
	return &barcodePass{products: products}
}

func (p *barcodePass) Name() string { return "barcode" }

func (p *barcodePass) Apply(run *Run) error {
	var barcodes []string
	seen := map[string]struct{}{}
	for _, it := range run.Doc.Unresolved() {
		if it.Barcode == "" {
			continue
		}
		if _, ok := seen[it.Barcode]; ok {
			continue
		}
		seen[it.Barcode] = struct{}{}
		barcodes = append(barcodes, it.Barcode)
	}
	if len(barcodes) == 0 {
		return nil
	}

	hits, err := p.products.ByBarcodes(run.Ctx, nil, run.StoreID, barcodes)
	if err != nil {
		return err
	}

	for _, it := range run.Doc.Unresolved() {
		if it.Barcode == "" {
			continue
		}
		cands := hits[it.Barcode]
		switch len(cands) {
		case 0:
		case 1:
			it.Resolve(cands[0].ProductID, cands[0].Name, cands[0].Unit, types.MatchBarcode)
		default:
			it.Candidates = append(it.Candidates, cands...)
		}
	}
	return nil
}
