package matching

import (
	"strings"

	"github.com/shelfsync/shelfsync-backend/internal/platform/lemma"
	"github.com/shelfsync/shelfsync-backend/internal/repos"
)

// lemmaPass proposes candidates via keyword overlap on lemmatized names,
// catching items phrased too differently for the vector index to score well.
type lemmaPass struct {
	lemmas   lemma.Client
	products repos.ProductRepo
	limit    int
}

func NewLemmaPass(lemmas lemma.Client, products repos.ProductRepo) Pass {
	return &lemmaPass{lemmas: lemmas, products: products, limit: 5}
}

func (p *lemmaPass) Name() string { return "lemma" }

func (p *lemmaPass) Apply(run *Run) error {
	unresolved := withNames(run.Doc.Unresolved())
	if len(unresolved) == 0 {
		return nil
	}

	names := make([]string, len(unresolved))
	for i, it := range unresolved {
		names[i] = strings.TrimSpace(it.SupplierItemName)
	}

	lemmaLists, err := p.lemmas.Lemmatize(run.Ctx, names)
	if err != nil {
		return err
	}

	for i, it := range unresolved {
		if len(lemmaLists[i]) == 0 {
			continue
		}
		cands, sErr := p.products.SearchByLemmas(run.Ctx, nil, run.StoreID, lemmaLists[i], p.limit)
		if sErr != nil {
			return sErr
		}
		it.Candidates = append(it.Candidates, cands...)
	}
	return nil
}
