package matching

import (
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/shelfsync/shelfsync-backend/internal/platform/openai"
	"github.com/shelfsync/shelfsync-backend/internal/platform/pinecone"
	"github.com/shelfsync/shelfsync-backend/internal/repos"
	"github.com/shelfsync/shelfsync-backend/internal/types"
)

// vectorPass proposes candidates by embedding the supplier item names and
// querying the store's namespace in the vector index. It never resolves on
// its own; similarity is advisory until an arbitration pass decides.
type vectorPass struct {
	ai       openai.Client
	vectors  pinecone.VectorStore
	products repos.ProductRepo
	topK     int
}

func NewVectorPass(ai openai.Client, vectors pinecone.VectorStore, products repos.ProductRepo) Pass {
	return &vectorPass{ai: ai, vectors: vectors, products: products, topK: 5}
}

func (p *vectorPass) Name() string { return "vector" }

func (p *vectorPass) Apply(run *Run) error {
	unresolved := withNames(run.Doc.Unresolved())
	if len(unresolved) == 0 {
		return nil
	}

	names := make([]string, len(unresolved))
	for i, it := range unresolved {
		names[i] = strings.TrimSpace(it.SupplierItemName)
	}

	embeddings, err := p.ai.Embed(run.Ctx, names)
	if err != nil {
		return err
	}

	catalog, err := p.products.GetByStoreID(run.Ctx, nil, run.StoreID)
	if err != nil {
		return err
	}
	byID := make(map[string]*types.Product, len(catalog))
	for _, prod := range catalog {
		byID[prod.ProductID] = prod
	}

	matches := make([][]pinecone.VectorMatch, len(unresolved))
	g, gctx := errgroup.WithContext(run.Ctx)
	for i := range unresolved {
		g.Go(func() error {
			found, qErr := p.vectors.QueryMatches(gctx, run.StoreID, embeddings[i], p.topK)
			if qErr != nil {
				return qErr
			}
			matches[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, it := range unresolved {
		for _, m := range matches[i] {
			prod := byID[m.ID]
			if prod == nil {
				// Stale vector for a product deleted since the last sync.
				continue
			}
			it.Candidates = append(it.Candidates, types.ProductCandidate{
				ProductID: prod.ProductID,
				Name:      prod.Name,
				Unit:      prod.Unit,
				Score:     m.Score,
			})
		}
	}
	return nil
}
