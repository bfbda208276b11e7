// Package ranking orders catalog products by semantic relevance to a free
// text query. The scoring model itself is an external collaborator.
package ranking

import (
	"context"
	"sort"

	"github.com/utafrali/catalog-service/internal/domain"
)

// DefaultTopK is how many ranked products a semantic search returns.
const DefaultTopK = 10

// Candidate is the text a scorer sees for one product.
type Candidate struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

// Scorer assigns a relevance score to each candidate. Higher is better.
// Candidates missing from the result are treated as irrelevant.
type Scorer interface {
	Score(ctx context.Context, query string, candidates []Candidate) (map[int64]float64, error)
}

func CandidateOf(p domain.Product) Candidate {
	return Candidate{ID: p.ID, Text: p.Name + " " + p.Description}
}

// Rank scores products against query and returns the best topK, highest
// score first. Products with equal scores keep their input order.
func Rank(ctx context.Context, scorer Scorer, query string, products []domain.Product, topK int) ([]domain.Product, error) {
	if len(products) == 0 {
		return []domain.Product{}, nil
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	candidates := make([]Candidate, len(products))
	for i, p := range products {
		candidates[i] = CandidateOf(p)
	}

	scores, err := scorer.Score(ctx, query, candidates)
	if err != nil {
		return nil, err
	}

	ranked := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if _, ok := scores[p.ID]; ok {
			ranked = append(ranked, p)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i].ID] > scores[ranked[j].ID]
	})

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked, nil
}
