package rag

import (
	"math"
	"sort"
	"strings"

	"github.com/peritus-ai/peritus/internal/interfaces"
	"github.com/peritus-ai/peritus/internal/models"
)

// cosineSimilarity computes cosine similarity between two vectors.
// Mismatched or zero-length vectors score zero.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

type scoredIndex struct {
	chunk *interfaces.IndexChunk
	score float64
}

// rankChunks scores stored chunks against the query vector and applies
// the expert's search strategy, threshold and top-k cap. Results come
// back in descending score order.
func rankChunks(chunks []*interfaces.IndexChunk, queryVec []float32, query string, params models.RetrievalParams) []interfaces.ScoredChunk {
	topK := params.TopK
	if topK <= 0 {
		topK = models.DefaultRetrievalParams().TopK
	}

	var scored []scoredIndex
	switch params.SearchType {
	case models.SearchTypeTFIDF:
		scored = scoreTFIDF(chunks, query)
	case models.SearchTypeSVM:
		scored = scoreSVM(chunks, queryVec)
	default:
		scored = scoreCosine(chunks, queryVec)
	}

	filtered := scored[:0]
	for _, s := range scored {
		if s.score >= params.Threshold {
			filtered = append(filtered, s)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].score > filtered[j].score })

	if params.SearchType == models.SearchTypeMMR {
		filtered = rerankMMR(filtered, topK)
	}

	if len(filtered) > topK {
		filtered = filtered[:topK]
	}

	out := make([]interfaces.ScoredChunk, 0, len(filtered))
	for _, s := range filtered {
		out = append(out, interfaces.ScoredChunk{
			DocumentID: s.chunk.DocumentID,
			Offset:     s.chunk.Offset,
			Score:      s.score,
			Text:       s.chunk.Text,
		})
	}
	return out
}

func scoreCosine(chunks []*interfaces.IndexChunk, queryVec []float32) []scoredIndex {
	scored := make([]scoredIndex, 0, len(chunks))
	for _, c := range chunks {
		scored = append(scored, scoredIndex{chunk: c, score: cosineSimilarity(queryVec, c.Embedding)})
	}
	return scored
}

// scoreTFIDF ranks chunks lexically without touching the embedding
// provider. Useful when the corpus is keyword-heavy or the embedding
// model is unavailable.
func scoreTFIDF(chunks []*interfaces.IndexChunk, query string) []scoredIndex {
	queryTerms := tokenize(query)
	if len(queryTerms) == 0 {
		return nil
	}

	docFreq := make(map[string]int)
	termCounts := make([]map[string]int, len(chunks))
	for i, c := range chunks {
		counts := make(map[string]int)
		for _, t := range tokenize(c.Text) {
			counts[t]++
		}
		termCounts[i] = counts
		for t := range counts {
			docFreq[t]++
		}
	}

	n := float64(len(chunks))
	scored := make([]scoredIndex, 0, len(chunks))
	for i, c := range chunks {
		var score float64
		total := 0
		for _, count := range termCounts[i] {
			total += count
		}
		if total == 0 {
			scored = append(scored, scoredIndex{chunk: c})
			continue
		}
		for _, term := range queryTerms {
			count, ok := termCounts[i][term]
			if !ok {
				continue
			}
			tf := float64(count) / float64(total)
			idf := math.Log((n+1)/(float64(docFreq[term])+1)) + 1
			score += tf * idf
		}
		scored = append(scored, scoredIndex{chunk: c, score: score})
	}
	return scored
}

const (
	svmEpochs = 100
	svmLambda = 0.01
)

// scoreSVM ranks chunks by the decision value of a linear classifier
// trained to separate the query from the corpus, with the query as the
// only positive example. Chunks the classifier struggles to push away
// from the query score highest. Scores are min-max normalized to [0,1]
// so the threshold filter stays meaningful.
func scoreSVM(chunks []*interfaces.IndexChunk, queryVec []float32) []scoredIndex {
	if len(queryVec) == 0 || len(chunks) == 0 {
		return nil
	}

	dim := len(queryVec)
	samples := make([][]float32, 0, len(chunks)+1)
	samples = append(samples, normalizeVec(queryVec))
	for _, c := range chunks {
		if len(c.Embedding) != dim {
			samples = append(samples, make([]float32, dim))
			continue
		}
		samples = append(samples, normalizeVec(c.Embedding))
	}

	w := trainLinearSVM(samples)

	raw := make([]float64, len(chunks))
	minScore, maxScore := math.Inf(1), math.Inf(-1)
	for i := range chunks {
		var dot float64
		for j, v := range samples[i+1] {
			dot += w[j] * float64(v)
		}
		raw[i] = dot
		if dot < minScore {
			minScore = dot
		}
		if dot > maxScore {
			maxScore = dot
		}
	}

	span := maxScore - minScore
	scored := make([]scoredIndex, 0, len(chunks))
	for i, c := range chunks {
		score := 0.5
		if span > 0 {
			score = (raw[i] - minScore) / span
		}
		scored = append(scored, scoredIndex{chunk: c, score: score})
	}
	return scored
}

// trainLinearSVM fits a hinge-loss linear classifier with sub-gradient
// descent (Pegasos). The first sample is the positive class; the rest
// are negatives.
func trainLinearSVM(samples [][]float32) []float64 {
	w := make([]float64, len(samples[0]))

	step := 1
	for epoch := 0; epoch < svmEpochs; epoch++ {
		for i, x := range samples {
			label := -1.0
			if i == 0 {
				label = 1.0
			}

			lr := 1.0 / (svmLambda * float64(step))
			step++

			var margin float64
			for j, v := range x {
				margin += w[j] * float64(v)
			}

			if label*margin < 1 {
				for j, v := range x {
					w[j] = (1-lr*svmLambda)*w[j] + lr*label*float64(v)
				}
			} else {
				for j := range w {
					w[j] *= 1 - lr*svmLambda
				}
			}
		}
	}
	return w
}

func normalizeVec(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// rerankMMR greedily picks diverse results: each pick maximizes
// relevance minus similarity to the chunks already selected.
func rerankMMR(scored []scoredIndex, topK int) []scoredIndex {
	const lambda = 0.7

	if len(scored) <= 1 {
		return scored
	}

	remaining := make([]scoredIndex, len(scored))
	copy(remaining, scored)

	var selected []scoredIndex
	for len(selected) < topK && len(remaining) > 0 {
		bestIdx := 0
		bestScore := math.Inf(-1)
		for i, cand := range remaining {
			maxSim := 0.0
			for _, sel := range selected {
				sim := cosineSimilarity(cand.chunk.Embedding, sel.chunk.Embedding)
				if sim > maxSim {
					maxSim = sim
				}
			}
			mmr := lambda*cand.score - (1-lambda)*maxSim
			if mmr > bestScore {
				bestScore = mmr
				bestIdx = i
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			out = append(out, f)
		}
	}
	return out
}
