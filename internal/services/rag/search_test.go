package rag

import (
	"math"
	"testing"

	"github.com/peritus-ai/peritus/internal/interfaces"
	"github.com/peritus-ai/peritus/internal/models"
)

func TestCosineSimilarity(t *testing.T) {
	if got := cosineSimilarity([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Errorf("Identical vectors: expected 1, got %f", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{0, 1}); math.Abs(got) > 1e-9 {
		t.Errorf("Orthogonal vectors: expected 0, got %f", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}); got != 0 {
		t.Errorf("Mismatched lengths: expected 0, got %f", got)
	}
	if got := cosineSimilarity(nil, nil); got != 0 {
		t.Errorf("Empty vectors: expected 0, got %f", got)
	}
}

func testChunks() []*interfaces.IndexChunk {
	return []*interfaces.IndexChunk{
		{DocumentID: "d1", Offset: 0, Text: "exact match", Embedding: []float32{1, 0}},
		{DocumentID: "d1", Offset: 100, Text: "close match", Embedding: []float32{0.9, 0.1}},
		{DocumentID: "d2", Offset: 0, Text: "unrelated", Embedding: []float32{0, 1}},
	}
}

func TestRankChunksThresholdAndTopK(t *testing.T) {
	params := models.RetrievalParams{TopK: 2, Threshold: 0.2, SearchType: models.SearchTypeMerge}
	results := rankChunks(testChunks(), []float32{1, 0}, "", params)

	if len(results) != 2 {
		t.Fatalf("Expected 2 results after threshold+topK, got %d", len(results))
	}
	if results[0].Text != "exact match" {
		t.Errorf("Expected best match first, got %q", results[0].Text)
	}
	if results[0].Score < results[1].Score {
		t.Error("Results not in descending score order")
	}
	for _, r := range results {
		if r.Score < 0.2 {
			t.Errorf("Result below threshold: %f", r.Score)
		}
	}
}

func TestRankChunksTopKDefaults(t *testing.T) {
	params := models.RetrievalParams{Threshold: 0}
	results := rankChunks(testChunks(), []float32{1, 0}, "", params)
	if len(results) > models.DefaultRetrievalParams().TopK {
		t.Errorf("Expected default topK cap, got %d results", len(results))
	}
}

func TestRankChunksTFIDF(t *testing.T) {
	chunks := []*interfaces.IndexChunk{
		{DocumentID: "d1", Text: "badger storage engine tuning"},
		{DocumentID: "d2", Text: "cooking recipes for dinner"},
		{DocumentID: "d3", Text: "badger badger configuration"},
	}
	params := models.RetrievalParams{TopK: 2, SearchType: models.SearchTypeTFIDF}

	// No query vector needed for lexical search
	results := rankChunks(chunks, nil, "badger configuration", params)
	if len(results) == 0 {
		t.Fatal("Expected lexical matches")
	}
	if results[0].DocumentID != "d3" {
		t.Errorf("Expected d3 (both terms) first, got %s", results[0].DocumentID)
	}
	for _, r := range results {
		if r.DocumentID == "d2" {
			t.Error("Unrelated chunk should not outrank matches")
		}
	}
}

func TestRankChunksSVM(t *testing.T) {
	chunks := []*interfaces.IndexChunk{
		{DocumentID: "d1", Text: "on topic", Embedding: []float32{1, 0}},
		{DocumentID: "d2", Text: "off topic", Embedding: []float32{0, 1}},
	}
	params := models.RetrievalParams{TopK: 2, Threshold: 0, SearchType: models.SearchTypeSVM}

	results := rankChunks(chunks, []float32{1, 0}, "", params)
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Text != "on topic" {
		t.Errorf("Expected query-aligned chunk first, got %q", results[0].Text)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("Expected strict score separation, got %f vs %f", results[0].Score, results[1].Score)
	}
	for _, r := range results {
		if r.Score < 0 || r.Score > 1 {
			t.Errorf("Score %f outside normalized range", r.Score)
		}
	}
}

func TestScoreSVMSingleChunk(t *testing.T) {
	chunks := []*interfaces.IndexChunk{
		{DocumentID: "d1", Text: "only", Embedding: []float32{1, 0}},
	}

	scored := scoreSVM(chunks, []float32{1, 0})
	if len(scored) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(scored))
	}
	// A single candidate has no spread to normalize over; it must still
	// clear the default threshold rather than vanish
	if scored[0].score < models.DefaultRetrievalParams().Threshold {
		t.Errorf("Single candidate scored below default threshold: %f", scored[0].score)
	}
}

func TestRerankMMRDiversifies(t *testing.T) {
	// An exact duplicate of the top hit versus a distinct chunk with a
	// lower relevance score
	scored := []scoredIndex{
		{chunk: &interfaces.IndexChunk{Text: "top", Embedding: []float32{1, 0}}, score: 0.9},
		{chunk: &interfaces.IndexChunk{Text: "duplicate", Embedding: []float32{1, 0}}, score: 0.85},
		{chunk: &interfaces.IndexChunk{Text: "distinct", Embedding: []float32{0, 1}}, score: 0.5},
	}

	results := rerankMMR(scored, 2)
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].chunk.Text != "top" {
		t.Errorf("Most relevant chunk should stay first, got %q", results[0].chunk.Text)
	}
	if results[1].chunk.Text != "distinct" {
		t.Errorf("MMR should pick the diverse chunk second, got %q", results[1].chunk.Text)
	}
}
