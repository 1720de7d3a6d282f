package consult

import (
	"sort"

	"github.com/peritus-ai/peritus/internal/interfaces"
	"github.com/peritus-ai/peritus/internal/models"
)

// mergeChunks combines per-dataset retrieval results into one ranked
// list. Results are flattened in the expert's dataset declaration order
// and stably sorted by descending score, so ties keep dataset order and
// within a dataset the engine's own ordering. The merged list is capped
// at topK.
func mergeChunks(datasetNames []string, perDataset [][]interfaces.ScoredChunk, topK int) []models.RetrievedChunk {
	var merged []models.RetrievedChunk
	for i, name := range datasetNames {
		for _, chunk := range perDataset[i] {
			merged = append(merged, models.RetrievedChunk{
				Dataset:    name,
				DocumentID: chunk.DocumentID,
				Offset:     chunk.Offset,
				Score:      chunk.Score,
				Text:       chunk.Text,
			})
		}
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })

	if topK > 0 && len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}
