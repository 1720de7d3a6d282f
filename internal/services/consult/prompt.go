package consult

import (
	"fmt"
	"strings"

	"github.com/peritus-ai/peritus/internal/models"
)

// defaultPromptTemplate is used when an expert has none. "{context}" and
// "{question}" are substituted at consult time.
const defaultPromptTemplate = `Use the following reference material to answer the question. If the references do not contain the answer, say so rather than guessing.

Reference material:
{context}

Question: {question}`

// renderContext formats merged chunks as a numbered reference block with
// source attribution.
func renderContext(chunks []models.RetrievedChunk) string {
	if len(chunks) == 0 {
		return "(no relevant material found)"
	}

	var b strings.Builder
	for i, chunk := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] (%s / %s)\n%s", i+1, chunk.Dataset, chunk.DocumentID, chunk.Text)
	}
	return b.String()
}

// buildMessages assembles the conversation sent to the provider: prior
// history verbatim, then the templated question as the final user turn.
func buildMessages(expert *models.Expert, req *models.ConsultRequest, chunks []models.RetrievedChunk) []models.Turn {
	template := expert.PromptTemplate
	if template == "" {
		template = defaultPromptTemplate
	}

	prompt := strings.ReplaceAll(template, "{context}", renderContext(chunks))
	prompt = strings.ReplaceAll(prompt, "{question}", req.Question)

	messages := make([]models.Turn, 0, len(req.History)+1)
	messages = append(messages, req.History...)
	messages = append(messages, models.Turn{Role: "user", Content: prompt})
	return messages
}
