package models

import "time"

// SearchType selects the retrieval strategy used against a dataset index.
type SearchType string

const (
	SearchTypeMerge SearchType = "merge"
	SearchTypeMMR   SearchType = "mmr"
	SearchTypeSVM   SearchType = "svm"
	SearchTypeTFIDF SearchType = "tfidf"
)

// RetrievalParams controls chunking and similarity search for an expert.
type RetrievalParams struct {
	ChunkSize    int        `json:"chunk_size" validate:"gte=0"`
	ChunkOverlap int        `json:"chunk_overlap" validate:"gte=0"`
	TopK         int        `json:"top_k" validate:"gte=0"`
	Threshold    float64    `json:"threshold" validate:"gte=0,lte=1"`
	SearchType   SearchType `json:"search_type" validate:"omitempty,oneof=merge mmr svm tfidf"`
	MaxTokens    int        `json:"max_tokens" validate:"gte=0"`
}

// DefaultRetrievalParams returns the retrieval defaults applied when an
// expert is created without explicit parameters.
func DefaultRetrievalParams() RetrievalParams {
	return RetrievalParams{
		ChunkSize:  1000,
		TopK:       2,
		Threshold:  0.2,
		SearchType: SearchTypeMerge,
		MaxTokens:  3000,
	}
}

// Expert is a named configuration binding one or more datasets, a
// generation model, a prompt template and retrieval parameters. Dataset
// references are by name (weak); they are validated when the expert is
// written and resolved again at consult time.
type Expert struct {
	ID     string `json:"id"`
	UserID string `json:"user_id" validate:"required"`
	Name   string `json:"name" validate:"required,min=1,max=128"`

	// Key is "<user-id>/<name>", the per-user unique storage key
	Key string `json:"key"`

	// Datasets holds dataset names in declaration order
	Datasets []string `json:"datasets" validate:"required,min=1"`

	// Model in "provider:model" form, e.g. "anthropic:claude-sonnet-4-20250514"
	Model string `json:"model" validate:"required"`

	// PromptTemplate wraps the question; "{question}" and "{context}" are
	// substituted at consult time. Empty uses the built-in template.
	PromptTemplate string `json:"prompt_template,omitempty"`

	// SystemPrompt is prepended as the system message
	SystemPrompt string `json:"system_prompt,omitempty"`

	Retrieval RetrievalParams `json:"retrieval"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExpertKey builds the storage key for a user's expert name.
func ExpertKey(userID, name string) string {
	return userID + "/" + name
}

// References reports whether the expert references the given dataset name.
func (e *Expert) References(dataset string) bool {
	for _, name := range e.Datasets {
		if name == dataset {
			return true
		}
	}
	return false
}
