package models

import "time"

// DatasetStatus tracks the state of a dataset's vector index.
type DatasetStatus string

const (
	// DatasetStatusPending means the index is absent or stale and must be
	// (re)built before the dataset can serve retrieval.
	DatasetStatusPending DatasetStatus = "pending"
	// DatasetStatusIndexed means the index is current.
	DatasetStatusIndexed DatasetStatus = "indexed"
	// DatasetStatusFailed means the last build attempt errored. The next
	// consult retries the build rather than serving a partial index.
	DatasetStatusFailed DatasetStatus = "failed"
)

// SourceDocument is a reference to one source document in a dataset.
type SourceDocument struct {
	ID   string `json:"id"`   // doc_<uuid>
	Path string `json:"path"` // filesystem path under the document source directory
}

// Dataset is a named, user-owned collection of source documents plus the
// embedding model used to index them. Names are unique per user.
type Dataset struct {
	ID     string `json:"id"`
	UserID string `json:"user_id" validate:"required"`
	Name   string `json:"name" validate:"required,min=1,max=128"`

	// Key is "<user-id>/<name>", the per-user unique storage key
	Key string `json:"key"`

	// Sources is the ordered list of documents in the dataset
	Sources []SourceDocument `json:"sources"`

	// EmbeddingModel in "provider:model" form, e.g. "gemini:gemini-embedding-001"
	EmbeddingModel string `json:"embedding_model" validate:"required"`

	Status    DatasetStatus `json:"status"`
	LastError string        `json:"last_error,omitempty"` // message from the last failed build
	IndexedAt *time.Time    `json:"indexed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DatasetKey builds the storage key for a user's dataset name.
func DatasetKey(userID, name string) string {
	return userID + "/" + name
}

// HasSource reports whether the dataset contains a document with the given path.
func (d *Dataset) HasSource(path string) bool {
	for _, s := range d.Sources {
		if s.Path == path {
			return true
		}
	}
	return false
}
