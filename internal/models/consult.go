package models

import "time"

// Turn is one prior exchange in a consult conversation.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ConsultRequest is a single question against a named expert.
type ConsultRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	Expert   string `json:"expert" validate:"required"`
	Question string `json:"question" validate:"required"`
	History  []Turn `json:"history,omitempty"`
}

// RetrievedChunk is one cited source chunk in a consult response.
type RetrievedChunk struct {
	Dataset    string  `json:"dataset"`
	DocumentID string  `json:"document_id"`
	Offset     int     `json:"offset"` // chunk start offset in the source document
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
}

// ConsultResponse carries the generated answer plus the retrieval
// citations and the provider/model that actually served the request
// (credential resolution may fall through to a system default different
// from what the expert nominally names). Responses are ephemeral; the
// core does not persist them.
type ConsultResponse struct {
	Answer   string           `json:"answer"`
	Chunks   []RetrievedChunk `json:"chunks"`
	Provider string           `json:"provider"`
	Model    string           `json:"model"`
	Latency  time.Duration    `json:"latency"`
}
