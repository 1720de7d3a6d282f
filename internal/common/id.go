package common

import (
	"github.com/google/uuid"
)

// NewUserID generates a unique user ID with the "usr_" prefix
func NewUserID() string {
	return "usr_" + uuid.New().String()
}

// NewDatasetID generates a unique dataset ID with the "ds_" prefix
func NewDatasetID() string {
	return "ds_" + uuid.New().String()
}

// NewExpertID generates a unique expert ID with the "ex_" prefix
func NewExpertID() string {
	return "ex_" + uuid.New().String()
}

// NewDocumentID generates a unique document ID with the "doc_" prefix
func NewDocumentID() string {
	return "doc_" + uuid.New().String()
}
