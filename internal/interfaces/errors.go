package interfaces

import "errors"

// Error taxonomy for registry and consult operations. Services wrap these
// with context via fmt.Errorf("...: %w", err); callers classify with
// errors.Is.
var (
	// ErrDuplicateName - create collided with an existing name for the user
	ErrDuplicateName = errors.New("name already exists")

	// ErrDatasetNotFound - no dataset with that name for the user
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrExpertNotFound - no expert with that name for the user
	ErrExpertNotFound = errors.New("expert not found")

	// ErrUserNotFound - no user with that ID
	ErrUserNotFound = errors.New("user not found")

	// ErrDatasetInUse - dataset delete blocked by an expert reference
	ErrDatasetInUse = errors.New("dataset is referenced by an expert")

	// ErrDatasetUnresolvable - an expert-referenced dataset no longer exists
	ErrDatasetUnresolvable = errors.New("referenced dataset no longer exists")

	// ErrCredentialNotFound - no credential stored for the (owner, provider) pair
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrCredentialMissing - no usable credential or local model for the
	// provider an expert is configured with
	ErrCredentialMissing = errors.New("no usable credential for provider")

	// ErrIndexBuildFailed - the RAG engine could not embed/index a dataset
	ErrIndexBuildFailed = errors.New("index build failed")

	// ErrGenerationFailed - the RAG engine's generation call errored after
	// the retry budget was exhausted
	ErrGenerationFailed = errors.New("generation failed")
)
