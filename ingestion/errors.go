package ingestion

import "errors"

var (
	// ErrSourceRequired indicates the coordinator was built without a
	// content source.
	ErrSourceRequired = errors.New("ingestion: content source is required")

	// ErrStoreRequired indicates the coordinator was built without a
	// store.
	ErrStoreRequired = errors.New("ingestion: store is required")

	// ErrProviderRequired indicates the coordinator was built without an
	// AI provider.
	ErrProviderRequired = errors.New("ingestion: ai provider is required")
)
