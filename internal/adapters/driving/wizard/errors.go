package wizard

import "errors"

// ErrMissingRegistryService is returned when the registry service is not provided.
var ErrMissingRegistryService = errors.New("wizard: registry service is required")
