// Package wizard provides the interactive first-run configuration assistant.
// It implements a driving adapter following hexagonal architecture principles.
package wizard

import (
	"github.com/anomot/get-biji-knowledge-skill/internal/core/ports/driving"
)

// Ports aggregates the driving port interfaces required by the wizard.
type Ports struct {
	// Registry manages knowledge base entries and global settings.
	Registry driving.RegistryService
}

// Validate ensures all required ports are set.
// Returns an error if any port is nil.
func (p *Ports) Validate() error {
	if p.Registry == nil {
		return ErrMissingRegistryService
	}
	return nil
}
