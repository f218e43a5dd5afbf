package driven

import "github.com/anomot/get-biji-knowledge-skill/internal/core/domain"

// RegistryStore persists the knowledge-base registry.
// Implementations load the whole registry, mutate it, and write it back
// as one document; concurrent external writers are last-writer-wins.
type RegistryStore interface {
	// Save stores or updates a knowledge base. New entries append to
	// the registry iteration order; existing entries keep their slot.
	Save(kb domain.KnowledgeBase) error

	// Get retrieves a knowledge base by name.
	// Returns domain.ErrNotFound when absent.
	Get(name string) (*domain.KnowledgeBase, error)

	// Delete removes a knowledge base.
	// Returns domain.ErrNotFound when absent.
	Delete(name string) error

	// List returns all knowledge bases in registry iteration order.
	List() ([]domain.KnowledgeBase, error)

	// DefaultName returns the default entry's name, empty when unset.
	DefaultName() (string, error)

	// SetDefaultName updates the default pointer. An empty name clears it.
	SetDefaultName(name string) error

	// Settings returns the global settings with defaults applied to
	// missing keys.
	Settings() (domain.GlobalSettings, error)

	// SaveSettings persists the global settings.
	SaveSettings(settings domain.GlobalSettings) error

	// Path returns the backing file path.
	Path() string
}
