package driving

import "github.com/anomot/get-biji-knowledge-skill/internal/core/domain"

// RegistryService manages the knowledge-base registry.
// It owns the default-pointer invariant: a non-empty registry always has
// exactly one default entry.
type RegistryService interface {
	// Add registers a new knowledge base. The first entry ever added
	// becomes the default automatically; setDefault forces it for
	// later entries. Duplicate names return domain.ErrAlreadyExists.
	Add(kb domain.KnowledgeBase, setDefault bool) error

	// Upsert adds or wholesale-replaces a knowledge base, keeping its
	// registry position on replace. Used by surfaces that edit
	// existing entries (the web companion form).
	Upsert(kb domain.KnowledgeBase, setDefault bool) error

	// Remove deletes a knowledge base. Removing the default entry
	// reassigns the default to the first surviving entry, or clears
	// it when the registry empties.
	Remove(name string) error

	// Get retrieves one knowledge base by name.
	Get(name string) (*domain.KnowledgeBase, error)

	// List returns all knowledge bases in registry order.
	List() ([]domain.KnowledgeBase, error)

	// Default returns the default knowledge base, or
	// domain.ErrNoKnowledgeBase when none is configured.
	Default() (*domain.KnowledgeBase, error)

	// SetDefault marks an existing entry as the default.
	SetDefault(name string) error

	// SetDescription updates an entry's description state and text,
	// stamping its last-updated time.
	SetDescription(name string, status domain.DescriptionStatus, text string) error

	// Settings returns the global settings with defaults applied.
	Settings() (domain.GlobalSettings, error)

	// SetRefs toggles citation display.
	SetRefs(enabled bool) error

	// SetOutputDir points transcript output at a directory, creating
	// it when missing. Failures abort before any registry mutation.
	SetOutputDir(dir string) error
}
