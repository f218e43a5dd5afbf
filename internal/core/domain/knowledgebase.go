package domain

import (
	"strings"
	"time"
)

const unknownDescription = "Unknown"

// LastUpdatedLayout is the timestamp format stored in a knowledge base's
// LastUpdated field, matching the registry file convention.
const LastUpdatedLayout = "2006-01-02 15:04"

// DescriptionStatus tracks the lifecycle of a knowledge base description.
type DescriptionStatus string

// Available description states.
const (
	// DescriptionEmpty means no description has been provided.
	DescriptionEmpty DescriptionStatus = "empty"

	// DescriptionPending means automatic generation has been requested
	// but has not completed yet.
	DescriptionPending DescriptionStatus = "pending"

	// DescriptionReady means a usable description is present.
	DescriptionReady DescriptionStatus = "ready"

	// DescriptionFailed means automatic generation was attempted and failed.
	DescriptionFailed DescriptionStatus = "failed"
)

// IsValid returns true if the status is recognised.
func (s DescriptionStatus) IsValid() bool {
	switch s {
	case DescriptionEmpty, DescriptionPending, DescriptionReady, DescriptionFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s DescriptionStatus) String() string {
	return string(s)
}

// Description returns a human-readable description of the status.
func (s DescriptionStatus) Description() string {
	switch s {
	case DescriptionEmpty:
		return "No description"
	case DescriptionPending:
		return "Generation pending"
	case DescriptionReady:
		return "Ready"
	case DescriptionFailed:
		return "Generation failed"
	default:
		return unknownDescription
	}
}

// Legacy registry files encode generation state as sentinel strings stored
// inside the description field itself.
const (
	legacyPendingSentinel = "-auto"
	legacyFailedSentinel  = "-auto-failed"
)

// ParseLegacyDescription splits a raw description value from an older
// registry file into its status and the actual description text.
// Sentinel values ("-auto", "-auto-timeout", "-auto-failed", "-auto-error")
// carry no text of their own.
func ParseLegacyDescription(raw string) (DescriptionStatus, string) {
	switch {
	case raw == "":
		return DescriptionEmpty, ""
	case raw == legacyPendingSentinel:
		return DescriptionPending, ""
	case strings.HasPrefix(raw, legacyPendingSentinel+"-"):
		return DescriptionFailed, ""
	default:
		return DescriptionReady, raw
	}
}

// LegacyDescription renders a status and description back into the single
// string field older registry files expect. Ready text round-trips as-is.
func LegacyDescription(status DescriptionStatus, description string) string {
	switch status {
	case DescriptionPending:
		return legacyPendingSentinel
	case DescriptionFailed:
		return legacyFailedSentinel
	case DescriptionEmpty:
		return ""
	default:
		return description
	}
}

// KnowledgeBase is a named remote corpus searched through one API key.
type KnowledgeBase struct {
	// Name uniquely identifies the knowledge base within the registry.
	Name string `json:"name"`

	// APIKey is the opaque bearer secret for the remote API.
	APIKey string `json:"api_key"`

	// TopicID identifies the corpus on the remote side.
	TopicID string `json:"topic_id"`

	// Description is free text used by the resolver's routing mode.
	// Empty unless DescriptionStatus is ready.
	Description string `json:"description"`

	// DescriptionStatus tracks whether Description is usable.
	DescriptionStatus DescriptionStatus `json:"description_status"`

	// LastUpdated records when the description last changed, in
	// LastUpdatedLayout format. Empty when never updated.
	LastUpdated string `json:"last_updated"`
}

// HasDescription returns true if the knowledge base carries routable text.
func (kb KnowledgeBase) HasDescription() bool {
	return kb.DescriptionStatus == DescriptionReady && kb.Description != ""
}

// Touch stamps LastUpdated with the given time.
func (kb *KnowledgeBase) Touch(at time.Time) {
	kb.LastUpdated = at.Format(LastUpdatedLayout)
}

// GlobalSettings holds registry-wide behaviour toggles.
// Missing keys in the backing file resolve to these defaults, never errors.
type GlobalSettings struct {
	// Refs controls whether citations are requested and shown.
	Refs bool `json:"refs"`

	// OutputDir is where transcript files are written.
	// Empty means unset (environment or working directory decides).
	OutputDir string `json:"output_dir"`
}

// DefaultGlobalSettings returns settings with documented defaults.
func DefaultGlobalSettings() GlobalSettings {
	return GlobalSettings{
		Refs:      true,
		OutputDir: "",
	}
}

// SelectionMode controls how the resolver picks target knowledge bases.
type SelectionMode string

// Available selection modes.
const (
	// ModeNone defers to the sticky scope, then the default entry.
	ModeNone SelectionMode = ""

	// ModeDefault targets the single default knowledge base.
	ModeDefault SelectionMode = "default"

	// ModeAuto routes by description/query word overlap.
	ModeAuto SelectionMode = "auto"

	// ModeAll broadcasts to every registered knowledge base.
	ModeAll SelectionMode = "all"

	// ModeExplicit records a by-name selection in the sticky scope.
	// It is never passed in by callers; explicit names imply it.
	ModeExplicit SelectionMode = "explicit"
)

// IsValid returns true if the mode is one a caller may pass.
func (m SelectionMode) IsValid() bool {
	switch m {
	case ModeNone, ModeDefault, ModeAuto, ModeAll:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (m SelectionMode) String() string {
	return string(m)
}

// Description returns a human-readable description of the mode.
func (m SelectionMode) Description() string {
	switch m {
	case ModeNone:
		return "Sticky (reuse last scope)"
	case ModeDefault:
		return "Default knowledge base"
	case ModeAuto:
		return "Auto (semantic routing)"
	case ModeAll:
		return "All knowledge bases"
	case ModeExplicit:
		return "Explicit names"
	default:
		return unknownDescription
	}
}

// ScopeState is the resolver's memory of the last selection, reused when a
// later call names no mode and no knowledge bases. It lives for one process
// only and is owned by whoever drives the resolver; it is never persisted.
type ScopeState struct {
	// LastMode is the mode of the most recent resolution.
	LastMode SelectionMode

	// LastNames are the names resolved most recently, in registry order.
	LastNames []string
}
