// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - RegistryStore: Knowledge-base registry persistence
//   - SessionStore: Conversation session persistence
//   - SearchAPI: The remote streaming search and recall endpoints
//   - TranscriptAccumulator: Markdown artifact accumulation
//   - PlanBook: Batch task-plan file maintenance
//   - ConfigStore: Client-level application settings
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
