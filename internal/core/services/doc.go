// Package services implements the driving port interfaces.
// Services contain the core business logic - knowledge-base
// resolution, stream decoding, search orchestration, conversation
// tracking - and orchestrate calls to driven ports (adapters).
package services
