// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - ConfigStore: TOML-based client settings storage
//   - ProbeStore: user-editable metadata-sync probe prompts
package file
