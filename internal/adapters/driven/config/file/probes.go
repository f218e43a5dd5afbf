package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/ports/driven"
)

// Ensure ProbeStore implements the interface.
var _ driven.ProbeStore = (*ProbeStore)(nil)

// ProbeStore loads metadata-sync probe prompts from user-editable files on
// disk, with fallback to embedded defaults.
//
// The store uses lazy initialisation - files are only created when first
// accessed, not in the constructor. This makes testing easier and avoids
// unexpected I/O.
type ProbeStore struct {
	mu       sync.RWMutex
	probeDir string
	cache    map[string]string
	initOnce sync.Once
	initErr  error
}

// defaultProbes contains the embedded probe texts. These are used when user
// files don't exist and as the initial content for new files. Each probe
// interrogates the knowledge base from one angle so the synchroniser can
// assemble a rounded description.
var defaultProbes = map[string]string{
	driven.ProbeThemes: `这个知识库主要涵盖哪些核心主题和领域？请列出最重要的5-8个关键词标签。`,

	driven.ProbeContent: `这个知识库的内容类型有哪些特点？主要记录了什么样的内容？`,

	driven.ProbeScenarios: `这个知识库适用于什么场景？可以解决什么问题或支持什么决策？`,

	driven.ProbeSingle: `请用150字以内总结这个知识库：
1. 核心主题和领域（用关键词标签形式）
2. 主要内容类型
3. 适用场景

格式：该库主要涵盖 [领域]，核心关键词包括 [标签1、标签2、标签3...]，重点关注 [内容特点]，适用于 [场景]。`,
}

// NewProbeStore creates a new file-based probe store.
// If probeDir is empty, defaults to ~/.config/biji/probes/.
//
// The constructor does not perform any I/O - directory creation and
// file writes happen lazily on first Load() call.
func NewProbeStore(probeDir string) (*ProbeStore, error) {
	if probeDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		probeDir = filepath.Join(home, ".config", "biji", "probes")
	}

	return &ProbeStore{
		probeDir: probeDir,
		cache:    make(map[string]string),
	}, nil
}

// Load returns the probe text for the given name.
// On first call, initialises the probe directory and creates default files.
// Returns cached value if available, otherwise loads from file.
// Falls back to the embedded default if the file doesn't exist.
func (s *ProbeStore) Load(name string) (string, error) {
	// Ensure directory and defaults exist (lazy init)
	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		// Fall back to embedded defaults if init failed
		if probe, ok := defaultProbes[name]; ok {
			return probe, nil
		}
		return "", fmt.Errorf("probe store init failed: %w", s.initErr)
	}

	// Check cache first (read lock)
	s.mu.RLock()
	if probe, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return probe, nil
	}
	s.mu.RUnlock()

	// Load from file (no lock held during I/O)
	probe, err := s.loadFromFile(name)
	if err != nil {
		// Fall back to embedded default
		if defaultProbe, ok := defaultProbes[name]; ok {
			return defaultProbe, nil
		}
		return "", fmt.Errorf("load probe %q: %w", name, err)
	}

	// Cache the result (write lock)
	// Use double-check pattern to avoid overwriting concurrent loads
	s.mu.Lock()
	if _, ok := s.cache[name]; !ok {
		s.cache[name] = probe
	} else {
		// Another goroutine loaded it first, use their value
		probe = s.cache[name]
	}
	s.mu.Unlock()

	return probe, nil
}

// Reload clears the probe cache, forcing fresh loads from disk.
func (s *ProbeStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the probe directory path.
func (s *ProbeStore) Dir() string {
	return s.probeDir
}

// initialise creates the probe directory and default files.
// Called once via sync.Once on first Load().
func (s *ProbeStore) initialise() {
	// Create directory
	if err := os.MkdirAll(s.probeDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create probe directory: %w", err)
		return
	}

	// Create default probe files (only if they don't exist)
	for name, content := range defaultProbes {
		path := filepath.Join(s.probeDir, name+".txt")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				s.initErr = fmt.Errorf("create default probe %q: %w", name, err)
				return
			}
		}
	}

	// Create README
	if err := s.createReadme(); err != nil {
		s.initErr = err
	}
}

// loadFromFile reads a probe from disk.
func (s *ProbeStore) loadFromFile(name string) (string, error) {
	path := filepath.Join(s.probeDir, name+".txt")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// createReadme writes a README file explaining the probes directory.
func (s *ProbeStore) createReadme() error {
	path := filepath.Join(s.probeDir, "README.md")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil // Already exists or stat error (ignore)
	}

	content := `# biji 元查询模板

This directory contains the probe questions ` + "`biji sync`" + ` sends to a
knowledge base when generating its description.

## Files

- ` + "`themes.txt`" + ` - Asks for the core topics and keyword tags
- ` + "`content.txt`" + ` - Asks what kinds of material the corpus records
- ` + "`scenarios.txt`" + ` - Asks what the corpus is useful for
- ` + "`single.txt`" + ` - One-shot variant used with ` + "`--rounds 1`" + `

## Customisation

Edit any file to change how the synchroniser interrogates your knowledge
bases. Changes take effect on the next ` + "`biji sync`" + ` run. Delete a
file to restore the built-in default.
`
	return os.WriteFile(path, []byte(content), 0600)
}
