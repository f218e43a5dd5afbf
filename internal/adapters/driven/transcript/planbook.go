package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
	"github.com/anomot/get-biji-knowledge-skill/internal/core/ports/driven"
)

// Ensure PlanBook implements the interface.
var _ driven.PlanBook = (*PlanBook)(nil)

// planFileName is the fixed checklist file name; a new plan run
// overwrites the previous one.
const planFileName = "search_plan.md"

// recordGuardRunes caps how much of a summary one record may carry.
const recordGuardRunes = 500

// PlanBook maintains the batch-run checklist file. The checklist is
// append-only after creation: task boxes are never ticked, the record
// section is the progress log.
type PlanBook struct {
	mu        sync.Mutex
	outputDir string
	planPath  string

	// now is swappable for deterministic tests.
	now func() time.Time
}

// NewPlanBook creates a plan book writing under dir, which is created
// if missing. Pass the result of ResolveOutputDir.
func NewPlanBook(dir string) (*PlanBook, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &PlanBook{outputDir: dir, now: time.Now}, nil
}

// Create writes the plan file with its task checklist and returns its
// path.
func (p *PlanBook) Create(description string, tasks []domain.PlanTask) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "# 任务：%s\n\n", description)
	b.WriteString("- **状态**: 进行中\n")
	fmt.Fprintf(&b, "- **创建时间**: %s\n\n", p.now().Format(startedAtLayout))
	b.WriteString("## 检索目标\n\n")
	for i, task := range tasks {
		fmt.Fprintf(&b, "%d. [ ] 在 [%s] 中搜索：%s\n", i+1, task.KnowledgeBase, task.Query)
	}
	fmt.Fprintf(&b, "\n%d. [ ] 整合分析并输出报告\n\n", len(tasks)+1)
	b.WriteString("---\n\n")
	b.WriteString("## 检索记录\n\n")
	b.WriteString("（每次搜索后在此记录核心结论）\n\n")

	path := filepath.Join(p.outputDir, planFileName)
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("create plan: %w", err)
	}
	p.planPath = path
	return path, nil
}

// Record appends one task's summary block to the plan file. A missing
// plan file is ignored, matching the legacy behaviour.
func (p *PlanBook) Record(task domain.PlanTask, summary string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.planPath == "" {
		return nil
	}
	if _, err := os.Stat(p.planPath); os.IsNotExist(err) {
		return nil
	}

	if runes := []rune(summary); len(runes) > recordGuardRunes {
		summary = string(runes[:recordGuardRunes]) + "..."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "### [%s] 来源: %s | 查询: %s\n\n", p.now().Format(turnTimeLayout), task.KnowledgeBase, task.Query)
	fmt.Fprintf(&b, "%s\n\n", summary)
	b.WriteString("---\n\n")

	if err := appendFile(p.planPath, b.String()); err != nil {
		return fmt.Errorf("append plan record: %w", err)
	}
	return nil
}
