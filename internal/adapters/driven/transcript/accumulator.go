// Package transcript writes the Markdown artifacts of a search
// session: the question/answer record, its companion citations file,
// and the batch-run plan book. File shapes match the documents the
// legacy tooling produced, byte for byte.
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

// Ensure Accumulator implements the interface.
var _ driven.TranscriptAccumulator = (*Accumulator)(nil)

// startedAtLayout is the header timestamp format.
const startedAtLayout = "2006-01-02 15:04:05"

// turnTimeLayout is the per-turn timestamp format.
const turnTimeLayout = "15:04:05"

// ResolveOutputDir applies the output directory priority: an explicit
// setting wins, then $BIJI_OUTPUT_DIR, then the working directory.
func ResolveOutputDir(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv("BIJI_OUTPUT_DIR"); env != "" {
		return env
	}
	return "."
}

// Accumulator appends turns to one Q&A/citations file pair. The pair
// is stamped with the first turn's knowledge base and the wall clock,
// and is reused for the accumulator's whole lifetime: a restarted
// process starts a fresh pair even for the same session.
type Accumulator struct {
	mu        sync.Mutex
	outputDir string
	baseName  string
	qaPath    string
	refsPath  string
	startedAt time.Time

	// now is swappable for deterministic tests.
	now func() time.Time
}

// NewAccumulator creates an accumulator writing under dir, which is
// created if missing. Pass the result of ResolveOutputDir.
func NewAccumulator(dir string) (*Accumulator, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Accumulator{outputDir: dir, now: time.Now}, nil
}

// AppendTurn appends one completed turn. The Q&A file is created with
// its header on the first call; the citations file is created lazily
// on the first call that actually carries citations.
func (a *Accumulator) AppendTurn(turn domain.TranscriptTurn) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.baseName == "" {
		a.startedAt = a.now()
		a.baseName = fmt.Sprintf("get_%s_%s", turn.KnowledgeBase, a.startedAt.Format(domain.SessionIDLayout))
	}

	if a.qaPath == "" {
		path := filepath.Join(a.outputDir, a.baseName+".md")
		if err := os.WriteFile(path, []byte(a.header("# Get笔记查询记录", turn)), 0644); err != nil {
			return fmt.Errorf("create qa file: %w", err)
		}
		a.qaPath = path
	}

	turnTime := a.now().Format(turnTimeLayout)
	if err := appendFile(a.qaPath, a.qaBlock(turn, turnTime)); err != nil {
		return fmt.Errorf("append qa: %w", err)
	}

	if len(turn.Citations) == 0 {
		return nil
	}
	if a.refsPath == "" {
		path := filepath.Join(a.outputDir, a.baseName+"_引用.md")
		if err := os.WriteFile(path, []byte(a.header("# Get笔记引用记录", turn)), 0644); err != nil {
			return fmt.Errorf("create citations file: %w", err)
		}
		a.refsPath = path
	}
	if err := appendFile(a.refsPath, refsBlock(turn, turnTime)); err != nil {
		return fmt.Errorf("append citations: %w", err)
	}
	return nil
}

// QAPath returns the Q&A file path, empty before the first turn.
func (a *Accumulator) QAPath() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.qaPath
}

// CitationsPath returns the citations file path, empty until a turn
// carries citations.
func (a *Accumulator) CitationsPath() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refsPath
}

// header renders the file header both artifacts share.
func (a *Accumulator) header(title string, turn domain.TranscriptTurn) string {
	var b strings.Builder
	b.WriteString(title + "\n\n")
	fmt.Fprintf(&b, "**知识库**: %s\n", turn.KnowledgeBase)
	fmt.Fprintf(&b, "**会话ID**: %s\n", turn.SessionID)
	fmt.Fprintf(&b, "**开始时间**: %s\n\n", a.startedAt.Format(startedAtLayout))
	b.WriteString("---\n\n")
	return b.String()
}

// qaBlock renders one turn's Q&A section.
func (a *Accumulator) qaBlock(turn domain.TranscriptTurn, turnTime string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## 问题 [%s]\n\n", turnTime)
	fmt.Fprintf(&b, "%s\n\n", turn.Question)

	if len(turn.SourceKnowledgeBases) > 1 {
		fmt.Fprintf(&b, "**检索范围**: %s\n\n", strings.Join(turn.SourceKnowledgeBases, " + "))
	}

	b.WriteString("## 回答\n\n")
	fmt.Fprintf(&b, "%s\n\n", turn.Answer)

	if turn.Thinking != "" {
		b.WriteString("### 深度思考过程\n\n")
		fmt.Fprintf(&b, "```\n%s\n```\n\n", turn.Thinking)
	}

	if len(turn.Citations) > 0 {
		b.WriteString("### 📚 引用来源\n\n")
		for i, c := range turn.Citations {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, titleOf(c))
		}
		fmt.Fprintf(&b, "\n> 详细引用内容请查看：%s_引用.md\n\n", a.baseName)
	}

	b.WriteString("---\n\n")
	return b.String()
}

// refsBlock renders one turn's citation details.
func refsBlock(turn domain.TranscriptTurn, turnTime string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## 问题: %s [%s]\n\n", turn.Question, turnTime)

	for i, c := range turn.Citations {
		title := titleOf(c)
		if c.SourceKnowledgeBase != "" {
			title = fmt.Sprintf("[%s] %s", c.SourceKnowledgeBase, title)
		}
		fmt.Fprintf(&b, "### [%d] %s\n\n", i+1, title)
		fmt.Fprintf(&b, "- **类型**: %s\n", typeOf(c))
		fmt.Fprintf(&b, "- **笔记ID**: %s\n\n", c.NoteID)

		if len(c.DetailSnippets) > 0 {
			b.WriteString("**详细内容**:\n\n")
			for _, snippet := range c.DetailSnippets {
				if snippet != "" {
					fmt.Fprintf(&b, "> %s\n\n", snippet)
				}
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\n")
	return b.String()
}

func titleOf(c domain.Citation) string {
	if c.Title == "" {
		return "无标题"
	}
	return c.Title
}

func typeOf(c domain.Citation) string {
	if c.TypeTag == "" {
		return "unknown"
	}
	return c.TypeTag
}

// appendFile appends text to an existing artifact.
func appendFile(path, text string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	_, werr := f.WriteString(text)
	cerr := f.Close()
	if werr != nil {
		return werr
	}
	return cerr
}
