package transcript

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
)

func newTestPlanBook(t *testing.T) (*PlanBook, string) {
	t.Helper()
	dir := t.TempDir()
	book, err := NewPlanBook(dir)
	require.NoError(t, err)
	book.now = func() time.Time { return fixedClock }
	return book, dir
}

func TestPlanBook_Create_WritesChecklist(t *testing.T) {
	book, dir := newTestPlanBook(t)

	path, err := book.Create("房地产政策检索", []domain.PlanTask{
		{KnowledgeBase: "政经参考", Query: "2026年房地产政策"},
		{KnowledgeBase: "政经参考", Query: "限购调整"},
		{KnowledgeBase: "投资参考", Query: "2026年房地产政策"},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "search_plan.md"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	want := "# 任务：房地产政策检索\n\n" +
		"- **状态**: 进行中\n" +
		"- **创建时间**: 2026-03-01 10:00:00\n\n" +
		"## 检索目标\n\n" +
		"1. [ ] 在 [政经参考] 中搜索：2026年房地产政策\n" +
		"2. [ ] 在 [政经参考] 中搜索：限购调整\n" +
		"3. [ ] 在 [投资参考] 中搜索：2026年房地产政策\n" +
		"\n4. [ ] 整合分析并输出报告\n\n" +
		"---\n\n" +
		"## 检索记录\n\n" +
		"（每次搜索后在此记录核心结论）\n\n"
	assert.Equal(t, want, string(raw))
}

func TestPlanBook_Record_AppendsWithoutTickingBoxes(t *testing.T) {
	book, _ := newTestPlanBook(t)

	path, err := book.Create("检索", []domain.PlanTask{
		{KnowledgeBase: "alpha", Query: "问题一"},
	})
	require.NoError(t, err)

	task := domain.PlanTask{KnowledgeBase: "alpha", Query: "问题一"}
	require.NoError(t, book.Record(task, "核心结论：政策趋稳。"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(raw)
	assert.Contains(t, content, "### [10:00:00] 来源: alpha | 查询: 问题一\n\n核心结论：政策趋稳。\n\n---\n\n")
	// The checklist stays untouched; the record section is the log.
	assert.Equal(t, 2, strings.Count(content, "[ ]"))
	assert.NotContains(t, content, "[x]")
}

func TestPlanBook_Record_GuardsLongSummary(t *testing.T) {
	book, _ := newTestPlanBook(t)

	path, err := book.Create("检索", []domain.PlanTask{{KnowledgeBase: "a", Query: "q"}})
	require.NoError(t, err)

	long := strings.Repeat("测", 600)
	require.NoError(t, book.Record(domain.PlanTask{KnowledgeBase: "a", Query: "q"}, long))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), strings.Repeat("测", 500)+"...")
	assert.NotContains(t, string(raw), strings.Repeat("测", 501))
}

func TestPlanBook_Record_WithoutPlanIsNoOp(t *testing.T) {
	book, dir := newTestPlanBook(t)

	require.NoError(t, book.Record(domain.PlanTask{KnowledgeBase: "a", Query: "q"}, "结论"))

	_, statErr := os.Stat(filepath.Join(dir, "search_plan.md"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestPlanBook_Record_DeletedPlanIgnored(t *testing.T) {
	book, _ := newTestPlanBook(t)

	path, err := book.Create("检索", []domain.PlanTask{{KnowledgeBase: "a", Query: "q"}})
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	require.NoError(t, book.Record(domain.PlanTask{KnowledgeBase: "a", Query: "q"}, "结论"))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
