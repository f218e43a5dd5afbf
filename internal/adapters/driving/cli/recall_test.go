package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
)

func TestRecallCmd_Use(t *testing.T) {
	assert.Equal(t, "recall [question]", recallCmd.Use)
}

func TestRecallCmd_Short(t *testing.T) {
	assert.Equal(t, "Show raw retrieval hits without AI synthesis", recallCmd.Short)
}

func TestRecallCmd_RequiresExactlyOneArg(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"recall"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestRecallCmd_HasTopKFlag(t *testing.T) {
	flag := recallCmd.Flags().Lookup("top-k")
	require.NotNil(t, flag, "top-k flag should exist")
	assert.Equal(t, "0", flag.DefValue)
}

func TestRecallCmd_RendersHits(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	stubAPI.recallItems = []domain.RecallItem{
		{Title: "季度规划", Score: 0.9321, TypeTag: "笔记", RecallSource: "向量检索", Content: "第一季度的目标是..."},
		{Score: 0.5, Content: ""},
	}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"recall", "季度目标"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "🔍 召回查询: 季度目标")
	assert.Contains(t, out, "📊 找到 2 条相关结果:")
	assert.Contains(t, out, "[1] 季度规划")
	assert.Contains(t, out, "📈 得分: 0.9321")
	assert.Contains(t, out, "📁 类型: 笔记")
	assert.Contains(t, out, "🔗 来源: 向量检索")
	assert.Contains(t, out, "📝 内容: 第一季度的目标是...")
	// Missing fields fall back to placeholders.
	assert.Contains(t, out, "[2] 无标题")
	assert.Contains(t, out, "📁 类型: unknown")
}

func TestRecallCmd_EmptyResults(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"recall", "没有命中的问题"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "📊 找到 0 条相关结果:")
}

func TestRecallCmd_UnknownKnowledgeBase(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"recall", "--kb", "ghost", "问题"})
	defer func() {
		rootCmd.SetArgs(nil)
		recallKB = "" // Reset flag
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "recall failed")
	assert.Contains(t, err.Error(), "ghost")
}

func TestRecallCmd_ServiceNotConfigured(t *testing.T) {
	oldService := searchService
	searchService = nil
	defer func() {
		searchService = oldService
	}()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"recall", "问题"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "search service not configured")
}

func TestPreviewContent_ShortPassesThrough(t *testing.T) {
	assert.Equal(t, "短内容", previewContent("短内容"))
}

func TestPreviewContent_FlattensNewlines(t *testing.T) {
	assert.Equal(t, "第一行 第二行", previewContent("第一行\n第二行"))
}

func TestPreviewContent_TruncatesLongText(t *testing.T) {
	long := strings.Repeat("长", 200)

	preview := previewContent(long)

	assert.Equal(t, strings.Repeat("长", recallPreviewRunes)+"...", preview)
}

func TestPreviewContent_Empty(t *testing.T) {
	assert.Equal(t, "", previewContent(""))
}
