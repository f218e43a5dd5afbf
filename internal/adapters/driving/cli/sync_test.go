package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
)

func TestSyncCmd_Use(t *testing.T) {
	assert.Equal(t, "sync [name]", syncCmd.Use)
}

func TestSyncCmd_Short(t *testing.T) {
	assert.Equal(t, "Synchronise knowledge-base descriptions", syncCmd.Short)
}

func TestSyncCmd_HasFlags(t *testing.T) {
	require.NotNil(t, syncCmd.Flags().Lookup("all"))
	require.NotNil(t, syncCmd.Flags().Lookup("dry-run"))
	rounds := syncCmd.Flags().Lookup("rounds")
	require.NotNil(t, rounds)
	assert.Equal(t, "0", rounds.DefValue)
}

func TestSyncCmd_SingleBase(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"sync", "工作笔记", "--rounds", "1"})
	defer func() {
		rootCmd.SetArgs(nil)
		syncRounds = 0 // Reset flag
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "🔍 正在分析知识库: [工作笔记]...")
	assert.Contains(t, out, "Topic ID: topic-1")
	assert.Contains(t, out, "现有描述: ")
	assert.Contains(t, out, "✅ 已更新知识库描述")
	assert.Contains(t, out, "✅ 同步完成 (使用 search API，1 轮查询 + 深度思考)")

	kb, err := testRegistry.Get("工作笔记")
	require.NoError(t, err)
	assert.Equal(t, defaultStubAnswer, kb.Description)
	assert.Equal(t, domain.DescriptionReady, kb.DescriptionStatus)
}

func TestSyncCmd_DryRunLeavesRegistryUntouched(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"sync", "工作笔记", "--rounds", "1", "--dry-run"})
	defer func() {
		rootCmd.SetArgs(nil)
		syncRounds = 0
		syncDryRun = false
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "📝 [Dry Run] 生成的描述:")
	assert.Contains(t, out, defaultStubAnswer)
	assert.Contains(t, out, "💡 下一步: 移除 --dry-run 参数以保存描述")
	assert.NotContains(t, out, "✅ 同步完成")

	kb, err := testRegistry.Get("工作笔记")
	require.NoError(t, err)
	assert.Equal(t, "团队的工作笔记、会议记录与项目复盘", kb.Description)
}

func TestSyncCmd_AllBases(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"sync", "--all", "--rounds", "1"})
	defer func() {
		rootCmd.SetArgs(nil)
		syncAll = false
		syncRounds = 0
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✅ 同步完成: 1/1 个知识库 (1 轮查询 + 深度思考)")
}

func TestSyncCmd_AllWithEmptyRegistry(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	require.NoError(t, testRegistry.Delete("工作笔记"))

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"sync", "--all"})
	defer func() {
		rootCmd.SetArgs(nil)
		syncAll = false
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "❌ 未配置任何知识库")
}

func TestSyncCmd_NoArgsShowsHelp(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"sync"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "sync [name]")
}

func TestSyncCmd_UnknownBase(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"sync", "ghost", "--rounds", "1"})
	defer func() {
		rootCmd.SetArgs(nil)
		syncRounds = 0
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sync ghost")
}

func TestSyncCmd_ServiceNotConfigured(t *testing.T) {
	oldService := metadataService
	metadataService = nil
	defer func() {
		metadataService = oldService
	}()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"sync", "工作笔记"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "metadata service not configured")
}

func TestFirstRunes_ShortStringUnchanged(t *testing.T) {
	assert.Equal(t, "短", firstRunes("短", 10))
}

func TestFirstRunes_TruncatesAtRuneBoundary(t *testing.T) {
	assert.Equal(t, "一二三", firstRunes("一二三四五", 3))
}
