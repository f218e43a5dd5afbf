package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
)

func TestPlanCmd_Use(t *testing.T) {
	assert.Equal(t, "plan [task-json]", planCmd.Use)
}

func TestPlanCmd_Short(t *testing.T) {
	assert.Equal(t, "Run a batch of queries across knowledge bases", planCmd.Short)
}

func TestPlanCmd_HasFlags(t *testing.T) {
	require.NotNil(t, planCmd.Flags().Lookup("task"))
	require.NotNil(t, planCmd.Flags().Lookup("desc"))
	require.NotNil(t, planCmd.Flags().Lookup("plan"))
	require.NotNil(t, planCmd.Flags().Lookup("json"))
}

func TestPlanCmd_TaskFlag(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	stubAPI.streams = []string{answerStream("AI 正从感知走向推理")}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"plan", "--task", "工作笔记:AI 趋势"})
	defer func() {
		rootCmd.SetArgs(nil)
		planTasks = nil // Reset flag
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "🔍 多库联合查询")
	assert.Contains(t, out, "任务数: 1")
	assert.Contains(t, out, "✅ 多库查询完成")
	assert.Contains(t, out, "成功: 1/1")
	assert.Contains(t, out, "# 多库检索报告")
	assert.Contains(t, out, "**查询词**: AI 趋势")
	assert.Contains(t, out, "**目标库**: 工作笔记")
	assert.Contains(t, out, "## 来源: 工作笔记 | 查询: AI 趋势")
	assert.Contains(t, out, "AI 正从感知走向推理")
}

func TestPlanCmd_JSONSpec(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	stubAPI.streams = []string{answerStream("调研结论")}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"plan", `{"queries": ["AI 趋势"], "kbs": ["工作笔记"], "description": "调研"}`})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "查询词: AI 趋势")
	assert.Contains(t, out, "目标库: 工作笔记")
	assert.Contains(t, out, "成功: 1/1")
	assert.Contains(t, out, "调研结论")
}

func TestPlanCmd_JSONOutput(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	stubAPI.streams = []string{answerStream("机器回答")}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"plan", "--json", "--task", "工作笔记:查询"})
	defer func() {
		rootCmd.SetArgs(nil)
		planTasks = nil
		planJSON = false
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, `"results"`)
	assert.Contains(t, out, `"kb_name": "工作笔记"`)
	assert.Contains(t, out, `"success"`)
	assert.NotContains(t, out, "🔍 多库联合查询", "json mode must not print console decoration")
}

func TestPlanCmd_WritesPlanFile(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"plan", "--plan", "--task", "工作笔记:查询"})
	defer func() {
		rootCmd.SetArgs(nil)
		planTasks = nil
		planWrite = false
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "规划文件: search_plan.md")
	require.Len(t, stubPlans.recorded, 1)
	assert.Equal(t, domain.PlanTask{KnowledgeBase: "工作笔记", Query: "查询"}, stubPlans.recorded[0])
}

func TestPlanCmd_SpecAndTasksRejected(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"plan", "--task", "工作笔记:查询", `{"queries": ["q"]}`})
	defer func() {
		rootCmd.SetArgs(nil)
		planTasks = nil
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not both")
}

func TestPlanCmd_NoTasksRejected(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"plan"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no tasks given")
}

func TestPlanCmd_MalformedTaskRejected(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"plan", "--task", "没有冒号"})
	defer func() {
		rootCmd.SetArgs(nil)
		planTasks = nil
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --task")
}

func TestPlanCmd_UnknownKnowledgeBase(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"plan", "--task", "ghost:查询"})
	defer func() {
		rootCmd.SetArgs(nil)
		planTasks = nil
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown knowledge bases: ghost")
}

func TestPlanCmd_ServiceNotConfigured(t *testing.T) {
	oldService := planService
	planService = nil
	defer func() {
		planService = oldService
	}()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"plan", "--task", "工作笔记:查询"})
	defer func() {
		rootCmd.SetArgs(nil)
		planTasks = nil
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "plan service not configured")
}

func TestUniqueStrings_KeepsFirstSeenOrder(t *testing.T) {
	results := []domain.PlanResult{
		{KnowledgeBase: "b"},
		{KnowledgeBase: "a"},
		{KnowledgeBase: "b"},
	}

	got := uniqueStrings(results, func(r domain.PlanResult) string { return r.KnowledgeBase })

	assert.Equal(t, []string{"b", "a"}, got)
}
