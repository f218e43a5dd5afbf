package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
)

// planAnswerRunes caps each answer section in the combined report.
const planAnswerRunes = 500

// planReportRefs caps the citations listed per report section.
const planReportRefs = 3

var (
	planTasks []string
	planDesc  string
	planWrite bool
	planJSON  bool
)

var planCmd = &cobra.Command{
	Use:   "plan [task-json]",
	Short: "Run a batch of queries across knowledge bases",
	Long: `Executes a batch of (knowledge base, query) tasks sequentially and
renders a combined report.

Tasks come either from repeated --task kb:query flags or from a JSON
spec matching the classic format:

  biji plan '{"queries": ["AI 趋势"], "kbs": ["技术笔记"], "description": "调研"}'

With --plan a search_plan.md checklist file records the run as it
progresses.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringArrayVar(&planTasks, "task", nil, "one kb:query task (repeatable)")
	planCmd.Flags().StringVar(&planDesc, "desc", "", "plan description")
	planCmd.Flags().BoolVar(&planWrite, "plan", false, "write the search_plan.md checklist")
	planCmd.Flags().BoolVar(&planJSON, "json", false, "output the report as JSON")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	if planService == nil {
		return errors.New("plan service not configured")
	}

	spec, err := buildPlanSpec(args)
	if err != nil {
		return err
	}

	if !planJSON {
		cmd.Println("🔍 多库联合查询")
		if len(spec.Pairs) > 0 {
			cmd.Printf("   任务数: %d\n", len(spec.Pairs))
		} else {
			cmd.Printf("   查询词: %s\n", strings.Join(spec.Queries, ", "))
			targets := "(全部)"
			if len(spec.KnowledgeBases) > 0 {
				targets = strings.Join(spec.KnowledgeBases, ", ")
			}
			cmd.Printf("   目标库: %s\n", targets)
		}
		cmd.Println(separatorLine)
	}

	report, err := planService.Run(cmd.Context(), spec)
	if err != nil {
		return fmt.Errorf("plan run failed: %w", err)
	}

	if planJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println("\n" + separatorLine)
	cmd.Println("✅ 多库查询完成")
	cmd.Printf("   成功: %d/%d\n", report.Succeeded, report.Total)
	if report.PlanPath != "" {
		cmd.Printf("   规划文件: %s\n", report.PlanPath)
	}

	printPlanReport(cmd, report)
	return nil
}

// buildPlanSpec turns the flags or the positional JSON spec into a
// PlanSpec. Both at once is an error; so is neither.
func buildPlanSpec(args []string) (domain.PlanSpec, error) {
	var spec domain.PlanSpec

	if len(args) == 1 {
		if len(planTasks) > 0 {
			return spec, fmt.Errorf("%w: give either a task JSON or --task flags, not both", domain.ErrInvalidInput)
		}
		if err := json.Unmarshal([]byte(args[0]), &spec); err != nil {
			return spec, fmt.Errorf("%w: parse task JSON: %v", domain.ErrInvalidInput, err)
		}
	} else {
		for _, raw := range planTasks {
			kb, query, ok := strings.Cut(raw, ":")
			kb, query = strings.TrimSpace(kb), strings.TrimSpace(query)
			if !ok || kb == "" || query == "" {
				return spec, fmt.Errorf("%w: invalid --task %q (want kb:query)", domain.ErrInvalidInput, raw)
			}
			spec.Pairs = append(spec.Pairs, domain.PlanTask{KnowledgeBase: kb, Query: query})
		}
		if len(spec.Pairs) == 0 {
			return spec, fmt.Errorf("%w: no tasks given (use --task or a task JSON)", domain.ErrInvalidInput)
		}
	}

	if planDesc != "" {
		spec.Description = planDesc
	}
	spec.WritePlan = planWrite
	return spec, nil
}

// printPlanReport renders the combined Markdown report to the console.
func printPlanReport(cmd *cobra.Command, report *domain.PlanReport) {
	queries := uniqueStrings(report.Results, func(r domain.PlanResult) string { return r.Query })
	kbs := uniqueStrings(report.Results, func(r domain.PlanResult) string { return r.KnowledgeBase })

	cmd.Println("\n# 多库检索报告")
	cmd.Println()
	cmd.Printf("**查询词**: %s\n", strings.Join(queries, ", "))
	cmd.Printf("**目标库**: %s\n", strings.Join(kbs, ", "))
	cmd.Printf("**完成率**: %d/%d\n\n", report.Succeeded, report.Total)
	cmd.Println("---")
	cmd.Println()

	for _, result := range report.Results {
		if !result.Success {
			continue
		}
		cmd.Printf("## 来源: %s | 查询: %s\n\n", result.KnowledgeBase, result.Query)

		answer := firstRunes(result.Answer, planAnswerRunes)
		if answer != result.Answer {
			answer += "..."
		}
		cmd.Printf("%s\n\n", answer)

		if len(result.Citations) > 0 {
			cmd.Println("### 引用")
			for i, ref := range result.Citations {
				if i >= planReportRefs {
					break
				}
				title := ref.Title
				if title == "" {
					title = "无标题"
				}
				cmd.Printf("[%d] %s\n", i+1, title)
			}
		}
		cmd.Println("\n---")
		cmd.Println()
	}
}

// uniqueStrings collects distinct values in first-seen order.
func uniqueStrings(results []domain.PlanResult, pick func(domain.PlanResult) string) []string {
	seen := make(map[string]struct{}, len(results))
	var out []string
	for _, r := range results {
		v := pick(r)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
