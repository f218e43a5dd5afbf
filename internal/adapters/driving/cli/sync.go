package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
)

var (
	syncAll    bool
	syncDryRun bool
	syncRounds int
)

var syncCmd = &cobra.Command{
	Use:   "sync [name]",
	Short: "Synchronise knowledge-base descriptions",
	Long: `Derives a routing description for a knowledge base by asking it a few
introspective questions and integrating the answers.

Descriptions feed --mode auto: questions are routed to the bases whose
descriptions they overlap. Run with --dry-run to preview the generated
text without saving it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncAll, "all", false, "synchronise every knowledge base")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "generate without saving")
	syncCmd.Flags().IntVar(&syncRounds, "rounds", 0, "probe rounds 1-3 (0 = default)")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	if metadataService == nil {
		return errors.New("metadata service not configured")
	}

	rounds := syncRounds
	if rounds <= 0 || rounds > domain.DefaultSyncRounds {
		rounds = domain.DefaultSyncRounds
	}
	opts := domain.SyncOptions{Rounds: rounds, DryRun: syncDryRun}

	if len(args) == 1 {
		if err := syncOne(cmd, args[0], opts); err != nil {
			return err
		}
		if !syncDryRun {
			cmd.Printf("\n✅ 同步完成 (使用 search API，%d 轮查询 + 深度思考)\n", rounds)
		}
		return nil
	}

	if !syncAll {
		return cmd.Help()
	}

	if registryService == nil {
		return errors.New("registry service not configured")
	}
	kbs, err := registryService.List()
	if err != nil {
		return fmt.Errorf("list knowledge bases: %w", err)
	}
	if len(kbs) == 0 {
		cmd.Println("❌ 未配置任何知识库")
		return nil
	}

	succeeded := 0
	for _, kb := range kbs {
		if err := syncOne(cmd, kb.Name, opts); err != nil {
			cmd.Printf("\n❌ 生成描述失败: %v\n", err)
		} else {
			succeeded++
		}
		cmd.Println("\n" + separatorLine)
	}
	cmd.Printf("\n✅ 同步完成: %d/%d 个知识库 (%d 轮查询 + 深度思考)\n", succeeded, len(kbs), rounds)

	return nil
}

// syncOne runs and renders one knowledge base's description sync.
func syncOne(cmd *cobra.Command, name string, opts domain.SyncOptions) error {
	if registryService != nil {
		if kb, err := registryService.Get(name); err == nil {
			cmd.Printf("\n🔍 正在分析知识库: [%s]...\n", kb.Name)
			cmd.Printf("   Topic ID: %s\n", kb.TopicID)
			if kb.HasDescription() {
				cmd.Printf("   现有描述: %s...\n", firstRunes(kb.Description, 50))
			}
		}
	}

	outcome, err := metadataService.Sync(cmd.Context(), name, opts)
	if err != nil {
		return fmt.Errorf("sync %s: %w", name, err)
	}

	if opts.DryRun {
		cmd.Println("\n📝 [Dry Run] 生成的描述:")
		cmd.Printf("   %s\n", outcome.Description)
		cmd.Println("\n💡 下一步: 移除 --dry-run 参数以保存描述")
		return nil
	}

	cmd.Println("\n✅ 已更新知识库描述")
	cmd.Printf("   描述: %s\n", outcome.Description)
	return nil
}

// firstRunes returns the first n runes of s.
func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
