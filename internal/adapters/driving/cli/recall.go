package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
)

// recallPreviewRunes caps the content preview per result.
const recallPreviewRunes = 150

var (
	recallKB      string
	recallTopK    int
	recallRewrite bool
)

var recallCmd = &cobra.Command{
	Use:   "recall [question]",
	Short: "Show raw retrieval hits without AI synthesis",
	Long: `Fetches the raw scored retrieval results for a question, bypassing
answer generation. Useful for checking what the knowledge base would
feed the model.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecall,
}

func init() {
	recallCmd.Flags().StringVar(&recallKB, "kb", "", "knowledge base name (default: the default base)")
	recallCmd.Flags().IntVar(&recallTopK, "top-k", 0, "maximum results (0 = configured default)")
	recallCmd.Flags().BoolVar(&recallRewrite, "rewrite", false, "rewrite the query intent first")
	rootCmd.AddCommand(recallCmd)
}

func runRecall(cmd *cobra.Command, args []string) error {
	question := args[0]

	if searchService == nil {
		return errors.New("search service not configured")
	}

	cmd.Printf("🔍 召回查询: %s\n\n", question)
	cmd.Println(separatorLine)

	opts := domain.RecallOptions{
		KnowledgeBase: recallKB,
		TopK:          recallTopK,
		IntentRewrite: recallRewrite,
	}
	items, err := searchService.Recall(context.Background(), question, opts)
	if err != nil {
		return fmt.Errorf("recall failed: %w", err)
	}

	cmd.Printf("\n📊 找到 %d 条相关结果:\n\n", len(items))
	for i, item := range items {
		title := item.Title
		if title == "" {
			title = "无标题"
		}
		typeTag := item.TypeTag
		if typeTag == "" {
			typeTag = "unknown"
		}
		source := item.RecallSource
		if source == "" {
			source = "unknown"
		}

		cmd.Printf("[%d] %s\n", i+1, title)
		cmd.Printf("    📈 得分: %.4f\n", item.Score)
		cmd.Printf("    📁 类型: %s\n", typeTag)
		cmd.Printf("    🔗 来源: %s\n", source)
		if preview := previewContent(item.Content); preview != "" {
			cmd.Printf("    📝 内容: %s\n", preview)
		}
		cmd.Println()
	}
	cmd.Println(separatorLine)

	return nil
}

// previewContent flattens newlines and truncates to the preview budget,
// appending an ellipsis only when text was actually cut.
func previewContent(content string) string {
	if content == "" {
		return ""
	}
	runes := []rune(content)
	if len(runes) <= recallPreviewRunes {
		return strings.ReplaceAll(content, "\n", " ")
	}
	preview := strings.ReplaceAll(string(runes[:recallPreviewRunes]), "\n", " ")
	return preview + "..."
}
