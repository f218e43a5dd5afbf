package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
	"github.com/anomot/get-biji-knowledge-skill/internal/logger"
)

// separatorLine frames the streamed answer, matching the transcript
// convention of the legacy tooling.
var separatorLine = strings.Repeat("=", 60)

var (
	askKBs        []string
	askMode       string
	askNewSession bool
	askNoRefs     bool
	askDeep       bool
	askNoDeep     bool
	askOutputDir  string
	askJSON       bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question against your knowledge bases",
	Long: `Streams a question to one or more Get笔记 knowledge bases and prints
the answer as it arrives.

With no --kb and no --mode the previous scope is reused (sticky), falling
back to the default knowledge base. --mode auto routes by description
overlap; --mode all broadcasts to every configured base and combines the
answers into one report. Completed turns accumulate into Markdown
transcript files next to their citations.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringArrayVar(&askKBs, "kb", nil, "target knowledge base (repeatable)")
	askCmd.Flags().StringVar(&askMode, "mode", "", "selection mode: default, auto or all")
	askCmd.Flags().BoolVar(&askNewSession, "new-session", false, "start a fresh conversation")
	askCmd.Flags().BoolVar(&askNoRefs, "no-refs", false, "suppress citations")
	askCmd.Flags().BoolVar(&askDeep, "deep", false, "force deep reasoning on")
	askCmd.Flags().BoolVar(&askNoDeep, "no-deep", false, "force deep reasoning off")
	askCmd.Flags().StringVar(&askOutputDir, "output-dir", "", "transcript output directory")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := args[0]

	if searchService == nil {
		return errors.New("search service not configured")
	}

	mode := domain.SelectionMode(askMode)
	if !mode.IsValid() {
		return fmt.Errorf("%w: unknown mode %q (want default, auto or all)", domain.ErrInvalidInput, askMode)
	}

	settings := domain.DefaultGlobalSettings()
	if registryService != nil {
		if s, err := registryService.Settings(); err == nil {
			settings = s
		}
	}

	deep := searchDefaults.DeepThink
	if askDeep {
		deep = true
	}
	if askNoDeep {
		deep = false
	}

	opts := domain.SearchOptions{
		ExplicitNames: askKBs,
		Mode:          mode,
		NewSession:    askNewSession,
		DeepThink:     deep,
		Refs:          settings.Refs && !askNoRefs,
		MaxRetries:    searchDefaults.MaxRetries,
	}

	out := cmd.OutOrStdout()
	headerShown := false
	if !askJSON {
		showHeader := func() {
			if headerShown {
				return
			}
			headerShown = true
			fmt.Fprintf(out, "💭 问题: %s\n\n", question)
			fmt.Fprintln(out, separatorLine)
		}
		opts.OnSession = func(id string, resumed bool) {
			if resumed {
				fmt.Fprintf(out, "📖 继续会话: %s\n\n", id)
			} else {
				fmt.Fprintf(out, "🆕 创建新会话: %s\n\n", id)
			}
		}
		opts.OnChunk = func(text string) {
			showHeader()
			fmt.Fprint(out, text)
		}
		opts.OnNotice = func(text string) {
			showHeader()
			fmt.Fprintf(out, "\n⚠️ 提醒: %s", text)
		}
	}

	result, err := searchService.Ask(context.Background(), question, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if askJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		cmd.Println(string(data))
		saveTranscript(nil, question, result, settings)
		return nil
	}

	fmt.Fprintln(out, "\n"+separatorLine)
	saveTranscript(out, question, result, settings)
	return nil
}

// saveTranscript appends the completed turn to the Markdown transcript
// pair. A nil writer suppresses the saved-file messages. Transcript
// failures never fail the command; the answer already reached the user.
func saveTranscript(out io.Writer, question string, result *domain.SearchResult, settings domain.GlobalSettings) {
	if newTranscript == nil {
		return
	}

	dir := askOutputDir
	if dir == "" {
		dir = settings.OutputDir
	}
	acc, err := newTranscript(dir)
	if err != nil {
		logger.Warn("transcript disabled: %v", err)
		return
	}

	kb := ""
	if len(result.SourceKnowledgeBases) > 0 {
		kb = result.SourceKnowledgeBases[0]
	}
	turn := domain.TranscriptTurn{
		Question:             question,
		Answer:               result.Answer,
		Citations:            result.Citations,
		Thinking:             result.Thinking,
		KnowledgeBase:        kb,
		SessionID:            result.SessionID,
		SourceKnowledgeBases: result.SourceKnowledgeBases,
	}
	if err := acc.AppendTurn(turn); err != nil {
		logger.Warn("append transcript: %v", err)
		return
	}

	if out == nil {
		return
	}
	if qa := acc.QAPath(); qa != "" {
		fmt.Fprintf(out, "\n📄 问答已保存到: %s\n", filepath.Base(qa))
	}
	if refs := acc.CitationsPath(); refs != "" {
		fmt.Fprintf(out, "📚 引用已保存到: %s\n", filepath.Base(refs))
	}
}
