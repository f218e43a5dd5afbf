package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/anomot/get-biji-knowledge-skill/internal/adapters/driving/web"
	"github.com/anomot/get-biji-knowledge-skill/internal/adapters/driving/wizard"
	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
	"github.com/anomot/get-biji-knowledge-skill/internal/logger"
)

var (
	configAddName    string
	configAddAPIKey  string
	configAddTopicID string
	configAddDesc    string
	configAddDefault bool

	configDescText string
	configDescAuto bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage knowledge-base configuration",
	Long: `View and edit the knowledge-base registry: API keys, topic ids,
descriptions, the default base and global settings.

Run without a subcommand to list the configured knowledge bases.`,
	RunE: runConfigList,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured knowledge bases",
	RunE:  runConfigList,
}

var configShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show one knowledge base (default: the default base)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigShow,
}

var configAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a knowledge base",
	Long: `Registers a knowledge base. Missing fields are prompted for
interactively; the API key prompt does not echo.`,
	RunE: runConfigAdd,
}

var configRemoveCmd = &cobra.Command{
	Use:   "remove [name]",
	Short: "Remove a knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigRemove,
}

var configSetDefaultCmd = &cobra.Command{
	Use:   "set-default [name]",
	Short: "Set the default knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigSetDefault,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change a global setting (refs, output_dir)",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configUpdateDescCmd = &cobra.Command{
	Use:   "update-desc [name]",
	Short: "Update a knowledge base's description",
	Long: `Sets a knowledge base's routing description. --desc stores the given
text directly; --auto derives one by querying the base itself.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigUpdateDesc,
}

var configWebCmd = &cobra.Command{
	Use:   "web",
	Short: "Open the browser configuration page",
	Long: `Starts a local web server with a configuration form and opens it in
your browser. The server stops automatically when the page is closed.`,
	RunE: runConfigWeb,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactive first-run configuration",
	Long:  `Runs the interactive wizard to configure knowledge bases step by step.`,
	RunE:  runConfigInit,
}

func init() {
	configAddCmd.Flags().StringVar(&configAddName, "name", "", "knowledge base name")
	configAddCmd.Flags().StringVar(&configAddAPIKey, "api-key", "", "API key")
	configAddCmd.Flags().StringVar(&configAddTopicID, "topic-id", "", "topic id")
	configAddCmd.Flags().StringVar(&configAddDesc, "desc", "", "routing description")
	configAddCmd.Flags().BoolVar(&configAddDefault, "default", false, "set as the default base")

	configUpdateDescCmd.Flags().StringVar(&configDescText, "desc", "", "description text")
	configUpdateDescCmd.Flags().BoolVar(&configDescAuto, "auto", false, "derive the description automatically")

	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configAddCmd)
	configCmd.AddCommand(configRemoveCmd)
	configCmd.AddCommand(configSetDefaultCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUpdateDescCmd)
	configCmd.AddCommand(configWebCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigList(cmd *cobra.Command, _ []string) error {
	if registryService == nil {
		return errors.New("registry service not configured")
	}

	kbs, err := registryService.List()
	if err != nil {
		return fmt.Errorf("list knowledge bases: %w", err)
	}

	defaultName := ""
	if def, err := registryService.Default(); err == nil {
		defaultName = def.Name
	}

	cmd.Println("📚 已配置的知识库:")
	cmd.Println()
	for _, kb := range kbs {
		prefix := "  "
		if kb.Name == defaultName {
			prefix = "⭐"
		}
		cmd.Printf("%s %s\n", prefix, kb.Name)
	}
	if len(kbs) == 0 {
		cmd.Println("  (无)")
		cmd.Println("\n提示: 使用 'config add' 添加知识库")
	}

	settings, err := registryService.Settings()
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}
	cmd.Println("\n⚙️  全局设置:")
	cmd.Printf("   引用显示: %s\n", onOff(settings.Refs))
	outputDir := settings.OutputDir
	if outputDir == "" {
		outputDir = "(未设置)"
	}
	cmd.Printf("   输出目录: %s\n", outputDir)

	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if registryService == nil {
		return errors.New("registry service not configured")
	}

	var kb *domain.KnowledgeBase
	var err error
	if len(args) == 1 {
		kb, err = registryService.Get(args[0])
	} else {
		kb, err = registryService.Default()
	}
	if err != nil {
		return fmt.Errorf("show knowledge base: %w", err)
	}

	isDefault := false
	if def, derr := registryService.Default(); derr == nil {
		isDefault = def.Name == kb.Name
	}

	cmd.Printf("📖 知识库: %s\n", kb.Name)
	if isDefault {
		cmd.Println("   状态: ⭐ 默认知识库")
	}
	cmd.Printf("   API Key: %s...\n", firstRunes(kb.APIKey, 10))
	cmd.Printf("   Topic ID: %s\n", kb.TopicID)
	if kb.HasDescription() {
		cmd.Printf("   描述: %s\n", kb.Description)
	} else if kb.DescriptionStatus == domain.DescriptionPending {
		cmd.Println("   描述: (生成中)")
	}
	if kb.LastUpdated != "" {
		cmd.Printf("   更新时间: %s\n", kb.LastUpdated)
	}

	return nil
}

func runConfigAdd(cmd *cobra.Command, _ []string) error {
	if registryService == nil {
		return errors.New("registry service not configured")
	}

	reader := bufio.NewReader(cmd.InOrStdin())

	name := strings.TrimSpace(configAddName)
	if name == "" {
		cmd.Print("→ 知识库名称: ")
		name = readLine(reader)
	}
	apiKey := configAddAPIKey
	if apiKey == "" {
		cmd.Print("→ API Key: ")
		apiKey = readPassword()
		cmd.Println()
	}
	topicID := strings.TrimSpace(configAddTopicID)
	if topicID == "" {
		cmd.Print("→ Topic ID: ")
		topicID = readLine(reader)
	}

	kb := domain.KnowledgeBase{
		Name:        name,
		APIKey:      apiKey,
		TopicID:     topicID,
		Description: strings.TrimSpace(configAddDesc),
	}
	if err := registryService.Add(kb, configAddDefault); err != nil {
		return fmt.Errorf("add knowledge base: %w", err)
	}

	cmd.Printf("✅ 已添加知识库: %s\n", name)
	if configAddDefault {
		cmd.Println("⭐ 已设为默认知识库")
	}
	return nil
}

func runConfigRemove(cmd *cobra.Command, args []string) error {
	if registryService == nil {
		return errors.New("registry service not configured")
	}

	if err := registryService.Remove(args[0]); err != nil {
		return fmt.Errorf("remove knowledge base: %w", err)
	}
	cmd.Printf("✅ 已删除知识库: %s\n", args[0])
	return nil
}

func runConfigSetDefault(cmd *cobra.Command, args []string) error {
	if registryService == nil {
		return errors.New("registry service not configured")
	}

	if err := registryService.SetDefault(args[0]); err != nil {
		return fmt.Errorf("set default: %w", err)
	}
	cmd.Printf("✅ 默认知识库已设为: %s\n", args[0])
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if registryService == nil {
		return errors.New("registry service not configured")
	}

	key, value := args[0], args[1]
	switch key {
	case "refs":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: refs wants true or false, got %q", domain.ErrInvalidInput, value)
		}
		if err := registryService.SetRefs(enabled); err != nil {
			return fmt.Errorf("set refs: %w", err)
		}
		cmd.Printf("✅ 全局引用显示已设置为: %s\n", onOff(enabled))
		return nil

	case "output_dir":
		if err := registryService.SetOutputDir(value); err != nil {
			return fmt.Errorf("set output directory: %w", err)
		}
		settings, err := registryService.Settings()
		if err != nil {
			return fmt.Errorf("read settings: %w", err)
		}
		cmd.Printf("✅ 输出目录已设置为: %s\n", settings.OutputDir)
		return nil

	default:
		return fmt.Errorf("%w: unknown setting %q (want refs or output_dir)", domain.ErrInvalidInput, key)
	}
}

func runConfigUpdateDesc(cmd *cobra.Command, args []string) error {
	if registryService == nil {
		return errors.New("registry service not configured")
	}
	name := args[0]

	switch {
	case configDescAuto && configDescText != "":
		return fmt.Errorf("%w: give either --desc or --auto, not both", domain.ErrInvalidInput)

	case configDescAuto:
		if metadataService == nil {
			return errors.New("metadata service not configured")
		}
		rounds := domain.DefaultSyncRounds
		if err := syncOne(cmd, name, domain.SyncOptions{Rounds: rounds}); err != nil {
			return err
		}
		cmd.Printf("\n✅ 同步完成 (使用 search API，%d 轮查询 + 深度思考)\n", rounds)
		return nil

	case configDescText != "":
		if err := registryService.SetDescription(name, domain.DescriptionReady, configDescText); err != nil {
			return fmt.Errorf("update description: %w", err)
		}
		cmd.Println("✅ 已更新知识库描述")
		cmd.Printf("   描述: %s\n", configDescText)
		return nil

	default:
		return fmt.Errorf("%w: give --desc with text, or --auto", domain.ErrInvalidInput)
	}
}

func runConfigWeb(cmd *cobra.Command, _ []string) error {
	if registryService == nil {
		return errors.New("registry service not configured")
	}

	server, err := web.NewServer(&web.Ports{
		Registry:       registryService,
		Metadata:       metadataService,
		RegistryPath:   registryPath,
		ReloadRegistry: reloadRegistry,
	})
	if err != nil {
		return fmt.Errorf("create web server: %w", err)
	}

	if err := server.Start(); err != nil {
		return fmt.Errorf("start web server: %w", err)
	}
	url := server.URL()

	cmd.Printf("✅ Web 配置服务已启动: %s\n", url)
	cmd.Println("🌍 正在打开浏览器...")
	cmd.Println("ℹ️  关闭浏览器标签页后，服务将在 5 秒内自动停止")
	cmd.Println("   或点击页面右上角的'停止服务'按钮手动停止")

	if err := web.OpenBrowser(url); err != nil {
		logger.Warn("open browser: %v", err)
	}

	if err := server.Wait(cmd.Context()); err != nil {
		return fmt.Errorf("web server: %w", err)
	}
	cmd.Println("\n🛑 服务已停止")
	return nil
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	if registryService == nil {
		return errors.New("registry service not configured")
	}

	app, err := wizard.NewApp(&wizard.Ports{Registry: registryService})
	if err != nil {
		return fmt.Errorf("create wizard: %w", err)
	}

	// No alt screen: the completion summary should stay on the
	// terminal after the wizard exits.
	p := tea.NewProgram(app, tea.WithOutput(cmd.OutOrStdout()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("wizard error: %w", err)
	}
	return nil
}

// onOff renders a toggle the way the console output expects.
func onOff(enabled bool) string {
	if enabled {
		return "开启"
	}
	return "关闭"
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

//nolint:errcheck // CLI helper, error ignored for UX
func readPassword() string {
	// Try to read password without echo
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return string(password)
		}
	}
	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}
