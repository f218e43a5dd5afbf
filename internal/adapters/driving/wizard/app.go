package wizard

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
)

// wizardStep tracks the current step in the assistant flow.
type wizardStep int

const (
	stepWelcome wizardStep = iota // existing entries shown, add-more confirmation
	stepCount
	stepCountConfirm // warning for more than ten entries
	stepName
	stepAPIKey
	stepKeyConfirm // warning for a suspiciously short key
	stepTopicID
	stepDescription
	stepDefault
	stepReview
	stepSaving
	stepOutputAsk
	stepOutputPath
	stepOutputRetry
	stepManaged   // declined adding more entries
	stepAborted   // declined saving the collected entries
	stepCancelled // interrupted with ctrl+c or esc
	stepFailed    // registry could not be read
	stepComplete
)

// Key constants.
const (
	keyEnter = "enter"
	keyCtrlC = "ctrl+c"
	keyEsc   = "esc"
	keyYes   = "y"
	keyNo    = "n"
)

// Prompt lines, kept identical between the live view and the transcript.
const (
	promptAddMore       = "是否要添加更多知识库？(y/n): "
	promptCount         = "📝 您要配置多少个知识库？(输入数字，如 1, 2, 3): "
	promptCountConfirm  = "继续吗？(y/n): "
	promptName          = "→ 知识库名称: "
	promptAPIKey        = "→ API Key: "
	promptKeyConfirm    = "  ⚠️  API Key 看起来过短，输入 y 继续或重新输入: "
	promptTopicID       = "→ Topic ID: "
	promptDesc          = "→ 描述 (auto/skip/或自定义描述): "
	promptReviewConfirm = "确认保存这些配置？(y/n): "
	promptOutputAsk     = "是否要设置输出目录？(y/n，建议选择): "
	promptOutputDir     = "请输入输出目录路径 (支持 ~ 展开): "
	promptOutputRetry   = "重试？(y/n): "
)

var (
	heavyRule = strings.Repeat("=", 70)
	lightRule = strings.Repeat("-", 70)
	formRule  = strings.Repeat("-", 60)
)

// entryDraft holds one knowledge base entry collected by the form.
// The description is kept in its legacy single-string encoding until save.
type entryDraft struct {
	name      string
	apiKey    string
	topicID   string
	desc      string
	isDefault bool
}

// registryLoaded carries the initial registry snapshot.
type registryLoaded struct {
	entries     []domain.KnowledgeBase
	defaultName string
	err         error
}

// entriesSaved reports the outcome of persisting the collected entries.
type entriesSaved struct {
	lines     []string
	outputDir string
}

// outputDirSet reports the outcome of configuring the output directory.
type outputDirSet struct {
	dir string
	err error
}

// App is the bubbletea model for the configuration assistant. It walks the
// user through adding knowledge base entries and renders a console-style
// transcript, so the summary stays on screen after the program exits.
type App struct {
	ports  *Ports
	styles *Styles

	step wizardStep

	existing    []domain.KnowledgeBase
	defaultName string
	taken       map[string]bool

	// Shared text input, reconfigured per field.
	input textinput.Model

	count     int
	kbIndex   int
	draft     entryDraft
	collected []entryDraft

	// Completed console lines carried across steps.
	log []string

	err   error
	width int
}

var _ tea.Model = (*App)(nil)

// NewApp creates the configuration assistant model.
func NewApp(ports *Ports) (*App, error) {
	if ports == nil {
		return nil, ErrMissingRegistryService
	}
	if err := ports.Validate(); err != nil {
		return nil, err
	}

	input := textinput.New()
	input.CharLimit = 256
	input.Width = 48

	return &App{
		ports:  ports,
		styles: DefaultStyles(),
		step:   stepWelcome,
		taken:  make(map[string]bool),
		input:  input,
	}, nil
}

// Err returns the error that stopped the assistant, if any.
func (a *App) Err() error {
	return a.err
}

// Init loads the current registry state.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.loadRegistry(), textinput.Blink)
}

// Update handles messages and drives the assistant forward.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		return a, nil

	case registryLoaded:
		return a.handleRegistryLoaded(msg)

	case entriesSaved:
		return a.handleEntriesSaved(msg)

	case outputDirSet:
		return a.handleOutputDirSet(msg)

	case tea.KeyMsg:
		return a.handleKeyMsg(msg)
	}

	if a.inputActive() {
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return a, cmd
	}
	return a, nil
}

// View renders the transcript followed by the live prompt for the
// current step.
func (a *App) View() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(a.styles.Muted.Render(heavyRule) + "\n")
	b.WriteString(a.styles.Title.Render("🎯 Get笔记配置初始化助手") + "\n")
	b.WriteString(a.styles.Muted.Render(heavyRule) + "\n")
	b.WriteString("欢迎使用 Get笔记 Skill！让我们来配置您的知识库。\n\n")

	for _, line := range a.log {
		b.WriteString(a.renderLine(line))
		b.WriteString("\n")
	}

	b.WriteString(a.renderLive())
	return b.String()
}

func (a *App) handleRegistryLoaded(msg registryLoaded) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		a.err = msg.err
		a.log = append(a.log, "", fmt.Sprintf("❌ 错误: %v", msg.err))
		a.step = stepFailed
		return a, tea.Quit
	}

	a.existing = msg.entries
	a.defaultName = msg.defaultName
	for _, kb := range msg.entries {
		a.taken[kb.Name] = true
	}

	if len(a.existing) == 0 {
		a.toCount()
		return a, nil
	}

	a.log = append(a.log, fmt.Sprintf("ℹ️  已检测到 %d 个已配置的知识库:", len(a.existing)))
	for _, kb := range a.existing {
		mark := ""
		if kb.Name == a.defaultName {
			mark = " ⭐"
		}
		a.log = append(a.log, fmt.Sprintf("   - %s%s", kb.Name, mark))
	}
	a.log = append(a.log, "")
	a.step = stepWelcome
	return a, nil
}

func (a *App) handleEntriesSaved(msg entriesSaved) (tea.Model, tea.Cmd) {
	a.log = append(a.log, msg.lines...)

	if msg.outputDir != "" {
		a.log = append(a.log, "", fmt.Sprintf("✅ 输出目录已配置: %s", msg.outputDir))
		return a.finale()
	}

	a.log = append(a.log,
		"",
		heavyRule,
		"📁 输出目录配置",
		heavyRule,
		"生成的 Markdown 文档将保存在此目录。",
		"默认情况下，文档将保存到当前工作目录。",
		"",
	)
	a.step = stepOutputAsk
	return a, nil
}

func (a *App) handleOutputDirSet(msg outputDirSet) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		a.log = append(a.log, "❌ 无法设置输出目录，请检查路径是否正确")
		a.step = stepOutputRetry
		return a, nil
	}
	a.log = append(a.log, fmt.Sprintf("✅ 输出目录已设置为: %s", msg.dir))
	return a.finale()
}

func (a *App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case keyCtrlC, keyEsc:
		a.log = append(a.log, "", "", "⏹️  配置已取消")
		a.step = stepCancelled
		return a, tea.Quit
	}

	switch a.step {
	case stepWelcome:
		return a.handleWelcomeKey(msg)
	case stepCountConfirm:
		return a.handleCountConfirmKey(msg)
	case stepKeyConfirm:
		return a.handleKeyConfirmKey(msg)
	case stepDefault:
		return a.handleDefaultKey(msg)
	case stepReview:
		return a.handleReviewKey(msg)
	case stepOutputAsk:
		return a.handleOutputAskKey(msg)
	case stepOutputRetry:
		return a.handleOutputRetryKey(msg)
	case stepCount, stepName, stepAPIKey, stepTopicID, stepDescription, stepOutputPath:
		return a.handleTextKey(msg)
	}
	return a, nil
}

func (a *App) handleWelcomeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	answer, yes, ok := confirmAnswer(msg)
	if !ok {
		return a, nil
	}
	a.logPrompt(promptAddMore, answer)
	if yes {
		a.toCount()
		return a, nil
	}
	a.log = append(a.log,
		"",
		"可使用以下命令管理知识库:",
		"  - 查看配置: biji config list",
		"  - 添加知识库: biji config add --name <名> --api-key <key> --topic-id <id>",
		"  - 设置输出目录: biji config set output_dir <路径>",
	)
	a.step = stepManaged
	return a, tea.Quit
}

func (a *App) handleCountConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	answer, yes, ok := confirmAnswer(msg)
	if !ok {
		return a, nil
	}
	a.logPrompt(promptCountConfirm, answer)
	if yes {
		a.beginCollect()
		return a, nil
	}
	a.toCount()
	return a, nil
}

func (a *App) handleKeyConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	answer, yes, ok := confirmAnswer(msg)
	if !ok {
		return a, nil
	}
	a.logPrompt(promptKeyConfirm, answer)
	if yes {
		a.step = stepTopicID
		a.resetInput(textinput.EchoNormal)
		return a, nil
	}
	a.step = stepAPIKey
	a.resetInput(textinput.EchoPassword)
	return a, nil
}

func (a *App) handleDefaultKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	answer, yes, ok := confirmAnswer(msg)
	if !ok {
		return a, nil
	}
	a.logPrompt(a.defaultPrompt(), answer)
	a.draft.isDefault = yes
	a.finishEntry()
	return a, nil
}

func (a *App) handleReviewKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	answer, yes, ok := confirmAnswer(msg)
	if !ok {
		return a, nil
	}
	a.logPrompt(promptReviewConfirm, answer)
	if !yes {
		a.log = append(a.log, "⏭️  已取消配置保存")
		a.step = stepAborted
		return a, tea.Quit
	}
	a.log = append(a.log, "", "💾 正在保存配置...")
	a.step = stepSaving
	return a, a.saveEntries()
}

func (a *App) handleOutputAskKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	answer, yes, ok := confirmAnswer(msg)
	if !ok {
		return a, nil
	}
	a.logPrompt(promptOutputAsk, answer)
	if yes {
		a.step = stepOutputPath
		a.resetInput(textinput.EchoNormal)
		return a, nil
	}
	a.log = append(a.log,
		"⏭️  跳过输出目录配置，可稍后使用以下命令设置:",
		"   biji config set output_dir <路径>",
	)
	return a.finale()
}

func (a *App) handleOutputRetryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	answer, yes, ok := confirmAnswer(msg)
	if !ok {
		return a, nil
	}
	a.logPrompt(promptOutputRetry, answer)
	if yes {
		a.step = stepOutputPath
		a.resetInput(textinput.EchoNormal)
		return a, nil
	}
	return a.finale()
}

func (a *App) handleTextKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() != keyEnter {
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return a, cmd
	}

	value := strings.TrimSpace(a.input.Value())
	switch a.step {
	case stepCount:
		return a.submitCount(value)
	case stepName:
		return a.submitName(value)
	case stepAPIKey:
		return a.submitAPIKey(value)
	case stepTopicID:
		return a.submitTopicID(value)
	case stepDescription:
		return a.submitDescription(value)
	case stepOutputPath:
		return a.submitOutputPath(value)
	}
	return a, nil
}

func (a *App) submitCount(value string) (tea.Model, tea.Cmd) {
	if value == "" {
		a.failInput(promptCount, value, "❌ 输入不能为空", true)
		return a, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		a.failInput(promptCount, value, "❌ 请输入有效的数字", true)
		return a, nil
	}
	if n <= 0 {
		a.failInput(promptCount, value, "❌ 请输入大于 0 的数字", true)
		return a, nil
	}

	a.logPrompt(promptCount, value)
	a.count = n
	if n > 10 {
		a.log = append(a.log, "⚠️  建议最多添加 10 个知识库")
		a.step = stepCountConfirm
		return a, nil
	}
	a.beginCollect()
	return a, nil
}

func (a *App) submitName(value string) (tea.Model, tea.Cmd) {
	if value == "" {
		a.failInput(promptName, value, "  ❌ 名称不能为空", false)
		return a, nil
	}
	if a.taken[value] {
		a.failInput(promptName, value, fmt.Sprintf("  ❌ 知识库 '%s' 已存在", value), false)
		return a, nil
	}

	a.logPrompt(promptName, value)
	a.draft.name = value
	a.step = stepAPIKey
	a.resetInput(textinput.EchoPassword)
	return a, nil
}

func (a *App) submitAPIKey(value string) (tea.Model, tea.Cmd) {
	if value == "" {
		a.failInput(promptAPIKey, "", "  ❌ API Key 不能为空", false)
		return a, nil
	}

	a.logPrompt(promptAPIKey, maskKey(value))
	a.draft.apiKey = value
	if utf8.RuneCountInString(value) < 10 {
		a.step = stepKeyConfirm
		return a, nil
	}
	a.step = stepTopicID
	a.resetInput(textinput.EchoNormal)
	return a, nil
}

func (a *App) submitTopicID(value string) (tea.Model, tea.Cmd) {
	if value == "" {
		a.failInput(promptTopicID, value, "  ❌ Topic ID 不能为空", false)
		return a, nil
	}

	a.logPrompt(promptTopicID, value)
	a.draft.topicID = value
	a.step = stepDescription
	a.resetInput(textinput.EchoNormal)
	return a, nil
}

func (a *App) submitDescription(value string) (tea.Model, tea.Cmd) {
	a.logPrompt(promptDesc, value)

	choice := strings.ToLower(value)
	if choice == "" {
		choice = "auto"
	}
	switch choice {
	case "auto":
		a.draft.desc = domain.LegacyDescription(domain.DescriptionPending, "")
	case "skip":
		a.draft.desc = ""
	default:
		a.draft.desc = value
	}

	a.step = stepDefault
	return a, nil
}

func (a *App) submitOutputPath(value string) (tea.Model, tea.Cmd) {
	if value == "" {
		a.failInput(promptOutputDir, value, "❌ 路径不能为空", false)
		return a, nil
	}
	a.logPrompt(promptOutputDir, value)
	return a, a.setOutputDir(value)
}

// beginCollect opens the collection phase after the count is confirmed.
func (a *App) beginCollect() {
	a.log = append(a.log,
		"",
		heavyRule,
		fmt.Sprintf("📋 请依次输入 %d 个知识库的配置信息", a.count),
		heavyRule,
	)
	a.kbIndex = 0
	a.collected = a.collected[:0]
	a.startEntry()
}

// startEntry resets the draft and shows the per-entry form guide.
func (a *App) startEntry() {
	a.draft = entryDraft{}
	a.log = append(a.log,
		"",
		fmt.Sprintf("知识库 #%d 配置表单", a.kbIndex+1),
		formRule,
		"",
		"请按顺序输入以下信息（每个字段直接输入，回车确认）:",
		"",
		"  1️⃣  知识库名称 (必填，不能重复)",
		"  2️⃣  API Key (必填，来自 biji.com API 设置)",
		"  3️⃣  Topic ID (必填，来自 biji.com API 设置)",
		"  4️⃣  描述配置 (选项: auto 自动生成/skip 跳过/或输入自定义描述)",
		"  5️⃣  默认库 (选项: y 是/n 否)",
		"",
	)
	a.step = stepName
	a.resetInput(textinput.EchoNormal)
}

// finishEntry records the completed draft and moves to the next entry
// or to the review summary.
func (a *App) finishEntry() {
	d := a.draft
	a.taken[d.name] = true
	a.collected = append(a.collected, d)

	a.log = append(a.log,
		"",
		fmt.Sprintf("✅ 已录入: %s | %s... | %s | 描述:%s | 默认:%s",
			d.name, firstRunes(d.apiKey, 10), d.topicID, d.desc, yesNo(d.isDefault)),
		"",
		fmt.Sprintf("   ✅ 第 %d 个知识库配置完成", a.kbIndex+1),
		"",
	)

	a.kbIndex++
	if a.kbIndex < a.count {
		a.startEntry()
		return
	}
	a.toReview()
}

func (a *App) toCount() {
	a.log = append(a.log, "")
	a.step = stepCount
	a.resetInput(textinput.EchoNormal)
}

func (a *App) toReview() {
	a.log = append(a.log, "", heavyRule, "📊 配置摘要", heavyRule)
	for i, d := range a.collected {
		desc := d.desc
		if desc == "" {
			desc = "(无)"
		}
		a.log = append(a.log,
			"",
			fmt.Sprintf("%d. %s", i+1, d.name),
			fmt.Sprintf("   API Key: %s...%s", firstRunes(d.apiKey, 10), lastRunes(d.apiKey, 5)),
			fmt.Sprintf("   Topic ID: %s", d.topicID),
			fmt.Sprintf("   描述: %s", desc),
			fmt.Sprintf("   默认库: %s", yesNo(d.isDefault)),
		)
	}
	a.log = append(a.log, "", lightRule)
	a.step = stepReview
}

func (a *App) finale() (tea.Model, tea.Cmd) {
	a.log = append(a.log,
		"",
		heavyRule,
		"🎉 配置完成！",
		heavyRule,
		"接下来您可以:",
		"  1. 查看配置: biji config list",
		"  2. 搜索知识库: biji ask '您的问题'",
		"  3. 管理输出: biji config set output_dir <路径>",
		"",
		"祝您使用愉快！✨",
	)
	a.step = stepComplete
	return a, tea.Quit
}

func (a *App) loadRegistry() tea.Cmd {
	registry := a.ports.Registry
	return func() tea.Msg {
		entries, err := registry.List()
		if err != nil {
			return registryLoaded{err: err}
		}
		msg := registryLoaded{entries: entries}
		if def, err := registry.Default(); err == nil && def != nil {
			msg.defaultName = def.Name
		}
		return msg
	}
}

func (a *App) saveEntries() tea.Cmd {
	registry := a.ports.Registry
	drafts := make([]entryDraft, len(a.collected))
	copy(drafts, a.collected)

	return func() tea.Msg {
		lines := make([]string, 0, len(drafts)+2)
		for _, d := range drafts {
			status, text := domain.ParseLegacyDescription(d.desc)
			kb := domain.KnowledgeBase{
				Name:              d.name,
				APIKey:            d.apiKey,
				TopicID:           d.topicID,
				Description:       text,
				DescriptionStatus: status,
			}
			if err := registry.Add(kb, false); err != nil {
				lines = append(lines, fmt.Sprintf("   ❌ 保存失败: %s", d.name))
				continue
			}
			lines = append(lines, fmt.Sprintf("   ✅ 已保存: %s", d.name))
			if d.isDefault {
				_ = registry.SetDefault(d.name)
			}
		}
		lines = append(lines, "", "✅ 知识库配置已保存！")

		var outputDir string
		if settings, err := registry.Settings(); err == nil {
			outputDir = settings.OutputDir
		}
		return entriesSaved{lines: lines, outputDir: outputDir}
	}
}

func (a *App) setOutputDir(path string) tea.Cmd {
	registry := a.ports.Registry
	return func() tea.Msg {
		if err := registry.SetOutputDir(path); err != nil {
			return outputDirSet{dir: path, err: err}
		}
		// Echo the stored value so the transcript shows the expanded path.
		dir := path
		if settings, err := registry.Settings(); err == nil && settings.OutputDir != "" {
			dir = settings.OutputDir
		}
		return outputDirSet{dir: dir}
	}
}

// failInput logs a rejected answer and clears the input for another attempt.
func (a *App) failInput(prompt, value, errLine string, blankBeforeRetry bool) {
	a.log = append(a.log, prompt+value, errLine)
	if blankBeforeRetry {
		a.log = append(a.log, "")
	}
	a.input.SetValue("")
}

// logPrompt records an answered prompt line in the transcript.
func (a *App) logPrompt(prompt, answer string) {
	a.log = append(a.log, prompt+answer)
}

func (a *App) resetInput(echo textinput.EchoMode) {
	a.input.SetValue("")
	a.input.EchoMode = echo
	a.input.Focus()
}

func (a *App) inputActive() bool {
	switch a.step {
	case stepCount, stepName, stepAPIKey, stepTopicID, stepDescription, stepOutputPath:
		return true
	}
	return false
}

func (a *App) defaultPrompt() string {
	info := "(无默认库)"
	if a.defaultName != "" {
		info = fmt.Sprintf("(当前默认库: %s)", a.defaultName)
	}
	return fmt.Sprintf("→ 设为默认库？y/n %s: ", info)
}

func (a *App) renderLive() string {
	switch a.step {
	case stepWelcome:
		return a.renderConfirm(promptAddMore)
	case stepCount:
		return a.renderInput(promptCount)
	case stepCountConfirm:
		return a.renderConfirm(promptCountConfirm)
	case stepName:
		return a.renderInput(promptName)
	case stepAPIKey:
		return a.renderInput(promptAPIKey)
	case stepKeyConfirm:
		return a.renderConfirm(promptKeyConfirm)
	case stepTopicID:
		return a.renderInput(promptTopicID)
	case stepDescription:
		return a.renderInput(promptDesc)
	case stepDefault:
		return a.renderConfirm(a.defaultPrompt())
	case stepReview:
		return a.renderConfirm(promptReviewConfirm)
	case stepOutputAsk:
		return a.renderConfirm(promptOutputAsk)
	case stepOutputPath:
		return a.renderInput(promptOutputDir)
	case stepOutputRetry:
		return a.renderConfirm(promptOutputRetry)
	}
	return ""
}

func (a *App) renderInput(prompt string) string {
	return prompt + a.input.View() + "\n\n" +
		a.styles.Help.Render("enter 确认 · ctrl+c 取消") + "\n"
}

func (a *App) renderConfirm(prompt string) string {
	return prompt + "\n\n" +
		a.styles.Help.Render("y/n 选择 · ctrl+c 取消") + "\n"
}

// renderLine applies colour by line kind without changing the text itself.
func (a *App) renderLine(line string) string {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return line
	case strings.HasPrefix(trimmed, "❌"):
		return a.styles.Error.Render(line)
	case strings.HasPrefix(trimmed, "⚠️"):
		return a.styles.Warning.Render(line)
	case strings.HasPrefix(trimmed, "✅"), strings.HasPrefix(trimmed, "🎉"):
		return a.styles.Success.Render(line)
	case strings.HasPrefix(trimmed, "=="), strings.HasPrefix(trimmed, "--"):
		return a.styles.Muted.Render(line)
	default:
		return line
	}
}

// confirmAnswer maps a key press to a yes/no answer. Mirroring the
// console prompts, enter counts as declining.
func confirmAnswer(msg tea.KeyMsg) (answer string, yes, ok bool) {
	switch strings.ToLower(msg.String()) {
	case keyYes:
		return keyYes, true, true
	case keyNo:
		return keyNo, false, true
	case keyEnter:
		return "", false, true
	}
	return "", false, false
}

func maskKey(key string) string {
	return strings.Repeat("*", utf8.RuneCountInString(key))
}

func yesNo(v bool) string {
	if v {
		return "是"
	}
	return "否"
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func lastRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
