package services

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
)

// Generic fallbacks used when a corpus yields nothing extractable.
const (
	fallbackTheme    = "综合知识"
	fallbackKeywords = "多领域知识"
	fallbackScenario = "政策研究与决策参考"
)

// stopWords filters generic filler out of the keyword tiers.
var stopWords = map[string]struct{}{
	"这个": {}, "知识": {}, "知识库": {}, "主要": {}, "包括": {}, "涵盖": {},
	"内容": {}, "可以": {}, "进行": {}, "相关": {}, "不同": {}, "各种": {},
	"通过": {}, "以及": {}, "政策": {}, "框架": {}, "机会": {}, "关键": {},
	"支撑": {}, "领域": {}, "方面": {}, "问题": {}, "分析": {}, "发展": {},
	"建议": {}, "重点": {}, "核心": {}, "提供": {}, "具有": {}, "需要": {},
	"关注": {}, "强调": {}, "特点": {}, "价值": {}, "作用": {}, "影响": {},
}

var (
	boldMarkupRe  = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	inlineMarkRe  = regexp.MustCompile("[*_`]+")
	templatedRe   = regexp.MustCompile(`该库主要涵盖[^。]+。`)
	looseTagRe    = regexp.MustCompile(`#([^\s#，。、！？\n]+)`)
	boundedTagRe  = regexp.MustCompile(`#([^\s#，。、！？\n]{2,10})`)
	bracketTermRe = regexp.MustCompile(`「([^」]{2,10})」`)
	hanWordRe     = regexp.MustCompile(`[\x{4e00}-\x{9fa5}]{2,8}`)
	flattenRe     = regexp.MustCompile("[#*`\\-\n]+")
	lineMarkRe    = regexp.MustCompile("[#*`\\-]")
)

var integrateThemeRes = []*regexp.Regexp{
	regexp.MustCompile(`核心主题聚焦于([^，。]{5,40})`),
	regexp.MustCompile(`主要涵盖([^，。]{5,40})`),
	regexp.MustCompile(`核心主题[：:]([^，。]{5,40})`),
	regexp.MustCompile(`关键领域[：:]([^，。]{5,40})`),
}

var integrateScenarioRes = []*regexp.Regexp{
	regexp.MustCompile(`适用于([^，。]{5,30})`),
	regexp.MustCompile(`为([^，。]{5,30})提供`),
	regexp.MustCompile(`服务于([^，。]{5,30})`),
}

var extractThemeRes = []*regexp.Regexp{
	regexp.MustCompile(`核心主题[：:涵盖]*([^，。\n]{5,40})`),
	regexp.MustCompile(`主要涵盖([^，。\n]{5,40})`),
	regexp.MustCompile(`聚焦于([^，。\n]{5,40})`),
}

// stripMarkup removes the markdown the API decorates answers with.
func stripMarkup(s string) string {
	s = boldMarkupRe.ReplaceAllString(s, "$1")
	return strings.TrimSpace(inlineMarkRe.ReplaceAllString(s, ""))
}

// clipDescription enforces the description length cap, trading the
// tail for an ellipsis.
func clipDescription(s string) string {
	runes := []rune(s)
	if len(runes) <= domain.MaxDescriptionRunes {
		return s
	}
	return string(runes[:domain.MaxDescriptionRunes-3]) + "..."
}

func isStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}

// containsStopWord reports whether any stop word occurs inside s.
func containsStopWord(s string) bool {
	for sw := range stopWords {
		if strings.Contains(s, sw) {
			return true
		}
	}
	return false
}

// wordCounter counts words preserving first-seen order, so equal
// counts rank by appearance.
type wordCounter struct {
	counts map[string]int
	order  []string
}

func newWordCounter() *wordCounter {
	return &wordCounter{counts: make(map[string]int)}
}

func (c *wordCounter) add(w string) {
	if _, seen := c.counts[w]; !seen {
		c.order = append(c.order, w)
	}
	c.counts[w]++
}

type wordCount struct {
	word  string
	count int
}

// mostCommon returns up to n entries ranked by count, first-seen order
// breaking ties.
func (c *wordCounter) mostCommon(n int) []wordCount {
	ranked := make([]wordCount, 0, len(c.order))
	for _, w := range c.order {
		ranked = append(ranked, wordCount{word: w, count: c.counts[w]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].count > ranked[j].count
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// extractDescription distils a single introspective answer into a
// routable description. It tries, in order: an already-templated
// sentence, a tag line, labelled summary lines, and finally a plain
// clipped excerpt.
func extractDescription(content string) string {
	clean := stripMarkup(content)

	// An answer that already carries the canonical sentence wins.
	if m := templatedRe.FindString(clean); m != "" {
		return clipDescription(m)
	}

	// A tag line (#标签1 #标签2 ...) gives keywords directly.
	if tags := captureGroups(looseTagRe, content); len(tags) >= 3 {
		keywords := tags
		if len(keywords) > 8 {
			keywords = keywords[:8]
		}

		theme := ""
		for _, re := range extractThemeRes {
			if m := re.FindStringSubmatch(clean); m != nil {
				theme = strings.TrimSpace(m[1])
				break
			}
		}
		if theme == "" {
			theme = strings.Join(keywords[:min(3, len(keywords))], "、")
		}

		desc := assembleTagDescription(theme, keywords)
		if utf8.RuneCountInString(desc) > domain.MaxDescriptionRunes {
			desc = assembleTagDescription(theme, keywords[:min(5, len(keywords))])
		}
		return clipDescription(desc)
	}

	// Labelled lines (核心主题 / 关键领域 / 关键词 / 适用于).
	var parts []string
	for _, line := range strings.Split(clean, "\n") {
		line = strings.TrimSpace(line)
		if !containsAny(line, "核心主题", "关键领域", "关键词", "适用于") {
			continue
		}
		cleaned := strings.TrimSpace(lineMarkRe.ReplaceAllString(line, ""))
		if utf8.RuneCountInString(cleaned) > 10 {
			parts = append(parts, cleaned)
		}
	}
	if len(parts) > 0 {
		if len(parts) > 3 {
			parts = parts[:3]
		}
		return clipDescription("该库主要涵盖" + strings.Join(parts, "，"))
	}

	// Nothing structured: flatten and clip.
	flat := strings.TrimSpace(flattenRe.ReplaceAllString(content, " "))
	return clipDescription(flat)
}

func assembleTagDescription(theme string, keywords []string) string {
	joined := strings.Join(keywords, "、")
	if theme != "" {
		return fmt.Sprintf("该库主要涵盖%s，核心关键词包括%s。", theme, joined)
	}
	return fmt.Sprintf("核心关键词包括%s。", joined)
}

// integrateRounds fuses several introspective answers into one
// description: tiered keyword extraction (tags, then long terms, then
// three-character words), theme and scenario capture, and the canonical
// sentence template with progressive shortening.
func integrateRounds(results []string) string {
	tagTier := newWordCounter()
	longTier := newWordCounter()
	mediumTier := newWordCounter()
	var themes, scenarios []string

	for _, content := range results {
		clean := stripMarkup(content)

		// Explicit tags outrank everything; 「」 terms join them.
		for _, tag := range captureGroups(boundedTagRe, content) {
			if !isStopWord(tag) && utf8.RuneCountInString(tag) >= 3 {
				tagTier.add(tag)
			}
		}
		for _, term := range captureGroups(bracketTermRe, clean) {
			if !isStopWord(term) && utf8.RuneCountInString(term) >= 3 {
				tagTier.add(term)
			}
		}

		for _, word := range hanWordRe.FindAllString(clean, -1) {
			if isStopWord(word) {
				continue
			}
			switch n := utf8.RuneCountInString(word); {
			case n >= 4 && n <= 8:
				longTier.add(word)
			case n == 3:
				mediumTier.add(word)
			}
		}

		for _, re := range integrateThemeRes {
			for _, m := range re.FindAllStringSubmatch(clean, -1) {
				t := strings.TrimSpace(m[1])
				if utf8.RuneCountInString(t) >= 5 && !isStopWord(t) {
					themes = append(themes, t)
				}
			}
		}
		for _, re := range integrateScenarioRes {
			for _, m := range re.FindAllStringSubmatch(clean, -1) {
				sc := strings.TrimSpace(m[1])
				if utf8.RuneCountInString(sc) >= 5 && !containsStopWord(sc) {
					scenarios = append(scenarios, sc)
				}
			}
		}
	}

	var keywords []string
	appendUnique := func(w string) {
		for _, k := range keywords {
			if k == w {
				return
			}
		}
		keywords = append(keywords, w)
	}
	for _, wc := range tagTier.mostCommon(8) {
		appendUnique(wc.word)
	}
	for _, wc := range longTier.mostCommon(10) {
		if wc.count >= 2 && len(keywords) < 8 {
			appendUnique(wc.word)
		}
	}
	for _, wc := range mediumTier.mostCommon(10) {
		if wc.count >= 3 && len(keywords) < 8 {
			appendUnique(wc.word)
		}
	}
	if len(keywords) > 8 {
		keywords = keywords[:8]
	}

	themes = dedupe(themes, 2)
	scenarios = dedupe(scenarios, 2)

	theme := fallbackTheme
	switch {
	case len(themes) > 0 && utf8.RuneCountInString(themes[0]) < 30:
		theme = themes[0]
	case len(keywords) > 0:
		theme = strings.Join(keywords[:min(3, len(keywords))], "、")
	}

	keywordText := fallbackKeywords
	if len(keywords) > 0 {
		keywordText = strings.Join(keywords, "、")
	}

	scenario := fallbackScenario
	if len(scenarios) > 0 && utf8.RuneCountInString(scenarios[0]) < 25 {
		scenario = scenarios[0]
	}

	assemble := func(kws string) string {
		return fmt.Sprintf("该库主要涵盖%s，核心关键词包括%s，适用于%s。", theme, kws, scenario)
	}
	desc := assemble(keywordText)
	if utf8.RuneCountInString(desc) > domain.MaxDescriptionRunes && len(keywords) > 0 {
		desc = assemble(strings.Join(keywords[:min(5, len(keywords))], "、"))
	}
	if utf8.RuneCountInString(desc) > domain.MaxDescriptionRunes && len(keywords) > 0 {
		desc = assemble(strings.Join(keywords[:min(4, len(keywords))], "、"))
	}
	return clipDescription(desc)
}

// captureGroups returns every first capture group match.
func captureGroups(re *regexp.Regexp, s string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		out = append(out, m[1])
	}
	return out
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// dedupe keeps first occurrences up to a limit.
func dedupe(items []string, limit int) []string {
	seen := make(map[string]struct{}, len(items))
	var out []string
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
		if len(out) == limit {
			break
		}
	}
	return out
}
