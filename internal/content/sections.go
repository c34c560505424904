package content

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	minFragmentLength = 6
	maxLabelLength    = 50
	minLabelLength    = 5
	degenerateLength  = 10
	sectionLevel      = 2
)

var (
	fragmentSplitPattern = regexp.MustCompile(`\n+`)
	// imageOnlyPattern 匹配整段只有一张 Markdown 图片的片段。
	imageOnlyPattern = regexp.MustCompile(`^!\[[^\]]*]\((<[^>]+>|[^)\s]+)([^)]*)\)$`)
)

// Section 是正文中可寻址的一个段落单元，也是目录中的一项。
type Section struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Level int    `json:"level"`
	// Image 为 true 时 Label 为图片的 Markdown 源码，目录应直接渲染图片。
	Image bool `json:"image,omitempty"`
	// Fragment 保存该段去除首尾空白后的原文，用于逐段渲染。
	Fragment string `json:"-"`
}

// BuildSections 将正文按换行拆分为段落，生成带 id 的段落容器与目录。
// 没有任何段落保留下来时返回换行转为 <br/> 的原文以及空目录。
func BuildSections(body string) (string, []Section) {
	sections := SplitSections(body)
	if len(sections) == 0 {
		return strings.ReplaceAll(body, "\n", "<br/>"), []Section{}
	}

	var b strings.Builder
	for _, section := range sections {
		b.WriteString(wrapSection(section.ID, section.Fragment))
	}
	return b.String(), sections
}

// SplitSections 只做拆分与标签推导，不拼接容器。
func SplitSections(body string) []Section {
	fragments := fragmentSplitPattern.Split(body, -1)
	sections := make([]Section, 0, len(fragments))

	for _, raw := range fragments {
		fragment := strings.TrimSpace(raw)
		if utf8.RuneCountInString(fragment) < minFragmentLength {
			continue
		}

		id := fmt.Sprintf("section-%d", len(sections))
		text := strings.TrimSpace(strings.TrimPrefix(fragment, "- "))

		section := Section{ID: id, Level: sectionLevel, Fragment: fragment}
		if IsImageFragment(text) {
			section.Image = true
			section.Label = text
		} else {
			section.Label = deriveLabel(text)
		}
		sections = append(sections, section)
	}

	return sections
}

// IsImageFragment 判断片段是否只包含一张图片。
func IsImageFragment(text string) bool {
	return imageOnlyPattern.MatchString(strings.TrimSpace(text))
}

func wrapSection(id, fragment string) string {
	return fmt.Sprintf(`<div id="%s" class="article-section">%s</div>`, id, fragment)
}

func deriveLabel(text string) string {
	label := text
	if idx := strings.IndexAny(text, ".!?:"); idx >= 0 {
		label = text[:idx]
	}

	if utf8.RuneCountInString(label) < minLabelLength && utf8.RuneCountInString(text) > degenerateLength {
		label = truncateRunes(text, maxLabelLength)
	}

	if utf8.RuneCountInString(label) > maxLabelLength {
		label = truncateRunes(label, maxLabelLength-3) + "..."
	}

	return label
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
