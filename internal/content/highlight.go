package content

import (
	htmlstd "html"
	"html/template"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

var whitespacePattern = regexp.MustCompile(`\s+`)

// PlainText 提取 HTML 片段中的可见文本并压缩空白。
func PlainText(fragment string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	skip := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(whitespacePattern.ReplaceAllString(b.String(), " "))
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if isInvisibleTag(string(name)) {
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if isInvisibleTag(string(name)) && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(tokenizer.Text())
			}
		}
	}
}

func isInvisibleTag(name string) bool {
	return name == "script" || name == "style"
}

// Excerpt 截断纯文本，超出 limit 个字符时追加省略号。
func Excerpt(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit]) + "..."
}

// Highlight 将文本中与查询匹配的部分包裹为 <mark>，其余文本转义输出。
func Highlight(text, query string) template.HTML {
	query = strings.TrimSpace(query)
	if query == "" || text == "" {
		return template.HTML(htmlstd.EscapeString(text))
	}

	pattern, err := regexp.Compile("(?i)" + regexp.QuoteMeta(query))
	if err != nil {
		return template.HTML(htmlstd.EscapeString(text))
	}

	var b strings.Builder
	last := 0
	for _, loc := range pattern.FindAllStringIndex(text, -1) {
		b.WriteString(htmlstd.EscapeString(text[last:loc[0]]))
		b.WriteString("<mark>")
		b.WriteString(htmlstd.EscapeString(text[loc[0]:loc[1]]))
		b.WriteString("</mark>")
		last = loc[1]
	}
	b.WriteString(htmlstd.EscapeString(text[last:]))
	return template.HTML(b.String())
}

// ReadingMinutes 按每分钟 200 词估算阅读时长，至少 1 分钟。
func ReadingMinutes(text string) int {
	words := len(strings.Fields(text))
	minutes := (words + 199) / 200
	if minutes < 1 {
		return 1
	}
	return minutes
}
