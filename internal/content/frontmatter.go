package content

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrFrontMatterFormat 表示文件头既不是 YAML 也不是 TOML。
var ErrFrontMatterFormat = errors.New("unknown front matter format")

// FrontMatter 是导入草稿时识别的文件头字段。
type FrontMatter struct {
	Title      string   `yaml:"title" toml:"title"`
	Slug       string   `yaml:"slug" toml:"slug"`
	Summary    string   `yaml:"summary" toml:"summary"`
	CategoryID string   `yaml:"category_id" toml:"category_id"`
	Status     string   `yaml:"status" toml:"status"`
	Tags       []string `yaml:"tags" toml:"tags"`
	Featured   bool     `yaml:"is_featured" toml:"is_featured"`
}

// ParseFrontMatter 拆分 `---` YAML 或 `+++` TOML 文件头与正文。
// 没有文件头时整份内容作为正文返回。
func ParseFrontMatter(raw []byte) (FrontMatter, string, error) {
	str := strings.TrimPrefix(string(raw), "\ufeff")
	trimmed := strings.TrimLeft(str, " \t\r\n")

	var fm FrontMatter
	switch {
	case strings.HasPrefix(trimmed, "---"):
		parts := strings.SplitN(trimmed, "---", 3)
		if len(parts) != 3 {
			return fm, "", ErrFrontMatterFormat
		}
		if err := yaml.Unmarshal([]byte(parts[1]), &fm); err != nil {
			return fm, "", fmt.Errorf("parse yaml front matter: %w", err)
		}
		return fm, strings.TrimSpace(parts[2]), nil
	case strings.HasPrefix(trimmed, "+++"):
		parts := strings.SplitN(trimmed, "+++", 3)
		if len(parts) != 3 {
			return fm, "", ErrFrontMatterFormat
		}
		if err := toml.Unmarshal([]byte(parts[1]), &fm); err != nil {
			return fm, "", fmt.Errorf("parse toml front matter: %w", err)
		}
		return fm, strings.TrimSpace(parts[2]), nil
	}

	return fm, strings.TrimSpace(str), nil
}
