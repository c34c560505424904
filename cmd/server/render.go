package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/newsfront/internal/content"
	"github.com/urfave/cli/v3"
)

// renderAction 用读者端的渲染器渲染本地 Markdown 文件，便于编辑在发布前检查分段与目录。
func renderAction(_ context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return errors.New("render: missing markdown file")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	meta, body, err := content.ParseFrontMatter(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	renderer := content.NewRenderer(content.NewAssetResolver(cmd.String("asset-base")))
	view, err := renderer.RenderSections(body, nil)
	if err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}

	if cmd.Bool("ansi") {
		return writeANSI(cmd.Root().Writer, meta, body, view, int(cmd.Int("width")))
	}
	_, err = io.WriteString(cmd.Root().Writer, string(view.Markup)+"\n")
	return err
}

func writeANSI(w io.Writer, meta content.FrontMatter, body string, view content.ReadingView, width int) error {
	var doc strings.Builder
	if meta.Title != "" {
		fmt.Fprintf(&doc, "# %s\n\n", meta.Title)
	}
	if meta.Summary != "" {
		fmt.Fprintf(&doc, "> %s\n\n", meta.Summary)
	}
	fmt.Fprintf(&doc, "*约 %d 分钟读完*\n\n", content.ReadingMinutes(body))

	if len(view.TOC) > 0 {
		doc.WriteString("## 目录\n\n")
		for i, section := range view.TOC {
			fmt.Fprintf(&doc, "%d. %s\n", i+1, section.Label)
		}
		doc.WriteString("\n---\n\n")
	}
	doc.WriteString(body)

	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(max(width, 20)),
	)
	if err != nil {
		return fmt.Errorf("create terminal renderer: %w", err)
	}
	out, err := r.Render(doc.String())
	if err != nil {
		return fmt.Errorf("render terminal output: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}
