package content

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

var imagesContextKey = parser.NewContextKey()

// ReadingView 是阅读页需要的正文与目录。
type ReadingView struct {
	Markup template.HTML `json:"markup"`
	TOC    []Section     `json:"toc"`
}

// Renderer 渲染文章正文，并在渲染时解析图片引用。
type Renderer struct {
	engine    goldmark.Markdown
	sanitizer *bluemonday.Policy
	assets    AssetResolver
}

// NewRenderer 创建一个使用 GFM 的渲染器。
func NewRenderer(assets AssetResolver) *Renderer {
	r := &Renderer{assets: assets, sanitizer: buildContentSanitizer()}
	r.engine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
		goldmark.WithParserOptions(
			parser.WithASTTransformers(util.Prioritized(&imageTransformer{assets: assets}, 100)),
		),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	return r
}

func buildContentSanitizer() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("id", "class").OnElements("div")
	policy.AllowAttrs("class").OnElements("mark", "span")
	policy.AllowDataURIImages()
	return policy
}

// Assets 返回渲染器使用的资源地址解析器。
func (r *Renderer) Assets() AssetResolver {
	return r.assets
}

// Render 将 Markdown 渲染为经过清洗的 HTML。
func (r *Renderer) Render(body string, images []ImageReference) (template.HTML, error) {
	raw, err := r.convert(body, images)
	if err != nil {
		return "", err
	}
	return template.HTML(r.sanitizer.SanitizeBytes(raw)), nil
}

// RenderSections 逐段渲染正文并包裹段落容器，返回阅读视图。
func (r *Renderer) RenderSections(body string, images []ImageReference) (ReadingView, error) {
	sections := SplitSections(body)
	if len(sections) == 0 {
		fallback, _ := BuildSections(body)
		return ReadingView{
			Markup: template.HTML(r.sanitizer.Sanitize(fallback)),
			TOC:    []Section{},
		}, nil
	}

	var buf bytes.Buffer
	for i := range sections {
		rendered, err := r.convert(sections[i].Fragment, images)
		if err != nil {
			return ReadingView{}, err
		}
		buf.WriteString(wrapSection(sections[i].ID, strings.TrimSpace(string(rendered))))
		if sections[i].Image {
			sections[i].Label = r.rewriteImageSource(sections[i].Label, images)
		}
	}

	return ReadingView{
		Markup: template.HTML(r.sanitizer.SanitizeBytes(buf.Bytes())),
		TOC:    sections,
	}, nil
}

func (r *Renderer) convert(body string, images []ImageReference) ([]byte, error) {
	ctx := parser.NewContext()
	ctx.Set(imagesContextKey, images)

	var buf bytes.Buffer
	if err := r.engine.Convert([]byte(body), &buf, parser.WithContext(ctx)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// rewriteImageSource 替换图片片段中的地址，目录中的缩略图与正文保持一致。
func (r *Renderer) rewriteImageSource(fragment string, images []ImageReference) string {
	groups := imageOnlyPattern.FindStringSubmatch(strings.TrimSpace(fragment))
	if len(groups) < 3 {
		return fragment
	}
	token := strings.TrimSuffix(strings.TrimPrefix(groups[1], "<"), ">")
	resolved := r.assets.Resolve(token, images)
	if !resolved.Matched || resolved.Source == token {
		return fragment
	}
	return strings.Replace(fragment, groups[1], "<"+resolved.Source+">", 1)
}

type imageTransformer struct {
	assets AssetResolver
}

func (t *imageTransformer) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	images, _ := pc.Get(imagesContextKey).([]ImageReference)

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		img, ok := n.(*ast.Image)
		if !ok {
			return ast.WalkContinue, nil
		}

		token := string(img.Destination)
		resolved := t.assets.Resolve(token, images)
		if !resolved.Matched {
			// 未登记的服务器相对路径仍需补全域名
			if strings.HasPrefix(token, "/") {
				img.Destination = []byte(t.assets.Qualify(token))
			}
			return ast.WalkSkipChildren, nil
		}

		img.Destination = []byte(resolved.Source)
		img.Title = []byte(resolved.Caption)
		for child := img.FirstChild(); child != nil; {
			next := child.NextSibling()
			img.RemoveChild(img, child)
			child = next
		}
		img.AppendChild(img, ast.NewString([]byte(resolved.Caption)))
		return ast.WalkSkipChildren, nil
	})
}
