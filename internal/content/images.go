package content

import (
	"fmt"
	"sort"
	"strings"
)

// ImageReference 绑定一张暂存或已保存的图片与可展示的地址。
type ImageReference struct {
	LocalID     string `json:"local_id,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	ImageData   string `json:"image_data,omitempty"`
	Description string `json:"description,omitempty"`
	IsPrimary   bool   `json:"is_primary,omitempty"`
}

// ResolvedSource 是解析后的图片来源。Matched 为 false 时 Source 即原始引用。
type ResolvedSource struct {
	Source  string `json:"source"`
	Caption string `json:"caption,omitempty"`
	Matched bool   `json:"matched"`
}

// AssetResolver 将内容服务返回的相对路径补全为可访问的地址。
type AssetResolver struct {
	base string
}

// NewAssetResolver 以资源根地址构造解析器，末尾的斜杠会被去掉。
func NewAssetResolver(base string) AssetResolver {
	return AssetResolver{base: strings.TrimRight(strings.TrimSpace(base), "/")}
}

// Qualify 返回资源的完整地址。绝对地址与 data URL 原样返回。
func (r AssetResolver) Qualify(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http") || strings.HasPrefix(path, "data:") {
		return path
	}
	return r.base + "/" + strings.TrimLeft(path, "/")
}

// Resolve 在已知图片中查找引用，第一处匹配生效；查不到时退回原始引用，不返回错误。
func (r AssetResolver) Resolve(token string, known []ImageReference) ResolvedSource {
	matched := -1
	for i := range known {
		if r.matches(known[i], token) {
			matched = i
			break
		}
	}
	if matched < 0 {
		return ResolvedSource{Source: token}
	}

	image := known[matched]
	source := image.ImageData
	if source == "" {
		source = image.ImageURL
	}

	return ResolvedSource{
		Source:  r.Qualify(source),
		Caption: Caption(image, displayPosition(known, matched)),
		Matched: true,
	}
}

func (r AssetResolver) matches(image ImageReference, token string) bool {
	if token == "" {
		return false
	}
	if image.LocalID != "" && image.LocalID == token {
		return true
	}
	if image.ImageURL == "" {
		return false
	}
	return image.ImageURL == token || r.Qualify(image.ImageURL) == token
}

// DisplayOrder 返回主图优先的稳定排序下标，图库与图注共用这一顺序。
func DisplayOrder(known []ImageReference) []int {
	order := make([]int, len(known))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return known[order[a]].IsPrimary && !known[order[b]].IsPrimary
	})
	return order
}

func displayPosition(known []ImageReference, index int) int {
	for pos, i := range DisplayOrder(known) {
		if i == index {
			return pos + 1
		}
	}
	return index + 1
}

// Caption 生成 "Image N" 形式的图注，有描述时追加在冒号后。
func Caption(image ImageReference, position int) string {
	caption := fmt.Sprintf("Image %d", position)
	if desc := strings.TrimSpace(image.Description); desc != "" {
		caption += ": " + desc
	}
	return caption
}
