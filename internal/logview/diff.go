// Package logview 对审计/系统日志中的新旧数据做结构化对比。
package logview

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Change kinds
const (
	KindAdded   = "added"
	KindRemoved = "removed"
	KindChanged = "changed"
)

// Change 是一处字段差异。
type Change struct {
	Path  string `json:"path"`
	Kind  string `json:"kind"`
	Old   any    `json:"old,omitempty"`
	New   any    `json:"new,omitempty"`
	Label string `json:"label"`
}

var fieldLabels = map[string]string{
	"site_name":          "站点名称",
	"site_description":   "站点描述",
	"contact_email":      "联系邮箱",
	"contact_phone":      "联系电话",
	"footer_text":        "页脚内容",
	"items_per_page":     "每页文章数",
	"allow_registration": "允许注册",
	"maintenance_mode":   "维护模式",
	"facebook_url":       "Facebook 链接",
	"youtube_url":        "Youtube 链接",
	"name":               "名称",
	"slug":               "链接 (Slug)",
	"description":        "描述",
	"title":              "标题",
	"content":            "内容",
	"thumbnail":          "封面图",
	"category_id":        "分类 ID",
	"status":             "状态",
	"view_count":         "浏览量",
	"author":             "作者",
	"images":             "图片列表",
	"tags":               "标签",
	"updated_at":         "更新时间",
	"created_at":         "创建时间",
}

// Label 返回字段的显示名称，没有登记的字段原样返回。
func Label(key string) string {
	if label, ok := fieldLabels[key]; ok {
		return label
	}
	return key
}

// Diff 递归对比 old 与 new。对象按键名排序，数组按下标对比。
// 任一侧为空视为 null。
func Diff(oldData, newData json.RawMessage) ([]Change, error) {
	oldValue, err := decode(oldData)
	if err != nil {
		return nil, fmt.Errorf("decode old data: %w", err)
	}
	newValue, err := decode(newData)
	if err != nil {
		return nil, fmt.Errorf("decode new data: %w", err)
	}

	changes := make([]Change, 0)
	walk("", "", oldValue, newValue, &changes)
	return changes, nil
}

func decode(raw json.RawMessage) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	// 某些日志把 JSON 再编码成字符串存储
	if s, ok := v.(string); ok {
		trimmed := strings.TrimSpace(s)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			if inner, err := decode(json.RawMessage(trimmed)); err == nil {
				return inner, nil
			}
		}
	}
	return v, nil
}

func walk(path, key string, oldValue, newValue any, changes *[]Change) {
	oldMap, oldIsMap := oldValue.(map[string]any)
	newMap, newIsMap := newValue.(map[string]any)
	if oldIsMap && newIsMap {
		for _, k := range unionKeys(oldMap, newMap) {
			ov, inOld := oldMap[k]
			nv, inNew := newMap[k]
			child := join(path, k)
			switch {
			case !inOld:
				*changes = append(*changes, Change{Path: child, Kind: KindAdded, New: nv, Label: Label(k)})
			case !inNew:
				*changes = append(*changes, Change{Path: child, Kind: KindRemoved, Old: ov, Label: Label(k)})
			default:
				walk(child, k, ov, nv, changes)
			}
		}
		return
	}

	oldList, oldIsList := oldValue.([]any)
	newList, newIsList := newValue.([]any)
	if oldIsList && newIsList {
		n := len(oldList)
		if len(newList) > n {
			n = len(newList)
		}
		for i := 0; i < n; i++ {
			child := path + "[" + strconv.Itoa(i) + "]"
			switch {
			case i >= len(oldList):
				*changes = append(*changes, Change{Path: child, Kind: KindAdded, New: newList[i], Label: Label(key)})
			case i >= len(newList):
				*changes = append(*changes, Change{Path: child, Kind: KindRemoved, Old: oldList[i], Label: Label(key)})
			default:
				walk(child, key, oldList[i], newList[i], changes)
			}
		}
		return
	}

	if equal(oldValue, newValue) {
		return
	}
	kind := KindChanged
	switch {
	case oldValue == nil:
		kind = KindAdded
	case newValue == nil:
		kind = KindRemoved
	}
	*changes = append(*changes, Change{Path: path, Kind: kind, Old: oldValue, New: newValue, Label: Label(key)})
}

func unionKeys(a, b map[string]any) []string {
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		keys = append(keys, k)
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func equal(a, b any) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}
