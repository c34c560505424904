package db

import (
	"time"

	"gorm.io/gorm"
)

// Draft 是后台编辑中的文章草稿，发布后记录内容服务返回的文章 id。
type Draft struct {
	gorm.Model
	Title           string
	Slug            string
	Summary         string `gorm:"type:text"`
	Content         string `gorm:"type:text"`
	CategoryID      string
	Status          string   `gorm:"default:DRAFT"`
	Tags            []string `gorm:"serializer:json"`
	IsFeatured      bool
	MetaTitle       string
	MetaDescription string `gorm:"type:text"`
	MetaKeywords    string
	RelatedIDs      []string `gorm:"serializer:json"`
	ArticleID       string   `gorm:"index"`
	PublishedAt     *time.Time
	Images          []DraftImage `gorm:"constraint:OnDelete:CASCADE;"`
}

// DraftImage 是草稿中的图片：未保存的图片保存原始字节，已保存的只记录地址。
type DraftImage struct {
	gorm.Model
	DraftID     uint   `gorm:"index"`
	LocalID     string `gorm:"uniqueIndex"`
	ImageURL    string
	Data        []byte `json:"-"`
	Thumbnail   []byte `json:"-"`
	MIMEType    string
	Width       int
	Height      int
	Description string
	IsPrimary   bool
	SortOrder   int
}

// Staged 判断图片是否仍只存在于本地。
func (i DraftImage) Staged() bool {
	return i.ImageURL == "" && len(i.Data) > 0
}
