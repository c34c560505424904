package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/newsfront/internal/content"
	"github.com/newsfront/internal/contentapi"
	"github.com/newsfront/internal/db"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var (
	ErrDraftNotFound      = errors.New("draft not found")
	ErrDraftImageNotFound = errors.New("draft image not found")
	ErrTooManyPrimary     = errors.New("at most one primary image is allowed")
	ErrDraftStatusInvalid = errors.New("draft status is invalid")
)

// ValidationError 列出所有缺失或不合法的字段。
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "请完善以下字段：" + strings.Join(e.Fields, "、")
}

// Publisher 是发布草稿所需的内容服务接口。
type Publisher interface {
	GetArticle(ctx context.Context, idOrSlug string) (contentapi.Article, error)
	CreateArticle(ctx context.Context, in contentapi.ArticleInput) (contentapi.Article, error)
	UpdateArticle(ctx context.Context, id string, in contentapi.ArticleInput) (contentapi.Article, error)
}

// DraftInput represents fields accepted when creating or updating a draft.
type DraftInput struct {
	Title           string   `json:"title"`
	Slug            string   `json:"slug"`
	Summary         string   `json:"summary"`
	Content         string   `json:"content"`
	CategoryID      string   `json:"category_id"`
	Status          string   `json:"status"`
	Tags            []string `json:"tags"`
	IsFeatured      bool     `json:"is_featured"`
	MetaTitle       string   `json:"meta_title"`
	MetaDescription string   `json:"meta_description"`
	MetaKeywords    string   `json:"meta_keywords"`
	RelatedIDs      []string `json:"related_article_ids"`
}

// DraftListResult aggregates paginated list data.
type DraftListResult struct {
	Drafts     []db.Draft `json:"drafts"`
	Total      int64      `json:"total"`
	TotalPages int        `json:"total_pages"`
	Page       int        `json:"page"`
	PerPage    int        `json:"per_page"`
}

// publishForm 是发布前校验的字段集合。
type publishForm struct {
	Title      string `validate:"required"`
	Content    string `validate:"required"`
	CategoryID string `validate:"required"`
	Status     string `validate:"required,oneof=DRAFT REVIEW PUBLISHED SCHEDULED ARCHIVED"`
}

var publishFieldLabels = map[string]string{
	"Title":      "标题",
	"Content":    "内容",
	"CategoryID": "分类",
	"Status":     "状态",
}

// DraftService 管理本地草稿和暂存图片，并负责发布到内容服务。
type DraftService struct {
	db        *gorm.DB
	publisher Publisher
	renderer  *content.Renderer
	validate  *validator.Validate
	logger    zerolog.Logger
}

// NewDraftService creates a DraftService instance.
func NewDraftService(gdb *gorm.DB, publisher Publisher, renderer *content.Renderer, logger zerolog.Logger) *DraftService {
	return &DraftService{
		db:        gdb,
		publisher: publisher,
		renderer:  renderer,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger.With().Str("component", "drafts").Logger(),
	}
}

// List returns drafts ordered by update time descending.
func (s *DraftService) List(page, perPage int) (DraftListResult, error) {
	result := DraftListResult{
		Page:    normalizePage(page),
		PerPage: normalizePerPage(perPage, 20),
	}

	query := s.db.Model(&db.Draft{})
	if err := query.Count(&result.Total).Error; err != nil {
		return result, err
	}
	result.TotalPages = calculateTotalPages(result.Total, result.PerPage)

	if err := query.Order("updated_at desc").
		Limit(result.PerPage).
		Offset((result.Page - 1) * result.PerPage).
		Find(&result.Drafts).Error; err != nil {
		return result, err
	}
	if result.Drafts == nil {
		result.Drafts = []db.Draft{}
	}
	return result, nil
}

// Get fetches a draft with its images ordered for display.
func (s *DraftService) Get(id uint) (*db.Draft, error) {
	var draft db.Draft
	err := s.db.Preload("Images", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("sort_order asc").Order("id asc")
	}).First(&draft, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDraftNotFound
		}
		return nil, err
	}
	return &draft, nil
}

// Create persists a new draft.
func (s *DraftService) Create(input DraftInput) (*db.Draft, error) {
	draft := db.Draft{}
	if err := applyDraftInput(&draft, input); err != nil {
		return nil, err
	}
	if err := s.db.Create(&draft).Error; err != nil {
		return nil, err
	}
	return &draft, nil
}

// Update applies updates to an existing draft.
func (s *DraftService) Update(id uint, input DraftInput) (*db.Draft, error) {
	draft, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := applyDraftInput(draft, input); err != nil {
		return nil, err
	}
	if err := s.db.Omit("Images").Save(draft).Error; err != nil {
		return nil, err
	}
	return draft, nil
}

// Delete removes a draft and its staged images.
func (s *DraftService) Delete(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&db.Draft{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrDraftNotFound
		}
		return tx.Unscoped().Where("draft_id = ?", id).Delete(&db.DraftImage{}).Error
	})
}

func applyDraftInput(draft *db.Draft, input DraftInput) error {
	status := strings.ToUpper(strings.TrimSpace(input.Status))
	if status == "" {
		status = contentapi.StatusDraft
	}
	switch status {
	case contentapi.StatusDraft, contentapi.StatusReview, contentapi.StatusPublished,
		contentapi.StatusScheduled, contentapi.StatusArchived:
	default:
		return ErrDraftStatusInvalid
	}

	draft.Title = strings.TrimSpace(input.Title)
	draft.Slug = strings.TrimSpace(input.Slug)
	draft.Summary = strings.TrimSpace(input.Summary)
	draft.Content = input.Content
	draft.CategoryID = strings.TrimSpace(input.CategoryID)
	draft.Status = status
	draft.Tags = normalizeTags(input.Tags)
	draft.IsFeatured = input.IsFeatured
	draft.MetaTitle = strings.TrimSpace(input.MetaTitle)
	draft.MetaDescription = strings.TrimSpace(input.MetaDescription)
	draft.MetaKeywords = strings.TrimSpace(input.MetaKeywords)
	draft.RelatedIDs = normalizeTags(input.RelatedIDs)
	return nil
}

func normalizeTags(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// StageImage 把上传的图片暂存到草稿，返回分配的本地 id。草稿没有主图时新图片成为主图。
func (s *DraftService) StageImage(draftID uint, data []byte, description string) (*db.DraftImage, error) {
	draft, err := s.Get(draftID)
	if err != nil {
		return nil, err
	}

	staged, err := inspectImage(data)
	if err != nil {
		return nil, err
	}

	hasPrimary := false
	maxOrder := 0
	for _, img := range draft.Images {
		hasPrimary = hasPrimary || img.IsPrimary
		if img.SortOrder > maxOrder {
			maxOrder = img.SortOrder
		}
	}

	img := db.DraftImage{
		DraftID:     draft.ID,
		LocalID:     uuid.NewString(),
		Data:        data,
		Thumbnail:   staged.Thumbnail,
		MIMEType:    staged.MIMEType,
		Width:       staged.Width,
		Height:      staged.Height,
		Description: strings.TrimSpace(description),
		IsPrimary:   !hasPrimary,
		SortOrder:   maxOrder + 1,
	}
	if err := s.db.Create(&img).Error; err != nil {
		return nil, err
	}
	return &img, nil
}

// Image 返回草稿中的一张图片。
func (s *DraftService) Image(draftID uint, localID string) (*db.DraftImage, error) {
	var img db.DraftImage
	if err := s.db.Where("draft_id = ? AND local_id = ?", draftID, localID).First(&img).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDraftImageNotFound
		}
		return nil, err
	}
	return &img, nil
}

// UpdateImageDescription 修改图片说明。
func (s *DraftService) UpdateImageDescription(draftID uint, localID, description string) (*db.DraftImage, error) {
	img, err := s.Image(draftID, localID)
	if err != nil {
		return nil, err
	}
	img.Description = strings.TrimSpace(description)
	if err := s.db.Save(img).Error; err != nil {
		return nil, err
	}
	return img, nil
}

// SetPrimary 把指定图片设为主图，其余图片取消主图标记。
func (s *DraftService) SetPrimary(draftID uint, localID string) error {
	if _, err := s.Image(draftID, localID); err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&db.DraftImage{}).
			Where("draft_id = ?", draftID).
			Update("is_primary", false).Error; err != nil {
			return err
		}
		return tx.Model(&db.DraftImage{}).
			Where("draft_id = ? AND local_id = ?", draftID, localID).
			Update("is_primary", true).Error
	})
}

// RemoveImage 删除图片。被删除的是主图时，排序最前的图片接替主图。
func (s *DraftService) RemoveImage(draftID uint, localID string) error {
	img, err := s.Image(draftID, localID)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Delete(img).Error; err != nil {
			return err
		}
		if !img.IsPrimary {
			return nil
		}
		var next db.DraftImage
		err := tx.Where("draft_id = ?", draftID).Order("sort_order asc").Order("id asc").First(&next).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return tx.Model(&next).Update("is_primary", true).Error
	})
}

// ImageReferences 把草稿图片转换为内容管线的引用，暂存图片以 data URL 提供。
func ImageReferences(images []db.DraftImage) []content.ImageReference {
	refs := make([]content.ImageReference, 0, len(images))
	for _, img := range images {
		ref := content.ImageReference{
			LocalID:     img.LocalID,
			ImageURL:    img.ImageURL,
			Description: img.Description,
			IsPrimary:   img.IsPrimary,
		}
		if img.Staged() {
			ref.ImageData = dataURL(img.MIMEType, img.Data)
		}
		refs = append(refs, ref)
	}
	return refs
}

// Preview 用与读者端相同的渲染器渲染草稿。
func (s *DraftService) Preview(id uint) (content.ReadingView, error) {
	draft, err := s.Get(id)
	if err != nil {
		return content.ReadingView{}, err
	}
	return s.renderer.RenderSections(draft.Content, ImageReferences(draft.Images))
}

// Validate 在提交前检查草稿，一次列出全部缺失字段。
func (s *DraftService) Validate(draft *db.Draft) error {
	form := publishForm{
		Title:      strings.TrimSpace(draft.Title),
		Content:    strings.TrimSpace(draft.Content),
		CategoryID: strings.TrimSpace(draft.CategoryID),
		Status:     draft.Status,
	}

	if err := s.validate.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			label, ok := publishFieldLabels[fe.Field()]
			if !ok {
				label = fe.Field()
			}
			fields = append(fields, label)
		}
		return &ValidationError{Fields: fields}
	}

	primary := 0
	for _, img := range draft.Images {
		if img.IsPrimary {
			primary++
		}
	}
	if primary > 1 {
		return ErrTooManyPrimary
	}
	return nil
}

// BuildArticleInput 组装提交给内容服务的文章。
func BuildArticleInput(draft *db.Draft) contentapi.ArticleInput {
	input := contentapi.ArticleInput{
		Title:             draft.Title,
		Slug:              draft.Slug,
		Content:           draft.Content,
		Summary:           draft.Summary,
		CategoryID:        draft.CategoryID,
		Status:            draft.Status,
		IsFeatured:        draft.IsFeatured,
		Images:            make([]contentapi.InputImage, 0, len(draft.Images)),
		Tags:              make([]contentapi.Tag, 0, len(draft.Tags)),
		RelatedArticleIDs: draft.RelatedIDs,
	}

	for _, name := range draft.Tags {
		input.Tags = append(input.Tags, contentapi.Tag{Name: name})
	}

	for _, img := range draft.Images {
		item := contentapi.InputImage{
			LocalID:     img.LocalID,
			Description: img.Description,
			IsPrimary:   img.IsPrimary,
		}
		if img.Staged() {
			item.ImageData = dataURL(img.MIMEType, img.Data)
		} else {
			item.ImageURL = img.ImageURL
		}
		input.Images = append(input.Images, item)
		if img.IsPrimary && !img.Staged() {
			input.ImageURL = img.ImageURL
		}
	}

	if draft.MetaTitle != "" || draft.MetaDescription != "" || draft.MetaKeywords != "" {
		input.SeoMetadata = &contentapi.SeoMetadata{
			MetaTitle:       draft.MetaTitle,
			MetaDescription: draft.MetaDescription,
			MetaKeywords:    draft.MetaKeywords,
		}
	}
	return input
}

// Publish 校验草稿后创建或更新内容服务上的文章，并记录文章 id。
// 校验失败时不会访问内容服务。
func (s *DraftService) Publish(ctx context.Context, id uint) (contentapi.Article, error) {
	draft, err := s.Get(id)
	if err != nil {
		return contentapi.Article{}, err
	}
	if err := s.Validate(draft); err != nil {
		return contentapi.Article{}, err
	}

	input := BuildArticleInput(draft)

	var article contentapi.Article
	if draft.ArticleID == "" {
		article, err = s.publisher.CreateArticle(ctx, input)
	} else {
		article, err = s.publisher.UpdateArticle(ctx, draft.ArticleID, input)
	}
	if err != nil {
		return contentapi.Article{}, err
	}

	now := time.Now()
	updates := map[string]any{"article_id": article.ID, "published_at": &now}
	if article.Slug != "" {
		updates["slug"] = article.Slug
	}
	if err := s.db.Model(&db.Draft{}).Where("id = ?", draft.ID).Updates(updates).Error; err != nil {
		return article, fmt.Errorf("remember published article: %w", err)
	}

	s.logger.Info().Uint("draft_id", draft.ID).Str("article_id", article.ID).Msg("draft published")
	return article, nil
}

// EditArticle 把内容服务上的文章载入为草稿，已保存的图片只记录地址。
func (s *DraftService) EditArticle(ctx context.Context, idOrSlug string) (*db.Draft, error) {
	article, err := s.publisher.GetArticle(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}

	var existing db.Draft
	err = s.db.Where("article_id = ?", article.ID).First(&existing).Error
	if err == nil {
		return s.Get(existing.ID)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	tags := make([]string, 0, len(article.Tags))
	for _, tag := range article.Tags {
		tags = append(tags, tag.Name)
	}

	draft := db.Draft{
		Title:       article.Title,
		Slug:        article.Slug,
		Summary:     article.Summary,
		Content:     article.Content,
		CategoryID:  article.CategoryID,
		Status:      article.Status,
		Tags:        tags,
		IsFeatured:  article.IsFeatured,
		ArticleID:   article.ID,
		PublishedAt: article.PublishedAt,
	}
	for i, image := range article.Images {
		localID := image.ID
		if localID == "" {
			localID = uuid.NewString()
		}
		draft.Images = append(draft.Images, db.DraftImage{
			LocalID:     localID,
			ImageURL:    image.ImageURL,
			Description: image.Description,
			IsPrimary:   image.IsPrimary,
			SortOrder:   i + 1,
		})
	}
	if draft.Status == "" {
		draft.Status = contentapi.StatusDraft
	}

	if err := s.db.Create(&draft).Error; err != nil {
		return nil, err
	}
	return &draft, nil
}

// Import 把带 YAML/TOML 文件头的 Markdown 文件转为草稿。
func (s *DraftService) Import(raw []byte) (*db.Draft, error) {
	meta, body, err := content.ParseFrontMatter(raw)
	if err != nil {
		return nil, err
	}

	title := meta.Title
	if title == "" {
		sections := content.SplitSections(body)
		if len(sections) > 0 {
			title = sections[0].Label
		}
	}

	return s.Create(DraftInput{
		Title:      title,
		Slug:       meta.Slug,
		Summary:    meta.Summary,
		Content:    strings.TrimSpace(body),
		CategoryID: meta.CategoryID,
		Status:     meta.Status,
		Tags:       meta.Tags,
		IsFeatured: meta.Featured,
	})
}
