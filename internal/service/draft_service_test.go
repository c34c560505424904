package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/newsfront/internal/content"
	"github.com/newsfront/internal/contentapi"
	"github.com/newsfront/internal/db"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupDraftTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:draft-service-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return gdb
}

type fakePublisher struct {
	created  []contentapi.ArticleInput
	updated  map[string]contentapi.ArticleInput
	articles map[string]contentapi.Article
	err      error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{
		updated:  make(map[string]contentapi.ArticleInput),
		articles: make(map[string]contentapi.Article),
	}
}

func (f *fakePublisher) GetArticle(_ context.Context, idOrSlug string) (contentapi.Article, error) {
	article, ok := f.articles[idOrSlug]
	if !ok {
		return contentapi.Article{}, &contentapi.APIError{Status: 404, Message: "not found"}
	}
	return article, nil
}

func (f *fakePublisher) CreateArticle(_ context.Context, in contentapi.ArticleInput) (contentapi.Article, error) {
	if f.err != nil {
		return contentapi.Article{}, f.err
	}
	f.created = append(f.created, in)
	return contentapi.Article{ID: fmt.Sprintf("art-%d", len(f.created)), Slug: "server-slug", Title: in.Title}, nil
}

func (f *fakePublisher) UpdateArticle(_ context.Context, id string, in contentapi.ArticleInput) (contentapi.Article, error) {
	if f.err != nil {
		return contentapi.Article{}, f.err
	}
	f.updated[id] = in
	return contentapi.Article{ID: id, Title: in.Title}, nil
}

func newDraftService(t *testing.T) (*DraftService, *fakePublisher) {
	t.Helper()
	pub := newFakePublisher()
	renderer := content.NewRenderer(content.NewAssetResolver("https://cdn.example.com"))
	return NewDraftService(setupDraftTestDB(t), pub, renderer, zerolog.Nop()), pub
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func completeDraft() DraftInput {
	return DraftInput{
		Title:      "城市新闻",
		Content:    "第一段新闻内容。\n\n![cover](placeholder)",
		CategoryID: "cat-1",
		Status:     "published",
		Tags:       []string{"城市", " 城市 ", "", "news"},
	}
}

func TestDraftService_CreateNormalizesInput(t *testing.T) {
	svc, _ := newDraftService(t)

	draft, err := svc.Create(completeDraft())
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	if draft.Status != contentapi.StatusPublished {
		t.Fatalf("expected upper-cased status, got %q", draft.Status)
	}
	if len(draft.Tags) != 2 {
		t.Fatalf("expected deduplicated tags, got %v", draft.Tags)
	}

	if _, err := svc.Create(DraftInput{Status: "unknown"}); !errors.Is(err, ErrDraftStatusInvalid) {
		t.Fatalf("expected ErrDraftStatusInvalid, got %v", err)
	}
}

func TestDraftService_StageImage(t *testing.T) {
	svc, _ := newDraftService(t)
	draft, err := svc.Create(completeDraft())
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}

	first, err := svc.StageImage(draft.ID, pngBytes(t, 640, 480), "封面")
	if err != nil {
		t.Fatalf("stage image: %v", err)
	}
	if first.MIMEType != "image/png" || first.Width != 640 || first.Height != 480 {
		t.Fatalf("unexpected image metadata: %s %dx%d", first.MIMEType, first.Width, first.Height)
	}
	if !first.IsPrimary {
		t.Fatalf("expected first image to become primary")
	}
	if len(first.Thumbnail) == 0 {
		t.Fatalf("expected thumbnail to be generated")
	}
	thumb, _, err := image.DecodeConfig(bytes.NewReader(first.Thumbnail))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if thumb.Width != thumbnailWidth {
		t.Fatalf("expected thumbnail width %d, got %d", thumbnailWidth, thumb.Width)
	}

	second, err := svc.StageImage(draft.ID, pngBytes(t, 10, 10), "")
	if err != nil {
		t.Fatalf("stage second image: %v", err)
	}
	if second.IsPrimary {
		t.Fatalf("expected second image not to be primary")
	}

	if _, err := svc.StageImage(draft.ID, []byte("plain text, not an image"), ""); !errors.Is(err, ErrImageUnsupported) {
		t.Fatalf("expected ErrImageUnsupported, got %v", err)
	}
	if _, err := svc.StageImage(9999, pngBytes(t, 1, 1), ""); !errors.Is(err, ErrDraftNotFound) {
		t.Fatalf("expected ErrDraftNotFound, got %v", err)
	}
}

func TestDraftService_SetPrimaryKeepsSinglePrimary(t *testing.T) {
	svc, _ := newDraftService(t)
	draft, _ := svc.Create(completeDraft())
	first, _ := svc.StageImage(draft.ID, pngBytes(t, 4, 4), "")
	second, _ := svc.StageImage(draft.ID, pngBytes(t, 4, 4), "")

	if err := svc.SetPrimary(draft.ID, second.LocalID); err != nil {
		t.Fatalf("set primary: %v", err)
	}

	loaded, err := svc.Get(draft.ID)
	if err != nil {
		t.Fatalf("get draft: %v", err)
	}
	for _, img := range loaded.Images {
		want := img.LocalID == second.LocalID
		if img.IsPrimary != want {
			t.Fatalf("image %s primary=%v, want %v", img.LocalID, img.IsPrimary, want)
		}
	}

	if err := svc.RemoveImage(draft.ID, second.LocalID); err != nil {
		t.Fatalf("remove image: %v", err)
	}
	remaining, err := svc.Image(draft.ID, first.LocalID)
	if err != nil {
		t.Fatalf("load remaining image: %v", err)
	}
	if !remaining.IsPrimary {
		t.Fatalf("expected remaining image to take over primary")
	}
	if err := svc.SetPrimary(draft.ID, "missing"); !errors.Is(err, ErrDraftImageNotFound) {
		t.Fatalf("expected ErrDraftImageNotFound, got %v", err)
	}
}

func TestDraftService_PreviewResolvesStagedImages(t *testing.T) {
	svc, _ := newDraftService(t)
	draft, _ := svc.Create(completeDraft())
	img, err := svc.StageImage(draft.ID, pngBytes(t, 4, 4), "现场")
	if err != nil {
		t.Fatalf("stage image: %v", err)
	}

	input := completeDraft()
	input.Content = "第一段新闻内容。\n\n![cover](" + img.LocalID + ")"
	if _, err := svc.Update(draft.ID, input); err != nil {
		t.Fatalf("update draft: %v", err)
	}

	view, err := svc.Preview(draft.ID)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	markup := string(view.Markup)
	if !strings.Contains(markup, "data:image/png;base64,") {
		t.Fatalf("expected staged image to render as data url, got %s", markup)
	}
	if !strings.Contains(markup, "Image 1: 现场") {
		t.Fatalf("expected caption in markup, got %s", markup)
	}
	if len(view.TOC) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(view.TOC))
	}
}

func TestDraftService_PublishValidatesBeforeUpstream(t *testing.T) {
	svc, pub := newDraftService(t)
	draft, _ := svc.Create(DraftInput{Content: "正文"})

	_, err := svc.Publish(context.Background(), draft.ID)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Fields) != 2 || verr.Fields[0] != "标题" || verr.Fields[1] != "分类" {
		t.Fatalf("expected title and category to be reported together, got %v", verr.Fields)
	}
	if !strings.Contains(verr.Error(), "标题、分类") {
		t.Fatalf("unexpected message %q", verr.Error())
	}
	if len(pub.created) != 0 {
		t.Fatalf("expected no upstream call, got %d", len(pub.created))
	}
}

func TestDraftService_PublishRejectsMultiplePrimary(t *testing.T) {
	svc, pub := newDraftService(t)
	draft, _ := svc.Create(completeDraft())
	svc.StageImage(draft.ID, pngBytes(t, 2, 2), "")
	second, _ := svc.StageImage(draft.ID, pngBytes(t, 2, 2), "")
	svc.db.Model(&db.DraftImage{}).Where("local_id = ?", second.LocalID).Update("is_primary", true)

	if _, err := svc.Publish(context.Background(), draft.ID); !errors.Is(err, ErrTooManyPrimary) {
		t.Fatalf("expected ErrTooManyPrimary, got %v", err)
	}
	if len(pub.created) != 0 {
		t.Fatalf("expected no upstream call")
	}
}

func TestDraftService_PublishCreatesThenUpdates(t *testing.T) {
	svc, pub := newDraftService(t)
	draft, _ := svc.Create(completeDraft())
	staged, _ := svc.StageImage(draft.ID, pngBytes(t, 2, 2), "图")
	svc.db.Create(&db.DraftImage{DraftID: draft.ID, LocalID: "saved-1", ImageURL: "/uploads/a.jpg", SortOrder: 9})

	article, err := svc.Publish(context.Background(), draft.ID)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if article.ID != "art-1" {
		t.Fatalf("unexpected article id %q", article.ID)
	}

	sent := pub.created[0]
	if len(sent.Images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(sent.Images))
	}
	if sent.Images[0].LocalID != staged.LocalID || !strings.HasPrefix(sent.Images[0].ImageData, "data:image/png;base64,") {
		t.Fatalf("expected staged image as data url, got %+v", sent.Images[0])
	}
	if sent.Images[1].ImageURL != "/uploads/a.jpg" || sent.Images[1].ImageData != "" {
		t.Fatalf("expected saved image by url, got %+v", sent.Images[1])
	}
	if len(sent.Tags) != 2 || sent.Tags[0].Name != "城市" {
		t.Fatalf("unexpected tags %+v", sent.Tags)
	}

	reloaded, _ := svc.Get(draft.ID)
	if reloaded.ArticleID != "art-1" || reloaded.PublishedAt == nil || reloaded.Slug != "server-slug" {
		t.Fatalf("expected draft to remember published article, got %+v", reloaded)
	}

	if _, err := svc.Publish(context.Background(), draft.ID); err != nil {
		t.Fatalf("republish: %v", err)
	}
	if _, ok := pub.updated["art-1"]; !ok {
		t.Fatalf("expected second publish to update art-1")
	}
	if len(pub.created) != 1 {
		t.Fatalf("expected a single create, got %d", len(pub.created))
	}
}

func TestDraftService_PublishFailureKeepsDraft(t *testing.T) {
	svc, pub := newDraftService(t)
	draft, _ := svc.Create(completeDraft())
	pub.err = &contentapi.APIError{Status: 429, Message: "slow down"}

	if _, err := svc.Publish(context.Background(), draft.ID); !contentapi.IsRateLimited(err) {
		t.Fatalf("expected rate limited error, got %v", err)
	}
	reloaded, _ := svc.Get(draft.ID)
	if reloaded.ArticleID != "" {
		t.Fatalf("expected draft to stay unpublished")
	}
}

func TestDraftService_EditArticle(t *testing.T) {
	svc, pub := newDraftService(t)
	pub.articles["hello"] = contentapi.Article{
		ID:      "art-9",
		Slug:    "hello",
		Title:   "Hello",
		Content: "Body paragraph.",
		Status:  contentapi.StatusPublished,
		Tags:    []contentapi.Tag{{Name: "go"}},
		Images:  []contentapi.ArticleImage{{ID: "img-1", ImageURL: "/uploads/x.png", IsPrimary: true}},
	}

	draft, err := svc.EditArticle(context.Background(), "hello")
	if err != nil {
		t.Fatalf("edit article: %v", err)
	}
	if draft.ArticleID != "art-9" || len(draft.Images) != 1 || draft.Images[0].Staged() {
		t.Fatalf("unexpected draft %+v", draft)
	}

	again, err := svc.EditArticle(context.Background(), "hello")
	if err != nil {
		t.Fatalf("edit article again: %v", err)
	}
	if again.ID != draft.ID {
		t.Fatalf("expected existing draft to be reused")
	}

	if _, err := svc.EditArticle(context.Background(), "missing"); !contentapi.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDraftService_Import(t *testing.T) {
	svc, _ := newDraftService(t)

	draft, err := svc.Import([]byte("---\ntitle: 导入标题\ntags: [a, b]\ncategory_id: cat-2\n---\n\n正文第一段内容。\n"))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if draft.Title != "导入标题" || draft.CategoryID != "cat-2" || len(draft.Tags) != 2 {
		t.Fatalf("unexpected draft %+v", draft)
	}
	if draft.Content != "正文第一段内容。" {
		t.Fatalf("unexpected body %q", draft.Content)
	}

	untitled, err := svc.Import([]byte("Breaking: markets rally. More details follow here."))
	if err != nil {
		t.Fatalf("import without front matter: %v", err)
	}
	if untitled.Title != "Breaking" {
		t.Fatalf("expected title from first section label, got %q", untitled.Title)
	}
}

func TestDraftService_ListAndDelete(t *testing.T) {
	svc, _ := newDraftService(t)
	for i := 0; i < 3; i++ {
		if _, err := svc.Create(DraftInput{Title: fmt.Sprintf("d%d", i)}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	list, err := svc.List(1, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list.Total != 3 || list.TotalPages != 2 || len(list.Drafts) != 2 {
		t.Fatalf("unexpected list %+v", list)
	}

	if err := svc.Delete(list.Drafts[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(list.Drafts[0].ID); !errors.Is(err, ErrDraftNotFound) {
		t.Fatalf("expected ErrDraftNotFound on second delete, got %v", err)
	}
}
