package content

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/instance"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/pet"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/storage/memory"
	"github.com/Arthur-Jacobina/datagotchi/internal/scraper"
)

type fakeFetcher struct {
	pages map[string]scraper.Page
	err   error
}

func (f *fakeFetcher) Scrape(_ context.Context, url string) (scraper.Page, error) {
	if f.err != nil {
		return scraper.Page{}, f.err
	}
	page, ok := f.pages[url]
	if !ok {
		return scraper.Page{}, fmt.Errorf("no page for %s", url)
	}
	return page, nil
}

type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	return []float32{float32(len(text)), 1}, nil
}

func (f *fakeEmbedder) Dimension() int { return 2 }

func newTestService(t *testing.T) (*Service, *memory.Store, pet.Pet) {
	t.Helper()
	store := memory.New()
	svc := New(store, store, store, store, nil)

	p, err := store.CreatePet(context.Background(), pet.Pet{OwnerWallet: "NWallet1", Name: "ember", Rarity: pet.RarityCommon})
	require.NoError(t, err)
	return svc, store, p
}

func TestCreateInstanceWithAttachments(t *testing.T) {
	svc, _, p := newTestService(t)
	ctx := context.Background()

	detail, err := svc.CreateInstance(ctx, p.ID, CreateInstanceInput{
		Content:  "learned about black holes",
		Category: instance.CategoryScience,
		Tags:     []string{"space"},
		Knowledge: []KnowledgeInput{
			{Content: "black holes emit hawking radiation", Title: "Hawking"},
		},
		Images: []ImageInput{
			{ImageURL: "https://example.com/hole.png", AltText: "a black hole"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, p.ID, detail.PetID)
	assert.Equal(t, "text", detail.ContentType)
	assert.Equal(t, instance.HashContent("learned about black holes"), detail.ContentHash)
	assert.Len(t, detail.ContentHash, 16)

	require.Len(t, detail.Knowledge, 1)
	assert.Equal(t, "Hawking", detail.Knowledge[0].Title)
	require.Len(t, detail.Images, 1)
	assert.Equal(t, "a black hole", detail.Images[0].AltText)

	got, err := svc.GetInstance(ctx, detail.ID)
	require.NoError(t, err)
	assert.Len(t, got.Knowledge, 1)
	assert.Len(t, got.Images, 1)
}

func TestCreateInstanceValidation(t *testing.T) {
	svc, _, p := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   CreateInstanceInput
	}{
		{name: "blank content", in: CreateInstanceInput{Content: "   "}},
		{name: "bad content type", in: CreateInstanceInput{Content: "x", ContentType: "video"}},
		{name: "bad category", in: CreateInstanceInput{Content: "x", Category: "cooking"}},
		{name: "empty knowledge item", in: CreateInstanceInput{Content: "x", Knowledge: []KnowledgeInput{{Title: "only title"}}}},
		{name: "image without url", in: CreateInstanceInput{Content: "x", Images: []ImageInput{{AltText: "alt"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateInstance(ctx, p.ID, tc.in)
			require.Error(t, err)
		})
	}
}

func TestCreateInstanceUnknownPet(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.CreateInstance(context.Background(), "missing", CreateInstanceInput{Content: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListInstancesPagination(t *testing.T) {
	svc, _, p := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.CreateInstance(ctx, p.ID, CreateInstanceInput{Content: fmt.Sprintf("entry %d", i)})
		require.NoError(t, err)
	}

	page, err := svc.ListInstances(ctx, p.ID, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := svc.ListInstances(ctx, p.ID, 0, 4)
	require.NoError(t, err)
	assert.Len(t, rest, 1)

	_, err = svc.ListInstances(ctx, p.ID, 1001, 0)
	require.Error(t, err)
	_, err = svc.ListInstances(ctx, p.ID, 10, -1)
	require.Error(t, err)
}

func TestListInstancesUnknownPetIsEmpty(t *testing.T) {
	svc, _, _ := newTestService(t)
	list, err := svc.ListInstances(context.Background(), "missing", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAttachKnowledgeScrapesURLOnly(t *testing.T) {
	svc, _, p := newTestService(t)
	ctx := context.Background()

	fetcher := &fakeFetcher{pages: map[string]scraper.Page{
		"https://example.com/article": {Title: "Scraped Title", Text: "scraped body text"},
	}}
	embedder := &fakeEmbedder{}
	svc.AttachFetcher(fetcher)
	svc.AttachEmbedder(embedder)

	detail, err := svc.CreateInstance(ctx, p.ID, CreateInstanceInput{Content: "seed"})
	require.NoError(t, err)

	know, err := svc.AttachKnowledge(ctx, detail.ID, []KnowledgeInput{{URL: "https://example.com/article"}})
	require.NoError(t, err)
	require.Len(t, know, 1)

	assert.Equal(t, "Scraped Title", know[0].Title)
	assert.Equal(t, "scraped body text", know[0].Content)
	assert.NotEmpty(t, know[0].Embedding)
	assert.Equal(t, 1, embedder.calls)
}

func TestAttachKnowledgeScrapeFailureDegrades(t *testing.T) {
	svc, _, p := newTestService(t)
	ctx := context.Background()
	svc.AttachFetcher(&fakeFetcher{err: fmt.Errorf("offline")})

	detail, err := svc.CreateInstance(ctx, p.ID, CreateInstanceInput{Content: "seed"})
	require.NoError(t, err)

	know, err := svc.AttachKnowledge(ctx, detail.ID, []KnowledgeInput{{URL: "https://example.com/down"}})
	require.NoError(t, err)
	require.Len(t, know, 1)
	assert.Empty(t, know[0].Content)
	assert.Equal(t, "https://example.com/down", know[0].URL)
}

func TestAttachKnowledgeURLDeduplicates(t *testing.T) {
	svc, _, p := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateInstance(ctx, p.ID, CreateInstanceInput{Content: "a"})
	require.NoError(t, err)
	second, err := svc.CreateInstance(ctx, p.ID, CreateInstanceInput{Content: "b"})
	require.NoError(t, err)

	item := []KnowledgeInput{{URL: "https://example.com/shared", Content: "shared fact"}}
	k1, err := svc.AttachKnowledge(ctx, first.ID, item)
	require.NoError(t, err)
	k2, err := svc.AttachKnowledge(ctx, second.ID, item)
	require.NoError(t, err)

	assert.Equal(t, k1[0].ID, k2[0].ID)

	petKnow, err := svc.ListPetKnowledge(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.Len(t, petKnow, 1)
}

func TestAttachKnowledgeUnknownInstance(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.AttachKnowledge(context.Background(), "missing", []KnowledgeInput{{Content: "x"}})
	require.Error(t, err)
}

func TestAttachKnowledgeRejectsEmptyBatch(t *testing.T) {
	svc, _, p := newTestService(t)
	ctx := context.Background()
	detail, err := svc.CreateInstance(ctx, p.ID, CreateInstanceInput{Content: "seed"})
	require.NoError(t, err)

	_, err = svc.AttachKnowledge(ctx, detail.ID, nil)
	require.Error(t, err)
}

func TestAttachImagesMirror(t *testing.T) {
	svc, _, p := newTestService(t)
	ctx := context.Background()
	svc.AttachMirror(mirrorFunc(func(_ context.Context, u string) (string, error) {
		return "https://bucket.example/" + u[len("https://example.com/"):], nil
	}))

	detail, err := svc.CreateInstance(ctx, p.ID, CreateInstanceInput{Content: "seed"})
	require.NoError(t, err)

	imgs, err := svc.AttachImages(ctx, detail.ID, []ImageInput{{ImageURL: "https://example.com/cat.png"}})
	require.NoError(t, err)
	require.Len(t, imgs, 1)
	assert.Equal(t, "https://bucket.example/cat.png", imgs[0].StorePath)
	assert.NotEmpty(t, imgs[0].URLHash)
}

type mirrorFunc func(ctx context.Context, imageURL string) (string, error)

func (f mirrorFunc) MirrorImage(ctx context.Context, imageURL string) (string, error) {
	return f(ctx, imageURL)
}
