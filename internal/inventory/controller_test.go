package inventory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/erazemk/zapuscina/internal/assist"
	"github.com/erazemk/zapuscina/internal/auth"
	"github.com/erazemk/zapuscina/internal/imaging"
	"github.com/erazemk/zapuscina/internal/model"
	"github.com/erazemk/zapuscina/internal/repository"
	"github.com/erazemk/zapuscina/internal/session"
)

type fakeRepo struct {
	mu      sync.Mutex
	items   []*model.Item
	next    int
	creates []*model.Item
	updates []*model.Item
	deletes []string

	listFunc  func(n int) ([]*model.Item, error)
	lists     int
	createErr error
	updateErr error
	deleteErr error
}

func (f *fakeRepo) List(_ context.Context, filter repository.Filter) ([]*model.Item, error) {
	f.mu.Lock()
	f.lists++
	n := f.lists
	fn := f.listFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(n)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.Item, len(f.items))
	for i, it := range f.items {
		out[i] = it.Clone()
	}
	return out, nil
}

func (f *fakeRepo) Create(_ context.Context, item *model.Item, _ string) (*model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, item.Clone())
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.next++
	c := item.Clone()
	c.RecordID = fmt.Sprintf("rec%d", f.next)
	return c, nil
}

func (f *fakeRepo) Update(_ context.Context, item *model.Item, _ string) (*model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, item.Clone())
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return item.Clone(), nil
}

func (f *fakeRepo) Delete(_ context.Context, recordID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, recordID)
	return f.deleteErr
}

type fakeAssist struct {
	tags  []string
	ident *assist.Identification
	err   error
	seen  []byte
}

func (f *fakeAssist) GenerateTags(_ context.Context, image []byte, _ assist.TagContext) ([]string, error) {
	f.seen = image
	return f.tags, f.err
}

func (f *fakeAssist) IdentifyItem(_ context.Context, image []byte) (*assist.Identification, error) {
	f.seen = image
	return f.ident, f.err
}

func newTestController(t *testing.T, repo *fakeRepo, as *fakeAssist) *Controller {
	t.Helper()
	authn, err := auth.ParseCredentials("ana:secret123")
	if err != nil {
		t.Fatal(err)
	}
	c := New(&session.MemoryStore{}, authn, repo, imaging.New(), as)
	c.LoadImage = func(_ context.Context, ref string) ([]byte, error) { return []byte(ref), nil }
	if err := c.Login(context.Background(), "ana", "secret123"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	return c
}

func item(id, recordID, name string) *model.Item {
	return &model.Item{ID: id, RecordID: recordID, Name: name, SKU: "WHS-1-" + id,
		Category: model.CategoryOther, Condition: model.ConditionGood, Images: []string{"https://img/" + id}}
}

func testJPEG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, nil)
	return buf.Bytes()
}

func fileOf(name string, data []byte) imaging.File {
	return imaging.File{Name: name, Open: func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}}
}

func TestBootAndLogout(t *testing.T) {
	repo := &fakeRepo{items: []*model.Item{item("a", "rec1", "Lamp")}}
	store := &session.MemoryStore{}
	store.Save(&session.Session{Username: "ana", Role: model.RoleStaff})

	c := New(store, nil, repo, imaging.New(), nil)
	if err := c.Boot(context.Background()); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if len(c.Items()) != 1 || c.Session().Username != "ana" {
		t.Fatalf("expected restored session with one item")
	}

	if err := c.Logout(); err != nil {
		t.Fatal(err)
	}
	if c.Session() != nil || len(c.Items()) != 0 {
		t.Error("expected state cleared after logout")
	}
	if s, _ := store.Load(); s != nil {
		t.Error("expected stored session cleared")
	}
	if err := c.Refresh(context.Background()); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("expected ErrNotSignedIn, got %v", err)
	}
}

func TestBootWithoutSession(t *testing.T) {
	repo := &fakeRepo{}
	c := New(&session.MemoryStore{}, nil, repo, imaging.New(), nil)
	if err := c.Boot(context.Background()); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if repo.lists != 0 {
		t.Error("expected no repository call without a session")
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	authn, _ := auth.ParseCredentials("ana:secret123")
	store := &session.MemoryStore{}
	c := New(store, authn, &fakeRepo{}, imaging.New(), nil)
	if err := c.Login(context.Background(), "ana", "nope"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if s, _ := store.Load(); s != nil {
		t.Error("session must not be saved on failed login")
	}
}

func TestSaveWithoutImageIsValidationError(t *testing.T) {
	repo := &fakeRepo{}
	c := newTestController(t, repo, nil)

	d := c.NewDraft()
	d.Item.Name = "Vase"
	err := c.Save(context.Background(), d)

	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(repo.creates) != 0 {
		t.Error("repository must not be called")
	}
	if c.View() != ItemForm || d.FormError == nil {
		t.Error("expected to stay on the form with an error")
	}
}

func TestSaveNewItem(t *testing.T) {
	repo := &fakeRepo{}
	c := newTestController(t, repo, nil)

	d := c.NewDraft()
	d.Item.Name = "Vase"
	d.SetPrice("12.50")
	if n := d.AttachImages(context.Background(), []imaging.File{fileOf("vase.jpg", testJPEG(64, 48))}); n != 1 {
		t.Fatalf("expected one image attached, errors: %v", d.ImageErrors)
	}

	if err := c.Save(context.Background(), d); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(repo.creates) != 1 {
		t.Fatalf("expected one create, got %d", len(repo.creates))
	}
	if p := repo.creates[0].Price; p == nil || *p != 12.5 {
		t.Errorf("expected price 12.5, got %v", p)
	}

	items := c.Items()
	if len(items) != 1 || items[0].RecordID == "" {
		t.Fatalf("expected one persisted item, got %+v", items)
	}
	if items[0].SKU == "" || items[0].ID == "" {
		t.Error("expected id and SKU assigned")
	}
	if c.View() != Dashboard || c.Editing() != nil {
		t.Error("expected to return to the dashboard")
	}
}

func TestSaveFailureKeepsList(t *testing.T) {
	repo := &fakeRepo{createErr: errors.New("Airtable Error: quota")}
	c := newTestController(t, repo, nil)

	d := c.NewDraft()
	d.Item.Name = "Vase"
	d.Item.Images = []string{"https://img/1"}
	if err := c.Save(context.Background(), d); err == nil {
		t.Fatal("expected error")
	}
	if len(c.Items()) != 0 {
		t.Error("list must not change on failure")
	}
	if d.FormError == nil || c.View() != ItemForm {
		t.Error("expected form error and form still open")
	}

	// The SKU assigned on the first attempt survives a retry.
	sku := d.Item.SKU
	repo.createErr = nil
	if err := c.Save(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	if c.Items()[0].SKU != sku {
		t.Error("SKU changed between attempts")
	}
}

func TestEditKeepsSKUAndReplacesInPlace(t *testing.T) {
	repo := &fakeRepo{items: []*model.Item{item("a", "rec1", "Lamp"), item("b", "rec2", "Chair")}}
	c := newTestController(t, repo, nil)

	d, err := c.EditDraft("a")
	if err != nil {
		t.Fatal(err)
	}
	d.Item.Name = "Brass Lamp"
	if err := c.Save(context.Background(), d); err != nil {
		t.Fatal(err)
	}

	items := c.Items()
	if items[0].ID != "a" || items[0].Name != "Brass Lamp" || items[0].SKU != "WHS-1-a" {
		t.Errorf("expected in-place update keeping SKU, got %+v", items[0])
	}
	if len(repo.updates) != 1 {
		t.Errorf("expected one update, got %d", len(repo.updates))
	}
}

func TestEditFailureLeavesOriginal(t *testing.T) {
	repo := &fakeRepo{items: []*model.Item{item("a", "rec1", "Lamp")}, updateErr: errors.New("boom")}
	c := newTestController(t, repo, nil)

	d, _ := c.EditDraft("a")
	d.Item.Name = "Changed"
	if err := c.Save(context.Background(), d); err == nil {
		t.Fatal("expected error")
	}
	if c.Items()[0].Name != "Lamp" {
		t.Error("original item must be unchanged after a failed update")
	}
}

func TestDeleteRollback(t *testing.T) {
	repo := &fakeRepo{
		items:     []*model.Item{item("a", "rec1", "Lamp"), item("b", "rec2", "Chair"), item("c", "rec3", "Rug")},
		deleteErr: errors.New("server error"),
	}
	c := newTestController(t, repo, nil)

	if err := c.Delete(context.Background(), "b"); err == nil {
		t.Fatal("expected error")
	}
	items := c.Items()
	if len(items) != 3 || items[1].ID != "b" {
		t.Errorf("expected item restored at position 1, got %v", ids(items))
	}

	repo.deleteErr = nil
	if err := c.Delete(context.Background(), "b"); err != nil {
		t.Fatal(err)
	}
	if got := ids(c.Items()); strings.Join(got, ",") != "a,c" {
		t.Errorf("expected a,c got %v", got)
	}
}

func TestDeleteRequiresRecordID(t *testing.T) {
	repo := &fakeRepo{items: []*model.Item{item("a", "", "Lamp")}}
	c := newTestController(t, repo, nil)

	if err := c.Delete(context.Background(), "a"); !errors.Is(err, ErrNoRecordID) {
		t.Errorf("expected ErrNoRecordID, got %v", err)
	}
	if len(repo.deletes) != 0 || len(c.Items()) != 1 {
		t.Error("nothing should change")
	}
}

func ids(items []*model.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestFilterAndSearch(t *testing.T) {
	lamp := item("a", "rec1", "Brass Lamp")
	lamp.Category = model.CategoryHomeGoods
	radio := item("b", "rec2", "Radio")
	radio.Category = model.CategoryElectronics
	radio.Flagged = true
	radio.Tags = []string{"tube"}
	repo := &fakeRepo{items: []*model.Item{lamp, radio}}
	c := newTestController(t, repo, nil)

	if got := len(c.Visible()); got != 2 {
		t.Errorf("expected 2 visible, got %d", got)
	}
	c.SetFilter(model.FilterFlagged)
	if got := ids(c.Visible()); len(got) != 1 || got[0] != "b" {
		t.Errorf("expected only flagged radio, got %v", got)
	}
	c.SetFilter(model.CategoryHomeGoods)
	c.SetSearch("BRASS")
	if got := ids(c.Visible()); len(got) != 1 || got[0] != "a" {
		t.Errorf("expected lamp, got %v", got)
	}
	c.SetSearch("tube")
	if got := len(c.Visible()); got != 0 {
		t.Errorf("expected no match across filter, got %d", got)
	}
	if err := c.SetFilter("Boats"); !errors.Is(err, ErrBadFilter) {
		t.Errorf("expected ErrBadFilter, got %v", err)
	}
}

func TestStaleRefreshIsDropped(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	repo := &fakeRepo{}
	c := newTestController(t, repo, nil)

	repo.mu.Lock()
	base := repo.lists
	repo.listFunc = func(n int) ([]*model.Item, error) {
		if n == base+1 {
			close(started)
			<-release
			return []*model.Item{item("old", "rec1", "Old")}, nil
		}
		return []*model.Item{item("new", "rec2", "New")}, nil
	}
	repo.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- c.Refresh(context.Background()) }()
	<-started

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	close(release)

	if err := <-done; !errors.Is(err, ErrSuperseded) {
		t.Errorf("expected ErrSuperseded, got %v", err)
	}
	if got := ids(c.Items()); len(got) != 1 || got[0] != "new" {
		t.Errorf("expected newer result kept, got %v", got)
	}
}

func TestAttachImagesReportsPerFile(t *testing.T) {
	c := newTestController(t, &fakeRepo{}, nil)
	d := c.NewDraft()

	n := d.AttachImages(context.Background(), []imaging.File{
		fileOf("good.jpg", testJPEG(32, 32)),
		fileOf("bad.jpg", []byte("nope")),
	})
	if n != 1 || len(d.Item.Images) != 1 {
		t.Fatalf("expected one image kept, got %d", n)
	}
	if len(d.ImageErrors) != 1 || !errors.Is(d.ImageErrors[0], imaging.ErrLoad) {
		t.Errorf("expected one load error, got %v", d.ImageErrors)
	}
	if !strings.HasPrefix(d.Item.Images[0], "data:image/jpeg;base64,") {
		t.Error("expected a data URL")
	}

	if err := d.RemoveImage(0); err != nil || len(d.Item.Images) != 0 {
		t.Errorf("RemoveImage: %v", err)
	}
	if err := d.RemoveImage(3); err == nil {
		t.Error("expected error for bad index")
	}
}

func TestSuggestTags(t *testing.T) {
	as := &fakeAssist{tags: []string{"brass", "vintage", "lamp"}}
	c := newTestController(t, &fakeRepo{}, as)
	d := c.NewDraft()

	if _, err := d.SuggestTags(context.Background()); !errors.Is(err, ErrNeedImage) {
		t.Errorf("expected ErrNeedImage, got %v", err)
	}
	d.Item.Images = []string{"https://img/1"}
	d.Item.Name = "Lamp"
	if _, err := d.SuggestTags(context.Background()); !errors.Is(err, ErrNeedDetails) {
		t.Errorf("expected ErrNeedDetails, got %v", err)
	}

	d.Item.Description = "Brass desk lamp"
	d.AddTag("vintage")
	added, err := d.SuggestTags(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if added != 2 || strings.Join(d.Item.Tags, ",") != "vintage,brass,lamp" {
		t.Errorf("expected merged tags, got %d %v", added, d.Item.Tags)
	}
	if string(as.seen) != "https://img/1" {
		t.Errorf("expected primary image sent, got %q", as.seen)
	}
}

func TestSuggestTagsErrorDoesNotBlockSave(t *testing.T) {
	as := &fakeAssist{err: &assist.Error{Kind: assist.KindUnavailable, Message: "down"}}
	repo := &fakeRepo{}
	c := newTestController(t, repo, as)
	d := c.NewDraft()
	d.Item.Name = "Lamp"
	d.Item.Description = "desk lamp"
	d.Item.Images = []string{"https://img/1"}

	if _, err := d.SuggestTags(context.Background()); err == nil || d.AssistError == nil {
		t.Fatal("expected assist error")
	}
	if err := c.Save(context.Background(), d); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestIdentifyPrefillsEmptyFields(t *testing.T) {
	price := 40.0
	as := &fakeAssist{ident: &assist.Identification{
		Name:        "Art Deco Lamp",
		Maker:       "Unknown",
		Description: "A bronze lamp",
		Category:    model.CategoryHomeGoods,
		Condition:   model.ConditionFair,
		Tags:        []string{"deco"},
		Price:       &price,
	}}
	c := newTestController(t, &fakeRepo{}, as)
	d := c.NewDraft()
	d.Item.Images = []string{"https://img/1"}
	d.Item.Maker = "Tiffany"

	if _, err := d.Identify(context.Background()); err != nil {
		t.Fatal(err)
	}
	it := d.Item
	if it.Name != "Art Deco Lamp" || it.Maker != "Tiffany" || it.Description != "A bronze lamp" {
		t.Errorf("unexpected text fields %+v", it)
	}
	if it.Category != model.CategoryHomeGoods || it.Condition != model.ConditionFair {
		t.Errorf("unexpected category/condition %q %q", it.Category, it.Condition)
	}
	if it.Price == nil || *it.Price != 40 || len(it.Tags) != 1 {
		t.Errorf("unexpected price/tags %v %v", it.Price, it.Tags)
	}
}

func TestCancel(t *testing.T) {
	c := newTestController(t, &fakeRepo{}, nil)
	c.NewDraft()
	if c.View() != ItemForm || c.View().String() != "itemForm" {
		t.Fatal("expected item form")
	}
	c.Cancel()
	if c.View() != Dashboard || c.Editing() != nil {
		t.Error("expected dashboard")
	}
}

func TestLoginWithoutRepository(t *testing.T) {
	authn, _ := auth.ParseCredentials("ana:secret123")
	c := New(&session.MemoryStore{}, authn, nil, imaging.New(), nil)

	err := c.Login(context.Background(), "ana", "secret123")
	if !errors.Is(err, ErrNoRepository) {
		t.Fatalf("expected ErrNoRepository, got %v", err)
	}
	if c.Session() == nil {
		t.Error("sign-in should stand even when items cannot be loaded")
	}
	if !errors.Is(c.LoadError(), ErrNoRepository) {
		t.Errorf("expected load error, got %v", c.LoadError())
	}
}

func TestWritesWithoutRepository(t *testing.T) {
	authn, _ := auth.ParseCredentials("ana:secret123")
	c := New(&session.MemoryStore{}, authn, nil, imaging.New(), nil)
	c.Login(context.Background(), "ana", "secret123")

	d := c.NewDraft()
	d.Item.Name = "Vase"
	d.Item.Images = []string{"data:image/jpeg;base64,AAAA"}
	if err := c.Save(context.Background(), d); !errors.Is(err, ErrNoRepository) {
		t.Fatalf("expected ErrNoRepository from Save, got %v", err)
	}
	if !errors.Is(d.FormError, ErrNoRepository) {
		t.Errorf("expected form error, got %v", d.FormError)
	}
	if err := c.Delete(context.Background(), "a"); !errors.Is(err, ErrNoRepository) {
		t.Errorf("expected ErrNoRepository from Delete, got %v", err)
	}
}
