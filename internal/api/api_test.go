package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/zapuscina/internal/assist"
	"github.com/erazemk/zapuscina/internal/auth"
	"github.com/erazemk/zapuscina/internal/cache"
	"github.com/erazemk/zapuscina/internal/db"
	"github.com/erazemk/zapuscina/internal/events"
	"github.com/erazemk/zapuscina/internal/model"
	"github.com/erazemk/zapuscina/internal/repository"
	"github.com/erazemk/zapuscina/internal/store"
)

const testJWTSecret = "test-secret"

// fakeItems is an in-memory ItemStore.
type fakeItems struct {
	mu    sync.Mutex
	next  int
	items map[string]*model.Item
	owner map[string]string
	lists int
}

func newFakeItems() *fakeItems {
	return &fakeItems{items: map[string]*model.Item{}, owner: map[string]string{}}
}

func (f *fakeItems) List(_ context.Context, filter repository.Filter) ([]*model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	var out []*model.Item
	for id, it := range f.items {
		if filter.Owner == "" || f.owner[id] == filter.Owner {
			out = append(out, it.Clone())
		}
	}
	return out, nil
}

func (f *fakeItems) Get(_ context.Context, recordID string) (*model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[recordID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return it.Clone(), nil
}

func (f *fakeItems) Create(_ context.Context, item *model.Item, owner string) (*model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	c := item.Clone()
	c.RecordID = fmt.Sprintf("rec%d", f.next)
	c.Owner = owner
	f.items[c.RecordID] = c
	f.owner[c.RecordID] = owner
	return c.Clone(), nil
}

func (f *fakeItems) Update(_ context.Context, item *model.Item, owner string) (*model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[item.RecordID]; !ok {
		return nil, repository.ErrNotPersisted
	}
	c := item.Clone()
	c.Owner = owner
	f.items[item.RecordID] = c
	f.owner[item.RecordID] = owner
	return c.Clone(), nil
}

func (f *fakeItems) Delete(_ context.Context, recordID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, recordID)
	return nil
}

type fakeAnalyzer struct{}

func (fakeAnalyzer) Tags(_ context.Context, image []byte, tc assist.TagContext) (string, error) {
	return fmt.Sprintf(`{"tags": ["%s", "%d bytes"]}`, tc.Name, len(image)), nil
}

func (fakeAnalyzer) Identify(context.Context, []byte) (string, []assist.SearchLink, error) {
	return `{"name": "Vase"}`, []assist.SearchLink{{Title: "Vase", URL: "https://example.com/vase"}}, nil
}

type testEnv struct {
	server *httptest.Server
	items  *fakeItems
	events *events.Recorder
	token  string
}

func setupTestServer(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()
	database := db.NewTestDB(t)

	mem := cache.NewMemoryCache(time.Hour)
	t.Cleanup(func() { mem.Close() })

	env := &testEnv{items: newFakeItems(), events: &events.Recorder{}}
	cfg := Config{
		DB:        database,
		JWTSecret: testJWTSecret,
		Items:     env.items,
		Cache:     mem,
		Events:    env.events,
		Analyzer:  fakeAnalyzer{},
	}
	for _, m := range mutate {
		m(&cfg)
	}

	env.server = httptest.NewServer(NewRouter(cfg))
	t.Cleanup(env.server.Close)

	// Create admin user.
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	store.CreateUser(ctx, database, "admin", string(hash), model.RoleAdmin)

	env.token = login(t, env.server.URL, "admin", "password")
	return env
}

func login(t *testing.T, baseURL, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(baseURL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var loginResp map[string]string
	json.NewDecoder(resp.Body).Decode(&loginResp)
	token := loginResp["token"]
	if token == "" {
		t.Fatal("empty token from login")
	}
	return token
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func do(t *testing.T, method, url, token string, body, target any) int {
	t.Helper()
	req, err := authRequest(method, url, token, body)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if target != nil {
		json.NewDecoder(resp.Body).Decode(target)
	}
	return resp.StatusCode
}

func TestLoginEndpoint(t *testing.T) {
	env := setupTestServer(t)

	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	resp, _ := http.Post(env.server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	if got := resp.Header.Get(RequestIDHeader); got == "" {
		t.Error("expected a request id header")
	}
}

func TestStaticAuthenticatorLogin(t *testing.T) {
	static, err := auth.ParseCredentials("admin:password:admin,ana:secret123:staff")
	if err != nil {
		t.Fatal(err)
	}
	env := setupTestServer(t, func(c *Config) { c.Authenticator = static })

	token := login(t, env.server.URL, "ana", "secret123")
	claims, err := auth.ValidateToken(testJWTSecret, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Role != model.RoleStaff || claims.UserID != 0 {
		t.Errorf("unexpected claims %+v", claims)
	}

	// No stored password to change.
	status := do(t, "PUT", env.server.URL+"/api/auth/password", token, map[string]string{
		"current_password": "secret123", "new_password": "something-longer",
	}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", status)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	env := setupTestServer(t)

	if status := do(t, "POST", env.server.URL+"/api/auth/logout", env.token, nil, nil); status != http.StatusOK {
		t.Fatalf("expected 200 from logout, got %d", status)
	}
	if status := do(t, "GET", env.server.URL+"/api/items", env.token, nil, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", status)
	}
}

func TestBidderLogin(t *testing.T) {
	env := setupTestServer(t)

	var errResp map[string]string
	status := do(t, "POST", env.server.URL+"/api/auth/bidder", "", map[string]string{"phone": "555-12"}, &errResp)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for short phone, got %d", status)
	}

	var resp loginResponse
	status = do(t, "POST", env.server.URL+"/api/auth/bidder", "", map[string]string{"phone": "(555) 123-4567"}, &resp)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if resp.Username != "5551234567" || resp.Role != model.RoleBidder {
		t.Errorf("unexpected bidder login %+v", resp)
	}
}

func TestItemsAPIFlow(t *testing.T) {
	env := setupTestServer(t)
	base := env.server.URL

	// Missing image is a validation error.
	var verr struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	status := do(t, "POST", base+"/api/items", env.token, map[string]any{"name": "Vase"}, &verr)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if _, ok := verr.Fields["images"]; !ok {
		t.Errorf("expected images field error, got %v", verr.Fields)
	}
	if len(env.items.items) != 0 {
		t.Fatal("store should not be called for invalid items")
	}

	var created model.Item
	status = do(t, "POST", base+"/api/items", env.token, map[string]any{
		"name":   "Vase",
		"maker":  "Rosenthal",
		"tags":   []string{"porcelain"},
		"images": []string{"data:image/jpeg;base64,AAAA"},
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if created.RecordID == "" || created.ID == "" || !strings.HasPrefix(created.SKU, "WHS-") {
		t.Errorf("expected ids and SKU, got %+v", created)
	}
	if created.Category != model.CategoryOther || created.Condition != model.ConditionGood {
		t.Errorf("expected default category and condition, got %q %q", created.Category, created.Condition)
	}

	var list []model.Item
	if status := do(t, "GET", base+"/api/items", env.token, nil, &list); status != http.StatusOK || len(list) != 1 {
		t.Fatalf("expected one item, got %d (%d)", len(list), status)
	}
	do(t, "GET", base+"/api/items", env.token, nil, &list)
	if env.items.lists != 1 {
		t.Errorf("expected second list to be served from cache, store listed %d times", env.items.lists)
	}

	list = nil
	do(t, "GET", base+"/api/items?q=PORCELAIN", env.token, nil, &list)
	if len(list) != 1 {
		t.Errorf("expected tag search to match, got %d", len(list))
	}
	list = nil
	do(t, "GET", base+"/api/items?flagged=true", env.token, nil, &list)
	if len(list) != 0 {
		t.Errorf("expected no flagged items, got %d", len(list))
	}

	created.Flagged = true
	var updated model.Item
	status = do(t, "PUT", base+"/api/items/"+created.RecordID, env.token, created, &updated)
	if status != http.StatusOK || !updated.Flagged {
		t.Fatalf("expected flagged update, got %d %+v", status, updated)
	}

	list = nil
	do(t, "GET", base+"/api/items?flagged=true", env.token, nil, &list)
	if len(list) != 1 {
		t.Errorf("expected update to invalidate cache, got %d flagged", len(list))
	}

	if status := do(t, "DELETE", base+"/api/items/"+created.RecordID, env.token, nil, nil); status != http.StatusOK {
		t.Errorf("expected 200 from delete, got %d", status)
	}

	want := []events.Topic{events.ItemCreated, events.ItemUpdated, events.ItemDeleted}
	got := env.events.Topics()
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestItemUpdateKeepsIdentityAndOwner(t *testing.T) {
	env := setupTestServer(t)
	base := env.server.URL
	ana, _ := auth.GenerateToken(testJWTSecret, 5, "ana", model.RoleStaff)
	bob, _ := auth.GenerateToken(testJWTSecret, 6, "bob", model.RoleStaff)

	var created model.Item
	status := do(t, "POST", base+"/api/items", ana, map[string]any{
		"name":   "Lamp",
		"images": []string{"data:image/jpeg;base64,AAAA"},
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	url := base + "/api/items/" + created.RecordID

	// A body without id or sku keeps the stored ones.
	edit := map[string]any{
		"name":   "Brass Lamp",
		"images": []string{"data:image/jpeg;base64,AAAA"},
	}
	var updated model.Item
	if status := do(t, "PUT", url, ana, edit, &updated); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if updated.SKU != created.SKU || updated.ID != created.ID {
		t.Errorf("identity changed: %s/%s -> %s/%s", created.ID, created.SKU, updated.ID, updated.SKU)
	}
	stored := env.items.items[created.RecordID]
	if stored.SKU != created.SKU || stored.Name != "Brass Lamp" {
		t.Errorf("unexpected stored item %+v", stored)
	}

	edit["sku"] = "WHS-1-FORGED"
	do(t, "PUT", url, ana, edit, &updated)
	if env.items.items[created.RecordID].SKU != created.SKU {
		t.Error("SKU replaced by request body")
	}

	// Other staff cannot touch the record.
	if status := do(t, "PUT", url, bob, edit, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 for another user's update, got %d", status)
	}
	if status := do(t, "DELETE", url, bob, nil, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 for another user's delete, got %d", status)
	}

	// An admin edit leaves ownership where it was.
	if status := do(t, "PUT", url, env.token, edit, nil); status != http.StatusOK {
		t.Fatalf("expected 200 for admin update, got %d", status)
	}
	if owner := env.items.owner[created.RecordID]; owner != "ana" {
		t.Errorf("expected owner ana, got %q", owner)
	}

	if status := do(t, "PUT", base+"/api/items/recMissing", ana, edit, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 for missing record, got %d", status)
	}
}

func TestItemsWithoutRecordStore(t *testing.T) {
	env := setupTestServer(t, func(c *Config) { c.Items = nil })
	if status := do(t, "GET", env.server.URL+"/api/items", env.token, nil, nil); status != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", status)
	}
}

func TestUnauthenticatedAccess(t *testing.T) {
	env := setupTestServer(t)

	resp, _ := http.Get(env.server.URL + "/api/items")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for unauthenticated request, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRoleBasedAccess(t *testing.T) {
	env := setupTestServer(t)

	bidderToken, _ := auth.GenerateToken(testJWTSecret, 0, "5551234567", model.RoleBidder)

	// Bidders cannot write items.
	status := do(t, "POST", env.server.URL+"/api/items", bidderToken, map[string]string{"name": "Test"}, nil)
	if status != http.StatusForbidden {
		t.Errorf("expected 403 for bidder creating item, got %d", status)
	}

	// Staff cannot manage users.
	staffToken, _ := auth.GenerateToken(testJWTSecret, 5, "ana", model.RoleStaff)
	if status := do(t, "GET", env.server.URL+"/api/users", staffToken, nil, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 for staff accessing users, got %d", status)
	}

	// Stored accounts cannot be bidders.
	status = do(t, "POST", env.server.URL+"/api/users", env.token, map[string]string{
		"username": "bob", "password": "password123", "role": model.RoleBidder,
	}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for bidder account, got %d", status)
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	env := setupTestServer(t)
	url := env.server.URL + "/api/analyze"
	image := "AAEC" // three bytes

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
		wantText   string
		wantError  string
	}{
		{"missing image", map[string]any{"mode": "tags"}, 400, "", msgMissingImage},
		{"invalid mode", map[string]any{"mode": "appraise", "image": image}, 400, "", msgInvalidMode},
		{"tags", map[string]any{"mode": "tags", "image": image, "context": map[string]string{"name": "Vase"}}, 200, `{"tags": ["Vase", "3 bytes"]}`, ""},
		{"identify", map[string]any{"mode": "identify", "image": "data:image/jpeg;base64," + image}, 200, `{"name": "Vase"}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp struct {
				Text        string              `json:"text"`
				SearchLinks []assist.SearchLink `json:"searchLinks"`
				Error       string              `json:"error"`
			}
			status := do(t, "POST", url, "", tt.body, &resp)
			if status != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, status)
			}
			if resp.Text != tt.wantText || resp.Error != tt.wantError {
				t.Errorf("unexpected response %+v", resp)
			}
			if tt.name == "identify" && len(resp.SearchLinks) != 1 {
				t.Errorf("expected search links, got %v", resp.SearchLinks)
			}
		})
	}
}

func TestAnalyzeUnknownModesShareOneSeries(t *testing.T) {
	env := setupTestServer(t)

	for i := range 20 {
		do(t, "POST", env.server.URL+"/api/analyze", "", map[string]string{"mode": fmt.Sprintf("mode-%d", i)}, nil)
	}
	before := testutil.CollectAndCount(analyzeRequests)
	for i := range 20 {
		do(t, "POST", env.server.URL+"/api/analyze", "", map[string]string{"mode": fmt.Sprintf("other-%d", i)}, nil)
	}
	if after := testutil.CollectAndCount(analyzeRequests); after != before {
		t.Errorf("unknown modes created metric series: %d -> %d", before, after)
	}
	if got := testutil.ToFloat64(analyzeRequests.WithLabelValues("invalid", "rejected")); got < 40 {
		t.Errorf("expected unknown modes counted as invalid, got %v", got)
	}
}

func TestUnknownMethodsShareOneSeries(t *testing.T) {
	env := setupTestServer(t)

	send := func(method string) {
		req, _ := http.NewRequest(method, env.server.URL+"/api/nowhere", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s: %v", method, err)
		}
		resp.Body.Close()
	}
	for i := range 5 {
		send(fmt.Sprintf("VERB%d", i))
	}
	before := testutil.CollectAndCount(httpRequests)
	for i := range 5 {
		send(fmt.Sprintf("OTHERVERB%d", i))
	}
	if after := testutil.CollectAndCount(httpRequests); after != before {
		t.Errorf("unknown methods created metric series: %d -> %d", before, after)
	}
}

func TestAnalyzeWithoutKey(t *testing.T) {
	env := setupTestServer(t, func(c *Config) { c.Analyzer = nil })

	var resp map[string]string
	status := do(t, "POST", env.server.URL+"/api/analyze", "", map[string]string{"mode": "tags", "image": "AA=="}, &resp)
	if status != http.StatusInternalServerError || resp["error"] != msgMissingKey {
		t.Errorf("expected missing key error, got %d %v", status, resp)
	}
}

func TestAnalyzeBodyLimit(t *testing.T) {
	env := setupTestServer(t, func(c *Config) { c.MaxAnalyzeBody = 64 })

	var resp map[string]string
	status := do(t, "POST", env.server.URL+"/api/analyze", "", map[string]string{
		"mode": "tags", "image": strings.Repeat("A", 256),
	}, &resp)
	if status != http.StatusBadRequest || resp["error"] != msgMissingImage {
		t.Errorf("expected oversized body to be rejected, got %d %v", status, resp)
	}
}

func uploadImage(t *testing.T, url, token string, data []byte) (int, imageResponse) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("image", "photo.jpg")
	fw.Write(data)
	mw.Close()

	req, _ := http.NewRequest("POST", url, &buf)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	var out imageResponse
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestImagesEndpoint(t *testing.T) {
	env := setupTestServer(t)
	url := env.server.URL + "/api/images"

	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for x := 0; x < 200; x++ {
		for y := 0; y < 100; y++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 100, 255})
		}
	}
	var jpg bytes.Buffer
	jpeg.Encode(&jpg, img, nil)

	status, out := uploadImage(t, url, env.token, jpg.Bytes())
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.HasPrefix(out.URL, "data:image/jpeg;base64,") {
		t.Errorf("expected jpeg data URL, got %.40q", out.URL)
	}
	if out.Width != 200 || out.Height != 100 {
		t.Errorf("small images must not be resized, got %dx%d", out.Width, out.Height)
	}

	status, _ = uploadImage(t, url, env.token, []byte("not an image"))
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for unreadable image, got %d", status)
	}
}

func TestAuctionFlow(t *testing.T) {
	env := setupTestServer(t)
	base := env.server.URL
	first, _ := auth.GenerateToken(testJWTSecret, 0, "5550000001", model.RoleBidder)
	second, _ := auth.GenerateToken(testJWTSecret, 0, "5550000002", model.RoleBidder)

	// Bidders cannot open auctions.
	req := map[string]any{
		"item_id":      "item-1",
		"title":        "Teak Sideboard",
		"ends_at":      time.Now().Add(time.Hour),
		"starting_bid": 50,
	}
	if status := do(t, "POST", base+"/api/auctions", first, req, nil); status != http.StatusForbidden {
		t.Errorf("expected 403, got %d", status)
	}
	if status := do(t, "POST", base+"/api/auctions", env.token, req, nil); status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if status := do(t, "POST", base+"/api/auctions", env.token, req, nil); status != http.StatusConflict {
		t.Errorf("expected 409 for duplicate auction, got %d", status)
	}

	bidURL := base + "/api/auctions/item-1/bids"
	if status := do(t, "POST", bidURL, first, map[string]float64{"amount": 40}, nil); status != http.StatusConflict {
		t.Errorf("expected 409 for low bid, got %d", status)
	}

	var st model.AuctionStatus
	if status := do(t, "POST", bidURL, first, map[string]float64{"amount": 50}, &st); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if !st.Winning || st.CurrentBid != 50 || st.BidCount != 1 {
		t.Errorf("unexpected status after first bid %+v", st)
	}

	if status := do(t, "POST", bidURL, second, map[string]float64{"amount": 55}, &st); status != http.StatusOK || !st.Winning {
		t.Fatalf("expected second bidder to win, got %d %+v", status, st)
	}

	st = model.AuctionStatus{}
	do(t, "GET", base+"/api/auctions/item-1", first, nil, &st)
	if st.Winning || st.CurrentBid != 55 || st.BidCount != 2 {
		t.Errorf("expected first bidder outbid, got %+v", st)
	}

	var bids []model.Bid
	do(t, "GET", bidURL, env.token, nil, &bids)
	if len(bids) != 2 {
		t.Errorf("expected 2 bids, got %d", len(bids))
	}

	topics := env.events.Topics()
	if len(topics) != 2 || topics[0] != events.BidPlaced {
		t.Errorf("expected two bid events, got %v", topics)
	}

	if status := do(t, "GET", base+"/api/auctions/missing", first, nil, nil); status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", status)
	}
}

func TestBidOnClosedAuction(t *testing.T) {
	database := db.NewTestDB(t)
	server := httptest.NewServer(NewRouter(Config{DB: database, JWTSecret: testJWTSecret}))
	t.Cleanup(server.Close)

	ctx := context.Background()
	if _, err := store.CreateAuction(ctx, database, "item-1", "Lamp", time.Now().Add(-time.Minute), 10); err != nil {
		t.Fatal(err)
	}

	token, _ := auth.GenerateToken(testJWTSecret, 0, "5550000001", model.RoleBidder)
	var st model.AuctionStatus
	do(t, "GET", server.URL+"/api/auctions/item-1", token, nil, &st)
	if !st.Closed {
		t.Error("expected auction to be reported closed")
	}
	if status := do(t, "POST", server.URL+"/api/auctions/item-1/bids", token, map[string]float64{"amount": 20}, nil); status != http.StatusConflict {
		t.Errorf("expected 409, got %d", status)
	}
}
