// Package inventory holds the staff client's view state: the signed-in
// session, the loaded items, the active screen and the item being edited.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/erazemk/zapuscina/internal/assist"
	"github.com/erazemk/zapuscina/internal/auth"
	"github.com/erazemk/zapuscina/internal/imaging"
	"github.com/erazemk/zapuscina/internal/model"
	"github.com/erazemk/zapuscina/internal/repository"
	"github.com/erazemk/zapuscina/internal/session"
)

// View is the screen being shown.
type View int

const (
	Dashboard View = iota
	ItemForm
)

func (v View) String() string {
	if v == ItemForm {
		return "itemForm"
	}
	return "dashboard"
}

var (
	ErrNotSignedIn = errors.New("not signed in")
	ErrNotFound    = errors.New("item not found")
	ErrNoRecordID  = errors.New("item has no record id")
	ErrNoDraft     = errors.New("no item is being edited")
	ErrBadFilter   = errors.New("unknown filter")
	// ErrNoRepository means no record store is configured.
	ErrNoRepository = errors.New("record store is not configured")
	// ErrSuperseded is returned by Refresh when a newer refresh or a logout
	// started while it was waiting; its result is dropped.
	ErrSuperseded = errors.New("refresh superseded by a newer request")
)

// Repository persists items. *repository.Repository implements it.
type Repository interface {
	List(ctx context.Context, f repository.Filter) ([]*model.Item, error)
	Create(ctx context.Context, item *model.Item, owner string) (*model.Item, error)
	Update(ctx context.Context, item *model.Item, owner string) (*model.Item, error)
	Delete(ctx context.Context, recordID string) error
}

// Assistant suggests item details from a photo. *assist.Client implements it.
type Assistant interface {
	GenerateTags(ctx context.Context, image []byte, tc assist.TagContext) ([]string, error)
	IdentifyItem(ctx context.Context, image []byte) (*assist.Identification, error)
}

// Compressor shrinks uploaded photos. *imaging.Compressor implements it.
type Compressor interface {
	CompressEach(ctx context.Context, files []imaging.File) ([]*imaging.Result, []error)
}

// ImageLoader returns the bytes behind a stored image reference.
type ImageLoader func(ctx context.Context, ref string) ([]byte, error)

// Controller coordinates the session, the repository, the compressor and the
// assistant. Its methods are safe for concurrent use; a Draft is not.
type Controller struct {
	Sessions   session.Store
	Auth       auth.Authenticator
	Repo       Repository
	Compressor Compressor
	Assist     Assistant
	LoadImage  ImageLoader
	Now        func() time.Time

	mu      sync.Mutex
	session *session.Session
	items   []*model.Item
	loadErr error
	view    View
	draft   *Draft
	filter  string
	search  string
	gen     uint64
}

// New returns a controller with the default image loader.
func New(sessions session.Store, authn auth.Authenticator, repo Repository, comp Compressor, assistant Assistant) *Controller {
	return &Controller{
		Sessions:   sessions,
		Auth:       authn,
		Repo:       repo,
		Compressor: comp,
		Assist:     assistant,
		LoadImage: func(ctx context.Context, ref string) ([]byte, error) {
			return assist.LoadImage(ctx, http.DefaultClient, ref)
		},
		filter: model.FilterAll,
	}
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Boot restores a saved session and loads its items.
func (c *Controller) Boot(ctx context.Context) error {
	s, err := c.Sessions.Load()
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	if s == nil {
		return nil
	}
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// Login checks the credentials, saves the session and loads the user's items.
func (c *Controller) Login(ctx context.Context, username, password string) error {
	var (
		user  *model.User
		token string
		err   error
	)
	if ta, ok := c.Auth.(auth.TokenAuthenticator); ok {
		user, token, err = ta.Login(ctx, username, password)
	} else {
		user, err = c.Auth.Authenticate(ctx, username, password)
	}
	if err != nil {
		return err
	}

	s := &session.Session{Username: user.Username, Role: user.Role, Token: token}
	if err := c.Sessions.Save(s); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	c.mu.Lock()
	c.session = s
	c.items = nil
	c.view = Dashboard
	c.draft = nil
	c.mu.Unlock()

	slog.Info("signed in", "user", s.Username, "role", s.Role)
	return c.Refresh(ctx)
}

// Logout clears the saved session and all loaded state.
func (c *Controller) Logout() error {
	c.mu.Lock()
	c.session = nil
	c.items = nil
	c.loadErr = nil
	c.view = Dashboard
	c.draft = nil
	c.gen++
	c.mu.Unlock()

	if err := c.Sessions.Clear(); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// Session returns the signed-in user, or nil.
func (c *Controller) Session() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// Refresh reloads the signed-in user's items. A refresh that finishes after a
// newer one has started is discarded with ErrSuperseded.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return ErrNotSignedIn
	}
	if c.Repo == nil {
		c.loadErr = ErrNoRepository
		c.mu.Unlock()
		return ErrNoRepository
	}
	owner := c.session.Username
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	items, err := c.Repo.List(ctx, repository.Filter{Owner: owner})

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		slog.Debug("dropping stale inventory response", "generation", gen)
		return ErrSuperseded
	}
	if err != nil {
		c.loadErr = err
		return err
	}
	c.items = items
	c.loadErr = nil
	return nil
}

// LoadError returns the error of the last refresh, if it failed.
func (c *Controller) LoadError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadErr
}

// Items returns copies of all loaded items in display order.
func (c *Controller) Items() []*model.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*model.Item, len(c.items))
	for i, it := range c.items {
		out[i] = it.Clone()
	}
	return out
}

// Item returns a copy of the loaded item with the given id.
func (c *Controller) Item(id string) (*model.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(id); i >= 0 {
		return c.items[i].Clone(), nil
	}
	return nil, ErrNotFound
}

func (c *Controller) indexLocked(id string) int {
	for i, it := range c.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// SetFilter selects All, Flagged or a category.
func (c *Controller) SetFilter(filter string) error {
	if filter != model.FilterAll && filter != model.FilterFlagged && !model.ValidCategory(filter) {
		return fmt.Errorf("%w: %q", ErrBadFilter, filter)
	}
	c.mu.Lock()
	c.filter = filter
	c.mu.Unlock()
	return nil
}

// Filter returns the active filter.
func (c *Controller) Filter() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// SetSearch sets the free-text search.
func (c *Controller) SetSearch(q string) {
	c.mu.Lock()
	c.search = q
	c.mu.Unlock()
}

// Visible returns the items under the active filter that match the search.
func (c *Controller) Visible() []*model.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*model.Item
	for _, it := range c.items {
		if it.InFilter(c.filter) && it.Matches(c.search) {
			out = append(out, it.Clone())
		}
	}
	return out
}

// View returns the active screen.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Editing returns the open draft, or nil on the dashboard.
func (c *Controller) Editing() *Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// NewDraft opens the form for a new item.
func (c *Controller) NewDraft() *Draft {
	d := &Draft{c: c, Item: &model.Item{
		Category:  model.CategoryOther,
		Condition: model.ConditionGood,
		Tags:      []string{},
		Images:    []string{},
	}, isNew: true}

	c.mu.Lock()
	c.draft = d
	c.view = ItemForm
	c.mu.Unlock()
	return d
}

// EditDraft opens the form on a copy of a loaded item.
func (c *Controller) EditDraft(id string) (*Draft, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	d := &Draft{c: c, Item: c.items[i].Clone()}
	c.draft = d
	c.view = ItemForm
	return d, nil
}

// Cancel closes the form without saving.
func (c *Controller) Cancel() {
	c.mu.Lock()
	c.draft = nil
	c.view = Dashboard
	c.mu.Unlock()
}

// Save validates and persists the draft. Nothing reaches the repository when
// validation fails. New items are added to the list, and edits replaced in
// place, only after the repository accepts them; on failure the error is
// kept on the draft and the list is left alone.
func (c *Controller) Save(ctx context.Context, d *Draft) error {
	if d == nil {
		return ErrNoDraft
	}
	d.FormError = nil

	if err := d.Item.Validate(); err != nil {
		d.FormError = err
		return err
	}

	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		d.FormError = ErrNotSignedIn
		return ErrNotSignedIn
	}
	owner := c.session.Username
	c.mu.Unlock()
	if c.Repo == nil {
		d.FormError = ErrNoRepository
		return ErrNoRepository
	}

	if d.isNew {
		if d.Item.ID == "" || d.Item.SKU == "" {
			fresh := model.NewItem(c.now())
			if d.Item.ID == "" {
				d.Item.ID = fresh.ID
			}
			if d.Item.SKU == "" {
				d.Item.SKU = fresh.SKU
			}
		}
		created, err := c.Repo.Create(ctx, d.Item, owner)
		if err != nil {
			d.FormError = err
			return err
		}
		c.mu.Lock()
		c.items = append(c.items, created)
		c.closeLocked(d)
		c.mu.Unlock()
		slog.Info("item saved", "item", created.ID, "record", created.RecordID)
		return nil
	}

	updated, err := c.Repo.Update(ctx, d.Item, owner)
	if err != nil {
		d.FormError = err
		return err
	}
	c.mu.Lock()
	if i := c.indexLocked(updated.ID); i >= 0 {
		c.items[i] = updated
	}
	c.closeLocked(d)
	c.mu.Unlock()
	slog.Info("item updated", "item", updated.ID, "record", updated.RecordID)
	return nil
}

func (c *Controller) closeLocked(d *Draft) {
	if c.draft == d {
		c.draft = nil
		c.view = Dashboard
	}
}

// Delete removes the item from the list at once and then from the
// repository. If the repository fails the item is put back where it was.
func (c *Controller) Delete(ctx context.Context, id string) error {
	if c.Repo == nil {
		return ErrNoRepository
	}
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return ErrNotFound
	}
	it := c.items[i]
	if !it.Persisted() {
		c.mu.Unlock()
		return ErrNoRecordID
	}
	c.items = append(c.items[:i:i], c.items[i+1:]...)
	c.mu.Unlock()

	if err := c.Repo.Delete(ctx, it.RecordID); err != nil {
		c.mu.Lock()
		if i > len(c.items) {
			i = len(c.items)
		}
		c.items = append(c.items[:i:i], append([]*model.Item{it}, c.items[i:]...)...)
		c.mu.Unlock()
		slog.Warn("delete failed, item restored", "item", id, "error", err)
		return err
	}
	slog.Info("item deleted", "item", id, "record", it.RecordID)
	return nil
}
