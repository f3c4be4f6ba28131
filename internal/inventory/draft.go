package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/erazemk/zapuscina/internal/assist"
	"github.com/erazemk/zapuscina/internal/imaging"
	"github.com/erazemk/zapuscina/internal/model"
)

var (
	ErrNeedImage   = errors.New("tag suggestions need an image")
	ErrNeedDetails = errors.New("tag suggestions need a name and description")
)

// Draft is the item form. Field edits go straight to Item; nothing is
// persisted until Controller.Save.
type Draft struct {
	c     *Controller
	isNew bool

	Item *model.Item

	// FormError is the last save failure.
	FormError error
	// ImageErrors holds one entry per file that could not be attached.
	ImageErrors []error
	// AssistError is the last tag or identification failure. It never
	// blocks saving.
	AssistError error
}

// IsNew reports whether saving will create a record.
func (d *Draft) IsNew() bool { return d.isNew }

// SetPrice parses user input; empty or invalid input clears the price.
func (d *Draft) SetPrice(s string) {
	d.Item.Price = model.ParsePrice(s)
}

func (d *Draft) AddTag(tag string) bool { return d.Item.AddTag(tag) }

func (d *Draft) RemoveTag(tag string) { d.Item.RemoveTag(tag) }

// RemoveImage drops the image at index i.
func (d *Draft) RemoveImage(i int) error {
	if i < 0 || i >= len(d.Item.Images) {
		return fmt.Errorf("no image at position %d", i)
	}
	d.Item.Images = append(d.Item.Images[:i:i], d.Item.Images[i+1:]...)
	return nil
}

// AttachImages compresses files and appends the ones that succeed. Failures
// are collected in ImageErrors; the returned count is the number attached.
func (d *Draft) AttachImages(ctx context.Context, files []imaging.File) int {
	d.ImageErrors = nil
	results, errs := d.c.Compressor.CompressEach(ctx, files)
	added := 0
	for i, res := range results {
		if errs[i] != nil {
			d.ImageErrors = append(d.ImageErrors, errs[i])
			continue
		}
		d.Item.Images = append(d.Item.Images, res.DataURL())
		added++
	}
	return added
}

func (d *Draft) primaryImage(ctx context.Context) ([]byte, error) {
	if len(d.Item.Images) == 0 {
		return nil, ErrNeedImage
	}
	return d.c.LoadImage(ctx, d.Item.Images[0])
}

// SuggestTags asks the assistant for tags based on the primary image, name
// and description, and merges them into the draft. It returns how many new
// tags were added.
func (d *Draft) SuggestTags(ctx context.Context) (int, error) {
	d.AssistError = nil
	if len(d.Item.Images) == 0 {
		d.AssistError = ErrNeedImage
		return 0, ErrNeedImage
	}
	if d.Item.Name == "" || d.Item.Description == "" {
		d.AssistError = ErrNeedDetails
		return 0, ErrNeedDetails
	}

	image, err := d.primaryImage(ctx)
	if err != nil {
		d.AssistError = err
		return 0, err
	}
	tags, err := d.c.Assist.GenerateTags(ctx, image, assist.TagContext{
		Name:        d.Item.Name,
		Maker:       d.Item.Maker,
		Category:    d.Item.Category,
		Description: d.Item.Description,
	})
	if err != nil {
		d.AssistError = err
		return 0, err
	}
	return d.Item.MergeTags(tags), nil
}

// Identify asks the assistant to appraise the primary image and fills in
// fields the user has left empty. Category and condition are taken when
// they are still at their defaults; tags are merged.
func (d *Draft) Identify(ctx context.Context) (*assist.Identification, error) {
	d.AssistError = nil
	image, err := d.primaryImage(ctx)
	if err != nil {
		d.AssistError = err
		return nil, err
	}
	id, err := d.c.Assist.IdentifyItem(ctx, image)
	if err != nil {
		d.AssistError = err
		return nil, err
	}

	it := d.Item
	if it.Name == "" {
		it.Name = id.Name
	}
	if it.Maker == "" {
		it.Maker = id.Maker
	}
	if it.Description == "" {
		it.Description = id.Description
	}
	if (it.Category == "" || it.Category == model.CategoryOther) && model.ValidCategory(id.Category) {
		it.Category = id.Category
	}
	if (it.Condition == "" || it.Condition == model.ConditionGood) && model.ValidCondition(id.Condition) {
		it.Condition = id.Condition
	}
	if it.Price == nil && id.Price != nil {
		p := *id.Price
		it.Price = &p
	}
	it.MergeTags(id.Tags)
	return id, nil
}
