// Package demo generates sample inventory for trying out a fresh deployment.
package demo

import (
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/erazemk/zapuscina/internal/imaging"
	"github.com/erazemk/zapuscina/internal/model"
)

var (
	names = []string{
		"Vintage Leather Sofa", "Mid-Century Modern Armchair", "Industrial Coffee Table",
		"Rustic Wooden Bookshelf", "Antique Persian Rug", "Hand-Blown Glass Vase",
		"Abstract Canvas Painting", "Minimalist Floor Lamp", "Ergonomic Office Chair",
		"Professional DSLR Camera", "Audiophile Turntable", "Cast Iron Dutch Oven",
		"Designer Silk Scarf", "Classic Aviator Sunglasses", "Automatic Wristwatch",
	}
	makers = []string{
		"Herman Miller", "Eames", "West Elm", "Le Creuset", "Sony", "Nikon",
		"Bose", "Ray-Ban", "Gucci", "Rolex", "Generic",
	}
	descriptions = []string{
		"A beautifully preserved piece from the 1960s. Shows minor wear consistent with age.",
		"Brand new in box, never opened.",
		"Solid oak construction with steel accents.",
		"A unique, one-of-a-kind item. Perfect for collectors.",
		"Gently used item in excellent condition. No visible flaws.",
		"Slightly damaged, sold as-is. Great for restoration projects.",
	}
	sizes   = []string{"Small", "Medium", "Large", `10"x12"`, "N/A", "Size 9", "42R"}
	tagPool = []string{
		"vintage", "modern", "retro", "handmade", "luxury", "tech", "kitchen", "decor",
		"furniture", "art", "fashion", "rare", "collectible", "sustainable", "ergonomic",
	}
	flaws = []string{
		"Small scratch on the back right corner.", "Faint discoloration on the underside.",
		"Missing one original button.", "Minor scuff marks from shipping.", "",
	}
	categories = []string{model.CategoryHomeGoods, model.CategoryElectronics, model.CategoryApparel, model.CategoryCollectibles}
)

// PlaceholderSize is the edge length of generated images.
const PlaceholderSize = 400

// Generator builds random items. The same seed yields the same items apart
// from ids and SKUs.
type Generator struct {
	faker      *gofakeit.Faker
	compressor *imaging.Compressor
	now        func() time.Time
}

// New returns a generator seeded with seed.
func New(seed uint64, compressor *imaging.Compressor) *Generator {
	if compressor == nil {
		compressor = imaging.New()
	}
	return &Generator{faker: gofakeit.New(seed), compressor: compressor, now: time.Now}
}

// Items returns n unsaved items, each with one placeholder image.
func (g *Generator) Items(n int) ([]*model.Item, error) {
	out := make([]*model.Item, 0, n)
	for i := 0; i < n; i++ {
		it, err := g.item(i + 1)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

func (g *Generator) item(n int) (*model.Item, error) {
	f := g.faker
	name := f.RandomString(names)

	img, err := g.compressor.CompressImage(Placeholder(PlaceholderSize, PlaceholderSize, fmt.Sprintf("%s %d", strings.Fields(name)[0], n)))
	if err != nil {
		return nil, fmt.Errorf("rendering placeholder: %w", err)
	}

	it := model.NewItem(g.now())
	it.Name = fmt.Sprintf("%s #%d", name, n)
	it.Maker = f.RandomString(makers)
	it.Description = f.RandomString(descriptions)
	it.Category = f.RandomString(categories)
	it.Condition = f.RandomString(model.Conditions)
	it.Size = f.RandomString(sizes)
	it.Flaws = f.RandomString(flaws)
	price := float64(f.IntRange(50, 999))
	it.Price = &price
	it.Images = []string{img.DataURL()}

	tags := append([]string(nil), tagPool...)
	f.ShuffleStrings(tags)
	it.MergeTags(tags[:f.IntRange(3, 6)])

	it.Consigned = f.Float64() > 0.7
	if it.Consigned {
		it.Consignee = f.Name()
	}
	it.Shippable = f.Bool()
	if it.Shippable {
		w := float64(f.IntRange(1, 80))
		it.Weight = &w
	}
	it.Listed = f.Float64() > 0.3
	it.Flagged = f.Float64() > 0.9
	return it, nil
}

// Placeholder draws a solid image whose colour is derived from label, with
// the label written in the middle.
func Placeholder(w, h int, label string) image.Image {
	hash := fnv.New32a()
	hash.Write([]byte(label))
	bg := hslColor(float64(hash.Sum32()%360), 0.5, 0.6)

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)

	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.White, Face: face}
	width := d.MeasureString(label)
	d.Dot = fixed.Point26_6{
		X: fixed.I(w/2) - width/2,
		Y: fixed.I(h/2) + face.Metrics().Ascent/2,
	}
	d.DrawString(label)
	return img
}

func hslColor(hue, sat, light float64) color.RGBA {
	c := (1 - abs(2*light-1)) * sat
	hp := hue / 60
	x := c * (1 - abs(mod2(hp)-1))
	var r, g, b float64
	switch {
	case hp < 1:
		r, g = c, x
	case hp < 2:
		r, g = x, c
	case hp < 3:
		g, b = c, x
	case hp < 4:
		g, b = x, c
	case hp < 5:
		r, b = x, c
	default:
		r, b = c, x
	}
	m := light - c/2
	return color.RGBA{uint8((r + m) * 255), uint8((g + m) * 255), uint8((b + m) * 255), 255}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func mod2(f float64) float64 {
	for f >= 2 {
		f -= 2
	}
	return f
}
