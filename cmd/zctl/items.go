package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/erazemk/zapuscina/internal/demo"
	"github.com/erazemk/zapuscina/internal/imaging"
	"github.com/erazemk/zapuscina/internal/inventory"
	"github.com/erazemk/zapuscina/internal/model"
)

func (a *app) login(ctx context.Context, args []string) error {
	fs := newFlagSet("login", "login -u <user>")
	var username string
	fs.StringVar(&username, "user", "", "username")
	fs.StringVar(&username, "u", "", "username")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if username == "" {
		fs.Usage()
		return errors.New("a username is required")
	}

	password, err := readPassword(os.Stdin)
	if err != nil {
		return err
	}
	if err := a.ctrl.Login(ctx, username, password); err != nil {
		if a.ctrl.Session() == nil {
			return err
		}
		// Signed in, but the first load failed.
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	s := a.ctrl.Session()
	fmt.Printf("Signed in as %s (%s).\n", s.Username, s.Role)
	if a.ctrl.Repo != nil && a.ctrl.LoadError() == nil {
		fmt.Printf("%d items.\n", len(a.ctrl.Items()))
	}
	return nil
}

// readPassword takes ZCTL_PASSWORD when set, otherwise one line of input.
func readPassword(in io.Reader) (string, error) {
	if p := os.Getenv("ZCTL_PASSWORD"); p != "" {
		return p, nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *app) logout(_ context.Context, _ []string) error {
	if err := a.ctrl.Logout(); err != nil {
		return err
	}
	fmt.Println("Signed out.")
	return nil
}

func (a *app) whoami(_ context.Context, _ []string) error {
	s, err := a.sessions.Load()
	if err != nil {
		return err
	}
	if s == nil {
		fmt.Println("Not signed in.")
		return nil
	}
	fmt.Printf("%s (%s)\n", s.Username, s.Role)
	return nil
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := newFlagSet("list", "list [-filter F] [-q text]")
	filter := fs.String("filter", model.FilterAll, "All, Flagged or a category")
	query := fs.String("q", "", "search name, maker, description, SKU and tags")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.ctrl.SetFilter(*filter); err != nil {
		return err
	}
	a.ctrl.SetSearch(*query)
	if err := a.boot(ctx); err != nil {
		return err
	}

	items := a.ctrl.Visible()
	if len(items) == 0 {
		fmt.Println("No items found.")
		return nil
	}
	printItems(os.Stdout, items)
	return nil
}

func printItems(w io.Writer, items []*model.Item) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSKU\tNAME\tCATEGORY\tCONDITION\tPRICE\tFLAGS")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			it.ID, it.SKU, it.Name, it.Category, it.Condition, formatPrice(it.Price), itemFlags(it))
	}
	tw.Flush()
}

func formatPrice(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("$%.2f", *p)
}

func itemFlags(it *model.Item) string {
	var f []string
	if it.Listed {
		f = append(f, "listed")
	}
	if it.Flagged {
		f = append(f, "flagged")
	}
	if it.Consigned {
		f = append(f, "consigned")
	}
	if it.Shippable {
		f = append(f, "ships")
	}
	return strings.Join(f, ",")
}

func (a *app) show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: zctl show <id>")
	}
	if err := a.boot(ctx); err != nil {
		return err
	}
	it, err := a.ctrl.Item(args[0])
	if err != nil {
		return err
	}
	printItem(os.Stdout, it)
	return nil
}

func printItem(w io.Writer, it *model.Item) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	row := func(k, v string) {
		if v != "" {
			fmt.Fprintf(tw, "%s:\t%s\n", k, v)
		}
	}
	row("ID", it.ID)
	row("Record", it.RecordID)
	row("SKU", it.SKU)
	row("Name", it.Name)
	row("Maker", it.Maker)
	row("Category", it.Category)
	row("Condition", it.Condition)
	row("Size", it.Size)
	row("Flaws", it.Flaws)
	row("Price", formatPrice(it.Price))
	row("Tags", strings.Join(it.Tags, ", "))
	row("Consignee", it.ConsigneeName())
	if it.Shippable && it.Weight != nil {
		row("Weight", strconv.FormatFloat(*it.Weight, 'f', -1, 64))
	}
	row("Flags", itemFlags(it))
	row("Images", strconv.Itoa(len(it.Images)))
	tw.Flush()
	if it.Description != "" {
		fmt.Fprintf(w, "\n%s\n", it.Description)
	}
}

// formFlags binds the item form to command-line flags. Only flags given on
// the command line are applied, so edit leaves everything else alone.
type formFlags struct {
	fs *flag.FlagSet

	name, maker, desc, category, condition string
	size, flaws, price, consignee, weight  string
	consigned, shippable, listed, flagged  bool
	tags, images                           listFlag
	removeImages                           listFlag
	suggest, identify                      bool
}

func newFormFlags(fs *flag.FlagSet) *formFlags {
	f := &formFlags{fs: fs}
	fs.StringVar(&f.name, "name", "", "item name")
	fs.StringVar(&f.maker, "maker", "", "maker or brand")
	fs.StringVar(&f.desc, "desc", "", "description")
	fs.StringVar(&f.category, "category", "", strings.Join(model.Categories, ", "))
	fs.StringVar(&f.condition, "condition", "", strings.Join(model.Conditions, ", "))
	fs.StringVar(&f.size, "size", "", "size or dimensions")
	fs.StringVar(&f.flaws, "flaws", "", "known flaws")
	fs.StringVar(&f.price, "price", "", "price, empty to clear")
	fs.StringVar(&f.consignee, "consignee", "", "consignee name")
	fs.StringVar(&f.weight, "weight", "", "shipping weight")
	fs.BoolVar(&f.consigned, "consigned", false, "item is consigned")
	fs.BoolVar(&f.shippable, "shippable", false, "item can be shipped")
	fs.BoolVar(&f.listed, "listed", false, "item is listed for sale")
	fs.BoolVar(&f.flagged, "flagged", false, "item is flagged for review")
	fs.Var(&f.tags, "tag", "tag to add (repeatable)")
	fs.Var(&f.images, "image", "image file to attach (repeatable)")
	fs.Var(&f.removeImages, "remove-image", "image position to remove, from 0 (repeatable)")
	fs.BoolVar(&f.suggest, "suggest-tags", false, "ask the assistant for tags")
	fs.BoolVar(&f.identify, "identify", false, "ask the assistant to fill in empty fields")
	return f
}

func (f *formFlags) apply(ctx context.Context, d *inventory.Draft) error {
	it := d.Item
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "name":
			it.Name = f.name
		case "maker":
			it.Maker = f.maker
		case "desc":
			it.Description = f.desc
		case "category":
			it.Category = f.category
		case "condition":
			it.Condition = f.condition
		case "size":
			it.Size = f.size
		case "flaws":
			it.Flaws = f.flaws
		case "price":
			d.SetPrice(f.price)
		case "consignee":
			it.Consignee = f.consignee
		case "weight":
			it.Weight = model.ParsePrice(f.weight)
		case "consigned":
			it.Consigned = f.consigned
		case "shippable":
			it.Shippable = f.shippable
		case "listed":
			it.Listed = f.listed
		case "flagged":
			it.Flagged = f.flagged
		}
	})

	// Highest position first so earlier indexes stay valid.
	for i := len(f.removeImages) - 1; i >= 0; i-- {
		n, convErr := strconv.Atoi(f.removeImages[i])
		if convErr != nil {
			return fmt.Errorf("invalid image position %q", f.removeImages[i])
		}
		if err := d.RemoveImage(n); err != nil {
			return err
		}
	}
	for _, t := range f.tags {
		d.AddTag(t)
	}

	if len(f.images) > 0 {
		files := make([]imaging.File, len(f.images))
		for i, path := range f.images {
			files[i] = imaging.File{Name: path, Open: func() (io.ReadCloser, error) { return os.Open(path) }}
		}
		added := d.AttachImages(ctx, files)
		for _, e := range d.ImageErrors {
			fmt.Fprintf(os.Stderr, "warning: %v\n", e)
		}
		fmt.Printf("Attached %d of %d images.\n", added, len(files))
	}

	// Assistant failures are reported but never block saving.
	if f.identify {
		if id, err := d.Identify(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "identify: %v\n", err)
		} else {
			fmt.Printf("Identified as %q (%s).\n", id.Name, id.Category)
		}
	}
	if f.suggest {
		if n, err := d.SuggestTags(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "suggest tags: %s\n", message(err))
		} else {
			fmt.Printf("Added %d suggested tags.\n", n)
		}
	}
	return nil
}

func (a *app) add(ctx context.Context, args []string) error {
	fs := newFlagSet("add", "add -name <name> -image <file> [flags]")
	form := newFormFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.boot(ctx); err != nil {
		return err
	}

	d := a.ctrl.NewDraft()
	if err := form.apply(ctx, d); err != nil {
		return err
	}
	if err := a.ctrl.Save(ctx, d); err != nil {
		return err
	}
	fmt.Printf("Created %s (SKU %s).\n", d.Item.ID, d.Item.SKU)
	return nil
}

func (a *app) edit(ctx context.Context, args []string) error {
	fs := newFlagSet("edit", "edit <id> [flags]")
	form := newFormFlags(fs)
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		fs.Usage()
		return errors.New("an item id is required")
	}
	id := args[0]
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if err := a.boot(ctx); err != nil {
		return err
	}

	d, err := a.ctrl.EditDraft(id)
	if err != nil {
		return err
	}
	if err := form.apply(ctx, d); err != nil {
		return err
	}
	if err := a.ctrl.Save(ctx, d); err != nil {
		return err
	}
	fmt.Printf("Updated %s.\n", id)
	return nil
}

func (a *app) delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: zctl delete <id>")
	}
	if err := a.boot(ctx); err != nil {
		return err
	}
	if err := a.ctrl.Delete(ctx, args[0]); err != nil {
		return errors.New(message(err))
	}
	fmt.Printf("Deleted %s.\n", args[0])
	return nil
}

func (a *app) tag(ctx context.Context, args []string) error {
	fs := newFlagSet("tag", "tag <id> [-add t] [-rm t]")
	var add, rm listFlag
	fs.Var(&add, "add", "tag to add (repeatable)")
	fs.Var(&rm, "rm", "tag to remove (repeatable)")
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		fs.Usage()
		return errors.New("an item id is required")
	}
	id := args[0]
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if err := a.boot(ctx); err != nil {
		return err
	}

	d, err := a.ctrl.EditDraft(id)
	if err != nil {
		return err
	}
	for _, t := range rm {
		d.RemoveTag(t)
	}
	for _, t := range add {
		d.AddTag(t)
	}
	if len(add) == 0 && len(rm) == 0 {
		a.ctrl.Cancel()
		fmt.Println(strings.Join(d.Item.Tags, ", "))
		return nil
	}
	if err := a.ctrl.Save(ctx, d); err != nil {
		return err
	}
	fmt.Printf("Tags: %s\n", strings.Join(d.Item.Tags, ", "))
	return nil
}

func (a *app) seed(ctx context.Context, args []string) error {
	fs := newFlagSet("seed", "seed [-n 10] [-seed 1]")
	n := fs.Int("n", 10, "number of items")
	seed := fs.Uint64("seed", 1, "random seed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.boot(ctx); err != nil {
		return err
	}

	items, err := demo.New(*seed, imaging.New()).Items(*n)
	if err != nil {
		return err
	}
	saved := 0
	for _, it := range items {
		d := a.ctrl.NewDraft()
		d.Item = it
		if err := a.ctrl.Save(ctx, d); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s: %v\n", it.Name, err)
			continue
		}
		saved++
	}
	fmt.Printf("Created %d demo items.\n", saved)
	return nil
}

// message returns the wording shown to staff for errors they can act on.
func message(err error) string {
	switch {
	case errors.Is(err, inventory.ErrNeedImage):
		return "Please add an image first to suggest tags."
	case errors.Is(err, inventory.ErrNeedDetails):
		return "Please enter a name and description for better suggestions."
	case errors.Is(err, inventory.ErrNoRecordID):
		return "Cannot delete item: missing record ID."
	}
	return err.Error()
}
