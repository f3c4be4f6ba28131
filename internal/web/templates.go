package web

import (
	"database/sql"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/zapuscina/internal/auction"
	"github.com/erazemk/zapuscina/internal/auth"
	"github.com/erazemk/zapuscina/internal/events"
	"github.com/erazemk/zapuscina/internal/model"
	webembed "github.com/erazemk/zapuscina/web"
)

// Templates holds parsed HTML templates.
type Templates struct {
	templates map[string]*template.Template
}

// FuncMap returns the template function map. now is used for countdowns.
func FuncMap(now func() time.Time) template.FuncMap {
	return template.FuncMap{
		"roleAtLeast": model.RoleAtLeast,
		"roleName": func(role string) string {
			switch role {
			case model.RoleAdmin:
				return "Administrator"
			case model.RoleStaff:
				return "Staff"
			case model.RoleBidder:
				return "Bidder"
			default:
				return role
			}
		},
		"money": func(v any) string {
			switch p := v.(type) {
			case float64:
				return fmt.Sprintf("$%.2f", p)
			case *float64:
				if p != nil {
					return fmt.Sprintf("$%.2f", *p)
				}
			}
			return "-"
		},
		"nextBid": auction.NextBid,
		"countdown": func(endsAt time.Time) string {
			return auction.FormatCountdown(endsAt.Sub(now()))
		},
		"primaryImage": func(it *model.Item) string {
			if len(it.Images) == 0 {
				return ""
			}
			return it.Images[0]
		},
	}
}

// LoadTemplates parses all page templates with the layout.
func LoadTemplates(now func() time.Time) (*Templates, error) {
	tfs, err := webembed.TemplatesFS()
	if err != nil {
		return nil, fmt.Errorf("opening templates: %w", err)
	}

	layoutBytes, err := fs.ReadFile(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}

	pages := []string{
		"login.html",
		"board.html",
		"items.html",
	}

	ts := &Templates{templates: make(map[string]*template.Template)}

	for _, page := range pages {
		pageBytes, err := fs.ReadFile(tfs, page)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", page, err)
		}

		tmpl := template.New(page).Funcs(FuncMap(now))
		tmpl, err = tmpl.Parse(string(layoutBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing layout for %s: %w", page, err)
		}
		tmpl, err = tmpl.Parse(string(pageBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}

		ts.templates[page] = tmpl
	}

	return ts, nil
}

// Render renders a template with the given data.
func (ts *Templates) Render(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := ts.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		slog.Error("failed to render template", "template", name, "error", err)
	}
}

// PageData is the base data passed to all templates.
type PageData struct {
	Title   string
	User    *auth.Claims
	Error   string
	Success string
}

// Server holds all dependencies for page handlers.
type Server struct {
	DB            *sql.DB
	Templates     *Templates
	JWTSecret     string
	Authenticator auth.Authenticator
	Items         ItemLister
	Events        events.Publisher
	Now           func() time.Time
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
