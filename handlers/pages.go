package handlers

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/propgate/propgate/internal/entitlement"
	"github.com/propgate/propgate/internal/fieldspec"
	"github.com/propgate/propgate/internal/gating"
	"github.com/propgate/propgate/internal/listing/view"
	"github.com/propgate/propgate/pkg/logger"
	"github.com/propgate/propgate/pkg/middleware"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var pageTemplates = template.Must(template.New("pages").ParseFS(templateFS, "templates/*.tmpl"))

var fieldLabels = map[string]string{
	fieldspec.Title:        "Title",
	fieldspec.Neighborhood: "Neighborhood",
	fieldspec.Price:        "Price",
	fieldspec.PropertyType: "Type",
	fieldspec.ExactAddress: "Address",
	fieldspec.Phone:        "Phone",
	fieldspec.RealSurface:  "Surface (m²)",
	fieldspec.Charges:      "Monthly charges",
	fieldspec.PDFPlanURL:   "Floor plan (PDF)",
}

// detail rows skip fields rendered elsewhere on the page
var rowHidden = map[string]bool{
	fieldspec.Title:             true,
	fieldspec.Description:       true,
	fieldspec.PublicDescription: true,
	fieldspec.Photos:            true,
}

// Pages serves the server-rendered listing frontend.
type Pages struct {
	Views *view.Service
	// Viewer runs before each page, typically optional auth.
	Viewer gin.HandlerFunc
}

// Register installs the page templates on r and mounts the routes.
func (p *Pages) Register(r *gin.Engine) {
	r.SetHTMLTemplate(pageTemplates)
	handlers := func(h gin.HandlerFunc) []gin.HandlerFunc {
		if p.Viewer == nil {
			return []gin.HandlerFunc{h}
		}
		return []gin.HandlerFunc{p.Viewer, h}
	}
	r.GET("/", handlers(p.catalogue)...)
	r.GET("/property/:id", handlers(p.property)...)
	r.GET("/pricing", handlers(p.pricing)...)
}

type page struct {
	Title   string
	Premium bool
}

type card struct {
	ID, Title, Teaser, Price, Neighborhood, PropertyType, Cover string
}

type row struct {
	Label  string
	State  string
	Value  string
	Link   string
	Locked bool
	Absent bool
}

func (p *Pages) catalogue(c *gin.Context) {
	cat, err := p.Views.Catalogue(c.Request.Context(), middleware.Subject(c))
	if err != nil {
		p.fail(c, err)
		return
	}
	cards := make([]card, 0, len(cat.Entries))
	for _, e := range cat.Entries {
		cd := card{
			ID:           e.ID,
			Title:        text(e.Record, fieldspec.Title),
			Teaser:       text(e.Record, fieldspec.PublicDescription),
			Price:        text(e.Record, fieldspec.Price),
			Neighborhood: text(e.Record, fieldspec.Neighborhood),
			PropertyType: text(e.Record, fieldspec.PropertyType),
		}
		if ph := photos(e.Record); len(ph) > 0 {
			cd.Cover = ph[0]
		}
		cards = append(cards, cd)
	}
	c.HTML(http.StatusOK, "catalogue.tmpl", gin.H{
		"Title":   "Listings",
		"Premium": cat.Viewer.Plan == entitlement.Premium,
		"Cards":   cards,
	})
}

func (p *Pages) property(c *gin.Context) {
	d, err := p.Views.Detail(c.Request.Context(), c.Param("id"), middleware.Subject(c))
	if err != nil {
		p.fail(c, err)
		return
	}
	var rows []row
	for _, f := range d.Record.Fields() {
		if rowHidden[f.FieldID] {
			continue
		}
		r := row{Label: label(f.FieldID), State: f.State.String()}
		switch f.State {
		case gating.StateRedacted:
			r.Locked = true
		case gating.StateAbsent:
			r.Absent = true
		default:
			v := stringOf(f.Value)
			switch {
			case v == "":
				// a stored null is no data, never a value
				r.Absent = true
				r.State = gating.StateAbsent.String()
			case f.FieldID == fieldspec.PDFPlanURL:
				r.Link = v
			default:
				r.Value = v
			}
		}
		rows = append(rows, r)
	}
	desc, _ := d.Description()
	heading := text(d.Record, fieldspec.Title)
	if heading == "" {
		heading = "Property"
	}
	c.HTML(http.StatusOK, "property.tmpl", gin.H{
		"Title":       heading,
		"Heading":     heading,
		"Premium":     d.Viewer.Plan == entitlement.Premium,
		"Photos":      photos(d.Record),
		"Description": stringOf(desc),
		"Rows":        rows,
		"Upsell":      d.Upsell,
	})
}

func (p *Pages) pricing(c *gin.Context) {
	premium := false
	if sub := middleware.Subject(c); sub != "" {
		if v, err := p.Views.Viewer(c.Request.Context(), sub); err == nil {
			premium = v.Plan == entitlement.Premium
		}
	}
	c.HTML(http.StatusOK, "pricing.tmpl", page{Title: "Pricing", Premium: premium})
}

func (p *Pages) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, view.ErrListingNotFound):
		c.HTML(http.StatusNotFound, "error.tmpl", gin.H{"Title": "Not found", "Message": "This property does not exist."})
	case errors.Is(err, view.ErrUpstreamUnavailable):
		logger.With("path", c.Request.URL.Path, "collaborator", view.Collaborator(err)).Warnf("page: %v", err)
		c.Header("Retry-After", "5")
		c.HTML(http.StatusServiceUnavailable, "error.tmpl", gin.H{
			"Title":   "Temporarily unavailable",
			"Message": "We could not load this page right now.",
			"Retry":   true,
		})
	default:
		logger.Errorf("page %s: %v", c.Request.URL.Path, err)
		c.HTML(http.StatusInternalServerError, "error.tmpl", gin.H{"Title": "Error", "Message": "Something went wrong."})
	}
}

func label(id string) string {
	if l, ok := fieldLabels[id]; ok {
		return l
	}
	return id
}

func stringOf(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func text(gr gating.GatedRecord, id string) string {
	v, _ := gr.Value(id)
	return stringOf(v)
}

func photos(gr gating.GatedRecord) []string {
	v, ok := gr.Value(fieldspec.Photos)
	if !ok {
		return nil
	}
	var out []string
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, t...)
	case string:
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
