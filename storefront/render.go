package storefront

import (
	"bytes"
	"html/template"
	"io"
	"regexp"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"

	"restosite/models"
	"restosite/sections"
)

// markdown renderer configured with Goldmark and useful extensions
var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,     // tables, strikethrough, task lists, autolinks (GFM set)
		extension.Linkify, // linkify raw URLs
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithUnsafe(), // operators may embed maps and widgets
	),
)

func renderMarkdown(content string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(content), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(content))
	}
	return template.HTML(buf.String())
}

type NavLink struct {
	Text string
	URL  string
}

var navLinkRe = regexp.MustCompile(`\[([^\]]+)\]\(([^\)]+)\)`)

// parseNavLinks reads [text](url) links out of the nav section's content.
func parseNavLinks(nav string) []NavLink {
	var links []NavLink
	for _, match := range navLinkRe.FindAllStringSubmatch(nav, -1) {
		links = append(links, NavLink{Text: match[1], URL: match[2]})
	}
	return links
}

// sectionView is what every section template receives.
type sectionView struct {
	Section    sections.Section
	Restaurant *models.Restaurant
	Body       template.HTML
	Links      []NavLink
	Year       int
}

type renderFunc func(w io.Writer, v sectionView) error

var sectionTemplates = template.Must(template.New("sections").Parse(`
{{define "nav"}}<nav id="{{.Section.ID}}" class="section section-nav"><a class="brand" href="./">{{.Restaurant.Title}}</a><ul>{{range .Links}}<li><a href="{{.URL}}">{{.Text}}</a></li>{{end}}</ul></nav>{{end}}
{{define "hero"}}<header id="{{.Section.ID}}" class="section section-hero"><h1>{{.Restaurant.Title}}</h1>{{if .Body}}{{.Body}}{{else}}{{.Restaurant.Description}}{{end}}</header>{{end}}
{{define "footer"}}<footer id="{{.Section.ID}}" class="section section-footer">{{.Body}}<p>&copy; {{.Year}} {{.Restaurant.Title}}</p></footer>{{end}}
{{define "block"}}<section id="{{.Section.ID}}" class="section section-{{.Section.Kind}}"><h2>{{.Section.Name}}</h2>{{.Body}}</section>{{end}}
`))

func named(name string) renderFunc {
	return func(w io.Writer, v sectionView) error {
		return sectionTemplates.ExecuteTemplate(w, name, v)
	}
}

// renderers maps every section kind to its renderer.
var renderers = map[sections.Kind]renderFunc{
	sections.KindNav:       named("nav"),
	sections.KindHero:      named("hero"),
	sections.KindFooter:    named("footer"),
	sections.KindGallery:   named("block"),
	sections.KindLocations: named("block"),
	sections.KindFaq:       named("block"),
	sections.KindFeatures:  named("block"),
	sections.KindReviews:   named("block"),
	sections.KindMenu:      named("block"),
	sections.KindGiftCards: named("block"),
	sections.KindCards:     named("block"),
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Restaurant.Title}}</title>
{{if .Restaurant.Description}}<meta name="description" content="{{.Restaurant.Description}}">{{end}}
{{if .Theme}}<style>{{.Theme}}</style>{{end}}
</head>
<body>
{{range .Sections}}{{.}}
{{end}}</body>
</html>
`))

// renderPage walks the list in order and renders each section with the
// renderer of its kind. bodies holds the markdown content by section id.
func renderPage(w io.Writer, restaurant *models.Restaurant, list sections.List, bodies map[string]string) error {
	var links []NavLink
	for _, s := range list {
		if s.Placement() == sections.PlacementFloating {
			links = append(links, NavLink{Text: s.Name, URL: "#" + s.ID})
		}
	}

	rendered := make([]template.HTML, 0, len(list))
	for _, s := range list {
		render, ok := renderers[s.Kind]
		if !ok {
			continue
		}

		v := sectionView{
			Section:    s,
			Restaurant: restaurant,
			Year:       time.Now().Year(),
		}
		if body := bodies[s.ID]; body != "" {
			v.Body = renderMarkdown(body)
		}
		if s.Kind == sections.KindNav {
			v.Links = append(links, parseNavLinks(bodies[s.ID])...)
			v.Body = ""
		}

		var buf bytes.Buffer
		if err := render(&buf, v); err != nil {
			return err
		}
		rendered = append(rendered, template.HTML(buf.String()))
	}

	return pageTemplate.Execute(w, struct {
		Restaurant *models.Restaurant
		Theme      template.CSS
		Sections   []template.HTML
	}{restaurant, template.CSS(restaurant.Theme), rendered})
}
