package fb2

import (
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/Scribe/core/ir"
)

// path compiles a child path that matches elements by local name, so
// documents with and without the FictionBook namespace read the same.
func path(steps ...string) *xpath.Expr {
	for i, s := range steps {
		steps[i] = "*[local-name()='" + s + "']"
	}
	return xpath.MustCompile(strings.Join(steps, "/"))
}

// metaFields map description elements to metadata keys. Repeated
// elements make a list.
var metaFields = []struct {
	key  string
	expr *xpath.Expr
}{
	{"title", path("title-info", "book-title")},
	{"genre", path("title-info", "genre")},
	{"language", path("title-info", "lang")},
	{"source_language", path("title-info", "src-lang")},
	{"keywords", path("title-info", "keywords")},
	{"identifier", path("document-info", "id")},
	{"generator", path("document-info", "program-used")},
	{"publisher", path("publish-info", "publisher")},
	{"isbn", path("publish-info", "isbn")},
	{"year", path("publish-info", "year")},
	{"city", path("publish-info", "city")},
}

var (
	authorExpr     = path("title-info", "author")
	translatorExpr = path("title-info", "translator")
	dateExpr       = path("title-info", "date")
	annotationExpr = path("title-info", "annotation")
	sequenceExpr   = path("title-info", "sequence")
	coverExpr      = path("title-info", "coverpage", "image")
	nameParts      = []string{"first-name", "middle-name", "last-name"}
)

// description copies <description> into document metadata.
func (c *converter) description(n *xmlquery.Node) {
	for _, f := range metaFields {
		var values []string
		for _, el := range xmlquery.QuerySelectorAll(n, f.expr) {
			if v := collapse(strings.TrimSpace(el.InnerText())); v != "" {
				values = append(values, v)
			}
		}
		c.setMeta(f.key, values)
	}
	c.setMeta("author", c.people(n, authorExpr))
	c.setMeta("translator", c.people(n, translatorExpr))

	if date := xmlquery.QuerySelector(n, dateExpr); date != nil {
		v := attr(date, "value")
		if v == "" {
			v = strings.TrimSpace(date.InnerText())
		}
		c.setMeta("date", []string{v})
	}
	if a := xmlquery.QuerySelector(n, annotationExpr); a != nil {
		c.setMeta("description", []string{collapse(strings.TrimSpace(a.InnerText()))})
	}
	if seq := xmlquery.QuerySelector(n, sequenceExpr); seq != nil {
		c.setMeta("series", []string{attr(seq, "name")})
		if num, err := strconv.ParseInt(attr(seq, "number"), 10, 64); err == nil {
			c.meta.SetInt("series_index", num)
		}
	}
	if img := xmlquery.QuerySelector(n, coverExpr); img != nil {
		c.setMeta("cover", []string{strings.TrimPrefix(attr(img, "href"), "#")})
	}
}

// people formats author-like elements as "First Middle Last", falling
// back to the nickname.
func (c *converter) people(n *xmlquery.Node, expr *xpath.Expr) []string {
	var out []string
	for _, p := range xmlquery.QuerySelectorAll(n, expr) {
		var parts []string
		for _, part := range nameParts {
			if el := child(p, part); el != nil {
				if s := strings.TrimSpace(el.InnerText()); s != "" {
					parts = append(parts, s)
				}
			}
		}
		if len(parts) == 0 {
			if nick := child(p, "nickname"); nick != nil {
				parts = append(parts, strings.TrimSpace(nick.InnerText()))
			}
		}
		if name := strings.Join(parts, " "); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// setMeta stores one value as a string and several as a list.
func (c *converter) setMeta(key string, values []string) {
	switch {
	case len(values) == 0 || (len(values) == 1 && values[0] == ""):
	case len(values) == 1:
		c.meta.SetString(key, values[0])
	default:
		c.meta.Set(key, ir.Strings(values...))
	}
}

func child(n *xmlquery.Node, name string) *xmlquery.Node {
	for el := range elements(n) {
		if el.Data == name {
			return el
		}
	}
	return nil
}
