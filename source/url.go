package source

import (
	"bytes"
	"context"
	"encoding/json"
	"mime"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/teranos/jobtrail/errors"
)

// readURL fetches a posting page and converts it to text.
// PDF responses are parsed as PDFs; text/plain is used verbatim.
func (r *Reader) readURL(ctx context.Context, raw string) (*Document, error) {
	key, err := NormalizeURL(raw)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Get(ctx, raw)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "fetch %s", raw), errors.ErrFetch)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.ContentType)
	var text string
	switch {
	case mediaType == "application/pdf" || bytes.HasPrefix(resp.Body, []byte("%PDF-")):
		text, err = r.extractPDF(ctx, bytes.NewReader(resp.Body), int64(len(resp.Body)))
		if err != nil {
			return nil, err
		}
	case mediaType == "text/plain":
		text = string(resp.Body)
	default:
		text, err = htmlToText(resp.Body)
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "parse HTML from %s", raw), errors.ErrParse)
		}
	}

	if strings.TrimSpace(text) == "" {
		return nil, errors.WithHint(
			errors.Wrapf(errors.ErrParse, "%s has no readable text", raw),
			"the page may render client-side; copy the posting text and add it directly")
	}

	return &Document{
		Text:   text,
		Type:   KindURL,
		Key:    key,
		Origin: raw,
	}, nil
}

// blockElements get a line break appended so adjacent blocks do not run together
const blockElements = "br, p, div, li, ul, ol, tr, td, th, h1, h2, h3, h4, h5, h6, section, article, header, footer, dd, dt"

var horizontalSpace = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)

// htmlToText returns the visible text of an HTML page, one block per line.
// A schema.org JobPosting, when embedded, is summarized ahead of the page text.
func htmlToText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	var lines []string
	if posting := jobPostingSummary(doc); posting != "" {
		lines = append(lines, posting)
	}
	if title := strings.TrimSpace(doc.Find("head title").First().Text()); title != "" {
		lines = append(lines, title)
	}

	doc.Find("script, style, noscript, svg, iframe, template, nav").Remove()
	doc.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	lines = append(lines, collapseLines(doc.Find("body").Text())...)
	return strings.Join(lines, "\n"), nil
}

// collapseLines squeezes runs of horizontal whitespace and drops blank lines
func collapseLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// jobPostingSummary renders the first JSON-LD JobPosting as labelled lines
func jobPostingSummary(doc *goquery.Document) string {
	var summary string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var raw interface{}
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return true
		}
		if posting := findJobPosting(raw); posting != nil {
			summary = formatJobPosting(posting)
			return false
		}
		return true
	})
	return summary
}

// findJobPosting searches a JSON-LD value (object, array or @graph) for a JobPosting
func findJobPosting(v interface{}) map[string]interface{} {
	switch node := v.(type) {
	case []interface{}:
		for _, item := range node {
			if p := findJobPosting(item); p != nil {
				return p
			}
		}
	case map[string]interface{}:
		if t, _ := node["@type"].(string); t == "JobPosting" {
			return node
		}
		if graph, ok := node["@graph"]; ok {
			return findJobPosting(graph)
		}
	}
	return nil
}

func formatJobPosting(p map[string]interface{}) string {
	var b strings.Builder
	add := func(label, value string) {
		value = strings.TrimSpace(value)
		if value != "" {
			b.WriteString(label + ": " + value + "\n")
		}
	}

	add("Title", stringField(p, "title"))
	if org, ok := p["hiringOrganization"].(map[string]interface{}); ok {
		add("Company", stringField(org, "name"))
	}
	if loc, ok := p["jobLocation"].(map[string]interface{}); ok {
		if addr, ok := loc["address"].(map[string]interface{}); ok {
			parts := []string{}
			for _, k := range []string{"addressLocality", "addressRegion", "addressCountry"} {
				if v := stringField(addr, k); v != "" {
					parts = append(parts, v)
				}
			}
			add("Location", strings.Join(parts, ", "))
		}
	}
	switch et := p["employmentType"].(type) {
	case string:
		add("Employment type", et)
	case []interface{}:
		var types []string
		for _, t := range et {
			if s, ok := t.(string); ok {
				types = append(types, s)
			}
		}
		add("Employment type", strings.Join(types, ", "))
	}
	add("Salary", salaryText(p["baseSalary"]))

	return strings.TrimRight(b.String(), "\n")
}

// salaryText renders a MonetaryAmount such as {currency, value: {minValue, maxValue, unitText}}
func salaryText(v interface{}) string {
	m, ok := v.(map[string]interface{})
	if !ok {
		return ""
	}
	currency := stringField(m, "currency")
	value, ok := m["value"].(map[string]interface{})
	if !ok {
		return ""
	}
	lo, hi, unit := numberField(value, "minValue"), numberField(value, "maxValue"), stringField(value, "unitText")
	if lo == "" && hi == "" {
		lo = numberField(value, "value")
	}

	amount := lo
	if lo != "" && hi != "" && lo != hi {
		amount = lo + "-" + hi
	} else if amount == "" {
		amount = hi
	}
	if amount == "" {
		return ""
	}
	out := strings.TrimSpace(currency + " " + amount)
	if unit != "" {
		out += " per " + strings.ToLower(unit)
	}
	return out
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func numberField(m map[string]interface{}, key string) string {
	switch n := m[key].(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case string:
		return n
	}
	return ""
}
