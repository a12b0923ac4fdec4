package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/bidgrid-scraper/internal/models"
)

// DetailParser extracts the fixed detail fields from a bid's detail view
// HTML. Every field is extracted independently: a missing element yields
// the MissingField sentinel, never an error.
type DetailParser struct {
	contactSelector   string
	messageSelector   string
	documentsSelector string
}

func NewDetailParser() *DetailParser {
	return &DetailParser{
		contactSelector:   `a[href^="mailto:"]`,
		messageSelector:   `h6.text-danger`,
		documentsSelector: `#bidDocuments a`,
	}
}

// Parse reads the detail fields out of the given HTML fragment.
func (p *DetailParser) Parse(html string) *models.DetailRecord {
	rec := &models.DetailRecord{
		ContactEmail:     models.MissingField,
		AdDate:           models.MissingField,
		ResponseDeadline: models.MissingField,
		ImportantMessage: models.MissingField,
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return rec
	}

	if v := strings.TrimSpace(doc.Find(p.contactSelector).First().Text()); v != "" {
		rec.ContactEmail = v
	}
	rec.AdDate = p.labeledValue(doc, "Solicitation Ad Date")
	rec.ResponseDeadline = p.labeledValue(doc, "Deadline for Bid Responses")
	if v := strings.TrimSpace(doc.Find(p.messageSelector).First().Text()); v != "" {
		rec.ImportantMessage = v
	}

	doc.Find(p.documentsSelector).Each(func(_ int, link *goquery.Selection) {
		name := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		if name == "" && href == "" {
			return
		}
		rec.Documents = append(rec.Documents, models.DocumentRef{Name: name, URL: href})
	})

	return rec
}

// labeledValue finds a label whose text contains the given caption and
// returns the text of the label element that follows it.
func (p *DetailParser) labeledValue(doc *goquery.Document, caption string) string {
	value := models.MissingField
	doc.Find("label").EachWithBreak(func(_ int, label *goquery.Selection) bool {
		if !strings.Contains(label.Text(), caption) {
			return true
		}
		if v := strings.TrimSpace(label.Next().Filter("label").Text()); v != "" {
			value = v
			return false
		}
		return true
	})
	return value
}
