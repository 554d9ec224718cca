package bir

import (
	"bytes"
	"fmt"
	"registry-backend/lib/htmlutil"
	"registry-backend/lib/registry"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const statusActivePrefix = "Действующая"

func requireOne(root *goquery.Selection, selector string) (*goquery.Selection, error) {
	s := root.Find(selector).First()
	if s.Length() == 0 {
		return nil, fmt.Errorf("missing %q", selector)
	}
	return s, nil
}

func setIfFound(record *registry.Record, key string, s *goquery.Selection) {
	if s.Length() == 0 {
		return
	}
	record.SetText(key, s.First().Text())
}

// parseBrief extracts the structured field set from a company brief page.
// A missing required node fails the whole record; partial records are never
// returned.
func parseBrief(body []byte) (*registry.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}

	record := registry.NewRecord()
	root := doc.Selection

	header := root.Find("bir-company-brief bir-brief-layout bir-company-header bir-brief-layout-header")
	setIfFound(record, registry.KeyName, header.Find("h1"))

	codes := header.Find("div.brief-layout-header__info__codes")
	for _, key := range []string{registry.KeyTaxID, registry.KeyOGRN, registry.KeyOKPO} {
		label := htmlutil.FindByText(codes, "span", key+":")
		if label.Length() == 0 {
			continue
		}
		value := htmlutil.NextElement(label.Nodes[0])
		if value != nil {
			record.SetText(key, htmlutil.GetText(value))
		}
	}

	setIfFound(record, registry.KeyStatus,
		root.Find("bir-company-overview div.company-overview-status__state span"))
	record.SetBool(registry.KeyStatusActive,
		strings.HasPrefix(record.Text(registry.KeyStatus), statusActivePrefix))

	registered, err := requireOne(root, "bir-company-overview div.company-overview-status__registration-date meta")
	if err != nil {
		return nil, err
	}
	record.SetText(registry.KeyRegistered, registered.AttrOr("content", ""))

	err = parseAddress(record, root)
	if err != nil {
		return nil, err
	}
	parseContacts(record, root)

	err = parseNames(record, root)
	if err != nil {
		return nil, err
	}

	reliability, err := requireOne(root, "div.ranged-card__content__value")
	if err != nil {
		return nil, err
	}
	record.SetText("Благонадежность", reliability.Text())

	creditCard, err := requireOne(root, "bir-widget-ranged-card.company-overview__credit")
	if err != nil {
		return nil, err
	}
	credit, err := requireOne(creditCard, "div.ranged-card__content__value")
	if err != nil {
		return nil, err
	}
	record.SetText("Кредитоспособность", credit.Text())

	err = parseSize(record, root)
	if err != nil {
		return nil, err
	}

	capital, err := requireOne(root, "bir-company-authorized-capital > div.company-card-widget")
	if err != nil {
		return nil, err
	}
	capitalValue, err := requireOne(capital, "div.company-card-widget__value")
	if err != nil {
		return nil, err
	}
	record.SetText("Уставный капитал", strings.TrimSpace(capitalValue.Text()))

	taxMode, err := requireOne(root, "bir-company-tax-mode.company-overview__tax > div.company-card-widget")
	if err != nil {
		return nil, err
	}
	taxValue, err := requireOne(taxMode, "div.company-card-widget__value")
	if err != nil {
		return nil, err
	}
	record.SetText("Режим налогообложения", strings.TrimSpace(taxValue.Text()))

	parseCodeGrid(record, root)

	err = parseOkved(record, root)
	if err != nil {
		return nil, err
	}

	return record, nil
}

// the postal address is the anchor's own text plus the text node that
// follows it
func parseAddress(record *registry.Record, root *goquery.Selection) error {
	record.SetText(registry.KeyAddress, "")
	anchor := root.Find("div.company-main__contacts div.company-main__contacts__address a").First()
	if anchor.Length() == 0 {
		return nil
	}
	rest := htmlutil.NextSibling(anchor.Nodes[0])
	if rest == nil {
		return fmt.Errorf("address anchor has no trailing text")
	}
	record.SetText(registry.KeyAddress, strings.TrimSpace(anchor.Text()+htmlutil.GetText(rest)))
	return nil
}

func parseContacts(record *registry.Record, root *goquery.Selection) {
	// each contact channel is optional
	setIfFound(record, "email", root.Find("bir-icon-text[itemprop=email] a"))
	setIfFound(record, "тел", root.Find("bir-icon-text[itemprop=telephone] a"))
	setIfFound(record, "сайт", root.Find("bir-icon-text[itemprop=url] a"))
	// data-integrity warning for an unverifiable address
	setIfFound(record, "Адрес недостоверен", root.Find("bir-warnings-list div.container__warning"))
}

// the names block is a repeated title/value list: full legal name, latin
// name, organizational form and so on
func parseNames(record *registry.Record, root *goquery.Selection) error {
	main, err := requireOne(root, "bir-company-overview div.overview-layout__content__main")
	if err != nil {
		return err
	}

	main.Find("noindex div.company-main__names__name__title").Each(func(_ int, title *goquery.Selection) {
		label := []rune(title.Text())
		if len(label) == 0 {
			return
		}
		// drop the trailing colon
		key := string(label[:len(label)-1])

		parent := title.Parent()
		if parent.Length() == 0 {
			return
		}
		value := htmlutil.NextElement(parent.Nodes[0])
		if value == nil {
			return
		}
		record.SetText(key, htmlutil.GetText(value))
	})

	// downstream template logic assumes the field is present
	record.SetIfAbsent(registry.KeyFullName, registry.TextValue(""))
	return nil
}

func parseSize(record *registry.Record, root *goquery.Selection) error {
	content, err := requireOne(root, "bir-company-size div.company-size > div.company-size__content")
	if err != nil {
		return err
	}
	content.Find("div.company-size__content__title").Each(func(_ int, title *goquery.Selection) {
		value := htmlutil.NextElement(title.Nodes[0])
		if value == nil {
			return
		}
		record.SetText(title.Text(), htmlutil.GetText(value))
	})
	return nil
}

// the code grid is an alternating label/value sequence of div elements with
// non-data elements interleaved and a trailing non-data element; keys
// already populated by earlier structural extraction win
func parseCodeGrid(record *registry.Record, root *goquery.Selection) {
	widget := root.Find("bir-company-codes.company-overview__codes div.key-value-grid").First()
	if widget.Length() == 0 {
		return
	}

	var children []*html.Node
	for child := widget.Nodes[0].FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode {
			children = append(children, child)
		}
	}

	for i := 0; i < len(children); i++ {
		if children[i].Data != "div" || i == len(children)-1 {
			continue
		}
		key := htmlutil.GetText(children[i])
		i++
		for i < len(children) && children[i].Data != "div" {
			i++
		}
		if i >= len(children) {
			break
		}
		record.SetIfAbsent(key, registry.TextValue(htmlutil.GetText(children[i])))
	}
}

// activity classification codes: the primary is the single code/description
// pair after the "Основной" header, the additional list is a flat
// alternating sequence after the "Дополнительные" header
func parseOkved(record *registry.Record, root *goquery.Selection) error {
	widget, err := requireOne(root, "bir-widget-okveds.company-overview__okveds")
	if err != nil {
		return err
	}

	okved := registry.NewRecord()
	okved.Set(registry.KeyOKVEDPrimary, registry.PairsValue([]registry.Pair{}))
	okved.Set(registry.KeyOKVEDAdditional, registry.PairsValue([]registry.Pair{}))

	primary := htmlutil.FindByText(widget, "header", registry.KeyOKVEDPrimary)
	if primary.Length() > 0 {
		code := htmlutil.NextElement(primary.Nodes[0])
		if code == nil {
			return fmt.Errorf("primary activity header has no code element")
		}
		description := htmlutil.NextElement(code)
		if description == nil {
			return fmt.Errorf("primary activity code has no description element")
		}
		okved.Set(registry.KeyOKVEDPrimary, registry.PairsValue([]registry.Pair{{
			Code:        htmlutil.GetText(code),
			Description: htmlutil.GetText(description),
		}}))
	}

	additional := htmlutil.FindByText(widget, "header", registry.KeyOKVEDAdditional)
	if additional.Length() > 0 {
		var pairs []registry.Pair
		for el := htmlutil.NextElement(additional.Nodes[0]); el != nil; {
			description := htmlutil.NextElement(el)
			if description == nil {
				return fmt.Errorf("additional activity code has no description element")
			}
			pairs = append(pairs, registry.Pair{
				Code:        htmlutil.GetText(el),
				Description: htmlutil.GetText(description),
			})
			el = htmlutil.NextElement(description)
		}
		okved.Set(registry.KeyOKVEDAdditional, registry.PairsValue(pairs))
	}

	record.Set(registry.KeyOKVED, registry.NestedValue(okved))
	return nil
}
