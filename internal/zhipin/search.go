package zhipin

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/spigell/zhipin-responder/internal/browser"
)

const DefaultPages = 3

// SearchParams are the query parameters of the search page.
type SearchParams struct {
	// zpparam is the query key on the site.
	Keyword    string `mapstructure:"keyword" zpparam:"query"`
	City       string `mapstructure:"city" zpparam:"city"`
	Experience string `mapstructure:"experience" zpparam:"experience"`
	Degree     string `mapstructure:"degree" zpparam:"degree"`
	Salary     string `mapstructure:"salary" zpparam:"salary"`
	// Pages is how many result pages to walk. It is not sent to the site.
	Pages int `mapstructure:"pages"`
}

// SearchURL renders the search page URL for params.
func SearchURL(params *SearchParams) string {
	q := buildParams(params)
	if len(q) == 0 {
		return BaseURL + SearchPath
	}
	return fmt.Sprintf("%s%s?%s", BaseURL, SearchPath, q.Encode())
}

func buildParams(params *SearchParams) url.Values {
	q := url.Values{}
	if params == nil {
		return q
	}

	v := reflect.ValueOf(params).Elem()
	for _, field := range reflect.VisibleFields(v.Type()) {
		key := field.Tag.Get("zpparam")
		if key == "" {
			continue
		}

		var value string
		switch f := v.FieldByIndex(field.Index); f.Kind() {
		case reflect.String:
			value = strings.TrimSpace(f.String())
		case reflect.Int:
			if f.Int() != 0 {
				value = strconv.FormatInt(f.Int(), 10)
			}
		}

		if value != "" {
			q.Set(key, value)
		}
	}

	return q
}

// ExtractListing maps one search result card to a Listing. Missing fields
// stay empty.
func ExtractListing(card browser.Element) *Listing {
	id, _ := card.Attribute(AttributeJobID)

	listing := &Listing{
		ID:                strings.TrimSpace(id),
		Title:             clean(browser.TextOf(card, SelectorCardTitle)),
		Company:           clean(browser.TextOf(card, SelectorCardCompany)),
		Salary:            clean(browser.TextOf(card, SelectorCardSalary)),
		Description:       clean(browser.TextOf(card, SelectorCardDescription)),
		Recruiter:         clean(browser.TextOf(card, SelectorCardRecruiter)),
		RecruiterActivity: clean(browser.TextOf(card, SelectorCardRecruiterSeen)),
	}

	spans, err := card.QueryAll(SelectorCardInfo)
	if err == nil {
		info := make([]string, 0, 3)
		for _, span := range spans {
			text, err := span.Text()
			if err != nil {
				text = ""
			}
			info = append(info, clean(text))
		}
		if len(info) > 0 {
			listing.City = info[0]
		}
		if len(info) > 1 {
			listing.Experience = info[1]
		}
		if len(info) > 2 {
			listing.Education = info[2]
		}
	}

	return listing
}

// HasNextPage reports whether the pager offers another page.
func HasNextPage(surface browser.Surface) (browser.Element, bool) {
	next, err := surface.QueryOne(SelectorNextPage)
	if err != nil || next == nil {
		return nil, false
	}
	class, err := next.Attribute("class")
	if err != nil || strings.Contains(class, "disabled") {
		return nil, false
	}
	return next, true
}

func clean(s string) string {
	return strings.TrimSpace(s)
}
