// Package zhipin holds what the tool knows about the BOSS Zhipin web site:
// its URLs, its selectors and the records scraped from it.
package zhipin

import "fmt"

const (
	BaseURL    = "https://www.zhipin.com"
	HomeURL    = BaseURL + "/"
	SearchPath = "/web/geek/job"
	Host       = "zhipin.com"
)

// Listing card selectors on the search page.
const (
	SelectorCard              = ".job-card-wrapper"
	SelectorCardTitle         = ".job-title"
	SelectorCardCompany       = ".company-name"
	SelectorCardSalary        = ".salary"
	SelectorCardInfo          = ".info-primary span"
	SelectorCardDescription   = ".job-desc"
	SelectorCardRecruiter     = ".hr-name"
	SelectorCardRecruiterSeen = ".hr-active-status"
	SelectorNextPage          = ".ui-pager-next"

	AttributeJobID = "data-jobid"
)

// Detail page selectors.
const (
	SelectorDetailDescription = ".job-detail .job-desc"
	SelectorDetailRequirement = ".job-detail .requirement-item"
)

// Login and account selectors.
const (
	SelectorLoginEntry    = ".btn-start"
	SelectorPhoneInput    = ".ipt-phone"
	SelectorPasswordInput = ".ipt-pwd"
	SelectorLoginSubmit   = ".btn-login"
)

// LoggedInSelectors mark a page rendered for a signed-in user.
var LoggedInSelectors = []string{".user-avatar", ".header-avatar img", ".nav-user"}

// Outreach selectors on the detail page.
const (
	SelectorStartChat = ".btn-startchat"
	SelectorMessage   = ".msg-textarea"
	SelectorSend      = ".btn-send"
)

// DetailURL returns the listing page for id.
func DetailURL(id string) string {
	return fmt.Sprintf("%s/job_detail/%s.html", BaseURL, id)
}
