package responder

import (
	"strconv"
	"strings"

	"github.com/spigell/zhipin-responder/internal/zhipin"
)

const defaultSkills = 5

// DefaultTemplate is the greeting sent when neither a template nor an AI
// drafted message is available.
const DefaultTemplate = "您好！我是{name}，我对您发布的{title}岗位很感兴趣。我的技能包括{skills}，有{years}年工作经验。期待与您进一步沟通！"

// RenderMessage fills the {name}, {title}, {company}, {recruiter}, {skills}
// and {years} placeholders. An empty template renders DefaultTemplate.
func RenderMessage(template string, listing *zhipin.Listing, profile *zhipin.Profile) string {
	if strings.TrimSpace(template) == "" {
		template = DefaultTemplate
	}
	if listing == nil {
		listing = &zhipin.Listing{}
	}
	if profile == nil {
		profile = &zhipin.Profile{}
	}

	r := strings.NewReplacer(
		"{name}", profile.DisplayName(),
		"{title}", listing.Title,
		"{company}", listing.Company,
		"{recruiter}", listing.Recruiter,
		"{skills}", strings.Join(profile.TopSkills(defaultSkills), ", "),
		"{years}", strconv.Itoa(profile.ExperienceYears),
	)
	return r.Replace(template)
}

// messageFor prefers the AI drafted message, then the rendered template.
func messageFor(listing *zhipin.Listing, profile *zhipin.Profile, template string) string {
	if listing.AI != nil && listing.AI.Error == "" && strings.TrimSpace(listing.AI.Message) != "" {
		return strings.TrimSpace(listing.AI.Message)
	}
	return RenderMessage(template, listing, profile)
}
