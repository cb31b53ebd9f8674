// Package matching ranks listings against a candidate profile.
package matching

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/spigell/zhipin-responder/internal/zhipin"
)

const (
	MinScore = 0
	MaxScore = 100

	directHitPoints    = 15
	perSkillPoints     = 5
	manySkillsBonus    = 10
	manySkillsAt       = 3
	categoryPoints     = 5
	cityPoints         = 10
	urgentPoints       = 5
	interviewPoints    = 5
	educationMetPoints = 15
	educationMissed    = -10
)

type category struct {
	name     string
	keywords []string
}

// categories is a slice so scoring walks it in a fixed order.
var categories = []category{
	{name: "python", keywords: []string{"python", "django", "flask", "fastapi", "tornado"}},
	{name: "java", keywords: []string{"java", "spring", "springboot", "mybatis"}},
	{name: "前端", keywords: []string{"vue", "react", "angular", "javascript", "typescript", "html", "css", "前端"}},
	{name: "后端", keywords: []string{"后端", "api", "rest", "grpc", "微服务"}},
	{name: "数据库", keywords: []string{"mysql", "redis", "mongodb", "postgresql", "sql", "数据库"}},
	{name: "算法", keywords: []string{"算法", "机器学习", "深度学习", "ai", "人工智能", "nlp", "cv"}},
	{name: "全栈", keywords: []string{"全栈", "fullstack", "前端", "后端"}},
	{name: "测试", keywords: []string{"测试", "自动化", "selenium", "unittest", "pytest"}},
	{name: "运维", keywords: []string{"运维", "docker", "kubernetes", "k8s", "linux", "devops"}},
}

var (
	urgentMarkers   = []string{"急招", "急聘"}
	interviewMarker = "面试"
	firstNumber     = regexp.MustCompile(`\d+`)
)

// Score rates how well listing fits profile, in [0, 100]. extra is optional
// description text fetched from the detail page. Score has no side effects;
// callers assign the result to Listing.Score themselves.
func Score(listing *zhipin.Listing, profile *zhipin.Profile, extra string) int {
	if listing == nil || profile == nil {
		return MinScore
	}

	combined := strings.ToLower(listing.Title + " " + listing.Description + " " + extra)

	skills := make([]string, 0, len(profile.Skills))
	for _, skill := range profile.Skills {
		if s := strings.ToLower(strings.TrimSpace(skill)); s != "" {
			skills = append(skills, s)
		}
	}

	score := skillPoints(combined, skills)
	score += categoryBonus(combined, skills)
	score += experiencePoints(listing.Experience, profile.ExperienceYears)
	score += educationPoints(listing.Education, profile.Education)

	if city := strings.TrimSpace(profile.ExpectedCity); city != "" && strings.Contains(listing.City, city) {
		score += cityPoints
	}

	for _, marker := range urgentMarkers {
		if strings.Contains(listing.Title, marker) {
			score += urgentPoints
			break
		}
	}

	if strings.Contains(listing.Description, interviewMarker) || strings.Contains(extra, interviewMarker) {
		score += interviewPoints
	}

	return clamp(score)
}

func skillPoints(text string, skills []string) int {
	matched := 0
	for _, skill := range skills {
		if strings.Contains(text, skill) {
			matched++
		}
	}

	points := matched * (directHitPoints + perSkillPoints)
	if matched >= manySkillsAt {
		points += manySkillsBonus
	}
	return points
}

// categoryBonus awards points per profile skill that belongs to a category
// the listing text mentions.
func categoryBonus(text string, skills []string) int {
	points := 0
	for _, c := range categories {
		if !containsAny(text, c.keywords) {
			continue
		}
		for _, skill := range skills {
			if containsAny(skill, c.keywords) {
				points += categoryPoints
			}
		}
	}
	return points
}

func experiencePoints(required string, years int) int {
	if years <= 0 {
		return 0
	}

	digits := firstNumber.FindString(required)
	if digits == "" {
		return 0
	}
	want, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}

	diff := want - years
	if diff < 0 {
		diff = -diff
	}

	switch {
	case diff == 0:
		return 20
	case diff <= 1:
		return 15
	case diff <= 2:
		return 10
	case diff <= 3:
		return 5
	default:
		return 0
	}
}

func educationPoints(required, have string) int {
	want := zhipin.EducationRank(required)
	got := zhipin.EducationRank(have)
	if want == 0 || got == 0 {
		return 0
	}
	if want <= got {
		return educationMetPoints
	}
	return educationMissed
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func clamp(score int) int {
	return max(MinScore, min(score, MaxScore))
}
