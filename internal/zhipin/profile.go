package zhipin

import "strings"

// educationRanks orders the education categories the site uses.
var educationRanks = map[string]int{
	"中专": 1,
	"高中": 2,
	"大专": 3,
	"本科": 4,
	"硕士": 5,
	"博士": 6,
}

// EducationRank returns the rank of an education category, or 0 when the
// text is not one of the known categories.
func EducationRank(education string) int {
	return educationRanks[strings.TrimSpace(education)]
}

// Profile is the candidate summary listings are scored against.
type Profile struct {
	Name             string   `mapstructure:"name" json:"name"`
	Skills           []string `mapstructure:"skills" json:"skills"`
	ExperienceYears  int      `mapstructure:"experience-years" json:"experience_years"`
	Education        string   `mapstructure:"education" json:"education"`
	ExpectedPosition string   `mapstructure:"expected-position" json:"expected_position"`
	ExpectedCity     string   `mapstructure:"expected-city" json:"expected_city"`
}

// DisplayName falls back to a generic greeting name.
func (p *Profile) DisplayName() string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	return "求职者"
}

// TopSkills returns at most n non-blank skills in profile order.
func (p *Profile) TopSkills(n int) []string {
	out := make([]string, 0, n)
	for _, skill := range p.Skills {
		if len(out) == n {
			break
		}
		if s := strings.TrimSpace(skill); s != "" {
			out = append(out, s)
		}
	}
	return out
}
