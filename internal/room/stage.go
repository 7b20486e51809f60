package room

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lockstep/escaperoom/internal/platform"
)

// Stage is one riddle in the ordered sequence. Channel, InteractionID and
// GateRole are empty until setup has materialized channels on the platform.
type Stage struct {
	Content       string             `json:"content" yaml:"content"`
	Parts         []StagePart        `json:"parts" yaml:"parts"`
	Channel       platform.ChannelID `json:"channel,omitempty" yaml:"channel,omitempty"`
	InteractionID string             `json:"interaction_id,omitempty" yaml:"interaction_id,omitempty"`
	// GateRole marks completion of this stage; empty for the first stage.
	GateRole platform.RoleID `json:"gate_role,omitempty" yaml:"gate_role,omitempty"`
}

// StagePart is a sub-question with its own accepted answers.
type StagePart struct {
	Content      string    `json:"content" yaml:"content"`
	Answers      []string  `json:"answers" yaml:"answers"`
	RegexAnswers []Pattern `json:"regex_answers,omitempty" yaml:"regex_answers,omitempty"`
}

// Pattern is a compiled regular expression that serializes as its source
// text, so stage documents stay hand-editable.
type Pattern struct {
	re *regexp.Regexp
}

func MustPattern(expr string) Pattern {
	return Pattern{re: regexp.MustCompile(expr)}
}

func (p Pattern) MatchString(s string) bool {
	return p.re != nil && p.re.MatchString(s)
}

func (p Pattern) String() string {
	if p.re == nil {
		return ""
	}
	return p.re.String()
}

func (p Pattern) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Pattern) UnmarshalText(text []byte) error {
	re, err := regexp.Compile(string(text))
	if err != nil {
		return err
	}
	p.re = re
	return nil
}

// yaml.v3 ignores encoding.TextUnmarshaler, so the YAML form is wired up
// explicitly.
func (p Pattern) MarshalYAML() (any, error) {
	return p.String(), nil
}

func (p *Pattern) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return p.UnmarshalText([]byte(s))
}

// Matches reports whether inputs answer every part of the stage. Literal
// answers are tried for all parts first; only if that pass fails is a full
// regex pass attempted. The two passes are never mixed: a part may not pass
// literally while a sibling passes via regex in the same evaluation.
func (s *Stage) Matches(inputs []string) bool {
	if len(inputs) != len(s.Parts) || len(s.Parts) == 0 {
		return false
	}

	literal := true
	for i, part := range s.Parts {
		if !matchesLiteral(part, inputs[i]) {
			literal = false
			break
		}
	}
	if literal {
		return true
	}

	for i, part := range s.Parts {
		if !matchesRegex(part, inputs[i]) {
			return false
		}
	}
	return true
}

func matchesLiteral(part StagePart, input string) bool {
	for _, a := range part.Answers {
		if strings.EqualFold(a, input) {
			return true
		}
	}
	return false
}

func matchesRegex(part StagePart, input string) bool {
	for _, p := range part.RegexAnswers {
		if p.MatchString(input) {
			return true
		}
	}
	return false
}
