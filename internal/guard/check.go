package guard

import (
	"sort"
	"strings"
)

// Finding is one rule violation located in the checked source.
type Finding struct {
	RuleID   string   `json:"rule_id"`
	Category string   `json:"category"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Line     int      `json:"line"`
	Excerpt  string   `json:"excerpt"`
}

// Verdict is the banded outcome of a check.
type Verdict string

// Check verdicts.
const (
	VerdictPass Verdict = "pass"
	VerdictWarn Verdict = "warn"
	VerdictFail Verdict = "fail"
)

// Score bands. A check passes at 85 and above, warns at 60 and above,
// and fails below that.
const (
	PassThreshold = 85
	WarnThreshold = 60
)

// Report is the result of checking one piece of source.
type Report struct {
	Filename string    `json:"filename,omitempty"`
	Score    int       `json:"score"`
	Verdict  Verdict   `json:"verdict"`
	Findings []Finding `json:"findings,omitempty"`
	RulesRun int       `json:"rules_run"`
}

// severityScores maps a violated rule to its residual dimension score.
// A clean rule scores 100; violations are graded by how bad they are.
var severityScores = map[Severity]int{
	SeverityError:   0,
	SeverityWarning: 50,
	SeverityInfo:    80,
}

// Check runs every loaded rule against source, line by line, and scores the
// result. Each rule is a weighted dimension: it contributes its full weight
// when clean and its severity's residual when violated, so one hardcoded
// secret hurts far more than a stray fmt.Println. Repeat violations of the
// same rule are all reported but only count against the score once.
func (c *Checker) Check(source, filename string) Report {
	c.mu.RLock()
	defer c.mu.RUnlock()

	lines := strings.Split(source, "\n")
	report := Report{Filename: filename, RulesRun: c.ruleCountLocked()}

	totalWeight := 0
	weightedSum := 0
	for _, pack := range c.packs {
		for _, rule := range pack.rules {
			violated := false
			for i, line := range lines {
				if !rule.re.MatchString(line) {
					continue
				}
				violated = true
				report.Findings = append(report.Findings, Finding{
					RuleID:   rule.ID,
					Category: rule.Category,
					Severity: rule.Severity,
					Message:  rule.Message,
					Line:     i + 1,
					Excerpt:  excerpt(line),
				})
			}

			totalWeight += rule.Weight
			score := 100
			if violated {
				score = severityScores[rule.Severity]
			}
			weightedSum += score * rule.Weight
		}
	}

	if totalWeight == 0 {
		report.Score = 100
	} else {
		report.Score = weightedSum / totalWeight
	}
	report.Verdict = verdictFor(report.Score)

	sort.SliceStable(report.Findings, func(i, j int) bool {
		if report.Findings[i].Line != report.Findings[j].Line {
			return report.Findings[i].Line < report.Findings[j].Line
		}
		return report.Findings[i].RuleID < report.Findings[j].RuleID
	})
	return report
}

func (c *Checker) ruleCountLocked() int {
	n := 0
	for _, p := range c.packs {
		n += len(p.rules)
	}
	return n
}

func verdictFor(score int) Verdict {
	switch {
	case score >= PassThreshold:
		return VerdictPass
	case score >= WarnThreshold:
		return VerdictWarn
	default:
		return VerdictFail
	}
}

// excerpt trims and caps the offending line for display.
func excerpt(line string) string {
	line = strings.TrimSpace(line)
	if len(line) > 120 {
		return line[:120] + "..."
	}
	return line
}
