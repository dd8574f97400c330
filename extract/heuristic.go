package extract

import (
	"regexp"
	"strings"
)

// Pattern-based extraction for when the model is unusable. It is crude by
// nature: it looks for labelled lines and common title and salary shapes.
var (
	titlePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?im)(?:job\s+title|position|role)\s*[:\-]\s*([^\n]{5,100})`),
		regexp.MustCompile(`(?m)^\s*([A-Z][^.\n]{3,80}(?i:engineer|developer|manager|analyst|specialist|coordinator|designer|scientist))\b`),
		regexp.MustCompile(`(?m)^\s*([A-Z][^.\n]{3,80}(?i:intern|associate|director|lead|consultant))\b`),
	}
	companyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?im)(?:company|employer|organization)\s*[:\-]\s*([^\n]{2,60})`),
		regexp.MustCompile(`(?m)\b(?:at|@)\s+([A-Z][A-Za-z0-9&.,' ]{1,40}?)(?:\s*[\n.,(|]|\s+(?:is|are|in|we)\b|$)`),
		regexp.MustCompile(`(?m)([A-Z][A-Za-z0-9&.' ]{1,40}?)\s+is\s+(?:hiring|looking|seeking)`),
	}
	salaryPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)[$€£]\s?[\d,.]+\s?[kK]?(?:\s*(?:-|–|to)\s*[$€£]?\s?[\d,.]+\s?[kK]?)?(?:\s*(?:per|/|a)\s*(?:year|hour|yr|hr|annum|month))?`),
		regexp.MustCompile(`(?i)\b[\d,]+\s?k?(?:\s*-\s*[\d,]+\s?k?)?\s*(?:per\s+year|annually|/\s?year|per\s+annum)`),
	}
	locationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?im)(?:location|based\s+in|located\s+in)\s*[:\-]?\s*([^\n]{3,60})`),
		regexp.MustCompile(`\b([A-Z][a-z]+(?:\s[A-Z][a-z]+)?,\s*[A-Z]{2})\b`),
	}
	jobTypePatterns = []struct {
		re    *regexp.Regexp
		label string
	}{
		{regexp.MustCompile(`(?i)\bfull[\s-]?time\b`), "full-time"},
		{regexp.MustCompile(`(?i)\bpart[\s-]?time\b`), "part-time"},
		{regexp.MustCompile(`(?i)\b(?:contract|contractor|freelance)\b`), "contract"},
		{regexp.MustCompile(`(?i)\b(?:internship|intern)\b`), "internship"},
	}
)

// Heuristic extracts fields from text with regular expressions.
// Fields it cannot find are Unknown (required) or empty (optional).
func Heuristic(text string, maxDescription int) *Result {
	res := &Result{
		Present: make(map[Field]bool, len(RequiredFields)+len(OptionalFields)),
		Outcome: OutcomeHeuristic,
	}

	setFound := func(f Field, v string) {
		v = strings.TrimSpace(whitespaceRun.ReplaceAllString(v, " "))
		v = strings.TrimRight(v, " ,.;:-|")
		if v != "" {
			res.Fields.set(f, v)
			res.Present[f] = true
		}
	}

	setFound(FieldTitle, firstGroup(titlePatterns, text))
	setFound(FieldCompany, firstGroup(companyPatterns, text))
	setFound(FieldLocation, firstGroup(locationPatterns, text))
	for _, re := range salaryPatterns {
		if m := re.FindString(text); m != "" {
			setFound(FieldSalary, m)
			break
		}
	}
	for _, jt := range jobTypePatterns {
		if jt.re.MatchString(text) {
			setFound(FieldJobType, jt.label)
			break
		}
	}

	// The opening of the posting stands in for a summary
	if summary := strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " ")); summary != "" {
		res.Fields.Description = capDescription(summary, maxDescription)
		res.Present[FieldDescription] = true
	}

	for _, f := range RequiredFields {
		if !res.Present[f] {
			res.Fields.set(f, Unknown)
		}
	}
	return res
}

func firstGroup(patterns []*regexp.Regexp, text string) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			if v := strings.TrimSpace(m[1]); v != "" {
				return v
			}
		}
	}
	return ""
}
