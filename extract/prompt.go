package extract

import (
	"strconv"
	"strings"

	"github.com/teranos/jobtrail/internal/util"
)

// systemPrompt fixes the output contract. It never varies between calls.
const systemPrompt = `You extract structured data from job postings.
Respond with ONLY a JSON object. No prose, no markdown, no code fences.
Every value must be a string. Use "unknown" when the posting does not state a value.`

// userPromptTemplate is filled by BuildPrompt; %CONTENT% is replaced verbatim
const userPromptTemplate = `Extract the job information from the posting below.
Return ONLY a valid JSON object with exactly these keys:
{
  "title": "job title",
  "company": "company name",
  "description": "brief summary of the role, at most %MAXDESC% characters",
  "salary": "salary or salary range as written, or unknown",
  "location": "location or remote policy, or unknown",
  "job_type": "full-time, part-time, contract or internship, or unknown",
  "requirements": "key requirements in one line, or unknown"
}

Posting:
%CONTENT%`

// BuildPrompt returns the system and user prompts for text.
// The text is truncated to maxChars runes; the output depends only on its inputs.
func BuildPrompt(text string, maxChars, maxDescription int) (system, user string) {
	content := util.TruncateRunes(strings.TrimSpace(text), maxChars)
	user = strings.NewReplacer(
		"%MAXDESC%", strconv.Itoa(maxDescription),
		"%CONTENT%", content,
	).Replace(userPromptTemplate)
	return systemPrompt, user
}
