package extract

// Unknown marks a required field the extraction could not determine
const Unknown = "unknown"

// Outcome records which step of the parse chain produced a Result
type Outcome string

const (
	OutcomeStrict    Outcome = "strict"    // whole response was a JSON object
	OutcomeRepaired  Outcome = "repaired"  // JSON object recovered from fences, prose or trailing commas
	OutcomePartial   Outcome = "partial"   // parsed, but a required field was substituted with Unknown
	OutcomeFailed    Outcome = "failed"    // no JSON object recoverable
	OutcomeHeuristic Outcome = "heuristic" // model output unusable; pattern-based extraction used
)

// Field names a key of the model's JSON object
type Field string

const (
	FieldTitle        Field = "title"
	FieldCompany      Field = "company"
	FieldDescription  Field = "description"
	FieldSalary       Field = "salary"
	FieldLocation     Field = "location"
	FieldJobType      Field = "job_type"
	FieldRequirements Field = "requirements"
)

// RequiredFields become Unknown when absent; OptionalFields become empty
var (
	RequiredFields = []Field{FieldTitle, FieldCompany, FieldDescription, FieldSalary}
	OptionalFields = []Field{FieldLocation, FieldJobType, FieldRequirements}
)

// Fields are the extracted values. Required fields are never empty.
type Fields struct {
	Title        string `json:"title"`
	Company      string `json:"company"`
	Description  string `json:"description"`
	Salary       string `json:"salary"`
	Location     string `json:"location,omitempty"`
	JobType      string `json:"job_type,omitempty"`
	Requirements string `json:"requirements,omitempty"`
}

// Get returns the value of f
func (fs *Fields) Get(f Field) string {
	switch f {
	case FieldTitle:
		return fs.Title
	case FieldCompany:
		return fs.Company
	case FieldDescription:
		return fs.Description
	case FieldSalary:
		return fs.Salary
	case FieldLocation:
		return fs.Location
	case FieldJobType:
		return fs.JobType
	case FieldRequirements:
		return fs.Requirements
	}
	return ""
}

func (fs *Fields) set(f Field, v string) {
	switch f {
	case FieldTitle:
		fs.Title = v
	case FieldCompany:
		fs.Company = v
	case FieldDescription:
		fs.Description = v
	case FieldSalary:
		fs.Salary = v
	case FieldLocation:
		fs.Location = v
	case FieldJobType:
		fs.JobType = v
	case FieldRequirements:
		fs.Requirements = v
	}
}

// Result is the tagged outcome of one extraction
type Result struct {
	Fields  Fields
	Present map[Field]bool // true when the model supplied a usable string
	Outcome Outcome
	Model   string
}

// Missing lists the required fields that were substituted with Unknown
func (r *Result) Missing() []Field {
	var missing []Field
	for _, f := range RequiredFields {
		if !r.Present[f] {
			missing = append(missing, f)
		}
	}
	return missing
}
