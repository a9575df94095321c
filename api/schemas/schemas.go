package schemas

import "time"

// Fallback literals installed on a Diagnosis whose fields the model left
// blank. A partially populated Diagnosis is valid at the parse boundary.
const (
	DefaultSummary      = "No summary provided"
	DefaultErrorType    = "UnknownError"
	DefaultErrorMessage = "Unknown error"
	DefaultTopFrame     = "Unknown frame"
	DefaultLineNumber   = "0"
)

// Diagnosis is the structured root-cause record derived from AI analysis of
// a stack trace. All fields are optional on the wire; call ApplyDefaults
// before handing the record downstream.
type Diagnosis struct {
	Summary      string   `json:"summary"`
	CrashReport  string   `json:"crashReport"`
	ErrorType    string   `json:"errorType"`
	ErrorMessage string   `json:"errorMessage"`
	Files        []string `json:"files"`
	TopFrame     string   `json:"topFrame"`
	LineNumber   string   `json:"lineNumber"`
}

// ApplyDefaults fills absent fields with their fallback literals and
// normalizes a nil file list to an empty one.
func (d *Diagnosis) ApplyDefaults() {
	if d.Summary == "" {
		d.Summary = DefaultSummary
	}
	if d.ErrorType == "" {
		d.ErrorType = DefaultErrorType
	}
	if d.ErrorMessage == "" {
		d.ErrorMessage = DefaultErrorMessage
	}
	if d.TopFrame == "" {
		d.TopFrame = DefaultTopFrame
	}
	if d.LineNumber == "" {
		d.LineNumber = DefaultLineNumber
	}
	if d.Files == nil {
		d.Files = []string{}
	}
}

// RepoRef identifies a hosted repository.
type RepoRef struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
}

func (r RepoRef) String() string {
	return r.Owner + "/" + r.Repo
}

// CommitRecord describes one commit touching one file. Diff is nil when the
// commit appears in the file's history but its changed-file list does not
// contain the literal path (renames).
type CommitRecord struct {
	SHA       string    `json:"sha"`
	ShortSHA  string    `json:"shortSha"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	Email     string    `json:"email"`
	Date      time.Time `json:"date"`
	URL       string    `json:"url"`
	Diff      *string   `json:"diff"`
	Additions int       `json:"additions"`
	Deletions int       `json:"deletions"`
	Status    string    `json:"status"`
}

// CommitFileChange is the per-file entry of a commit's change set.
type CommitFileChange struct {
	Filename  string  `json:"filename"`
	Status    string  `json:"status"`
	Additions int     `json:"additions"`
	Deletions int     `json:"deletions"`
	Changes   int     `json:"changes"`
	Patch     *string `json:"patch"`
}

// CommitDetails is a single commit with its full file-level change set.
type CommitDetails struct {
	SHA      string             `json:"sha"`
	ShortSHA string             `json:"shortSha"`
	Message  string             `json:"message"`
	Author   string             `json:"author"`
	Email    string             `json:"email"`
	Date     time.Time          `json:"date"`
	URL      string             `json:"url"`
	Files    []CommitFileChange `json:"filesChanged"`
}

// AuthorCommit is a compact commit reference kept per ranked author.
type AuthorCommit struct {
	SHA     string    `json:"sha"`
	Message string    `json:"message"`
	Date    time.Time `json:"date"`
}

// AuthorStat aggregates one author's recent activity on the primary file.
type AuthorStat struct {
	Author      string         `json:"author"`
	Email       string         `json:"email"`
	CommitCount int            `json:"commitCount"`
	Commits     []AuthorCommit `json:"commits"`
}

// OwnerRanking ranks the likely owners of the primary file. TopAuthors is
// ordered by commit count descending; ties keep first-encountered order.
type OwnerRanking struct {
	TotalCommitsAnalyzed int          `json:"totalCommitsAnalyzed"`
	TopAuthors           []AuthorStat `json:"topAuthors"`
}

// FileCommits pairs a normalized file path with its recent commits.
type FileCommits struct {
	Path    string         `json:"path"`
	Commits []CommitRecord `json:"commits"`
}

// Attribution is the resolver output: per-file commit history in input
// order, plus the owner ranking for the primary file (nil when the
// diagnosis named no files or the ranking lookup failed).
type Attribution struct {
	Files         []FileCommits `json:"files"`
	PrimaryOwners *OwnerRanking `json:"primaryOwners,omitempty"`
}

// CommitsFor returns the commit list recorded for path, or nil.
func (a *Attribution) CommitsFor(path string) []CommitRecord {
	for i := range a.Files {
		if a.Files[i].Path == path {
			return a.Files[i].Commits
		}
	}
	return nil
}

// AuditRow is the flattened CSV projection of one processed incident.
type AuditRow struct {
	IncidentID   string
	Timestamp    string
	Repo         string
	File         string
	Line         string
	ErrorName    string
	ErrorMessage string
	TopFrame     string
	OwnersTop3   string
	CommitList   string
	SlackText    string
}

// Fields returns the row values in audit-store column order.
func (r AuditRow) Fields() []string {
	return []string{
		r.IncidentID, r.Timestamp, r.Repo, r.File, r.Line,
		r.ErrorName, r.ErrorMessage, r.TopFrame,
		r.OwnersTop3, r.CommitList, r.SlackText,
	}
}

// ModelTier selects a model by a speed/capability preference.
type ModelTier string

const (
	TierFast     ModelTier = "fast"
	TierPowerful ModelTier = "powerful"
)

// GenerationOptions controls the text generation process.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`
	ForceJSONFormat bool    `json:"force_json_format"`
	TopP            float64 `json:"top_p"`
	TopK            int     `json:"top_k"`
}

// GenerationRequest encapsulates a complete request to the LLM.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Tier         ModelTier         `json:"tier"`
	Options      GenerationOptions `json:"options"`
}
