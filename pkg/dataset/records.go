package dataset

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// NormalizeSHA lower-cases and trims a commit hash.
func NormalizeSHA(sha string) string {
	return strings.ToLower(strings.TrimSpace(sha))
}

// SplitFullName splits "owner/repo". Names without a slash are returned as
// both owner and repo.
func SplitFullName(fullName string) (string, string) {
	owner, repo, ok := strings.Cut(fullName, "/")
	if !ok {
		return fullName, fullName
	}

	return owner, repo
}

// RepoDirName is the local clone directory name for a repository: the last
// segment of its full name.
func RepoDirName(fullName string) string {
	fullName = strings.TrimRight(fullName, "/")
	if i := strings.LastIndex(fullName, "/"); i >= 0 {
		return fullName[i+1:]
	}

	return fullName
}

// CommitRecord is one commit with its PR context and refactoring aggregates.
type CommitRecord struct {
	SHA              string   `json:"sha"               parquet:"sha"`
	PRID             string   `json:"pr_id"             parquet:"pr_id"`
	Number           int64    `json:"number"            parquet:"number"`
	RepoURL          string   `json:"repo_url"          parquet:"repo_url"`
	FullName         string   `json:"full_name"         parquet:"full_name"`
	Language         string   `json:"language"          parquet:"language"`
	Agent            string   `json:"agent"             parquet:"agent"`
	Owner            string   `json:"owner"             parquet:"owner"`
	Repo             string   `json:"repo"              parquet:"repo"`
	Dataset          string   `json:"dataset"           parquet:"dataset"`
	HasRefactoring   bool     `json:"has_refactoring"   parquet:"has_refactoring"`
	RefactoringCount int      `json:"refactoring_count" parquet:"refactoring_count"`
	UniqueTypes      []string `json:"unique_types"      parquet:"unique_types,list"`
}

// Header returns the CSV column order.
func (CommitRecord) Header() []string {
	return []string{
		FieldSHA, FieldPRID, FieldNumber, FieldRepoURL, FieldFullName, FieldLanguage, FieldAgent,
		FieldOwner, FieldRepo, FieldDataset, FieldHasRefactoring, FieldRefactoringCount, FieldUniqueTypes,
	}
}

// Fields returns the CSV cells in Header order.
func (c CommitRecord) Fields() []string {
	number := ""
	if c.Number != 0 {
		number = strconv.FormatInt(c.Number, 10)
	}

	return []string{
		c.SHA, c.PRID, number, c.RepoURL, c.FullName, c.Language, c.Agent,
		c.Owner, c.Repo, c.Dataset, strconv.FormatBool(c.HasRefactoring),
		strconv.Itoa(c.RefactoringCount), jsonCell(c.UniqueTypes),
	}
}

// DedupKey returns the identity used to collapse duplicate commit rows.
func (c CommitRecord) DedupKey(withRepo bool) string {
	if withRepo {
		return c.SHA + "\x00" + c.Agent + "\x00" + c.FullName
	}

	return c.SHA + "\x00" + c.Agent
}

// Location is one side of a refactoring's code range.
type Location struct {
	FilePath    string `json:"filePath"    parquet:"file_path"`
	StartLine   int    `json:"startLine"   parquet:"start_line"`
	EndLine     int    `json:"endLine"     parquet:"end_line"`
	CodeElement string `json:"codeElement" parquet:"code_element"`
	Description string `json:"description" parquet:"description"`
}

// Event is one detected refactoring, optionally joined with the PR context of
// its commit.
type Event struct {
	SHA             string     `json:"sha"               parquet:"sha"`
	DetectorRepoURL string     `json:"repo_url_rm"       parquet:"repo_url_rm"`
	DetectorRepo    string     `json:"repo_full_name_rm" parquet:"repo_full_name_rm"`
	CommitURL       string     `json:"commit_url"        parquet:"commit_url"`
	Type            string     `json:"refactoring_type"  parquet:"refactoring_type"`
	Description     string     `json:"description"       parquet:"description"`
	LeftLocations   []Location `json:"left_locations"    parquet:"left_locations,list"`
	RightLocations  []Location `json:"right_locations"   parquet:"right_locations,list"`
	LeftElements    []string   `json:"left_elements"     parquet:"left_elements,list"`
	RightElements   []string   `json:"right_elements"    parquet:"right_elements,list"`
	PRID            string     `json:"pr_id"             parquet:"pr_id"`
	Number          int64      `json:"number"            parquet:"number"`
	FullName        string     `json:"full_name"         parquet:"full_name"`
	Owner           string     `json:"owner"             parquet:"owner"`
	Repo            string     `json:"repo"              parquet:"repo"`
	Agent           string     `json:"agent"             parquet:"agent"`
	Dataset         string     `json:"dataset"           parquet:"dataset"`
}

// Header returns the CSV column order.
func (Event) Header() []string {
	return []string{
		FieldSHA, "repo_url_rm", "repo_full_name_rm", "commit_url", FieldRefactoringType, "description",
		"left_locations", "right_locations", "left_elements", "right_elements",
		FieldPRID, FieldNumber, FieldFullName, FieldOwner, FieldRepo, FieldAgent, FieldDataset,
	}
}

// Fields returns the CSV cells in Header order.
func (e Event) Fields() []string {
	number := ""
	if e.Number != 0 {
		number = strconv.FormatInt(e.Number, 10)
	}

	return []string{
		e.SHA, e.DetectorRepoURL, e.DetectorRepo, e.CommitURL, e.Type, e.Description,
		jsonCell(e.LeftLocations), jsonCell(e.RightLocations), jsonCell(e.LeftElements), jsonCell(e.RightElements),
		e.PRID, number, e.FullName, e.Owner, e.Repo, e.Agent, e.Dataset,
	}
}

// DeltaRecord is the smell measurement of one commit.
type DeltaRecord struct {
	Dataset      string  `json:"dataset"       parquet:"dataset"`
	Agent        string  `json:"agent"         parquet:"agent"`
	Repo         string  `json:"repo"          parquet:"repo"`
	Commit       string  `json:"commit"        parquet:"commit"`
	SmellsBefore int     `json:"smells_before" parquet:"smells_before"`
	SmellsAfter  int     `json:"smells_after"  parquet:"smells_after"`
	Delta        int     `json:"delta"         parquet:"delta"`
	RuntimeSec   float64 `json:"runtime_sec"   parquet:"runtime_sec"`
}

// NewDeltaRecord computes the delta and rounds the runtime to two decimals.
func NewDeltaRecord(dataset, agent, repo, commit string, before, after int, runtimeSec float64) DeltaRecord {
	return DeltaRecord{
		Dataset:      dataset,
		Agent:        agent,
		Repo:         repo,
		Commit:       commit,
		SmellsBefore: before,
		SmellsAfter:  after,
		Delta:        after - before,
		RuntimeSec:   Round(runtimeSec, 2),
	}
}

// Header returns the CSV column order.
func (DeltaRecord) Header() []string {
	return []string{FieldDataset, FieldAgent, FieldRepo, "commit", FieldSmellsBefore, FieldSmellsAfter, FieldDelta, FieldRuntimeSec}
}

// Fields returns the CSV cells in Header order.
func (d DeltaRecord) Fields() []string {
	return []string{
		d.Dataset, d.Agent, d.Repo, d.Commit,
		strconv.Itoa(d.SmellsBefore), strconv.Itoa(d.SmellsAfter), strconv.Itoa(d.Delta),
		strconv.FormatFloat(d.RuntimeSec, 'f', -1, 64),
	}
}

// Round rounds f half away from zero to the given number of decimals.
func Round(f float64, decimals int) float64 {
	pow := math.Pow10(decimals)

	return math.Round(f*pow) / pow
}

func jsonCell(v any) string {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return "[]"
	}

	return string(b)
}

// DecodeCommits maps table rows onto commit records using schema. Missing
// aggregate columns default to false, 0 and an empty type list.
func DecodeCommits(t *Table, schema Schema) ([]CommitRecord, error) {
	b, err := schema.Bind(t.Columns)
	if err != nil {
		return nil, err
	}

	out := make([]CommitRecord, 0, len(t.Rows))

	for _, row := range t.Rows {
		rec := CommitRecord{
			SHA:         NormalizeSHA(b.String(row, FieldSHA)),
			PRID:        b.String(row, FieldPRID),
			RepoURL:     b.String(row, FieldRepoURL),
			FullName:    b.String(row, FieldFullName),
			Language:    b.String(row, FieldLanguage),
			Agent:       b.String(row, FieldAgent),
			Owner:       b.String(row, FieldOwner),
			Repo:        b.String(row, FieldRepo),
			Dataset:     b.String(row, FieldDataset),
			UniqueTypes: AsStringList(b.Get(row, FieldUniqueTypes)),
		}

		if n, ok := AsInt(b.Get(row, FieldNumber)); ok {
			rec.Number = n
		}

		if n, ok := AsInt(b.Get(row, FieldRefactoringCount)); ok {
			rec.RefactoringCount = int(n)
		}

		rec.HasRefactoring = AsBool(b.Get(row, FieldHasRefactoring))

		if rec.Owner == "" && rec.Repo == "" && strings.Contains(rec.FullName, "/") {
			rec.Owner, rec.Repo = SplitFullName(rec.FullName)
		}

		out = append(out, rec)
	}

	return out, nil
}

// DecodeEvents maps table rows onto events (type, commit and context only).
func DecodeEvents(t *Table) ([]Event, error) {
	b, err := EventSchema.Bind(t.Columns)
	if err != nil {
		return nil, err
	}

	out := make([]Event, 0, len(t.Rows))

	for _, row := range t.Rows {
		out = append(out, Event{
			SHA:      NormalizeSHA(b.String(row, FieldSHA)),
			Type:     b.String(row, FieldRefactoringType),
			Agent:    b.String(row, FieldAgent),
			FullName: b.String(row, FieldFullName),
			Dataset:  b.String(row, FieldDataset),
		})
	}

	return out, nil
}

// DecodeDeltas maps table rows onto delta records. A missing delta column is
// recomputed from the counts.
func DecodeDeltas(t *Table) ([]DeltaRecord, error) {
	b, err := DeltaSchema.Bind(t.Columns)
	if err != nil {
		return nil, err
	}

	out := make([]DeltaRecord, 0, len(t.Rows))

	for _, row := range t.Rows {
		before, _ := AsInt(b.Get(row, FieldSmellsBefore))
		after, _ := AsInt(b.Get(row, FieldSmellsAfter))
		runtime, _ := AsFloat(b.Get(row, FieldRuntimeSec))

		rec := DeltaRecord{
			Dataset:      b.String(row, FieldDataset),
			Agent:        b.String(row, FieldAgent),
			Repo:         b.String(row, FieldRepo),
			Commit:       NormalizeSHA(b.String(row, "commit")),
			SmellsBefore: int(before),
			SmellsAfter:  int(after),
			Delta:        int(after - before),
			RuntimeSec:   runtime,
		}

		if d, ok := AsInt(b.Get(row, FieldDelta)); ok {
			rec.Delta = int(d)
		}

		out = append(out, rec)
	}

	return out, nil
}
