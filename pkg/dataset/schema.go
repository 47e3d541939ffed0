package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingColumn is returned when a required field has no matching column.
var ErrMissingColumn = errors.New("missing required column")

// Canonical field names.
const (
	FieldSHA              = "sha"
	FieldPRID             = "pr_id"
	FieldNumber           = "number"
	FieldRepoURL          = "repo_url"
	FieldFullName         = "full_name"
	FieldLanguage         = "language"
	FieldAgent            = "agent"
	FieldOwner            = "owner"
	FieldRepo             = "repo"
	FieldDataset          = "dataset"
	FieldHasRefactoring   = "has_refactoring"
	FieldRefactoringCount = "refactoring_count"
	FieldUniqueTypes      = "unique_types"
	FieldRefactoringType  = "refactoring_type"
	FieldID               = "id"
	FieldRepoID           = "repo_id"
	FieldSmellsBefore     = "smells_before"
	FieldSmellsAfter      = "smells_after"
	FieldDelta            = "delta"
	FieldRuntimeSec       = "runtime_sec"
)

// Field maps one canonical field to the column names different sources use
// for it. Aliases are tried in order; matching ignores case.
type Field struct {
	Name     string
	Aliases  []string
	Required bool
}

// Schema is the column mapping table for one kind of input.
type Schema struct {
	Name   string
	Fields []Field
}

// Binding is a Schema resolved against a concrete table header.
type Binding struct {
	schema  string
	columns map[string]string
}

// Bind resolves every field to a column of the header. A required field with
// no matching column yields ErrMissingColumn.
func (s Schema) Bind(header []string) (Binding, error) {
	lookup := make(map[string]string, len(header))
	for _, col := range header {
		key := strings.ToLower(strings.TrimSpace(col))
		if _, seen := lookup[key]; !seen {
			lookup[key] = col
		}
	}

	b := Binding{schema: s.Name, columns: make(map[string]string, len(s.Fields))}

	var missing []string

	for _, field := range s.Fields {
		candidates := append([]string{field.Name}, field.Aliases...)

		for _, alias := range candidates {
			if col, ok := lookup[strings.ToLower(alias)]; ok {
				b.columns[field.Name] = col

				break
			}
		}

		if _, ok := b.columns[field.Name]; !ok && field.Required {
			missing = append(missing, field.Name)
		}
	}

	if len(missing) > 0 {
		return Binding{}, fmt.Errorf("%w: %s needs %s", ErrMissingColumn, s.Name, strings.Join(missing, ", "))
	}

	return b, nil
}

// Has reports whether field resolved to a column.
func (b Binding) Has(field string) bool {
	_, ok := b.columns[field]

	return ok
}

// Column returns the source column bound to field.
func (b Binding) Column(field string) string {
	return b.columns[field]
}

// Get returns the row's value for field, or nil when unbound.
func (b Binding) Get(row Row, field string) any {
	col, ok := b.columns[field]
	if !ok {
		return nil
	}

	return row[col]
}

// String is shorthand for AsString(b.Get(row, field)).
func (b Binding) String(row Row, field string) string {
	return AsString(b.Get(row, field))
}

var (
	shaField      = Field{Name: FieldSHA, Aliases: []string{"commit", "commit_sha", "sha1", "hash", "commit_hash"}, Required: true}
	prIDField     = Field{Name: FieldPRID, Aliases: []string{"pull_request_id", "pr"}}
	numberField   = Field{Name: FieldNumber, Aliases: []string{"pr_number"}}
	repoURLField  = Field{Name: FieldRepoURL, Aliases: []string{"repository_url", "url", "html_url"}}
	fullNameField = Field{Name: FieldFullName, Aliases: []string{"repo_full_name", "repository", "repo_full_name_rm"}}
	languageField = Field{Name: FieldLanguage, Aliases: []string{"lang"}}
	agentField    = Field{Name: FieldAgent, Aliases: []string{"agent_name", "author_type"}}
)

// CommitMetadataSchema maps PR commit metadata tables.
var CommitMetadataSchema = Schema{
	Name: "commit metadata",
	Fields: []Field{
		shaField, prIDField, numberField, repoURLField, fullNameField, languageField, agentField,
	},
}

// ReconciledCommitSchema maps reconciled per-commit tables.
var ReconciledCommitSchema = Schema{
	Name: "reconciled commits",
	Fields: []Field{
		shaField, prIDField, numberField, repoURLField, fullNameField, languageField, agentField,
		{Name: FieldOwner},
		{Name: FieldRepo, Aliases: []string{"repo_name"}},
		{Name: FieldDataset},
		{Name: FieldHasRefactoring, Aliases: []string{"has_refactorings"}},
		{Name: FieldRefactoringCount, Aliases: []string{"refactorings", "num_refactorings"}},
		{Name: FieldUniqueTypes, Aliases: []string{"types", "refactoring_types"}},
	},
}

// EventSchema maps flattened refactoring event tables.
var EventSchema = Schema{
	Name: "refactoring events",
	Fields: []Field{
		shaField,
		{Name: FieldRefactoringType, Aliases: []string{"type"}, Required: true},
		agentField, fullNameField,
		{Name: FieldDataset},
	},
}

// DeltaSchema maps smell delta tables.
var DeltaSchema = Schema{
	Name: "smell deltas",
	Fields: []Field{
		{Name: FieldDataset, Required: true},
		{Name: FieldAgent, Required: true},
		{Name: FieldRepo, Aliases: []string{"full_name"}},
		{Name: "commit", Aliases: []string{"sha"}, Required: true},
		{Name: FieldSmellsBefore, Required: true},
		{Name: FieldSmellsAfter, Required: true},
		{Name: FieldDelta},
		{Name: FieldRuntimeSec},
	},
}

// RepositorySchema maps the raw repositories table.
var RepositorySchema = Schema{
	Name: "repositories",
	Fields: []Field{
		{Name: FieldID, Aliases: []string{"repo_id"}, Required: true},
		{Name: FieldFullName, Aliases: []string{"name_with_owner"}, Required: true},
		{Name: FieldLanguage, Required: true},
		{Name: FieldRepoURL, Aliases: []string{"url", "html_url"}},
	},
}

// PullRequestSchema maps the raw pull requests table.
var PullRequestSchema = Schema{
	Name: "pull requests",
	Fields: []Field{
		{Name: FieldID, Aliases: []string{"pr_id"}, Required: true},
		{Name: FieldRepoID, Required: true},
		numberField,
		{Name: FieldRepoURL},
		agentField,
	},
}

// PRCommitSchema maps the raw PR commits table.
var PRCommitSchema = Schema{
	Name: "pr commits",
	Fields: []Field{
		shaField,
		{Name: FieldPRID, Aliases: []string{"pull_request_id"}, Required: true},
	},
}
