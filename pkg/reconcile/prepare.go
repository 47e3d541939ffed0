package reconcile

import (
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/refdelta/pkg/dataset"
)

// Sources are the raw tables joined by Prepare.
type Sources struct {
	Repositories *dataset.Table
	PullRequests *dataset.Table
	Commits      *dataset.Table
}

type repoInfo struct {
	fullName string
	language string
	url      string
}

type prInfo struct {
	id      string
	number  int64
	repoURL string
	agent   string
	repo    repoInfo
}

// Prepare builds the agentic commit metadata: repositories in language
// (case-insensitive), joined to their pull requests on repo_id and to PR
// commits on pr_id. Rows without an agent are dropped, as are exact
// duplicates.
func Prepare(src Sources, language string) ([]dataset.CommitRecord, error) {
	repoBinding, err := dataset.RepositorySchema.Bind(src.Repositories.Columns)
	if err != nil {
		return nil, fmt.Errorf("repositories: %w", err)
	}

	prBinding, err := dataset.PullRequestSchema.Bind(src.PullRequests.Columns)
	if err != nil {
		return nil, fmt.Errorf("pull requests: %w", err)
	}

	commitBinding, err := dataset.PRCommitSchema.Bind(src.Commits.Columns)
	if err != nil {
		return nil, fmt.Errorf("pr commits: %w", err)
	}

	repos := make(map[string][]repoInfo)

	for _, row := range src.Repositories.Rows {
		lang := repoBinding.String(row, dataset.FieldLanguage)
		if !strings.EqualFold(lang, language) {
			continue
		}

		id := repoBinding.String(row, dataset.FieldID)
		repos[id] = append(repos[id], repoInfo{
			fullName: repoBinding.String(row, dataset.FieldFullName),
			language: lang,
			url:      repoBinding.String(row, dataset.FieldRepoURL),
		})
	}

	prs := make(map[string][]prInfo)

	for _, row := range src.PullRequests.Rows {
		for _, repo := range repos[prBinding.String(row, dataset.FieldRepoID)] {
			pr := prInfo{
				id:      prBinding.String(row, dataset.FieldID),
				repoURL: prBinding.String(row, dataset.FieldRepoURL),
				agent:   prBinding.String(row, dataset.FieldAgent),
				repo:    repo,
			}

			if n, ok := dataset.AsInt(prBinding.Get(row, dataset.FieldNumber)); ok {
				pr.number = n
			}

			if pr.repoURL == "" {
				pr.repoURL = repo.url
			}

			prs[pr.id] = append(prs[pr.id], pr)
		}
	}

	var out []dataset.CommitRecord

	for _, row := range src.Commits.Rows {
		sha := dataset.NormalizeSHA(commitBinding.String(row, dataset.FieldSHA))

		for _, pr := range prs[commitBinding.String(row, dataset.FieldPRID)] {
			if strings.TrimSpace(pr.agent) == "" {
				continue
			}

			out = append(out, dataset.CommitRecord{
				SHA:         sha,
				PRID:        pr.id,
				Number:      pr.number,
				RepoURL:     pr.repoURL,
				FullName:    pr.repo.fullName,
				Language:    pr.repo.language,
				Agent:       pr.agent,
				UniqueTypes: []string{},
			})
		}
	}

	return uniqueMetadata(out), nil
}
