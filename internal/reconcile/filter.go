package reconcile

import (
	"github.com/sahilm/fuzzy"

	"github.com/jordangarrison/grove/internal/domain"
)

// workspaceSource adapts a []domain.Workspace slice to fuzzy.Source,
// matching against "name branch" the same way the teacher's
// fuzzySearchSource matches against "summary contentPreview" in
// internal/session/global_search.go.
type workspaceSource struct {
	workspaces []domain.Workspace
}

func (s workspaceSource) String(i int) string {
	w := s.workspaces[i]
	return w.Name + " " + w.Branch
}

func (s workspaceSource) Len() int { return len(s.workspaces) }

// FilterWorkspaces returns the workspaces matching query, ranked by fuzzy
// match score (best first). An empty query returns the input unchanged.
func FilterWorkspaces(workspaces []domain.Workspace, query string) []domain.Workspace {
	if query == "" {
		return workspaces
	}
	matches := fuzzy.FindFrom(query, workspaceSource{workspaces: workspaces})
	filtered := make([]domain.Workspace, 0, len(matches))
	for _, m := range matches {
		filtered = append(filtered, workspaces[m.Index])
	}
	return filtered
}
