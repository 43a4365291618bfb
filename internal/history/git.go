package history

import (
	ggit "github.com/go-git/go-git/v5"
)

// HeadInfo is the workspace's git state at run time.
type HeadInfo struct {
	Commit string
	Dirty  bool
}

// CaptureHead returns the HEAD commit and dirty flag for the workspace.
// A workspace outside any repository yields a zero HeadInfo; errors are
// swallowed because history capture is best-effort.
func CaptureHead(dir string) HeadInfo {
	repo, err := ggit.PlainOpenWithOptions(dir, &ggit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return HeadInfo{}
	}

	head, err := repo.Head()
	if err != nil {
		return HeadInfo{}
	}
	info := HeadInfo{Commit: head.Hash().String()}

	wt, err := repo.Worktree()
	if err != nil {
		return info
	}
	status, err := wt.Status()
	if err != nil {
		return info
	}
	info.Dirty = !status.IsClean()
	return info
}
