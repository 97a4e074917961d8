package model

import (
	"path"
	"strings"
)

// TopFolder returns the folder key used for folder colouring: at most the
// first two directory segments of the id, or "root" for top-level files.
// Only directories count, so siblings in one folder always share a key.
func TopFolder(id string) string {
	dir := path.Dir(strings.Trim(id, "/"))
	if dir == "." || dir == "/" || dir == "" {
		return "root"
	}
	parts := strings.Split(dir, "/")
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return strings.Join(parts, "/")
}

// Language guesses the highlighting language of a file from its name.
func Language(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".py":
		return "python"
	case ".java":
		return "java"
	case ".js", ".jsx":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".go":
		return "go"
	default:
		return "text"
	}
}

// SourceURL builds a browser link to the file on the hosting forge.
// Returns "" when repoURL is empty.
func SourceURL(repoURL, id string) string {
	repoURL = strings.TrimSuffix(strings.TrimSpace(repoURL), "/")
	repoURL = strings.TrimSuffix(repoURL, ".git")
	if repoURL == "" || id == "" {
		return ""
	}
	return repoURL + "/blob/HEAD/" + strings.TrimPrefix(id, "/")
}
