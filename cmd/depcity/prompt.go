package main

import (
	"errors"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/vanderheijden86/depcity/pkg/config"
)

// otherRepo is the select value that asks for a new URL.
const otherRepo = "\x00other"

// isTerminal checks if stdin is connected to a terminal
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// newForm creates a form with appropriate settings based on TTY detection
func newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if !isTerminal() {
		form = form.WithAccessible(true)
	}
	return form
}

// promptRepo asks for the repository to analyze, offering the remembered
// ones first.
func promptRepo(cfg config.Config) (string, error) {
	choice := otherRepo
	if len(cfg.Repos) > 0 {
		form := newForm(huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which repository?").
				Options(repoOptions(cfg.Repos)...).
				Value(&choice),
		))
		if err := form.Run(); err != nil {
			return "", err
		}
	}
	if choice != otherRepo {
		return choice, nil
	}

	var url string
	form := newForm(huh.NewGroup(
		huh.NewInput().
			Title("Repository URL").
			Placeholder("https://github.com/owner/repo").
			Value(&url).
			Validate(validateRepoURL),
	))
	if err := form.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(url), nil
}

func repoOptions(repos []config.Repo) []huh.Option[string] {
	opts := make([]huh.Option[string], 0, len(repos)+1)
	for _, r := range repos {
		opts = append(opts, huh.NewOption(r.Name+"  "+r.URL, r.URL))
	}
	return append(opts, huh.NewOption("Another repository…", otherRepo))
}

func validateRepoURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("a repository URL is required")
	}
	if !strings.Contains(s, "://") && !strings.HasPrefix(s, "git@") {
		return errors.New("expected a URL like https://github.com/owner/repo")
	}
	return nil
}
