/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubreconciler

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Resource identifies a pull request.
type Resource struct {
	Owner  string
	Repo   string
	Number int
	URL    string
}

func (r *Resource) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

// ParseURL parses a pull request URL of the form
// https://github.com/org/repo/pull/123. The short form org/repo#123 is
// accepted too.
func ParseURL(uri string) (*Resource, error) {
	if !strings.Contains(uri, "://") {
		return parseShort(uri)
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsed.Host != "github.com" {
		return nil, fmt.Errorf("invalid host: %s (expected github.com)", parsed.Host)
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	// Links to a tab of the pull request (files, commits) carry a fifth part.
	if len(parts) < 4 || len(parts) > 5 {
		return nil, fmt.Errorf("invalid path format: %s", parsed.Path)
	}
	if parts[2] != "pull" {
		return nil, fmt.Errorf("not a pull request URL: %s", uri)
	}
	number, err := strconv.Atoi(parts[3])
	if err != nil || number <= 0 {
		return nil, fmt.Errorf("invalid pull request number: %s", parts[3])
	}

	return &Resource{
		Owner:  parts[0],
		Repo:   parts[1],
		Number: number,
		URL:    fmt.Sprintf("https://github.com/%s/%s/pull/%d", parts[0], parts[1], number),
	}, nil
}

func parseShort(s string) (*Resource, error) {
	repoPart, num, ok := strings.Cut(s, "#")
	if !ok {
		return nil, fmt.Errorf("invalid pull request reference: %s", s)
	}
	owner, repo, ok := strings.Cut(repoPart, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, fmt.Errorf("invalid pull request reference: %s", s)
	}
	return ParseURL(fmt.Sprintf("https://github.com/%s/%s/pull/%s", owner, repo, num))
}
