/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package httpmetrics

import "regexp"

type pathPattern struct {
	pattern *regexp.Regexp
	bucket  string
}

// The GitHub endpoints the bot calls, so that metrics are labelled by route
// rather than by owner, repository and number.
// https://docs.github.com/en/rest
var githubAPIPatterns = []pathPattern{{
	// https://docs.github.com/en/rest/pulls/pulls#get-a-pull-request
	pattern: regexp.MustCompile(`^/repos/[^/]+/[^/]+/pulls/\d+$`),
	bucket:  "/repos/{org}/{repo}/pulls/{number}",
}, {
	// https://docs.github.com/en/rest/pulls/pulls#list-pull-requests-files
	pattern: regexp.MustCompile(`^/repos/[^/]+/[^/]+/pulls/\d+/files$`),
	bucket:  "/repos/{org}/{repo}/pulls/{number}/files",
}, {
	// https://docs.github.com/en/rest/repos/contents
	pattern: regexp.MustCompile(`^/repos/[^/]+/[^/]+/contents/.+$`),
	bucket:  "/repos/{org}/{repo}/contents/{path}",
}, {
	// https://docs.github.com/en/rest/issues/labels#list-labels-for-an-issue
	pattern: regexp.MustCompile(`^/repos/[^/]+/[^/]+/issues/\d+/labels$`),
	bucket:  "/repos/{org}/{repo}/issues/{number}/labels",
}, {
	// https://docs.github.com/en/rest/issues/labels#remove-a-label-from-an-issue
	pattern: regexp.MustCompile(`^/repos/[^/]+/[^/]+/issues/\d+/labels/[^/]+$`),
	bucket:  "/repos/{org}/{repo}/issues/{number}/labels/{name}",
}, {
	// https://docs.github.com/en/rest/issues/comments#list-issue-comments
	pattern: regexp.MustCompile(`^/repos/[^/]+/[^/]+/issues/\d+/comments$`),
	bucket:  "/repos/{org}/{repo}/issues/{number}/comments",
}, {
	// https://docs.github.com/en/rest/issues/comments#update-an-issue-comment
	pattern: regexp.MustCompile(`^/repos/[^/]+/[^/]+/issues/comments/\d+$`),
	bucket:  "/repos/{org}/{repo}/issues/comments/{id}",
}, {
	// https://docs.github.com/en/rest/apps/apps#get-a-repository-installation-for-the-authenticated-app
	pattern: regexp.MustCompile(`^/repos/[^/]+/[^/]+/installation$`),
	bucket:  "/repos/{org}/{repo}/installation",
}, {
	// https://docs.github.com/en/rest/apps/apps#create-an-installation-access-token-for-an-app
	pattern: regexp.MustCompile(`^/app/installations/\d+/access_tokens$`),
	bucket:  "/app/installations/{id}/access_tokens",
}}

func bucketizePath(path string) string {
	for _, p := range githubAPIPatterns {
		if p.pattern.MatchString(path) {
			return p.bucket
		}
	}
	return "other"
}
