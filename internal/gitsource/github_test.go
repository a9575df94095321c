package gitsource

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/stacksentry/stacksentry/api/schemas"
	"github.com/stacksentry/stacksentry/internal/config"
)

var testRef = schemas.RepoRef{Owner: "ichack", Repo: "broken-app"}

// newTestClient points a Client at a mock GitHub API server.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(config.GitHubConfig{
		Endpoint:          server.URL,
		RequestsPerSecond: 1000,
		Burst:             100,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return client
}

func TestFileCommitHistory(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/ichack/broken-app/commits", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "src/payments.js", r.URL.Query().Get("path"))
		assert.Equal(t, "3", r.URL.Query().Get("per_page"))
		fmt.Fprint(w, `[
			{
				"sha": "aaaaaaaabbbbbbbbccccccccddddddddeeeeeeee",
				"html_url": "https://github.com/ichack/broken-app/commit/aaaaaaaa",
				"commit": {
					"message": "fix payment flow\n\nlonger body",
					"author": {"name": "Angela", "email": "angela@example.com", "date": "2026-01-30T12:00:00Z"}
				}
			},
			{
				"sha": "1111111122222222333333334444444455555555",
				"html_url": "https://github.com/ichack/broken-app/commit/11111111",
				"commit": {
					"message": "add slack dependency",
					"author": {"name": "Vincent", "email": "vincent@example.com", "date": "2026-01-29T09:30:00Z"}
				}
			}
		]`)
	})

	client := newTestClient(t, mux)

	records, err := client.FileCommitHistory(context.Background(), testRef, "src/payments.js", 3)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "aaaaaaaabbbbbbbbccccccccddddddddeeeeeeee", records[0].SHA)
	assert.Equal(t, "aaaaaaa", records[0].ShortSHA)
	assert.Equal(t, "fix payment flow\n\nlonger body", records[0].Message)
	assert.Equal(t, "Angela", records[0].Author)
	assert.Equal(t, "angela@example.com", records[0].Email)
	assert.Equal(t, "Vincent", records[1].Author)
}

func TestFileCommitHistory_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Not Found"}`, http.StatusNotFound)
	})

	client := newTestClient(t, mux)

	_, err := client.FileCommitHistory(context.Background(), testRef, "missing.js", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repository or file not found")
}

func TestCommitDetails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/ichack/broken-app/commits/abc1234def", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"sha": "abc1234def",
			"html_url": "https://github.com/ichack/broken-app/commit/abc1234def",
			"commit": {
				"message": "refactor payments",
				"author": {"name": "Shawn", "email": "shawn@example.com", "date": "2026-01-28T08:00:00Z"}
			},
			"files": [
				{"filename": "src/payments.js", "status": "modified", "additions": 4, "deletions": 1, "changes": 5, "patch": "@@ -1 +1,4 @@"},
				{"filename": "src/routes/api.js", "status": "modified", "additions": 1, "deletions": 0, "changes": 1}
			]
		}`)
	})

	client := newTestClient(t, mux)

	details, err := client.CommitDetails(context.Background(), testRef, "abc1234def")
	require.NoError(t, err)

	assert.Equal(t, "abc1234", details.ShortSHA)
	assert.Equal(t, "Shawn", details.Author)
	require.Len(t, details.Files, 2)
	assert.Equal(t, "src/payments.js", details.Files[0].Filename)
	require.NotNil(t, details.Files[0].Patch)
	assert.Equal(t, "@@ -1 +1,4 @@", *details.Files[0].Patch)
	assert.Nil(t, details.Files[1].Patch, "files without a patch keep a nil pointer")
}

func TestShortSHA(t *testing.T) {
	assert.Equal(t, "abc1234", ShortSHA("abc1234def"))
	assert.Equal(t, "abc", ShortSHA("abc"))
	assert.Equal(t, "", ShortSHA(""))
}
