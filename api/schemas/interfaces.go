package schemas

import "context"

// LLMClient defines a standard interface for interacting with a Large
// Language Model, abstracting the specifics of the underlying provider
// (e.g. Anthropic, Gemini).
type LLMClient interface {
	// Generate produces a text completion based on the provided request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close cleans up any resources held by the client.
	Close() error
}

// CommitSource exposes read-only queries against a hosted repository's
// commit history. The pipeline treats it as an opaque collaborator; the
// default implementation talks to the GitHub REST API.
type CommitSource interface {
	// FileCommitHistory lists up to count recent commits touching path,
	// newest first.
	FileCommitHistory(ctx context.Context, ref RepoRef, path string, count int) ([]CommitRecord, error)
	// CommitDetails fetches one commit with its full file-level change set.
	CommitDetails(ctx context.Context, ref RepoRef, sha string) (*CommitDetails, error)
}

// Notifier delivers a finished incident report to a notification channel.
// Delivery is fire-and-forget from the pipeline's perspective.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}
