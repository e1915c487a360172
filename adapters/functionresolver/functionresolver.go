// Package functionresolver implements ports.FunctionResolver by
// loading a function definition document from a GitHub repository
// path ("owner/repo/path/to/def.json") via the Contents API.
package functionresolver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/go-github/v69/github"

	"github.com/nugget/nostrgraph/internal/paths"
	"github.com/nugget/nostrgraph/ports"
	"github.com/nugget/nostrgraph/socket"
)

// rateLimitWarningThreshold triggers a log warning when the remaining
// GitHub API rate limit drops below this value.
const rateLimitWarningThreshold = 100

// definitionDoc is the on-disk JSON shape of a function definition
// file: its declared parameter/return sockets and its interior graph,
// in the same document shape GraphRuntime itself serialises (§4.7,
// §6).
type definitionDoc struct {
	Pubkey        string          `json:"pubkey"`
	InputSockets  []socketDoc     `json:"input_sockets"`
	OutputSockets []socketDoc     `json:"output_sockets"`
	InteriorGraph json.RawMessage `json:"interior_graph"`
}

type socketDoc struct {
	Name   string `json:"name"`
	Socket string `json:"socket"`
}

// Resolver is a ports.FunctionResolver backed by a GitHub repository.
type Resolver struct {
	client   *github.Client
	resolver *paths.Resolver
	logger   *slog.Logger
}

var _ ports.FunctionResolver = (*Resolver)(nil)

// New creates a Resolver. httpClient should be built via
// httpkit.NewClient. prefixes expands short path aliases
// ("core:auth/check") to "owner/repo/rel/path" form before the GitHub
// lookup; it may be nil. A nil logger defaults to slog.Default().
func New(httpClient *http.Client, token string, prefixes *paths.Resolver, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	client := github.NewClient(httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &Resolver{client: client, resolver: prefixes, logger: logger}
}

// Load fetches and parses the function definition at path, expanding
// any registered path prefix first. Returns ok=false if the file does
// not exist in the repository (§6 "load(path) -> ... | none").
func (r *Resolver) Load(ctx context.Context, path string) (ports.FunctionDefinition, bool, error) {
	expanded := r.resolver.Resolve(path)
	owner, repo, filePath, err := splitOwnerRepoPath(expanded)
	if err != nil {
		return ports.FunctionDefinition{}, false, err
	}

	content, dir, resp, err := r.client.Repositories.GetContents(ctx, owner, repo, filePath, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return ports.FunctionDefinition{}, false, nil
		}
		return ports.FunctionDefinition{}, false, fmt.Errorf("functionresolver: get contents %s: %w", expanded, err)
	}
	r.checkRate(resp)

	if content == nil || dir != nil {
		return ports.FunctionDefinition{}, false, fmt.Errorf("functionresolver: %s is not a file", expanded)
	}

	raw, err := decodeContent(content)
	if err != nil {
		return ports.FunctionDefinition{}, false, fmt.Errorf("functionresolver: decode %s: %w", expanded, err)
	}

	var doc definitionDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ports.FunctionDefinition{}, false, fmt.Errorf("functionresolver: parse %s: %w", expanded, err)
	}

	def := ports.FunctionDefinition{
		Pubkey:        doc.Pubkey,
		InputSockets:  toFuncSockets(doc.InputSockets),
		OutputSockets: toFuncSockets(doc.OutputSockets),
		InteriorGraph: doc.InteriorGraph,
	}
	return def, true, nil
}

func decodeContent(c *github.RepositoryContent) ([]byte, error) {
	if c.GetEncoding() == "base64" {
		return base64.StdEncoding.DecodeString(strings.ReplaceAll(c.GetContent(), "\n", ""))
	}
	return []byte(c.GetContent()), nil
}

func toFuncSockets(docs []socketDoc) []ports.FuncSocket {
	out := make([]ports.FuncSocket, 0, len(docs))
	for _, d := range docs {
		out = append(out, ports.FuncSocket{Name: d.Name, Socket: socket.Kind(d.Socket)})
	}
	return out
}

// splitOwnerRepoPath splits "owner/repo/path/to/file.json" into its
// three parts.
func splitOwnerRepoPath(expanded string) (owner, repo, path string, err error) {
	parts := strings.SplitN(expanded, "/", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("functionresolver: invalid path %q, expected owner/repo/path", expanded)
	}
	return parts[0], parts[1], parts[2], nil
}

func (r *Resolver) checkRate(resp *github.Response) {
	if resp == nil {
		return
	}
	remaining := resp.Rate.Remaining
	if remaining > 0 && remaining < rateLimitWarningThreshold {
		r.logger.Warn("github rate limit low",
			"remaining", remaining,
			"limit", resp.Rate.Limit,
		)
	}
}
