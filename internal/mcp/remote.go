package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/clewhq/clew/internal/tool"
)

// RemoteTool is a registry entry backed by a tool server session. The
// registered name may be namespaced; RemoteName is the name the server
// knows the tool by.
type RemoteTool struct {
	name        string
	remoteName  string
	serverName  string
	description string
	schema      json.RawMessage

	session session
	trusted bool
	trust   *tool.TrustList
}

func newRemoteTool(name string, cfg ServerConfig, decl mcplib.Tool, sess session, trust *tool.TrustList) (*RemoteTool, error) {
	schema, err := json.Marshal(decl.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("marshal input schema: %w", err)
	}
	return &RemoteTool{
		name:        name,
		remoteName:  decl.Name,
		serverName:  cfg.Name,
		description: decl.Description,
		schema:      schema,
		session:     sess,
		trusted:     cfg.Trust,
		trust:       trust,
	}, nil
}

func (r *RemoteTool) Name() string            { return r.name }
func (r *RemoteTool) DisplayName() string     { return r.remoteName + " (" + r.serverName + ")" }
func (r *RemoteTool) Description() string     { return r.description }
func (r *RemoteTool) Schema() json.RawMessage { return r.schema }

// ServerName returns the owning server's configured name.
func (r *RemoteTool) ServerName() string { return r.serverName }

// ShouldConfirmExecute pre-approves calls to trusted servers and to
// servers or tools the user has already approved with an always outcome.
// Otherwise it raises a confirmation whose continuation records the
// decision in the session trust list.
func (r *RemoteTool) ShouldConfirmExecute(context.Context, json.RawMessage) (*tool.Confirmation, error) {
	if r.trusted {
		return nil, nil
	}
	toolKey := r.serverName + "." + r.remoteName
	if r.trust.Contains(r.serverName) || r.trust.Contains(toolKey) {
		return nil, nil
	}

	return &tool.Confirmation{
		Kind:       tool.ConfirmRemote,
		Title:      fmt.Sprintf("Run remote tool %s on server %s?", r.remoteName, r.serverName),
		ToolName:   r.remoteName,
		ServerName: r.serverName,
		OnConfirm: func(outcome tool.Outcome) {
			switch outcome {
			case tool.OutcomeProceedAlwaysServer:
				r.trust.Add(r.serverName)
			case tool.OutcomeProceedAlwaysTool:
				r.trust.Add(toolKey)
			}
		},
	}, nil
}

// Execute forwards the call to the server. A result the server flags as an
// error becomes a domain failure, not an invocation error.
func (r *RemoteTool) Execute(ctx context.Context, args json.RawMessage) (tool.Result, error) {
	arguments := make(map[string]any)
	if len(args) > 0 {
		if err := json.Unmarshal(args, &arguments); err != nil {
			return tool.Result{}, fmt.Errorf("mcp: tool %q: decode arguments: %w", r.name, err)
		}
	}

	req := mcplib.CallToolRequest{}
	req.Params.Name = r.remoteName
	req.Params.Arguments = arguments

	res, err := r.session.CallTool(ctx, req)
	if err != nil {
		return tool.Result{}, fmt.Errorf("mcp: tool %q: call failed: %w", r.name, err)
	}

	content := flattenContent(res.Content)
	if res.IsError {
		return tool.Result{LLMContent: content, ReturnDisplay: content, Err: content}, nil
	}
	return tool.Result{LLMContent: content, ReturnDisplay: content}, nil
}

// flattenContent joins the textual parts of a tool result. Non-text parts
// are represented by their type tag so the model knows something was
// omitted.
func flattenContent(parts []mcplib.Content) string {
	var b strings.Builder
	for i, part := range parts {
		if i > 0 {
			b.WriteString("\n")
		}
		switch c := part.(type) {
		case mcplib.TextContent:
			b.WriteString(c.Text)
		default:
			fmt.Fprintf(&b, "[unsupported content type %T]", part)
		}
	}
	return b.String()
}

var _ tool.Tool = (*RemoteTool)(nil)
