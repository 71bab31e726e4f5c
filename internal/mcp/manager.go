// Package mcp connects to remote tool servers over the Model Context
// Protocol and registers their tools. Each configured server is discovered
// independently; one unreachable server never blocks the others.
package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os/exec"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/clewhq/clew/internal/security"
	"github.com/clewhq/clew/internal/tool"
)

// session is the slice of the MCP client the manager needs. *client.Client
// satisfies it; tests substitute a fake.
type session interface {
	ListTools(ctx context.Context, request mcplib.ListToolsRequest) (*mcplib.ListToolsResult, error)
	CallTool(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error)
	Close() error
}

// Manager owns the connections to every configured tool server.
type Manager struct {
	servers  []ServerConfig
	registry *tool.Registry
	logger   *slog.Logger
	audit    *security.AuditLogger

	mu       sync.Mutex
	sessions map[string]session

	// connect is swappable in tests.
	connect func(ctx context.Context, cfg ServerConfig) (session, error)
}

// NewManager creates a manager for the given server configs. The audit
// logger may be nil.
func NewManager(servers []ServerConfig, registry *tool.Registry, logger *slog.Logger, audit *security.AuditLogger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &Manager{
		registry: registry,
		logger:   logger,
		audit:    audit,
		sessions: make(map[string]session),
	}
	m.connect = m.dial
	for _, cfg := range servers {
		m.servers = append(m.servers, cfg.withDefaults())
	}
	return m
}

// DiscoverAll drops every previously registered remote tool, connects to
// each configured server, and registers the tools it advertises. Per-server
// failures are logged and skipped. It returns the number of tools
// registered.
func (m *Manager) DiscoverAll(ctx context.Context) (int, error) {
	m.closeSessions()
	m.registry.RemoveSource(tool.SourceRemote)

	// With a single server, tools keep their bare names. Two or more
	// servers force namespacing for every tool so names cannot collide.
	namespaced := len(m.servers) > 1

	registered := 0
	for _, cfg := range m.servers {
		n, err := m.discoverServer(ctx, cfg, namespaced)
		if err != nil {
			m.logger.Warn("tool server discovery failed",
				"server", cfg.Name,
				"error", err,
			)
			continue
		}
		registered += n
	}

	m.audit.Log(security.AuditEvent{
		Type:   security.EventDiscovery,
		Detail: fmt.Sprintf("mcp discovery registered %d tools from %d servers", registered, len(m.servers)),
	})
	return registered, nil
}

func (m *Manager) discoverServer(ctx context.Context, cfg ServerConfig, namespaced bool) (int, error) {
	if err := cfg.Validate(); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	sess, err := m.connect(ctx, cfg)
	if err != nil {
		return 0, fmt.Errorf("connect: %w", err)
	}

	list, err := sess.ListTools(ctx, mcplib.ListToolsRequest{})
	if err != nil {
		_ = sess.Close()
		return 0, fmt.Errorf("list tools: %w", err)
	}

	m.mu.Lock()
	m.sessions[cfg.Name] = sess
	m.mu.Unlock()

	registered := 0
	for _, t := range list.Tools {
		if !cfg.allows(t.Name) {
			continue
		}
		name := t.Name
		if namespaced {
			name = cfg.Name + "." + t.Name
		}
		rt, err := newRemoteTool(name, cfg, t, sess, m.registry.Trust())
		if err != nil {
			m.logger.Warn("skipping remote tool", "server", cfg.Name, "tool", t.Name, "error", err)
			continue
		}
		if err := m.registry.Register(rt, tool.SourceRemote); err != nil {
			m.logger.Warn("failed to register remote tool", "server", cfg.Name, "tool", t.Name, "error", err)
			continue
		}
		registered++
	}

	m.logger.Info("tool server discovered", "server", cfg.Name, "tools", registered)
	return registered, nil
}

// dial opens a connection for the config's transport and completes the MCP
// initialize handshake.
func (m *Manager) dial(ctx context.Context, cfg ServerConfig) (session, error) {
	var (
		cli *client.Client
		err error
	)

	switch cfg.Transport {
	case TransportStdio:
		env := make([]string, 0, len(cfg.Env))
		for k, v := range cfg.Env {
			env = append(env, k+"="+v)
		}
		var opts []transport.StdioOption
		if cfg.Cwd != "" {
			opts = append(opts, transport.WithCommandFunc(
				func(ctx context.Context, command string, env []string, args []string) (*exec.Cmd, error) {
					cmd := exec.CommandContext(ctx, command, args...)
					cmd.Env = env
					cmd.Dir = cfg.Cwd
					return cmd, nil
				}))
		}
		cli, err = client.NewStdioMCPClientWithOptions(cfg.Command, env, cfg.Args, opts...)
		if err != nil {
			return nil, err
		}

	case TransportSSE:
		cli, err = client.NewSSEMCPClient(cfg.URL, transport.WithHeaders(cfg.Headers))
		if err != nil {
			return nil, err
		}
		if err := cli.Start(ctx); err != nil {
			return nil, err
		}

	case TransportStreamableHTTP:
		cli, err = client.NewStreamableHttpClient(cfg.URL, transport.WithHTTPHeaders(cfg.Headers))
		if err != nil {
			return nil, err
		}
		if err := cli.Start(ctx); err != nil {
			return nil, err
		}

	case TransportSocket:
		conn, derr := net.DialTimeout("tcp", cfg.Address, cfg.Timeout)
		if derr != nil {
			return nil, derr
		}
		cli = client.NewClient(transport.NewIO(conn, conn, io.NopCloser(emptyReader{})))
		if err := cli.Start(ctx); err != nil {
			_ = conn.Close()
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}

	initReq := mcplib.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcplib.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcplib.Implementation{Name: "clew", Version: "dev"}
	if _, err := cli.Initialize(ctx, initReq); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return cli, nil
}

// Close shuts down every open server session.
func (m *Manager) Close() error {
	m.closeSessions()
	return nil
}

func (m *Manager) closeSessions() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, sess := range m.sessions {
		if err := sess.Close(); err != nil {
			m.logger.Debug("closing tool server session", "server", name, "error", err)
		}
		delete(m.sessions, name)
	}
}

type emptyReader struct{}

func (emptyReader) Read([]byte) (int, error) { return 0, io.EOF }
