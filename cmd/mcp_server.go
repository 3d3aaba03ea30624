package cmd

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mpratt27/winsight/internal/model"
	"github.com/mpratt27/winsight/internal/platform"
	"github.com/mpratt27/winsight/internal/track"
	"github.com/mpratt27/winsight/internal/version"
)

// mcpServer wraps the MCP server with a live tracker.
type mcpServer struct {
	tracker *track.Tracker
	mcp     *mcpserver.MCPServer
}

// MCPConfig holds MCP server configuration.
type MCPConfig struct {
	Transport string
	Port      int
}

// newMCPServer creates an MCP server backed by a freshly started tracker.
func newMCPServer(mcpCfg MCPConfig) (*mcpServer, error) {
	provider, err := platform.NewProvider()
	if err != nil {
		return nil, err
	}

	s := &mcpServer{tracker: newTracker(provider)}
	s.tracker.StartTracking()

	s.mcp = mcpserver.NewMCPServer(
		"winsight",
		version.Version,
	)

	s.registerTools()
	return s, nil
}

// serve starts the MCP server with the configured transport.
func (s *mcpServer) serve(mcpCfg MCPConfig) error {
	switch mcpCfg.Transport {
	case "stdio":
		return mcpserver.ServeStdio(s.mcp)
	case "streamable-http":
		httpServer := mcpserver.NewStreamableHTTPServer(s.mcp)
		return httpServer.Start(fmt.Sprintf(":%d", mcpCfg.Port))
	default:
		return fmt.Errorf("unsupported transport: %s (use stdio or streamable-http)", mcpCfg.Transport)
	}
}

func (s *mcpServer) close() {
	s.tracker.StopTracking()
}

func (s *mcpServer) registerTools() {
	s.mcp.AddTool(
		mcp.NewTool("list_windows",
			mcp.WithDescription("List the tracked windows, optionally scoped to one application. Runs a fresh scan first."),
			mcp.WithNumber("pid", mcp.Description("Filter by process ID")),
			mcp.WithString("bundle-id", mcp.Description("Filter by bundle identifier")),
		),
		s.handleListWindows,
	)

	s.mcp.AddTool(
		mcp.NewTool("window_cache",
			mcp.WithDescription("Read the current window cache without scanning. Returns the cached records for one PID or the whole cache."),
			mcp.WithNumber("pid", mcp.Description("Limit to one process")),
		),
		s.handleWindowCache,
	)

	s.mcp.AddTool(
		mcp.NewTool("tracked_apps",
			mcp.WithDescription("List the running regular applications the tracker follows."),
		),
		s.handleTrackedApps,
	)

	s.mcp.AddTool(
		mcp.NewTool("capture_preview",
			mcp.WithDescription("Capture a preview image of a window by its system window ID."),
			mcp.WithNumber("id", mcp.Description("Compositor window ID"), mcp.Required()),
		),
		s.handleCapturePreview,
	)
}

func (s *mcpServer) handleListWindows(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pid := req.GetInt("pid", 0)
	bundleID := req.GetString("bundle-id", "")

	s.tracker.FullScan()

	var windows []model.WindowRecord
	switch {
	case pid != 0:
		windows = s.tracker.Cache(pid)
	case bundleID != "":
		windows = s.tracker.CacheByBundleID(bundleID)
	default:
		for _, records := range s.tracker.AllWindows() {
			windows = append(windows, records...)
		}
	}
	return jsonResult(windows)
}

func (s *mcpServer) handleWindowCache(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pid := req.GetInt("pid", 0)
	if pid != 0 {
		return jsonResult(s.tracker.Cache(pid))
	}
	return jsonResult(s.tracker.AllWindows())
}

func (s *mcpServer) handleTrackedApps(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.tracker.TrackedApplications())
}

func (s *mcpServer) handleCapturePreview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetInt("id", 0)
	if id <= 0 {
		return mcp.NewToolResultError("id is required"), nil
	}

	img, err := s.tracker.CapturePreview(uint32(id))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("capture failed: %v", err)), nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
	}
	return mcp.NewToolResultImage(
		fmt.Sprintf("preview of window %d at %s", id, time.Now().Format(time.RFC3339)),
		base64.StdEncoding.EncodeToString(buf.Bytes()),
		"image/png",
	), nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
