package ratesapi

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/icmsnap/uf"
)

// RegisterMCP registers the rate tools on srv.
func (a *API) RegisterMCP(srv *mcp.Server) {
	pair := map[string]any{
		"origem":  map[string]any{"type": "string", "description": "Origin state code, e.g. SP"},
		"destino": map[string]any{"type": "string", "description": "Destination state code, e.g. RJ"},
	}
	calcProps := map[string]any{
		"origem":         pair["origem"],
		"destino":        pair["destino"],
		"valor_operacao": map[string]any{"type": "number", "description": "Operation amount, > 0"},
	}
	required := []string{"origem", "destino", "valor_operacao"}

	addTool(srv, &mcp.Tool{
		Name:        "icms_rate",
		Description: "Return the active ICMS rate from one state to another (same state = intrastate rate).",
		InputSchema: inputSchema(pair, []string{"origem", "destino"}),
	}, func(ctx context.Context, req *CalcRequest) (any, error) {
		o, ok1 := uf.Parse(req.Origin)
		d, ok2 := uf.Parse(req.Destination)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("unknown state in %q -> %q", req.Origin, req.Destination)
		}
		return a.rates.Rate(ctx, o, d)
	})

	addTool(srv, &mcp.Tool{
		Name:        "icms_calculate",
		Description: "Compute the ICMS due on an operation between two states.",
		InputSchema: inputSchema(calcProps, required),
	}, func(ctx context.Context, req *CalcRequest) (any, error) {
		return a.ICMS(ctx, *req)
	})

	addTool(srv, &mcp.Tool{
		Name:        "icms_difal",
		Description: "Compute the DIFAL (destination rate differential) of an interstate operation.",
		InputSchema: inputSchema(calcProps, required),
	}, func(ctx context.Context, req *CalcRequest) (any, error) {
		return a.DIFAL(ctx, *req)
	})
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// addTool decodes the arguments into Req, calls fn and returns its result
// as JSON text. Failures become tool errors, not protocol errors.
func addTool[Req any](srv *mcp.Server, tool *mcp.Tool, fn func(context.Context, *Req) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r Req
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
			}
		}
		resp, err := fn(ctx, &r)
		if err != nil {
			return toolError(err), nil
		}
		data, err := json.Marshal(resp)
		if err != nil {
			return toolError(fmt.Errorf("marshal: %w", err)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func toolError(err error) *mcp.CallToolResult {
	var res mcp.CallToolResult
	res.SetError(err)
	return &res
}
