// Package mcpapi exposes the scheduling engine as MCP tools so an AI
// drafting assistant can read plans and commit drafts over stdio.
//
// Each tool is a struct holding its dependencies with a Definition method
// returning the schema and a Handle method serving calls.
package mcpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/zulandar/planyard/internal/plan"
)

// intArg extracts an integer argument. JSON numbers arrive as float64, so a
// fractional or non-numeric value is rejected rather than truncated.
func intArg(req mcp.CallToolRequest, key string, defaultVal int) (int, error) {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return defaultVal, nil
	}
	v, ok := raw.(float64)
	if !ok || v != math.Trunc(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return int(v), nil
}

func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) (bool, error) {
	v, err := optionalBool(req, key)
	if err != nil || v == nil {
		return defaultVal, err
	}
	return *v, nil
}

// optionalString returns nil when the argument is absent, so an explicit
// empty string can be told apart from no value.
func optionalString(req mcp.CallToolRequest, key string) (*string, error) {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return nil, nil
	}
	v, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("%s must be a string", key)
	}
	return &v, nil
}

func optionalBool(req mcp.CallToolRequest, key string) (*bool, error) {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return nil, nil
	}
	v, ok := raw.(bool)
	if !ok {
		return nil, fmt.Errorf("%s must be a boolean", key)
	}
	return &v, nil
}

// argErrors reports malformed arguments as a tool error, or nil when all
// of them parsed.
func argErrors(errs ...error) *mcp.CallToolResult {
	if err := errors.Join(errs...); err != nil {
		return mcp.NewToolResultError("invalid arguments: " + err.Error())
	}
	return nil
}

// splitIDs parses a comma-separated id list, dropping blanks.
func splitIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// engineError turns caller mistakes into tool errors the model can read and
// correct. Anything else is returned as a protocol error.
func engineError(err error) (*mcp.CallToolResult, error) {
	if plan.IsValidation(err) ||
		errors.Is(err, plan.ErrNotFound) ||
		errors.Is(err, plan.ErrNoActivePlan) ||
		errors.Is(err, plan.ErrConflict) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return nil, err
}
