package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"comicdb/internal/service"
)

func (s *Server) registerLoadTools() {
	s.mcp.AddTool(mcp.NewTool("list_sources",
		mcp.WithDescription("List available dataset source types with their configuration schemas"),
	), s.handleListSources)

	s.mcp.AddTool(mcp.NewTool("preview_source",
		mcp.WithDescription("Preview the first records of a dataset source without writing anything"),
		mcp.WithString("sourceType", mcp.Description("Source type (use list_sources to see available types)"), mcp.Required()),
		mcp.WithString("sourceConfigJSON", mcp.Description(`Source configuration as JSON, e.g. {"publisher":"dc"}`), mcp.Required()),
	), s.handlePreviewSource)

	s.mcp.AddTool(mcp.NewTool("create_load_job",
		mcp.WithDescription("Create a load job (dataset source → MongoDB collection)"),
		mcp.WithString("name", mcp.Description("Job name"), mcp.Required()),
		mcp.WithString("sourceType", mcp.Description("Source type"), mcp.Required()),
		mcp.WithString("sourceConfigJSON", mcp.Description("Source configuration as JSON"), mcp.Required()),
		mcp.WithString("collection", mcp.Description("Target MongoDB collection"), mcp.Required()),
		mcp.WithString("mode", mcp.Description("Write mode: replace (default) or append")),
		mcp.WithString("transformsJSON", mcp.Description(`Optional JSON array of transforms applied in order between source and destination. Each transform has {type, config}. Available types:
- filter: {field, op (eq|neq|contains), value} — drop rows not matching condition
- rename: {mapping: {oldName: newName}} — rename columns
- select: {fields: ["col1","col2"]} — keep only specified columns
- limit: {count} — cap number of rows
- dedupe: use dedupeKey param instead
Example: [{"type":"filter","config":{"field":"ALIGN","op":"eq","value":"Good Characters"}}]`)),
		mcp.WithString("dedupeKey", mcp.Description("Column name for deduplication (optional)")),
	), s.handleCreateLoadJob)

	s.mcp.AddTool(mcp.NewTool("run_load_job",
		mcp.WithDescription("Execute a load job. In replace mode this overwrites the target collection."),
		mcp.WithString("jobId", mcp.Description("Load job ID"), mcp.Required()),
	), s.handleRunLoadJob)

	s.mcp.AddTool(mcp.NewTool("list_run_logs",
		mcp.WithDescription("List recent run logs for a load job"),
		mcp.WithString("jobId", mcp.Description("Load job ID"), mcp.Required()),
	), s.handleListRunLogs)
}

func (s *Server) registerQueryTools() {
	s.mcp.AddTool(mcp.NewTool("query_characters",
		mcp.WithDescription(`Find character documents matching a MongoDB filter, e.g. {"ALIGN":"Good Characters"}`),
		mcp.WithString("collection", mcp.Description("Collection name"), mcp.Required()),
		mcp.WithString("filterJSON", mcp.Description("MongoDB filter as JSON (empty matches everything)")),
		mcp.WithNumber("limit", mcp.Description("Maximum documents to return (default 10)")),
	), s.handleQueryCharacters)

	s.mcp.AddTool(mcp.NewTool("count_characters",
		mcp.WithDescription("Count character documents matching a MongoDB filter"),
		mcp.WithString("collection", mcp.Description("Collection name"), mcp.Required()),
		mcp.WithString("filterJSON", mcp.Description("MongoDB filter as JSON (empty matches everything)")),
	), s.handleCountCharacters)
}

func (s *Server) handleListSources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.loads.ListSources())
}

func (s *Server) handlePreviewSource(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sourceType, _ := args["sourceType"].(string)
	cfgJSON, _ := args["sourceConfigJSON"].(string)

	preview, err := s.loads.PreviewSource(ctx, sourceType, cfgJSON)
	if err != nil {
		return nil, err
	}
	return jsonResult(preview)
}

func (s *Server) handleCreateLoadJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	name, _ := args["name"].(string)
	sourceType, _ := args["sourceType"].(string)
	cfgJSON, _ := args["sourceConfigJSON"].(string)
	collection, _ := args["collection"].(string)
	mode, _ := args["mode"].(string)
	dedupeKey, _ := args["dedupeKey"].(string)

	var sourceConfig map[string]any
	if err := parseJSON(cfgJSON, &sourceConfig); err != nil {
		return nil, fmt.Errorf("parse sourceConfig: %w", err)
	}

	transforms, err := transformsFromArgs(args["transformsJSON"])
	if err != nil {
		return nil, err
	}

	job, err := s.loads.CreateJob(ctx, service.CreateJobInput{
		Name:         name,
		SourceType:   sourceType,
		SourceConfig: sourceConfig,
		Transforms:   transforms,
		Collection:   collection,
		Mode:         mode,
		DedupeKey:    dedupeKey,
		Enabled:      true,
	})
	if err != nil {
		return nil, err
	}
	return jsonResult(job)
}

func (s *Server) handleRunLoadJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, _ := req.GetArguments()["jobId"].(string)
	result, err := s.loads.RunJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return jsonResult(result)
}

func (s *Server) handleListRunLogs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, _ := req.GetArguments()["jobId"].(string)
	logs, err := s.loads.ListRunLogs(jobID)
	if err != nil {
		return nil, err
	}
	return jsonResult(logs)
}

func (s *Server) handleQueryCharacters(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	collection, _ := args["collection"].(string)
	filterJSON, _ := args["filterJSON"].(string)

	limit := int64(10)
	if n, ok := args["limit"].(float64); ok && n > 0 {
		limit = int64(n)
	}

	docs, err := s.querys.Find(ctx, collection, filterJSON, limit)
	if err != nil {
		return nil, err
	}
	return jsonResult(docs)
}

func (s *Server) handleCountCharacters(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	collection, _ := args["collection"].(string)
	filterJSON, _ := args["filterJSON"].(string)

	n, err := s.querys.Count(ctx, collection, filterJSON)
	if err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("%d", n)), nil
}
