// Package server exposes the graph document over MCP. One graph file is
// open at a time; tools that edit the document fail until open_graph or
// new_graph has bound a session.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ktsqep/graphdoc/pkg/catalog"
	"github.com/ktsqep/graphdoc/pkg/graph"
	"github.com/ktsqep/graphdoc/pkg/schema"
	"github.com/ktsqep/graphdoc/pkg/session"
)

type Server struct {
	catalog       *catalog.Catalog
	logger        *slog.Logger
	autosaveDelay time.Duration

	mu      sync.Mutex
	session *session.Session
}

type OpenGraphParams struct {
	Path string `json:"path" jsonschema:"description:Path of the graph file to open"`
}

type NewGraphParams struct {
	Path string `json:"path" jsonschema:"description:Path of the graph file to create. An existing file is overwritten"`
}

type AddEntityParams struct {
	Content      string   `json:"content" jsonschema:"description:Text content of the entity"`
	DistinctType string   `json:"distinctType" jsonschema:"description:Distinct type code: ka ku kp or kd"`
	AddonTypes   []string `json:"addonTypes,omitempty" jsonschema:"description:Addon type codes: any of k t e q p z"`
	X            float64  `json:"x" jsonschema:"description:Canvas x coordinate"`
	Y            float64  `json:"y" jsonschema:"description:Canvas y coordinate"`
}

type UpdateEntityParams struct {
	ID         uint64   `json:"id" jsonschema:"description:ID of the entity to update"`
	Content    string   `json:"content" jsonschema:"description:New text content"`
	AddonTypes []string `json:"addonTypes,omitempty" jsonschema:"description:New addon type codes; the full set, not a delta"`
}

type MoveEntityParams struct {
	ID uint64  `json:"id" jsonschema:"description:ID of the entity to move"`
	X  float64 `json:"x" jsonschema:"description:New canvas x coordinate"`
	Y  float64 `json:"y" jsonschema:"description:New canvas y coordinate"`
}

type RemoveEntityParams struct {
	ID uint64 `json:"id" jsonschema:"description:ID of the entity to remove. Its relations go with it"`
}

type AddEdgeParams struct {
	From     uint64 `json:"from" jsonschema:"description:ID of the source entity"`
	To       uint64 `json:"to" jsonschema:"description:ID of the target entity"`
	Relation string `json:"relation" jsonschema:"description:Relation code: contain or order"`
}

type RemoveEdgeParams struct {
	From     uint64 `json:"from" jsonschema:"description:ID of the source entity"`
	To       uint64 `json:"to" jsonschema:"description:ID of the target entity"`
	Relation string `json:"relation,omitempty" jsonschema:"description:Relation code: contain or order. Omit to remove every relation between the pair"`
}

type ImportXMLParams struct {
	XML string `json:"xml" jsonschema:"description:KT-SQEP XML document replacing the current graph"`
}

type ListRecentGraphsParams struct {
	Limit int `json:"limit,omitempty" jsonschema:"description:Maximum number of entries to return. Defaults to 10"`
}

// EntityDTO is the JSON shape read_graph returns per entity.
type EntityDTO struct {
	ID           uint64   `json:"id"`
	Content      string   `json:"content"`
	DistinctType string   `json:"distinctType"`
	AddonTypes   []string `json:"addonTypes"`
	X            float64  `json:"x"`
	Y            float64  `json:"y"`
}

// EdgeDTO is the JSON shape read_graph returns per relation.
type EdgeDTO struct {
	From     uint64 `json:"from"`
	To       uint64 `json:"to"`
	Relation string `json:"relation"`
}

type GraphDTO struct {
	Path     string      `json:"path"`
	Entities []EntityDTO `json:"entities"`
	Edges    []EdgeDTO   `json:"edges"`
	CanUndo  bool        `json:"canUndo"`
	CanRedo  bool        `json:"canRedo"`
}

// NewServer creates an MCP server backed by the given recent-files catalog.
func NewServer(cat *catalog.Catalog, autosaveDelay time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{catalog: cat, logger: logger, autosaveDelay: autosaveDelay}
}

// Shutdown closes the open session, if any, and the catalog.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		s.touchCatalog(ctx, s.session)
		s.session.Close()
		s.session = nil
	}
	if s.catalog != nil {
		return s.catalog.Close()
	}
	return nil
}

// RegisterTools registers all MCP tools with the server
func (s *Server) RegisterTools(mcpServer *mcp.Server) {
	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "open_graph",
			Description: "Open an existing KT-SQEP graph file for editing",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params OpenGraphParams) (*mcp.CallToolResult, any, error) {
			return s.handleOpenGraph(ctx, params.Path, false)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "new_graph",
			Description: "Create a new empty KT-SQEP graph file and open it for editing",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params NewGraphParams) (*mcp.CallToolResult, any, error) {
			return s.handleOpenGraph(ctx, params.Path, true)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "save_graph",
			Description: "Write the open graph to its file immediately",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, _ any) (*mcp.CallToolResult, any, error) {
			return s.handleSaveGraph(ctx)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "close_graph",
			Description: "Flush and close the open graph file",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, _ any) (*mcp.CallToolResult, any, error) {
			return s.handleCloseGraph(ctx)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "add_entity",
			Description: "Add an entity to the open graph and return its assigned ID",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params AddEntityParams) (*mcp.CallToolResult, any, error) {
			return s.handleAddEntity(ctx, params)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "update_entity",
			Description: "Replace an entity's content and addon types as a single undoable step",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params UpdateEntityParams) (*mcp.CallToolResult, any, error) {
			return s.handleUpdateEntity(ctx, params)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "move_entity",
			Description: "Move an entity to new canvas coordinates",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params MoveEntityParams) (*mcp.CallToolResult, any, error) {
			return s.handleMoveEntity(ctx, params)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "remove_entity",
			Description: "Remove an entity and every relation attached to it",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params RemoveEntityParams) (*mcp.CallToolResult, any, error) {
			return s.handleRemoveEntity(ctx, params)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "add_edge",
			Description: "Add a contain or order relation between two entities",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params AddEdgeParams) (*mcp.CallToolResult, any, error) {
			return s.handleAddEdge(ctx, params)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "remove_edge",
			Description: "Remove a relation between two entities, or all relations between them",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params RemoveEdgeParams) (*mcp.CallToolResult, any, error) {
			return s.handleRemoveEdge(ctx, params)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "undo",
			Description: "Revert the most recent change to the open graph",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, _ any) (*mcp.CallToolResult, any, error) {
			return s.handleUndo(ctx)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "redo",
			Description: "Reapply the most recently undone change",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, _ any) (*mcp.CallToolResult, any, error) {
			return s.handleRedo(ctx)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "export_xml",
			Description: "Return the open graph as a KT-SQEP XML document",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, _ any) (*mcp.CallToolResult, any, error) {
			return s.handleExportXML(ctx)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "import_xml",
			Description: "Replace the open graph with a KT-SQEP XML document. Clears undo history",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params ImportXMLParams) (*mcp.CallToolResult, any, error) {
			return s.handleImportXML(ctx, params)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "read_graph",
			Description: "Read the entire open graph: entities, relations and history state",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, _ any) (*mcp.CallToolResult, any, error) {
			return s.handleReadGraph(ctx)
		},
	)

	mcp.AddTool(mcpServer,
		&mcp.Tool{
			Name:        "list_recent_graphs",
			Description: "List recently opened graph files, most recent first",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, params ListRecentGraphsParams) (*mcp.CallToolResult, any, error) {
			return s.handleListRecentGraphs(ctx, params)
		},
	)
}

// OpenInitialGraph opens a graph file before any client has connected,
// creating it when missing.
func (s *Server) OpenInitialGraph(ctx context.Context, path string) error {
	_, _, err := s.handleOpenGraph(ctx, path, false)
	return err
}

// OpenStatus reports the open graph path and its counts. Zero values when
// no graph is open.
func (s *Server) OpenStatus() (path string, entities, edges int) {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()
	if sess == nil {
		return "", 0, 0
	}
	entities, edges = sess.Counts()
	return sess.Path(), entities, edges
}

// current returns the open session or an error when none is bound.
func (s *Server) current() (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, fmt.Errorf("no graph is open: call open_graph or new_graph first")
	}
	return s.session, nil
}

func (s *Server) touchCatalog(ctx context.Context, sess *session.Session) {
	if s.catalog == nil {
		return
	}
	entities, edges := sess.Counts()
	if err := s.catalog.Touch(ctx, sess.Path(), entities, edges); err != nil {
		s.logger.Warn("failed to record recent graph",
			slog.String("path", sess.Path()),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Server) handleOpenGraph(ctx context.Context, path string, create bool) (*mcp.CallToolResult, any, error) {
	if err := ValidatePath(path); err != nil {
		return nil, nil, err
	}

	sess, err := session.Open(path, create, s.autosaveDelay, s.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open graph: %w", err)
	}

	s.mu.Lock()
	prev := s.session
	s.session = sess
	s.mu.Unlock()

	if prev != nil {
		s.touchCatalog(ctx, prev)
		prev.Close()
	}
	s.touchCatalog(ctx, sess)

	entities, edges := sess.Counts()
	return textResult(fmt.Sprintf("Opened %s: %d entities, %d relations", path, entities, edges)), nil, nil
}

func (s *Server) handleSaveGraph(ctx context.Context) (*mcp.CallToolResult, any, error) {
	sess, err := s.current()
	if err != nil {
		return nil, nil, err
	}
	if err := sess.Save(); err != nil {
		return nil, nil, fmt.Errorf("failed to save graph: %w", err)
	}
	s.touchCatalog(ctx, sess)
	return textResult("Graph saved"), nil, nil
}

func (s *Server) handleCloseGraph(ctx context.Context) (*mcp.CallToolResult, any, error) {
	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.mu.Unlock()

	if sess == nil {
		return nil, nil, fmt.Errorf("no graph is open")
	}
	s.touchCatalog(ctx, sess)
	sess.Close()
	return textResult(fmt.Sprintf("Closed %s", sess.Path())), nil, nil
}

func (s *Server) handleAddEntity(ctx context.Context, params AddEntityParams) (*mcp.CallToolResult, any, error) {
	sess, err := s.current()
	if err != nil {
		return nil, nil, err
	}
	if err := ValidateContent(params.Content); err != nil {
		return nil, nil, err
	}
	dt, err := schema.ParseDistinctType(params.DistinctType)
	if err != nil {
		return nil, nil, err
	}
	addons, err := parseAddonCodes(params.AddonTypes)
	if err != nil {
		return nil, nil, err
	}

	id, err := sess.AddEntity(params.Content, dt, addons, params.X, params.Y)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to add entity: %w", err)
	}
	return jsonResult(map[string]uint64{"id": id}), nil, nil
}

func (s *Server) handleUpdateEntity(ctx context.Context, params UpdateEntityParams) (*mcp.CallToolResult, any, error) {
	sess, err := s.current()
	if err != nil {
		return nil, nil, err
	}
	if err := ValidateContent(params.Content); err != nil {
		return nil, nil, err
	}
	addons, err := parseAddonCodes(params.AddonTypes)
	if err != nil {
		return nil, nil, err
	}

	if err := sess.UpdateEntity(params.ID, params.Content, addons); err != nil {
		return nil, nil, fmt.Errorf("failed to update entity: %w", err)
	}
	return textResult(fmt.Sprintf("Entity %d updated", params.ID)), nil, nil
}

func (s *Server) handleMoveEntity(ctx context.Context, params MoveEntityParams) (*mcp.CallToolResult, any, error) {
	sess, err := s.current()
	if err != nil {
		return nil, nil, err
	}
	if err := sess.SetPosition(params.ID, params.X, params.Y); err != nil {
		return nil, nil, fmt.Errorf("failed to move entity: %w", err)
	}
	return textResult(fmt.Sprintf("Entity %d moved", params.ID)), nil, nil
}

func (s *Server) handleRemoveEntity(ctx context.Context, params RemoveEntityParams) (*mcp.CallToolResult, any, error) {
	sess, err := s.current()
	if err != nil {
		return nil, nil, err
	}
	if err := sess.RemoveEntity(params.ID); err != nil {
		return nil, nil, fmt.Errorf("failed to remove entity: %w", err)
	}
	return textResult(fmt.Sprintf("Entity %d removed", params.ID)), nil, nil
}

func (s *Server) handleAddEdge(ctx context.Context, params AddEdgeParams) (*mcp.CallToolResult, any, error) {
	sess, err := s.current()
	if err != nil {
		return nil, nil, err
	}
	r, err := schema.ParseRelation(params.Relation)
	if err != nil {
		return nil, nil, err
	}
	if err := sess.AddEdge(params.From, params.To, r); err != nil {
		return nil, nil, fmt.Errorf("failed to add edge: %w", err)
	}
	return textResult(fmt.Sprintf("Relation %s added: %d -> %d", r, params.From, params.To)), nil, nil
}

func (s *Server) handleRemoveEdge(ctx context.Context, params RemoveEdgeParams) (*mcp.CallToolResult, any, error) {
	sess, err := s.current()
	if err != nil {
		return nil, nil, err
	}

	if params.Relation == "" {
		if err := sess.RemoveEdgesBetween(params.From, params.To); err != nil {
			return nil, nil, fmt.Errorf("failed to remove edges: %w", err)
		}
		return textResult(fmt.Sprintf("Relations removed: %d -> %d", params.From, params.To)), nil, nil
	}

	r, err := schema.ParseRelation(params.Relation)
	if err != nil {
		return nil, nil, err
	}
	if err := sess.RemoveEdge(params.From, params.To, r); err != nil {
		return nil, nil, fmt.Errorf("failed to remove edge: %w", err)
	}
	return textResult(fmt.Sprintf("Relation %s removed: %d -> %d", r, params.From, params.To)), nil, nil
}

func (s *Server) handleUndo(ctx context.Context) (*mcp.CallToolResult, any, error) {
	sess, err := s.current()
	if err != nil {
		return nil, nil, err
	}
	label, _ := sess.UndoLabel()
	if err := sess.Undo(); err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("Undid %q", label)), nil, nil
}

func (s *Server) handleRedo(ctx context.Context) (*mcp.CallToolResult, any, error) {
	sess, err := s.current()
	if err != nil {
		return nil, nil, err
	}
	label, _ := sess.RedoLabel()
	if err := sess.Redo(); err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("Redid %q", label)), nil, nil
}

func (s *Server) handleExportXML(ctx context.Context) (*mcp.CallToolResult, any, error) {
	sess, err := s.current()
	if err != nil {
		return nil, nil, err
	}
	xml, err := sess.ExportXML()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to export graph: %w", err)
	}
	return textResult(xml), nil, nil
}

func (s *Server) handleImportXML(ctx context.Context, params ImportXMLParams) (*mcp.CallToolResult, any, error) {
	sess, err := s.current()
	if err != nil {
		return nil, nil, err
	}
	if err := ValidateImportXML(params.XML); err != nil {
		return nil, nil, err
	}
	if err := sess.ImportXML(params.XML); err != nil {
		return nil, nil, fmt.Errorf("failed to import graph: %w", err)
	}
	entities, edges := sess.Counts()
	return textResult(fmt.Sprintf("Imported %d entities, %d relations", entities, edges)), nil, nil
}

func (s *Server) handleReadGraph(ctx context.Context) (*mcp.CallToolResult, any, error) {
	sess, err := s.current()
	if err != nil {
		return nil, nil, err
	}

	entities, edges := sess.Snapshot()
	dto := GraphDTO{
		Path:     sess.Path(),
		Entities: make([]EntityDTO, 0, len(entities)),
		Edges:    make([]EdgeDTO, 0, len(edges)),
		CanUndo:  sess.CanUndo(),
		CanRedo:  sess.CanRedo(),
	}
	for _, e := range entities {
		dto.Entities = append(dto.Entities, entityDTO(e))
	}
	for _, r := range edges {
		dto.Edges = append(dto.Edges, EdgeDTO{From: r.From, To: r.To, Relation: string(r.Relation)})
	}
	return jsonResult(dto), nil, nil
}

func (s *Server) handleListRecentGraphs(ctx context.Context, params ListRecentGraphsParams) (*mcp.CallToolResult, any, error) {
	if s.catalog == nil {
		return nil, nil, fmt.Errorf("recent-files catalog is not configured")
	}
	records, err := s.catalog.Recent(ctx, params.Limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list recent graphs: %w", err)
	}
	return jsonResult(records), nil, nil
}

func entityDTO(e graph.Entity) EntityDTO {
	codes := make([]string, 0, len(e.Addons))
	for _, t := range schema.AttachOrder {
		if e.Addons.Has(t) {
			codes = append(codes, string(t))
		}
	}
	return EntityDTO{
		ID:           e.ID,
		Content:      e.Content,
		DistinctType: string(e.Type),
		AddonTypes:   codes,
		X:            e.X,
		Y:            e.Y,
	}
}

func parseAddonCodes(codes []string) (schema.AddonSet, error) {
	set := schema.NewAddonSet()
	for _, c := range codes {
		parsed, err := schema.ParseAddonTypes(c)
		if err != nil {
			return nil, err
		}
		for t := range parsed {
			set[t] = true
		}
	}
	return set, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	jsonData, _ := json.MarshalIndent(v, "", "  ")
	return textResult(string(jsonData))
}
