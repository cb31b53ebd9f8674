// Package rpc exposes sessions as JSON-RPC tools over HTTP.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/zhipin-responder/internal/matching"
	"github.com/spigell/zhipin-responder/internal/responder"
	"github.com/spigell/zhipin-responder/internal/zhipin"
)

const (
	ServiceName     = "zhipin-responder"
	protocolVersion = "2024-11-05"
	jsonRPCVersion  = "2.0"

	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInternalError  = -32603
)

var ErrUnknownSession = errors.New("unknown session")

// Session is the part of responder.Session the tools drive.
type Session interface {
	ID() string
	Start(ctx context.Context) error
	Login(ctx context.Context, phone, password string) (bool, error)
	CheckLogin(ctx context.Context) bool
	Search(ctx context.Context, params *zhipin.SearchParams) (*zhipin.Listings, error)
	Recommend(ctx context.Context, params *zhipin.SearchParams, profile *zhipin.Profile, minScore, maxCount int) ([]matching.Ranked, error)
	MatchAndOutreach(ctx context.Context, params *zhipin.SearchParams, profile *zhipin.Profile, minScore, maxCount int, template string) (*responder.BatchReport, error)
	Status() responder.Status
	Close() error
}

// Factory builds an unstarted session for a login request.
type Factory func(args LoginArgs) Session

type entry struct {
	session Session
	profile *zhipin.Profile
}

// Server routes JSON-RPC calls to sessions held in a registry keyed by
// session id.
type Server struct {
	app     *fiber.App
	factory Factory
	version string
	logger  *zap.Logger
	tools   []tool

	mu       sync.Mutex
	sessions map[string]*entry
}

func New(factory Factory, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		factory:  factory,
		version:  version,
		logger:   logger,
		sessions: map[string]*entry{},
	}
	s.tools = s.toolset()

	app := fiber.New(fiber.Config{
		AppName:               ServiceName,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})
	app.Use(recover.New())
	app.Use(healthcheck.New())

	app.Get("/", s.root)
	app.Get("/health", s.health)
	app.Post("/mcp", s.mcp)

	s.app = app
	return s
}

// App returns the HTTP application.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("serving", zap.String("listen", addr))
	return s.app.Listen(addr)
}

// Shutdown stops the listener and closes every open session.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = map[string]*entry{}
	s.mu.Unlock()

	var errs []error
	for id, e := range sessions {
		if err := e.session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing session %s: %w", id, err))
		}
	}
	if err := s.app.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Server) root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "service": ServiceName, "version": s.version})
}

func (s *Server) health(c *fiber.Ctx) error {
	s.mu.Lock()
	n := len(s.sessions)
	s.mu.Unlock()
	return c.JSON(fiber.Map{"status": "healthy", "sessions": n})
}

type request struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      any            `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type response struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (s *Server) mcp(c *fiber.Ctx) error {
	var req request
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.JSON(response{JSONRPC: jsonRPCVersion, Error: &rpcError{Code: codeParseError, Message: err.Error()}})
	}

	result, rerr := s.dispatch(c.UserContext(), req)
	resp := response{JSONRPC: jsonRPCVersion, ID: req.ID, Result: result, Error: rerr}
	return c.JSON(resp)
}

func (s *Server) dispatch(ctx context.Context, req request) (any, *rpcError) {
	switch req.Method {
	case "initialize":
		return fiber.Map{
			"protocolVersion": protocolVersion,
			"serverInfo":      fiber.Map{"name": ServiceName, "version": s.version},
			"capabilities":    fiber.Map{"tools": fiber.Map{}},
		}, nil

	case "tools/list":
		list := make([]fiber.Map, 0, len(s.tools))
		for _, t := range s.tools {
			list = append(list, fiber.Map{"name": t.name, "description": t.description, "inputSchema": t.schema})
		}
		return fiber.Map{"tools": list}, nil

	case "tools/call":
		var params callParams
		if err := decode(req.Params, &params); err != nil {
			return nil, &rpcError{Code: codeInternalError, Message: err.Error()}
		}
		t, ok := s.tool(params.Name)
		if !ok {
			return nil, &rpcError{Code: codeMethodNotFound, Message: "Tool not found: " + params.Name}
		}

		log := s.logger.With(zap.String("tool", t.name))
		out, err := t.call(ctx, params.Arguments)
		if err != nil {
			log.Error("tool failed", zap.Error(err))
			return nil, &rpcError{Code: codeInternalError, Message: err.Error()}
		}
		text, err := json.Marshal(out)
		if err != nil {
			return nil, &rpcError{Code: codeInternalError, Message: err.Error()}
		}
		log.Debug("tool finished")
		return fiber.Map{"content": []content{{Type: "text", Text: string(text)}}}, nil

	default:
		return nil, &rpcError{Code: codeMethodNotFound, Message: "Method not found: " + req.Method}
	}
}

func (s *Server) register(session Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = &entry{session: session}
}

// lookup returns a copy of the registry entry.
func (s *Server) lookup(id string) (entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return entry{}, fmt.Errorf("%w: %q", ErrUnknownSession, id)
	}
	return *e, nil
}

func (s *Server) setProfile(id string, profile *zhipin.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSession, id)
	}
	e.profile = profile
	return nil
}

func (s *Server) remove(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	delete(s.sessions, id)
	return e.session, true
}

// decode maps loosely typed JSON arguments onto a struct through its json
// tags.
func decode(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
