package rpc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/zhipin-responder/internal/zhipin"
)

const (
	defaultGreetMinScore     = 30
	defaultGreetMaxCount     = 10
	defaultRecommendMinScore = 50
	defaultRecommendMaxCount = 20
)

var (
	errNoProfile = errors.New("no profile loaded for this session, call load_profile first")
	errNoKeyword = errors.New("keyword is required")
)

type tool struct {
	name        string
	description string
	schema      map[string]any
	call        func(ctx context.Context, args map[string]any) (any, error)
}

func (s *Server) tool(name string) (tool, bool) {
	for _, t := range s.tools {
		if t.name == name {
			return t, true
		}
	}
	return tool{}, false
}

// LoginArgs are the arguments of boss_login.
type LoginArgs struct {
	Phone                string `json:"phone"`
	Password             string `json:"password"`
	Headless             bool   `json:"headless"`
	UseProxy             bool   `json:"use_proxy"`
	AntiDetection        bool   `json:"enable_anti_detection"`
	MaxRequestsPerMinute int    `json:"max_requests_per_minute"`
}

type sessionArgs struct {
	SessionID string `json:"session_id"`
}

type searchArgs struct {
	SessionID  string `json:"session_id"`
	Keyword    string `json:"keyword"`
	City       string `json:"city"`
	Experience string `json:"experience"`
	Education  string `json:"education"`
	Salary     string `json:"salary"`
	PageCount  int    `json:"page_count"`
}

func (a searchArgs) params() *zhipin.SearchParams {
	return &zhipin.SearchParams{
		Keyword:    a.Keyword,
		City:       a.City,
		Experience: a.Experience,
		Degree:     a.Education,
		Salary:     a.Salary,
		Pages:      a.PageCount,
	}
}

type greetArgs struct {
	searchArgs    `json:",squash"`
	MinScore      int    `json:"min_score"`
	MaxCount      int    `json:"max_count"`
	CustomMessage string `json:"custom_message"`
}

type profileArgs struct {
	SessionID      string `json:"session_id"`
	zhipin.Profile `json:",squash"`
}

func object(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

var (
	str     = map[string]any{"type": "string"}
	integer = map[string]any{"type": "integer"}
	boolean = map[string]any{"type": "boolean"}
)

func searchProps() map[string]any {
	return map[string]any{
		"session_id": str,
		"keyword":    str,
		"city":       str,
		"experience": str,
		"education":  str,
		"salary":     str,
		"page_count": integer,
	}
}

func (s *Server) toolset() []tool {
	greetProps := searchProps()
	greetProps["min_score"] = integer
	greetProps["max_count"] = integer
	greetProps["custom_message"] = str

	recommendProps := searchProps()
	recommendProps["min_score"] = integer
	recommendProps["max_count"] = integer

	return []tool{
		{
			name:        "boss_login",
			description: "Start a browser session and log in; returns the session_id",
			schema: object(map[string]any{
				"phone":                   str,
				"password":                str,
				"headless":                boolean,
				"use_proxy":               boolean,
				"enable_anti_detection":   boolean,
				"max_requests_per_minute": integer,
			}, "phone", "password"),
			call: s.login,
		},
		{
			name:        "load_profile",
			description: "Attach a candidate profile to a session",
			schema: object(map[string]any{
				"session_id":        str,
				"name":              str,
				"skills":            map[string]any{"type": "array", "items": str},
				"experience_years":  integer,
				"education":         str,
				"expected_position": str,
				"expected_city":     str,
			}, "session_id", "skills"),
			call: s.loadProfile,
		},
		{
			name:        "search_jobs",
			description: "Search listings",
			schema:      object(searchProps(), "session_id", "keyword"),
			call:        s.searchJobs,
		},
		{
			name:        "match_and_greet",
			description: "Search, keep matching listings and greet their recruiters",
			schema:      object(greetProps, "session_id", "keyword"),
			call:        s.matchAndGreet,
		},
		{
			name:        "get_recommended_jobs",
			description: "Search and rank listings against the session profile",
			schema:      object(recommendProps, "session_id"),
			call:        s.recommended,
		},
		{
			name:        "check_login_status",
			description: "Check whether the session is logged in",
			schema:      object(map[string]any{"session_id": str}, "session_id"),
			call:        s.checkLogin,
		},
		{
			name:        "get_profile_info",
			description: "Return the profile attached to a session",
			schema:      object(map[string]any{"session_id": str}, "session_id"),
			call:        s.profileInfo,
		},
		{
			name:        "close_browser",
			description: "Close a session and its browser",
			schema:      object(map[string]any{"session_id": str}, "session_id"),
			call:        s.closeBrowser,
		},
	}
}

func (s *Server) login(ctx context.Context, raw map[string]any) (any, error) {
	args := LoginArgs{AntiDetection: true}
	if err := decode(raw, &args); err != nil {
		return nil, err
	}
	if strings.TrimSpace(args.Phone) == "" || args.Password == "" {
		return nil, errors.New("phone and password are required")
	}

	session := s.factory(args)
	if err := session.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}

	ok, err := session.Login(ctx, args.Phone, args.Password)
	if err != nil || !ok {
		if cerr := session.Close(); cerr != nil {
			s.logger.Warn("failed to close session", zap.Error(cerr))
		}
		if err != nil {
			return nil, fmt.Errorf("logging in: %w", err)
		}
		return map[string]any{"success": false, "message": "login failed, check phone and password"}, nil
	}

	s.register(session)
	return map[string]any{"success": true, "session_id": session.ID()}, nil
}

func (s *Server) loadProfile(_ context.Context, raw map[string]any) (any, error) {
	var args profileArgs
	if err := decode(raw, &args); err != nil {
		return nil, err
	}
	profile := args.Profile
	if len(profile.TopSkills(len(profile.Skills))) == 0 {
		return nil, errors.New("profile needs at least one skill")
	}
	if err := s.setProfile(args.SessionID, &profile); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "profile": profile}, nil
}

func (s *Server) searchJobs(ctx context.Context, raw map[string]any) (any, error) {
	var args searchArgs
	if err := decode(raw, &args); err != nil {
		return nil, err
	}
	if strings.TrimSpace(args.Keyword) == "" {
		return nil, errNoKeyword
	}
	e, err := s.lookup(args.SessionID)
	if err != nil {
		return nil, err
	}

	listings, err := e.session.Search(ctx, args.params())
	if err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "jobs": listings.Items, "total": listings.Len()}, nil
}

func (s *Server) matchAndGreet(ctx context.Context, raw map[string]any) (any, error) {
	args := greetArgs{MinScore: defaultGreetMinScore, MaxCount: defaultGreetMaxCount}
	if err := decode(raw, &args); err != nil {
		return nil, err
	}
	if strings.TrimSpace(args.Keyword) == "" {
		return nil, errNoKeyword
	}
	e, err := s.lookup(args.SessionID)
	if err != nil {
		return nil, err
	}
	if e.profile == nil {
		return nil, errNoProfile
	}

	report, err := e.session.MatchAndOutreach(ctx, args.params(), e.profile, args.MinScore, args.MaxCount, args.CustomMessage)
	if err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "results": report}, nil
}

func (s *Server) recommended(ctx context.Context, raw map[string]any) (any, error) {
	args := greetArgs{MinScore: defaultRecommendMinScore, MaxCount: defaultRecommendMaxCount}
	if err := decode(raw, &args); err != nil {
		return nil, err
	}
	e, err := s.lookup(args.SessionID)
	if err != nil {
		return nil, err
	}
	if e.profile == nil {
		return nil, errNoProfile
	}
	if strings.TrimSpace(args.Keyword) == "" {
		args.Keyword = e.profile.ExpectedPosition
	}
	if strings.TrimSpace(args.Keyword) == "" {
		return nil, errNoKeyword
	}

	ranked, err := e.session.Recommend(ctx, args.params(), e.profile, args.MinScore, args.MaxCount)
	if err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "recommended_jobs": ranked}, nil
}

func (s *Server) checkLogin(ctx context.Context, raw map[string]any) (any, error) {
	var args sessionArgs
	if err := decode(raw, &args); err != nil {
		return nil, err
	}
	e, err := s.lookup(args.SessionID)
	if err != nil {
		return map[string]any{"success": true, "logged_in": false}, nil
	}
	return map[string]any{"success": true, "logged_in": e.session.CheckLogin(ctx), "status": e.session.Status()}, nil
}

func (s *Server) profileInfo(_ context.Context, raw map[string]any) (any, error) {
	var args sessionArgs
	if err := decode(raw, &args); err != nil {
		return nil, err
	}
	e, err := s.lookup(args.SessionID)
	if err != nil {
		return nil, err
	}
	if e.profile == nil {
		return nil, errNoProfile
	}
	return map[string]any{"success": true, "profile": e.profile}, nil
}

func (s *Server) closeBrowser(_ context.Context, raw map[string]any) (any, error) {
	var args sessionArgs
	if err := decode(raw, &args); err != nil {
		return nil, err
	}
	session, ok := s.remove(args.SessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSession, args.SessionID)
	}
	if err := session.Close(); err != nil {
		return nil, err
	}
	return map[string]any{"success": true}, nil
}
