package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samvad-hq/samvad-fetch/internal/config"
	"github.com/samvad-hq/samvad-fetch/internal/history"
	"github.com/samvad-hq/samvad-fetch/internal/logger"
	"github.com/samvad-hq/samvad-fetch/pkg/fetch"
	"github.com/samvad-hq/samvad-fetch/pkg/httpclient"
	"github.com/samvad-hq/samvad-fetch/pkg/profiles"
	"github.com/samvad-hq/samvad-fetch/pkg/publishers"
)

// Call is one request as requested by the user. Empty fields fall back to the
// selected profile.
type Call struct {
	Profile     string
	BaseURL     string
	Path        string
	Method      fetch.Method
	Payload     json.RawMessage
	Headers     map[string]string
	BearerToken string
	Strict      bool
}

// Runner wires profiles, transport, publishers and history around the translator.
type Runner struct {
	cfg          *config.Config
	profiles     *profiles.Registry
	fanout       *publishers.Fanout
	store        history.Store
	newTransport func(timeout time.Duration) httpclient.Client
	log          logger.Logger
}

// NewRunner builds a runner from config files.
func NewRunner(ctx context.Context, cfg *config.Config, log logger.Logger) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	profileReg, err := loadProfiles(cfg.ProfilesFile, log)
	if err != nil {
		return nil, err
	}

	fanout, err := buildFanout(ctx, cfg.PublishersFile, log)
	if err != nil {
		return nil, err
	}

	storeOpts := history.Options{
		EntryTTL:        cfg.HistoryTTL,
		CleanupInterval: cfg.HistoryCleanupInterval,
	}
	store, err := history.NewStore(cfg.HistoryType, cfg.HistoryPath, storeOpts)
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init history: %w", err)
	}
	log.DebugObj("history initialized", "history_config", map[string]any{
		"type":                     cfg.HistoryType,
		"path":                     cfg.HistoryPath,
		"ttl_seconds":              int(cfg.HistoryTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.HistoryCleanupInterval.Seconds()),
	})
	log.DebugObj("runner ready", "runner_state", map[string]any{
		"profiles_count":   len(profileReg.All()),
		"publishers_count": fanout.Size(),
	})

	return &Runner{
		cfg:      cfg,
		profiles: profileReg,
		fanout:   fanout,
		store:    store,
		newTransport: func(timeout time.Duration) httpclient.Client {
			return httpclient.NewRestyClient(timeout)
		},
		log: log,
	}, nil
}

// loadProfiles reads the profiles file. A missing file yields an empty registry.
func loadProfiles(path string, log logger.Logger) (*profiles.Registry, error) {
	if strings.TrimSpace(path) == "" {
		return profiles.NewRegistry(nil)
	}
	reg, err := profiles.LoadRegistry(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.DebugObj("profiles file not found; continuing without profiles", "profiles_file", path)
		return profiles.NewRegistry(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("load profiles registry: %w", err)
	}

	ids := make([]string, 0)
	for _, p := range reg.All() {
		ids = append(ids, p.ID)
	}
	log.DebugObj("profiles registry loaded", "profiles_meta", map[string]any{
		"count": len(ids),
		"ids":   ids,
	})
	return reg, nil
}

// buildFanout instantiates the enabled publishers. No file means no publishers.
func buildFanout(ctx context.Context, path string, log logger.Logger) (*publishers.Fanout, error) {
	if strings.TrimSpace(path) == "" {
		return publishers.NewFanout(nil), nil
	}

	publisherReg, err := publishers.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}

	enabled := publisherReg.Enabled()
	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.DebugObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubClients), nil
}

// Profiles returns the configured profiles with tokens masked.
func (r *Runner) Profiles() []profiles.Profile {
	all := r.profiles.All()
	for i := range all {
		all[i] = all[i].Masked()
	}
	return all
}

// History returns the most recent journal entries.
func (r *Runner) History(limit int) ([]history.Entry, error) {
	return r.store.Recent(limit)
}

// Execute issues the call and returns its envelope. Transport and decode
// failures are returned as errors; they are still journaled.
func (r *Runner) Execute(ctx context.Context, call Call) (fetch.Envelope, error) {
	if r == nil || r.store == nil {
		return fetch.Envelope{}, fmt.Errorf("runner is not initialized")
	}

	req, policy, timeout, err := r.resolve(call)
	if err != nil {
		return fetch.Envelope{}, err
	}

	recorder := &statusRecorder{next: r.newTransport(timeout)}
	client := fetch.New(recorder, fetch.WithPolicy(policy), fetch.WithLogger(r.log))

	callID := uuid.NewString()
	env, callErr := dispatch(ctx, client, req)

	entry := history.Entry{
		ID:         callID,
		Profile:    call.Profile,
		Method:     string(req.Method),
		URL:        req.URL(),
		StatusCode: recorder.code,
		Success:    callErr == nil && env.OK(),
	}
	if callErr != nil {
		entry.Err = callErr.Error()
	}
	if err := r.store.Record(entry); err != nil {
		r.log.WarnObj("history record failed", "error", err.Error())
	}

	if callErr != nil {
		return fetch.Envelope{}, callErr
	}

	evt := publishers.NewEvent(callID, call.Profile, req, recorder.code, env)
	if n, err := r.fanout.Publish(ctx, evt); err != nil {
		r.log.WarnObj("publish call outcome failed", "publish_result", map[string]any{
			"call_id":   callID,
			"delivered": n,
			"error":     err.Error(),
		})
	}
	return env, nil
}

// resolve merges the call with its profile. Call-level values win.
func (r *Runner) resolve(call Call) (fetch.Request, fetch.Policy, time.Duration, error) {
	var prof profiles.Profile
	if name := strings.TrimSpace(call.Profile); name != "" {
		p, ok := r.profiles.ByID(name)
		if !ok {
			return fetch.Request{}, 0, 0, fmt.Errorf("unknown profile %q", name)
		}
		prof = p
	}

	req := fetch.Request{
		BaseURL:     firstNonEmpty(strings.TrimSpace(call.BaseURL), prof.BaseURL),
		Path:        call.Path,
		Method:      call.Method,
		Headers:     prof.MergeHeaders(call.Headers),
		BearerToken: firstNonEmpty(call.BearerToken, prof.BearerToken),
	}
	if req.BaseURL == "" {
		return fetch.Request{}, 0, 0, fmt.Errorf("base url is required (use a profile or --base-url)")
	}
	if len(call.Payload) > 0 {
		req.Payload = call.Payload
	}

	policy, err := fetch.ParsePolicy(prof.Policy)
	if err != nil {
		return fetch.Request{}, 0, 0, err
	}
	if call.Strict {
		policy = fetch.PolicyStrict
	}

	timeout := r.cfg.RequestTimeout
	if prof.Timeout() > 0 {
		timeout = prof.Timeout()
	}
	return req, policy, timeout, nil
}

// dispatch routes to the fixed-method helpers.
func dispatch(ctx context.Context, c *fetch.Client, req fetch.Request) (fetch.Envelope, error) {
	type raw = json.RawMessage
	switch req.Method {
	case fetch.MethodGet:
		return fetch.Get[raw, raw](ctx, c, req)
	case fetch.MethodPost:
		return fetch.Post[raw, raw](ctx, c, req, req.Payload)
	case fetch.MethodPut:
		return fetch.Put[raw, raw](ctx, c, req, req.Payload)
	case fetch.MethodDelete:
		return fetch.Delete[raw, raw](ctx, c, req)
	default:
		return fetch.Do[raw, raw](ctx, c, req)
	}
}

// Close releases publishers and the history store.
func (r *Runner) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if err := r.fanout.Close(); err != nil {
		errs = append(errs, err)
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close history: %w", err))
		}
	}
	return errors.Join(errs...)
}

// statusRecorder keeps the status code of the single call it forwards.
type statusRecorder struct {
	next httpclient.Client
	code int
}

func (s *statusRecorder) Do(ctx context.Context, method, url string, headers map[string]string, body []byte) (httpclient.Response, error) {
	resp, err := s.next.Do(ctx, method, url, headers, body)
	if err == nil {
		s.code = resp.StatusCode()
	}
	return resp, err
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
