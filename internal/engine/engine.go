// Package engine ties the render pipeline to node storage, form state,
// sessions and the event bus. It is the only layer the HTTP and WebSocket
// surfaces talk to.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/activity"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/batch"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/event"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/formstate"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/nodestore"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/render"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/session"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/sharedref"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/types"
)

// ErrUnknownRepeater is returned when a repeater id does not name a repeater
// node of the session's tree.
var ErrUnknownRepeater = errors.New("engine: unknown repeater")

// Options configures a Service. Every field is optional.
type Options struct {
	// Resolver computes display values for nodes with a data or formula
	// capability. Nodes without one are served from their mirror slot.
	Resolver batch.ValueResolver
	// Publisher receives domain events.
	Publisher event.Publisher
	// Activity serves the session activity stream. Without it the stream
	// is always empty.
	Activity activity.Store
	// BatchLimit bounds concurrent display resolutions per render.
	BatchLimit int
	Logger     *zap.Logger
}

// Service runs form sessions.
type Service struct {
	nodes    nodestore.Store
	values   formstate.Store
	sessions *session.Manager
	renderer *render.Renderer
	resolver batch.ValueResolver
	bus      event.Publisher
	activity activity.Store
	limit    int
	log      *zap.Logger

	mu         sync.Mutex
	evaluators map[string]*batch.Evaluator
}

// New creates a Service.
func New(nodes nodestore.Store, values formstate.Store, sessions *session.Manager, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		nodes:      nodes,
		values:     values,
		sessions:   sessions,
		renderer:   render.NewRenderer(log.Named("render")),
		resolver:   opts.Resolver,
		bus:        opts.Publisher,
		activity:   opts.Activity,
		limit:      opts.BatchLimit,
		log:        log,
		evaluators: make(map[string]*batch.Evaluator),
	}
}

// View is the result of rendering a session.
type View struct {
	SessionID  string                   `json:"sessionId"`
	TreeID     string                   `json:"treeId"`
	Sections   []render.RenderedSection `json:"sections"`
	Display    map[string]any           `json:"display,omitempty"`
	Generation uint64                   `json:"generation"`
}

// ChangeResult lists the keys a value change wrote.
type ChangeResult struct {
	FieldID string   `json:"fieldId"`
	Keys    []string `json:"keys"`
}

// ActivityPage is one page of a session's activity stream.
type ActivityPage struct {
	Entries    []activity.Entry `json:"entries"`
	NextCursor string           `json:"nextCursor,omitempty"`
	Total      int              `json:"total"`
}

// Activity returns the activity of a session, newest first. Closed and
// expired sessions keep their history.
func (s *Service) Activity(ctx context.Context, sessionID string, opts activity.QueryOptions) (ActivityPage, error) {
	page := ActivityPage{Entries: []activity.Entry{}}
	if s.activity == nil {
		return page, nil
	}
	entries, next, total, err := s.activity.QuerySession(ctx, sessionID, opts)
	if err != nil {
		return ActivityPage{}, fmt.Errorf("query activity: %w", err)
	}
	if entries != nil {
		page.Entries = entries
	}
	page.NextCursor = next
	page.Total = total
	return page, nil
}

func (s *Service) publish(ctx context.Context, evt event.DomainEvent) {
	if s.bus != nil {
		s.bus.Publish(ctx, evt)
	}
}

func (s *Service) index(ctx context.Context, treeID string) (*nodestore.Index, error) {
	nodes, err := s.nodes.LoadTree(ctx, treeID)
	if err != nil {
		return nil, fmt.Errorf("load tree %s: %w", treeID, err)
	}
	return nodestore.NewIndex(nodes), nil
}

// Trees lists the stored trees.
func (s *Service) Trees(ctx context.Context) ([]string, error) {
	return s.nodes.Trees(ctx)
}

// ImportTree replaces the nodes of treeID.
func (s *Service) ImportTree(ctx context.Context, treeID string, nodes []types.TreeNode) (int, error) {
	flat := nodestore.Flatten(nodes)
	for i := range flat {
		flat[i].TreeID = treeID
	}

	existing, err := s.nodes.LoadTree(ctx, treeID)
	if err != nil && !errors.Is(err, nodestore.ErrNotFound) {
		return 0, fmt.Errorf("load tree %s: %w", treeID, err)
	}
	if len(existing) > 0 {
		ids := make([]string, len(existing))
		for i, n := range existing {
			ids[i] = n.ID
		}
		if err := s.nodes.DeleteNodes(ctx, ids); err != nil {
			return 0, fmt.Errorf("clear tree %s: %w", treeID, err)
		}
	}
	if err := s.nodes.SaveNodes(ctx, flat); err != nil {
		return 0, fmt.Errorf("save tree %s: %w", treeID, err)
	}
	s.log.Info("tree imported", zap.String("tree_id", treeID), zap.Int("nodes", len(flat)))
	return len(flat), nil
}

// SharedReferences returns the distinct shared references reachable from
// nodeID.
func (s *Service) SharedReferences(ctx context.Context, treeID, nodeID string) ([]string, error) {
	idx, err := s.index(ctx, treeID)
	if err != nil {
		return nil, err
	}
	if _, ok := idx.Node(nodeID); !ok {
		return nil, fmt.Errorf("node %s: %w", nodeID, nodestore.ErrNotFound)
	}
	return sharedref.Unique(sharedref.FindAll(nodeID, idx, nil)), nil
}

// RenderTree renders treeID against values without a session.
func (s *Service) RenderTree(ctx context.Context, treeID string, values types.FormValues) ([]render.RenderedSection, error) {
	idx, err := s.index(ctx, treeID)
	if err != nil {
		return nil, err
	}
	return s.renderer.Render(render.BuildSections(idx, ""), idx, values), nil
}

// CreateSession opens a session on an existing tree, optionally seeded with
// initial values.
func (s *Service) CreateSession(ctx context.Context, treeID string, initial map[string]any) (*session.Session, error) {
	if _, err := s.index(ctx, treeID); err != nil {
		return nil, err
	}
	sess := s.sessions.Create(treeID)
	if len(initial) > 0 {
		if err := s.values.SetMany(ctx, sess.ID, initial); err != nil {
			s.sessions.Remove(sess.ID)
			return nil, fmt.Errorf("seed session values: %w", err)
		}
	}
	s.log.Info("session created", zap.String("session_id", sess.ID), zap.String("tree_id", treeID))
	return sess, nil
}

// Session returns a live session.
func (s *Service) Session(id string) (*session.Session, error) {
	return s.sessions.Get(id)
}

// Values returns the session's current form values.
func (s *Service) Values(ctx context.Context, sessionID string) (types.FormValues, error) {
	if _, err := s.sessions.Get(sessionID); err != nil {
		return nil, err
	}
	return s.values.Snapshot(ctx, sessionID)
}

// Render runs a full render pass for the session: pipeline on every
// section, visibility filtering and display value prefetch.
func (s *Service) Render(ctx context.Context, sessionID string) (View, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return View{}, err
	}
	idx, err := s.index(ctx, sess.TreeID)
	if err != nil {
		return View{}, err
	}
	values, err := s.values.Snapshot(ctx, sessionID)
	if err != nil {
		return View{}, fmt.Errorf("load values: %w", err)
	}

	rendered := s.renderer.Render(render.BuildSections(idx, ""), idx, values)
	sess.SetRendered(rendered)
	visible := render.Filter(rendered)

	ev := s.evaluator(sessionID)
	targets := batch.Targets(render.Fields(visible))
	resolver := batch.NewMirrorResolver(idx, s.resolver)
	if _, err := ev.Prefetch(ctx, resolver, sess.TreeID, targets, values); err != nil {
		switch {
		case errors.Is(err, batch.ErrStale):
		case ctx.Err() != nil:
			return View{}, err
		default:
			s.log.Warn("display prefetch failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	display, gen := ev.Values()

	return View{
		SessionID:  sessionID,
		TreeID:     sess.TreeID,
		Sections:   visible,
		Display:    display,
		Generation: gen,
	}, nil
}

func (s *Service) evaluator(sessionID string) *batch.Evaluator {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.evaluators[sessionID]
	if !ok {
		ev = batch.NewEvaluator(s.limit, s.log.Named("batch"))
		s.evaluators[sessionID] = ev
	}
	return ev
}
