package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/Chative-order-agent/server/internal/agent/graph/conversations"
	"github.com/Chative-order-agent/server/internal/agent/graph/nodes"
	"github.com/Chative-order-agent/server/internal/agent/graph/observers"
	"github.com/Chative-order-agent/server/internal/agent/graph/prompts"
	"github.com/Chative-order-agent/server/internal/agent/graph/tools"
	"github.com/Chative-order-agent/server/internal/agent/model"
	errx "github.com/Chative-order-agent/server/internal/core/error"
	"github.com/Chative-order-agent/server/internal/menu"
	"github.com/Chative-order-agent/server/internal/order"
	logx "github.com/Chative-order-agent/server/pkg/logger"
)

const saveTimeout = 5 * time.Second

// Runner drives one conversation turn at a time through the correction loop.
type Runner interface {
	Chat(ctx context.Context, req model.ChatRequest) (*model.ChatResponse, error)
	Start(ctx context.Context, location string) (*model.Session, error)
	Get(ctx context.Context, conversationID string) (*model.Session, error)
}

// Config holds everything needed to compose the ordering graph end-to-end.
// This is a convenience layer over GraphConfig that also constructs the
// Gemini planner and the MessagesManager.
type Config struct {
	APIKey       string
	BaseURL      string
	Planner      model.PlannerModelConfig
	Prompt       model.PromptConfig
	Conversation model.ConversationConfig
	TurnTimeout  time.Duration
	Catalog      *menu.Catalog
	Sessions     model.SessionRepository
	Locker       model.ConversationLocker
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	Planner          einomodel.BaseChatModel
	PlannerModelName string
	TrackCost        bool
	MessagesManager  *conversations.MessagesManager
	Validator        *menu.Validator
	MaxRounds        int
}

// GraphBuilder handles the construction of the correction loop graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.ChatInput, *schema.Message]
}

// BuildOrderingGraph creates the Gemini planner, builds the graph and returns a Runner.
func BuildOrderingGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("menu catalog is nil")
	}

	planner, err := nodes.NewPlannerModel(ctx, nodes.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Planner: &cfg.Planner,
	}, tools.ToolInfos())
	if err != nil {
		return nil, err
	}

	ordering, err := prompts.NewOrdering(cfg.Prompt, cfg.Catalog)
	if err != nil {
		return nil, err
	}

	runnable, err := BuildGraph(ctx, &GraphConfig{
		Planner:          planner,
		PlannerModelName: cfg.Planner.Model,
		TrackCost:        cfg.Planner.TrackCost,
		MessagesManager:  conversations.NewMessagesManager(ordering, cfg.Conversation),
		Validator:        menu.NewValidator(cfg.Catalog),
		MaxRounds:        cfg.Conversation.Correction.MaxRounds,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Ordering graph built successfully")
	return NewRunner(runnable, cfg.Sessions, cfg.Locker, WithTurnTimeout(cfg.TurnTimeout))
}

// BuildGraph constructs and returns the compiled correction loop graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.ChatInput, *schema.Message], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.Planner == nil {
		return nil, fmt.Errorf("planner model is nil")
	}
	if config.MessagesManager == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}
	if config.Validator == nil {
		return nil, fmt.Errorf("validator is nil")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.ChatInput, *schema.Message](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() error {
	cfg := b.config
	steps := []error{
		b.graph.AddLambdaNode(nodes.NodeInputConverter,
			nodes.NewInputConverterNode(cfg.MessagesManager),
			compose.WithNodeName(nodes.NodeInputConverter),
			compose.WithStatePreHandler(nodes.NewInputConverterPreHandler()),
		),
		b.graph.AddChatModelNode(nodes.NodePlanner,
			cfg.Planner,
			compose.WithNodeName(nodes.NodePlanner),
			compose.WithStatePreHandler(nodes.NewPlannerPreHandler(cfg.MaxRounds)),
			compose.WithStatePostHandler(nodes.NewPlannerPostHandler(cfg.PlannerModelName, cfg.TrackCost)),
		),
		b.graph.AddLambdaNode(nodes.NodeDispatcher,
			nodes.NewDispatcherNode(cfg.Validator),
			compose.WithNodeName(nodes.NodeDispatcher),
			compose.WithStatePreHandler(nodes.NewDispatcherPreHandler()),
		),
		b.graph.AddLambdaNode(nodes.NodeFinalizer,
			nodes.NewFinalizerNode(),
			compose.WithNodeName(nodes.NodeFinalizer),
		),
	}
	for _, err := range steps {
		if err != nil {
			logx.Error().Err(err).Msg("Error adding node")
			return fmt.Errorf("error adding node: %w", err)
		}
	}
	return nil
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeInputConverter},
		{nodes.NodeInputConverter, nodes.NodePlanner},
		{nodes.NodeDispatcher, nodes.NodePlanner},
		{nodes.NodeFinalizer, compose.END},
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			logx.Error().Err(err).Str("from", edge[0]).Str("to", edge[1]).Msg("Error adding edge")
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	decisionBranch := compose.NewGraphBranch(
		nodes.NewDispatchCondition(b.config.MaxRounds),
		map[string]bool{
			nodes.NodeDispatcher: true,
			nodes.NodeFinalizer:  true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodePlanner, decisionBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding decision branch")
		return fmt.Errorf("error adding decision branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.ChatInput, *schema.Message], error) {
	// Each round is one planner and one dispatcher step; keep headroom for the
	// converter, the wrap-up planner call and the finalizer.
	maxSteps := 10 + nodes.NormalizeMaxRounds(b.config.MaxRounds)*2
	if maxSteps < 20 {
		maxSteps = 20
	}

	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxSteps), compose.WithGraphName("OrderingGraph"))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Int("max_steps", maxSteps).Msg("Graph compiled successfully")
	return runnable, nil
}

type graphRunner struct {
	runnable    compose.Runnable[model.ChatInput, *schema.Message]
	sessions    model.SessionRepository
	locker      model.ConversationLocker
	turnTimeout time.Duration
	now         func() time.Time
	newID       func() string
}

// RunnerOption customizes a Runner built by NewRunner.
type RunnerOption func(*graphRunner)

// WithTurnTimeout bounds every correction loop. Zero leaves it unbounded.
func WithTurnTimeout(d time.Duration) RunnerOption {
	return func(r *graphRunner) {
		r.turnTimeout = d
	}
}

// NewRunner wraps a compiled graph with session loading, locking and persistence.
func NewRunner(runnable compose.Runnable[model.ChatInput, *schema.Message], sessions model.SessionRepository, locker model.ConversationLocker, opts ...RunnerOption) (Runner, error) {
	if runnable == nil {
		return nil, fmt.Errorf("runnable is nil")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session repository is nil")
	}
	if locker == nil {
		return nil, fmt.Errorf("conversation locker is nil")
	}
	r := &graphRunner{
		runnable: runnable,
		sessions: sessions,
		locker:   locker,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Chat runs one correction loop for the conversation. The session is saved
// even when the planner fails; applied mutations are never rolled back.
func (r *graphRunner) Chat(ctx context.Context, req model.ChatRequest) (*model.ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, errx.InvalidInput("message is required")
	}
	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID == "" {
		conversationID = r.newID()
	}

	unlock, err := r.locker.Lock(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := r.loadOrCreate(ctx, conversationID, req.Location)
	if err != nil {
		return nil, err
	}
	session.RunRef = r.newID()

	ctx = logx.WithConversation(ctx, conversationID, session.RunRef)
	logx.Ctx(ctx).Info().Str("thread_ref", session.ThreadRef).Msg("Correction loop started")

	out, invokeErr := r.invoke(ctx, model.ChatInput{
		Session: session,
		Message: message,
		RunID:   session.RunRef,
	})

	session.UpdatedAt = r.now()
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	saveErr := r.sessions.Save(saveCtx, session)

	if invokeErr != nil {
		logx.Ctx(ctx).Error().Err(invokeErr).
			Interface("violations", order.Outstanding(&session.Order)).
			Msg("Correction loop aborted")
		if saveErr != nil {
			logx.Ctx(ctx).Error().Err(saveErr).Msg("Failed to save session after aborted loop")
		}
		return nil, errx.WrapPlanner(invokeErr)
	}
	if saveErr != nil {
		logx.Ctx(ctx).Error().Err(saveErr).Msg("Failed to save session")
		return nil, saveErr
	}

	resp := &model.ChatResponse{
		ConversationID: conversationID,
		Order:          session.Order,
		Messages:       session.Messages,
		Violations:     order.Outstanding(&session.Order),
		Total:          order.Total(&session.Order),
	}
	if out != nil {
		resp.Reply = out.Content
		if v, ok := out.Extra[nodes.ExtraLimitExceeded].(bool); ok {
			resp.LimitExceeded = v
		}
	}

	logx.Ctx(ctx).Info().
		Bool("committed", order.Committed(&session.Order)).
		Bool("limit_exceeded", resp.LimitExceeded).
		Float64("total", resp.Total).
		Msg("Correction loop finished")
	return resp, nil
}

// invoke runs the graph within the turn timeout so the loop ends before the
// conversation lock can lapse.
func (r *graphRunner) invoke(ctx context.Context, in model.ChatInput) (*schema.Message, error) {
	if r.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.turnTimeout)
		defer cancel()
	}
	out, err := r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()...))
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		err = errors.Join(err, context.DeadlineExceeded)
	}
	return out, err
}

func (r *graphRunner) loadOrCreate(ctx context.Context, conversationID, location string) (*model.Session, error) {
	session, err := r.sessions.Load(ctx, conversationID)
	switch {
	case err == nil:
	case errors.Is(err, errx.ErrSessionNotFound):
		session = model.NewSession(conversationID, r.newID(), r.now())
		logx.Conversation(conversationID).Debug().Msg("Created new session")
	default:
		return nil, err
	}
	if session.Location == "" {
		session.Location = strings.TrimSpace(location)
	}
	return session, nil
}

// Start opens a new conversation seeded with the welcome message.
func (r *graphRunner) Start(ctx context.Context, location string) (*model.Session, error) {
	session := model.NewSession(r.newID(), r.newID(), r.now())
	session.Location = strings.TrimSpace(location)
	session.AddMessage(model.RoleAssistant, conversations.Welcome(session.Location))

	if err := r.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	logx.Conversation(session.ID).Info().Str("location", session.Location).Msg("Conversation started")
	return session, nil
}

func (r *graphRunner) Get(ctx context.Context, conversationID string) (*model.Session, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, errx.InvalidInput("conversation id is required")
	}
	return r.sessions.Load(ctx, conversationID)
}
