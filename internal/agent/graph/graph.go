package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/voice-agent-core/server/internal/agent/completion"
	"github.com/voice-agent-core/server/internal/agent/dispatch"
	"github.com/voice-agent-core/server/internal/agent/graph/conversations"
	"github.com/voice-agent-core/server/internal/agent/graph/nodes"
	"github.com/voice-agent-core/server/internal/agent/graph/observers"
	"github.com/voice-agent-core/server/internal/agent/intent"
	"github.com/voice-agent-core/server/internal/agent/model"
	logx "github.com/voice-agent-core/server/pkg/logger"
)

const graphName = "voice_agent"

// Runner executes the compiled agent graph: dispatch(parse(utterance)).
type Runner interface {
	Invoke(ctx context.Context, in model.QueryInput) (*model.ActionResult, error)
	ClearHistory(ctx context.Context, sessionID string) error
}

// Config holds everything needed to compose the agent end-to-end. It builds
// the Gemini chat models, the completion client and the messages manager.
type Config struct {
	Gemini           model.GeminiConfig
	Conversation     model.ConversationConfig
	ConversationRepo model.ConversationRepository
	Mailer           dispatch.Mailer
}

// GraphConfig holds the collaborators the graph nodes call.
type GraphConfig struct {
	Parser     *intent.Parser
	Dispatcher *dispatch.Dispatcher
}

// GraphBuilder handles the construction of the agent graph.
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.QueryInput, *model.ActionResult]
}

type graphRunner struct {
	runnable compose.Runnable[model.QueryInput, *model.ActionResult]
	parser   *intent.Parser
}

func (r *graphRunner) Invoke(ctx context.Context, in model.QueryInput) (*model.ActionResult, error) {
	out, err := r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()...))
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("agent graph returned no result")
	}
	return out, nil
}

func (r *graphRunner) ClearHistory(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		sessionID = model.DefaultSessionID
	}
	return r.parser.Reset(ctx, sessionID)
}

// BuildAgentGraph creates the chat models, completion client, parser and
// dispatcher, then compiles the graph around them.
func BuildAgentGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.ConversationRepo == nil {
		return nil, fmt.Errorf("conversation repo is nil")
	}
	if cfg.Mailer == nil {
		return nil, fmt.Errorf("mailer is nil")
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:  cfg.Gemini.APIKey,
		BaseURL: cfg.Gemini.BaseURL,
		Gemini:  cfg.Gemini,
	})
	if err != nil {
		return nil, err
	}

	client, err := completion.New(cms, completion.Config{
		Tiers:       cfg.Gemini.Tiers(),
		MaxRetries:  cfg.Gemini.MaxRetries,
		BackoffBase: cfg.Gemini.BackoffBase,
	})
	if err != nil {
		return nil, err
	}

	mm := conversations.NewMessagesManager(cfg.ConversationRepo, cfg.Conversation)
	return NewRunner(ctx, &GraphConfig{
		Parser:     intent.NewParser(client, mm),
		Dispatcher: dispatch.NewDispatcher(cfg.Mailer),
	})
}

// NewRunner compiles the graph over already constructed collaborators.
func NewRunner(ctx context.Context, config *GraphConfig) (Runner, error) {
	runnable, err := BuildGraph(ctx, config)
	if err != nil {
		return nil, err
	}
	logx.Debug().Msg("Agent graph built successfully")
	return &graphRunner{runnable: runnable, parser: config.Parser}, nil
}

// BuildGraph constructs and returns the compiled agent graph.
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.QueryInput, *model.ActionResult], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.Parser == nil {
		return nil, fmt.Errorf("intent parser is nil")
	}
	if config.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is nil")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.QueryInput, *model.ActionResult](
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

// addNodes adds the parser and one node per outcome.
func (b *GraphBuilder) addNodes() error {
	d := b.config.Dispatcher
	steps := []struct {
		name   string
		lambda *compose.Lambda
		opts   []compose.GraphAddNodeOpt
	}{
		{
			name:   nodes.NodeIntentParser,
			lambda: nodes.NewIntentParserNode(b.config.Parser),
			opts: []compose.GraphAddNodeOpt{
				compose.WithStatePreHandler(nodes.NewIntentParserPreHandler()),
				compose.WithStatePostHandler(nodes.NewIntentParserPostHandler()),
			},
		},
		{name: nodes.NodeSendEmail, lambda: nodes.NewSendEmailNode(d)},
		{name: nodes.NodeClarification, lambda: nodes.NewClarificationNode(d)},
		{name: nodes.NodeChatResponse, lambda: nodes.NewChatResponseNode(d)},
		{name: nodes.NodeErrorResponse, lambda: nodes.NewErrorResponseNode(d)},
	}

	for _, s := range steps {
		opts := append([]compose.GraphAddNodeOpt{compose.WithNodeName(s.name)}, s.opts...)
		if s.name != nodes.NodeIntentParser {
			opts = append(opts, compose.WithStatePostHandler(nodes.NewOutcomePostHandler(s.name)))
		}
		if err := b.graph.AddLambdaNode(s.name, s.lambda, opts...); err != nil {
			logx.Error().Err(err).Str("node", s.name).Msg("Error adding node")
			return fmt.Errorf("error adding node %s: %w", s.name, err)
		}
	}
	return nil
}

// addEdges connects START to the parser and every outcome node to END.
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{{compose.START, nodes.NodeIntentParser}}
	for _, n := range nodes.OutcomeNodes {
		edges = append(edges, [2]string{n, compose.END})
	}
	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			logx.Error().Err(err).Str("from", edge[0]).Str("to", edge[1]).Msg("Error adding edge")
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches routes the parsed intent to its outcome node.
func (b *GraphBuilder) addBranches() error {
	ends := make(map[string]bool, len(nodes.OutcomeNodes))
	for _, n := range nodes.OutcomeNodes {
		ends[n] = true
	}
	branch := compose.NewGraphBranch(nodes.NewIntentCondition(), ends)
	if err := b.graph.AddBranch(nodes.NodeIntentParser, branch); err != nil {
		logx.Error().Err(err).Msg("Error adding intent branch")
		return fmt.Errorf("error adding intent branch: %w", err)
	}
	return nil
}

func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.QueryInput, *model.ActionResult], error) {
	runnable, err := b.graph.Compile(ctx, compose.WithGraphName(graphName), compose.WithMaxRunSteps(10))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}
	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
