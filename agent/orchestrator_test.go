package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"nlcp/agent"
	"nlcp/aitools"
	"nlcp/finance"
	"nlcp/llm"
	"nlcp/store"
	"nlcp/streamers"
)

// countingTool records how often it runs.
type countingTool struct {
	calls atomic.Int32
}

func (t *countingTool) ToolName() string        { return "lookup" }
func (t *countingTool) ToolDescription() string { return "looks something up" }
func (t *countingTool) ToolPayloadSchema() aitools.Schema {
	return aitools.Schema{
		Type:       aitools.TypeObject,
		Properties: aitools.PropertyMap{"key": {Type: aitools.TypeString}},
		Required:   []string{"key"},
	}
}

func (t *countingTool) Call(_ context.Context, payload string) aitools.Result {
	t.calls.Add(1)
	args, err := aitools.ParsePayload(payload)
	if err != nil {
		return aitools.Fail(err)
	}
	return aitools.OK(map[string]any{"key": args["key"], "value": "found"})
}

// scriptedOracle replays a fixed list of responses, repeating the last one.
type scriptedOracle struct {
	mu       sync.Mutex
	script   []func(in *agent.OracleContext) (agent.Action, error)
	contexts []agent.OracleContext
}

func (o *scriptedOracle) Propose(_ context.Context, in *agent.OracleContext) (agent.Action, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	snapshot := *in
	snapshot.Scratchpad = append([]agent.Step(nil), in.Scratchpad...)
	o.contexts = append(o.contexts, snapshot)
	i := min(len(o.contexts)-1, len(o.script)-1)
	return o.script[i](in)
}

func (o *scriptedOracle) calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.contexts)
}

func answer(text string) func(*agent.OracleContext) (agent.Action, error) {
	return func(*agent.OracleContext) (agent.Action, error) {
		return agent.Action{Kind: agent.FinalAnswer, Text: text}, nil
	}
}

func call(tool string, input map[string]any) func(*agent.OracleContext) (agent.Action, error) {
	return func(*agent.OracleContext) (agent.Action, error) {
		return agent.Action{Kind: agent.ToolCall, Tool: tool, Input: input}, nil
	}
}

func garbled(*agent.OracleContext) (agent.Action, error) {
	return agent.DecodeAction("I think the answer is probably 42")
}

var _ = Describe("Orchestration loop", func() {
	var (
		ctx    context.Context
		reg    *aitools.Registry
		lookup *countingTool
	)

	newAgent := func(oracle agent.Oracle, maxIterations int) *agent.Agent {
		a, err := agent.New(ctx, agent.Options{Registry: reg, Oracle: oracle, MaxIterations: maxIterations})
		Expect(err).NotTo(HaveOccurred())
		return a
	}

	BeforeEach(func() {
		ctx = context.Background()
		lookup = &countingTool{}
		reg = aitools.NewRegistry(time.Second, nil)
		Expect(reg.Register("test", lookup)).To(Succeed())
	})

	It("answers directly without calling tools", func() {
		oracle := &scriptedOracle{script: []func(*agent.OracleContext) (agent.Action, error){answer("Hello there.")}}
		res, err := newAgent(oracle, 3).HandleTurn(ctx, "hi", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.State).To(Equal(agent.StateDone))
		Expect(res.FinalText).To(Equal("Hello there."))
		Expect(res.Response).To(MatchJSON(`"Hello there."`))
		Expect(res.Trace).To(BeEmpty())
		Expect(res.Failure).To(BeNil())
		Expect(res.TurnID).NotTo(BeEmpty())
	})

	It("returns a JSON answer as structured data", func() {
		oracle := &scriptedOracle{script: []func(*agent.OracleContext) (agent.Action, error){
			answer(`[{"client_id": "C7", "portfolio_value": 92.6}]`),
		}}
		res, _ := newAgent(oracle, 3).HandleTurn(ctx, "top portfolio?", nil)
		Expect(res.Response).To(MatchJSON(`[{"client_id": "C7", "portfolio_value": 92.6}]`))
	})

	It("rejects an empty message", func() {
		oracle := &scriptedOracle{script: []func(*agent.OracleContext) (agent.Action, error){answer("x")}}
		_, err := newAgent(oracle, 3).HandleTurn(ctx, "   ", nil)
		Expect(err).To(MatchError(agent.ErrEmptyMessage))
		Expect(oracle.calls()).To(Equal(0))
	})

	It("feeds observations back and finishes", func() {
		oracle := &scriptedOracle{script: []func(*agent.OracleContext) (agent.Action, error){
			call("lookup", map[string]any{"key": "a"}),
			func(in *agent.OracleContext) (agent.Action, error) {
				Expect(in.Scratchpad).To(HaveLen(1))
				Expect(in.Scratchpad[0].Observation).To(ContainSubstring(`"found"`))
				return agent.Action{Kind: agent.FinalAnswer, Text: "done"}, nil
			},
		}}
		res, _ := newAgent(oracle, 3).HandleTurn(ctx, "look up a", nil)
		Expect(res.State).To(Equal(agent.StateDone))
		Expect(res.Trace).To(HaveLen(1))
		Expect(res.Trace[0].Tool).To(Equal("lookup"))
		Expect(res.Trace[0].Input).To(Equal(map[string]any{"key": "a"}))
		Expect(lookup.calls.Load()).To(BeEquivalentTo(1))
	})

	Describe("iteration bound", func() {
		It("fails at exactly the bound and never runs the extra call", func() {
			oracle := &scriptedOracle{script: []func(*agent.OracleContext) (agent.Action, error){
				call("lookup", map[string]any{"key": "again"}),
			}}
			res, err := newAgent(oracle, 3).HandleTurn(ctx, "loop forever", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.State).To(Equal(agent.StateFailed))
			Expect(res.Failure.Kind).To(Equal(agent.FailureIterationLimit))
			Expect(lookup.calls.Load()).To(BeEquivalentTo(3))
			Expect(res.Trace).To(HaveLen(3))
			Expect(oracle.calls()).To(Equal(4))
		})

		It("synthesizes a partial answer from the scratchpad", func() {
			oracle := &scriptedOracle{script: []func(*agent.OracleContext) (agent.Action, error){
				call("lookup", map[string]any{"key": "again"}),
			}}
			res, _ := newAgent(oracle, 2).HandleTurn(ctx, "loop forever", nil)
			Expect(res.FinalText).To(ContainSubstring("within 2 tool calls"))
			Expect(res.FinalText).To(ContainSubstring("Partial results"))
			Expect(res.FinalText).To(ContainSubstring("lookup"))
		})

		It("still accepts an answer proposed after the last allowed call", func() {
			oracle := &scriptedOracle{script: []func(*agent.OracleContext) (agent.Action, error){
				call("lookup", map[string]any{"key": "a"}),
				call("lookup", map[string]any{"key": "b"}),
				answer("two lookups were enough"),
			}}
			res, _ := newAgent(oracle, 2).HandleTurn(ctx, "q", nil)
			Expect(res.State).To(Equal(agent.StateDone))
			Expect(res.Trace).To(HaveLen(2))
		})

		It("counts failed calls toward the bound", func() {
			oracle := &scriptedOracle{script: []func(*agent.OracleContext) (agent.Action, error){
				call("no_such_tool", map[string]any{}),
			}}
			res, _ := newAgent(oracle, 2).HandleTurn(ctx, "q", nil)
			Expect(res.Failure.Kind).To(Equal(agent.FailureIterationLimit))
			Expect(res.FinalText).To(ContainSubstring("No data was retrieved"))
		})
	})

	Describe("recoverable tool errors", func() {
		It("reports an unknown tool as an observation", func() {
			oracle := &scriptedOracle{script: []func(*agent.OracleContext) (agent.Action, error){
				call("get_weather", map[string]any{}),
				answer("sorry"),
			}}
			res, _ := newAgent(oracle, 3).HandleTurn(ctx, "q", nil)
			Expect(res.State).To(Equal(agent.StateDone))
			Expect(res.Trace[0].ErrorKind).To(Equal(aitools.KindUnknownTool))
			Expect(res.Trace[0].Observation).To(HavePrefix("Error [UnknownTool]"))
		})

		It("never runs a tool with invalid arguments", func() {
			oracle := &scriptedOracle{script: []func(*agent.OracleContext) (agent.Action, error){
				call("lookup", map[string]any{"key": 7}),
				answer("sorry"),
			}}
			res, _ := newAgent(oracle, 3).HandleTurn(ctx, "q", nil)
			Expect(res.Trace[0].ErrorKind).To(Equal(aitools.KindInvalidArgument))
			Expect(lookup.calls.Load()).To(BeZero())
		})
	})

	Describe("oracle decode errors", func() {
		It("re-prompts once with the rejected output", func() {
			oracle := &scriptedOracle{script: []func(*agent.OracleContext) (agent.Action, error){
				garbled,
				answer("42"),
			}}
			res, _ := newAgent(oracle, 3).HandleTurn(ctx, "q", nil)
			Expect(res.State).To(Equal(agent.StateDone))
			Expect(oracle.calls()).To(Equal(2))
			Expect(oracle.contexts[0].Rejected).To(BeNil())
			Expect(oracle.contexts[1].Rejected).NotTo(BeNil())
			Expect(oracle.contexts[1].Rejected.Output).To(Equal("I think the answer is probably 42"))
		})

		It("fails on the second consecutive decode error", func() {
			oracle := &scriptedOracle{script: []func(*agent.OracleContext) (agent.Action, error){garbled}}
			res, _ := newAgent(oracle, 3).HandleTurn(ctx, "q", nil)
			Expect(res.State).To(Equal(agent.StateFailed))
			Expect(res.Failure.Kind).To(Equal(agent.FailureOracleDecode))
			Expect(oracle.calls()).To(Equal(2))
			Expect(res.FinalText).NotTo(BeEmpty())
		})

		It("allows one retry per step", func() {
			oracle := &scriptedOracle{script: []func(*agent.OracleContext) (agent.Action, error){
				garbled,
				call("lookup", map[string]any{"key": "a"}),
				garbled,
				answer("ok"),
			}}
			res, _ := newAgent(oracle, 3).HandleTurn(ctx, "q", nil)
			Expect(res.State).To(Equal(agent.StateDone))
			Expect(res.Trace).To(HaveLen(1))
		})
	})

	It("fails with OracleUnavailable when the oracle errors", func() {
		oracle := agent.OracleFunc(func(context.Context, *agent.OracleContext) (agent.Action, error) {
			return agent.Action{}, errors.New("connection refused")
		})
		res, err := newAgent(oracle, 3).HandleTurn(ctx, "q", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.State).To(Equal(agent.StateFailed))
		Expect(res.Failure.Kind).To(Equal(agent.FailureOracleUnavailable))
		Expect(res.FinalText).To(ContainSubstring("connection refused"))
		Expect(res.Response).To(MatchJSON(`"` + res.FinalText + `"`))
	})

	It("fails with TurnTimeout when the turn budget runs out", func() {
		oracle := agent.OracleFunc(func(ctx context.Context, _ *agent.OracleContext) (agent.Action, error) {
			<-ctx.Done()
			return agent.Action{}, ctx.Err()
		})
		a, err := agent.New(ctx, agent.Options{Registry: reg, Oracle: oracle, TurnTimeout: 50 * time.Millisecond})
		Expect(err).NotTo(HaveOccurred())

		start := time.Now()
		res, _ := a.HandleTurn(ctx, "q", nil)
		Expect(time.Since(start)).To(BeNumerically("<", 2*time.Second))
		Expect(res.State).To(Equal(agent.StateFailed))
		Expect(res.Failure.Kind).To(Equal(agent.FailureTurnTimeout))
	})

	It("reports cancellation by the caller", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		oracle := &scriptedOracle{script: []func(*agent.OracleContext) (agent.Action, error){answer("x")}}
		res, _ := newAgent(oracle, 3).HandleTurn(cctx, "q", nil)
		Expect(res.Failure.Kind).To(Equal(agent.FailureCanceled))
		Expect(oracle.calls()).To(BeZero())
	})

	It("passes history through without modifying it", func() {
		history := []llm.Message{
			{Role: llm.RoleUser, Content: "who is C7?"},
			{Role: llm.RoleAssistant, Content: "Dev Malhotra."},
		}
		before := append([]llm.Message(nil), history...)

		oracle := &scriptedOracle{script: []func(*agent.OracleContext) (agent.Action, error){
			call("lookup", map[string]any{"key": "a"}),
			answer("ok"),
		}}
		_, err := newAgent(oracle, 3).HandleTurn(ctx, "and their RM?", history)
		Expect(err).NotTo(HaveOccurred())
		Expect(history).To(Equal(before))
		Expect(oracle.contexts[0].History).To(Equal(before))
		Expect(oracle.contexts[0].UserMessage).To(Equal("and their RM?"))
	})

	It("publishes loop events in order", func() {
		oracle := &scriptedOracle{script: []func(*agent.OracleContext) (agent.Action, error){
			call("lookup", map[string]any{"key": "a"}),
			answer("ok"),
		}}
		rec := streamers.NewStoringTurnHandler("t1", nil, nil)
		_, err := newAgent(oracle, 3).Stream(ctx, "q", nil, rec)
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Types()).To(Equal([]streamers.EventType{
			streamers.EventThinking,
			streamers.EventToolCall,
			streamers.EventToolResult,
			streamers.EventThinking,
			streamers.EventAnswer,
		}))
	})

	It("runs under a caller-supplied turn id", func() {
		oracle := &scriptedOracle{script: []func(*agent.OracleContext) (agent.Action, error){answer("ok")}}
		res, err := newAgent(oracle, 3).HandleTurn(agent.WithTurnID(ctx, "turn-42"), "q", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.TurnID).To(Equal("turn-42"))

		res, err = newAgent(oracle, 3).HandleTurn(ctx, "q", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.TurnID).NotTo(BeEmpty())
		Expect(res.TurnID).NotTo(Equal("turn-42"))
	})

	It("runs concurrent turns independently", func() {
		oracle := agent.OracleFunc(func(_ context.Context, in *agent.OracleContext) (agent.Action, error) {
			if len(in.Scratchpad) == 0 {
				return agent.Action{Kind: agent.ToolCall, Tool: "lookup", Input: map[string]any{"key": in.UserMessage}}, nil
			}
			return agent.Action{Kind: agent.FinalAnswer, Text: in.UserMessage}, nil
		})
		a := newAgent(oracle, 3)

		const n = 16
		results := make([]agent.TurnResult, n)
		var wg sync.WaitGroup
		for i := range n {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				res, err := a.HandleTurn(ctx, string(rune('a'+i)), nil)
				Expect(err).NotTo(HaveOccurred())
				results[i] = res
			}()
		}
		wg.Wait()

		for i, res := range results {
			Expect(res.State).To(Equal(agent.StateDone))
			Expect(res.Trace).To(HaveLen(1))
			Expect(res.Trace[0].Input["key"]).To(Equal(string(rune('a' + i))))
			Expect(res.FinalText).To(Equal(string(rune('a' + i))))
		}
		Expect(lookup.calls.Load()).To(BeEquivalentTo(n))
	})
})

var _ = Describe("Cross-store lookups", func() {
	It("chains a portfolio lookup into a profile and transaction lookup", func() {
		ctx := context.Background()
		f := store.SampleFixtures()
		clients := store.NewMemoryClientStore(f.Clients)
		portfolios := store.NewMemoryPortfolioStore(f.Portfolios, f.Transactions)
		reg := aitools.NewRegistry(time.Second, nil)
		Expect(reg.Register(finance.CatalogClients, finance.ClientTools(clients)...)).To(Succeed())
		Expect(reg.Register(finance.CatalogPortfolios, finance.PortfolioTools(portfolios, clients)...)).To(Succeed())

		// Each step reads the identifier from the previous observation.
		oracle := agent.OracleFunc(func(_ context.Context, in *agent.OracleContext) (agent.Action, error) {
			switch len(in.Scratchpad) {
			case 0:
				return agent.Action{Kind: agent.ToolCall, Tool: "get_top_n_portfolios", Input: map[string]any{"limit": 1}}, nil
			case 1:
				var top []finance.PortfolioSnapshot
				if err := json.Unmarshal([]byte(in.Scratchpad[0].Observation), &top); err != nil || len(top) != 1 {
					return agent.Action{}, errors.New("unexpected observation")
				}
				return agent.Action{Kind: agent.ToolCall, Tool: "get_client_profile_by_id", Input: map[string]any{"client_id": top[0].ClientID}}, nil
			case 2:
				var profile finance.Client
				if err := json.Unmarshal([]byte(in.Scratchpad[1].Observation), &profile); err != nil {
					return agent.Action{}, err
				}
				return agent.Action{Kind: agent.ToolCall, Tool: "get_client_transactions", Input: map[string]any{
					"client_id":  profile.ClientID,
					"start_date": "2024-03-01",
				}}, nil
			default:
				var profile finance.Client
				_ = json.Unmarshal([]byte(in.Scratchpad[1].Observation), &profile)
				return agent.Action{Kind: agent.FinalAnswer, Text: profile.Name + " has the largest portfolio."}, nil
			}
		})

		a, err := agent.New(ctx, agent.Options{Registry: reg, Oracle: oracle})
		Expect(err).NotTo(HaveOccurred())

		res, err := a.HandleTurn(ctx, "Who has the largest portfolio and what did they trade since March?", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.State).To(Equal(agent.StateDone))
		Expect(res.FinalText).To(Equal("Dev Malhotra has the largest portfolio."))

		Expect(res.Trace).To(HaveLen(3))
		Expect(res.Trace[0].Tool).To(Equal("get_top_n_portfolios"))
		Expect(res.Trace[1].Input).To(HaveKeyWithValue("client_id", "C7"))
		Expect(res.Trace[2].Observation).To(ContainSubstring("INFY"))
		Expect(res.Trace[2].Observation).To(ContainSubstring("RELIANCE"))
		Expect(res.Trace[2].Observation).NotTo(ContainSubstring("TCS"))
		Expect(clients.Opens()).To(Equal(1))
		Expect(portfolios.Opens()).To(Equal(2))
	})
})
