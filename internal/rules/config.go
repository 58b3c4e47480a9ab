package rules

// RuleContext is what a rule sees when it is evaluated. State and Round are
// read-only views.
type RuleContext struct {
	State MatchState
	Round RoundState
	Event Event
}

type Formula interface {
	Delta(ctx RuleContext) int
}

type Predicate interface {
	Holds(ctx RuleContext) bool
}

type FormulaFunc func(ctx RuleContext) int

func (f FormulaFunc) Delta(ctx RuleContext) int { return f(ctx) }

type PredicateFunc func(ctx RuleContext) bool

func (f PredicateFunc) Holds(ctx RuleContext) bool { return f(ctx) }

// Target selects which players a rule's delta goes to.
type Target string

const (
	TargetActor  Target = "actor"
	TargetOthers Target = "others"
	TargetAll    Target = "all"
)

// ScoringRule adds Formula's delta to points for every targeted player when
// an event of type On is accepted. Players, when set, overrides AppliesTo.
type ScoringRule struct {
	ID        string
	On        EventType
	AppliesTo Target
	Players   []string
	Formula   Formula
}

// BonusRule contributes to points and bonuses when When holds. An empty On
// matches every event type; a nil When always holds.
type BonusRule struct {
	ID        string
	On        EventType
	AppliesTo Target
	Players   []string
	When      Predicate
	Formula   Formula
}

// PenaltyRule mirrors BonusRule but subtracts from points and tracks the
// amount in penalties.
type PenaltyRule BonusRule

// Validator is the game-specific legality check run after structural
// validation. It returns ok=false with a reason to reject.
type Validator interface {
	Validate(state MatchState, evt Event) (reason string, ok bool)
}

type ValidatorFunc func(state MatchState, evt Event) (string, bool)

func (f ValidatorFunc) Validate(state MatchState, evt Event) (string, bool) { return f(state, evt) }

// RoundEndAdjuster corrects the finishing round before its winner is picked.
type RoundEndAdjuster interface {
	AdjustRoundEnd(round *RoundState, state MatchState)
}

type AdjustFunc func(round *RoundState, state MatchState)

func (f AdjustFunc) AdjustRoundEnd(round *RoundState, state MatchState) { f(round, state) }

type WinResult struct {
	Done    bool
	Winners []string
}

type WinEvaluator interface {
	Evaluate(state MatchState) WinResult
}

type WinFunc func(state MatchState) WinResult

func (f WinFunc) Evaluate(state MatchState) WinResult { return f(state) }

// ScoringConfig describes one game's rules. Build it by hand or with Compile.
type ScoringConfig struct {
	Name             string
	Scoring          []ScoringRule
	Bonuses          []BonusRule
	Penalties        []PenaltyRule
	PreEventValidate Validator
	RoundEndAdjust   RoundEndAdjuster
	WinEvaluator     WinEvaluator

	// AllowNegative disables the zero floor on a player's round points.
	AllowNegative bool
}
