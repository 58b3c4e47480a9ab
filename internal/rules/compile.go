package rules

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

var ErrUnknownKind = errors.New("unknown kind")

// Definition is the serializable form of a ScoringConfig.
type Definition struct {
	Name          string         `yaml:"name" json:"name"`
	AllowNegative bool           `yaml:"allow_negative" json:"allowNegative"`
	Scoring       []RuleDef      `yaml:"scoring" json:"scoring"`
	Bonuses       []RuleDef      `yaml:"bonuses" json:"bonuses"`
	Penalties     []RuleDef      `yaml:"penalties" json:"penalties"`
	Validators    []ValidatorDef `yaml:"validators" json:"validators"`
	Win           WinDef         `yaml:"win" json:"win"`
}

type RuleDef struct {
	ID        string        `yaml:"id" json:"id"`
	On        EventType     `yaml:"on" json:"on"`
	AppliesTo Target        `yaml:"applies_to" json:"appliesTo"`
	Players   []string      `yaml:"players" json:"players"`
	Formula   FormulaDef    `yaml:"formula" json:"formula"`
	When      *PredicateDef `yaml:"when" json:"when"`
}

type FormulaDef struct {
	Kind       string         `yaml:"kind" json:"kind"` // fixed | event_value | card_table | per_card
	Amount     int            `yaml:"amount" json:"amount"`
	Multiplier int            `yaml:"multiplier" json:"multiplier"`
	Table      map[string]int `yaml:"table" json:"table"`
}

type PredicateDef struct {
	Kind  string `yaml:"kind" json:"kind"` // value_at_least | suit_is | cards_at_least
	Value int    `yaml:"value" json:"value"`
	Suit  string `yaml:"suit" json:"suit"`
}

type ValidatorDef struct {
	Kind string `yaml:"kind" json:"kind"` // bid_range | one_bid_per_round
	Min  int    `yaml:"min" json:"min"`
	Max  int    `yaml:"max" json:"max"`
}

type WinDef struct {
	Kind   string `yaml:"kind" json:"kind"` // highest_total | target_points | most_rounds_won
	Target int    `yaml:"target" json:"target"`
	Rounds int    `yaml:"rounds" json:"rounds"`
}

// Compile turns a definition into a ScoringConfig. Every problem in the
// definition is reported, not only the first.
func Compile(def Definition) (ScoringConfig, error) {
	var errs error
	cfg := ScoringConfig{Name: def.Name, AllowNegative: def.AllowNegative}

	for i, rd := range def.Scoring {
		f, err := compileFormula(rd.Formula)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("scoring[%d] %s: %w", i, rd.ID, err))
			continue
		}
		if rd.On == "" {
			errs = multierr.Append(errs, fmt.Errorf("scoring[%d] %s: event type is required", i, rd.ID))
			continue
		}
		if err := checkTarget(rd.AppliesTo); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("scoring[%d] %s: %w", i, rd.ID, err))
			continue
		}
		cfg.Scoring = append(cfg.Scoring, ScoringRule{ID: rd.ID, On: rd.On, AppliesTo: rd.AppliesTo, Players: rd.Players, Formula: f})
	}

	compileConditional := func(section string, defs []RuleDef) []BonusRule {
		var out []BonusRule
		for i, rd := range defs {
			f, err := compileFormula(rd.Formula)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s[%d] %s: %w", section, i, rd.ID, err))
				continue
			}
			if err := checkTarget(rd.AppliesTo); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s[%d] %s: %w", section, i, rd.ID, err))
				continue
			}
			var when Predicate
			if rd.When != nil {
				when, err = compilePredicate(*rd.When)
				if err != nil {
					errs = multierr.Append(errs, fmt.Errorf("%s[%d] %s: %w", section, i, rd.ID, err))
					continue
				}
			}
			out = append(out, BonusRule{ID: rd.ID, On: rd.On, AppliesTo: rd.AppliesTo, Players: rd.Players, When: when, Formula: f})
		}
		return out
	}
	cfg.Bonuses = compileConditional("bonuses", def.Bonuses)
	for _, p := range compileConditional("penalties", def.Penalties) {
		cfg.Penalties = append(cfg.Penalties, PenaltyRule(p))
	}

	var validators []Validator
	for i, vd := range def.Validators {
		switch vd.Kind {
		case "bid_range":
			if vd.Max < vd.Min {
				errs = multierr.Append(errs, fmt.Errorf("validators[%d]: max %d is below min %d", i, vd.Max, vd.Min))
				continue
			}
			validators = append(validators, BidRange(vd.Min, vd.Max))
		case "one_bid_per_round":
			validators = append(validators, OneBidPerRound())
		default:
			errs = multierr.Append(errs, fmt.Errorf("validators[%d]: %w %q", i, ErrUnknownKind, vd.Kind))
		}
	}
	if len(validators) > 0 {
		cfg.PreEventValidate = Chain(validators...)
	}

	switch def.Win.Kind {
	case "", "highest_total":
		cfg.WinEvaluator = HighestTotal()
	case "target_points":
		cfg.WinEvaluator = TargetPoints(def.Win.Target)
	case "most_rounds_won":
		cfg.WinEvaluator = MostRoundsWon(def.Win.Rounds)
	default:
		errs = multierr.Append(errs, fmt.Errorf("win: %w %q", ErrUnknownKind, def.Win.Kind))
	}

	if errs != nil {
		return ScoringConfig{}, errs
	}
	return cfg, nil
}

// checkTarget accepts the known targets; empty means actor.
func checkTarget(t Target) error {
	switch t {
	case "", TargetActor, TargetOthers, TargetAll:
		return nil
	default:
		return fmt.Errorf("applies_to: %w %q", ErrUnknownKind, t)
	}
}

func compileFormula(fd FormulaDef) (Formula, error) {
	switch fd.Kind {
	case "fixed":
		return Fixed(fd.Amount), nil
	case "event_value":
		m := fd.Multiplier
		if m == 0 {
			m = 1
		}
		return EventValue(m), nil
	case "card_table":
		if len(fd.Table) == 0 {
			return nil, errors.New("card_table needs a table")
		}
		return CardTable(fd.Table), nil
	case "per_card":
		return PerCard(fd.Amount), nil
	default:
		return nil, fmt.Errorf("formula: %w %q", ErrUnknownKind, fd.Kind)
	}
}

func compilePredicate(pd PredicateDef) (Predicate, error) {
	switch pd.Kind {
	case "value_at_least":
		return ValueAtLeast(pd.Value), nil
	case "suit_is":
		return SuitIs(pd.Suit), nil
	case "cards_at_least":
		return CardsAtLeast(pd.Value), nil
	default:
		return nil, fmt.Errorf("predicate: %w %q", ErrUnknownKind, pd.Kind)
	}
}

// ParseDefinition decodes a YAML rule file. Unknown keys are an error.
func ParseDefinition(data []byte) (Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return Definition{}, fmt.Errorf("decode rules: %w", err)
	}
	return def, nil
}

func LoadFile(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("read %s: %w", path, err)
	}
	def, err := ParseDefinition(data)
	if err != nil {
		return Definition{}, fmt.Errorf("%s: %w", path, err)
	}
	if def.Name == "" {
		def.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return def, nil
}

// LoadDir compiles every *.yaml / *.yml file in dir, keyed by definition name.
func LoadDir(dir string) (map[string]ScoringConfig, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read rules dir: %w", err)
	}

	var errs error
	out := map[string]ScoringConfig{}
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		def, err := LoadFile(path)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		cfg, err := Compile(def)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		out[def.Name] = cfg
	}
	return out, errs
}
