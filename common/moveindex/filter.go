package moveindex

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/shuttleops/movesync/common/models"
)

// Filter is an extra eligibility rule over a move, written in CEL.
// The move is bound to the variable "move", e.g.
//
//	move.priority != "ST" || move.load_status == "Empty"
type Filter struct {
	expr string
	prg  cel.Program
}

// CompileFilter compiles expr once. An empty expression yields a nil filter.
func CompileFilter(expr string) (*Filter, error) {
	if expr == "" {
		return nil, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("move", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation error: %w", issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &Filter{expr: expr, prg: prg}, nil
}

// String returns the source expression
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Match evaluates the filter. A nil filter matches everything;
// evaluation errors and non-boolean results do not match.
func (f *Filter) Match(m models.Move) bool {
	if f == nil {
		return true
	}

	out, _, err := f.prg.Eval(map[string]any{
		"move": moveVars(m),
	})
	if err != nil {
		return false
	}

	result, ok := out.Value().(bool)
	return ok && result
}

func moveVars(m models.Move) map[string]any {
	return map[string]any{
		"move_id":          m.ID,
		"container_number": m.ContainerNumber,
		"load_status":      string(m.LoadKind),
		"priority":         m.Priority,
		"customer":         m.Customer,
		"origin":           m.Origin,
		"destination":      m.Destination,
		"carrier_code":     m.CarrierCode,
		"truck_number":     m.TruckNumber,
		"driver_id":        m.DriverID,
		"status":           m.Status,
		"detailed_status":  m.DetailedStatus,
	}
}
