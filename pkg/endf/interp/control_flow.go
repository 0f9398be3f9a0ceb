package interp

import (
	"github.com/sambeau/endf/pkg/endf/ast"
	"github.com/sambeau/endf/pkg/endf/errors"
	"github.com/sambeau/endf/pkg/endf/scope"
)

func (it *Interpreter) saveMeta(stmt ast.Statement) {
	if it.mode == ModeWrite {
		it.records.Save(LogEntry{Index: -1, Spec: stmt.String()})
	}
}

func (it *Interpreter) execFor(node *ast.ForStatement) error {
	it.saveMeta(node)
	it.log.Debug("enter %s", node)
	err := it.scope.ForLoop(node.Var, node.Start, node.Stop, func() error {
		return it.execBlock(node.Body)
	})
	if err != nil {
		return err
	}
	it.log.Debug("leave %s", node)
	return nil
}

// execRepeat runs the body until the condition holds, at least once. The
// optional counter starts at its initial value and grows by one per pass.
func (it *Interpreter) execRepeat(node *ast.RepeatStatement) error {
	it.saveMeta(node)
	start := 0
	if node.Var != "" {
		if _, bound := it.scope.LoopValue(node.Var); bound {
			return errors.New(errors.CodeLoopVariableReuse, map[string]any{"Name": node.Var})
		}
		var err error
		if start, err = it.scope.LoopBound("start", node.Var, node.Start); err != nil {
			return err
		}
	}

	for pass := 0; ; pass++ {
		if pass >= it.opts.RepeatLimit {
			return errors.New(errors.CodeRepeatLimitExhausted, map[string]any{"Limit": it.opts.RepeatLimit})
		}
		if node.Var != "" {
			it.scope.BindLoop(node.Var, start+pass)
		}
		if err := it.execBlock(node.Body); err != nil {
			return err
		}
		if !it.proceed(false) {
			break
		}
		done, err := it.evaluator().Condition(node.Until, true)
		if err != nil {
			return err
		}
		if done {
			break
		}
	}
	if node.Var != "" {
		it.scope.UnbindLoop(node.Var)
	}
	return nil
}

func (it *Interpreter) execIf(node *ast.IfStatement) error {
	for _, br := range node.Branches {
		taken, err := it.branchTaken(br)
		if err != nil {
			return err
		}
		if taken {
			return it.execBlock(br.Body)
		}
	}
	if node.HasElse {
		return it.execBlock(node.Else)
	}
	return nil
}

// branchTaken evaluates the head of an if or elif arm. Unbound variables
// make a comparison false.
func (it *Interpreter) branchTaken(br *ast.IfBranch) (bool, error) {
	if br.Lookahead != nil && it.mode == ModeRead {
		return it.lookahead(br)
	}
	it.log.Debug("evaluate %s", br)
	return it.evaluator().Condition(br.Cond, true)
}

// lookahead runs up to N record actions of the branch body speculatively,
// with every mismatch tolerated, so that the condition can see values
// further down the section. Everything the speculative run changed is
// rolled back before the condition's result is returned.
func (it *Interpreter) lookahead(br *ast.IfBranch) (bool, error) {
	n, err := it.evaluator().Value(br.Lookahead)
	if err != nil {
		return false, err
	}
	budget, ok := n.AsInt()
	if !ok {
		return false, errors.New(errors.CodeLookaheadNotInteger, map[string]any{"Value": n.String()})
	}
	if it.budget >= 0 {
		return false, errors.New(errors.CodeNestedLookahead, nil)
	}
	it.log.Debug("lookahead of %d records for %s", budget, br)

	journal := it.scope.Journal()
	mark := journal.Mark()
	records := it.records.Entries()
	policy := it.mapper.Policy
	it.mapper.Policy.IgnoreAllMismatches = true
	it.budget = max(budget, 0)

	runErr := it.execBlock(br.Body)
	it.budget = -1
	var taken bool
	if !errors.HasCode(runErr, errors.CodeNestedLookahead) {
		if runErr != nil {
			it.log.Debug("lookahead stopped early: %v", runErr)
		}
		taken, err = it.evaluator().Condition(br.Cond, true)
	} else {
		err = runErr
	}

	journal.Rollback(mark)
	it.mapper.Policy = policy
	it.records.Restore(records)
	return taken, err
}

func (it *Interpreter) execSection(node *ast.SectionStatement) error {
	it.saveMeta(node)
	if err := it.scope.OpenSection(node.Var, it.mode == ModeRead); err != nil {
		return err
	}
	it.log.Debug("open section %s", scope.PathString(it.scope.Path()))
	if err := it.execBlock(node.Body); err != nil {
		return err
	}
	it.log.Debug("close section %s", node.Var)
	return it.scope.CloseSection()
}
