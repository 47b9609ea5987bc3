// internal/service/affiliate/infrastructure/rule/cel_engine.go
package rule

import (
	"fmt"
	"sync"

	"warung/internal/service/affiliate/domain"

	"github.com/google/cel-go/cel"
)

// CELRuleEngineAdapter 是 domain.RuleEngine 接口的具体实现。
// 它使用 cel-go 评估佣金资格表达式。这是一个典型的适配器模式应用，
// 把第三方库的 API 适配到我们自己的领域接口。
type CELRuleEngineAdapter struct {
	env *cel.Env

	mu    sync.RWMutex
	cache map[string]cel.Program // 按表达式文本缓存编译结果
}

// NewCELRuleEngineAdapter 创建规则引擎适配器，声明规则可见的变量。
func NewCELRuleEngineAdapter() (*CELRuleEngineAdapter, error) {
	env, err := cel.NewEnv(
		cel.Variable("order_total", cel.IntType),
		cel.Variable("item_count", cel.IntType),
		cel.Variable("is_new_customer", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &CELRuleEngineAdapter{
		env:   env,
		cache: make(map[string]cel.Program),
	}, nil
}

// Evaluate 实现 domain.RuleEngine。空表达式恒为 true。
func (a *CELRuleEngineAdapter) Evaluate(ruleExpr string, fact domain.Fact) (bool, error) {
	if ruleExpr == "" {
		return true, nil
	}

	prg, err := a.program(ruleExpr)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(map[string]interface{}{
		"order_total":     fact.OrderTotal,
		"item_count":      int64(fact.ItemCount),
		"is_new_customer": fact.IsNewCustomer,
	})
	if err != nil {
		return false, fmt.Errorf("rule evaluation failed: %w", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule did not evaluate to a boolean: %v", out.Value())
	}
	return result, nil
}

func (a *CELRuleEngineAdapter) program(ruleExpr string) (cel.Program, error) {
	a.mu.RLock()
	prg, ok := a.cache[ruleExpr]
	a.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, iss := a.env.Compile(ruleExpr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("invalid commission rule: %w", iss.Err())
	}
	prg, err := a.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build rule program: %w", err)
	}

	a.mu.Lock()
	a.cache[ruleExpr] = prg
	a.mu.Unlock()
	return prg, nil
}
