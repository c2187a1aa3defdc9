package tfmodel

import (
	"strings"

	"homewatch/internal/logger"
	"homewatch/internal/tensor"
)

// normalizationScanDepth is how many leading graph operations ExpectsNormalizedInputs inspects.
const normalizationScanDepth = 20

var normalizationHints = []string{"normalization", "normalize", "preprocessing", "divide", "div", "scale"}

// Operation describes one node of the loaded graph.
type Operation struct {
	Name      string
	Type      string
	NumInputs int
}

// Operations returns every operation of the graph in graph order.
func (m *Model) Operations() []Operation {
	if m == nil || m.saved == nil {
		return nil
	}
	tfOps := m.saved.Graph.Operations()
	ops := make([]Operation, 0, len(tfOps))
	for _, op := range tfOps {
		ops = append(ops, Operation{Name: op.Name(), Type: op.Type(), NumInputs: op.NumInputs()})
	}
	return ops
}

// ListOperations logs every operation name and type of the model graph.
func ListOperations(m *Model, logger *logger.Logger) {
	if m == nil || m.saved == nil {
		logger.Warning("No model loaded, nothing to list")
		return
	}
	ops := m.Operations()
	logger.Info("Model %s has %d operations", m.path, len(ops))
	for _, op := range ops {
		logger.Info("Operation: %s (type: %s)", op.Name, op.Type)
		if op.NumInputs > 0 {
			logger.Debug("  %s takes %d inputs", op.Name, op.NumInputs)
		}
	}
}

// AnalyzeTensor logs dtype, shape and element count of t at debug level.
func AnalyzeTensor(t *tensor.Tensor, name string, logger *logger.Logger) {
	if t == nil {
		logger.Warning("Tensor %s is nil", name)
		return
	}
	logger.Debug("Tensor %s: dtype=%v shape=%v elements=%d", name, t.DType, t.Shape, t.Shape.NumElements())
}

// ExpectsNormalizedInputs guesses whether the graph rescales its inputs itself.
// Only the first operations are inspected; a miss means "feed normalized data".
func ExpectsNormalizedInputs(m *Model, logger *logger.Logger) bool {
	ops := m.Operations()
	if len(ops) == 0 {
		logger.Warning("Cannot inspect graph for normalization, no operations")
		return false
	}
	if op, ok := findNormalizationOp(ops); ok {
		logger.Info("Found normalization operation %s (type: %s)", op.Name, op.Type)
		return true
	}
	logger.Info("No normalization operation found in the first %d operations", normalizationScanDepth)
	return false
}

func findNormalizationOp(ops []Operation) (Operation, bool) {
	if len(ops) > normalizationScanDepth {
		ops = ops[:normalizationScanDepth]
	}
	for _, op := range ops {
		name := strings.ToLower(op.Name)
		typ := strings.ToLower(op.Type)
		for _, hint := range normalizationHints {
			if strings.Contains(name, hint) || strings.Contains(typ, hint) {
				return op, true
			}
		}
	}
	return Operation{}, false
}
