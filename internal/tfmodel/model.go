// Package tfmodel loads TensorFlow SavedModel bundles and runs them with
// tensor.Tensor inputs and outputs.
package tfmodel

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	tf "github.com/tensorflow/tensorflow/tensorflow/go"
	"homewatch/internal/logger"
	"homewatch/internal/tensor"
)

// ServeTag is the meta graph tag exported for inference.
const ServeTag = "serve"

// DefaultSignature is the signature key most exported models use.
const DefaultSignature = "serving_default"

var ErrModelNotLoaded = errors.New("model not loaded")

// Signature lists the named inputs and outputs of one graph entry point.
type Signature struct {
	Key        string
	MethodName string
	Inputs     map[string]tensor.Spec // keyed by signature argument name
	Outputs    map[string]tensor.Spec
}

// InputNames returns the sorted signature input names.
func (s Signature) InputNames() []string { return sortedKeys(s.Inputs) }

// OutputNames returns the sorted signature output names.
func (s Signature) OutputNames() []string { return sortedKeys(s.Outputs) }

// MissingEndpoints returns the graph endpoints, in "op:index" form, that s
// declares neither as input nor as output.
func (s Signature) MissingEndpoints(endpoints ...string) []string {
	declared := make(map[string]bool, len(s.Inputs)+len(s.Outputs))
	for _, spec := range s.Inputs {
		declared[normalizeEndpoint(spec.Name)] = true
	}
	for _, spec := range s.Outputs {
		declared[normalizeEndpoint(spec.Name)] = true
	}
	var missing []string
	for _, e := range endpoints {
		if !declared[normalizeEndpoint(e)] {
			missing = append(missing, e)
		}
	}
	return missing
}

// Model is a loaded SavedModel. It is read-only after Load and safe for
// concurrent Run calls.
type Model struct {
	path       string
	saved      *tf.SavedModel
	signatures map[string]Signature
	// graph endpoint name ("op:0") -> declared input spec
	inputSpecs map[string]tensor.Spec
	logger     *logger.Logger
}

// Exists reports whether path looks like a SavedModel directory.
func Exists(path string) bool {
	_, err := os.Stat(filepath.Join(path, "saved_model.pb"))
	return err == nil
}

// Version returns the version of the linked TensorFlow library.
func Version() string {
	return tf.Version()
}

// Load opens the SavedModel at path with the serve tag and logs its signatures.
func Load(path string, logger *logger.Logger) (*Model, error) {
	logger.Info("Loading TensorFlow model from %s (TensorFlow %s)", path, tf.Version())

	if !Exists(path) {
		err := fmt.Errorf("saved_model.pb not found in %s", path)
		logger.Error("Error loading model: %v", err)
		return nil, err
	}

	saved, err := tf.LoadSavedModel(path, []string{ServeTag}, nil)
	if err != nil {
		logger.Error("Error loading model %s: %v", path, err)
		return nil, fmt.Errorf("failed to load saved model %s: %w", path, err)
	}

	m := &Model{
		path:       path,
		saved:      saved,
		signatures: make(map[string]Signature, len(saved.Signatures)),
		inputSpecs: make(map[string]tensor.Spec),
		logger:     logger,
	}

	for key, sig := range saved.Signatures {
		s := Signature{
			Key:        key,
			MethodName: sig.MethodName,
			Inputs:     convertTensorInfos(sig.Inputs),
			Outputs:    convertTensorInfos(sig.Outputs),
		}
		m.signatures[key] = s
		for _, spec := range s.Inputs {
			m.inputSpecs[normalizeEndpoint(spec.Name)] = spec
		}

		logger.Info("Available signature: %s", key)
		logger.Info("  Method: %s", s.MethodName)
		logger.Info("  Inputs: %v", s.InputNames())
		logger.Info("  Outputs: %v", s.OutputNames())
	}

	logger.Info("Model loaded successfully")
	return m, nil
}

// Path returns the directory the model was loaded from.
func (m *Model) Path() string { return m.path }

// Signatures returns every signature the model exports.
func (m *Model) Signatures() map[string]Signature {
	return m.signatures
}

// Signature returns the signature stored under key.
func (m *Model) Signature(key string) (Signature, bool) {
	s, ok := m.signatures[key]
	return s, ok
}

// InputSpec returns the declared spec for a graph input endpoint, if a signature declares it.
func (m *Model) InputSpec(endpoint string) (tensor.Spec, bool) {
	spec, ok := m.inputSpecs[normalizeEndpoint(endpoint)]
	return spec, ok
}

// Run feeds tensors into named graph endpoints and fetches the named outputs.
// Endpoint names use the "operation:index" form; the index defaults to 0.
func (m *Model) Run(feeds map[string]*tensor.Tensor, fetches []string) ([]*tensor.Tensor, error) {
	if m == nil || m.saved == nil {
		return nil, ErrModelNotLoaded
	}
	graph := m.saved.Graph

	tfFeeds := make(map[tf.Output]*tf.Tensor, len(feeds))
	for name, t := range feeds {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("input %s: %w", name, err)
		}
		if spec, ok := m.InputSpec(name); ok {
			if err := t.Matches(spec); err != nil {
				return nil, err
			}
		}
		out, err := resolveOutput(graph, name)
		if err != nil {
			return nil, err
		}
		tt, err := toTF(t)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", name, err)
		}
		tfFeeds[out] = tt
	}

	tfFetches := make([]tf.Output, 0, len(fetches))
	for _, name := range fetches {
		out, err := resolveOutput(graph, name)
		if err != nil {
			return nil, err
		}
		tfFetches = append(tfFetches, out)
	}

	results, err := m.saved.Session.Run(tfFeeds, tfFetches, nil)
	if err != nil {
		return nil, fmt.Errorf("session run failed: %w", err)
	}

	outputs := make([]*tensor.Tensor, 0, len(results))
	for i, r := range results {
		t, err := fromTF(r)
		if err != nil {
			return nil, fmt.Errorf("output %s: %w", fetches[i], err)
		}
		outputs = append(outputs, t)
	}
	return outputs, nil
}

// Close releases the session.
func (m *Model) Close() error {
	if m == nil || m.saved == nil {
		return nil
	}
	err := m.saved.Session.Close()
	m.saved = nil
	return err
}

func convertTensorInfos(infos map[string]tf.TensorInfo) map[string]tensor.Spec {
	specs := make(map[string]tensor.Spec, len(infos))
	for key, info := range infos {
		spec := tensor.Spec{Name: info.Name, DType: fromTFDataType(info.DType)}
		if dims, err := info.Shape.ToSlice(); err == nil {
			spec.Shape = tensor.Shape(dims)
		}
		specs[key] = spec
	}
	return specs
}

func sortedKeys(m map[string]tensor.Spec) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
