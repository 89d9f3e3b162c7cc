package pipeline

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/shelfsync/shelfsync-backend/internal/logger"
)

const pipelineSpecEnv = "PIPELINE_SPEC_YAML"

//go:embed pipeline.yaml
var pipelineSpecFS embed.FS

// fallback stage order used when the YAML is missing or invalid
var fallbackStageOrder = []string{
	ScanValidation,
	OCRExtraction,
	UpdatePreparation,
	InventoryUpdate,
	ExcelExport,
}

var knownStages = map[string]bool{
	ScanValidation:    true,
	OCRExtraction:     true,
	UpdatePreparation: true,
	InventoryUpdate:   true,
	ExcelExport:       true,
}

type yamlPipelineSpec struct {
	Pipeline string          `yaml:"pipeline"`
	Version  int             `yaml:"version"`
	Stages   []yamlStageSpec `yaml:"stages"`
}

type yamlStageSpec struct {
	Name    string `yaml:"name"`
	Enabled *bool  `yaml:"enabled"`
}

var specOnce sync.Once
var specCache []string
var specErr error

// DefaultPipeline returns the stage sequence used for stores that register
// without an explicit pipeline. The spec is read once: from the path in
// PIPELINE_SPEC_YAML when set, otherwise from the embedded pipeline.yaml.
func DefaultPipeline(log *logger.Logger) []string {
	specOnce.Do(func() {
		specCache, specErr = loadPipelineSpec()
	})
	if specErr != nil {
		if log != nil {
			log.Warn("Pipeline spec load failed; using fallback order", "error", specErr)
		}
		return append([]string(nil), fallbackStageOrder...)
	}
	return append([]string(nil), specCache...)
}

func loadPipelineSpec() ([]string, error) {
	data, err := readPipelineSpec()
	if err != nil {
		return nil, err
	}
	var spec yamlPipelineSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, err
	}
	return stageOrderFromSpec(&spec)
}

func readPipelineSpec() ([]byte, error) {
	if path := strings.TrimSpace(os.Getenv(pipelineSpecEnv)); path != "" {
		return os.ReadFile(path)
	}
	return pipelineSpecFS.ReadFile("pipeline.yaml")
}

func stageOrderFromSpec(spec *yamlPipelineSpec) ([]string, error) {
	if spec == nil {
		return nil, errors.New("missing spec")
	}
	if strings.TrimSpace(spec.Pipeline) != "supplier_document" {
		return nil, fmt.Errorf("unexpected pipeline: %s", spec.Pipeline)
	}
	if len(spec.Stages) == 0 {
		return nil, errors.New("no stages defined")
	}

	seen := map[string]bool{}
	order := make([]string, 0, len(spec.Stages))
	for _, stage := range spec.Stages {
		name := strings.TrimSpace(stage.Name)
		if name == "" {
			return nil, errors.New("stage name is required")
		}
		if !knownStages[name] {
			return nil, fmt.Errorf("unknown stage: %s", name)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate stage name: %s", name)
		}
		seen[name] = true
		if stage.Enabled != nil && !*stage.Enabled {
			continue
		}
		order = append(order, name)
	}
	if len(order) == 0 {
		return nil, errors.New("all stages disabled")
	}
	return order, nil
}
