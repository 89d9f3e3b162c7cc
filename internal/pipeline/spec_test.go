package pipeline

import (
	"reflect"
	"testing"
)

func boolPtr(b bool) *bool { return &b }

func TestStageOrderFromSpec(t *testing.T) {
	spec := &yamlPipelineSpec{
		Pipeline: "supplier_document",
		Version:  1,
		Stages: []yamlStageSpec{
			{Name: ScanValidation},
			{Name: OCRExtraction},
			{Name: UpdatePreparation},
			{Name: InventoryUpdate, Enabled: boolPtr(false)},
			{Name: ExcelExport},
		},
	}

	order, err := stageOrderFromSpec(spec)
	if err != nil {
		t.Fatalf("stageOrderFromSpec: %v", err)
	}
	want := []string{ScanValidation, OCRExtraction, UpdatePreparation, ExcelExport}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
}

func TestStageOrderFromSpecRejectsBadSpecs(t *testing.T) {
	cases := []struct {
		name string
		spec *yamlPipelineSpec
	}{
		{"nil spec", nil},
		{"wrong pipeline", &yamlPipelineSpec{Pipeline: "other", Stages: []yamlStageSpec{{Name: ScanValidation}}}},
		{"no stages", &yamlPipelineSpec{Pipeline: "supplier_document"}},
		{"unknown stage", &yamlPipelineSpec{Pipeline: "supplier_document", Stages: []yamlStageSpec{{Name: "teleport"}}}},
		{"duplicate stage", &yamlPipelineSpec{Pipeline: "supplier_document", Stages: []yamlStageSpec{{Name: ScanValidation}, {Name: ScanValidation}}}},
		{"all disabled", &yamlPipelineSpec{Pipeline: "supplier_document", Stages: []yamlStageSpec{{Name: ScanValidation, Enabled: boolPtr(false)}}}},
	}
	for _, tc := range cases {
		if _, err := stageOrderFromSpec(tc.spec); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestEmbeddedSpecMatchesFallback(t *testing.T) {
	order, err := loadPipelineSpec()
	if err != nil {
		t.Fatalf("loadPipelineSpec: %v", err)
	}
	if !reflect.DeepEqual(order, fallbackStageOrder) {
		t.Fatalf("embedded spec order = %v, want %v", order, fallbackStageOrder)
	}
}
