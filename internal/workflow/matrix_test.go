package workflow

import (
	"reflect"
	"testing"
)

func TestExpandMatrixOneAxis(t *testing.T) {
	job := Job{
		RunsOn: "ubuntu-latest",
		Strategy: &Strategy{
			Matrix: map[string][]string{
				"python-version": {"3.7", "3.8", "3.9"},
			},
		},
		Steps: []Step{{Run: "echo hi"}},
	}

	instances := ExpandMatrix("test", job)
	if len(instances) != 3 {
		t.Fatalf("got %d instances, want 3", len(instances))
	}

	wantNames := []string{"test (3.7)", "test (3.8)", "test (3.9)"}
	for i, inst := range instances {
		if inst.Name != wantNames[i] {
			t.Errorf("instance %d name = %q, want %q", i, inst.Name, wantNames[i])
		}
		if inst.Matrix["python-version"] != job.Strategy.Matrix["python-version"][i] {
			t.Errorf("instance %d matrix = %v", i, inst.Matrix)
		}
	}
}

func TestExpandMatrixCrossProduct(t *testing.T) {
	job := Job{
		RunsOn: "ubuntu-latest",
		Strategy: &Strategy{
			Matrix: map[string][]string{
				"os":      {"linux", "windows"},
				"version": {"1", "2"},
			},
		},
		Steps: []Step{{Run: "echo hi"}},
	}

	instances := ExpandMatrix("build", job)
	if len(instances) != 4 {
		t.Fatalf("got %d instances, want 4", len(instances))
	}

	// Axes walk in sorted name order: os before version.
	want := []map[string]string{
		{"os": "linux", "version": "1"},
		{"os": "linux", "version": "2"},
		{"os": "windows", "version": "1"},
		{"os": "windows", "version": "2"},
	}
	for i, inst := range instances {
		if !reflect.DeepEqual(inst.Matrix, want[i]) {
			t.Errorf("instance %d matrix = %v, want %v", i, inst.Matrix, want[i])
		}
	}
}

func TestExpandMatrixNoMatrix(t *testing.T) {
	job := Job{Name: "lint it", RunsOn: "ubuntu-latest", Steps: []Step{{Run: "echo hi"}}}

	instances := ExpandMatrix("lint", job)
	if len(instances) != 1 {
		t.Fatalf("got %d instances, want 1", len(instances))
	}
	if instances[0].Name != "lint it" {
		t.Errorf("name = %q, want the job's display name", instances[0].Name)
	}
	if len(instances[0].Matrix) != 0 {
		t.Errorf("matrix should be empty, got %v", instances[0].Matrix)
	}
}

func TestExpandAllDeterministicOrder(t *testing.T) {
	wf := &Workflow{Jobs: map[string]Job{
		"b": {RunsOn: "ubuntu-latest", Steps: []Step{{Run: "echo b"}}},
		"a": {RunsOn: "ubuntu-latest", Steps: []Step{{Run: "echo a"}}},
	}}

	instances := wf.ExpandAll()
	if len(instances) != 2 || instances[0].ID != "a" || instances[1].ID != "b" {
		t.Errorf("expansion order not deterministic: %+v", instances)
	}
}
