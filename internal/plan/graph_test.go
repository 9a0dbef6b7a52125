package plan

import (
	"testing"

	"github.com/zulandar/planyard/internal/models"
)

func TestCheckGraph(t *testing.T) {
	tests := []struct {
		name  string
		tasks []models.Task
		want  []Warning
	}{
		{
			name:  "clean",
			tasks: []models.Task{{ID: "a"}, {ID: "b", DependsOn: []string{"a"}}},
			want:  []Warning{},
		},
		{
			name:  "dangling",
			tasks: []models.Task{{ID: "a", DependsOn: []string{"gone"}}},
			want:  []Warning{{TaskID: "a", Kind: WarnDangling, Detail: "depends on unknown task gone"}},
		},
		{
			name:  "self",
			tasks: []models.Task{{ID: "a", DependsOn: []string{"a"}}},
			want:  []Warning{{TaskID: "a", Kind: WarnSelf, Detail: "depends on itself"}},
		},
		{
			name: "cycle",
			tasks: []models.Task{
				{ID: "c", DependsOn: []string{"b"}},
				{ID: "b", DependsOn: []string{"a"}},
				{ID: "a", DependsOn: []string{"c"}},
				{ID: "d", DependsOn: []string{"a"}},
			},
			want: []Warning{{TaskID: "a", Kind: WarnCycle, Detail: "cycle through a, b, c"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckGraph(tt.tasks)
			if len(got) != len(tt.want) {
				t.Fatalf("warnings = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("warning[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
