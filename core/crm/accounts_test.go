package crm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func stageNames(stages []PipelineStage) []string {
	names := make([]string, 0, len(stages))
	for _, s := range stages {
		names = append(names, s.Stage)
	}
	return names
}

func TestSortPipeline(t *testing.T) {
	tests := []struct {
		name   string
		stages []string
		want   []string
	}{
		{name: "empty", stages: []string{}, want: []string{}},
		{
			name:   "alphabetical input",
			stages: []string{"closed_lost", "closed_won", "negotiation", "proposal", "prospecting", "qualification"},
			want:   []string{"prospecting", "qualification", "proposal", "negotiation", "closed_won", "closed_lost"},
		},
		{
			name:   "already ordered",
			stages: []string{"prospecting", "needs_analysis", "value_proposition", "decision_makers"},
			want:   []string{"prospecting", "needs_analysis", "value_proposition", "decision_makers"},
		},
		{
			name:   "unknown stages last",
			stages: []string{"legacy", "proposal"},
			want:   []string{"proposal", "legacy"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stages := make([]PipelineStage, 0, len(tt.stages))
			for i, s := range tt.stages {
				stages = append(stages, PipelineStage{Stage: s, Count: i + 1})
			}
			SortPipeline(stages)
			assert.Equal(t, tt.want, stageNames(stages))
		})
	}
}
