package research

import "testing"

func TestHeuristicTriage(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Decision
	}{
		{
			name: "specific market query",
			query: "Analyze the market size, regional segmentation and annual growth rate of the residential " +
				"solar battery storage industry in Europe between 2020 and 2025 for an investor audience",
			want: DecisionInstruct,
		},
		{
			name:  "vague query",
			query: "tell me about cats",
			want:  DecisionClarify,
		},
		{
			name:  "signals but too short",
			query: "analyze 2024 revenue in europe",
			want:  DecisionClarify,
		},
		{
			name: "long but unspecific",
			query: "I would like to learn a lot more about how things generally work in the world of " +
				"batteries and what people usually think about them these days",
			want: DecisionClarify,
		},
		{
			name:  "empty query",
			query: "",
			want:  DecisionClarify,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := heuristicTriage(tt.query)
			if got.Decision != tt.want {
				t.Errorf("heuristicTriage(%q).Decision = %q, want %q", tt.query, got.Decision, tt.want)
			}
			if got.Reason == "" {
				t.Error("decision carries no reason")
			}
		})
	}
}

func TestHeuristicTriageIsDeterministic(t *testing.T) {
	query := "compare the market share and sales volume of enterprise battery vendors across " +
		"North America and Europe for 2023, segmented by industry vertical"
	first := heuristicTriage(query)
	for i := 0; i < 10; i++ {
		if got := heuristicTriage(query); got != first {
			t.Fatalf("run %d produced %+v, first run produced %+v", i, got, first)
		}
	}
}
