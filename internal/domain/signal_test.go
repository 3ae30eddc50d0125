package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSignalStrengthConstants(t *testing.T) {
	tests := []struct {
		name     string
		value    SignalStrength
		expected string
	}{
		{"None", NONE, "NONE"},
		{"Signal", SIGNAL, "SIGNAL"},
		{"Strong Signal", STRONG_SIGNAL, "STRONG_SIGNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.value) != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, string(tt.value))
			}
			if !tt.value.IsValid() {
				t.Errorf("Expected %s to be valid", tt.expected)
			}
		})
	}

	if SignalStrength("MAYBE").IsValid() {
		t.Error("Expected unknown strength to be invalid")
	}
}

func TestSignalStrengthRequiresReview(t *testing.T) {
	tests := []struct {
		strength SignalStrength
		expected bool
	}{
		{NONE, false},
		{SIGNAL, true},
		{STRONG_SIGNAL, true},
	}

	for _, tt := range tests {
		if got := tt.strength.RequiresReview(); got != tt.expected {
			t.Errorf("RequiresReview(%s): expected %v, got %v", tt.strength, tt.expected, got)
		}
	}
}

func TestExclusionReasonConstants(t *testing.T) {
	if !BELOW_MINIMUM_CASES.IsValid() || !STORE_ERROR.IsValid() {
		t.Error("Expected exclusion reasons to be valid")
	}
	if ExclusionReason("OTHER").IsValid() {
		t.Error("Expected unknown exclusion reason to be invalid")
	}
}

func TestMetricJSON(t *testing.T) {
	tests := []struct {
		name     string
		metric   Metric
		expected string
	}{
		{"defined value", DefinedMetric(19.8), "19.8"},
		{"defined zero", DefinedMetric(0), "0"},
		{"undefined", UndefinedMetric(), "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.metric)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if string(data) != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, string(data))
			}

			var back Metric
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("Unexpected unmarshal error: %v", err)
			}
			if back != tt.metric {
				t.Errorf("Round trip changed metric: %+v != %+v", back, tt.metric)
			}
		})
	}
}

func TestSignalScoreJSONMarksUndefinedMetrics(t *testing.T) {
	score := SignalScore{
		Substance: "DRUG X",
		Reaction:  "NAUSEA",
		CaseCount: 5,
		PRR:       DefinedMetric(49.75),
		ROR:       UndefinedMetric(),
		Strength:  SIGNAL,
	}

	data, err := json.Marshal(score)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// An undefined ROR must serialize as null, never as a numeric zero.
	if !strings.Contains(string(data), `"ror":null`) {
		t.Errorf("Expected undefined ROR to marshal as null, got %s", string(data))
	}
	if !strings.Contains(string(data), `"prr":49.75`) {
		t.Errorf("Expected defined PRR value, got %s", string(data))
	}
}

func TestRunResultSignalCount(t *testing.T) {
	result := RunResult{
		Scores: []SignalScore{
			{Strength: STRONG_SIGNAL},
			{Strength: SIGNAL},
			{Strength: NONE},
			{Strength: NONE},
		},
	}

	if got := result.SignalCount(); got != 2 {
		t.Errorf("Expected 2 signals, got %d", got)
	}
}
