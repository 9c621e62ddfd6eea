package cache

import (
	"testing"
)

type keyInput struct {
	ChapterIndex int     `json:"chapter_index"`
	SectionTitle string  `json:"section_title"`
	Context      string  `json:"context"`
	Model        string  `json:"model"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
}

func TestKeyFor(t *testing.T) {
	base := keyInput{
		ChapterIndex: 3,
		SectionTitle: "The Long Night",
		Context:      "A story about winter.",
		Model:        "gpt-4o",
		Temperature:  0.7,
		MaxTokens:    2000,
	}

	t.Run("deterministic", func(t *testing.T) {
		k1, err := KeyFor(base)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		k2, err := KeyFor(base)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if k1 != k2 {
			t.Errorf("same input produced different keys: %s vs %s", k1, k2)
		}
		if len(k1) != 64 {
			t.Errorf("expected 64 hex chars, got %d", len(k1))
		}
	})

	t.Run("any field change changes key", func(t *testing.T) {
		baseKey, _ := KeyFor(base)

		perturbed := []keyInput{}
		p := base
		p.ChapterIndex = 4
		perturbed = append(perturbed, p)
		p = base
		p.SectionTitle = "The Long Day"
		perturbed = append(perturbed, p)
		p = base
		p.Context = "A story about summer."
		perturbed = append(perturbed, p)
		p = base
		p.Model = "gpt-4o-mini"
		perturbed = append(perturbed, p)
		p = base
		p.Temperature = 0.8
		perturbed = append(perturbed, p)
		p = base
		p.MaxTokens = 1000
		perturbed = append(perturbed, p)

		for i, in := range perturbed {
			k, err := KeyFor(in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if k == baseKey {
				t.Errorf("perturbation %d did not change key", i)
			}
		}
	})

	t.Run("map key order independent", func(t *testing.T) {
		a := map[string]any{"alpha": 1, "beta": 2, "gamma": 3}
		b := map[string]any{"gamma": 3, "alpha": 1, "beta": 2}

		ka, _ := KeyFor(a)
		kb, _ := KeyFor(b)
		if ka != kb {
			t.Errorf("equivalent maps produced different keys: %s vs %s", ka, kb)
		}
	})

	t.Run("unencodable input errors", func(t *testing.T) {
		if _, err := KeyFor(make(chan int)); err == nil {
			t.Error("expected error for unencodable input")
		}
	})
}
