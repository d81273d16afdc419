package ml

import (
	"context"
	"fmt"
)

// Tree is one fitted decision tree in sklearn's array layout. Leaf nodes have
// -1 children; Value holds the per-class weight at each node.
type Tree struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

// ForestClassifier averages the leaf class distributions of its trees, the
// way RandomForestClassifier.predict_proba does.
type ForestClassifier struct {
	NFeatures   int    `json:"n_features"`
	ClassLabels []int  `json:"classes"`
	Trees       []Tree `json:"trees"`
}

func (f *ForestClassifier) validate() error {
	if f.NFeatures <= 0 {
		return fmt.Errorf("n_features must be positive, got %d", f.NFeatures)
	}
	if len(f.ClassLabels) == 0 {
		f.ClassLabels = append([]int(nil), defaultClasses...)
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("forest has no trees")
	}

	for t, tree := range f.Trees {
		n := len(tree.ChildrenLeft)
		if n == 0 || len(tree.ChildrenRight) != n || len(tree.Feature) != n ||
			len(tree.Threshold) != n || len(tree.Value) != n {
			return fmt.Errorf("tree %d: node arrays have inconsistent lengths", t)
		}
		for i := 0; i < n; i++ {
			left, right := tree.ChildrenLeft[i], tree.ChildrenRight[i]
			if left == -1 && right == -1 {
				if len(tree.Value[i]) != len(f.ClassLabels) {
					return fmt.Errorf("tree %d node %d: expected %d class weights, got %d",
						t, i, len(f.ClassLabels), len(tree.Value[i]))
				}
				continue
			}
			// Children always come after their parent, which rules out cycles.
			if left <= i || left >= n || right <= i || right >= n {
				return fmt.Errorf("tree %d node %d: invalid children %d/%d", t, i, left, right)
			}
			if tree.Feature[i] < 0 || tree.Feature[i] >= f.NFeatures {
				return fmt.Errorf("tree %d node %d: feature index %d out of range", t, i, tree.Feature[i])
			}
		}
	}
	return nil
}

func (t *Tree) leaf(x []float64) int {
	node := 0
	for t.ChildrenLeft[node] != -1 {
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return node
}

func (f *ForestClassifier) PredictProba(_ context.Context, x []float64) ([]float64, error) {
	if err := checkWidth(x, f.NFeatures); err != nil {
		return nil, err
	}

	proba := make([]float64, len(f.ClassLabels))
	for i := range f.Trees {
		weights := f.Trees[i].Value[f.Trees[i].leaf(x)]
		var total float64
		for _, w := range weights {
			total += w
		}
		for c, w := range weights {
			if total > 0 {
				proba[c] += w / total
			} else {
				proba[c] += 1 / float64(len(weights))
			}
		}
	}

	for c := range proba {
		proba[c] /= float64(len(f.Trees))
	}
	return proba, nil
}

func (f *ForestClassifier) Predict(ctx context.Context, x []float64) (int, error) {
	proba, err := f.PredictProba(ctx, x)
	if err != nil {
		return 0, err
	}
	return argmaxLabel(f.ClassLabels, proba)
}

func (f *ForestClassifier) Score(ctx context.Context, x []float64) (int, []float64, error) {
	proba, err := f.PredictProba(ctx, x)
	if err != nil {
		return 0, nil, err
	}
	label, err := argmaxLabel(f.ClassLabels, proba)
	return label, proba, err
}

func (f *ForestClassifier) Classes() []int { return f.ClassLabels }
