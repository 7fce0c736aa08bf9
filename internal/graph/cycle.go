package graph

import "fmt"

type visitState uint8

const (
	stateVisiting visitState = iota + 1
	stateDone
)

// MissingPolicy controls what Detect does when an edge leads to a node that
// does not exist.
type MissingPolicy uint8

const (
	MissingPolicyIgnore MissingPolicy = iota
	MissingPolicyError
)

// CycleError reports a cycle through Key.
type CycleError[K comparable] struct {
	Key K
}

func (e CycleError[K]) Error() string {
	return fmt.Sprintf("cycle through %v", e.Key)
}

// MissingError reports an edge from From to a missing node Key.
type MissingError[K comparable] struct {
	From K
	Key  K
}

func (e MissingError[K]) Error() string {
	return fmt.Sprintf("%v refers to missing %v", e.From, e.Key)
}

// Config describes the graph Detect walks.
type Config[K comparable] struct {
	Starts  []K
	Next    func(K) ([]K, error)
	Exists  func(K) bool
	Missing MissingPolicy
}

// Detect walks the edges reachable from Starts depth-first and returns the
// first cycle, missing node or Next error it meets.
func Detect[K comparable](cfg Config[K]) error {
	if cfg.Next == nil {
		return fmt.Errorf("cycle detection: no Next function")
	}
	states := make(map[K]visitState, len(cfg.Starts))

	var visit func(key, from K, hasFrom bool) error
	visit = func(key, from K, hasFrom bool) error {
		switch states[key] {
		case stateVisiting:
			return CycleError[K]{Key: key}
		case stateDone:
			return nil
		}

		if cfg.Exists != nil && !cfg.Exists(key) {
			if cfg.Missing == MissingPolicyIgnore || !hasFrom {
				return nil
			}
			return MissingError[K]{From: from, Key: key}
		}

		states[key] = stateVisiting
		next, err := cfg.Next(key)
		if err != nil {
			return err
		}
		for _, n := range next {
			if err := visit(n, key, true); err != nil {
				return err
			}
		}
		states[key] = stateDone
		return nil
	}

	var zero K
	for _, start := range cfg.Starts {
		if err := visit(start, zero, false); err != nil {
			return err
		}
	}
	return nil
}
