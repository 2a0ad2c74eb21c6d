package set_test

import (
	"slices"
	"testing"

	"github.com/stateforward/go-stepper/pkg/set"
)

func TestSet(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		s := set.New("fade", "slide", "fade")
		if s.Len() != 2 {
			t.Errorf("Expected 2 members, got %d", s.Len())
		}
		if !s.Contains("fade") || !s.Contains("slide") {
			t.Error("Expected set to contain 'fade' and 'slide'")
		}
	})

	t.Run("ZeroValue", func(t *testing.T) {
		var s set.Set[string]
		if s.Contains("fade") {
			t.Error("Expected empty set")
		}
		s.Add("fade")
		if !s.Contains("fade") {
			t.Error("Expected zero value set to accept members")
		}
	})

	t.Run("AddReportsNewMembers", func(t *testing.T) {
		s := set.New("fade")
		added := s.Add("fade", "spin", "spin")
		if !slices.Equal(added, []string{"spin"}) {
			t.Errorf("Expected only 'spin' to be added, got %v", added)
		}
	})

	t.Run("RemoveKeepsOrder", func(t *testing.T) {
		s := set.New("a", "b", "c", "d")
		removed := s.Remove("b", "x", "d")
		if !slices.Equal(removed, []string{"b", "d"}) {
			t.Errorf("Expected 'b' and 'd' removed, got %v", removed)
		}
		if !slices.Equal(s.Slice(), []string{"a", "c"}) {
			t.Errorf("Expected [a c], got %v", s.Slice())
		}
	})

	t.Run("Clear", func(t *testing.T) {
		s := set.New("a", "b")
		s.Clear()
		if s.Len() != 0 || s.Contains("a") {
			t.Errorf("Expected empty set, got %v", s.Slice())
		}
		s.Add("c")
		if !slices.Equal(s.Slice(), []string{"c"}) {
			t.Errorf("Expected [c], got %v", s.Slice())
		}
	})
}
