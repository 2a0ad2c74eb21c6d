package stepper

import "reflect"

// changes records which parts of the props an Update altered. Values are
// compared structurally, unexported fields included, so tokens and content
// of any type work; a pointer the host mutates in place compares equal to
// itself and is not seen as a change.
type changes struct {
	steps      bool
	components bool
	update     bool
}

func diff(previous, next Props) changes {
	return changes{
		steps:      !reflect.DeepEqual(previous.Steps, next.Steps),
		components: !reflect.DeepEqual(previous.Components, next.Components),
		update:     !reflect.DeepEqual(previous.Update, next.Update),
	}
}
