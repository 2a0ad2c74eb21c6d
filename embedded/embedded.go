package embedded

type Element interface {
	Kind() uint64
	Owner() string
	QualifiedName() string
	Name() string
}

type Transition interface {
	Element
	Source() string
	Target() string
	Guard() string
	Effect() string
	Events() []Event
}

type Vertex interface {
	Element
	Transitions() []string
}

type State interface {
	Vertex
	Entry() string
	Exit() string
}

type Event interface {
	Kind() uint64
	Name() string
	Data() any
}
