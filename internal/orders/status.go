package orders

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPlaced    Status = "placed"
	StatusCancelled Status = "cancelled"
	StatusShipped   Status = "shipped"
	StatusCompleted Status = "completed"
)

// Transitions are monotonic except for cancellation, which is legal from
// draft and placed. cancelled and completed are terminal.
var validNext = map[Status]map[Status]bool{
	StatusDraft:     {StatusPlaced: true, StatusCancelled: true},
	StatusPlaced:    {StatusShipped: true, StatusCancelled: true},
	StatusShipped:   {StatusCompleted: true},
	StatusCompleted: {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func ValidStatus(s Status) bool {
	_, ok := validNext[s]
	return ok
}
