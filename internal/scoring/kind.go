package scoring

// Kind is the closed set of activity variants the scoring rule distinguishes.
type Kind int

const (
	// KindGeneric covers every activity credited by its logged minutes.
	KindGeneric Kind = iota
	// KindHike is credited by step count instead of minutes.
	KindHike
)

// HikeTag is the activity_type value that marks a hike.
const HikeTag = "hike"

// KindOf maps a free-form activity tag onto its scoring variant.
// Unknown tags are generic.
func KindOf(activityType string) Kind {
	if activityType == HikeTag {
		return KindHike
	}
	return KindGeneric
}

func (k Kind) String() string {
	switch k {
	case KindHike:
		return HikeTag
	default:
		return "generic"
	}
}
