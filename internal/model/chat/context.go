package chat

// ProjectType is the kind of project inferred from the visitor's latest mention.
type ProjectType string

const (
	ProjectUnknown   ProjectType = ""
	ProjectWeb       ProjectType = "web"
	ProjectMobile    ProjectType = "mobile"
	ProjectEcommerce ProjectType = "ecommerce"
)

// BudgetSignal records how the visitor described their budget.
type BudgetSignal string

const (
	BudgetUnknown  BudgetSignal = ""
	BudgetLimited  BudgetSignal = "limited"
	BudgetFlexible BudgetSignal = "flexible"
)

// TimelineSignal records how the visitor described their deadline.
type TimelineSignal string

const (
	TimelineUnknown  TimelineSignal = ""
	TimelineUrgent   TimelineSignal = "urgent"
	TimelineFlexible TimelineSignal = "flexible"
)

// Context is the running interpretation of the visitor's intent across turns.
// Unset dimensions keep their zero value.
type Context struct {
	MentionedTopics []string       `json:"mentionedTopics"`
	ProjectType     ProjectType    `json:"projectType,omitempty"`
	Budget          BudgetSignal   `json:"budgetSignal,omitempty"`
	Timeline        TimelineSignal `json:"timelineSignal,omitempty"`
}

// HasTopic reports whether topic was already mentioned.
func (c Context) HasTopic(topic string) bool {
	for _, t := range c.MentionedTopics {
		if t == topic {
			return true
		}
	}
	return false
}

// Clone returns a copy that does not share the topic slice.
func (c Context) Clone() Context {
	c.MentionedTopics = append([]string(nil), c.MentionedTopics...)
	return c
}
