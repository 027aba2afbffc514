package domain

// ACLEntry grants or denies one action to one role.
type ACLEntry struct {
	Role   string `json:"role"`
	Action string `json:"action"`
	Allow  bool   `json:"allow"`
}

// ACL is an access control list attached to a media package.
type ACL []ACLEntry

// IsEmpty reports whether the list carries no entries.
func (a ACL) IsEmpty() bool { return len(a) == 0 }
