package teams

import "encoding/json"

// MarshalJSON encodes the set as a sorted array of role IDs
func (s RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of role IDs into the set
func (s *RoleSet) UnmarshalJSON(data []byte) error {
	var roles []string
	if err := json.Unmarshal(data, &roles); err != nil {
		return err
	}
	*s = make(RoleSet, len(roles))
	s.Add(roles...)
	return nil
}
