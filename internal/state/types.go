package state

// State is the sync history kept between runs.
type State struct {
	Addresses Addresses
	Records   map[string]RecordState // keyed by record ID
}

// Addresses are the public addresses seen by the last check.
type Addresses struct {
	V4       string `json:"v4,omitempty"`
	V6       string `json:"v6,omitempty"`
	LastSeen int64  `json:"lastSeen"`
}

// RecordState is the last content patched into a record.
type RecordState struct {
	Zone        string `json:"zone"`
	Name        string `json:"name"`
	Content     string `json:"content"`
	LastPatched int64  `json:"lastPatched"`
}

// Changes lists the families whose address differs from prev. A
// family that was never seen before is not a change.
func (a Addresses) Changes(prev Addresses) map[string][2]string {
	changes := make(map[string][2]string)
	if prev.V4 != "" && a.V4 != "" && a.V4 != prev.V4 {
		changes["ipv4"] = [2]string{prev.V4, a.V4}
	}
	if prev.V6 != "" && a.V6 != "" && a.V6 != prev.V6 {
		changes["ipv6"] = [2]string{prev.V6, a.V6}
	}
	return changes
}
