package enums

// ContractMatch records which rule paired a contract with its assignment.
type ContractMatch string

const (
	ContractMatchField    ContractMatch = "field"
	ContractMatchFilename ContractMatch = "filename"
	ContractMatchManual   ContractMatch = "manual"
	ContractMatchNone     ContractMatch = "none"
)

func (m ContractMatch) IsValid() bool {
	switch m {
	case ContractMatchField, ContractMatchFilename, ContractMatchManual, ContractMatchNone:
		return true
	}
	return false
}
