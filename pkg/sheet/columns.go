package sheet

// Column headers of the school inventory spreadsheet.
const (
	ColShortName       = "Sname"
	ColLastName        = "SuSNachn"
	ColFirstName       = "SuSVorn"
	ColClass           = "SuSKl"
	ColStreet          = "SuSStrHNr"
	ColPostalCode      = "SuSPLZ"
	ColCity            = "SuSOrt"
	ColBirthDate       = "SuSGeb"
	ColGuardian1Last   = "Erz1Nachn"
	ColGuardian1First  = "Erz1Vorn"
	ColGuardian1Street = "Erz1StrHNr"
	ColGuardian1Postal = "Erz1PLZ"
	ColGuardian1City   = "Erz1Ort"
	ColGuardian2Last   = "Erz2Nachn"
	ColGuardian2First  = "Erz2Vorn"
	ColGuardian2Street = "Erz2StrHNr"
	ColGuardian2Postal = "Erz2PLZ"
	ColGuardian2City   = "Erz2Ort"
	ColStylus          = "Pencil"
	ColAssetTag        = "ITNr"
	ColSerialNumber    = "SNr"
	ColModel           = "Typ"
	ColCaseLabel       = "Karton"
	ColPurchaseYear    = "AnschJahr"
	ColLoanDate        = "AusleiheDatum"
	ColReturn          = "Rückgabe"
)

// LoanDateLayout is the day-first date format used in the loan date column.
const LoanDateLayout = "02.01.2006"

// ExportColumns is the fixed column order of inventory and assignment exports.
var ExportColumns = []string{
	ColShortName, ColLastName, ColFirstName, ColClass, ColStreet, ColPostalCode, ColCity, ColBirthDate,
	ColGuardian1Last, ColGuardian1First, ColGuardian1Street, ColGuardian1Postal, ColGuardian1City,
	ColGuardian2Last, ColGuardian2First, ColGuardian2Street, ColGuardian2Postal, ColGuardian2City,
	ColStylus, ColAssetTag, ColSerialNumber, ColModel, ColPurchaseYear, ColLoanDate, ColReturn,
}
