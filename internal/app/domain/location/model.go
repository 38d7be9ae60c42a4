package location

// Level is a tier of the Philippine Standard Geographic Code hierarchy.
type Level string

const (
	LevelRegion       Level = "region"
	LevelProvince     Level = "province"
	LevelCity         Level = "city"
	LevelMunicipality Level = "municipality"
	LevelBarangay     Level = "barangay"
)

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	switch l {
	case LevelRegion, LevelProvince, LevelCity, LevelMunicipality, LevelBarangay:
		return true
	}
	return false
}

// Location is one PSGC area.
type Location struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Level      Level  `json:"level"`
	ParentCode string `json:"parent_code,omitempty"`
}
