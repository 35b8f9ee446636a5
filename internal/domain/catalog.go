package domain

type ParameterType string

const (
	Velocity     ParameterType = "velocity"
	Acceleration ParameterType = "acceleration"
)

type Equipment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type Parameter struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Type     ParameterType `json:"type"`
	Category string        `json:"category"`
	MaxValue float64       `json:"maxValue"`
	Order    int           `json:"order"`
}

const (
	MaxNotesLength       = 500
	MaxParameterDecimals = 2
)

var Units = []Unit{UnitDRI1, UnitDRI2}

// Equipments is the plant catalog. Both units run the same equipment set,
// so every unit's namespace holds all of them.
var Equipments = []Equipment{
	{ID: "GB-cp48A", Name: "Compressor 48A gearbox", Code: "GB-cp 48A"},
	{ID: "CP-cp48A", Name: "Compressor 48A", Code: "CP-cp 48A"},
	{ID: "GB-cp48B", Name: "Compressor 48B gearbox", Code: "GB-cp 48B"},
	{ID: "CP-cp48B", Name: "Compressor 48B", Code: "CP-cp 48B"},
	{ID: "GB-cp51", Name: "Compressor 51 gearbox", Code: "GB-cp 51"},
	{ID: "CP-cp51", Name: "Compressor 51", Code: "CP-cp 51"},
	{ID: "GB-cp71", Name: "Compressor 71 gearbox", Code: "GB-cp 71"},
	{ID: "CP-cp71", Name: "Compressor 71", Code: "CP-cp 71"},
	{ID: "CP-cpSGC", Name: "Seal gas compressor", Code: "CP-cp SGC"},
	{ID: "FN-fnESF", Name: "Stack fan", Code: "FN-fn ESF"},
	{ID: "FN-fnAUX", Name: "Auxiliary fan", Code: "FN-fn AUX"},
	{ID: "FN-fnMAB", Name: "Main air blower", Code: "FN-fn MAB"},
}

var Parameters = []Parameter{
	{ID: "V1", Name: "Vertical velocity (coupled)", Type: Velocity, Category: "connected", MaxValue: 20, Order: 1},
	{ID: "GV1", Name: "Vertical acceleration (coupled)", Type: Acceleration, Category: "connected", MaxValue: 2, Order: 2},
	{ID: "H1", Name: "Horizontal velocity (coupled)", Type: Velocity, Category: "connected", MaxValue: 20, Order: 3},
	{ID: "GH1", Name: "Horizontal acceleration (coupled)", Type: Acceleration, Category: "connected", MaxValue: 2, Order: 4},
	{ID: "A1", Name: "Axial velocity (coupled)", Type: Velocity, Category: "connected", MaxValue: 20, Order: 5},
	{ID: "GA1", Name: "Axial acceleration (coupled)", Type: Acceleration, Category: "connected", MaxValue: 2, Order: 6},
	{ID: "V2", Name: "Vertical velocity (free)", Type: Velocity, Category: "free", MaxValue: 20, Order: 7},
	{ID: "GV2", Name: "Vertical acceleration (free)", Type: Acceleration, Category: "free", MaxValue: 2, Order: 8},
	{ID: "H2", Name: "Horizontal velocity (free)", Type: Velocity, Category: "free", MaxValue: 20, Order: 9},
	{ID: "GH2", Name: "Horizontal acceleration (free)", Type: Acceleration, Category: "free", MaxValue: 2, Order: 10},
	{ID: "A2", Name: "Axial velocity (free)", Type: Velocity, Category: "free", MaxValue: 20, Order: 11},
	{ID: "GA2", Name: "Axial acceleration (free)", Type: Acceleration, Category: "free", MaxValue: 2, Order: 12},
}

var (
	equipmentIndex = make(map[string]Equipment, len(Equipments))
	parameterIndex = make(map[string]Parameter, len(Parameters))
)

func init() {
	for _, e := range Equipments {
		equipmentIndex[e.ID] = e
	}
	for _, p := range Parameters {
		parameterIndex[p.ID] = p
	}
}

func (u Unit) Valid() bool {
	return u == UnitDRI1 || u == UnitDRI2
}

func LookupEquipment(id string) (Equipment, bool) {
	e, ok := equipmentIndex[id]
	return e, ok
}

func LookupParameter(id string) (Parameter, bool) {
	p, ok := parameterIndex[id]
	return p, ok
}

// EquipmentInUnit reports whether the equipment id is part of the unit's namespace.
func EquipmentInUnit(unit Unit, equipmentID string) bool {
	if !unit.Valid() {
		return false
	}
	_, ok := equipmentIndex[equipmentID]
	return ok
}

// Limit returns the parameter's max value, falling back to the type default.
func (p Parameter) Limit() float64 {
	if p.MaxValue > 0 {
		return p.MaxValue
	}
	if p.Type == Velocity {
		return 20
	}
	return 2
}
