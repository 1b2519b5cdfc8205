package scenario

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"
)

const (
	scenarioTypeName = "scenario"
	entityTypeName   = "scenario_entity"
)

// Scenario is an ordered list of steps built by a Lua script.
type Scenario struct {
	Name  string
	Steps []Step
}

// Step is one scenario instruction with its Lua arguments converted to Go.
// Tables become map[string]any or []any; numbers stay float64.
type Step struct {
	Kind string
	Args map[string]any
}

// entityHandle lets scripts chain placements onto an entity step.
type entityHandle struct {
	scenario *Scenario
	entityID string
}

// LoadScenarioFromFile runs a Lua file and returns the Scenario it builds.
func LoadScenarioFromFile(path string) (*Scenario, error) {
	state := newScenarioState()
	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	scenario, err := runScenarioChunk(state)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(scenario.Name) == "" {
		scenario.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return scenario, nil
}

// LoadScenario runs Lua source and returns the Scenario it builds. name is
// used for error messages and as the default scenario name.
func LoadScenario(name, source string) (*Scenario, error) {
	state := newScenarioState()
	if err := lua.LoadBuffer(state, source, name, ""); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	scenario, err := runScenarioChunk(state)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(scenario.Name) == "" {
		scenario.Name = name
	}
	return scenario, nil
}

func newScenarioState() *lua.State {
	state := lua.NewState()
	lua.OpenLibraries(state)
	registerLuaTypes(state)
	return state
}

func runScenarioChunk(state *lua.State) (*Scenario, error) {
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}
	if state.TypeOf(-1) != lua.TypeUserData {
		state.Pop(1)
		return nil, fmt.Errorf("scenario script must return Scenario")
	}
	ud := state.ToUserData(-1)
	state.Pop(1)
	scenario, ok := ud.(*Scenario)
	if !ok || scenario == nil {
		return nil, fmt.Errorf("scenario script returned invalid Scenario")
	}
	return scenario, nil
}

func registerLuaTypes(state *lua.State) {
	registerMethods(state, scenarioTypeName, scenarioMethods)
	registerMethods(state, entityTypeName, entityMethods)

	state.NewTable()
	lua.SetFunctions(state, scenarioConstructor, 0)
	state.SetGlobal("Scenario")
}

func registerMethods(state *lua.State, typeName string, methods []lua.RegistryFunction) {
	lua.NewMetaTable(state, typeName)
	state.NewTable()
	lua.SetFunctions(state, methods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)
}

var scenarioConstructor = []lua.RegistryFunction{
	{Name: "new", Function: scenarioNew},
}

var scenarioMethods = []lua.RegistryFunction{
	{Name: "entity", Function: scenarioEntity},
	{Name: "npc", Function: scenarioNPC},
	{Name: "placement", Function: tableStep("placement")},
	{Name: "resolve", Function: tableStep("resolve")},
	{Name: "resolve_raw", Function: scenarioResolveRaw},
	{Name: "expect_essence", Function: tableStep("expect_essence")},
	{Name: "expect_sheet", Function: tableStep("expect_sheet")},
	{Name: "expect_hp", Function: tableStep("expect_hp")},
	{Name: "expect_status", Function: tableStep("expect_status")},
	{Name: "expect_report", Function: tableStep("expect_report")},
}

var entityMethods = []lua.RegistryFunction{
	{Name: "place", Function: entityPlace},
}

func scenarioNew(state *lua.State) int {
	name := lua.OptString(state, 1, "")
	state.PushUserData(&Scenario{Name: name})
	lua.SetMetaTableNamed(state, scenarioTypeName)
	return 1
}

// tableStep returns a method that records its table argument as one step.
func tableStep(kind string) lua.Function {
	return func(state *lua.State) int {
		scenario := checkScenario(state)
		lua.CheckType(state, 2, lua.TypeTable)
		appendStep(scenario, kind, tableToMap(state, 2))
		return 0
	}
}

func scenarioEntity(state *lua.State) int {
	return pushEntityStep(state, "")
}

func scenarioNPC(state *lua.State) int {
	return pushEntityStep(state, "npc")
}

func pushEntityStep(state *lua.State, kind string) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	data := tableToMap(state, 2)
	if kind != "" {
		data["kind"] = kind
	}
	id, _ := data["id"].(string)
	if strings.TrimSpace(id) == "" {
		lua.ArgumentError(state, 2, "entity id is required")
		return 0
	}
	appendStep(scenario, "entity", data)
	state.PushUserData(&entityHandle{scenario: scenario, entityID: id})
	lua.SetMetaTableNamed(state, entityTypeName)
	return 1
}

func scenarioResolveRaw(state *lua.State) int {
	scenario := checkScenario(state)
	raw := lua.CheckString(state, 2)
	data := optionalTable(state, 3)
	data["raw"] = raw
	appendStep(scenario, "resolve", data)
	return 0
}

func entityPlace(state *lua.State) int {
	ud := lua.CheckUserData(state, 1, entityTypeName)
	handle, ok := ud.(*entityHandle)
	if !ok || handle == nil {
		lua.ArgumentError(state, 1, "entity expected")
		return 0
	}
	placementID := lua.CheckString(state, 2)
	appendStep(handle.scenario, "placement", map[string]any{
		"id":     placementID,
		"entity": handle.entityID,
	})
	state.PushValue(1)
	return 1
}

func checkScenario(state *lua.State) *Scenario {
	ud := lua.CheckUserData(state, 1, scenarioTypeName)
	if scenario, ok := ud.(*Scenario); ok && scenario != nil {
		return scenario
	}
	lua.ArgumentError(state, 1, "scenario expected")
	return nil
}

func appendStep(scenario *Scenario, kind string, data map[string]any) {
	if scenario == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	scenario.Steps = append(scenario.Steps, Step{Kind: kind, Args: data})
}

func optionalTable(state *lua.State, index int) map[string]any {
	if state.IsNoneOrNil(index) || state.TypeOf(index) != lua.TypeTable {
		return map[string]any{}
	}
	return tableToMap(state, index)
}

func tableToMap(state *lua.State, index int) map[string]any {
	output := map[string]any{}
	if state.TypeOf(index) != lua.TypeTable {
		return output
	}

	index = state.AbsIndex(index)
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			output[key] = luaToGo(state, -1)
		}
		state.Pop(1)
	}
	return output
}

func luaToGo(state *lua.State, index int) any {
	switch state.TypeOf(index) {
	case lua.TypeString:
		value, _ := state.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := state.ToNumber(index)
		return value
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(state, index)
	default:
		return nil
	}
}

// tableToGo converts a sequence to []any and anything else to a map.
func tableToGo(state *lua.State, index int) any {
	index = state.AbsIndex(index)
	isArray := true
	maxIndex := 0
	count := 0
	state.PushNil()
	for state.Next(index) {
		if isArray {
			if state.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := state.ToInteger(-2); ok && idx > 0 {
				count++
				if idx > maxIndex {
					maxIndex = idx
				}
			} else {
				isArray = false
			}
		}
		state.Pop(1)
	}

	if isArray && count > 0 && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			state.RawGetInt(index, i)
			result = append(result, luaToGo(state, -1))
			state.Pop(1)
		}
		return result
	}
	return tableToMap(state, index)
}
