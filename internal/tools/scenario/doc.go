// Package scenario loads Lua scenario scripts and runs them against a game
// store through the resolution processor.
//
// A script builds a Scenario and returns it:
//
//	local scene = Scenario.new("attrition")
//	scene:entity({id = "hero", essences = {vitalis = {value = 15, max = 60}}, hp = {value = 20, max = 20}})
//	scene:resolve({attacker = "hero", essence = "vitalis", cost = 25})
//	scene:expect_essence({entity = "hero", essence = "vitalis", value = 0})
//	return scene
package scenario
