package auth

import (
	"fmt"
	"math/rand/v2"
)

var (
	nicknameAdjectives = []string{
		"Amber", "Bold", "Calm", "Daring", "Eager", "Fuzzy", "Gentle",
		"Hidden", "Ivory", "Jolly", "Keen", "Lunar", "Mellow", "Nimble",
		"Opal", "Proud", "Quiet", "Rapid", "Silent", "Twilight", "Vivid",
		"Wandering",
	}
	nicknameNouns = []string{
		"Badger", "Comet", "Dolphin", "Ember", "Falcon", "Glacier",
		"Harbor", "Ibis", "Jackal", "Kestrel", "Lantern", "Meadow",
		"Nebula", "Otter", "Panther", "Quill", "Raven", "Sparrow",
		"Tundra", "Willow",
	}
)

// generateNickname produces a readable default nickname for new accounts,
// e.g. "LunarOtter42".
func generateNickname() string {
	adjective := nicknameAdjectives[rand.IntN(len(nicknameAdjectives))]
	noun := nicknameNouns[rand.IntN(len(nicknameNouns))]
	return fmt.Sprintf("%s%s%02d", adjective, noun, rand.IntN(100))
}
