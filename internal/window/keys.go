package window

import "github.com/hajimehoshi/ebiten/v2"

// keyCodes maps physical keys to the key codes KeyDown expects, which are
// the browser's legacy keyCode values.
var keyCodes = map[ebiten.Key]int{
	ebiten.KeyBackspace:    8,
	ebiten.KeyTab:          9,
	ebiten.KeyEnter:        13,
	ebiten.KeyShiftLeft:    16,
	ebiten.KeyShiftRight:   16,
	ebiten.KeyControlLeft:  17,
	ebiten.KeyControlRight: 17,
	ebiten.KeyAltLeft:      18,
	ebiten.KeyAltRight:     18,
	ebiten.KeyEscape:       27,
	ebiten.KeySpace:        32,
	ebiten.KeyPageUp:       33,
	ebiten.KeyPageDown:     34,
	ebiten.KeyEnd:          35,
	ebiten.KeyHome:         36,
	ebiten.KeyArrowLeft:    37,
	ebiten.KeyArrowUp:      38,
	ebiten.KeyArrowRight:   39,
	ebiten.KeyArrowDown:    40,
	ebiten.KeyInsert:       45,
	ebiten.KeyDelete:       46,

	ebiten.KeyDigit0: 48, ebiten.KeyDigit1: 49, ebiten.KeyDigit2: 50, ebiten.KeyDigit3: 51,
	ebiten.KeyDigit4: 52, ebiten.KeyDigit5: 53, ebiten.KeyDigit6: 54, ebiten.KeyDigit7: 55,
	ebiten.KeyDigit8: 56, ebiten.KeyDigit9: 57,

	ebiten.KeyA: 65, ebiten.KeyB: 66, ebiten.KeyC: 67, ebiten.KeyD: 68, ebiten.KeyE: 69,
	ebiten.KeyF: 70, ebiten.KeyG: 71, ebiten.KeyH: 72, ebiten.KeyI: 73, ebiten.KeyJ: 74,
	ebiten.KeyK: 75, ebiten.KeyL: 76, ebiten.KeyM: 77, ebiten.KeyN: 78, ebiten.KeyO: 79,
	ebiten.KeyP: 80, ebiten.KeyQ: 81, ebiten.KeyR: 82, ebiten.KeyS: 83, ebiten.KeyT: 84,
	ebiten.KeyU: 85, ebiten.KeyV: 86, ebiten.KeyW: 87, ebiten.KeyX: 88, ebiten.KeyY: 89,
	ebiten.KeyZ: 90,

	ebiten.KeyF1: 112, ebiten.KeyF2: 113, ebiten.KeyF3: 114, ebiten.KeyF4: 115,
	ebiten.KeyF5: 116, ebiten.KeyF6: 117, ebiten.KeyF7: 118, ebiten.KeyF8: 119,
	ebiten.KeyF9: 120, ebiten.KeyF10: 121, ebiten.KeyF11: 122, ebiten.KeyF12: 123,
}

// KeyCode returns the KeyDown code for k.
func KeyCode(k ebiten.Key) (int, bool) {
	code, ok := keyCodes[k]
	return code, ok
}
