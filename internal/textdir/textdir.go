// Package textdir classifies text as left-to-right or right-to-left based on
// the scripts it contains.
package textdir

import "academix/pkg/chattypes"

// Classify returns the rendering direction for text. Any character from an RTL
// script (Hebrew, Arabic and the scripts sharing the Arabic block such as
// Persian and Urdu) makes the whole message RTL; everything else, including the
// empty string, is LTR.
func Classify(text string) chattypes.Direction {
	for _, r := range text {
		if (r >= 0x0590 && r <= 0x05FF) || (r >= 0x0600 && r <= 0x06FF) {
			return chattypes.DirectionRTL
		}
	}
	return chattypes.DirectionLTR
}
